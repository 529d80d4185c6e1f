package signal

import (
	"sync"
	"time"

	"github.com/goccy/go-json"

	"github.com/dkeye/signalroom/internal/core"
	"github.com/dkeye/signalroom/internal/domain"
)

// WSConn is an indirection over *websocket.Conn to ease testing.
type WSConn interface {
	ReadMessage() (int, []byte, error)
	WriteMessage(mt int, data []byte) error
	SetWriteDeadline(t time.Time) error
	SetReadDeadline(t time.Time) error
	SetReadLimit(limit int64)
	SetPongHandler(h func(appData string) error)
	Close() error
}

// WsSignalConn is one signaling client. It implements core.Conn: Send
// encodes and enqueues, writePump drains the queue onto the socket.
type WsSignalConn struct {
	id     domain.ConnID
	client string
	conn   WSConn
	send   chan []byte

	mu     sync.RWMutex
	closed bool
}

var _ core.Conn = (*WsSignalConn)(nil)

func NewWsSignalConn(id domain.ConnID, client string, ws WSConn, queue int) *WsSignalConn {
	return &WsSignalConn{
		id:     id,
		client: client,
		conn:   ws,
		send:   make(chan []byte, queue),
	}
}

func (c *WsSignalConn) ID() domain.ConnID { return c.id }

func (c *WsSignalConn) Send(ev core.Event) error {
	b, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return c.TrySend(b)
}

func (c *WsSignalConn) TrySend(b []byte) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return core.ErrConnClosed
	}
	select {
	case c.send <- b:
	default:
		return core.ErrBackpressure
	}
	return nil
}

func (c *WsSignalConn) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
	_ = c.conn.Close()
}

func (c *WsSignalConn) Closed() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.closed
}
