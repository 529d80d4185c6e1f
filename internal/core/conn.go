package core

import "errors"

var (
	ErrBackpressure = errors.New("backpressure")
	ErrConnClosed   = errors.New("connection closed")
	ErrUnknownConn  = errors.New("unknown connection")
)

//go:generate mockgen -source=conn.go -destination=mock_core/conn.go -package=mock_core

// Conn abstracts the outbound side of a signaling transport.
// Owned by the adapter; the adapter must Close() it.
type Conn interface {
	// Send enqueues ev without blocking. Events sent to one Conn are
	// written in Send order.
	Send(ev Event) error
	Close()
}
