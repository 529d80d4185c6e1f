package signal

import (
	"context"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/signalroom/internal/core"
	"github.com/dkeye/signalroom/internal/domain"
	"github.com/dkeye/signalroom/internal/metrics"
)

const badPayload = "bad_payload"

func (ctl *SignalWSController) writePump(ctx context.Context, c *WsSignalConn) {
	var tick <-chan time.Time
	if ctl.Cfg.PingPeriod > 0 {
		ticker := time.NewTicker(ctl.Cfg.PingPeriod)
		defer ticker.Stop()
		tick = ticker.C
	}
	defer c.Close()

	for {
		select {
		case <-ctx.Done():
			log.Debug().Str("module", "signal").Str("conn", string(c.id)).Msg("writePump ctx done")
			return
		case data, ok := <-c.send:
			if !ok {
				log.Debug().Str("module", "signal").Str("conn", string(c.id)).Msg("writePump channel closed")
				return
			}
			if err := c.conn.SetWriteDeadline(ctl.writeDeadline()); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump set deadline")
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Warn().Err(err).Str("module", "signal").Str("conn", string(c.id)).Msg("writePump write error")
				return
			}
		case <-tick:
			if err := c.conn.SetWriteDeadline(ctl.writeDeadline()); err != nil {
				return
			}
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				log.Debug().Err(err).Str("module", "signal").Str("conn", string(c.id)).Msg("ping failed")
				return
			}
		}
	}
}

func (ctl *SignalWSController) writeDeadline() time.Time {
	wait := ctl.Cfg.WriteWait
	if wait <= 0 {
		wait = 5 * time.Second
	}
	return time.Now().Add(wait)
}

func (ctl *SignalWSController) readPump(ctx context.Context, cancel context.CancelFunc, c *WsSignalConn) {
	defer func() {
		cancel()
		ctl.Conns.Unregister(c.id)
		ctl.Router.Disconnect(c.id)
		c.Close()
		log.Info().Str("module", "signal").Str("conn", string(c.id)).Msg("disconnected")
	}()

	if ctl.Cfg.ReadLimit > 0 {
		c.conn.SetReadLimit(ctl.Cfg.ReadLimit)
	}
	if ctl.Cfg.PongWait > 0 {
		_ = c.conn.SetReadDeadline(time.Now().Add(ctl.Cfg.PongWait))
		c.conn.SetPongHandler(func(string) error {
			return c.conn.SetReadDeadline(time.Now().Add(ctl.Cfg.PongWait))
		})
	}
	limiter := newConnLimiter(ctl.Cfg.RateLimit, ctl.Cfg.RateBurst)

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Warn().Err(err).Str("module", "signal").Str("conn", string(c.id)).Msg("readPump read error")
			}
			return
		}
		if !limiter.Allow() {
			ctl.Metrics.Drop(metrics.DropRateLimited)
			log.Debug().Str("module", "signal").Str("conn", string(c.id)).Msg("rate limited, event dropped")
			continue
		}
		ctl.handleSignal(c.id, data)
	}
}

type envelope struct {
	Type core.EventType `json:"type"`
	Data json.RawMessage `json:"data"`
}

func (ctl *SignalWSController) handleSignal(from domain.ConnID, data []byte) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil || env.Type == "" {
		log.Debug().Err(err).Str("module", "signal").Str("conn", string(from)).Msg("bad json")
		ctl.Metrics.Drop(metrics.DropBadPayload)
		ctl.Router.Reject(from, badPayload)
		return
	}

	switch env.Type {
	case core.EventCreateSession:
		ctl.Metrics.Event(string(env.Type))
		ctl.Router.CreateSession(from)
	case core.EventJoin:
		var req core.JoinRequest
		if ctl.decode(from, env, &req) {
			ctl.Router.Join(from, req)
		}
	case core.EventLeave:
		var req core.LeaveRequest
		if ctl.decode(from, env, &req) {
			ctl.Router.Leave(from, req)
		}
	case core.EventPing:
		ctl.Metrics.Event(string(env.Type))
		ctl.Router.Ping(from)
	case core.EventOffer, core.EventAnswer, core.EventICECandidate:
		var req core.RelayRequest
		if !ctl.decode(from, env, &req) {
			return
		}
		switch env.Type {
		case core.EventOffer:
			ctl.Router.Offer(from, req)
		case core.EventAnswer:
			ctl.Router.Answer(from, req)
		default:
			ctl.Router.ICECandidate(from, req)
		}
	default:
		ctl.Metrics.Event("unknown")
		log.Warn().Str("module", "signal").Str("conn", string(from)).Str("type", string(env.Type)).Msg("unknown signal")
		ctl.Router.Reject(from, "unknown event "+string(env.Type))
	}
}

// decode fills v from the envelope data. Missing data leaves v zero.
func (ctl *SignalWSController) decode(from domain.ConnID, env envelope, v any) bool {
	ctl.Metrics.Event(string(env.Type))
	if len(env.Data) == 0 || string(env.Data) == "null" {
		return true
	}
	if err := json.Unmarshal(env.Data, v); err != nil {
		log.Debug().Err(err).Str("module", "signal").Str("conn", string(from)).Str("type", string(env.Type)).Msg("bad payload")
		ctl.Metrics.Drop(metrics.DropBadPayload)
		ctl.Router.Reject(from, badPayload)
		return false
	}
	return true
}
