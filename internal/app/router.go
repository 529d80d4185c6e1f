package app

import (
	"errors"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/signalroom/internal/core"
	"github.com/dkeye/signalroom/internal/domain"
	"github.com/dkeye/signalroom/internal/metrics"
)

// Router turns inbound signaling events into outbound ones. It keeps no
// state of its own: membership lives in Sessions, delivery in Conns.
type Router struct {
	Sessions core.SessionStore
	Conns    core.Deliverer
	Policy   Policy
	Metrics  *metrics.Metrics

	// NotifyUnavailable makes relays to an unknown target answer the
	// sender with target_unavailable instead of dropping silently.
	NotifyUnavailable bool
}

func (r *Router) CreateSession(from domain.ConnID) {
	id := r.Sessions.CreateSession()
	r.Metrics.SessionCreated()
	log.Info().Str("module", "app.router").Str("conn", string(from)).Str("session", string(id)).Msg("create_session")
	_ = r.deliver(from, core.Event{Type: core.EventSessionCreated, Data: core.SessionCreated{SessionID: id}})
}

func (r *Router) Ping(from domain.ConnID) {
	_ = r.deliver(from, core.Event{Type: core.EventPong, Data: core.Pong{}})
}

// Reject answers the requester with an error event and changes nothing.
func (r *Router) Reject(from domain.ConnID, msg string) {
	_ = r.deliver(from, core.NewError(msg))
}

// deliver sends ev to one connection. Unknown targets are dropped without
// surfacing an error to anyone; a full queue is handed to the Policy.
func (r *Router) deliver(to domain.ConnID, ev core.Event) error {
	err := r.Conns.Deliver(to, ev)
	switch {
	case err == nil:
	case errors.Is(err, core.ErrUnknownConn):
		r.Metrics.Drop(metrics.DropUnknownTarget)
		log.Debug().Str("module", "app.router").Str("conn", string(to)).Str("type", string(ev.Type)).Msg("target not connected, dropped")
	case errors.Is(err, core.ErrBackpressure):
		r.Metrics.Drop(metrics.DropBackpressure)
		r.onBackPressure(to)
	default:
		log.Debug().Err(err).Str("module", "app.router").Str("conn", string(to)).Msg("deliver failed")
	}
	return err
}

func (r *Router) onBackPressure(conn domain.ConnID) {
	action := CloseConn
	if r.Policy != nil {
		action = r.Policy.OnBackPressure(conn)
	}
	log.Warn().Str("module", "app.router").Str("conn", string(conn)).Stringer("action", action).Msg("send queue full")
	if action == CloseConn {
		r.Conns.CloseConn(conn)
	}
}

// broadcast delivers ev to every current member of the session except
// exclude.
func (r *Router) broadcast(id domain.SessionID, exclude domain.ConnID, ev core.Event) int {
	sent := 0
	for _, m := range r.Sessions.Members(id) {
		if m.ConnID == exclude {
			continue
		}
		if r.deliver(m.ConnID, ev) == nil {
			sent++
		}
	}
	log.Debug().Str("module", "app.router").Str("session", string(id)).Str("type", string(ev.Type)).Int("sent_to", sent).Msg("broadcast result")
	return sent
}
