package app

import (
	"github.com/rs/zerolog/log"

	"github.com/dkeye/signalroom/internal/core"
	"github.com/dkeye/signalroom/internal/domain"
)

const msgMissingSession = "No session specified"

func (r *Router) Join(from domain.ConnID, req core.JoinRequest) {
	id, err := domain.ParseSessionID(req.Session)
	if err != nil {
		r.Reject(from, msgMissingSession)
		return
	}

	// A connection belongs to one session at a time.
	if prev, ok := r.Sessions.SessionOf(from); ok && prev != id {
		r.leave(prev, from)
		log.Info().Str("module", "app.router").Str("conn", string(from)).Str("from_session", string(prev)).Msg("left previous session on join")
	}

	name := domain.NormalizeName(req.Name)
	existing := r.Sessions.Join(id, from, name)
	log.Info().Str("module", "app.router").Str("conn", string(from)).Str("session", string(id)).Str("name", name).Msg("join")

	_ = r.deliver(from, core.Event{Type: core.EventExistingPeers, Data: core.ExistingPeers{Peers: existing}})

	joined := core.Event{Type: core.EventPeerJoined, Data: core.PeerJoined{SID: from, Name: name}}
	for _, peer := range existing {
		_ = r.deliver(peer, joined)
	}
}

func (r *Router) Leave(from domain.ConnID, req core.LeaveRequest) {
	id, err := domain.ParseSessionID(req.Session)
	if err != nil {
		r.Reject(from, msgMissingSession)
		return
	}
	if !r.leave(id, from) {
		log.Debug().Str("module", "app.router").Str("conn", string(from)).Str("session", string(id)).Msg("leave: not a member")
	}
}

// Disconnect is fired by the transport once per connection. It is safe to
// race with Leave; only one of them notifies.
func (r *Router) Disconnect(from domain.ConnID) {
	id, removed, nowEmpty := r.Sessions.FindAndLeaveAny(from)
	if !removed {
		return
	}
	log.Info().Str("module", "app.router").Str("conn", string(from)).Str("session", string(id)).Bool("now_empty", nowEmpty).Msg("disconnect")
	if !nowEmpty {
		r.broadcast(id, from, peerLeft(from))
	}
}

func (r *Router) leave(id domain.SessionID, conn domain.ConnID) bool {
	removed, nowEmpty := r.Sessions.Leave(id, conn)
	if !removed {
		return false
	}
	log.Info().Str("module", "app.router").Str("conn", string(conn)).Str("session", string(id)).Bool("now_empty", nowEmpty).Msg("leave")
	if !nowEmpty {
		r.broadcast(id, conn, peerLeft(conn))
	}
	return true
}

func peerLeft(conn domain.ConnID) core.Event {
	return core.Event{Type: core.EventPeerLeft, Data: core.PeerLeft{SID: conn}}
}
