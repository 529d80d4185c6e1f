package app

import (
	"errors"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/signalroom/internal/core"
	"github.com/dkeye/signalroom/internal/domain"
)

// Relays carry no membership check: the payload is opaque and the only
// job is deliver-or-drop.

func (r *Router) Offer(from domain.ConnID, req core.RelayRequest) {
	r.relay(from, req.Target, core.Event{Type: core.EventOffer, Data: core.SDPRelay{From: from, SDP: req.SDP}})
}

func (r *Router) Answer(from domain.ConnID, req core.RelayRequest) {
	r.relay(from, req.Target, core.Event{Type: core.EventAnswer, Data: core.SDPRelay{From: from, SDP: req.SDP}})
}

func (r *Router) ICECandidate(from domain.ConnID, req core.RelayRequest) {
	r.relay(from, req.Target, core.Event{Type: core.EventICECandidate, Data: core.CandidateRelay{From: from, Candidate: req.Candidate}})
}

func (r *Router) relay(from, target domain.ConnID, ev core.Event) {
	if target == "" {
		log.Debug().Str("module", "app.router").Str("conn", string(from)).Str("type", string(ev.Type)).Msg("relay without target, dropped")
		return
	}
	err := r.deliver(target, ev)
	r.Metrics.Relayed(string(ev.Type), err == nil)
	if errors.Is(err, core.ErrUnknownConn) && r.NotifyUnavailable {
		_ = r.deliver(from, core.Event{Type: core.EventTargetUnavailable, Data: core.TargetUnavailable{Target: target}})
	}
}
