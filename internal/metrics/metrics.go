// Package metrics exposes relay counters to Prometheus.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "signalroom"

// Drop reasons.
const (
	DropUnknownTarget = "unknown_target"
	DropBackpressure  = "backpressure"
	DropRateLimited   = "rate_limited"
	DropBadPayload    = "bad_payload"
)

// Metrics is safe to use as a nil pointer; every method is then a no-op.
type Metrics struct {
	events   *prometheus.CounterVec
	relayed  *prometheus.CounterVec
	drops    *prometheus.CounterVec
	sessions prometheus.Counter
}

// New registers the relay collectors on reg. activeSessions and
// activeConns are sampled on scrape.
func New(reg prometheus.Registerer, activeSessions, activeConns func() float64) *Metrics {
	m := &Metrics{
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_total",
			Help:      "Inbound signaling events by type.",
		}, []string{"type"}),
		relayed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "relayed_total",
			Help:      "Relayed offer/answer/ice-candidate messages by type and result.",
		}, []string{"type", "result"}),
		drops: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dropped_total",
			Help:      "Dropped outbound or inbound events by reason.",
		}, []string{"reason"}),
		sessions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_created_total",
			Help:      "Sessions created explicitly via create_session.",
		}),
	}
	reg.MustRegister(m.events, m.relayed, m.drops, m.sessions)
	if activeSessions != nil {
		reg.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_sessions",
			Help:      "Sessions currently held in memory.",
		}, activeSessions))
	}
	if activeConns != nil {
		reg.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_connections",
			Help:      "Registered signaling connections.",
		}, activeConns))
	}
	return m
}

func (m *Metrics) Event(eventType string) {
	if m == nil {
		return
	}
	m.events.WithLabelValues(eventType).Inc()
}

func (m *Metrics) Relayed(eventType string, delivered bool) {
	if m == nil {
		return
	}
	result := "delivered"
	if !delivered {
		result = "dropped"
	}
	m.relayed.WithLabelValues(eventType, result).Inc()
}

func (m *Metrics) Drop(reason string) {
	if m == nil {
		return
	}
	m.drops.WithLabelValues(reason).Inc()
}

func (m *Metrics) SessionCreated() {
	if m == nil {
		return
	}
	m.sessions.Inc()
}

// Handler serves the collectors gathered by g in the Prometheus text format.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
