// Package metrics exposes Prometheus counters for the coordination engine.
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	registry    *prometheus.Registry
	moves       *prometheus.CounterVec
	escalations *prometheus.CounterVec
	settlements *prometheus.CounterVec
	matches     *prometheus.CounterVec
	resyncs     prometheus.Counter
}

// New registers every collector on a fresh registry
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		moves: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "turnsettle",
			Name:      "moves_total",
			Help:      "Submitted moves by outcome code.",
		}, []string{"outcome"}),
		escalations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "turnsettle",
			Name:      "escalations_total",
			Help:      "Timeout escalations by kind and outcome code.",
		}, []string{"kind", "outcome"}),
		settlements: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "turnsettle",
			Name:      "settlements_total",
			Help:      "Settlement attempts by receipt kind and outcome.",
		}, []string{"kind", "outcome"}),
		matches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "turnsettle",
			Name:      "matches_started_total",
			Help:      "Matches moved to active by mode.",
		}, []string{"mode"}),
		resyncs: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "turnsettle",
			Name:      "roster_resyncs_total",
			Help:      "Roster resynchronizations after not_a_participant.",
		}),
	}
	m.registry.MustRegister(m.moves, m.escalations, m.settlements, m.matches, m.resyncs,
		collectors.NewGoCollector())
	return m
}

func outcome(code string) string {
	if code == "" {
		return "ok"
	}
	return code
}

// Move counts one move submission
func (m *Metrics) Move(code string) {
	if m == nil {
		return
	}
	m.moves.WithLabelValues(outcome(code)).Inc()
}

// Escalation counts one skip or forfeit request
func (m *Metrics) Escalation(kind, code string) {
	if m == nil {
		return
	}
	m.escalations.WithLabelValues(kind, outcome(code)).Inc()
}

// Settlement counts one settlement or refund request
func (m *Metrics) Settlement(kind, result string) {
	if m == nil {
		return
	}
	m.settlements.WithLabelValues(kind, outcome(result)).Inc()
}

// MatchStarted counts a room turning active
func (m *Metrics) MatchStarted(mode string) {
	if m == nil {
		return
	}
	m.matches.WithLabelValues(mode).Inc()
}

// Resync counts a roster resynchronization
func (m *Metrics) Resync() {
	if m == nil {
		return
	}
	m.resyncs.Inc()
}

// Handler serves the registry in the Prometheus text format
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry for tests
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
