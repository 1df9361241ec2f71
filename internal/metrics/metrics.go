// Package metrics defines the Prometheus metrics for linking and gating.
package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics contains the linkgate Prometheus collectors.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	LinkResults       *prometheus.CounterVec
	Decisions         *prometheus.CounterVec
	TicketsConsumed   prometheus.Counter
	TicketsExpired    prometheus.Counter
	CallbackResponses *prometheus.CounterVec
	GateTransitions   *prometheus.CounterVec
	Quarantined       prometheus.Gauge
}

// New creates and registers the linkgate metrics.
// Panics if registration fails (following prometheus convention).
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		LinkResults: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "linkgate_link_results_total",
				Help: "Total number of link attempts by result",
			},
			[]string{"result"},
		),
		Decisions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "linkgate_prelogin_decisions_total",
				Help: "Total number of pre-login decisions by outcome",
			},
			[]string{"decision"},
		),
		TicketsConsumed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "linkgate_tickets_consumed_total",
			Help: "Total number of link tickets promoted to player records",
		}),
		TicketsExpired: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "linkgate_tickets_expired_total",
			Help: "Total number of link tickets deleted after their TTL",
		}),
		CallbackResponses: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "linkgate_callback_responses_total",
				Help: "Total number of OAuth callback responses by provider and status code",
			},
			[]string{"provider", "status"},
		),
		GateTransitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "linkgate_gate_transitions_total",
				Help: "Total number of verification gate state transitions",
			},
			[]string{"state"},
		),
		Quarantined: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "linkgate_quarantined_connections",
			Help: "Number of connections currently quarantined",
		}),
	}

	reg.MustRegister(
		m.LinkResults,
		m.Decisions,
		m.TicketsConsumed,
		m.TicketsExpired,
		m.CallbackResponses,
		m.GateTransitions,
		m.Quarantined,
	)

	return m
}

// RecordLinkResult counts a CreateLink outcome
func (m *Metrics) RecordLinkResult(result string) {
	if m == nil {
		return
	}
	m.LinkResults.WithLabelValues(result).Inc()
}

// RecordDecision counts a pre-login decision
func (m *Metrics) RecordDecision(decision string) {
	if m == nil {
		return
	}
	m.Decisions.WithLabelValues(decision).Inc()
}

// RecordTicketConsumed counts a consumed ticket
func (m *Metrics) RecordTicketConsumed() {
	if m == nil {
		return
	}
	m.TicketsConsumed.Inc()
}

// RecordTicketsExpired counts tickets removed by the cleanup job
func (m *Metrics) RecordTicketsExpired(n int) {
	if m == nil {
		return
	}
	m.TicketsExpired.Add(float64(n))
}

// RecordCallback counts an OAuth callback response
func (m *Metrics) RecordCallback(provider string, status int) {
	if m == nil {
		return
	}
	m.CallbackResponses.WithLabelValues(provider, strconv.Itoa(status)).Inc()
}

// RecordGateTransition counts a gate transition and keeps the quarantine gauge current
func (m *Metrics) RecordGateTransition(state string, quarantined int) {
	if m == nil {
		return
	}
	m.GateTransitions.WithLabelValues(state).Inc()
	m.Quarantined.Set(float64(quarantined))
}
