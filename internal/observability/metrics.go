// Package observability holds the Prometheus metrics of the signaling gateway.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics collects gateway metrics. A nil *Metrics is valid and records nothing,
// so components can be built without a registry in tests.
//
// Usage:
//
//	metrics := observability.NewMetrics(prometheus.DefaultRegisterer)
//	metrics.ConnectionOpened("user")
//	defer metrics.ConnectionClosed("user")
type Metrics struct {
	// ActiveConnections tracks live authenticated connections.
	// Labels: role (user|staff)
	ActiveConnections *prometheus.GaugeVec

	// EventCounter counts inbound protocol events.
	// Labels: event, status (ok|error)
	EventCounter *prometheus.CounterVec

	// CallTransitions counts call state machine transitions.
	// Labels: outcome (started|answered|ended|missed)
	CallTransitions *prometheus.CounterVec

	// ActiveCalls tracks call sessions currently ringing or active.
	ActiveCalls prometheus.Gauge

	// DroppedFrames counts outbound frames dropped on a full send queue.
	DroppedFrames prometheus.Counter

	// AuthFailures counts rejected connection attempts.
	AuthFailures prometheus.Counter

	// Inconsistencies counts store writes that failed after an in-memory transition.
	// Labels: op
	Inconsistencies *prometheus.CounterVec
}

// NewMetrics creates the metrics and registers them with reg.
// Pass prometheus.NewRegistry() in tests to avoid clashes on the default registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		ActiveConnections: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "coachline_active_connections",
				Help: "Number of live authenticated connections by role",
			},
			[]string{"role"},
		),

		EventCounter: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "coachline_events_total",
				Help: "Total number of inbound protocol events by event and status",
			},
			[]string{"event", "status"},
		),

		CallTransitions: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "coachline_call_transitions_total",
				Help: "Total number of call session transitions by outcome",
			},
			[]string{"outcome"},
		),

		ActiveCalls: f.NewGauge(
			prometheus.GaugeOpts{
				Name: "coachline_active_calls",
				Help: "Number of call sessions currently ringing or active",
			},
		),

		DroppedFrames: f.NewCounter(
			prometheus.CounterOpts{
				Name: "coachline_dropped_frames_total",
				Help: "Total number of outbound frames dropped on a full send queue",
			},
		),

		AuthFailures: f.NewCounter(
			prometheus.CounterOpts{
				Name: "coachline_auth_failures_total",
				Help: "Total number of rejected connection attempts",
			},
		),

		Inconsistencies: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "coachline_store_inconsistencies_total",
				Help: "Total number of store writes that failed after an in-memory transition",
			},
			[]string{"op"},
		),
	}
}

func (m *Metrics) ConnectionOpened(role string) {
	if m == nil {
		return
	}
	m.ActiveConnections.WithLabelValues(role).Inc()
}

func (m *Metrics) ConnectionClosed(role string) {
	if m == nil {
		return
	}
	m.ActiveConnections.WithLabelValues(role).Dec()
}

// Event records one handled inbound event.
func (m *Metrics) Event(event string, err error) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.EventCounter.WithLabelValues(event, status).Inc()
}

// CallTransition records outcome and keeps ActiveCalls in step with it.
func (m *Metrics) CallTransition(outcome string) {
	if m == nil {
		return
	}
	m.CallTransitions.WithLabelValues(outcome).Inc()
	switch outcome {
	case "started":
		m.ActiveCalls.Inc()
	case "ended", "missed":
		m.ActiveCalls.Dec()
	}
}

func (m *Metrics) FramesDropped(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.DroppedFrames.Add(float64(n))
}

func (m *Metrics) AuthFailed() {
	if m == nil {
		return
	}
	m.AuthFailures.Inc()
}

func (m *Metrics) Inconsistency(op string) {
	if m == nil {
		return
	}
	m.Inconsistencies.WithLabelValues(op).Inc()
}
