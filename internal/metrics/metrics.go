// Package metrics exposes Prometheus collectors for routing, batching and
// task lifecycle activity. All methods are safe on a nil *Metrics, so
// components work unchanged when metrics are disabled.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "triage"

// Metrics holds the collectors reported by the router, batcher and lifecycle loop.
type Metrics struct {
	routeSelections *prometheus.CounterVec
	fallbacks       *prometheus.CounterVec
	backendFailures *prometheus.CounterVec
	batchSize       prometheus.Histogram
	decisions       *prometheus.CounterVec
}

// MustNewMetrics constructs and registers the collectors on reg. A nil reg
// uses the default registerer. Registration errors panic, mirroring promauto.
func MustNewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	m := &Metrics{
		routeSelections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "router",
			Name:      "selections_total",
			Help:      "Inputs routed to each backend as the primary choice.",
		}, []string{"backend"}),
		fallbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "router",
			Name:      "fallbacks_total",
			Help:      "Fallback attempts by outcome.",
		}, []string{"from", "to", "outcome"}),
		backendFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "router",
			Name:      "backend_failures_total",
			Help:      "Failed backend invocations.",
		}, []string{"backend"}),
		batchSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "batch",
			Name:      "tasks_per_batch",
			Help:      "Number of tasks in each summary batch.",
			Buckets:   prometheus.LinearBuckets(1, 2, 10),
		}),
		decisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "lifecycle",
			Name:      "decisions_total",
			Help:      "Operator decisions applied to tasks.",
		}, []string{"decision"}),
	}

	reg.MustRegister(m.routeSelections, m.fallbacks, m.backendFailures, m.batchSize, m.decisions)
	return m
}

// IncRouteSelection counts an input routed to backend.
func (m *Metrics) IncRouteSelection(backend string) {
	if m == nil {
		return
	}
	m.routeSelections.WithLabelValues(backend).Inc()
}

// IncFallback counts a fallback from one backend to another with its outcome
// ("success" or "failure").
func (m *Metrics) IncFallback(from, to, outcome string) {
	if m == nil {
		return
	}
	m.fallbacks.WithLabelValues(from, to, outcome).Inc()
}

// IncBackendFailure counts a failed invocation of backend.
func (m *Metrics) IncBackendFailure(backend string) {
	if m == nil {
		return
	}
	m.backendFailures.WithLabelValues(backend).Inc()
}

// ObserveBatchSize records the number of tasks in one batch.
func (m *Metrics) ObserveBatchSize(n int) {
	if m == nil {
		return
	}
	m.batchSize.Observe(float64(n))
}

// IncDecision counts an applied operator decision.
func (m *Metrics) IncDecision(decision string) {
	if m == nil {
		return
	}
	m.decisions.WithLabelValues(decision).Inc()
}
