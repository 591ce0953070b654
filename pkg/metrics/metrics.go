// Package metrics holds the Prometheus collectors of the service. They are
// registered on the default registry and exposed by the HTTP server at /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "switchyard"

var (
	// CircuitTransitions counts circuit state changes.
	CircuitTransitions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "circuit",
		Name:      "state_transitions_total",
		Help:      "Circuit state transitions by provider, from-state, to-state and whether an operator forced them.",
	}, []string{"provider", "from_state", "to_state", "manual"})

	// CircuitState is the current state of each circuit (0 closed, 1 open, 2 half-open).
	CircuitState = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "circuit",
		Name:      "state",
		Help:      "Current circuit state per provider: 0 closed, 1 open, 2 half-open.",
	}, []string{"provider"})

	// CallOutcomes counts outcomes reported to the breaker.
	CallOutcomes = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "circuit",
		Name:      "call_outcomes_total",
		Help:      "Provider call outcomes recorded by the circuit breaker.",
	}, []string{"provider", "outcome"})

	// Selections counts selection calls by result.
	Selections = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "selection",
		Name:      "decisions_total",
		Help:      "Selection calls by selected provider or error reason.",
	}, []string{"provider", "result"})

	// SelectionDuration observes end-to-end selection latency.
	SelectionDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "selection",
		Name:      "duration_seconds",
		Help:      "Selection latency including signal fetches.",
		Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
	})

	// SignalFetches counts health/metrics lookups by source.
	SignalFetches = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "selection",
		Name:      "signal_fetches_total",
		Help:      "Provider signal lookups by source: cache, fetched, stale, unscored or error.",
	}, []string{"provider", "source"})

	// DecisionLogDropped counts decisions that could not be queued for the log.
	DecisionLogDropped = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "selection",
		Name:      "decision_log_dropped_total",
		Help:      "Selection decisions dropped before reaching the decision log.",
	})
)

func init() {
	prometheus.MustRegister(
		CircuitTransitions,
		CircuitState,
		CallOutcomes,
		Selections,
		SelectionDuration,
		SignalFetches,
		DecisionLogDropped,
	)
}
