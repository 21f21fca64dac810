package metrics

import "github.com/prometheus/client_golang/prometheus"

// CircuitBreakerMetrics tracks the state of the Redis circuit breaker.
type CircuitBreakerMetrics struct {
	State        prometheus.Gauge
	StateChanges *prometheus.CounterVec
}

// NewCircuitBreakerMetrics creates and registers circuit breaker metrics.
// State gauge values: 0 closed, 1 half-open, 2 open.
func NewCircuitBreakerMetrics(reg prometheus.Registerer) *CircuitBreakerMetrics {
	m := &CircuitBreakerMetrics{
		State: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "redis",
			Name:      "circuit_breaker_state",
			Help:      "Current circuit breaker state (0 closed, 1 half-open, 2 open).",
		}),
		StateChanges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "redis",
			Name:      "circuit_breaker_transitions_total",
			Help:      "Total circuit breaker state transitions.",
		}, []string{"to"}),
	}

	reg.MustRegister(m.State, m.StateChanges)
	return m
}
