package metrics

import "github.com/prometheus/client_golang/prometheus"

// DictionaryMetrics holds Prometheus metrics for dictionary lookups.
type DictionaryMetrics struct {
	Lookups      *prometheus.CounterVec
	BreakerState prometheus.Gauge
}

// NewDictionaryMetrics creates and registers dictionary metrics on the given registry.
func NewDictionaryMetrics(reg prometheus.Registerer) *DictionaryMetrics {
	m := &DictionaryMetrics{
		Lookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "dictionary",
			Name:      "lookups_total",
			Help:      "Total number of dictionary lookups, by result (recognized, unrecognized, error).",
		}, []string{"result"}),
		BreakerState: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "dictionary",
			Name:      "circuit_breaker_state",
			Help:      "Dictionary circuit breaker state (0 closed, 1 half-open, 2 open).",
		}),
	}

	reg.MustRegister(m.Lookups, m.BreakerState)
	return m
}
