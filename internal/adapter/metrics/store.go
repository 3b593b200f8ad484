package metrics

import "github.com/prometheus/client_golang/prometheus"

// StoreMetrics holds Prometheus metrics for the Redis and Postgres channel stores.
type StoreMetrics struct {
	OperationsTotal   *prometheus.CounterVec
	OperationDuration *prometheus.HistogramVec
	ConnectionErrors  *prometheus.CounterVec
}

// NewStoreMetrics creates and registers store metrics on the given registry.
func NewStoreMetrics(reg prometheus.Registerer) *StoreMetrics {
	m := &StoreMetrics{
		OperationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "operations_total",
			Help:      "Total number of store operations, by backend, operation and status.",
		}, []string{"backend", "operation", "status"}),
		OperationDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "operation_duration_seconds",
			Help:      "Duration of store operations in seconds.",
			Buckets:   []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25, .5, 1},
		}, []string{"backend", "operation"}),
		ConnectionErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "connection_errors_total",
			Help:      "Total number of failed store connection attempts.",
		}, []string{"backend"}),
	}

	reg.MustRegister(m.OperationsTotal, m.OperationDuration, m.ConnectionErrors)
	return m
}

// Observe records one finished operation.
func (m *StoreMetrics) Observe(backend, operation string, seconds float64, failed bool) {
	status := "success"
	if failed {
		status = "error"
	}
	m.OperationsTotal.WithLabelValues(backend, operation, status).Inc()
	m.OperationDuration.WithLabelValues(backend, operation).Observe(seconds)
}
