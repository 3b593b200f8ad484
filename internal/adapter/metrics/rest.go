package metrics

import "github.com/prometheus/client_golang/prometheus"

// RESTMetrics holds Prometheus metrics for outbound chat API calls.
type RESTMetrics struct {
	RequestDuration *prometheus.HistogramVec
	RequestsTotal   *prometheus.CounterVec
}

// NewRESTMetrics creates and registers outbound API metrics on the given registry.
func NewRESTMetrics(reg prometheus.Registerer) *RESTMetrics {
	m := &RESTMetrics{
		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "rest",
			Name:      "request_duration_seconds",
			Help:      "Duration of outbound API requests in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
		RequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "rest",
			Name:      "requests_total",
			Help:      "Total number of outbound API requests, by route and status code.",
		}, []string{"route", "status_code"}),
	}

	reg.MustRegister(m.RequestDuration, m.RequestsTotal)
	return m
}
