package metrics

import "github.com/prometheus/client_golang/prometheus"

// GatewayMetrics holds Prometheus metrics for the gateway session.
type GatewayMetrics struct {
	FramesReceived *prometheus.CounterVec
	Dispatches     *prometheus.CounterVec
	HeartbeatsSent prometheus.Counter
	HeartbeatAcks  prometheus.Counter
	SessionState   prometheus.Gauge
}

// NewGatewayMetrics creates and registers gateway metrics on the given registry.
func NewGatewayMetrics(reg prometheus.Registerer) *GatewayMetrics {
	m := &GatewayMetrics{
		FramesReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "gateway",
			Name:      "frames_received_total",
			Help:      "Total number of gateway frames received, by opcode.",
		}, []string{"op"}),
		Dispatches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "gateway",
			Name:      "dispatches_total",
			Help:      "Total number of dispatch events handed to the router, by event type.",
		}, []string{"event"}),
		HeartbeatsSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "gateway",
			Name:      "heartbeats_sent_total",
			Help:      "Total number of heartbeat frames sent.",
		}),
		HeartbeatAcks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "gateway",
			Name:      "heartbeat_acks_total",
			Help:      "Total number of heartbeat acknowledgements received.",
		}),
		SessionState: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "gateway",
			Name:      "session_state",
			Help:      "Current session state (0 connecting, 1 identifying, 2 ready, 3 closed).",
		}),
	}

	reg.MustRegister(m.FramesReceived, m.Dispatches, m.HeartbeatsSent, m.HeartbeatAcks, m.SessionState)
	return m
}
