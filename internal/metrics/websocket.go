package metrics

import "github.com/prometheus/client_golang/prometheus"

// WebSocketMetrics holds Prometheus metrics for the local connection registry
// and the broadcast relay.
type WebSocketMetrics struct {
	ActiveConnections   prometheus.Gauge
	BroadcastsPublished prometheus.Counter
	BroadcastsReceived  prometheus.Counter
	MessagesDelivered   prometheus.Counter
	SendFailures        prometheus.Counter
	ForcedClosures      prometheus.Counter
}

// NewWebSocketMetrics creates and registers WebSocket metrics on the given registry.
func NewWebSocketMetrics(reg prometheus.Registerer) *WebSocketMetrics {
	m := &WebSocketMetrics{
		ActiveConnections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "websocket",
			Name:      "active_connections",
			Help:      "Number of WebSocket connections held by this worker.",
		}),
		BroadcastsPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "broadcast",
			Name:      "published_total",
			Help:      "Total broadcasts published to the shared channel by this worker.",
		}),
		BroadcastsReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "broadcast",
			Name:      "received_total",
			Help:      "Total broadcasts received from the shared channel by this worker.",
		}),
		MessagesDelivered: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "broadcast",
			Name:      "delivered_total",
			Help:      "Total messages delivered to local connections.",
		}),
		SendFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "websocket",
			Name:      "send_failures_total",
			Help:      "Total failed sends to local connections.",
		}),
		ForcedClosures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "shutdown",
			Name:      "forced_closures_total",
			Help:      "Total connections force-closed at the drain deadline.",
		}),
	}

	reg.MustRegister(
		m.ActiveConnections,
		m.BroadcastsPublished,
		m.BroadcastsReceived,
		m.MessagesDelivered,
		m.SendFailures,
		m.ForcedClosures,
	)
	return m
}
