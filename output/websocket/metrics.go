package websocket

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/TSherpa10/moodzy/metric"
)

// Metrics holds Prometheus metrics for the broadcast hub
type Metrics struct {
	clientsConnected   prometheus.Gauge
	connectionTotal    prometheus.Counter
	disconnectionTotal *prometheus.CounterVec
	eventsBroadcast    prometheus.Counter
	deliveries         prometheus.Counter
	bytesSent          prometheus.Counter
	skipped            prometheus.Counter
	dropped            prometheus.Counter
	sendErrors         prometheus.Counter
}

// newMetrics creates and registers hub metrics. Nil registry, nil metrics.
func newMetrics(registry *metric.MetricsRegistry) *Metrics {
	if registry == nil {
		return nil
	}

	counter := func(name, help string) prometheus.Counter {
		return prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metric.Namespace,
			Subsystem: "hub",
			Name:      name,
			Help:      help,
		})
	}

	m := &Metrics{
		clientsConnected: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metric.Namespace,
			Subsystem: "hub",
			Name:      "clients_connected",
			Help:      "Number of currently connected live-view clients",
		}),
		connectionTotal: counter("client_connections_total", "Client connections accepted"),
		disconnectionTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metric.Namespace,
			Subsystem: "hub",
			Name:      "client_disconnections_total",
			Help:      "Client disconnections by reason",
		}, []string{"reason"}),
		eventsBroadcast: counter("events_broadcast_total", "Events broadcast to the client set"),
		deliveries:      counter("deliveries_total", "Frames written to clients"),
		bytesSent:       counter("bytes_sent_total", "Bytes written to clients"),
		skipped:         counter("skipped_total", "Per-client sends skipped because the client was not ready"),
		dropped:         counter("dropped_total", "Events dropped because the broadcast queue was full"),
		sendErrors:      counter("send_errors_total", "Per-client writes that failed"),
	}

	const service = "hub"
	_ = registry.RegisterGauge(service, "clients_connected", m.clientsConnected)
	_ = registry.RegisterCounter(service, "client_connections", m.connectionTotal)
	_ = registry.RegisterCounterVec(service, "client_disconnections", m.disconnectionTotal)
	_ = registry.RegisterCounter(service, "events_broadcast", m.eventsBroadcast)
	_ = registry.RegisterCounter(service, "deliveries", m.deliveries)
	_ = registry.RegisterCounter(service, "bytes_sent", m.bytesSent)
	_ = registry.RegisterCounter(service, "skipped", m.skipped)
	_ = registry.RegisterCounter(service, "dropped", m.dropped)
	_ = registry.RegisterCounter(service, "send_errors", m.sendErrors)
	return m
}

func (m *Metrics) recordConnect(clients int) {
	if m == nil {
		return
	}
	m.connectionTotal.Inc()
	m.clientsConnected.Set(float64(clients))
}

func (m *Metrics) recordDisconnect(reason string, clients int) {
	if m == nil {
		return
	}
	m.disconnectionTotal.WithLabelValues(reason).Inc()
	m.clientsConnected.Set(float64(clients))
}

func (m *Metrics) recordBroadcast() {
	if m != nil {
		m.eventsBroadcast.Inc()
	}
}

func (m *Metrics) recordDelivery(n int) {
	if m == nil {
		return
	}
	m.deliveries.Inc()
	m.bytesSent.Add(float64(n))
}

func (m *Metrics) recordSkipped() {
	if m != nil {
		m.skipped.Inc()
	}
}

func (m *Metrics) recordDropped() {
	if m != nil {
		m.dropped.Inc()
	}
}

func (m *Metrics) recordSendError() {
	if m != nil {
		m.sendErrors.Inc()
	}
}
