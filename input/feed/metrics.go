package feed

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/TSherpa10/moodzy/metric"
)

// Metrics holds Prometheus metrics for the feed aggregator
type Metrics struct {
	received     *prometheus.CounterVec
	bytes        prometheus.Counter
	emitted      prometheus.Counter
	dropped      prometheus.Counter
	decodeErrors prometheus.Counter
	malformed    prometheus.Counter
	lastActivity prometheus.Gauge
}

// newMetrics creates and registers feed metrics. A nil registry yields nil
// metrics and every record call becomes a no-op.
func newMetrics(registry *metric.MetricsRegistry) *Metrics {
	if registry == nil {
		return nil
	}

	m := &Metrics{
		received: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metric.Namespace,
			Subsystem: "feed",
			Name:      "messages_received_total",
			Help:      "Upstream messages received, by transport",
		}, []string{"transport"}),
		bytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metric.Namespace,
			Subsystem: "feed",
			Name:      "bytes_received_total",
			Help:      "Payload bytes received from upstream feeds",
		}),
		emitted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metric.Namespace,
			Subsystem: "feed",
			Name:      "events_emitted_total",
			Help:      "Relay events handed to the publisher",
		}),
		dropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metric.Namespace,
			Subsystem: "feed",
			Name:      "events_rejected_total",
			Help:      "Relay events the publisher refused",
		}),
		decodeErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metric.Namespace,
			Subsystem: "feed",
			Name:      "decode_errors_total",
			Help:      "Payloads that failed to decode as SimUser",
		}),
		malformed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metric.Namespace,
			Subsystem: "feed",
			Name:      "malformed_total",
			Help:      "Messages without any frame",
		}),
		lastActivity: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metric.Namespace,
			Subsystem: "feed",
			Name:      "last_activity_timestamp",
			Help:      "Unix timestamp of the last upstream message",
		}),
	}

	const service = "feed"
	_ = registry.RegisterCounterVec(service, "messages_received", m.received)
	_ = registry.RegisterCounter(service, "bytes_received", m.bytes)
	_ = registry.RegisterCounter(service, "events_emitted", m.emitted)
	_ = registry.RegisterCounter(service, "events_rejected", m.dropped)
	_ = registry.RegisterCounter(service, "decode_errors", m.decodeErrors)
	_ = registry.RegisterCounter(service, "malformed", m.malformed)
	_ = registry.RegisterGauge(service, "last_activity", m.lastActivity)

	return m
}

func (m *Metrics) recordReceived(transport string, n int) {
	if m == nil {
		return
	}
	m.received.WithLabelValues(transport).Inc()
	m.bytes.Add(float64(n))
	m.lastActivity.SetToCurrentTime()
}

func (m *Metrics) recordEmitted() {
	if m != nil {
		m.emitted.Inc()
	}
}

func (m *Metrics) recordRejected() {
	if m != nil {
		m.dropped.Inc()
	}
}

func (m *Metrics) recordDecodeError() {
	if m != nil {
		m.decodeErrors.Inc()
	}
}

func (m *Metrics) recordMalformed() {
	if m != nil {
		m.malformed.Inc()
	}
}
