// Package metric provides the Prometheus registry shared by moodzy
// components and the HTTP server that exposes it.
//
// Components receive a *MetricsRegistry through their dependencies and
// register their own collectors under the "moodzy" namespace:
//
//	received := prometheus.NewCounterVec(prometheus.CounterOpts{
//	    Namespace: metric.Namespace,
//	    Subsystem: "feed",
//	    Name:      "messages_received_total",
//	}, []string{"scheme"})
//	if err := registry.RegisterCounterVec("feed", "messages_received_total", received); err != nil {
//	    return err
//	}
//
// A nil registry means metrics are disabled; components then skip
// registration and leave their metric fields nil.
//
// Server exposes the registry at /metrics (OpenMetrics enabled) and a plain
// liveness probe at /health:
//
//	srv := metric.NewServer(9090, "/metrics", registry)
//	g.Go(func() error { return srv.Run(ctx) })
package metric
