// Package health turns component health into the report served on /health.
//
// A Status is one of three states:
//   - healthy: operating normally
//   - degraded: operating with reduced functionality
//   - unhealthy: not functioning
//
// The Monitor tracks two kinds of entries: statuses pushed with Update (for
// example the NATS connection state) and Reporters polled on every
// AggregateHealth call (the feed aggregator and the broadcast hub, which
// implement Health() component.HealthStatus).
//
//	monitor := health.NewMonitor()
//	monitor.Track("feed", feedInput)
//	monitor.Track("hub", hub)
//	monitor.UpdateDegraded("nats", "reconnecting")
//
//	report := monitor.AggregateHealth("moodzy")
//	if !report.IsHealthy() {
//	    // /health answers 503
//	}
//
// Aggregation rules: any unhealthy entry makes the aggregate unhealthy, else
// any degraded entry makes it degraded, else it is healthy. Sub-statuses are
// ordered by component name.
//
// Error messages taken from component health are sanitized so URLs, paths,
// addresses and credentials never reach the HTTP response.
package health
