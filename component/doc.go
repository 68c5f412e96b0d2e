// Package component defines the lifecycle and discovery contract shared by the
// long-running moodzy components (the feed aggregator and the broadcast hub).
//
// Components follow a three step lifecycle:
//
//	Initialize() error                  // validate and allocate, no I/O
//	Start(ctx context.Context) error    // open sockets, spawn goroutines
//	Stop(timeout time.Duration) error   // graceful shutdown, bounded
//
// Every component is also Discoverable: it reports its metadata, the ports it
// reads from and writes to, a HealthStatus and FlowMetrics. The health package
// turns these into the aggregated report served on /health.
//
// Stats is the bookkeeping helper components embed to produce HealthStatus and
// FlowMetrics from atomic counters:
//
//	type Input struct {
//		stats component.Stats
//	}
//
//	func (i *Input) Health() component.HealthStatus {
//		return i.stats.Health(i.running.Load())
//	}
package component
