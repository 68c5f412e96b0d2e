// Package worker provides Pool, a generic bounded queue drained by a fixed
// number of goroutines.
//
// Submit never blocks: when the queue is full the item is dropped and
// ErrQueueFull is returned. That makes a Pool a safe one-way handoff from a
// producer that must keep moving (the feed receive loop) to a consumer that
// may be slow (websocket fan-out):
//
//	pool := worker.NewPool(1, 256, hub.broadcast,
//	    worker.WithMetricsRegistry[feed.Event](registry, "hub"))
//	if err := pool.Start(ctx); err != nil {
//	    return err
//	}
//	defer pool.Stop(5 * time.Second)
//
//	if err := pool.Submit(ev); errors.Is(err, worker.ErrQueueFull) {
//	    // event dropped
//	}
//
// With a single worker items are processed in submission order. A processor
// panic is recovered, counted and reported as ErrProcessorPanic.
package worker
