// Package worker provides a bounded, non-blocking handoff queue drained by a
// fixed set of goroutines.
package worker

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/TSherpa10/moodzy/metric"
)

// Pool drains submitted items of type T through processor using a fixed
// number of workers. A pool with one worker processes items in submission
// order.
type Pool[T any] struct {
	workers   int
	queueSize int
	processor func(context.Context, T) error

	workChan chan T
	wg       sync.WaitGroup
	metrics  *poolMetrics

	lifecycleMu sync.Mutex
	started     bool
	stopped     bool

	submitted atomic.Int64
	processed atomic.Int64
	failed    atomic.Int64
	dropped   atomic.Int64
	panicked  atomic.Int64

	metricsRegistry *metric.MetricsRegistry
	metricsName     string
}

type poolMetrics struct {
	queueDepth     prometheus.Gauge
	submitted      prometheus.Counter
	processed      prometheus.Counter
	failed         prometheus.Counter
	dropped        prometheus.Counter
	processingTime *prometheus.HistogramVec
}

// Option configures a Pool.
type Option[T any] func(*Pool[T])

// WithMetricsRegistry registers the pool's metrics as moodzy_<name>_pool_*.
func WithMetricsRegistry[T any](registry *metric.MetricsRegistry, name string) Option[T] {
	return func(p *Pool[T]) {
		p.metricsRegistry = registry
		p.metricsName = name
	}
}

// NewPool creates a pool. Non-positive workers and queueSize default to 10 and 1000.
func NewPool[T any](workers, queueSize int, processor func(context.Context, T) error, opts ...Option[T]) *Pool[T] {
	if workers <= 0 {
		workers = 10
	}
	if queueSize <= 0 {
		queueSize = 1000
	}
	if processor == nil {
		panic(ErrNilProcessor)
	}

	p := &Pool[T]{
		workers:   workers,
		queueSize: queueSize,
		processor: processor,
		workChan:  make(chan T, queueSize),
	}
	for _, opt := range opts {
		opt(p)
	}

	if p.metricsRegistry != nil && p.metricsName != "" {
		p.metrics = p.registerMetrics()
	}
	return p
}

func (p *Pool[T]) registerMetrics() *poolMetrics {
	subsystem := p.metricsName + "_pool"
	m := &poolMetrics{
		queueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metric.Namespace, Subsystem: subsystem,
			Name: "queue_depth", Help: "Items waiting in the pool queue",
		}),
		submitted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metric.Namespace, Subsystem: subsystem,
			Name: "submitted_total", Help: "Items accepted by the pool",
		}),
		processed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metric.Namespace, Subsystem: subsystem,
			Name: "processed_total", Help: "Items processed",
		}),
		failed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metric.Namespace, Subsystem: subsystem,
			Name: "failed_total", Help: "Items whose processing returned an error or panicked",
		}),
		dropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metric.Namespace, Subsystem: subsystem,
			Name: "dropped_total", Help: "Items rejected because the queue was full",
		}),
		processingTime: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metric.Namespace, Subsystem: subsystem,
			Name:    "processing_duration_seconds",
			Help:    "Time spent processing one item",
			Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 1.0},
		}, []string{"status"}),
	}

	service := p.metricsName + "_pool"
	// Registration conflicts leave the collector unexported but usable.
	_ = p.metricsRegistry.RegisterGauge(service, "queue_depth", m.queueDepth)
	_ = p.metricsRegistry.RegisterCounter(service, "submitted_total", m.submitted)
	_ = p.metricsRegistry.RegisterCounter(service, "processed_total", m.processed)
	_ = p.metricsRegistry.RegisterCounter(service, "failed_total", m.failed)
	_ = p.metricsRegistry.RegisterCounter(service, "dropped_total", m.dropped)
	_ = p.metricsRegistry.RegisterHistogramVec(service, "processing_duration_seconds", m.processingTime)
	return m
}

// Submit enqueues work without blocking. It returns ErrQueueFull when the
// queue is at capacity; the item is then dropped.
func (p *Pool[T]) Submit(work T) error {
	p.lifecycleMu.Lock()
	defer p.lifecycleMu.Unlock()

	if !p.started {
		return ErrPoolNotStarted
	}
	if p.stopped {
		return ErrPoolStopped
	}

	select {
	case p.workChan <- work:
		p.submitted.Add(1)
		if p.metrics != nil {
			p.metrics.submitted.Inc()
			p.metrics.queueDepth.Set(float64(len(p.workChan)))
		}
		return nil
	default:
		p.dropped.Add(1)
		if p.metrics != nil {
			p.metrics.dropped.Inc()
		}
		return ErrQueueFull
	}
}

// Start launches the workers. They exit when ctx is cancelled or Stop is called.
func (p *Pool[T]) Start(ctx context.Context) error {
	p.lifecycleMu.Lock()
	defer p.lifecycleMu.Unlock()

	if p.started {
		return ErrPoolAlreadyStarted
	}

	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker(ctx)
	}

	p.started = true
	return nil
}

// Stop closes the queue and waits up to timeout for the workers to drain it.
func (p *Pool[T]) Stop(timeout time.Duration) error {
	p.lifecycleMu.Lock()
	defer p.lifecycleMu.Unlock()

	if !p.started || p.stopped {
		return nil
	}

	close(p.workChan)
	p.stopped = true

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-done:
		return nil
	case <-timer.C:
		return ErrStopTimeout
	}
}

// Stats returns a snapshot of the pool counters.
func (p *Pool[T]) Stats() PoolStats {
	return PoolStats{
		Workers:    p.workers,
		QueueSize:  p.queueSize,
		QueueDepth: len(p.workChan),
		Submitted:  p.submitted.Load(),
		Processed:  p.processed.Load(),
		Failed:     p.failed.Load(),
		Dropped:    p.dropped.Load(),
		Panicked:   p.panicked.Load(),
	}
}

// PoolStats is a point-in-time view of a Pool.
type PoolStats struct {
	Workers    int   `json:"workers"`
	QueueSize  int   `json:"queue_size"`
	QueueDepth int   `json:"queue_depth"`
	Submitted  int64 `json:"submitted"`
	Processed  int64 `json:"processed"`
	Failed     int64 `json:"failed"`
	Dropped    int64 `json:"dropped"`
	Panicked   int64 `json:"panicked"`
}

func (p *Pool[T]) worker(ctx context.Context) {
	defer p.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case work, ok := <-p.workChan:
			if !ok {
				return
			}
			p.process(ctx, work)
		}
	}
}

func (p *Pool[T]) process(ctx context.Context, work T) {
	start := time.Now()
	err := p.safeProcess(ctx, work)
	duration := time.Since(start)

	p.processed.Add(1)
	if err != nil {
		p.failed.Add(1)
	}

	if p.metrics != nil {
		status := "success"
		if err != nil {
			status = "error"
			p.metrics.failed.Inc()
		}
		p.metrics.processed.Inc()
		p.metrics.queueDepth.Set(float64(len(p.workChan)))
		p.metrics.processingTime.WithLabelValues(status).Observe(duration.Seconds())
	}
}

// safeProcess turns a processor panic into an error so one bad item cannot
// take a worker down.
func (p *Pool[T]) safeProcess(ctx context.Context, work T) (err error) {
	defer func() {
		if r := recover(); r != nil {
			p.panicked.Add(1)
			err = fmt.Errorf("%w: %v", ErrProcessorPanic, r)
		}
	}()
	return p.processor(ctx, work)
}
