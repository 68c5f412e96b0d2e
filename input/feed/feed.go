package feed

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/TSherpa10/moodzy/codec"
	"github.com/TSherpa10/moodzy/component"
	"github.com/TSherpa10/moodzy/errors"
	"github.com/TSherpa10/moodzy/natsclient"
	"github.com/TSherpa10/moodzy/pkg/timestamp"
)

// ErrNotInitialized is returned by Start before a successful Initialize.
var ErrNotInitialized = stderrors.New("feed not initialized")

const defaultStopTimeout = 5 * time.Second

// InputDeps holds runtime dependencies for the feed aggregator
type InputDeps struct {
	Name      string
	Config    Config
	Publisher Publisher
	component.Dependencies

	// NATSOptions are applied to every connection opened for nats:// endpoints.
	NATSOptions []natsclient.ClientOption

	// Clock stamps relay events. Defaults to timestamp.System.
	Clock timestamp.Clock
}

// Input is the feed aggregator component.
type Input struct {
	name      string
	cfg       Config
	publisher Publisher
	natsOpts  []natsclient.ClientOption
	clock     timestamp.Clock
	logger    *slog.Logger
	metrics   *Metrics

	endpoints []endpoint

	// Lifecycle management
	mu      sync.Mutex
	state   component.State
	sources []source
	cancel  context.CancelFunc
	failed  chan error
	done    chan struct{}
	running atomic.Bool

	stats        component.Stats
	emitted      atomic.Int64
	decodeErrors atomic.Int64
	malformed    atomic.Int64
}

var _ component.Discoverable = (*Input)(nil)
var _ component.LifecycleComponent = (*Input)(nil)

// NewInput creates a feed aggregator. Initialize must run before Start;
// Run does both.
func NewInput(deps InputDeps) *Input {
	name := deps.Name
	if name == "" {
		name = "feed"
	}
	clock := deps.Clock
	if clock == nil {
		clock = timestamp.System
	}
	return &Input{
		name:      name,
		cfg:       deps.Config,
		publisher: deps.Publisher,
		natsOpts:  deps.NATSOptions,
		clock:     clock,
		logger:    deps.GetLoggerWithComponent(name),
		metrics:   newMetrics(deps.MetricsRegistry),
		state:     component.StateCreated,
	}
}

// Meta returns the component metadata
func (i *Input) Meta() component.Metadata {
	return component.Metadata{
		Name:        i.name,
		Type:        "input",
		Description: fmt.Sprintf("Feed aggregator over %d upstream endpoints", len(i.cfg.Endpoints)),
		Version:     "1.0.0",
	}
}

// InputPorts returns one port per configured upstream endpoint.
func (i *Input) InputPorts() []component.Port {
	ports := make([]component.Port, 0, len(i.cfg.Endpoints))
	for _, raw := range i.cfg.Endpoints {
		ep, err := parseEndpoint(raw)
		if err != nil {
			continue
		}
		protocol := transportZMQ
		if !ep.isZMQ() {
			protocol = transportNATS
		}
		ports = append(ports, component.Port{
			Name:        "upstream",
			Direction:   component.DirectionInput,
			Protocol:    protocol,
			Address:     ep.raw,
			Required:    true,
			Description: "Upstream SimUser feed",
		})
	}
	return ports
}

// OutputPorts returns the publisher handoff.
func (i *Input) OutputPorts() []component.Port {
	return []component.Port{{
		Name:        "relay",
		Direction:   component.DirectionOutput,
		Protocol:    "publisher",
		Required:    true,
		Description: "Relay events handed to the broadcast hub",
	}}
}

// Health reports healthy while the receive loop is running.
func (i *Input) Health() component.HealthStatus {
	return i.stats.Health(i.running.Load())
}

// DataFlow returns the current data flow metrics
func (i *Input) DataFlow() component.FlowMetrics {
	return i.stats.Flow()
}

// Emitted returns the number of events handed to the publisher.
func (i *Input) Emitted() int64 {
	return i.emitted.Load()
}

// DecodeErrors returns the number of payloads that failed to decode.
func (i *Input) DecodeErrors() int64 {
	return i.decodeErrors.Load()
}

// Malformed returns the number of messages without frames.
func (i *Input) Malformed() int64 {
	return i.malformed.Load()
}

// Initialize validates the configuration. It performs no I/O.
func (i *Input) Initialize() error {
	i.mu.Lock()
	defer i.mu.Unlock()

	if i.publisher == nil {
		return errors.WrapInvalid(
			fmt.Errorf("%w: nil publisher", errors.ErrMissingConfig), i.name, "Initialize", "publisher validation")
	}
	if err := i.cfg.Validate(); err != nil {
		return err
	}

	eps := make([]endpoint, 0, len(i.cfg.Endpoints))
	for _, raw := range i.cfg.Endpoints {
		ep, err := parseEndpoint(raw)
		if err != nil {
			return err
		}
		eps = append(eps, ep)
	}
	i.endpoints = eps
	i.state = component.StateInitialized
	return nil
}

// Start opens every source and starts the receive loop. A source that cannot
// be opened fails Start with a fatal error and closes the ones already open.
func (i *Input) Start(ctx context.Context) error {
	i.mu.Lock()
	defer i.mu.Unlock()

	if i.running.Load() {
		return nil
	}
	if i.state != component.StateInitialized && i.state != component.StateStopped {
		return errors.WrapInvalid(ErrNotInitialized, i.name, "Start", "state check")
	}

	runCtx, cancel := context.WithCancel(ctx)
	in := make(chan inbound, i.cfg.InboundBuffer)
	i.failed = make(chan error, 1)
	i.done = make(chan struct{})
	failed := i.failed
	var once sync.Once

	fail := func(err error) {
		once.Do(func() {
			i.stats.RecordError(err)
			i.running.Store(false)
			i.logger.Error("Feed transport failed", "error", err)
			failed <- err
		})
	}

	sources := buildSources(i.endpoints, i.cfg, i.natsOpts, i.logger)
	for n, src := range sources {
		if err := src.open(runCtx, in, fail); err != nil {
			i.logger.Error("Feed source failed to open",
				"endpoints", describeEndpoints(src.endpoints()), "error", err)
			cancel()
			for _, opened := range sources[:n] {
				_ = opened.close()
			}
			i.state = component.StateFailed
			return err
		}
	}

	i.sources = sources
	i.cancel = cancel
	i.stats.Reset()
	i.state = component.StateStarted
	i.running.Store(true)

	done := i.done
	go func() {
		defer close(done)
		i.process(runCtx, in)
	}()

	i.logger.Info("Feed aggregator started", "endpoints", len(i.endpoints), "sources", len(sources))
	return nil
}

// Stop cancels the receive loop and closes every source.
func (i *Input) Stop(timeout time.Duration) error {
	i.mu.Lock()
	if i.cancel == nil {
		i.mu.Unlock()
		return nil
	}
	cancel := i.cancel
	sources := i.sources
	done := i.done
	i.cancel = nil
	i.sources = nil
	i.running.Store(false)
	i.mu.Unlock()

	cancel()

	var errs []error
	for _, src := range sources {
		if err := src.close(); err != nil {
			errs = append(errs, errors.Wrap(err, i.name, "Stop", "close source"))
		}
	}

	select {
	case <-done:
	case <-time.After(timeout):
		errs = append(errs, errors.WrapTransient(
			fmt.Errorf("stop timeout after %v", timeout), i.name, "Stop", "graceful shutdown"))
	}

	i.mu.Lock()
	i.state = component.StateStopped
	i.mu.Unlock()

	i.logger.Info("Feed aggregator stopped",
		"emitted", i.emitted.Load(),
		"decode_errors", i.decodeErrors.Load(),
		"malformed", i.malformed.Load())
	return stderrors.Join(errs...)
}

// Run initializes and starts the aggregator, then blocks until ctx is
// cancelled (returns nil) or a transport fails (returns a fatal error).
func (i *Input) Run(ctx context.Context) error {
	if err := i.Initialize(); err != nil {
		return err
	}
	if err := i.Start(ctx); err != nil {
		return err
	}

	i.mu.Lock()
	failed := i.failed
	i.mu.Unlock()

	select {
	case <-ctx.Done():
		if err := i.Stop(defaultStopTimeout); err != nil {
			i.logger.Warn("Feed shutdown incomplete", "error", err)
		}
		return nil
	case err := <-failed:
		if stopErr := i.Stop(defaultStopTimeout); stopErr != nil {
			i.logger.Warn("Feed shutdown incomplete", "error", stopErr)
		}
		i.mu.Lock()
		i.state = component.StateFailed
		i.mu.Unlock()
		return err
	}
}

// process drains the merged inbound channel until ctx ends.
func (i *Input) process(ctx context.Context, in <-chan inbound) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-in:
			i.handle(msg)
		}
	}
}

// handle turns one upstream message into a relay event.
func (i *Input) handle(msg inbound) {
	if len(msg.frames) == 0 {
		i.malformed.Add(1)
		i.metrics.recordMalformed()
		i.logger.Warn("Dropping message without frames", "transport", msg.transport)
		return
	}

	payload := msg.frames[len(msg.frames)-1]
	i.stats.RecordMessage(len(payload))
	i.metrics.recordReceived(msg.transport, len(payload))

	user, err := codec.DecodeSimUser(payload)
	if err != nil {
		i.decodeErrors.Add(1)
		i.stats.RecordError(err)
		i.metrics.recordDecodeError()
		i.logger.Warn("Dropping undecodable payload",
			"transport", msg.transport, "bytes", len(payload), "error", err)
		return
	}

	ev := NewEvent(user, i.clock.Now())
	if err := i.publisher.Publish(ev); err != nil {
		i.metrics.recordRejected()
		i.logger.Debug("Publisher rejected event", "id", ev.Payload.ID, "error", err)
		return
	}
	i.emitted.Add(1)
	i.metrics.recordEmitted()
	i.logger.Debug("Relayed simulated user",
		"id", ev.Payload.ID, "name", ev.Payload.Name, "mood", ev.Payload.Mood)
}

// describeEndpoints is used in logs when Start fails.
func describeEndpoints(eps []endpoint) string {
	raws := make([]string, len(eps))
	for n, ep := range eps {
		raws[n] = ep.raw
	}
	return strings.Join(raws, ",")
}
