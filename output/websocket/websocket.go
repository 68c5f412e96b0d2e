package websocket

import (
	"context"
	"crypto/tls"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/TSherpa10/moodzy/component"
	"github.com/TSherpa10/moodzy/errors"
	"github.com/TSherpa10/moodzy/input/feed"
	"github.com/TSherpa10/moodzy/pkg/worker"
)

// ErrQueueFull is returned by Publish when the broadcast queue is full and the
// event was dropped.
var ErrQueueFull = worker.ErrQueueFull

const readLimit = 4096

// HubDeps holds runtime dependencies for the broadcast hub
type HubDeps struct {
	Name   string
	Config Config
	component.Dependencies

	// Mounted hubs do not listen on their own; serve them through ServeHTTP.
	Mounted bool

	// TLS, when set, serves wss on the hub's own listener.
	TLS *tls.Config
}

// Hub is the broadcast hub component.
type Hub struct {
	name     string
	cfg      Config
	mounted  bool
	tls      *tls.Config
	logger   *slog.Logger
	metrics  *Metrics
	deps     component.Dependencies
	upgrader websocket.Upgrader

	clientsMu sync.RWMutex
	clients   map[*client]struct{}

	// Lifecycle management
	lifecycleMu sync.Mutex
	state       component.State
	running     atomic.Bool
	pool        atomic.Pointer[worker.Pool[feed.Event]]
	server      *http.Server
	listener    net.Listener
	cancel      context.CancelFunc
	failed      chan error
	wg          sync.WaitGroup

	stats      component.Stats
	broadcasts atomic.Int64
	delivered  atomic.Int64
	skipped    atomic.Int64
	dropped    atomic.Int64
	sendErrors atomic.Int64
}

var _ component.LifecycleComponent = (*Hub)(nil)
var _ feed.Publisher = (*Hub)(nil)
var _ http.Handler = (*Hub)(nil)

// NewHub creates a broadcast hub.
func NewHub(deps HubDeps) *Hub {
	name := deps.Name
	if name == "" {
		name = "hub"
	}
	return &Hub{
		name:     name,
		cfg:      deps.Config,
		mounted:  deps.Mounted,
		tls:      deps.TLS,
		logger:   deps.GetLoggerWithComponent(name),
		metrics:  newMetrics(deps.MetricsRegistry),
		deps:     deps.Dependencies,
		upgrader: websocket.Upgrader{
			// live views are served from other origins
			CheckOrigin:     func(_ *http.Request) bool { return true },
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		clients: make(map[*client]struct{}),
		state:   component.StateCreated,
	}
}

// Meta returns the component metadata
func (h *Hub) Meta() component.Metadata {
	return component.Metadata{
		Name:        h.name,
		Type:        "output",
		Description: fmt.Sprintf("Broadcast hub on :%d%s", h.cfg.Port, h.cfg.Path),
		Version:     "1.0.0",
	}
}

// InputPorts returns the relay handoff from the aggregator.
func (h *Hub) InputPorts() []component.Port {
	return []component.Port{{
		Name:        "relay",
		Direction:   component.DirectionInput,
		Protocol:    "publisher",
		Required:    true,
		Description: "Relay events from the feed aggregator",
	}}
}

// OutputPorts returns the websocket endpoint.
func (h *Hub) OutputPorts() []component.Port {
	scheme := "ws"
	if h.tls != nil && !h.mounted {
		scheme = "wss"
	}
	return []component.Port{{
		Name:        "live_view",
		Direction:   component.DirectionOutput,
		Protocol:    "websocket",
		Address:     fmt.Sprintf("%s://localhost:%d%s", scheme, h.cfg.Port, h.cfg.Path),
		Description: "Live-view websocket endpoint",
	}}
}

// Health reports healthy while the hub is running.
func (h *Hub) Health() component.HealthStatus {
	return h.stats.Health(h.running.Load())
}

// DataFlow returns the current data flow metrics
func (h *Hub) DataFlow() component.FlowMetrics {
	return h.stats.Flow()
}

// Initialize validates the configuration.
func (h *Hub) Initialize() error {
	h.lifecycleMu.Lock()
	defer h.lifecycleMu.Unlock()

	if err := h.cfg.Validate(); err != nil {
		return err
	}
	h.state = component.StateInitialized
	return nil
}

// Start launches the broadcast worker, the keepalive loop and, unless the
// hub is mounted, its own HTTP server. A port that cannot be bound fails
// Start with a fatal error.
func (h *Hub) Start(ctx context.Context) error {
	h.lifecycleMu.Lock()
	defer h.lifecycleMu.Unlock()

	if h.running.Load() {
		return nil
	}
	if h.state == component.StateCreated {
		return errors.WrapInvalid(errors.ErrNotStarted, h.name, "Start", "hub not initialized")
	}

	runCtx, cancel := context.WithCancel(ctx)

	pool := worker.NewPool(1, h.cfg.QueueSize, h.broadcast,
		worker.WithMetricsRegistry[feed.Event](h.deps.MetricsRegistry, h.name))
	if err := pool.Start(runCtx); err != nil {
		cancel()
		return errors.WrapFatal(err, h.name, "Start", "start broadcast worker")
	}

	h.failed = make(chan error, 1)
	if !h.mounted {
		addr := fmt.Sprintf(":%d", h.cfg.Port)
		listener, err := net.Listen("tcp", addr)
		if err != nil {
			cancel()
			_ = pool.Stop(time.Second)
			h.state = component.StateFailed
			return errors.WrapFatal(err, h.name, "Start", "listen on "+addr)
		}
		if h.tls != nil {
			listener = tls.NewListener(listener, h.tls)
		}
		mux := http.NewServeMux()
		mux.Handle(h.cfg.Path, h)
		h.listener = listener
		h.server = &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}

		server, failed := h.server, h.failed
		h.wg.Add(1)
		go func() {
			defer h.wg.Done()
			if err := server.Serve(listener); err != nil && !stderrors.Is(err, http.ErrServerClosed) {
				failed <- errors.WrapFatal(err, h.name, "Serve", "serve live view")
			}
		}()
	}

	h.pool.Store(pool)
	h.cancel = cancel
	h.stats.Reset()
	h.state = component.StateStarted
	h.running.Store(true)

	h.wg.Add(1)
	go h.keepalive(runCtx)

	h.logger.Info("Broadcast hub started", "address", h.address(), "path", h.cfg.Path)
	return nil
}

// Address returns the bound listen address, or "" for a mounted hub.
func (h *Hub) Address() string {
	h.lifecycleMu.Lock()
	defer h.lifecycleMu.Unlock()
	return h.address()
}

func (h *Hub) address() string {
	if h.listener == nil {
		return ""
	}
	return h.listener.Addr().String()
}

// Stop closes every client, stops the server and drains the broadcast queue.
func (h *Hub) Stop(timeout time.Duration) error {
	h.lifecycleMu.Lock()
	defer h.lifecycleMu.Unlock()

	if !h.running.Load() {
		return nil
	}
	h.running.Store(false)

	var errs []error
	if h.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		if err := h.server.Shutdown(ctx); err != nil {
			errs = append(errs, errors.Wrap(err, h.name, "Stop", "server shutdown"))
		}
		cancel()
	}

	// Hijacked connections survive server shutdown.
	h.closeAll("shutdown")

	if err := h.pool.Load().Stop(timeout); err != nil {
		errs = append(errs, errors.WrapTransient(err, h.name, "Stop", "drain broadcast queue"))
	}
	h.cancel()

	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(timeout):
		errs = append(errs, errors.WrapTransient(
			fmt.Errorf("stop timeout after %v", timeout), h.name, "Stop", "graceful shutdown"))
	}

	h.pool.Store(nil)
	h.server, h.listener, h.cancel = nil, nil, nil
	h.state = component.StateStopped
	h.logger.Info("Broadcast hub stopped",
		"broadcasts", h.broadcasts.Load(),
		"delivered", h.delivered.Load(),
		"skipped", h.skipped.Load(),
		"dropped", h.dropped.Load())
	return stderrors.Join(errs...)
}

// Run initializes and starts the hub, then blocks until ctx ends (nil) or the
// server fails (fatal error).
func (h *Hub) Run(ctx context.Context) error {
	if err := h.Initialize(); err != nil {
		return err
	}
	if err := h.Start(ctx); err != nil {
		return err
	}

	h.lifecycleMu.Lock()
	failed := h.failed
	h.lifecycleMu.Unlock()

	var err error
	select {
	case <-ctx.Done():
	case err = <-failed:
	}
	if stopErr := h.Stop(5 * time.Second); stopErr != nil {
		h.logger.Warn("Hub shutdown incomplete", "error", stopErr)
	}
	return err
}

// Publish queues ev for broadcast without blocking.
func (h *Hub) Publish(ev feed.Event) error {
	pool := h.pool.Load()
	if pool == nil {
		return errors.WrapTransient(errors.ErrNotStarted, h.name, "Publish", "queue event")
	}
	if err := pool.Submit(ev); err != nil {
		if stderrors.Is(err, worker.ErrQueueFull) {
			h.dropped.Add(1)
			h.metrics.recordDropped()
		}
		return err
	}
	return nil
}

// ClientCount returns the number of clients in the set, in any state.
func (h *Hub) ClientCount() int {
	h.clientsMu.RLock()
	defer h.clientsMu.RUnlock()
	return len(h.clients)
}

// HubStats is a point-in-time view of the hub counters.
type HubStats struct {
	Clients    int   `json:"clients"`
	Broadcasts int64 `json:"broadcasts"`
	Delivered  int64 `json:"delivered"`
	Skipped    int64 `json:"skipped"`
	Dropped    int64 `json:"dropped"`
	SendErrors int64 `json:"send_errors"`
}

// Stats returns the hub counters.
func (h *Hub) Stats() HubStats {
	return HubStats{
		Clients:    h.ClientCount(),
		Broadcasts: h.broadcasts.Load(),
		Delivered:  h.delivered.Load(),
		Skipped:    h.skipped.Load(),
		Dropped:    h.dropped.Load(),
		SendErrors: h.sendErrors.Load(),
	}
}

// ServeHTTP upgrades the request and registers the new client.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !h.running.Load() {
		http.Error(w, "hub not running", http.StatusServiceUnavailable)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// the upgrader has already replied
		h.stats.RecordError(err)
		h.logger.Debug("Websocket upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}

	c := newClient(conn)
	h.clientsMu.Lock()
	h.clients[c] = struct{}{}
	count := len(h.clients)
	h.clientsMu.Unlock()
	h.metrics.recordConnect(count)

	h.wg.Add(1)
	go h.read(c)
}

// read watches the connection for close and drops the client afterwards.
func (h *Hub) read(c *client) {
	defer h.wg.Done()

	conn := c.conn
	conn.SetReadLimit(readLimit)
	idle := 2 * h.cfg.PingInterval
	_ = conn.SetReadDeadline(time.Now().Add(idle))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(idle))
	})

	c.setState(stateOpen)
	h.logger.Debug("Client connected", "remote", conn.RemoteAddr().String())

	for {
		if _, _, err := conn.NextReader(); err != nil {
			reason := "closed"
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				reason = "read_error"
			}
			h.drop(c, reason)
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(idle))
	}
}

// drop moves c to closed and removes it from the client set.
func (h *Hub) drop(c *client, reason string) {
	c.closeOnce.Do(func() {
		c.setState(stateClosed)

		h.clientsMu.Lock()
		delete(h.clients, c)
		count := len(h.clients)
		h.clientsMu.Unlock()

		_ = c.conn.Close()
		h.metrics.recordDisconnect(reason, count)
		h.logger.Debug("Client disconnected", "reason", reason, "clients", count)
	})
}

func (h *Hub) closeAll(reason string) {
	h.clientsMu.RLock()
	clients := make([]*client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.clientsMu.RUnlock()

	msg := websocket.FormatCloseMessage(websocket.CloseGoingAway, reason)
	for _, c := range clients {
		_ = c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
		h.drop(c, reason)
	}
}

func (h *Hub) snapshot() []*client {
	h.clientsMu.RLock()
	defer h.clientsMu.RUnlock()

	clients := make([]*client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	return clients
}

// broadcast runs on the single pool worker, one event at a time.
func (h *Hub) broadcast(_ context.Context, ev feed.Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		h.stats.RecordError(err)
		return errors.WrapInvalid(err, h.name, "broadcast", "marshal event")
	}

	h.broadcasts.Add(1)
	h.metrics.recordBroadcast()
	h.stats.RecordMessage(len(data))

	for _, c := range h.snapshot() {
		if !c.acquire() {
			h.skipped.Add(1)
			h.metrics.recordSkipped()
			continue
		}

		h.wg.Add(1)
		go func(c *client) {
			defer h.wg.Done()
			defer c.release()

			if err := c.write(data, h.cfg.WriteTimeout); err != nil {
				h.sendErrors.Add(1)
				h.metrics.recordSendError()
				h.drop(c, "write_error")
				return
			}
			h.delivered.Add(1)
			h.metrics.recordDelivery(len(data))
		}(c)
	}
	return nil
}

func (h *Hub) keepalive(ctx context.Context) {
	defer h.wg.Done()

	ticker := time.NewTicker(h.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, c := range h.snapshot() {
				if c.State() != stateOpen {
					continue
				}
				if err := c.ping(h.cfg.WriteTimeout); err != nil {
					h.drop(c, "ping_error")
				}
			}
		}
	}
}
