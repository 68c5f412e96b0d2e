// Package http provides the REST gateway over the user registry.
package http

import (
	"context"
	"crypto/tls"
	stderrors "errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/TSherpa10/moodzy/codec"
	"github.com/TSherpa10/moodzy/component"
	"github.com/TSherpa10/moodzy/errors"
	"github.com/TSherpa10/moodzy/gateway"
	"github.com/TSherpa10/moodzy/health"
	"github.com/TSherpa10/moodzy/metric"
	"github.com/TSherpa10/moodzy/registry"
)

// UserStore is the registry surface the gateway serves.
type UserStore interface {
	Create(ctx context.Context, in registry.CreateInput) (codec.UserRecord, error)
	List(ctx context.Context) ([]codec.UserRecord, error)
	Get(ctx context.Context, id string) (codec.UserRecord, error)
	Update(ctx context.Context, id string, p registry.Patch) (codec.UserRecord, error)
	Delete(ctx context.Context, id string) error
	Clear(ctx context.Context) (int, error)
}

// HealthSource reports system health for GET /health.
type HealthSource interface {
	AggregateHealth(systemName string) health.Status
}

// GatewayDeps holds runtime dependencies for the REST gateway
type GatewayDeps struct {
	Name   string
	Config gateway.Config
	Store  UserStore
	Health HealthSource
	component.Dependencies

	// TLS, when set, serves HTTPS.
	TLS *tls.Config
}

// Gateway implements gateway.Gateway for the user registry.
type Gateway struct {
	name    string
	config  gateway.Config
	store   UserStore
	health  HealthSource
	tls     *tls.Config
	logger  *slog.Logger
	metrics *metric.Metrics
	limiter *rate.Limiter
	engine  *gin.Engine

	// Lifecycle management
	mu       sync.Mutex
	state    component.State
	server   *http.Server
	listener net.Listener
	failed   chan error
	done     chan struct{}
	running  atomic.Bool

	stats           component.Stats
	requestsTotal   atomic.Uint64
	requestsFailed  atomic.Uint64
	requestsSuccess atomic.Uint64
}

var _ gateway.Gateway = (*Gateway)(nil)
var _ UserStore = (*registry.Store)(nil)

// NewGateway creates a REST gateway. The handler is routed immediately so
// it can be used with httptest before Start.
func NewGateway(deps GatewayDeps) *Gateway {
	name := deps.Name
	if name == "" {
		name = "api"
	}

	g := &Gateway{
		name:   name,
		config: deps.Config,
		store:  deps.Store,
		health: deps.Health,
		tls:    deps.TLS,
		logger: deps.GetLoggerWithComponent(name),
		state:  component.StateCreated,
	}
	if deps.MetricsRegistry != nil {
		g.metrics = deps.MetricsRegistry.CoreMetrics()
	}
	if deps.Config.RateLimit > 0 {
		g.limiter = rate.NewLimiter(rate.Limit(deps.Config.RateLimit), deps.Config.RateBurst)
	}
	g.engine = g.routes()
	return g
}

// Handler returns the routed gin engine.
func (g *Gateway) Handler() http.Handler {
	return g.engine
}

// Meta returns component metadata
func (g *Gateway) Meta() component.Metadata {
	return component.Metadata{
		Name:        g.name,
		Type:        "gateway",
		Description: "REST gateway for the user registry",
		Version:     "1.0.0",
	}
}

// InputPorts returns the HTTP listener.
func (g *Gateway) InputPorts() []component.Port {
	scheme := "http"
	if g.tls != nil {
		scheme = "https"
	}
	return []component.Port{{
		Name:        "rest",
		Direction:   component.DirectionInput,
		Protocol:    scheme,
		Address:     fmt.Sprintf("%s://localhost:%d", scheme, g.config.Port),
		Required:    true,
		Description: "User registry REST API",
	}}
}

// OutputPorts returns no output ports (gateway is request/response)
func (g *Gateway) OutputPorts() []component.Port {
	return []component.Port{}
}

// Health returns the current health status
func (g *Gateway) Health() component.HealthStatus {
	return g.stats.Health(g.running.Load())
}

// DataFlow returns current data flow metrics
func (g *Gateway) DataFlow() component.FlowMetrics {
	return g.stats.Flow()
}

// Initialize validates the configuration.
func (g *Gateway) Initialize() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.store == nil {
		return errors.WrapInvalid(
			fmt.Errorf("%w: nil user store", errors.ErrMissingConfig), "Gateway", "Initialize", "store check")
	}
	if err := g.config.Validate(); err != nil {
		return err
	}
	g.state = component.StateInitialized
	return nil
}

// Start binds the configured port and serves in the background.
func (g *Gateway) Start(_ context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.running.Load() {
		return errors.WrapFatal(errors.ErrAlreadyStarted, "Gateway", "Start",
			"gateway already running")
	}
	if g.state == component.StateCreated {
		return errors.WrapInvalid(errors.ErrNotStarted, "Gateway", "Start", "gateway not initialized")
	}

	addr := fmt.Sprintf(":%d", g.config.Port)
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		g.state = component.StateFailed
		return errors.WrapFatal(err, "Gateway", "Start", "listen on "+addr)
	}
	if g.tls != nil {
		listener = tls.NewListener(listener, g.tls)
	}

	g.listener = listener
	g.server = &http.Server{
		Handler:           g.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	g.failed = make(chan error, 1)
	g.done = make(chan struct{})

	server, failed, done := g.server, g.failed, g.done
	go func() {
		defer close(done)
		if err := server.Serve(listener); err != nil && !stderrors.Is(err, http.ErrServerClosed) {
			failed <- errors.WrapFatal(err, "Gateway", "Serve", "serve REST API")
		}
	}()

	g.stats.Reset()
	g.state = component.StateStarted
	g.running.Store(true)
	g.logger.Info("REST gateway started", "address", listener.Addr().String(), "tls", g.tls != nil)
	return nil
}

// Address returns the bound listen address, or "" before Start.
func (g *Gateway) Address() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.listener == nil {
		return ""
	}
	return g.listener.Addr().String()
}

// Stop gracefully stops the REST gateway
func (g *Gateway) Stop(timeout time.Duration) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if !g.running.Load() {
		return nil
	}
	g.running.Store(false)

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	var err error
	if shutdownErr := g.server.Shutdown(ctx); shutdownErr != nil {
		err = errors.WrapTransient(shutdownErr, "Gateway", "Stop", "server shutdown")
	}
	<-g.done

	g.server, g.listener = nil, nil
	g.state = component.StateStopped
	g.logger.Info("REST gateway stopped",
		"requests", g.requestsTotal.Load(),
		"failed", g.requestsFailed.Load())
	return err
}

// Run initializes and starts the gateway, then blocks until ctx ends (nil)
// or the server fails (fatal error).
func (g *Gateway) Run(ctx context.Context) error {
	if err := g.Initialize(); err != nil {
		return err
	}
	if err := g.Start(ctx); err != nil {
		return err
	}

	g.mu.Lock()
	failed := g.failed
	g.mu.Unlock()

	var err error
	select {
	case <-ctx.Done():
	case err = <-failed:
	}
	if stopErr := g.Stop(5 * time.Second); stopErr != nil {
		g.logger.Warn("Gateway shutdown incomplete", "error", stopErr)
	}
	return err
}
