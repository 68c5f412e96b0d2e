package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/TSherpa10/moodzy/component"
	"github.com/TSherpa10/moodzy/config"
	gatewayhttp "github.com/TSherpa10/moodzy/gateway/http"
	"github.com/TSherpa10/moodzy/health"
	"github.com/TSherpa10/moodzy/input/feed"
	"github.com/TSherpa10/moodzy/metric"
	"github.com/TSherpa10/moodzy/natsclient"
	"github.com/TSherpa10/moodzy/output/websocket"
	"github.com/TSherpa10/moodzy/pkg/tlsutil"
	"github.com/TSherpa10/moodzy/registry"
)

const healthReportInterval = 15 * time.Second

// app is the wired process: one registry behind the gateway, and the feed
// aggregator publishing into the hub.
type app struct {
	logger  *slog.Logger
	metrics *metric.MetricsRegistry
	server  *metric.Server

	store   *registry.Store
	monitor *health.Monitor
	hub     *websocket.Hub
	gateway *gatewayhttp.Gateway
	feed    *feed.Input
}

func newApp(cfg *config.Config, logger *slog.Logger) (*app, error) {
	serverTLS, err := tlsutil.LoadServerTLSConfig(cfg.TLS)
	if err != nil {
		return nil, err
	}

	a := &app{
		logger:  logger,
		monitor: health.NewMonitor(),
	}
	if cfg.Metrics.Enabled {
		a.metrics = metric.NewMetricsRegistry()
		a.server = metric.NewServer(cfg.Metrics.Port, cfg.Metrics.Path, a.metrics)
	}
	deps := component.Dependencies{MetricsRegistry: a.metrics, Logger: logger}

	a.store = registry.New(registry.WithLogger(logger))
	a.hub = websocket.NewHub(websocket.HubDeps{
		Name:         "hub",
		Config:       cfg.Hub,
		Dependencies: deps,
		TLS:          serverTLS,
	})
	a.gateway = gatewayhttp.NewGateway(gatewayhttp.GatewayDeps{
		Name:         "api",
		Config:       cfg.API,
		Store:        a.store,
		Health:       a.monitor,
		Dependencies: deps,
		TLS:          serverTLS,
	})

	natsOpts := append(cfg.NATS.Options(),
		natsclient.WithLogger(logger),
		natsclient.WithMetrics(a.metrics))
	a.feed = feed.NewInput(feed.InputDeps{
		Name:         "feed",
		Config:       cfg.Feed,
		Publisher:    a.hub,
		Dependencies: deps,
		NATSOptions:  natsOpts,
	})

	a.monitor.Track("feed", a.feed)
	a.monitor.Track("hub", a.hub)
	a.monitor.Track("api", a.gateway)
	return a, nil
}

// run supervises every component until ctx ends or one of them fails. The
// first failure cancels the rest and is returned.
func (a *app) run(ctx context.Context, shutdownTimeout time.Duration) error {
	g, gctx := errgroup.WithContext(ctx)

	if a.server != nil {
		g.Go(func() error { return a.server.Run(gctx) })
		g.Go(func() error {
			reportHealth(gctx, a.monitor, a.metrics.CoreMetrics(), healthReportInterval)
			return nil
		})
	}
	g.Go(func() error { return a.hub.Run(gctx) })
	g.Go(func() error { return a.gateway.Run(gctx) })
	g.Go(func() error { return a.feed.Run(gctx) })

	done := make(chan error, 1)
	go func() { done <- g.Wait() }()

	select {
	case err := <-done:
		return err
	case <-gctx.Done():
	}

	a.logger.Info("Shutting down", "timeout", shutdownTimeout)
	select {
	case err := <-done:
		return err
	case <-time.After(shutdownTimeout):
		return fmt.Errorf("shutdown did not finish within %s", shutdownTimeout)
	}
}

// reportHealth mirrors the monitor into the health gauge.
func reportHealth(ctx context.Context, monitor *health.Monitor, core *metric.Metrics, interval time.Duration) {
	record := func() {
		overall := monitor.AggregateHealth(appName)
		for _, sub := range overall.SubStatuses {
			core.RecordHealthStatus(sub.Component, sub.IsHealthy())
		}
		core.RecordHealthStatus(appName, overall.IsHealthy())
	}

	record()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			record()
		}
	}
}
