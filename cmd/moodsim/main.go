// Package main provides moodsim, a stand-in for the upstream simulation: it
// binds ZeroMQ PUB sockets and publishes SimUser payloads for moodzy's feed
// aggregator to relay.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-zeromq/zmq4"
	"golang.org/x/sync/errgroup"
)

var version = "dev"

// cliFlags holds parsed command-line flags
type cliFlags struct {
	endpoints   []string
	interval    time.Duration
	population  int
	count       int
	seed        uint64
	verbose     bool
	showVersion bool
}

func defaultEndpoints() string {
	eps := make([]string, 0, 6)
	for port := 9000; port <= 9005; port++ {
		eps = append(eps, fmt.Sprintf("tcp://127.0.0.1:%d", port))
	}
	return strings.Join(eps, ",")
}

func parseCommandLineFlags(args []string, stderr io.Writer) (*cliFlags, error) {
	flags := &cliFlags{}
	var endpoints string

	fs := flag.NewFlagSet("moodsim", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&endpoints, "endpoints", defaultEndpoints(), "Comma-separated ZeroMQ PUB bind addresses")
	fs.DurationVar(&flags.interval, "interval", time.Second, "Pause between messages on each endpoint")
	fs.IntVar(&flags.population, "users", 12, "Number of simulated users")
	fs.IntVar(&flags.count, "count", 0, "Messages per endpoint, 0 for unlimited")
	fs.Uint64Var(&flags.seed, "seed", uint64(time.Now().UnixNano()), "Random seed")
	fs.BoolVar(&flags.verbose, "verbose", false, "Log every published message")
	fs.BoolVar(&flags.showVersion, "version", false, "Show version information")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	if env := os.Getenv("MOODSIM_ENDPOINTS"); env != "" {
		endpoints = env
	}
	for _, ep := range strings.Split(endpoints, ",") {
		if ep = strings.TrimSpace(ep); ep != "" {
			flags.endpoints = append(flags.endpoints, ep)
		}
	}

	switch {
	case len(flags.endpoints) == 0:
		return nil, fmt.Errorf("no endpoints")
	case flags.interval <= 0:
		return nil, fmt.Errorf("interval must be positive")
	case flags.population <= 0:
		return nil, fmt.Errorf("users must be positive")
	case flags.count < 0:
		return nil, fmt.Errorf("count cannot be negative")
	}
	return flags, nil
}

func setupLogger(w io.Writer, verbose bool) *slog.Logger {
	logLevel := slog.LevelInfo
	if verbose {
		logLevel = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: logLevel}))
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		slog.Error("moodsim failed", "error", err)
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	flags, err := parseCommandLineFlags(args, stderr)
	if err != nil {
		return err
	}
	if flags.showVersion {
		_, _ = fmt.Fprintf(stdout, "moodsim version %s\n", version)
		return nil
	}

	logger := setupLogger(stdout, flags.verbose)
	slog.SetDefault(logger)
	sim := newSimulator(flags.population, flags.seed)

	g, gctx := errgroup.WithContext(ctx)
	pubs := make([]zmq4.Socket, 0, len(flags.endpoints))
	for _, ep := range flags.endpoints {
		pub := zmq4.NewPub(gctx)
		if err := pub.Listen(ep); err != nil {
			_ = pub.Close()
			for _, p := range pubs {
				_ = p.Close()
			}
			return fmt.Errorf("listen on %s: %w", ep, err)
		}
		pubs = append(pubs, pub)
	}

	for i, pub := range pubs {
		ep := flags.endpoints[i]
		logger.Info("Publishing", "endpoint", ep, "interval", flags.interval)
		g.Go(func() error {
			defer pub.Close()
			return sim.serve(gctx, pub, flags.interval, flags.count, logger.With("endpoint", ep))
		})
	}
	return g.Wait()
}
