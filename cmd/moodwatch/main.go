// Package main provides moodwatch, a terminal client that mirrors a running
// moodzy: it pulls the registry over REST, follows the live view and logs
// what it sees.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/sync/errgroup"

	"github.com/TSherpa10/moodzy/pkg/security"
	"github.com/TSherpa10/moodzy/pkg/tlsutil"
	"github.com/TSherpa10/moodzy/syncstore"
)

var version = "dev"

// cliFlags holds parsed command-line flags
type cliFlags struct {
	apiURL      string
	hubURL      string
	poll        time.Duration
	report      time.Duration
	add         []syncstore.NewUser
	once        bool
	verbose     bool
	showVersion bool
	tls         security.ClientTLSConfig
	useTLS      bool
}

func parseCommandLineFlags(args []string, stderr io.Writer) (*cliFlags, error) {
	flags := &cliFlags{}
	var add, caFiles string

	fs := flag.NewFlagSet("moodwatch", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&flags.apiURL, "api", syncstore.DefaultBaseURL, "moodzy REST base URL")
	fs.StringVar(&flags.hubURL, "hub", "ws://localhost:9006/sim/publish", "moodzy live-view URL, empty to disable")
	fs.DurationVar(&flags.poll, "poll", syncstore.DefaultPollInterval, "Registry pull interval")
	fs.DurationVar(&flags.report, "report", 5*time.Second, "Summary log interval")
	fs.StringVar(&add, "add", "", "Comma-separated name:mood users to create before watching")
	fs.BoolVar(&flags.once, "once", false, "Print the registry as JSON and exit")
	fs.StringVar(&caFiles, "ca", "", "Comma-separated CA files trusted in addition to the system pool")
	fs.StringVar(&flags.tls.MTLS.CertFile, "cert", "", "Client certificate for mTLS")
	fs.StringVar(&flags.tls.MTLS.KeyFile, "key", "", "Client key for mTLS")
	fs.BoolVar(&flags.tls.InsecureSkipVerify, "insecure", false, "Skip server certificate verification (dev only)")
	fs.BoolVar(&flags.verbose, "verbose", false, "Enable verbose logging")
	fs.BoolVar(&flags.showVersion, "version", false, "Show version information")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	// Support environment variables for Docker Compose
	if env := os.Getenv("MOODWATCH_API_URL"); env != "" {
		flags.apiURL = env
	}
	if env := os.Getenv("MOODWATCH_HUB_URL"); env != "" {
		flags.hubURL = env
	}

	for _, entry := range strings.Split(add, ",") {
		if strings.TrimSpace(entry) == "" {
			continue
		}
		name, mood, ok := strings.Cut(entry, ":")
		if !ok {
			return nil, fmt.Errorf("--add entry %q: expected name:mood", entry)
		}
		flags.add = append(flags.add, syncstore.NewUser{Name: name, Mood: mood})
	}
	if flags.report <= 0 {
		return nil, fmt.Errorf("report interval must be positive")
	}

	for _, ca := range strings.Split(caFiles, ",") {
		if ca = strings.TrimSpace(ca); ca != "" {
			flags.tls.CAFiles = append(flags.tls.CAFiles, ca)
		}
	}
	flags.tls.MTLS.Enabled = flags.tls.MTLS.CertFile != "" || flags.tls.MTLS.KeyFile != ""
	flags.useTLS = len(flags.tls.CAFiles) > 0 || flags.tls.MTLS.Enabled || flags.tls.InsecureSkipVerify
	if err := flags.tls.Validate(); err != nil {
		return nil, err
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
	err := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	if err != nil {
		slog.Error("moodwatch failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	flags, err := parseCommandLineFlags(args, stderr)
	if err != nil {
		return err
	}
	if flags.showVersion {
		_, _ = fmt.Fprintf(stdout, "moodwatch version %s\n", version)
		return nil
	}

	// logs go to stderr so --once output stays parseable
	logger := setupLogger(stderr, flags.verbose)
	clientOpts := []syncstore.ClientOption{syncstore.WithClientLogger(logger)}
	var dialer *websocket.Dialer
	if flags.useTLS {
		tlsConfig, err := tlsutil.LoadClientTLSConfig(flags.tls)
		if err != nil {
			return err
		}
		clientOpts = append(clientOpts, syncstore.WithHTTPClient(&http.Client{
			Timeout:   10 * time.Second,
			Transport: &http.Transport{TLSClientConfig: tlsConfig},
		}))
		dialer = &websocket.Dialer{TLSClientConfig: tlsConfig, HandshakeTimeout: 10 * time.Second}
	}
	client := syncstore.NewAPIClient(flags.apiURL, clientOpts...)
	store := syncstore.New(client, syncstore.WithLogger(logger))

	for _, nu := range flags.add {
		u, err := store.AddUser(ctx, nu)
		if err != nil {
			if issues := syncstore.ValidationIssues(err); len(issues) > 0 {
				return fmt.Errorf("add %q: %s %s", nu.Name, issues[0].Field, issues[0].Message)
			}
			return fmt.Errorf("add %q: %w", nu.Name, err)
		}
		logger.Info("Added user", "id", u.ID, "name", u.Name, "mood", u.Mood)
	}

	if flags.once {
		if err := store.FetchUsers(ctx); err != nil {
			return err
		}
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(store.Users())
	}

	syncer := syncstore.NewSyncer(store, syncstore.SyncerConfig{
		HubURL:       flags.hubURL,
		PollInterval: flags.poll,
		Dialer:       dialer,
		Logger:       logger,
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return syncer.Run(gctx) })
	g.Go(func() error {
		summarize(gctx, store, flags.report, logger)
		return nil
	})
	return g.Wait()
}

// summarize logs the mirror's counts every interval.
func summarize(ctx context.Context, store *syncstore.Store, interval time.Duration, logger *slog.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			attrs := []any{
				"users", store.Count(),
				"real", len(store.RealUsers()),
				"simulated", len(store.FakeUsers()),
				"events_applied", store.Applied(),
				"events_rejected", store.Rejected(),
			}
			if err := store.Err(); err != nil {
				attrs = append(attrs, "last_error", err)
			}
			logger.Info("Mirror", attrs...)
		}
	}
}
