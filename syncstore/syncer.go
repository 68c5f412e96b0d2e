package syncstore

import (
	"context"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/sync/errgroup"

	"github.com/TSherpa10/moodzy/pkg/retry"
)

// DefaultPollInterval is the pull cadence.
const DefaultPollInterval = 2 * time.Second

// SyncerConfig configures a Syncer.
type SyncerConfig struct {
	// HubURL is the broadcast hub's websocket URL. Empty disables push.
	HubURL string

	// PollInterval is the pull cadence. Zero means DefaultPollInterval;
	// negative disables pull.
	PollInterval time.Duration

	// Reconnect paces redials after the push connection drops.
	Reconnect retry.Config

	Dialer *websocket.Dialer
	Logger *slog.Logger
}

// Syncer keeps a Store current by running the pull and push channels side
// by side.
type Syncer struct {
	store    *Store
	hubURL   string
	interval time.Duration
	backoff  retry.Config
	dialer   *websocket.Dialer
	logger   *slog.Logger
}

// NewSyncer creates a Syncer for store.
func NewSyncer(store *Store, cfg SyncerConfig) *Syncer {
	interval := cfg.PollInterval
	if interval == 0 {
		interval = DefaultPollInterval
	}
	backoff := cfg.Reconnect
	if backoff.InitialDelay == 0 {
		backoff = retry.Persistent()
	}
	dialer := cfg.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Syncer{
		store:    store,
		hubURL:   cfg.HubURL,
		interval: interval,
		backoff:  backoff,
		dialer:   dialer,
		logger:   logger.With("component", "syncer"),
	}
}

// Run pulls and listens until ctx ends. It returns nil on cancellation.
func (s *Syncer) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	if s.interval > 0 {
		g.Go(func() error {
			poll(gctx, s.store, s.interval, s.logger)
			return nil
		})
	}
	if s.hubURL != "" {
		g.Go(func() error {
			s.listen(gctx)
			return nil
		})
	}
	return g.Wait()
}

// StartPolling pulls immediately and then every interval until the returned
// stop function is called or ctx ends.
func (s *Store) StartPolling(ctx context.Context, interval time.Duration) (stop func()) {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		poll(ctx, s, interval, s.logger)
	}()
	return func() {
		cancel()
		<-done
	}
}

func poll(ctx context.Context, store *Store, interval time.Duration, logger *slog.Logger) {
	tick := func() {
		if err := store.FetchUsers(ctx); err != nil && ctx.Err() == nil {
			logger.Warn("Pull failed", "error", err)
		}
	}

	tick()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			tick()
		}
	}
}

// listen keeps one push connection open, redialing with backoff.
func (s *Syncer) listen(ctx context.Context) {
	failures := 0
	for ctx.Err() == nil {
		connected, err := s.session(ctx)
		if ctx.Err() != nil {
			return
		}
		if connected {
			failures = 0
		}
		failures++
		wait := s.backoff.Backoff(failures)
		s.logger.Warn("Push connection lost", "error", err, "retry_in", wait)

		select {
		case <-ctx.Done():
			return
		case <-time.After(wait):
		}
	}
}

// session dials the hub and feeds frames to the store until the connection
// fails or ctx ends.
func (s *Syncer) session(ctx context.Context) (connected bool, err error) {
	conn, _, err := s.dialer.DialContext(ctx, s.hubURL, nil)
	if err != nil {
		return false, err
	}
	s.logger.Info("Push connected", "url", s.hubURL)

	stop := context.AfterFunc(ctx, func() {
		_ = conn.Close()
	})
	defer func() {
		stop()
		_ = conn.Close()
	}()

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			return true, err
		}
		if msgType != websocket.TextMessage {
			continue
		}
		// rejected messages are logged by the store
		_ = s.store.HandleMessage(data)
	}
}
