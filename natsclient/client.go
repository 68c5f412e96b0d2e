// Package natsclient wraps a core NATS connection with status tracking, a
// simple circuit breaker and slog logging.
package natsclient

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/TSherpa10/moodzy/errors"
	"github.com/TSherpa10/moodzy/metric"
)

// ConnectionStatus represents the state of the NATS connection
type ConnectionStatus int

// Possible connection statuses
const (
	StatusDisconnected ConnectionStatus = iota
	StatusConnecting
	StatusConnected
	StatusReconnecting
	StatusCircuitOpen
	StatusClosed
)

// String returns the string representation of ConnectionStatus
func (s ConnectionStatus) String() string {
	switch s {
	case StatusDisconnected:
		return "disconnected"
	case StatusConnecting:
		return "connecting"
	case StatusConnected:
		return "connected"
	case StatusReconnecting:
		return "reconnecting"
	case StatusCircuitOpen:
		return "circuit_open"
	case StatusClosed:
		return "closed"
	default:
		return "unknown"
	}
}

var (
	ErrNotConnected = stderrors.New("not connected to NATS")
	ErrCircuitOpen  = stderrors.New("circuit breaker is open")
)

// Client manages one NATS connection.
type Client struct {
	url    string
	logger *slog.Logger

	status   atomic.Value // ConnectionStatus
	failures atomic.Int32
	closed   atomic.Bool

	circuitThreshold int32
	circuitOpenFor   time.Duration

	maxReconnects int
	reconnectWait time.Duration
	pingInterval  time.Duration
	timeout       time.Duration
	drainTimeout  time.Duration
	clientName    string
	username      string
	password      string
	token         string

	metrics *metric.Metrics

	onReconnect      func()
	onConnectionLost func(error)

	mu   sync.RWMutex
	conn *nats.Conn
	subs []*nats.Subscription
}

// NewClient creates an unconnected client for url.
func NewClient(url string, opts ...ClientOption) (*Client, error) {
	c := &Client{
		url:              url,
		logger:           slog.Default(),
		maxReconnects:    -1,
		reconnectWait:    2 * time.Second,
		pingInterval:     30 * time.Second,
		timeout:          5 * time.Second,
		drainTimeout:     10 * time.Second,
		circuitThreshold: 5,
		circuitOpenFor:   30 * time.Second,
	}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, errors.WrapInvalid(err, "Client", "NewClient", "apply option")
		}
	}
	c.logger = c.logger.With("component", "natsclient", "url", url)
	c.status.Store(StatusDisconnected)
	return c, nil
}

// URL returns the NATS server URL
func (c *Client) URL() string {
	return c.url
}

// Status returns the current connection status
func (c *Client) Status() ConnectionStatus {
	return c.status.Load().(ConnectionStatus)
}

func (c *Client) setStatus(s ConnectionStatus) {
	c.status.Store(s)
	if c.metrics != nil {
		c.metrics.RecordNATSStatus(s == StatusConnected)
	}
}

// IsHealthy reports whether the connection is up.
func (c *Client) IsHealthy() bool {
	return c.Status() == StatusConnected
}

// Failures returns consecutive failed connection attempts.
func (c *Client) Failures() int32 {
	return c.failures.Load()
}

// GetConnection returns the underlying connection, or nil.
func (c *Client) GetConnection() *nats.Conn {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.conn
}

func (c *Client) connectionOptions() []nats.Option {
	opts := []nats.Option{
		nats.MaxReconnects(c.maxReconnects),
		nats.ReconnectWait(c.reconnectWait),
		nats.PingInterval(c.pingInterval),
		nats.Timeout(c.timeout),
		nats.DrainTimeout(c.drainTimeout),
		nats.DisconnectErrHandler(c.handleDisconnect),
		nats.ReconnectHandler(c.handleReconnect),
		nats.ClosedHandler(c.handleClosed),
		nats.ErrorHandler(c.handleError),
	}
	if c.username != "" && c.password != "" {
		opts = append(opts, nats.UserInfo(c.username, c.password))
	}
	if c.token != "" {
		opts = append(opts, nats.Token(c.token))
	}
	if c.clientName != "" {
		opts = append(opts, nats.Name(c.clientName))
	}
	return opts
}

// recordFailure counts a failed attempt and opens the circuit once the
// threshold is reached. The circuit half-opens after circuitOpenFor.
func (c *Client) recordFailure() {
	n := c.failures.Add(1)
	if n < c.circuitThreshold {
		return
	}
	if c.status.CompareAndSwap(StatusDisconnected, StatusCircuitOpen) ||
		c.status.CompareAndSwap(StatusConnecting, StatusCircuitOpen) {
		c.logger.Warn("circuit breaker opened", "failures", n, "open_for", c.circuitOpenFor)
		time.AfterFunc(c.circuitOpenFor, func() {
			if c.status.CompareAndSwap(StatusCircuitOpen, StatusDisconnected) {
				c.failures.Store(0)
			}
		})
	}
}

// Connect dials the server. ctx bounds the attempt.
func (c *Client) Connect(ctx context.Context) error {
	if c.closed.Load() {
		return errors.WrapInvalid(errors.ErrShuttingDown, "Client", "Connect", "connect closed client")
	}
	if c.Status() == StatusCircuitOpen {
		return errors.WrapTransient(ErrCircuitOpen, "Client", "Connect", "establish connection")
	}

	c.setStatus(StatusConnecting)
	c.logger.Info("connecting to NATS")

	type result struct {
		conn *nats.Conn
		err  error
	}
	done := make(chan result, 1)
	go func() {
		conn, err := nats.Connect(c.url, c.connectionOptions()...)
		done <- result{conn, err}
	}()

	select {
	case r := <-done:
		if r.err != nil {
			c.setStatus(StatusDisconnected)
			c.recordFailure()
			return errors.WrapTransient(r.err, "Client", "Connect", "establish connection")
		}
		c.mu.Lock()
		c.conn = r.conn
		c.mu.Unlock()
	case <-ctx.Done():
		c.setStatus(StatusDisconnected)
		c.recordFailure()
		// a late connection must not leak
		go func() {
			if r := <-done; r.conn != nil {
				r.conn.Close()
			}
		}()
		return errors.WrapTransient(ctx.Err(), "Client", "Connect", "connection cancelled")
	}

	c.failures.Store(0)
	c.setStatus(StatusConnected)
	c.logger.Info("connected to NATS")
	return nil
}

// WaitForConnection blocks until the client is connected or ctx ends.
func (c *Client) WaitForConnection(ctx context.Context) error {
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()

	for {
		if c.IsHealthy() {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: %w", errors.ErrConnectionTimeout, ctx.Err())
		case <-ticker.C:
		}
	}
}

// Subscribe delivers each message on subject to handler. The handler's
// context is cancelled when ctx is.
func (c *Client) Subscribe(ctx context.Context, subject string, handler func(context.Context, []byte)) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil || !c.conn.IsConnected() {
		return ErrNotConnected
	}

	sub, err := c.conn.Subscribe(subject, func(msg *nats.Msg) {
		if ctx.Err() != nil {
			return
		}
		handler(ctx, msg.Data)
	})
	if err != nil {
		return errors.WrapTransient(err, "Client", "Subscribe", "subscribe to "+subject)
	}
	c.subs = append(c.subs, sub)
	return nil
}

// Publish sends data on subject.
func (c *Client) Publish(_ context.Context, subject string, data []byte) error {
	c.mu.RLock()
	conn := c.conn
	c.mu.RUnlock()

	if conn == nil || !conn.IsConnected() {
		return ErrNotConnected
	}
	return conn.Publish(subject, data)
}

// Flush waits for the server to acknowledge everything published so far.
func (c *Client) Flush(ctx context.Context) error {
	c.mu.RLock()
	conn := c.conn
	c.mu.RUnlock()

	if conn == nil {
		return ErrNotConnected
	}
	return conn.FlushWithContext(ctx)
}

// Close unsubscribes, drains and closes the connection. Safe to call twice.
func (c *Client) Close(ctx context.Context) error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}

	c.mu.Lock()
	conn := c.conn
	subs := c.subs
	c.conn, c.subs = nil, nil
	c.username, c.password, c.token = "", "", ""
	c.mu.Unlock()

	var errs []error
	for _, sub := range subs {
		if err := sub.Unsubscribe(); err != nil && !stderrors.Is(err, nats.ErrConnectionClosed) {
			errs = append(errs, errors.Wrap(err, "Client", "Close", "unsubscribe"))
		}
	}

	if conn != nil {
		drainDone := make(chan error, 1)
		go func() { drainDone <- conn.Drain() }()

		select {
		case err := <-drainDone:
			if err != nil && !stderrors.Is(err, nats.ErrConnectionClosed) {
				errs = append(errs, errors.Wrap(err, "Client", "Close", "drain connection"))
			}
		case <-time.After(c.drainTimeout):
			errs = append(errs, errors.WrapTransient(
				fmt.Errorf("drain timeout after %v", c.drainTimeout), "Client", "Close", "drain"))
		case <-ctx.Done():
			errs = append(errs, errors.Wrap(ctx.Err(), "Client", "Close", "drain"))
		}
		conn.Close()
	}

	c.setStatus(StatusClosed)
	return stderrors.Join(errs...)
}

func (c *Client) handleDisconnect(_ *nats.Conn, err error) {
	if c.closed.Load() {
		return
	}
	c.setStatus(StatusReconnecting)
	c.logger.Warn("NATS disconnected", "error", err)
}

func (c *Client) handleReconnect(_ *nats.Conn) {
	c.setStatus(StatusConnected)
	if c.metrics != nil {
		c.metrics.RecordNATSReconnect()
	}
	c.logger.Info("NATS reconnected")
	if c.onReconnect != nil {
		go c.onReconnect()
	}
}

// handleClosed fires once the connection is permanently gone. Unless Close
// caused it, the connection-lost callback is told.
func (c *Client) handleClosed(conn *nats.Conn) {
	if c.closed.Load() {
		return
	}
	c.setStatus(StatusDisconnected)

	err := errors.ErrConnectionLost
	if last := conn.LastError(); last != nil {
		err = fmt.Errorf("%w: %w", errors.ErrConnectionLost, last)
	}
	c.logger.Error("NATS connection closed", "error", err)
	if c.onConnectionLost != nil {
		go c.onConnectionLost(err)
	}
}

func (c *Client) handleError(_ *nats.Conn, sub *nats.Subscription, err error) {
	subject := ""
	if sub != nil {
		subject = sub.Subject
	}
	c.logger.Error("NATS async error", "subject", subject, "error", err)
}
