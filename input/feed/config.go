package feed

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/TSherpa10/moodzy/errors"
)

// Endpoint schemes
const (
	SchemeTCP    = "tcp"
	SchemeIPC    = "ipc"
	SchemeInproc = "inproc"
	SchemeNATS   = "nats"
)

// Config holds configuration for the feed aggregator
type Config struct {
	// Endpoints lists the upstream feeds, see the package doc for schemes.
	Endpoints []string `json:"endpoints" yaml:"endpoints" env:"ENDPOINTS" envSeparator:","`

	// DialRetries bounds ZeroMQ dial attempts per endpoint before Start fails.
	DialRetries int `json:"dial_retries" yaml:"dial_retries" env:"DIAL_RETRIES"`

	// DialRetryWait is the pause between ZeroMQ dial attempts.
	DialRetryWait time.Duration `json:"dial_retry_wait" yaml:"dial_retry_wait" env:"DIAL_RETRY_WAIT"`

	// InboundBuffer sizes the merged inbound channel.
	InboundBuffer int `json:"inbound_buffer" yaml:"inbound_buffer" env:"INBOUND_BUFFER"`
}

// DefaultConfig returns the six local simulator endpoints on ports 9000-9005.
func DefaultConfig() Config {
	endpoints := make([]string, 0, 6)
	for port := 9000; port <= 9005; port++ {
		endpoints = append(endpoints, fmt.Sprintf("tcp://127.0.0.1:%d", port))
	}
	return Config{
		Endpoints:     endpoints,
		DialRetries:   10,
		DialRetryWait: 250 * time.Millisecond,
		InboundBuffer: 256,
	}
}

// Validate checks every endpoint parses and the numeric settings are sane.
func (c Config) Validate() error {
	if len(c.Endpoints) == 0 {
		return errors.WrapInvalid(
			fmt.Errorf("%w: no endpoints", errors.ErrMissingConfig), "feed", "Validate", "endpoint list")
	}
	for _, raw := range c.Endpoints {
		if _, err := parseEndpoint(raw); err != nil {
			return err
		}
	}
	if c.DialRetries < 0 {
		return errors.WrapInvalid(
			fmt.Errorf("%w: dial_retries %d", errors.ErrInvalidConfig, c.DialRetries),
			"feed", "Validate", "dial retries")
	}
	if c.InboundBuffer < 0 {
		return errors.WrapInvalid(
			fmt.Errorf("%w: inbound_buffer %d", errors.ErrInvalidConfig, c.InboundBuffer),
			"feed", "Validate", "inbound buffer")
	}
	return nil
}

// endpoint is a parsed upstream address.
type endpoint struct {
	raw    string
	scheme string

	// NATS only
	server  string
	subject string
}

func (e endpoint) isZMQ() bool {
	return e.scheme != SchemeNATS
}

func parseEndpoint(raw string) (endpoint, error) {
	raw = strings.TrimSpace(raw)
	invalid := func(reason string) error {
		return errors.WrapInvalid(
			fmt.Errorf("%w: endpoint %q: %s", errors.ErrInvalidConfig, raw, reason),
			"feed", "parseEndpoint", "endpoint parsing")
	}

	scheme, rest, ok := strings.Cut(raw, "://")
	if !ok || rest == "" {
		return endpoint{}, invalid("expected scheme://address")
	}

	switch scheme {
	case SchemeTCP:
		if !strings.Contains(rest, ":") {
			return endpoint{}, invalid("tcp endpoints need host:port")
		}
		return endpoint{raw: raw, scheme: scheme}, nil
	case SchemeIPC, SchemeInproc:
		return endpoint{raw: raw, scheme: scheme}, nil
	case SchemeNATS:
		u, err := url.Parse(raw)
		if err != nil || u.Host == "" {
			return endpoint{}, invalid("nats endpoints need a host")
		}
		subject := strings.Trim(u.Path, "/")
		if subject == "" {
			subject = ">"
		}
		server := (&url.URL{Scheme: u.Scheme, User: u.User, Host: u.Host}).String()
		return endpoint{raw: raw, scheme: scheme, server: server, subject: subject}, nil
	default:
		return endpoint{}, invalid("unsupported scheme " + scheme)
	}
}
