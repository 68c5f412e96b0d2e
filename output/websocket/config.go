package websocket

import (
	"fmt"
	"strings"
	"time"

	"github.com/TSherpa10/moodzy/errors"
)

// Config holds configuration for the broadcast hub
type Config struct {
	// Port the hub listens on. Zero picks a free port.
	Port int `json:"port" yaml:"port" env:"PORT"`

	// Path of the websocket endpoint.
	Path string `json:"path" yaml:"path" env:"PATH"`

	// QueueSize bounds events waiting for broadcast.
	QueueSize int `json:"queue_size" yaml:"queue_size" env:"QUEUE_SIZE"`

	// WriteTimeout is the per-client write deadline.
	WriteTimeout time.Duration `json:"write_timeout" yaml:"write_timeout" env:"WRITE_TIMEOUT"`

	// PingInterval is the keepalive period.
	PingInterval time.Duration `json:"ping_interval" yaml:"ping_interval" env:"PING_INTERVAL"`
}

// DefaultConfig returns the live-view defaults: ":9006/sim/publish".
func DefaultConfig() Config {
	return Config{
		Port:         9006,
		Path:         "/sim/publish",
		QueueSize:    256,
		WriteTimeout: 5 * time.Second,
		PingInterval: 30 * time.Second,
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	invalid := func(format string, args ...any) error {
		return errors.WrapInvalid(
			fmt.Errorf("%w: "+format, append([]any{errors.ErrInvalidConfig}, args...)...),
			"hub", "Validate", "config validation")
	}

	if c.Port < 0 || c.Port > 65535 {
		return invalid("port %d out of range", c.Port)
	}
	if !strings.HasPrefix(c.Path, "/") {
		return invalid("path %q must start with /", c.Path)
	}
	if c.QueueSize <= 0 {
		return invalid("queue_size must be positive")
	}
	if c.WriteTimeout <= 0 {
		return invalid("write_timeout must be positive")
	}
	if c.PingInterval <= 0 {
		return invalid("ping_interval must be positive")
	}
	return nil
}
