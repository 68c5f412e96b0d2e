package gateway

import (
	"fmt"
	"time"

	"github.com/TSherpa10/moodzy/errors"
)

// Config holds configuration for gateway components
type Config struct {
	// Port the gateway listens on. Zero picks a free port.
	Port int `json:"port" yaml:"port" env:"PORT"`

	// CORSOrigins lists allowed origins. "*" allows any origin.
	CORSOrigins []string `json:"cors_origins" yaml:"cors_origins" env:"CORS_ORIGINS" envSeparator:","`

	// MaxRequestSize limits request bodies in bytes.
	MaxRequestSize int64 `json:"max_request_size" yaml:"max_request_size" env:"MAX_REQUEST_SIZE"`

	// RequestTimeout bounds each handler's store call.
	RequestTimeout time.Duration `json:"request_timeout" yaml:"request_timeout" env:"REQUEST_TIMEOUT"`

	// RateLimit caps requests per second across all clients. Zero disables.
	RateLimit float64 `json:"rate_limit" yaml:"rate_limit" env:"RATE_LIMIT"`

	// RateBurst is the token bucket size when RateLimit is set.
	RateBurst int `json:"rate_burst" yaml:"rate_burst" env:"RATE_BURST"`
}

// Validate ensures the gateway configuration is valid
func (c Config) Validate() error {
	if c.Port < 0 || c.Port > 65535 {
		return errors.WrapInvalid(
			fmt.Errorf("%w: port %d out of range", errors.ErrInvalidConfig, c.Port),
			"Config", "Validate", "port check")
	}

	if c.MaxRequestSize <= 0 {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "Validate",
			"max_request_size must be positive")
	}
	if c.MaxRequestSize > 10*1024*1024 {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "Validate",
			"max_request_size cannot exceed 10MB")
	}

	if c.RequestTimeout < 100*time.Millisecond || c.RequestTimeout > 30*time.Second {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "Validate",
			"request_timeout must be between 100ms and 30s")
	}

	if c.RateLimit < 0 {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "Validate",
			"rate_limit cannot be negative")
	}
	if c.RateLimit > 0 && c.RateBurst < 1 {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "Validate",
			"rate_burst must be at least 1 when rate_limit is set")
	}

	for _, origin := range c.CORSOrigins {
		if origin == "" {
			return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "Validate",
				"cors_origins cannot contain empty entries")
		}
	}
	return nil
}

// AllowsOrigin reports whether origin may make cross-origin requests.
func (c Config) AllowsOrigin(origin string) bool {
	for _, allowed := range c.CORSOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	return false
}

// DefaultConfig returns default gateway configuration: port 3000 with
// cross-origin requests allowed from anywhere.
func DefaultConfig() Config {
	return Config{
		Port:           3000,
		CORSOrigins:    []string{"*"},
		MaxRequestSize: 64 * 1024,
		RequestTimeout: 5 * time.Second,
		RateBurst:      20,
	}
}
