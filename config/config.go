package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"github.com/TSherpa10/moodzy/errors"
	"github.com/TSherpa10/moodzy/gateway"
	"github.com/TSherpa10/moodzy/input/feed"
	"github.com/TSherpa10/moodzy/natsclient"
	"github.com/TSherpa10/moodzy/output/websocket"
	"github.com/TSherpa10/moodzy/pkg/security"
)

// DefaultEnvPrefix prefixes every environment override.
const DefaultEnvPrefix = "MOODZY_"

// Config is the complete moodzy configuration.
type Config struct {
	API     gateway.Config   `json:"api" yaml:"api" envPrefix:"API_"`
	Hub     websocket.Config `json:"hub" yaml:"hub" envPrefix:"HUB_"`
	Feed    feed.Config      `json:"feed" yaml:"feed" envPrefix:"FEED_"`
	NATS    NATSConfig       `json:"nats" yaml:"nats" envPrefix:"NATS_"`
	Metrics MetricsConfig    `json:"metrics" yaml:"metrics" envPrefix:"METRICS_"`
	Log     LogConfig        `json:"log" yaml:"log" envPrefix:"LOG_"`

	// TLS applies to both the REST and the live-view listener.
	TLS security.ServerTLSConfig `json:"tls" yaml:"tls" envPrefix:"TLS_"`
}

// NATSConfig applies to connections opened for nats:// feed endpoints.
type NATSConfig struct {
	Name          string        `json:"name,omitempty" yaml:"name,omitempty" env:"NAME"`
	MaxReconnects int           `json:"max_reconnects" yaml:"max_reconnects" env:"MAX_RECONNECTS"`
	ReconnectWait time.Duration `json:"reconnect_wait" yaml:"reconnect_wait" env:"RECONNECT_WAIT"`
	Timeout       time.Duration `json:"timeout" yaml:"timeout" env:"TIMEOUT"`
	PingInterval  time.Duration `json:"ping_interval" yaml:"ping_interval" env:"PING_INTERVAL"`
	DrainTimeout  time.Duration `json:"drain_timeout" yaml:"drain_timeout" env:"DRAIN_TIMEOUT"`
	Username      string        `json:"username,omitempty" yaml:"username,omitempty" env:"USERNAME"`
	Password      string        `json:"password,omitempty" yaml:"password,omitempty" env:"PASSWORD"`
	Token         string        `json:"token,omitempty" yaml:"token,omitempty" env:"TOKEN"`
}

// Options converts the section into client options.
func (n NATSConfig) Options() []natsclient.ClientOption {
	var opts []natsclient.ClientOption
	if n.Name != "" {
		opts = append(opts, natsclient.WithName(n.Name))
	}
	if n.MaxReconnects != 0 {
		opts = append(opts, natsclient.WithMaxReconnects(n.MaxReconnects))
	}
	if n.ReconnectWait > 0 {
		opts = append(opts, natsclient.WithReconnectWait(n.ReconnectWait))
	}
	if n.Timeout > 0 {
		opts = append(opts, natsclient.WithTimeout(n.Timeout))
	}
	if n.PingInterval > 0 {
		opts = append(opts, natsclient.WithPingInterval(n.PingInterval))
	}
	if n.DrainTimeout > 0 {
		opts = append(opts, natsclient.WithDrainTimeout(n.DrainTimeout))
	}
	if n.Username != "" {
		opts = append(opts, natsclient.WithCredentials(n.Username, n.Password))
	}
	if n.Token != "" {
		opts = append(opts, natsclient.WithToken(n.Token))
	}
	return opts
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `json:"enabled" yaml:"enabled" env:"ENABLED"`
	Port    int    `json:"port" yaml:"port" env:"PORT"`
	Path    string `json:"path" yaml:"path" env:"PATH"`
}

// LogConfig selects the log level and handler.
type LogConfig struct {
	Level  string `json:"level" yaml:"level" env:"LEVEL"`
	Format string `json:"format" yaml:"format" env:"FORMAT"`
}

// Default returns the configuration used when no layer overrides a value.
func Default() *Config {
	return &Config{
		API:  gateway.DefaultConfig(),
		Hub:  websocket.DefaultConfig(),
		Feed: feed.DefaultConfig(),
		NATS: NATSConfig{
			Name:          "moodzy",
			MaxReconnects: -1,
			ReconnectWait: 2 * time.Second,
			Timeout:       5 * time.Second,
			PingInterval:  30 * time.Second,
			DrainTimeout:  10 * time.Second,
		},
		Metrics: MetricsConfig{Enabled: true, Port: 9090, Path: "/metrics"},
		Log:     LogConfig{Level: "info", Format: "text"},
	}
}

// Validate checks every section.
func (c *Config) Validate() error {
	if err := c.API.Validate(); err != nil {
		return fmt.Errorf("api: %w", err)
	}
	if err := c.Hub.Validate(); err != nil {
		return fmt.Errorf("hub: %w", err)
	}
	if err := c.Feed.Validate(); err != nil {
		return fmt.Errorf("feed: %w", err)
	}
	if err := c.TLS.Validate(); err != nil {
		return fmt.Errorf("tls: %w", err)
	}
	if c.Metrics.Enabled {
		if c.Metrics.Port < 0 || c.Metrics.Port > 65535 {
			return errors.WrapInvalid(
				fmt.Errorf("%w: metrics port %d out of range", errors.ErrInvalidConfig, c.Metrics.Port),
				"Config", "Validate", "metrics port check")
		}
		if !strings.HasPrefix(c.Metrics.Path, "/") {
			return errors.WrapInvalid(
				fmt.Errorf("%w: metrics path %q must start with /", errors.ErrInvalidConfig, c.Metrics.Path),
				"Config", "Validate", "metrics path check")
		}
		if c.Metrics.Port != 0 && (c.Metrics.Port == c.API.Port || c.Metrics.Port == c.Hub.Port) {
			return errors.WrapInvalid(
				fmt.Errorf("%w: metrics port %d already in use", errors.ErrInvalidConfig, c.Metrics.Port),
				"Config", "Validate", "port conflict check")
		}
	}
	if c.API.Port != 0 && c.API.Port == c.Hub.Port {
		return errors.WrapInvalid(
			fmt.Errorf("%w: api and hub share port %d", errors.ErrInvalidConfig, c.API.Port),
			"Config", "Validate", "port conflict check")
	}
	switch strings.ToLower(c.Log.Format) {
	case "", "text", "json":
	default:
		return errors.WrapInvalid(
			fmt.Errorf("%w: unknown log format %q", errors.ErrInvalidConfig, c.Log.Format),
			"Config", "Validate", "log format check")
	}
	return nil
}

// Clone returns a deep copy.
func (c *Config) Clone() *Config {
	if c == nil {
		return nil
	}
	clone := *c
	clone.API.CORSOrigins = append([]string(nil), c.API.CORSOrigins...)
	clone.Feed.Endpoints = append([]string(nil), c.Feed.Endpoints...)
	clone.TLS.MTLS.ClientCAFiles = append([]string(nil), c.TLS.MTLS.ClientCAFiles...)
	clone.TLS.MTLS.AllowedClientCNs = append([]string(nil), c.TLS.MTLS.AllowedClientCNs...)
	return &clone
}

// String renders the config as indented JSON with secrets masked.
func (c *Config) String() string {
	masked := c.Clone()
	if masked.NATS.Password != "" {
		masked.NATS.Password = "****"
	}
	if masked.NATS.Token != "" {
		masked.NATS.Token = "****"
	}
	data, _ := json.MarshalIndent(masked, "", "  ")
	return string(data)
}

// Loader builds a Config from defaults, file layers and the environment.
type Loader struct {
	layers     []string
	validation bool
	envPrefix  string
}

// NewLoader creates a loader using DefaultEnvPrefix.
func NewLoader() *Loader {
	return &Loader{envPrefix: DefaultEnvPrefix}
}

// AddLayer appends a file layer. Later layers win.
func (l *Loader) AddLayer(path string) {
	l.layers = append(l.layers, path)
}

// EnableValidation turns validation of the merged result on or off.
func (l *Loader) EnableValidation(enabled bool) {
	l.validation = enabled
}

// SetEnvPrefix changes the environment prefix. Empty disables overrides.
func (l *Loader) SetEnvPrefix(prefix string) {
	l.envPrefix = prefix
}

// LoadFile loads a single layer on top of the defaults.
func (l *Loader) LoadFile(path string) (*Config, error) {
	l.layers = []string{path}
	return l.Load()
}

// Load merges defaults, every layer in order, then environment overrides.
func (l *Loader) Load() (*Config, error) {
	base, err := toMap(Default())
	if err != nil {
		return nil, errors.WrapFatal(err, "Loader", "Load", "encode defaults")
	}

	for _, path := range l.layers {
		layer, err := l.loadRaw(path)
		if err != nil {
			return nil, errors.WrapInvalid(err, "Loader", "Load", fmt.Sprintf("load layer %s", path))
		}
		base = l.deepMergeMaps(base, layer)
	}

	cfg, err := fromMap(base)
	if err != nil {
		return nil, errors.WrapInvalid(
			fmt.Errorf("%w: %v", errors.ErrInvalidConfig, err), "Loader", "Load", "decode merged config")
	}

	if err := l.applyEnvOverrides(cfg); err != nil {
		return nil, err
	}

	if l.validation {
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// loadRaw reads one layer into a generic map. YAML is a superset of JSON so
// both go through the YAML decoder.
func (l *Loader) loadRaw(path string) (map[string]any, error) {
	data, err := readLayer(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errors.ErrInvalidConfig, err)
	}
	raw, err := parseLayer(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", errors.ErrInvalidConfig, path, err)
	}
	return raw, nil
}

// deepMergeMaps merges override into base. Nested maps merge, anything else
// replaces.
func (l *Loader) deepMergeMaps(base, override map[string]any) map[string]any {
	result := make(map[string]any, len(base))
	for k, v := range base {
		result[k] = v
	}

	for k, v := range override {
		if v == nil {
			continue
		}
		if overrideMap, ok := v.(map[string]any); ok {
			if baseMap, ok := result[k].(map[string]any); ok {
				result[k] = l.deepMergeMaps(baseMap, overrideMap)
				continue
			}
		}
		result[k] = v
	}
	return result
}

// applyEnvOverrides sets any PREFIX_SECTION_FIELD variable present in the
// environment.
func (l *Loader) applyEnvOverrides(cfg *Config) error {
	if l.envPrefix == "" {
		return nil
	}
	for _, kv := range os.Environ() {
		key, value, _ := strings.Cut(kv, "=")
		if !strings.HasPrefix(key, l.envPrefix) {
			continue
		}
		if err := checkEnvValue(key, value); err != nil {
			return errors.WrapInvalid(err, "Loader", "applyEnvOverrides", "validate environment")
		}
	}
	if err := env.ParseWithOptions(cfg, env.Options{Prefix: l.envPrefix}); err != nil {
		return errors.WrapInvalid(
			fmt.Errorf("%w: %v", errors.ErrInvalidConfig, err), "Loader", "applyEnvOverrides", "parse environment")
	}
	return nil
}

func toMap(cfg *Config) (map[string]any, error) {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return nil, err
	}
	out := map[string]any{}
	if err := yaml.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func fromMap(m map[string]any) (*Config, error) {
	data, err := yaml.Marshal(m)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
