package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"slices"
	"strconv"
	"time"
)

// CLIConfig holds command-line configuration
type CLIConfig struct {
	ConfigPath      string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration
	ShowVersion     bool
	ShowHelp        bool
	Validate        bool
}

// parseFlags reads args (without the program name). Flag defaults fall back
// to MOODZY_* environment variables.
func parseFlags(args []string, stderr io.Writer) (*CLIConfig, error) {
	cfg := &CLIConfig{}
	fs := newFlagSet(cfg, stderr)
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newFlagSet(cfg *CLIConfig, stderr io.Writer) *flag.FlagSet {
	fs := flag.NewFlagSet(appName, flag.ContinueOnError)
	fs.SetOutput(stderr)

	fs.StringVar(&cfg.ConfigPath, "config",
		getEnv("MOODZY_CONFIG", ""),
		"Path to a JSON or YAML configuration file (env: MOODZY_CONFIG)")
	fs.StringVar(&cfg.ConfigPath, "c",
		getEnv("MOODZY_CONFIG", ""),
		"Path to a JSON or YAML configuration file (env: MOODZY_CONFIG)")

	fs.StringVar(&cfg.LogLevel, "log-level",
		getEnv("MOODZY_LOG_LEVEL", ""),
		"Log level: debug, info, warn, error (env: MOODZY_LOG_LEVEL)")

	fs.StringVar(&cfg.LogFormat, "log-format",
		getEnv("MOODZY_LOG_FORMAT", ""),
		"Log format: json, text (env: MOODZY_LOG_FORMAT)")

	fs.DurationVar(&cfg.ShutdownTimeout, "shutdown-timeout",
		getEnvDuration("MOODZY_SHUTDOWN_TIMEOUT", 10*time.Second),
		"Graceful shutdown timeout (env: MOODZY_SHUTDOWN_TIMEOUT)")

	fs.BoolVar(&cfg.ShowVersion, "version", false, "Show version information")
	fs.BoolVar(&cfg.ShowVersion, "v", false, "Show version information")
	fs.BoolVar(&cfg.ShowHelp, "help", false, "Show help information")
	fs.BoolVar(&cfg.ShowHelp, "h", false, "Show help information")
	fs.BoolVar(&cfg.Validate, "validate", false, "Validate configuration and exit")

	fs.Usage = func() { printDetailedHelp(fs, stderr) }
	return fs
}

func printHelp(w io.Writer) {
	printDetailedHelp(newFlagSet(&CLIConfig{}, w), w)
}

func validateFlags(cfg *CLIConfig) error {
	if cfg.ShowVersion || cfg.ShowHelp {
		return nil
	}

	if cfg.ConfigPath != "" {
		if _, err := os.Stat(cfg.ConfigPath); err != nil {
			return fmt.Errorf("config file not found: %s", cfg.ConfigPath)
		}
	}

	if cfg.LogLevel != "" && !slices.Contains([]string{"debug", "info", "warn", "error"}, cfg.LogLevel) {
		return fmt.Errorf("invalid log level: %s", cfg.LogLevel)
	}

	if cfg.LogFormat != "" && !slices.Contains([]string{"json", "text"}, cfg.LogFormat) {
		return fmt.Errorf("invalid log format: %s", cfg.LogFormat)
	}

	if cfg.ShutdownTimeout <= 0 {
		return fmt.Errorf("invalid shutdown timeout: %s", cfg.ShutdownTimeout)
	}

	return nil
}

func printDetailedHelp(fs *flag.FlagSet, w io.Writer) {
	_, _ = fmt.Fprintf(w, `%s - mood relay and user registry

Usage: %s [options]

Options:
`, appName, appName)
	fs.PrintDefaults()
	_, _ = fmt.Fprintf(w, `
Examples:
  # Run with the built-in defaults (REST :3000, live view :9006, feeds :9000-9005)
  %s

  # Run with a config file and debug logging
  %s --config=configs/moodzy.yaml --log-level=debug --log-format=text

  # Override single settings from the environment
  export MOODZY_API_PORT=8080
  export MOODZY_FEED_ENDPOINTS=tcp://sim:9000,nats://nats:4222/moodzy.simuser
  %s

  # Validate configuration only
  %s --config=configs/moodzy.yaml --validate

Version: %s
Build: %s
`, appName, appName, appName, appName, Version, BuildTime)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
		if secs, err := strconv.Atoi(value); err == nil {
			return time.Duration(secs) * time.Second
		}
	}
	return defaultValue
}
