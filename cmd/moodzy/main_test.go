package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFlags(t *testing.T) {
	cfg, err := parseFlags([]string{
		"--config", "moodzy.yaml", "--log-level", "debug", "--log-format", "json",
		"--shutdown-timeout", "3s", "--validate",
	}, &bytes.Buffer{})

	require.NoError(t, err)
	assert.Equal(t, "moodzy.yaml", cfg.ConfigPath)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, 3*time.Second, cfg.ShutdownTimeout)
	assert.True(t, cfg.Validate)
}

func TestParseFlags_EnvFallback(t *testing.T) {
	t.Setenv("MOODZY_LOG_LEVEL", "warn")
	t.Setenv("MOODZY_SHUTDOWN_TIMEOUT", "7")

	cfg, err := parseFlags(nil, &bytes.Buffer{})

	require.NoError(t, err)
	assert.Equal(t, "warn", cfg.LogLevel)
	assert.Equal(t, 7*time.Second, cfg.ShutdownTimeout)
	assert.Empty(t, cfg.ConfigPath)
}

func TestParseFlags_Unknown(t *testing.T) {
	var stderr bytes.Buffer
	_, err := parseFlags([]string{"--nope"}, &stderr)

	assert.Error(t, err)
	assert.Contains(t, stderr.String(), "Usage: moodzy")
}

func TestValidateFlags(t *testing.T) {
	existing := filepath.Join(t.TempDir(), "moodzy.yaml")
	require.NoError(t, os.WriteFile(existing, []byte("{}"), 0o644))

	tests := []struct {
		name    string
		cfg     CLIConfig
		wantErr string
	}{
		{"defaults", CLIConfig{ShutdownTimeout: time.Second}, ""},
		{"existing config", CLIConfig{ConfigPath: existing, ShutdownTimeout: time.Second}, ""},
		{"missing config", CLIConfig{ConfigPath: "/no/such/file.yaml", ShutdownTimeout: time.Second}, "config file not found"},
		{"bad level", CLIConfig{LogLevel: "loud", ShutdownTimeout: time.Second}, "invalid log level"},
		{"bad format", CLIConfig{LogFormat: "xml", ShutdownTimeout: time.Second}, "invalid log format"},
		{"zero timeout", CLIConfig{}, "invalid shutdown timeout"},
		{"version skips checks", CLIConfig{ShowVersion: true, LogLevel: "loud"}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateFlags(&tt.cfg)
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				assert.ErrorContains(t, err, tt.wantErr)
			}
		})
	}
}

func TestRun_Version(t *testing.T) {
	var stdout bytes.Buffer

	err := run(context.Background(), []string{"--version"}, &stdout, &bytes.Buffer{})

	require.NoError(t, err)
	assert.Equal(t, "moodzy version "+Version+"\n", stdout.String())
}

func TestRun_Help(t *testing.T) {
	var stderr bytes.Buffer

	require.NoError(t, run(context.Background(), []string{"-h"}, &bytes.Buffer{}, &stderr))
	assert.Contains(t, stderr.String(), "--validate")
	assert.Contains(t, stderr.String(), "MOODZY_API_PORT")
}

func TestRun_ValidateOnly(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "good.yaml")
	require.NoError(t, os.WriteFile(good, []byte("api:\n  port: 3100\n"), 0o644))
	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("hub:\n  queue_size: 0\n"), 0o644))

	var stdout bytes.Buffer
	err := run(context.Background(), []string{"--config", good, "--validate", "--log-format", "json"}, &stdout, &bytes.Buffer{})
	require.NoError(t, err)

	var record map[string]any
	require.NoError(t, json.Unmarshal([]byte(strings.TrimSpace(stdout.String())), &record))
	assert.Equal(t, "Configuration is valid", record["msg"])
	assert.Equal(t, appName, record["service"])

	err = run(context.Background(), []string{"--config", bad, "--validate"}, &bytes.Buffer{}, &bytes.Buffer{})
	assert.ErrorContains(t, err, "load config")
}

func TestSetupLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := setupLogger(&buf, "warn", "json")

	logger.Info("hidden")
	logger.Warn("shown", "k", "v")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)
	var record map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &record))
	assert.Equal(t, "shown", record["msg"])
	assert.Equal(t, Version, record["version"])
	assert.Contains(t, record, "pid")
}

func TestFirstNonEmpty(t *testing.T) {
	assert.Equal(t, "a", firstNonEmpty("", "a", "b"))
	assert.Empty(t, firstNonEmpty("", ""))
}
