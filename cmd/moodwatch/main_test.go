package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TSherpa10/moodzy/gateway"
	gatewayhttp "github.com/TSherpa10/moodzy/gateway/http"
	"github.com/TSherpa10/moodzy/pkg/security"
	"github.com/TSherpa10/moodzy/pkg/tlsutil"
	"github.com/TSherpa10/moodzy/registry"
	"github.com/TSherpa10/moodzy/syncstore"
	"github.com/TSherpa10/moodzy/testutil"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func startAPI(t *testing.T) (string, *registry.Store) {
	t.Helper()
	reg := registry.New()
	gw := gatewayhttp.NewGateway(gatewayhttp.GatewayDeps{Config: gateway.DefaultConfig(), Store: reg})
	srv := httptest.NewServer(gw.Handler())
	t.Cleanup(srv.Close)
	return srv.URL, reg
}

// syncBuffer is a bytes.Buffer safe for the logger and the test to share.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestParseCommandLineFlags(t *testing.T) {
	flags, err := parseCommandLineFlags([]string{"--add", "Ada:curious, Bo:sleepy", "--once"}, io.Discard)

	require.NoError(t, err)
	assert.True(t, flags.once)
	assert.Equal(t, syncstore.DefaultBaseURL, flags.apiURL)
	assert.Equal(t, []syncstore.NewUser{{Name: "Ada", Mood: "curious"}, {Name: " Bo", Mood: "sleepy"}}, flags.add)

	_, err = parseCommandLineFlags([]string{"--add", "nomood"}, io.Discard)
	assert.ErrorContains(t, err, "expected name:mood")

	_, err = parseCommandLineFlags([]string{"--report", "0s"}, io.Discard)
	assert.Error(t, err)
}

func TestParseCommandLineFlags_Env(t *testing.T) {
	t.Setenv("MOODWATCH_API_URL", "http://api:3000")
	t.Setenv("MOODWATCH_HUB_URL", "")

	flags, err := parseCommandLineFlags(nil, io.Discard)

	require.NoError(t, err)
	assert.Equal(t, "http://api:3000", flags.apiURL)
	assert.Equal(t, "ws://localhost:9006/sim/publish", flags.hubURL)
}

func TestRun_OnceAddsAndPrints(t *testing.T) {
	url, reg := startAPI(t)
	var stdout bytes.Buffer

	err := run(context.Background(), []string{"--api", url, "--add", "Ada:curious,Bo:sleepy", "--once"}, &stdout, io.Discard)

	require.NoError(t, err)
	assert.Equal(t, 2, reg.Len())

	var users []syncstore.User
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &users))
	require.Len(t, users, 2)
	assert.Equal(t, "Bo", users[0].Name, "most recent first")
	assert.True(t, users[1].IsReal)
}

func TestRun_AddValidationFailure(t *testing.T) {
	url, _ := startAPI(t)

	err := run(context.Background(), []string{"--api", url, "--add", ":curious", "--once"}, io.Discard, io.Discard)

	assert.ErrorContains(t, err, "name")
}

func TestRun_WatchLogsSummary(t *testing.T) {
	url, reg := startAPI(t)
	_, err := reg.Create(context.Background(), registry.CreateInput{Name: "Ada", Mood: "curious"})
	require.NoError(t, err)

	var logs syncBuffer
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- run(ctx, []string{"--api", url, "--hub", "", "--poll", "10ms", "--report", "20ms"}, io.Discard, &logs)
	}()

	require.Eventually(t, func() bool {
		return strings.Contains(logs.String(), "users=1 real=1 simulated=0")
	}, 3*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("run did not return")
	}
}

func TestRun_OnceOverTLS(t *testing.T) {
	certFile, keyFile := testutil.WriteCert(t, "localhost")
	serverTLS, err := tlsutil.LoadServerTLSConfig(security.ServerTLSConfig{Enabled: true, CertFile: certFile, KeyFile: keyFile})
	require.NoError(t, err)

	reg := registry.New()
	gw := gatewayhttp.NewGateway(gatewayhttp.GatewayDeps{Config: gateway.DefaultConfig(), Store: reg})
	srv := httptest.NewUnstartedServer(gw.Handler())
	srv.TLS = serverTLS
	srv.StartTLS()
	t.Cleanup(srv.Close)

	var stdout bytes.Buffer
	err = run(context.Background(), []string{"--api", srv.URL, "--ca", certFile, "--add", "Ada:curious", "--once"}, &stdout, io.Discard)
	require.NoError(t, err)
	assert.Equal(t, 1, reg.Len())
	assert.Contains(t, stdout.String(), `"Ada"`)

	err = run(context.Background(), []string{"--api", srv.URL, "--once"}, io.Discard, io.Discard)
	assert.Error(t, err, "unknown authority without --ca")
}

func TestParseCommandLineFlags_TLS(t *testing.T) {
	flags, err := parseCommandLineFlags([]string{"--ca", "a.pem, b.pem", "--cert", "c.pem", "--key", "k.pem"}, io.Discard)
	require.NoError(t, err)
	assert.True(t, flags.useTLS)
	assert.Equal(t, []string{"a.pem", "b.pem"}, flags.tls.CAFiles)
	assert.True(t, flags.tls.MTLS.Enabled)

	flags, err = parseCommandLineFlags(nil, io.Discard)
	require.NoError(t, err)
	assert.False(t, flags.useTLS)

	_, err = parseCommandLineFlags([]string{"--cert", "c.pem"}, io.Discard)
	assert.Error(t, err)
}

func TestRun_Version(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, run(context.Background(), []string{"--version"}, &out, io.Discard))
	assert.Equal(t, "moodwatch version dev\n", out.String())
}
