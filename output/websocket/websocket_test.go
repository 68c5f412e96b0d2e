package websocket

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TSherpa10/moodzy/component"
	"github.com/TSherpa10/moodzy/errors"
	"github.com/TSherpa10/moodzy/input/feed"
	"github.com/TSherpa10/moodzy/metric"
	"github.com/TSherpa10/moodzy/testutil"
)

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Port = 0
	cfg.WriteTimeout = time.Second
	return cfg
}

// startMounted starts a mounted hub behind an httptest server and returns the
// websocket URL.
func startMounted(t *testing.T, cfg Config, deps component.Dependencies) (*Hub, string) {
	t.Helper()
	hub := NewHub(HubDeps{Config: cfg, Dependencies: deps, Mounted: true})
	require.NoError(t, hub.Initialize())
	require.NoError(t, hub.Start(context.Background()))

	srv := httptest.NewServer(hub)
	t.Cleanup(func() {
		_ = hub.Stop(2 * time.Second)
		srv.Close()
	})
	return hub, "ws" + strings.TrimPrefix(srv.URL, "http")
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

// waitOpen blocks until the hub has n clients, all open.
func waitOpen(t *testing.T, hub *Hub, n int) {
	t.Helper()
	require.Eventually(t, func() bool {
		clients := hub.snapshot()
		if len(clients) != n {
			return false
		}
		for _, c := range clients {
			if c.State() != stateOpen {
				return false
			}
		}
		return true
	}, 2*time.Second, 5*time.Millisecond)
}

func readEvent(t *testing.T, conn *websocket.Conn) feed.Event {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	msgType, data, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, websocket.TextMessage, msgType)

	var ev feed.Event
	require.NoError(t, json.Unmarshal(data, &ev))
	return ev
}

func event(id, mood string) feed.Event {
	return feed.Event{
		Type: feed.EventType,
		Payload: feed.Payload{
			ID: id, Name: "sim " + id, Mood: mood, TimeCreated: 1, TimeUpdated: 1,
		},
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"negative port", func(c *Config) { c.Port = -1 }},
		{"port too large", func(c *Config) { c.Port = 70000 }},
		{"relative path", func(c *Config) { c.Path = "sim/publish" }},
		{"zero queue", func(c *Config) { c.QueueSize = 0 }},
		{"zero write timeout", func(c *Config) { c.WriteTimeout = 0 }},
		{"zero ping", func(c *Config) { c.PingInterval = 0 }},
	}

	require.NoError(t, DefaultConfig().Validate())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			assert.ErrorIs(t, err, errors.ErrInvalidConfig)
			assert.True(t, errors.IsInvalid(err))
		})
	}
}

func TestHub_InterfacesAndMeta(t *testing.T) {
	hub := NewHub(HubDeps{Config: DefaultConfig()})

	assert.Equal(t, "hub", hub.Meta().Name)
	assert.Equal(t, "output", hub.Meta().Type)
	require.Len(t, hub.OutputPorts(), 1)
	assert.Equal(t, "ws://localhost:9006/sim/publish", hub.OutputPorts()[0].Address)
	assert.False(t, hub.Health().Healthy)

	secure := NewHub(HubDeps{Config: DefaultConfig(), TLS: &tls.Config{MinVersion: tls.VersionTLS12}})
	assert.Equal(t, "wss://localhost:9006/sim/publish", secure.OutputPorts()[0].Address)
}

func TestHub_PublishBeforeStart(t *testing.T) {
	hub := NewHub(HubDeps{Config: testConfig()})
	err := hub.Publish(event("a", "human"))
	assert.ErrorIs(t, err, errors.ErrNotStarted)
}

func TestHub_StartRequiresInitialize(t *testing.T) {
	hub := NewHub(HubDeps{Config: testConfig()})
	assert.Error(t, hub.Start(context.Background()))
}

func TestHub_ServeHTTPWhenStopped(t *testing.T) {
	hub := NewHub(HubDeps{Config: testConfig(), Mounted: true})
	rec := httptest.NewRecorder()

	hub.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/sim/publish", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestHub_BroadcastReachesEveryOpenClient(t *testing.T) {
	hub, url := startMounted(t, testConfig(), component.Dependencies{})
	a := dial(t, url)
	b := dial(t, url)
	waitOpen(t, hub, 2)

	require.NoError(t, hub.Publish(event("u1", "chipper")))

	for _, conn := range []*websocket.Conn{a, b} {
		ev := readEvent(t, conn)
		assert.Equal(t, feed.EventType, ev.Type)
		assert.Equal(t, "u1", ev.Payload.ID)
		assert.Equal(t, "chipper", ev.Payload.Mood)
	}
}

func TestHub_FanOutToExactlyOpenClients(t *testing.T) {
	const total, closing = 5, 2
	hub, url := startMounted(t, testConfig(), component.Dependencies{})

	conns := make([]*websocket.Conn, total)
	for i := range conns {
		conns[i] = dial(t, url)
	}
	waitOpen(t, hub, total)

	for _, conn := range conns[:closing] {
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye")
		require.NoError(t, conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second)))
		require.NoError(t, conn.Close())
	}
	waitOpen(t, hub, total-closing)

	require.NoError(t, hub.Publish(event("u2", "lazy")))

	for _, conn := range conns[closing:] {
		assert.Equal(t, "u2", readEvent(t, conn).Payload.ID)
	}
	require.Eventually(t, func() bool {
		return hub.Stats().Delivered == int64(total-closing)
	}, 2*time.Second, 5*time.Millisecond)
	assert.Zero(t, hub.Stats().SendErrors)
}

func TestHub_SkipsClientsThatAreNotReady(t *testing.T) {
	hub, url := startMounted(t, testConfig(), component.Dependencies{})
	ready := dial(t, url)
	busy := dial(t, url)
	waitOpen(t, hub, 2)

	// one client still handshaking, one mid-write
	connecting := newClient(nil)
	hub.clientsMu.Lock()
	hub.clients[connecting] = struct{}{}
	hub.clientsMu.Unlock()

	var busyClient *client
	for _, c := range hub.snapshot() {
		if c.conn != nil && c.conn.RemoteAddr().String() == busy.LocalAddr().String() {
			busyClient = c
		}
	}
	require.NotNil(t, busyClient)
	busyClient.writing.Store(true)

	require.NoError(t, hub.Publish(event("u3", "human")))

	assert.Equal(t, "u3", readEvent(t, ready).Payload.ID)
	require.Eventually(t, func() bool {
		return hub.Stats().Skipped == 2
	}, 2*time.Second, 5*time.Millisecond)

	// the busy client gets nothing for this event
	require.NoError(t, busy.SetReadDeadline(time.Now().Add(100*time.Millisecond)))
	_, _, err := busy.ReadMessage()
	assert.Error(t, err)

	hub.clientsMu.Lock()
	delete(hub.clients, connecting)
	hub.clientsMu.Unlock()
}

func TestHub_OrderPreserved(t *testing.T) {
	hub, url := startMounted(t, testConfig(), component.Dependencies{})
	conn := dial(t, url)
	waitOpen(t, hub, 1)

	ids := []string{"a", "b", "c", "d", "e"}
	for _, id := range ids {
		require.NoError(t, hub.Publish(event(id, "robotic")))
		// wait for the write to finish so the client is ready again
		want := id
		assert.Equal(t, want, readEvent(t, conn).Payload.ID)
	}
}

func TestHub_QueueFullDrops(t *testing.T) {
	cfg := testConfig()
	cfg.QueueSize = 1
	hub := NewHub(HubDeps{Config: cfg, Mounted: true})
	require.NoError(t, hub.Initialize())
	require.NoError(t, hub.Start(context.Background()))
	defer func() { _ = hub.Stop(time.Second) }()

	// hold the client set so the worker blocks inside its first broadcast
	hub.clientsMu.Lock()
	var dropped int
	for i := 0; i < 10; i++ {
		if err := hub.Publish(event("x", "human")); err != nil {
			require.ErrorIs(t, err, ErrQueueFull)
			dropped++
		}
	}
	hub.clientsMu.Unlock()

	// one event in the worker, one in the queue
	assert.GreaterOrEqual(t, dropped, 8)
	assert.Equal(t, int64(dropped), hub.Stats().Dropped)
}

func TestHub_StopClosesClients(t *testing.T) {
	hub, url := startMounted(t, testConfig(), component.Dependencies{})
	conn := dial(t, url)
	waitOpen(t, hub, 1)

	require.NoError(t, hub.Stop(2*time.Second))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseGoingAway), "got %v", err)
	assert.Zero(t, hub.ClientCount())
	assert.False(t, hub.Health().Healthy)
}

func TestHub_Metrics(t *testing.T) {
	registry := metric.NewMetricsRegistry()
	hub, url := startMounted(t, testConfig(), component.Dependencies{MetricsRegistry: registry})
	conn := dial(t, url)
	waitOpen(t, hub, 1)

	require.NoError(t, hub.Publish(event("m", "shocked")))
	readEvent(t, conn)

	require.Eventually(t, func() bool {
		return promtest.ToFloat64(hub.metrics.deliveries) == 1
	}, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, 1.0, promtest.ToFloat64(hub.metrics.eventsBroadcast))
	assert.Equal(t, 1.0, promtest.ToFloat64(hub.metrics.clientsConnected))
	assert.Equal(t, 1.0, promtest.ToFloat64(hub.metrics.connectionTotal))
}

func TestHub_RunOwnListener(t *testing.T) {
	hub := NewHub(HubDeps{Config: testConfig()})
	ctx, cancel := context.WithCancel(context.Background())
	runErr := make(chan error, 1)
	go func() { runErr <- hub.Run(ctx) }()

	require.Eventually(t, func() bool { return hub.Health().Healthy }, 2*time.Second, 5*time.Millisecond)

	conn := dial(t, "ws://"+testutil.LocalAddr(t, hub.Address())+"/sim/publish")
	waitOpen(t, hub, 1)

	require.NoError(t, hub.Publish(event("r", "sleepy")))
	assert.Equal(t, "r", readEvent(t, conn).Payload.ID)

	cancel()
	select {
	case err := <-runErr:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return")
	}
}
