package http

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TSherpa10/moodzy/codec"
	"github.com/TSherpa10/moodzy/component"
	pkgerrors "github.com/TSherpa10/moodzy/errors"
	"github.com/TSherpa10/moodzy/gateway"
	"github.com/TSherpa10/moodzy/health"
	"github.com/TSherpa10/moodzy/idalloc"
	"github.com/TSherpa10/moodzy/metric"
	"github.com/TSherpa10/moodzy/pkg/security"
	"github.com/TSherpa10/moodzy/pkg/tlsutil"
	"github.com/TSherpa10/moodzy/registry"
	"github.com/TSherpa10/moodzy/testutil"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func setupTestGateway(t *testing.T, deps ...func(*GatewayDeps)) (*Gateway, *registry.Store) {
	t.Helper()
	store := registry.New(
		registry.WithAllocator(idalloc.New(idalloc.WithGenerator(testutil.SequentialIDs("u")))),
		registry.WithClock(testutil.StepClock(1_700_000_000_000)),
	)
	d := GatewayDeps{Config: gateway.DefaultConfig(), Store: store}
	for _, fn := range deps {
		fn(&d)
	}
	return NewGateway(d), store
}

func do(t *testing.T, g *Gateway, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	g.Handler().ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func TestHello(t *testing.T) {
	g, _ := setupTestGateway(t)
	w := do(t, g, http.MethodGet, "/", "")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Hello World!", w.Body.String())
}

func TestCreateUser(t *testing.T) {
	g, store := setupTestGateway(t)

	w := do(t, g, http.MethodPost, "/users", `{"name":"  Ada ","mood":"chipper"}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	user := decode[codec.UserRecord](t, w)
	assert.Equal(t, "u1", user.ID)
	assert.Equal(t, "Ada", user.Name)
	assert.Equal(t, "chipper", user.Mood)
	assert.True(t, user.IsReal)
	assert.Equal(t, user.TimeCreated, user.TimeUpdated)
	assert.Equal(t, 1, store.Len())

	// wire field names
	raw := decode[map[string]any](t, w)
	for _, key := range []string{"id", "name", "mood", "isReal", "timeCreated", "timeUpdated"} {
		assert.Contains(t, raw, key)
	}
}

func TestCreateUser_Simulated(t *testing.T) {
	g, _ := setupTestGateway(t)
	w := do(t, g, http.MethodPost, "/users", `{"name":"Bot","mood":"robotic","isReal":false}`)

	require.Equal(t, http.StatusCreated, w.Code)
	assert.False(t, decode[codec.UserRecord](t, w).IsReal)
}

func TestCreateUser_InvalidBody(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		field      string
		constraint string
	}{
		{"missing name", `{"mood":"lazy"}`, "name", "required"},
		{"missing mood", `{"name":"Ada"}`, "mood", "required"},
		{"blank name", `{"name":"   ","mood":"lazy"}`, "name", "min"},
		{"long mood", `{"name":"Ada","mood":"` + strings.Repeat("x", 65) + `"}`, "mood", "max"},
		{"wrong type", `{"name":"Ada","mood":"lazy","isReal":"yes"}`, "isReal", "type"},
		{"not json", `name=Ada`, "body", "json"},
		{"empty", ``, "body", "required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, store := setupTestGateway(t)
			w := do(t, g, http.MethodPost, "/users", tt.body)

			require.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
			resp := decode[errorResponse](t, w)
			assert.Equal(t, "Invalid body", resp.Message)
			require.NotEmpty(t, resp.Issues)
			assert.Equal(t, tt.field, resp.Issues[0].Field)
			assert.Equal(t, tt.constraint, resp.Issues[0].Constraint)
			assert.Zero(t, store.Len())
		})
	}
}

func TestCreateUser_BodyTooLarge(t *testing.T) {
	g, _ := setupTestGateway(t, func(d *GatewayDeps) { d.Config.MaxRequestSize = 32 })
	w := do(t, g, http.MethodPost, "/users", `{"name":"`+strings.Repeat("a", 64)+`","mood":"lazy"}`)

	require.Equal(t, http.StatusBadRequest, w.Code)
	resp := decode[errorResponse](t, w)
	require.NotEmpty(t, resp.Issues)
	assert.Equal(t, "max_bytes", resp.Issues[0].Constraint)
}

func TestListUsers_MostRecentFirst(t *testing.T) {
	g, _ := setupTestGateway(t)
	for _, name := range []string{"A", "B", "C"} {
		require.Equal(t, http.StatusCreated,
			do(t, g, http.MethodPost, "/users", `{"name":"`+name+`","mood":"human"}`).Code)
	}

	w := do(t, g, http.MethodGet, "/users", "")
	require.Equal(t, http.StatusOK, w.Code)

	users := decode[[]codec.UserRecord](t, w)
	require.Len(t, users, 3)
	assert.Equal(t, []string{"C", "B", "A"}, []string{users[0].Name, users[1].Name, users[2].Name})
}

func TestListUsers_EmptyIsArray(t *testing.T) {
	g, _ := setupTestGateway(t)
	w := do(t, g, http.MethodGet, "/users", "")

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[]`, w.Body.String())
}

func TestUpdateUser(t *testing.T) {
	g, _ := setupTestGateway(t)
	created := decode[codec.UserRecord](t, do(t, g, http.MethodPost, "/users", `{"name":"Ada","mood":"lazy"}`))

	w := do(t, g, http.MethodPatch, "/users/"+created.ID, `{"mood":"overthemoon","name":"  "}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	updated := decode[codec.UserRecord](t, w)
	assert.Equal(t, "Ada", updated.Name, "blank fields are ignored")
	assert.Equal(t, "overthemoon", updated.Mood)
	assert.Equal(t, created.TimeCreated, updated.TimeCreated)
	assert.Greater(t, updated.TimeUpdated, created.TimeUpdated)
}

func TestUpdateUser_NotFoundBeforeBody(t *testing.T) {
	g, _ := setupTestGateway(t)

	w := do(t, g, http.MethodPatch, "/users/missing", `not json`)
	require.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "queried user id is not in the list of users!", decode[errorResponse](t, w).Message)
}

func TestUpdateUser_NoFields(t *testing.T) {
	g, _ := setupTestGateway(t)
	created := decode[codec.UserRecord](t, do(t, g, http.MethodPost, "/users", `{"name":"Ada","mood":"lazy"}`))

	w := do(t, g, http.MethodPatch, "/users/"+created.ID, `{}`)
	require.Equal(t, http.StatusBadRequest, w.Code)

	resp := decode[errorResponse](t, w)
	require.Len(t, resp.Issues, 1)
	assert.Equal(t, "min_fields", resp.Issues[0].Constraint)
}

func TestDeleteUser(t *testing.T) {
	g, store := setupTestGateway(t)
	created := decode[codec.UserRecord](t, do(t, g, http.MethodPost, "/users", `{"name":"Ada","mood":"lazy"}`))

	w := do(t, g, http.MethodDelete, "/users/"+created.ID, "")
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Empty(t, w.Body.String())
	assert.Zero(t, store.Len())

	w = do(t, g, http.MethodDelete, "/users/"+created.ID, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestClearUsers(t *testing.T) {
	g, store := setupTestGateway(t)
	for i := 0; i < 3; i++ {
		do(t, g, http.MethodPost, "/users", `{"name":"N","mood":"sleepy"}`)
	}

	w := do(t, g, http.MethodDelete, "/users", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 3, decode[clearResponse](t, w).Cleared)
	assert.Zero(t, store.Len())

	w = do(t, g, http.MethodDelete, "/users", "")
	assert.Equal(t, 0, decode[clearResponse](t, w).Cleared)
}

// failingStore fails List with an internal error and delegates the rest.
type failingStore struct{ *registry.Store }

func (*failingStore) List(context.Context) ([]codec.UserRecord, error) {
	return nil, pkgerrors.WrapFatal(pkgerrors.ErrDataCorrupted, "registry", "List", "decode record nats://10.0.0.1:4222")
}

func TestInternalErrorsAreSanitized(t *testing.T) {
	g, _ := setupTestGateway(t, func(d *GatewayDeps) { d.Store = &failingStore{Store: registry.New()} })

	w := do(t, g, http.MethodGet, "/users", "")
	require.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "internal server error", decode[errorResponse](t, w).Message)
	assert.NotContains(t, w.Body.String(), "10.0.0.1")
}

func TestCORS(t *testing.T) {
	g, _ := setupTestGateway(t)

	req := httptest.NewRequest(http.MethodOptions, "/users", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	w := httptest.NewRecorder()
	g.Handler().ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "http://localhost:5173", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, w.Header().Get("Access-Control-Allow-Methods"), "PATCH")
}

func TestCORS_RestrictedOrigins(t *testing.T) {
	g, _ := setupTestGateway(t, func(d *GatewayDeps) {
		d.Config.CORSOrigins = []string{"https://moodzy.example"}
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "https://elsewhere.example")
	w := httptest.NewRecorder()
	g.Handler().ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}

func TestRequestID(t *testing.T) {
	g, _ := setupTestGateway(t)

	w := do(t, g, http.MethodGet, "/", "")
	assert.Len(t, w.Header().Get(requestIDHeader), 36)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(requestIDHeader, "existing-request-id-12345")
	w = httptest.NewRecorder()
	g.Handler().ServeHTTP(w, req)
	assert.Equal(t, "existing-request-id-12345", w.Header().Get(requestIDHeader))
}

type staticHealth struct{ status health.Status }

func (s staticHealth) AggregateHealth(string) health.Status { return s.status }

func TestHealthEndpoint(t *testing.T) {
	tests := []struct {
		name   string
		status health.Status
		code   int
	}{
		{"healthy", health.NewHealthy("moodzy", "ok"), http.StatusOK},
		{"degraded", health.NewDegraded("moodzy", "slow"), http.StatusOK},
		{"unhealthy", health.NewUnhealthy("moodzy", "feed down"), http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, _ := setupTestGateway(t, func(d *GatewayDeps) { d.Health = staticHealth{tt.status} })
			w := do(t, g, http.MethodGet, "/health", "")

			assert.Equal(t, tt.code, w.Code)
			assert.Equal(t, tt.status.Status, decode[health.Status](t, w).Status)
		})
	}
}

func TestHealthEndpoint_Monitor(t *testing.T) {
	monitor := health.NewMonitor()
	monitor.UpdateHealthy("feed", "relaying")
	monitor.UpdateUnhealthy("hub", "not running")
	g, _ := setupTestGateway(t, func(d *GatewayDeps) { d.Health = monitor })

	w := do(t, g, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Len(t, decode[health.Status](t, w).SubStatuses, 2)
}

func TestRateLimit(t *testing.T) {
	g, _ := setupTestGateway(t, func(d *GatewayDeps) {
		d.Config.RateLimit = 0.001
		d.Config.RateBurst = 2
	})

	assert.Equal(t, http.StatusOK, do(t, g, http.MethodGet, "/users", "").Code)
	assert.Equal(t, http.StatusOK, do(t, g, http.MethodGet, "/", "").Code)

	w := do(t, g, http.MethodGet, "/users", "")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "1", w.Header().Get("Retry-After"))
	assert.Equal(t, "Too many requests", decode[errorResponse](t, w).Message)
}

func TestUnknownRoute(t *testing.T) {
	g, _ := setupTestGateway(t)
	assert.Equal(t, http.StatusNotFound, do(t, g, http.MethodGet, "/nope", "").Code)
}

func TestRequestMetrics(t *testing.T) {
	reg := metric.NewMetricsRegistry()
	g, _ := setupTestGateway(t, func(d *GatewayDeps) {
		d.Dependencies = component.Dependencies{MetricsRegistry: reg}
	})

	do(t, g, http.MethodPost, "/users", `{"name":"Ada","mood":"lazy"}`)
	do(t, g, http.MethodPost, "/users", `{}`)
	do(t, g, http.MethodGet, "/users", "")

	core := reg.CoreMetrics()
	assert.Equal(t, 1.0, promtest.ToFloat64(core.HTTPRequests.WithLabelValues("POST", "/users", "2xx")))
	assert.Equal(t, 1.0, promtest.ToFloat64(core.HTTPRequests.WithLabelValues("POST", "/users", "4xx")))
	assert.Equal(t, 1.0, promtest.ToFloat64(core.HTTPRequests.WithLabelValues("GET", "/users", "2xx")))
	assert.Equal(t, int64(3), g.stats.Messages())
}

func TestLifecycle(t *testing.T) {
	g, _ := setupTestGateway(t, func(d *GatewayDeps) { d.Config.Port = 0 })

	assert.Error(t, g.Start(context.Background()), "start before initialize")
	require.NoError(t, g.Initialize())
	require.NoError(t, g.Start(context.Background()))
	assert.True(t, g.Health().Healthy)

	err := g.Start(context.Background())
	assert.ErrorIs(t, err, pkgerrors.ErrAlreadyStarted)

	resp, err := http.Get("http://" + testutil.LocalAddr(t, g.Address()) + "/")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, "Hello World!", string(body))

	require.NoError(t, g.Stop(time.Second))
	assert.False(t, g.Health().Healthy)
	assert.Empty(t, g.Address())
	require.NoError(t, g.Stop(time.Second))
}

func TestInitialize_RequiresStore(t *testing.T) {
	g := NewGateway(GatewayDeps{Config: gateway.DefaultConfig()})
	assert.ErrorIs(t, g.Initialize(), pkgerrors.ErrMissingConfig)
}

func TestRun_ReturnsOnCancel(t *testing.T) {
	g, _ := setupTestGateway(t, func(d *GatewayDeps) { d.Config.Port = 0 })
	ctx, cancel := context.WithCancel(context.Background())

	runErr := make(chan error, 1)
	go func() { runErr <- g.Run(ctx) }()
	require.Eventually(t, func() bool { return g.Address() != "" }, 2*time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-runErr:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return")
	}
}

func TestLifecycle_TLS(t *testing.T) {
	certFile, keyFile := testutil.WriteCert(t, "localhost")
	serverTLS, err := tlsutil.LoadServerTLSConfig(security.ServerTLSConfig{Enabled: true, CertFile: certFile, KeyFile: keyFile})
	require.NoError(t, err)
	g, _ := setupTestGateway(t, func(d *GatewayDeps) {
		d.Config.Port = 0
		d.TLS = serverTLS
	})
	assert.Equal(t, "https", g.InputPorts()[0].Protocol)

	require.NoError(t, g.Initialize())
	require.NoError(t, g.Start(context.Background()))
	defer func() { _ = g.Stop(time.Second) }()

	clientTLS, err := tlsutil.LoadClientTLSConfig(security.ClientTLSConfig{CAFiles: []string{certFile}})
	require.NoError(t, err)
	client := &http.Client{Transport: &http.Transport{TLSClientConfig: clientTLS}}

	resp, err := client.Get("https://" + testutil.LocalAddr(t, g.Address()) + "/")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, "Hello World!", string(body))
}
