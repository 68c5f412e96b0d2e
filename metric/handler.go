package metric

import (
	"context"
	stderrors "errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/TSherpa10/moodzy/errors"
)

// Server serves the Prometheus endpoint plus a liveness probe.
type Server struct {
	port     int
	path     string
	registry *MetricsRegistry

	mu       sync.Mutex
	server   *http.Server
	listener net.Listener
}

// NewServer creates a metrics server. Zero values default to :9090/metrics.
func NewServer(port int, path string, registry *MetricsRegistry) *Server {
	if path == "" {
		path = "/metrics"
	}
	if port == 0 {
		port = 9090
	}
	return &Server{port: port, path: path, registry: registry}
}

// Handler returns the mux the server exposes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle(s.path, promhttp.HandlerFor(
		s.registry.PrometheusRegistry(),
		promhttp.HandlerOpts{EnableOpenMetrics: true},
	))
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	return mux
}

// Run listens and serves until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	if s.registry == nil {
		return errors.WrapFatal(fmt.Errorf("nil registry"), "Server", "Run", "metrics registry not provided")
	}

	s.mu.Lock()
	if s.server != nil {
		s.mu.Unlock()
		return errors.WrapInvalid(errors.ErrAlreadyStarted, "Server", "Run", "start metrics server")
	}
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", s.port))
	if err != nil {
		s.mu.Unlock()
		return errors.WrapFatal(err, "Server", "Run", fmt.Sprintf("listen on port %d", s.port))
	}
	srv := &http.Server{Handler: s.Handler(), ReadHeaderTimeout: 5 * time.Second}
	s.server, s.listener = srv, ln
	s.mu.Unlock()

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()

	select {
	case err := <-errCh:
		s.reset()
		if err != nil && !stderrors.Is(err, http.ErrServerClosed) {
			return errors.WrapFatal(err, "Server", "Run", "serve metrics")
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err = srv.Shutdown(shutdownCtx)
	s.reset()
	if err != nil {
		return errors.WrapTransient(err, "Server", "Run", "shutdown metrics server")
	}
	return nil
}

func (s *Server) reset() {
	s.mu.Lock()
	s.server, s.listener = nil, nil
	s.mu.Unlock()
}

// Address returns the scrape URL.
func (s *Server) Address() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	port := s.port
	if tcp, ok := s.listener.(*net.TCPListener); ok {
		port = tcp.Addr().(*net.TCPAddr).Port
	}
	return fmt.Sprintf("http://localhost:%d%s", port, s.path)
}
