package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"

	"cohortaudit/internal/api"
	"cohortaudit/internal/config"
	"cohortaudit/internal/logging"
	"cohortaudit/internal/observability"
	"cohortaudit/internal/sandbox"
)

const (
	shutdownTimeout       = 5 * time.Second
	defaultRequestTimeout = 120 * time.Second
)

// Server serves the analytics, notes and sandbox routes and enforces
// single-instance execution through a lock file in the log directory.
type Server struct {
	bind           string
	token          string
	requestTimeout time.Duration
	sandboxEnabled bool
	corsOrigins    map[string]struct{}
	corsPattern    *regexp.Regexp

	logger  *slog.Logger
	service *api.Service
	runner  sandbox.Runner
	metrics *observability.Metrics
	pool    *pool

	lockPath string
	lock     *flock.Flock

	handler  http.Handler
	listener net.Listener
	server   *http.Server
	running  atomic.Bool
	done     chan struct{}
}

// New builds a server from cfg. A nil metrics value disables /metrics.
func New(cfg *config.Config, logger *slog.Logger, metrics *observability.Metrics) (*Server, error) {
	if cfg == nil {
		return nil, errors.New("server requires config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	s := &Server{
		bind:           strings.TrimSpace(cfg.Paths.APIBind),
		token:          strings.TrimSpace(cfg.Paths.APIToken),
		requestTimeout: time.Duration(cfg.Server.RequestTimeoutSeconds) * time.Second,
		sandboxEnabled: cfg.Sandbox.Enabled,
		corsOrigins:    make(map[string]struct{}, len(cfg.Server.CORSOrigins)),
		logger:         logging.NewComponentLogger(logger, "server"),
		service:        api.NewService(cfg, logger),
		runner:         sandbox.Runner{Logger: logging.NewComponentLogger(logger, "sandbox")},
		metrics:        metrics,
		pool:           newPool(cfg.Server.Workers, metrics),
		lockPath:       cfg.LockPath(),
	}
	s.lock = flock.New(s.lockPath)
	for _, origin := range cfg.Server.CORSOrigins {
		s.corsOrigins[origin] = struct{}{}
	}
	if pattern := strings.TrimSpace(cfg.Server.CORSOriginRegex); pattern != "" {
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("compile cors origin regex: %w", err)
		}
		s.corsPattern = re
	}
	if s.requestTimeout <= 0 {
		s.requestTimeout = defaultRequestTimeout
	}

	s.handler = s.routes()
	s.server = &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      s.requestTimeout + 10*time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s, nil
}

// Handler returns the fully wrapped HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Start acquires the instance lock, binds the listener and begins serving.
// The server shuts down when ctx ends or Stop is called.
func (s *Server) Start(ctx context.Context) error {
	if s.running.Load() {
		return errors.New("server already running")
	}
	if err := os.MkdirAll(filepath.Dir(s.lockPath), 0o755); err != nil {
		return fmt.Errorf("ensure lock directory: %w", err)
	}
	ok, err := s.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return fmt.Errorf("another cohortaudit server is already running (lock %s)", s.lockPath)
	}

	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		_ = s.lock.Unlock()
		return fmt.Errorf("api listen: %w", err)
	}
	s.listener = listener
	s.done = make(chan struct{})
	s.running.Store(true)

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("api server error", logging.Error(err))
		}
	}()

	go func(done <-chan struct{}) {
		select {
		case <-ctx.Done():
			s.Stop()
		case <-done:
		}
	}(s.done)

	s.logger.Info("api server listening",
		logging.String("address", listener.Addr().String()),
		logging.String("lock", s.lockPath),
		logging.Int("workers", s.pool.size),
	)
	return nil
}

// Addr reports the bound listener address, or "" before Start.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Stop drains in-flight requests and releases the lock. It is safe to call
// more than once.
func (s *Server) Stop() {
	if !s.running.CompareAndSwap(true, false) {
		return
	}
	close(s.done)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.server.Shutdown(shutdownCtx); err != nil {
		s.logger.Warn("api server shutdown incomplete", logging.Error(err))
	}
	if err := s.lock.Unlock(); err != nil {
		s.logger.Warn("failed to release server lock", logging.Error(err))
	}
	s.logger.Info("api server stopped")
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()
	s.handle(mux, "GET /notes/analytics", "analytics", s.handleAnalytics, true)
	s.handle(mux, "GET /notes/lab", "lab", s.handleLab, true)
	s.handle(mux, "POST /sandbox/history/lua", "sandbox", s.handleSandbox, true)
	s.handle(mux, "GET /healthz", "healthz", s.handleHealth, false)
	if s.metrics != nil {
		s.handle(mux, "GET /metrics", "metrics", s.metrics.Handler().ServeHTTP, true)
	}
	return s.requestIDMiddleware(s.corsMiddleware(mux))
}

func (s *Server) handle(mux *http.ServeMux, pattern, route string, fn http.HandlerFunc, protected bool) {
	var h http.Handler = fn
	if protected {
		h = s.authMiddleware(h)
	}
	mux.Handle(pattern, s.accessLog(route, h))
}
