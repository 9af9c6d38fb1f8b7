// internal/api/server.go
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	handlers "github.com/newthinker/verdict/internal/api/handler/api"
	"github.com/newthinker/verdict/internal/api/job"
	"github.com/newthinker/verdict/internal/api/middleware"
	"github.com/newthinker/verdict/internal/metrics"
	"github.com/newthinker/verdict/internal/storage/ledger"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Server represents the HTTP server for verdict.
type Server struct {
	httpServer *http.Server
	logger     *zap.Logger
	mux        *http.ServeMux
}

// Config holds server configuration
type Config struct {
	Host         string
	Port         int
	APIKey       string
	MetricsPath  string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// Dependencies are the components the routes serve.
type Dependencies struct {
	Runner  handlers.Runner
	Store   ledger.Store
	Jobs    *job.Store
	Metrics *metrics.Registry
}

// NewServer creates a new HTTP server
func NewServer(cfg Config, deps Dependencies, logger *zap.Logger) (*Server, error) {
	if deps.Runner == nil || deps.Store == nil {
		return nil, fmt.Errorf("runner and ledger store are required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if deps.Jobs == nil {
		deps.Jobs = job.NewStore(100, 24*time.Hour)
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = 15 * time.Second
	}
	// Resolve requests hold the connection for a whole cycle.
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = 90 * time.Second
	}

	mux := http.NewServeMux()

	var handler http.Handler = mux
	if deps.Metrics != nil {
		handler = metrics.HTTPMiddleware(deps.Metrics)(handler)
	}
	handler = metrics.LoggingMiddleware(logger)(handler)

	s := &Server{
		httpServer: &http.Server{
			Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
			Handler:      handler,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
			IdleTimeout:  60 * time.Second,
		},
		logger: logger,
		mux:    mux,
	}

	s.setupRoutes(cfg, deps)
	return s, nil
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes(cfg Config, deps Dependencies) {
	auth := middleware.APIKeyAuth(cfg.APIKey)
	protect := func(h http.HandlerFunc) http.Handler { return auth(h) }

	resolve := handlers.NewResolveHandler(deps.Runner, deps.Jobs, s.logger)
	stats := handlers.NewStatsHandler(deps.Store)
	calls := handlers.NewCallsHandler(deps.Store)
	runs := handlers.NewRunsHandler(deps.Jobs)

	s.mux.Handle("POST /resolve-outcomes", protect(resolve.Resolve))

	s.mux.HandleFunc("GET /api/stats", stats.Get)
	s.mux.HandleFunc("GET /api/calls", calls.List)
	s.mux.HandleFunc("GET /api/calls/{id}", calls.Get)
	s.mux.Handle("POST /api/calls", protect(calls.Create))
	s.mux.HandleFunc("GET /api/runs", runs.List)
	s.mux.HandleFunc("GET /api/runs/{id}", runs.Get)
	s.mux.HandleFunc("GET /api/health", s.handleHealth)

	if deps.Metrics != nil {
		path := cfg.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		s.mux.Handle("GET "+path, promhttp.HandlerFor(deps.Metrics, promhttp.HandlerOpts{}))
	}
}

// Handler returns the server's root handler.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.logger.Info("starting HTTP server", zap.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ok"}`))
}
