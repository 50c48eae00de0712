// internal/api/server.go
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	handler "github.com/newthinker/lookback/internal/api/handler/api"
	"github.com/newthinker/lookback/internal/api/job"
	"github.com/newthinker/lookback/internal/api/middleware"
	"github.com/newthinker/lookback/internal/metrics"
)

// Service runs and archives backtests
type Service interface {
	handler.Runner
	handler.Archive
}

// Server represents the HTTP server for lookback
type Server struct {
	httpServer *http.Server
	logger     *zap.Logger
	mux        *http.ServeMux
	jobs       *job.Store
}

// Config holds server configuration
type Config struct {
	Host        string
	Port        int
	APIKey      string
	CORSOrigins []string
	JobTTL      time.Duration
	MaxJobs     int
	MetricsPath string // empty disables the metrics endpoint
}

// NewServer creates a new HTTP server. reg may be nil to run without metrics.
func NewServer(cfg Config, svc Service, reg *metrics.Registry, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxJobs <= 0 {
		cfg.MaxJobs = 100
	}

	s := &Server{
		logger: logger,
		mux:    http.NewServeMux(),
		jobs:   job.NewStore(cfg.MaxJobs, cfg.JobTTL),
	}
	s.setupRoutes(cfg, svc, reg)

	var h http.Handler = s.mux
	h = middleware.CORS(cfg.CORSOrigins)(h)
	h = metrics.LoggingMiddleware(logger)(h)
	if reg != nil {
		h = metrics.HTTPMiddleware(reg)(h)
	}

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      h,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 6 * time.Minute, // synchronous backtests can take a while
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes(cfg Config, svc Service, reg *metrics.Registry) {
	var onJobs func(int)
	if reg != nil {
		onJobs = func(n int) { reg.SetJobsActive("backtest", n) }
	}
	backtests := handler.NewBacktestHandler(s.jobs, svc, s.logger.Named("api"), onJobs)
	archive := handler.NewArchiveHandler(svc)
	strategies := handler.NewStrategiesHandler(svc.Strategies())

	// Unauthenticated routes
	s.mux.HandleFunc("POST /api/backtest", backtests.Run)
	s.mux.HandleFunc("GET /api/health", s.handleHealth)
	if reg != nil && cfg.MetricsPath != "" {
		s.mux.Handle("GET "+cfg.MetricsPath, promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	}

	// Versioned API behind the API key
	v1 := http.NewServeMux()
	v1.HandleFunc("POST /api/v1/backtests", backtests.Create)
	v1.HandleFunc("GET /api/v1/backtests/{id}", backtests.GetStatus)
	v1.HandleFunc("GET /api/v1/archive", archive.List)
	v1.HandleFunc("GET /api/v1/archive/{id}", archive.Get)
	v1.HandleFunc("GET /api/v1/strategies", strategies.List)
	s.mux.Handle("/api/v1/", middleware.APIKeyAuth(cfg.APIKey)(v1))
}

// Handler returns the root handler with all middleware applied
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
