// Package controller contains the controller-specific logic for the HTTP API.
package controller

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"jobcore/internal/controller/handlers"
	"jobcore/internal/controller/middleware"
)

// Server is the HTTP server for the controller API.
type Server struct {
	httpServer *http.Server
}

// Config controls the route table's authentication and rate limiting.
type Config struct {
	Addr string
	// APIKeyHash gates every route but the health probes. Empty disables
	// auth, which a local/dev run can use.
	APIKeyHash string
	// RateLimitPerSecond and RateLimitBurst configure the per-caller
	// token bucket; zero disables rate limiting.
	RateLimitPerSecond float64
	RateLimitBurst     int
	// Metrics, if set, is served at GET /metrics unauthenticated.
	Metrics http.Handler
	// Logger receives one structured line per request. Defaults to
	// slog.Default() if nil.
	Logger *slog.Logger
}

// New builds the controller's HTTP route table fronting h.
func New(cfg Config, h *handlers.Handlers) *Server {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", h.Healthz)
	mux.HandleFunc("GET /readyz", h.Readyz)
	if cfg.Metrics != nil {
		mux.Handle("GET /metrics", cfg.Metrics)
	}

	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	logMW := middleware.RequestLog(log)
	var wrap func(http.Handler) http.Handler = func(next http.Handler) http.Handler { return logMW(next) }
	if cfg.APIKeyHash != "" {
		authMW := middleware.Auth(cfg.APIKeyHash)
		wrap = func(next http.Handler) http.Handler { return logMW(authMW(next)) }
	}
	if cfg.RateLimitPerSecond > 0 {
		rateMW := middleware.RateLimit(cfg.RateLimitPerSecond, cfg.RateLimitBurst)
		inner := wrap
		wrap = func(next http.Handler) http.Handler { return rateMW(inner(next)) }
	}

	route := func(pattern string, handler http.HandlerFunc) {
		mux.Handle(pattern, wrap(handler))
	}

	route("POST /jobs", h.CreateJob)
	route("POST /jobs/run", h.SubmitAndRunJob)
	route("GET /jobs", h.GetJobs)
	route("GET /jobs/{id}", h.GetJob)
	route("PATCH /jobs/{id}", h.UpdateJob)
	route("POST /jobs/{id}/start", h.StartJob)
	route("GET /jobs/{id}/executions", h.GetExecutions)
	route("GET /jobs/{id}/executions/latest", h.GetLatestExecution)

	route("GET /executions/{id}", h.GetExecution)
	route("PATCH /executions/{id}", h.UpdateExecution)
	route("POST /executions/{id}/notify", h.Notify)
	route("POST /executions/{id}/restart", h.RestartExecution)

	return &Server{
		httpServer: &http.Server{
			Addr:         cfg.Addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
		},
	}
}

// Run starts the HTTP server. It blocks until the context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	serverErr := make(chan error, 1)

	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	select {
	case err := <-serverErr:
		return err
	case <-ctx.Done():
		shutDownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		return s.Shutdown(shutDownCtx)
	}
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
