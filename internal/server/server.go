package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/routelab-ai/routelab/internal/corpus"
	"github.com/routelab-ai/routelab/internal/ratelimit"
)

// Server is the Routelab HTTP server.
type Server struct {
	httpServer *http.Server
	handler    http.Handler
	logger     *slog.Logger
}

// ServerConfig holds all dependencies and configuration for creating a
// Server. Optional (nil-safe): Suggester, Limiter.
type ServerConfig struct {
	Store     Store
	Runner    Runner
	Corpus    corpus.Provider
	Suggester Suggester
	Limiter   ratelimit.Limiter
	Logger    *slog.Logger

	Port                int
	ReadTimeout         time.Duration
	WriteTimeout        time.Duration
	Version             string
	MaxRequestBodyBytes int64
}

// New creates a new HTTP server with all routes configured.
func New(cfg ServerConfig) *Server {
	h := NewHandlers(HandlersDeps{
		Store:               cfg.Store,
		Runner:              cfg.Runner,
		Corpus:              cfg.Corpus,
		Suggester:           cfg.Suggester,
		Logger:              cfg.Logger,
		Version:             cfg.Version,
		MaxRequestBodyBytes: cfg.MaxRequestBodyBytes,
	})

	reqIDFunc := func(r *http.Request) string {
		return RequestIDFromContext(r.Context())
	}

	// Run creation and suggestions both fan out to the model upstream, so
	// they get a tighter per-IP limit than plain reads.
	runRL := ratelimit.Middleware(cfg.Limiter, "runs", ratelimit.IPKeyFunc, reqIDFunc)
	suggestRL := ratelimit.Middleware(cfg.Limiter, "suggest", ratelimit.IPKeyFunc, reqIDFunc)

	mux := http.NewServeMux()

	// Run lifecycle.
	mux.Handle("POST /v1/runs", runRL(http.HandlerFunc(h.HandleCreateRun)))
	mux.HandleFunc("GET /v1/runs", h.HandleListRuns)
	mux.HandleFunc("GET /v1/runs/{run_id}", h.HandleGetRun)
	mux.HandleFunc("GET /v1/runs/{run_id}/results", h.HandleGetRunResults)

	// Prompt management.
	mux.HandleFunc("POST /v1/prompts", h.HandleCreatePrompt)
	mux.HandleFunc("GET /v1/prompts", h.HandleListPrompts)
	mux.HandleFunc("GET /v1/prompts/{prompt_id}", h.HandleGetPrompt)
	mux.HandleFunc("PUT /v1/prompts/{prompt_id}", h.HandleUpdatePrompt)
	mux.HandleFunc("DELETE /v1/prompts/{prompt_id}", h.HandleDeletePrompt)

	// Test corpus.
	mux.HandleFunc("GET /v1/testset", h.HandleTestSetInfo)
	mux.HandleFunc("GET /v1/testset/cases", h.HandleTestSetCases)

	// Cross-run aggregates and analysis.
	mux.HandleFunc("GET /v1/metrics/summary", h.HandleMetricsSummary)
	mux.Handle("POST /v1/suggest", suggestRL(http.HandlerFunc(h.HandleSuggest)))

	// Health (no rate limit).
	mux.HandleFunc("GET /health", h.HandleHealth)

	// Middleware chain (outermost executes first):
	// request ID → tracing → logging → recovery → handler.
	var handler http.Handler = mux
	handler = recoveryMiddleware(cfg.Logger, handler)
	handler = loggingMiddleware(cfg.Logger, handler)
	handler = tracingMiddleware(handler)
	handler = requestIDMiddleware(handler)

	return &Server{
		httpServer: &http.Server{
			Addr:         fmt.Sprintf(":%d", cfg.Port),
			Handler:      handler,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
		},
		handler: handler,
		logger:  cfg.Logger,
	}
}

// Handler returns the root HTTP handler for use in tests.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Start begins serving HTTP requests.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("http server shutting down")
	return s.httpServer.Shutdown(ctx)
}
