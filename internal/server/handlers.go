package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/routelab-ai/routelab/internal/corpus"
	"github.com/routelab-ai/routelab/internal/model"
	"github.com/routelab-ai/routelab/internal/storage"
)

// Store is the storage surface the handlers read and write through.
// *storage.DB implements it; tests substitute an in-memory fake.
type Store interface {
	Ping(ctx context.Context) error

	GetRun(ctx context.Context, id uuid.UUID) (model.Run, error)
	ListRuns(ctx context.Context, promptID *string, limit, offset int) ([]model.Run, int, error)
	GetCaseResults(ctx context.Context, runID uuid.UUID) ([]model.CaseResult, error)

	CreatePrompt(ctx context.Context, p model.Prompt) (model.Prompt, error)
	GetPrompt(ctx context.Context, id string) (model.Prompt, error)
	ListPrompts(ctx context.Context) ([]model.Prompt, error)
	UpdatePrompt(ctx context.Context, p model.Prompt) (model.Prompt, error)
	DeletePrompt(ctx context.Context, id string) error

	RunStatsByPrompt(ctx context.Context) (map[string]storage.RunStats, int, error)
}

// Runner launches background evaluation runs.
type Runner interface {
	Start(ctx context.Context, prompt model.Prompt) (model.Run, error)
	ActiveRuns() int64
}

// Suggester analyzes a completed run and proposes prompt improvements.
type Suggester interface {
	Suggest(ctx context.Context, runID uuid.UUID) (model.SuggestResponse, error)
}

// Handlers holds HTTP handler dependencies.
type Handlers struct {
	store               Store
	runner              Runner
	corpus              corpus.Provider
	suggester           Suggester
	logger              *slog.Logger
	startedAt           time.Time
	version             string
	maxRequestBodyBytes int64
}

// HandlersDeps holds all dependencies for constructing Handlers.
// Suggester may be nil, which disables the suggest endpoint.
type HandlersDeps struct {
	Store               Store
	Runner              Runner
	Corpus              corpus.Provider
	Suggester           Suggester
	Logger              *slog.Logger
	Version             string
	MaxRequestBodyBytes int64
}

// NewHandlers creates a new Handlers with all dependencies.
func NewHandlers(d HandlersDeps) *Handlers {
	return &Handlers{
		store:               d.Store,
		runner:              d.Runner,
		corpus:              d.Corpus,
		suggester:           d.Suggester,
		logger:              d.Logger,
		startedAt:           time.Now(),
		version:             d.Version,
		maxRequestBodyBytes: d.MaxRequestBodyBytes,
	}
}

// writeInternalError logs the underlying error and writes a generic 500.
func (h *Handlers) writeInternalError(w http.ResponseWriter, r *http.Request, msg string, err error) {
	h.logger.Error(msg,
		"error", err,
		"path", r.URL.Path,
		"request_id", RequestIDFromContext(r.Context()))
	writeError(w, r, http.StatusInternalServerError, model.ErrCodeInternalError, msg)
}

// writeStoreError maps storage sentinel errors onto API error responses.
func (h *Handlers) writeStoreError(w http.ResponseWriter, r *http.Request, msg string, err error) {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		writeError(w, r, http.StatusNotFound, model.ErrCodeNotFound, msg+": not found")
	case errors.Is(err, storage.ErrConflict):
		writeError(w, r, http.StatusConflict, model.ErrCodeConflict, msg+": already exists")
	default:
		h.writeInternalError(w, r, msg, err)
	}
}

// parsePagination reads limit and offset query parameters with bounds.
func parsePagination(r *http.Request, defaultLimit, maxLimit int) (limit, offset int, err error) {
	limit = defaultLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		limit, err = strconv.Atoi(v)
		if err != nil || limit < 1 || limit > maxLimit {
			return 0, 0, errors.New("limit must be an integer between 1 and " + strconv.Itoa(maxLimit))
		}
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		offset, err = strconv.Atoi(v)
		if err != nil || offset < 0 {
			return 0, 0, errors.New("offset must be a non-negative integer")
		}
	}
	return limit, offset, nil
}

// HandleHealth handles GET /health.
func (h *Handlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	resp := model.HealthResponse{
		Status:     "ok",
		Version:    h.version,
		Postgres:   "ok",
		ActiveRuns: int(h.runner.ActiveRuns()),
		Uptime:     int64(time.Since(h.startedAt).Seconds()),
	}

	status := http.StatusOK
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := h.store.Ping(ctx); err != nil {
		resp.Status = "degraded"
		resp.Postgres = "unreachable"
		status = http.StatusServiceUnavailable
	}

	writeJSON(w, r, status, resp)
}
