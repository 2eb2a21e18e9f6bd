package server

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/routelab-ai/routelab/internal/model"
	"github.com/routelab-ai/routelab/internal/storage"
)

// HandleCreateRun handles POST /v1/runs. The run is accepted and executed in
// the background; the response carries the pending record for polling.
func (h *Handlers) HandleCreateRun(w http.ResponseWriter, r *http.Request) {
	var req model.CreateRunRequest
	if err := decodeJSON(w, r, &req, h.maxRequestBodyBytes); err != nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, "invalid request body")
		return
	}

	if err := model.ValidatePromptID(req.PromptID); err != nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, err.Error())
		return
	}

	prompt, err := h.store.GetPrompt(r.Context(), req.PromptID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, r, http.StatusNotFound, model.ErrCodeNotFound, "prompt not found: "+req.PromptID)
			return
		}
		h.writeInternalError(w, r, "failed to load prompt", err)
		return
	}
	if len(prompt.Categories) == 0 {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput,
			"prompt has no extractable categories; predictions could never be parsed")
		return
	}

	span := trace.SpanFromContext(r.Context())
	span.SetAttributes(attribute.String("routelab.prompt_id", req.PromptID))

	run, err := h.runner.Start(r.Context(), prompt)
	if err != nil {
		h.writeInternalError(w, r, "failed to start run", err)
		return
	}
	span.SetAttributes(attribute.String("routelab.run_id", run.ID.String()))

	writeJSON(w, r, http.StatusCreated, run)
}

// HandleGetRun handles GET /v1/runs/{run_id}.
func (h *Handlers) HandleGetRun(w http.ResponseWriter, r *http.Request) {
	runID, err := parseRunID(r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, err.Error())
		return
	}

	run, err := h.store.GetRun(r.Context(), runID)
	if err != nil {
		h.writeStoreError(w, r, "run "+runID.String(), err)
		return
	}
	writeJSON(w, r, http.StatusOK, run)
}

// HandleListRuns handles GET /v1/runs with optional prompt_id filter and
// pagination. Runs come back newest first.
func (h *Handlers) HandleListRuns(w http.ResponseWriter, r *http.Request) {
	limit, offset, err := parsePagination(r, 50, 200)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, err.Error())
		return
	}

	var promptID *string
	if v := r.URL.Query().Get("prompt_id"); v != "" {
		promptID = &v
	}

	runs, total, err := h.store.ListRuns(r.Context(), promptID, limit, offset)
	if err != nil {
		h.writeInternalError(w, r, "failed to list runs", err)
		return
	}
	if runs == nil {
		runs = []model.Run{}
	}
	writeList(w, r, runs, total, limit, offset)
}

// HandleGetRunResults handles GET /v1/runs/{run_id}/results: the per-case
// outcome log, including partial results of failed runs.
func (h *Handlers) HandleGetRunResults(w http.ResponseWriter, r *http.Request) {
	runID, err := parseRunID(r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, err.Error())
		return
	}

	// 404 for unknown runs; an existing run with no logged results returns
	// an empty list.
	if _, err := h.store.GetRun(r.Context(), runID); err != nil {
		h.writeStoreError(w, r, "run "+runID.String(), err)
		return
	}

	results, err := h.store.GetCaseResults(r.Context(), runID)
	if err != nil {
		h.writeInternalError(w, r, "failed to load case results", err)
		return
	}
	if results == nil {
		results = []model.CaseResult{}
	}
	writeJSON(w, r, http.StatusOK, results)
}

func parseRunID(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(r.PathValue("run_id"))
	if err != nil {
		return uuid.Nil, errors.New("run_id must be a valid UUID")
	}
	return id, nil
}
