package server

import (
	"errors"
	"net/http"

	"github.com/google/uuid"

	"github.com/routelab-ai/routelab/internal/model"
	"github.com/routelab-ai/routelab/internal/service/suggest"
	"github.com/routelab-ai/routelab/internal/storage"
)

// HandleSuggest handles POST /v1/suggest: prompt-improvement analysis for a
// completed run.
func (h *Handlers) HandleSuggest(w http.ResponseWriter, r *http.Request) {
	if h.suggester == nil {
		writeError(w, r, http.StatusNotImplemented, model.ErrCodeInvalidInput, "suggestions are not enabled")
		return
	}

	var req model.SuggestRequest
	if err := decodeJSON(w, r, &req, h.maxRequestBodyBytes); err != nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, "invalid request body")
		return
	}

	runID, err := uuid.Parse(req.RunID)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, "run_id must be a valid UUID")
		return
	}

	resp, err := h.suggester.Suggest(r.Context(), runID)
	if err != nil {
		switch {
		case errors.Is(err, storage.ErrNotFound):
			writeError(w, r, http.StatusNotFound, model.ErrCodeNotFound, "run not found: "+req.RunID)
		case errors.Is(err, suggest.ErrRunNotCompleted):
			writeError(w, r, http.StatusConflict, model.ErrCodeConflict, "run has no metrics to analyze; only completed runs can be analyzed")
		default:
			h.writeInternalError(w, r, "failed to generate suggestions", err)
		}
		return
	}

	writeJSON(w, r, http.StatusOK, resp)
}
