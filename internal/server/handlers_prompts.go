package server

import (
	"net/http"

	"github.com/routelab-ai/routelab/internal/model"
)

// HandleCreatePrompt handles POST /v1/prompts. Categories are extracted
// from the template, not supplied by the caller: the closed category set a
// run parses predictions against must match what the model actually sees.
func (h *Handlers) HandleCreatePrompt(w http.ResponseWriter, r *http.Request) {
	var req model.CreatePromptRequest
	if err := decodeJSON(w, r, &req, h.maxRequestBodyBytes); err != nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, "invalid request body")
		return
	}

	prompt := model.Prompt{
		ID:         req.ID,
		Name:       req.Name,
		Template:   req.Template,
		Categories: model.ExtractCategories(req.Template),
	}
	if err := model.ValidatePrompt(prompt); err != nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, err.Error())
		return
	}

	created, err := h.store.CreatePrompt(r.Context(), prompt)
	if err != nil {
		h.writeStoreError(w, r, "prompt "+req.ID, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, created)
}

// HandleGetPrompt handles GET /v1/prompts/{prompt_id}.
func (h *Handlers) HandleGetPrompt(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("prompt_id")
	prompt, err := h.store.GetPrompt(r.Context(), id)
	if err != nil {
		h.writeStoreError(w, r, "prompt "+id, err)
		return
	}
	writeJSON(w, r, http.StatusOK, prompt)
}

// HandleListPrompts handles GET /v1/prompts.
func (h *Handlers) HandleListPrompts(w http.ResponseWriter, r *http.Request) {
	prompts, err := h.store.ListPrompts(r.Context())
	if err != nil {
		h.writeInternalError(w, r, "failed to list prompts", err)
		return
	}
	if prompts == nil {
		prompts = []model.Prompt{}
	}
	writeJSON(w, r, http.StatusOK, prompts)
}

// HandleUpdatePrompt handles PUT /v1/prompts/{prompt_id}. Nil fields in the
// body are left unchanged; a new template re-extracts categories.
func (h *Handlers) HandleUpdatePrompt(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("prompt_id")

	var req model.UpdatePromptRequest
	if err := decodeJSON(w, r, &req, h.maxRequestBodyBytes); err != nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, "invalid request body")
		return
	}

	prompt, err := h.store.GetPrompt(r.Context(), id)
	if err != nil {
		h.writeStoreError(w, r, "prompt "+id, err)
		return
	}

	if req.Name != nil {
		prompt.Name = *req.Name
	}
	if req.Template != nil {
		prompt.Template = *req.Template
		prompt.Categories = model.ExtractCategories(*req.Template)
	}
	if err := model.ValidatePrompt(prompt); err != nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, err.Error())
		return
	}

	updated, err := h.store.UpdatePrompt(r.Context(), prompt)
	if err != nil {
		h.writeStoreError(w, r, "prompt "+id, err)
		return
	}
	writeJSON(w, r, http.StatusOK, updated)
}

// HandleDeletePrompt handles DELETE /v1/prompts/{prompt_id}. Past runs of
// the prompt are kept; they are historical records.
func (h *Handlers) HandleDeletePrompt(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("prompt_id")
	if err := h.store.DeletePrompt(r.Context(), id); err != nil {
		h.writeStoreError(w, r, "prompt "+id, err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]string{"deleted": id})
}
