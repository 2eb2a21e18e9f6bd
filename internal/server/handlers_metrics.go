package server

import (
	"net/http"

	"github.com/routelab-ai/routelab/internal/model"
)

// HandleMetricsSummary handles GET /v1/metrics/summary: per-prompt accuracy
// aggregates and the best-performing prompt overall. Prompts with no
// completed runs appear with null accuracy so new prompts are visible in
// the comparison.
func (h *Handlers) HandleMetricsSummary(w http.ResponseWriter, r *http.Request) {
	prompts, err := h.store.ListPrompts(r.Context())
	if err != nil {
		h.writeInternalError(w, r, "failed to list prompts", err)
		return
	}

	stats, totalRuns, err := h.store.RunStatsByPrompt(r.Context())
	if err != nil {
		h.writeInternalError(w, r, "failed to aggregate run stats", err)
		return
	}

	info, err := h.corpus.Info(r.Context())
	if err != nil {
		h.writeInternalError(w, r, "failed to load test set info", err)
		return
	}

	summary := model.MetricsSummary{
		Prompts:     make(map[string]model.PromptSummary, len(prompts)),
		TotalRuns:   totalRuns,
		TestSetSize: info.Total,
	}

	var bestAccuracy float64
	for _, p := range prompts {
		s := stats[p.ID]
		summary.Prompts[p.ID] = model.PromptSummary{
			ID:             p.ID,
			Name:           p.Name,
			LatestAccuracy: s.Latest,
			BestAccuracy:   s.Best,
			RunCount:       s.CompletedRuns,
		}
		if s.Best != nil && *s.Best > bestAccuracy {
			bestAccuracy = *s.Best
			id := p.ID
			summary.BestPrompt = &id
		}
	}

	writeJSON(w, r, http.StatusOK, summary)
}
