package server

import (
	"net/http"
	"strings"

	"github.com/routelab-ai/routelab/internal/model"
)

// HandleTestSetInfo handles GET /v1/testset: corpus size and category
// distribution.
func (h *Handlers) HandleTestSetInfo(w http.ResponseWriter, r *http.Request) {
	info, err := h.corpus.Info(r.Context())
	if err != nil {
		h.writeInternalError(w, r, "failed to load test set info", err)
		return
	}
	writeJSON(w, r, http.StatusOK, info)
}

// HandleTestSetCases handles GET /v1/testset/cases with optional category
// filter and pagination.
func (h *Handlers) HandleTestSetCases(w http.ResponseWriter, r *http.Request) {
	limit, offset, err := parsePagination(r, 50, 200)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, err.Error())
		return
	}

	cases, err := h.corpus.Cases(r.Context())
	if err != nil {
		h.writeInternalError(w, r, "failed to load test cases", err)
		return
	}

	if category := r.URL.Query().Get("category"); category != "" {
		category = strings.ToUpper(category)
		filtered := make([]model.TestCase, 0, len(cases))
		for _, tc := range cases {
			if tc.Expected == category {
				filtered = append(filtered, tc)
			}
		}
		cases = filtered
	}

	total := len(cases)
	if offset >= total {
		cases = []model.TestCase{}
	} else {
		end := min(offset+limit, total)
		cases = cases[offset:end]
	}

	writeList(w, r, cases, total, limit, offset)
}
