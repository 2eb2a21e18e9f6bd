// Package corpus provides access to the labeled test-case corpus that runs
// are evaluated against.
package corpus

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/routelab-ai/routelab/internal/model"
)

// Provider serves the corpus. Implementations must return cases in stable
// ascending-ID order; run results and failed-case lists follow that order.
type Provider interface {
	Cases(ctx context.Context) ([]model.TestCase, error)
	Info(ctx context.Context) (model.CorpusInfo, error)
}

// Info derives corpus metadata from a case list. Categories come back
// sorted so the projection is stable.
func Info(cases []model.TestCase) model.CorpusInfo {
	counts := make(map[string]int)
	for _, tc := range cases {
		counts[tc.Expected]++
	}
	categories := make([]string, 0, len(counts))
	for c := range counts {
		categories = append(categories, c)
	}
	sort.Strings(categories)
	return model.CorpusInfo{
		Total:          len(cases),
		Categories:     categories,
		CategoryCounts: counts,
	}
}

// seedCase mirrors the on-disk seed format. The optional intent field is a
// dataset artifact and is dropped on load.
type seedCase struct {
	ID       int    `json:"id"`
	Ticket   string `json:"ticket"`
	Expected string `json:"expected"`
	Intent   string `json:"intent"`
}

// LoadFile reads a JSON seed file of test cases and validates it. Used at
// startup to populate an empty corpus table.
func LoadFile(path string) ([]model.TestCase, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("corpus: read seed file: %w", err)
	}

	var seeds []seedCase
	if err := json.Unmarshal(data, &seeds); err != nil {
		return nil, fmt.Errorf("corpus: parse seed file %s: %w", path, err)
	}
	if len(seeds) == 0 {
		return nil, fmt.Errorf("corpus: seed file %s contains no test cases", path)
	}

	seen := make(map[int]bool, len(seeds))
	cases := make([]model.TestCase, len(seeds))
	for i, s := range seeds {
		if s.Ticket == "" || s.Expected == "" {
			return nil, fmt.Errorf("corpus: seed case %d is missing ticket or expected", s.ID)
		}
		if seen[s.ID] {
			return nil, fmt.Errorf("corpus: duplicate test case id %d", s.ID)
		}
		seen[s.ID] = true
		cases[i] = model.TestCase{ID: s.ID, Ticket: s.Ticket, Expected: s.Expected}
	}

	sort.Slice(cases, func(i, j int) bool { return cases[i].ID < cases[j].ID })
	return cases, nil
}
