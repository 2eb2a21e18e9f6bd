// Package suggest generates prompt-improvement suggestions by sending a
// completed run's metrics and failure cases back through the language model.
package suggest

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/routelab-ai/routelab/internal/model"
)

// ErrRunNotCompleted is returned when the referenced run has no metrics to
// analyze.
var ErrRunNotCompleted = fmt.Errorf("suggest: run is not completed")

// ChatCompleter sends a system+user message pair to the language model.
type ChatCompleter interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

// RunSource loads the run and prompt records the analysis is built from.
type RunSource interface {
	GetRun(ctx context.Context, id uuid.UUID) (model.Run, error)
	GetPrompt(ctx context.Context, id string) (model.Prompt, error)
}

// Service builds and runs prompt-improvement analyses.
type Service struct {
	store  RunSource
	chat   ChatCompleter
	logger *slog.Logger
}

// New creates a suggestion service.
func New(store RunSource, chat ChatCompleter, logger *slog.Logger) *Service {
	return &Service{store: store, chat: chat, logger: logger}
}

const systemPrompt = `You are an expert prompt engineer analyzing classification prompt performance.

Given the current prompt template, test metrics, and failure cases, provide:
1. A brief analysis of failure patterns (what's going wrong)
2. Specific, actionable suggestions to improve the prompt
3. Which categories need the most attention

Be concise and practical. Focus on changes that will directly improve accuracy.`

const maxFailedExamples = 10

// Suggest analyzes a completed run and returns improvement suggestions.
// The analysis is built from the stored run record, never caller-supplied
// metrics, so it always reflects a real evaluation.
func (s *Service) Suggest(ctx context.Context, runID uuid.UUID) (model.SuggestResponse, error) {
	run, err := s.store.GetRun(ctx, runID)
	if err != nil {
		return model.SuggestResponse{}, err
	}
	if run.Status != model.RunStatusCompleted || run.Metrics == nil {
		return model.SuggestResponse{}, ErrRunNotCompleted
	}

	prompt, err := s.store.GetPrompt(ctx, run.PromptID)
	if err != nil {
		return model.SuggestResponse{}, err
	}

	analysis, err := s.chat.Complete(ctx, systemPrompt, buildAnalysisPrompt(prompt, run))
	if err != nil {
		return model.SuggestResponse{}, fmt.Errorf("suggest: analysis call: %w", err)
	}

	s.logger.Info("suggestion generated",
		slog.String("run_id", runID.String()),
		slog.String("prompt_id", run.PromptID))

	return model.SuggestResponse{
		Analysis:           analysis,
		Suggestions:        extractSuggestions(analysis, 5),
		PriorityCategories: priorityCategories(run.Metrics.CategoryStats, 3),
	}, nil
}

// buildAnalysisPrompt formats the run record for the model: template,
// headline metrics, per-category stats, confusion matrix, and a sample of
// failed cases.
func buildAnalysisPrompt(prompt model.Prompt, run model.Run) string {
	var b strings.Builder

	fmt.Fprintf(&b, "## Current Prompt Template\n```\n%s\n```\n\n", prompt.Template)
	fmt.Fprintf(&b, "## Test Results\n- Overall Accuracy: %.1f%%\n- Correct: %d / %d\n\n",
		run.Metrics.OverallAccuracy*100, run.Metrics.Correct, run.Metrics.Total)

	stats, _ := json.MarshalIndent(run.Metrics.CategoryStats, "", "  ")
	fmt.Fprintf(&b, "## Per-Category Performance\n%s\n\n", stats)

	matrix, _ := json.MarshalIndent(run.ConfusionMatrix, "", "  ")
	fmt.Fprintf(&b, "## Confusion Matrix (Actual -> Predicted)\n%s\n\n", matrix)

	fmt.Fprintf(&b, "## Sample Failed Cases (%d total failures)\n", len(run.FailedCases))
	for i, fc := range run.FailedCases {
		if i == maxFailedExamples {
			break
		}
		predicted := "null"
		if fc.Predicted != nil {
			predicted = *fc.Predicted
		}
		fmt.Fprintf(&b, "  - Ticket: %q\n    Expected: %s, Got: %s\n",
			truncate(fc.Ticket, 100), fc.Expected, predicted)
	}

	b.WriteString("\nBased on this analysis, what specific changes would improve this classification prompt?")
	return b.String()
}

// extractSuggestions pulls bullet and numbered list items out of the
// analysis text, up to max.
func extractSuggestions(analysis string, max int) []string {
	suggestions := make([]string, 0, max)
	for _, line := range strings.Split(analysis, "\n") {
		line = strings.TrimSpace(line)
		var item string
		switch {
		case strings.HasPrefix(line, "- "):
			item = line[2:]
		case strings.HasPrefix(line, "* "):
			item = line[2:]
		case len(line) > 2 && line[0] >= '1' && line[0] <= '9' && (line[1] == '.' || line[1] == ')'):
			item = line[2:]
		default:
			continue
		}
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		suggestions = append(suggestions, item)
		if len(suggestions) == max {
			break
		}
	}
	return suggestions
}

// priorityCategories returns the max lowest-accuracy categories from the
// per-category stats, worst first. Ties break alphabetically so the output
// is stable.
func priorityCategories(stats map[string]model.CategoryStat, max int) []string {
	type catAcc struct {
		name string
		acc  float64
	}
	accs := make([]catAcc, 0, len(stats))
	for name, s := range stats {
		if s.Total == 0 {
			continue
		}
		accs = append(accs, catAcc{name, float64(s.Correct) / float64(s.Total)})
	}
	sort.Slice(accs, func(i, j int) bool {
		if accs[i].acc != accs[j].acc {
			return accs[i].acc < accs[j].acc
		}
		return accs[i].name < accs[j].name
	})

	if len(accs) > max {
		accs = accs[:max]
	}
	names := make([]string, len(accs))
	for i, c := range accs {
		names[i] = c.name
	}
	return names
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
