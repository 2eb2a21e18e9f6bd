// Package metrics computes run analytics from classification results.
//
// Compute is a pure function: no hidden state, deterministic, and
// byte-identical output for identical input order. Map-valued fields
// (category stats, confusion matrix) carry no ordering guarantee; the
// failed-case list preserves input order exactly.
package metrics

import (
	"github.com/routelab-ai/routelab/internal/model"
)

// Report is the full analytics set produced by one Compute invocation.
// The three fields are always populated together — callers persist them
// atomically so a reader never observes a partial result set.
type Report struct {
	Metrics         model.Metrics
	ConfusionMatrix model.ConfusionMatrix
	FailedCases     []model.FailedCase
}

// Compute aggregates a sequence of per-case results into accuracy metrics,
// a confusion matrix, and the complete failed-case list.
//
// A result counts as correct only on exact, case-sensitive match between
// predicted and expected; a nil prediction is never correct and is recorded
// in the confusion matrix under model.UnknownCategory. Every mismatch lands
// in FailedCases, in input order, with no sampling: that list is the
// debugging surface for prompt iteration.
func Compute(results []model.CaseResult) Report {
	correct := 0
	stats := make(map[string]model.CategoryStat)
	matrix := make(model.ConfusionMatrix)
	failed := make([]model.FailedCase, 0)

	for _, res := range results {
		st := stats[res.Expected]
		st.Total++

		predicted := model.UnknownCategory
		if res.Predicted != nil {
			predicted = *res.Predicted
		}
		row := matrix[res.Expected]
		if row == nil {
			row = make(map[string]int)
			matrix[res.Expected] = row
		}
		row[predicted]++

		if res.Correct() {
			correct++
			st.Correct++
		} else {
			failed = append(failed, model.FailedCase{
				TestID:    res.TestID,
				Ticket:    res.Ticket,
				Expected:  res.Expected,
				Predicted: res.Predicted,
			})
		}
		stats[res.Expected] = st
	}

	total := len(results)
	accuracy := 0.0
	if total > 0 {
		accuracy = float64(correct) / float64(total)
	}

	return Report{
		Metrics: model.Metrics{
			OverallAccuracy: accuracy,
			Correct:         correct,
			Total:           total,
			CategoryStats:   stats,
		},
		ConfusionMatrix: matrix,
		FailedCases:     failed,
	}
}
