package metrics_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/routelab-ai/routelab/internal/metrics"
	"github.com/routelab-ai/routelab/internal/model"
)

// ptr is a convenience helper for pointer literals in test cases.
func ptr[T any](v T) *T { return &v }

func result(id int, expected string, predicted *string) model.CaseResult {
	return model.CaseResult{TestID: id, Ticket: "ticket text", Expected: expected, Predicted: predicted}
}

func TestCompute_MixedScenario(t *testing.T) {
	// 4 cases: one exact match, one wrong label, one exact match,
	// one failed classification attempt.
	results := []model.CaseResult{
		result(1, "DELIVERY", ptr("DELIVERY")),
		result(2, "DELIVERY", ptr("SHIPPING")),
		result(3, "PAYMENT", ptr("PAYMENT")),
		result(4, "PAYMENT", nil),
	}

	rep := metrics.Compute(results)

	assert.Equal(t, 2, rep.Metrics.Correct)
	assert.Equal(t, 4, rep.Metrics.Total)
	assert.InDelta(t, 0.5, rep.Metrics.OverallAccuracy, 1e-9)

	assert.Equal(t, model.CategoryStat{Total: 2, Correct: 1}, rep.Metrics.CategoryStats["DELIVERY"])
	assert.Equal(t, model.CategoryStat{Total: 2, Correct: 1}, rep.Metrics.CategoryStats["PAYMENT"])

	want := model.ConfusionMatrix{
		"DELIVERY": {"DELIVERY": 1, "SHIPPING": 1},
		"PAYMENT":  {"PAYMENT": 1, model.UnknownCategory: 1},
	}
	assert.Equal(t, want, rep.ConfusionMatrix)

	require.Len(t, rep.FailedCases, 2)
	assert.Equal(t, 2, rep.FailedCases[0].TestID)
	assert.Equal(t, "DELIVERY", rep.FailedCases[0].Expected)
	require.NotNil(t, rep.FailedCases[0].Predicted)
	assert.Equal(t, "SHIPPING", *rep.FailedCases[0].Predicted)
	assert.Equal(t, 4, rep.FailedCases[1].TestID)
	assert.Nil(t, rep.FailedCases[1].Predicted)
}

func TestCompute_EmptyInput(t *testing.T) {
	rep := metrics.Compute(nil)

	assert.Equal(t, 0, rep.Metrics.Total)
	assert.Equal(t, 0, rep.Metrics.Correct)
	assert.Equal(t, 0.0, rep.Metrics.OverallAccuracy, "empty input must yield 0, not NaN")
	assert.Empty(t, rep.ConfusionMatrix)
	assert.NotNil(t, rep.FailedCases)
	assert.Empty(t, rep.FailedCases)
}

func TestCompute_AllCorrect(t *testing.T) {
	results := []model.CaseResult{
		result(1, "ORDER", ptr("ORDER")),
		result(2, "REFUND", ptr("REFUND")),
	}

	rep := metrics.Compute(results)

	assert.Equal(t, 2, rep.Metrics.Correct)
	assert.Equal(t, 1.0, rep.Metrics.OverallAccuracy)
	assert.Empty(t, rep.FailedCases)
	assert.NotNil(t, rep.FailedCases, "completed runs report an empty list, not null")
}

func TestCompute_MatchIsCaseSensitive(t *testing.T) {
	rep := metrics.Compute([]model.CaseResult{
		result(1, "ORDER", ptr("order")),
	})

	assert.Equal(t, 0, rep.Metrics.Correct)
	require.Len(t, rep.FailedCases, 1)
	assert.Equal(t, 1, rep.ConfusionMatrix["ORDER"]["order"])
}

func TestCompute_FailedCasesPreserveInputOrder(t *testing.T) {
	// All wrong, deliberately out of numeric order: the engine must not
	// re-sort — ordering is the caller's contract.
	results := []model.CaseResult{
		result(7, "A", ptr("B")),
		result(3, "A", nil),
		result(9, "B", ptr("A")),
	}

	rep := metrics.Compute(results)

	require.Len(t, rep.FailedCases, 3)
	assert.Equal(t, []int{7, 3, 9}, []int{
		rep.FailedCases[0].TestID,
		rep.FailedCases[1].TestID,
		rep.FailedCases[2].TestID,
	})
}

func TestCompute_Idempotent(t *testing.T) {
	results := []model.CaseResult{
		result(1, "DELIVERY", ptr("DELIVERY")),
		result(2, "DELIVERY", nil),
		result(3, "PAYMENT", ptr("REFUND")),
	}

	first := metrics.Compute(results)
	second := metrics.Compute(results)

	assert.Equal(t, first, second)
}

// TestCompute_Properties checks the aggregate invariants on a larger
// synthetic result set.
func TestCompute_Properties(t *testing.T) {
	var results []model.CaseResult
	preds := []*string{ptr("ACCOUNT"), ptr("CANCEL"), nil, ptr("ORDER"), ptr("PAYMENT")}
	expects := []string{"ACCOUNT", "ORDER", "PAYMENT", "ORDER", "CANCEL"}
	for i := 0; i < 40; i++ {
		results = append(results, result(i+1, expects[i%len(expects)], preds[(i*3)%len(preds)]))
	}

	rep := metrics.Compute(results)

	// correct + failed == total, and every failed case is a real mismatch.
	assert.Equal(t, rep.Metrics.Total, rep.Metrics.Correct+len(rep.FailedCases))
	for _, fc := range rep.FailedCases {
		if fc.Predicted != nil {
			assert.NotEqual(t, fc.Expected, *fc.Predicted)
		}
	}

	// Category totals partition the result set.
	statTotal := 0
	for c, st := range rep.Metrics.CategoryStats {
		assert.LessOrEqual(t, st.Correct, st.Total, "category %s", c)
		statTotal += st.Total
	}
	assert.Equal(t, rep.Metrics.Total, statTotal)

	// Confusion matrix cells sum to total.
	cells := 0
	for _, row := range rep.ConfusionMatrix {
		for _, n := range row {
			cells += n
		}
	}
	assert.Equal(t, rep.Metrics.Total, cells)
}
