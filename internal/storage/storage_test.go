package storage_test

import (
	"context"
	"fmt"
	"os"
	"sync/atomic"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/routelab-ai/routelab/internal/metrics"
	"github.com/routelab-ai/routelab/internal/model"
	"github.com/routelab-ai/routelab/internal/storage"
	"github.com/routelab-ai/routelab/internal/testutil"
	"github.com/routelab-ai/routelab/migrations"
)

var testDB *storage.DB

func TestMain(m *testing.M) {
	if os.Getenv("SKIP_INTEGRATION") != "" {
		os.Exit(0)
	}

	tc := testutil.MustStartPostgres()
	defer tc.Terminate()

	var err error
	testDB, err = tc.NewTestDB(context.Background(), testutil.TestLogger())
	if err != nil {
		fmt.Fprintf(os.Stderr, "storage_test: %v\n", err)
		os.Exit(1)
	}
	defer testDB.Close()

	os.Exit(m.Run())
}

var promptSeq atomic.Int64

// newPrompt inserts a unique prompt for tests that need a parent record.
func newPrompt(t *testing.T) model.Prompt {
	t.Helper()
	id := fmt.Sprintf("prompt-%d", promptSeq.Add(1))
	p, err := testDB.CreatePrompt(context.Background(), model.Prompt{
		ID:         id,
		Name:       "Prompt " + id,
		Template:   "Classify: {ticket}",
		Categories: []string{"ACCOUNT", "DELIVERY"},
	})
	require.NoError(t, err)
	return p
}

func sampleReport() metrics.Report {
	predicted := "ACCOUNT"
	return metrics.Report{
		Metrics: model.Metrics{
			OverallAccuracy: 0.5,
			Correct:         1,
			Total:           2,
			CategoryStats: map[string]model.CategoryStat{
				"ACCOUNT":  {Total: 1, Correct: 1},
				"DELIVERY": {Total: 1, Correct: 0},
			},
		},
		ConfusionMatrix: model.ConfusionMatrix{
			"ACCOUNT":  {"ACCOUNT": 1},
			"DELIVERY": {"ACCOUNT": 1},
		},
		FailedCases: []model.FailedCase{
			{TestID: 2, Ticket: "late parcel", Expected: "DELIVERY", Predicted: &predicted},
		},
	}
}

func TestMigrationsAreIdempotent(t *testing.T) {
	require.NoError(t, testDB.RunMigrations(context.Background(), migrations.FS))
}

func TestRunLifecycle(t *testing.T) {
	ctx := context.Background()
	p := newPrompt(t)

	run, err := testDB.CreateRun(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusPending, run.Status)

	got, err := testDB.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, run.ID, got.ID)
	assert.Nil(t, got.Metrics)
	assert.Nil(t, got.CompletedAt)

	require.NoError(t, testDB.MarkRunRunning(ctx, run.ID))
	assert.ErrorIs(t, testDB.MarkRunRunning(ctx, run.ID), storage.ErrTerminal)

	require.NoError(t, testDB.CompleteRun(ctx, run.ID, sampleReport()))

	got, err = testDB.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusCompleted, got.Status)
	require.NotNil(t, got.CompletedAt)
	require.NotNil(t, got.Metrics)
	assert.Equal(t, 0.5, got.Metrics.OverallAccuracy)
	assert.Equal(t, 1, got.ConfusionMatrix["DELIVERY"]["ACCOUNT"])
	require.Len(t, got.FailedCases, 1)
	assert.Equal(t, "ACCOUNT", *got.FailedCases[0].Predicted)
}

func TestTerminalRunIsImmutable(t *testing.T) {
	ctx := context.Background()
	p := newPrompt(t)

	run, err := testDB.CreateRun(ctx, p.ID)
	require.NoError(t, err)
	require.NoError(t, testDB.CompleteRun(ctx, run.ID, sampleReport()))

	assert.ErrorIs(t, testDB.CompleteRun(ctx, run.ID, sampleReport()), storage.ErrTerminal)
	assert.ErrorIs(t, testDB.FailRun(ctx, run.ID, "too late"), storage.ErrTerminal)

	got, err := testDB.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusCompleted, got.Status)
	assert.Nil(t, got.Error)
}

func TestFailRunLeavesMetricsNull(t *testing.T) {
	ctx := context.Background()
	p := newPrompt(t)

	run, err := testDB.CreateRun(ctx, p.ID)
	require.NoError(t, err)
	require.NoError(t, testDB.MarkRunRunning(ctx, run.ID))
	require.NoError(t, testDB.FailRun(ctx, run.ID, "corpus unavailable: connection refused"))

	got, err := testDB.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusFailed, got.Status)
	assert.Nil(t, got.Metrics)
	assert.Nil(t, got.ConfusionMatrix)
	require.NotNil(t, got.Error)
	assert.Contains(t, *got.Error, "corpus unavailable")
	require.NotNil(t, got.CompletedAt)
}

func TestGetRunNotFound(t *testing.T) {
	_, err := testDB.GetRun(context.Background(), uuid.New())
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestListRunsFilterAndPagination(t *testing.T) {
	ctx := context.Background()
	p1 := newPrompt(t)
	p2 := newPrompt(t)

	for range 3 {
		_, err := testDB.CreateRun(ctx, p1.ID)
		require.NoError(t, err)
	}
	_, err := testDB.CreateRun(ctx, p2.ID)
	require.NoError(t, err)

	runs, total, err := testDB.ListRuns(ctx, &p1.ID, 2, 0)
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	assert.Len(t, runs, 2)
	for _, run := range runs {
		assert.Equal(t, p1.ID, run.PromptID)
	}

	runs, total, err = testDB.ListRuns(ctx, &p1.ID, 2, 2)
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	assert.Len(t, runs, 1)
}

func TestPromptCRUD(t *testing.T) {
	ctx := context.Background()
	p := newPrompt(t)

	_, err := testDB.CreatePrompt(ctx, p)
	assert.ErrorIs(t, err, storage.ErrConflict)

	got, err := testDB.GetPrompt(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"ACCOUNT", "DELIVERY"}, got.Categories)

	got.Name = "Renamed"
	got.Categories = []string{"REFUND"}
	updated, err := testDB.UpdatePrompt(ctx, got)
	require.NoError(t, err)
	assert.Equal(t, "Renamed", updated.Name)
	assert.Equal(t, []string{"REFUND"}, updated.Categories)
	assert.True(t, updated.UpdatedAt.After(updated.CreatedAt) || updated.UpdatedAt.Equal(updated.CreatedAt))

	require.NoError(t, testDB.DeletePrompt(ctx, p.ID))
	_, err = testDB.GetPrompt(ctx, p.ID)
	assert.ErrorIs(t, err, storage.ErrNotFound)
	assert.ErrorIs(t, testDB.DeletePrompt(ctx, p.ID), storage.ErrNotFound)
}

func TestRunsSurvivePromptDeletion(t *testing.T) {
	ctx := context.Background()
	p := newPrompt(t)

	run, err := testDB.CreateRun(ctx, p.ID)
	require.NoError(t, err)
	require.NoError(t, testDB.DeletePrompt(ctx, p.ID))

	got, err := testDB.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, p.ID, got.PromptID)
}

func TestSeedTestCases(t *testing.T) {
	ctx := context.Background()
	cases := []model.TestCase{
		{ID: 9001, Ticket: "seed a", Expected: "ACCOUNT"},
		{ID: 9002, Ticket: "seed b", Expected: "DELIVERY"},
	}
	require.NoError(t, testDB.SeedTestCases(ctx, cases))

	// Re-seeding with a changed ticket is a no-op for existing IDs.
	cases[0].Ticket = "changed"
	require.NoError(t, testDB.SeedTestCases(ctx, cases))

	all, err := testDB.ListTestCases(ctx)
	require.NoError(t, err)
	byID := make(map[int]model.TestCase, len(all))
	for _, tc := range all {
		byID[tc.ID] = tc
	}
	assert.Equal(t, "seed a", byID[9001].Ticket)

	// Ascending ID order.
	for i := 1; i < len(all); i++ {
		assert.Less(t, all[i-1].ID, all[i].ID)
	}

	n, err := testDB.CountTestCases(ctx)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, n, 2)
}

func TestCaseResultsRoundTrip(t *testing.T) {
	ctx := context.Background()
	p := newPrompt(t)
	run, err := testDB.CreateRun(ctx, p.ID)
	require.NoError(t, err)

	predicted := "ACCOUNT"
	results := []model.CaseResult{
		{TestID: 1, Ticket: "a", Expected: "ACCOUNT", Predicted: &predicted},
		{TestID: 2, Ticket: "b", Expected: "DELIVERY", Predicted: nil, Error: "classifier: timeout: call budget exhausted"},
	}
	require.NoError(t, testDB.InsertCaseResults(ctx, run.ID, results))

	got, err := testDB.GetCaseResults(ctx, run.ID)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "ACCOUNT", *got[0].Predicted)
	assert.Nil(t, got[1].Predicted)
	assert.Contains(t, got[1].Error, "timeout")
}

func TestInsertCaseResultsEmpty(t *testing.T) {
	require.NoError(t, testDB.InsertCaseResults(context.Background(), uuid.New(), nil))
}

func TestRunStatsByPrompt(t *testing.T) {
	ctx := context.Background()
	p := newPrompt(t)

	run1, err := testDB.CreateRun(ctx, p.ID)
	require.NoError(t, err)
	report := sampleReport()
	require.NoError(t, testDB.CompleteRun(ctx, run1.ID, report))

	run2, err := testDB.CreateRun(ctx, p.ID)
	require.NoError(t, err)
	require.NoError(t, testDB.FailRun(ctx, run2.ID, "boom"))

	stats, total, err := testDB.RunStatsByPrompt(ctx)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, total, 2)

	s, ok := stats[p.ID]
	require.True(t, ok)
	assert.Equal(t, 2, s.TotalRuns)
	assert.Equal(t, 1, s.CompletedRuns)
	require.NotNil(t, s.Latest)
	assert.Equal(t, 0.5, *s.Latest)
	require.NotNil(t, s.Best)
	assert.Equal(t, 0.5, *s.Best)
}
