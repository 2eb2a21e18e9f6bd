package storage

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/routelab-ai/routelab/internal/model"
)

// InsertCaseResults appends per-case outcomes to the results log via COPY.
// For failed runs this log is the only surviving record of the work done
// before the abort — it is a debugging surface, never an input to the
// aggregate metrics of a failed run.
func (db *DB) InsertCaseResults(ctx context.Context, runID uuid.UUID, results []model.CaseResult) error {
	if len(results) == 0 {
		return nil
	}

	rows := make([][]any, len(results))
	for i, r := range results {
		rows[i] = []any{runID, r.TestID, r.Ticket, r.Expected, r.Predicted, r.Error}
	}

	_, err := db.pool.CopyFrom(ctx,
		pgx.Identifier{"run_case_results"},
		[]string{"run_id", "test_id", "ticket", "expected", "predicted", "error"},
		pgx.CopyFromRows(rows),
	)
	if err != nil {
		return fmt.Errorf("storage: insert case results: %w", err)
	}
	return nil
}

// GetCaseResults returns the logged per-case outcomes for a run in
// test-case order.
func (db *DB) GetCaseResults(ctx context.Context, runID uuid.UUID) ([]model.CaseResult, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT test_id, ticket, expected, predicted, error
		 FROM run_case_results WHERE run_id = $1 ORDER BY test_id`, runID)
	if err != nil {
		return nil, fmt.Errorf("storage: get case results: %w", err)
	}
	defer rows.Close()

	var results []model.CaseResult
	for rows.Next() {
		var r model.CaseResult
		if err := rows.Scan(&r.TestID, &r.Ticket, &r.Expected, &r.Predicted, &r.Error); err != nil {
			return nil, fmt.Errorf("storage: scan case result: %w", err)
		}
		results = append(results, r)
	}
	return results, rows.Err()
}
