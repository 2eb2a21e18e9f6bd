package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/routelab-ai/routelab/internal/metrics"
	"github.com/routelab-ai/routelab/internal/model"
)

// CreateRun inserts a new pending run and returns it.
func (db *DB) CreateRun(ctx context.Context, promptID string) (model.Run, error) {
	run := model.Run{
		ID:        uuid.New(),
		PromptID:  promptID,
		Status:    model.RunStatusPending,
		CreatedAt: time.Now().UTC(),
	}

	_, err := db.pool.Exec(ctx,
		`INSERT INTO runs (id, prompt_id, status, created_at)
		 VALUES ($1, $2, $3, $4)`,
		run.ID, run.PromptID, string(run.Status), run.CreatedAt,
	)
	if err != nil {
		return model.Run{}, fmt.Errorf("storage: create run: %w", err)
	}
	return run, nil
}

const runColumns = `id, prompt_id, status, created_at, completed_at, metrics, confusion_matrix, failed_cases, error`

// GetRun retrieves a run by ID. Returns ErrNotFound if it does not exist.
func (db *DB) GetRun(ctx context.Context, id uuid.UUID) (model.Run, error) {
	row := db.pool.QueryRow(ctx,
		`SELECT `+runColumns+` FROM runs WHERE id = $1`, id)
	run, err := scanRun(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Run{}, fmt.Errorf("storage: run %s: %w", id, ErrNotFound)
		}
		return model.Run{}, fmt.Errorf("storage: get run: %w", err)
	}
	return run, nil
}

// ListRuns returns runs ordered by created_at DESC, optionally filtered by
// prompt ID, along with the total count for pagination.
func (db *DB) ListRuns(ctx context.Context, promptID *string, limit, offset int) ([]model.Run, int, error) {
	if limit <= 0 {
		limit = 50
	}

	var total int
	err := db.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM runs WHERE ($1::text IS NULL OR prompt_id = $1)`, promptID,
	).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("storage: count runs: %w", err)
	}

	rows, err := db.pool.Query(ctx,
		`SELECT `+runColumns+` FROM runs
		 WHERE ($1::text IS NULL OR prompt_id = $1)
		 ORDER BY created_at DESC
		 LIMIT $2 OFFSET $3`,
		promptID, limit, offset,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("storage: list runs: %w", err)
	}
	defer rows.Close()

	var runs []model.Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("storage: scan run: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, total, rows.Err()
}

// MarkRunRunning transitions a pending run to running. The status guard
// makes the executor the single writer: a second caller (or a replayed
// task) gets ErrTerminal instead of clobbering state.
func (db *DB) MarkRunRunning(ctx context.Context, id uuid.UUID) error {
	tag, err := db.pool.Exec(ctx,
		`UPDATE runs SET status = $1 WHERE id = $2 AND status = $3`,
		string(model.RunStatusRunning), id, string(model.RunStatusPending),
	)
	if err != nil {
		return fmt.Errorf("storage: mark run running: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("storage: run %s not pending: %w", id, ErrTerminal)
	}
	return nil
}

// CompleteRun writes the full terminal field-set of a successful run in a
// single UPDATE: status, completed_at, metrics, confusion matrix and failed
// cases land atomically, so no reader ever sees status=completed with
// metrics still null. The status guard keeps terminal runs immutable.
func (db *DB) CompleteRun(ctx context.Context, id uuid.UUID, report metrics.Report) error {
	metricsJSON, err := json.Marshal(report.Metrics)
	if err != nil {
		return fmt.Errorf("storage: marshal metrics: %w", err)
	}
	matrixJSON, err := json.Marshal(report.ConfusionMatrix)
	if err != nil {
		return fmt.Errorf("storage: marshal confusion matrix: %w", err)
	}
	failedJSON, err := json.Marshal(report.FailedCases)
	if err != nil {
		return fmt.Errorf("storage: marshal failed cases: %w", err)
	}

	tag, err := db.pool.Exec(ctx,
		`UPDATE runs
		 SET status = $1, completed_at = $2, metrics = $3, confusion_matrix = $4, failed_cases = $5
		 WHERE id = $6 AND status IN ($7, $8)`,
		string(model.RunStatusCompleted), time.Now().UTC(),
		metricsJSON, matrixJSON, failedJSON,
		id, string(model.RunStatusPending), string(model.RunStatusRunning),
	)
	if err != nil {
		return fmt.Errorf("storage: complete run: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("storage: run %s: %w", id, ErrTerminal)
	}
	return nil
}

// FailRun marks a run as failed with a diagnostic message. Metrics fields
// stay null: a failed run never presents aggregate metrics.
func (db *DB) FailRun(ctx context.Context, id uuid.UUID, message string) error {
	tag, err := db.pool.Exec(ctx,
		`UPDATE runs SET status = $1, completed_at = $2, error = $3
		 WHERE id = $4 AND status IN ($5, $6)`,
		string(model.RunStatusFailed), time.Now().UTC(), message,
		id, string(model.RunStatusPending), string(model.RunStatusRunning),
	)
	if err != nil {
		return fmt.Errorf("storage: fail run: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("storage: run %s: %w", id, ErrTerminal)
	}
	return nil
}

func scanRun(row pgx.Row) (model.Run, error) {
	var (
		run         model.Run
		status      string
		metricsJSON []byte
		matrixJSON  []byte
		failedJSON  []byte
	)
	err := row.Scan(
		&run.ID, &run.PromptID, &status, &run.CreatedAt, &run.CompletedAt,
		&metricsJSON, &matrixJSON, &failedJSON, &run.Error,
	)
	if err != nil {
		return model.Run{}, err
	}
	run.Status = model.RunStatus(status)

	if metricsJSON != nil {
		run.Metrics = &model.Metrics{}
		if err := json.Unmarshal(metricsJSON, run.Metrics); err != nil {
			return model.Run{}, fmt.Errorf("unmarshal metrics: %w", err)
		}
	}
	if matrixJSON != nil {
		if err := json.Unmarshal(matrixJSON, &run.ConfusionMatrix); err != nil {
			return model.Run{}, fmt.Errorf("unmarshal confusion matrix: %w", err)
		}
	}
	if failedJSON != nil {
		if err := json.Unmarshal(failedJSON, &run.FailedCases); err != nil {
			return model.Run{}, fmt.Errorf("unmarshal failed cases: %w", err)
		}
	}
	return run, nil
}
