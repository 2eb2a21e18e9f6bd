package storage

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/routelab-ai/routelab/internal/model"
)

// ListTestCases returns the full corpus ordered by test-case ID. The order
// is the canonical one: metrics and failed-case lists follow it.
func (db *DB) ListTestCases(ctx context.Context) ([]model.TestCase, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT id, ticket, expected FROM test_cases ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("storage: list test cases: %w", err)
	}
	defer rows.Close()

	var cases []model.TestCase
	for rows.Next() {
		var tc model.TestCase
		if err := rows.Scan(&tc.ID, &tc.Ticket, &tc.Expected); err != nil {
			return nil, fmt.Errorf("storage: scan test case: %w", err)
		}
		cases = append(cases, tc)
	}
	return cases, rows.Err()
}

// CountTestCases returns the corpus size.
func (db *DB) CountTestCases(ctx context.Context) (int, error) {
	var n int
	if err := db.pool.QueryRow(ctx, `SELECT COUNT(*) FROM test_cases`).Scan(&n); err != nil {
		return 0, fmt.Errorf("storage: count test cases: %w", err)
	}
	return n, nil
}

// SeedTestCases bulk-loads the corpus. Existing IDs are left untouched —
// the corpus is immutable once loaded.
func (db *DB) SeedTestCases(ctx context.Context, cases []model.TestCase) error {
	if len(cases) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, tc := range cases {
		batch.Queue(
			`INSERT INTO test_cases (id, ticket, expected) VALUES ($1, $2, $3)
			 ON CONFLICT (id) DO NOTHING`,
			tc.ID, tc.Ticket, tc.Expected,
		)
	}

	br := db.pool.SendBatch(ctx, batch)
	defer br.Close()
	for range cases {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("storage: seed test cases: %w", err)
		}
	}
	return nil
}
