package storage

import (
	"context"
	"fmt"
)

// RunStats is the per-prompt aggregate over the runs table. Latest and Best
// are nil when the prompt has no completed runs.
type RunStats struct {
	TotalRuns     int
	CompletedRuns int
	Latest        *float64
	Best          *float64
}

// RunStatsByPrompt aggregates accuracy stats per prompt in one query,
// along with the total run count across all prompts. Only completed runs
// contribute accuracy figures; metrics are stored as JSONB so the accuracy
// is extracted and cast in SQL.
func (db *DB) RunStatsByPrompt(ctx context.Context) (map[string]RunStats, int, error) {
	rows, err := db.pool.Query(ctx, `
		SELECT prompt_id,
		       COUNT(*) AS total_runs,
		       COUNT(*) FILTER (WHERE status = 'completed' AND metrics IS NOT NULL) AS completed_runs,
		       (ARRAY_AGG((metrics->>'overall_accuracy')::double precision ORDER BY created_at DESC)
		           FILTER (WHERE status = 'completed' AND metrics IS NOT NULL))[1] AS latest_accuracy,
		       MAX((metrics->>'overall_accuracy')::double precision)
		           FILTER (WHERE status = 'completed' AND metrics IS NOT NULL) AS best_accuracy
		FROM runs
		GROUP BY prompt_id`)
	if err != nil {
		return nil, 0, fmt.Errorf("storage: run stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[string]RunStats)
	total := 0
	for rows.Next() {
		var promptID string
		var s RunStats
		if err := rows.Scan(&promptID, &s.TotalRuns, &s.CompletedRuns, &s.Latest, &s.Best); err != nil {
			return nil, 0, fmt.Errorf("storage: scan run stats: %w", err)
		}
		stats[promptID] = s
		total += s.TotalRuns
	}
	return stats, total, rows.Err()
}
