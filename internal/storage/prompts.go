package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/routelab-ai/routelab/internal/model"
)

// CreatePrompt inserts a new prompt. Returns ErrConflict if the id is taken.
func (db *DB) CreatePrompt(ctx context.Context, p model.Prompt) (model.Prompt, error) {
	now := time.Now().UTC()
	p.CreatedAt = now
	p.UpdatedAt = now
	if p.Categories == nil {
		p.Categories = []string{}
	}

	_, err := db.pool.Exec(ctx,
		`INSERT INTO prompts (id, name, template, categories, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		p.ID, p.Name, p.Template, p.Categories, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" { // unique_violation
			return model.Prompt{}, fmt.Errorf("storage: prompt %s: %w", p.ID, ErrConflict)
		}
		return model.Prompt{}, fmt.Errorf("storage: create prompt: %w", err)
	}
	return p, nil
}

// GetPrompt retrieves a prompt by ID. Returns ErrNotFound if it does not exist.
func (db *DB) GetPrompt(ctx context.Context, id string) (model.Prompt, error) {
	var p model.Prompt
	err := db.pool.QueryRow(ctx,
		`SELECT id, name, template, categories, created_at, updated_at
		 FROM prompts WHERE id = $1`, id,
	).Scan(&p.ID, &p.Name, &p.Template, &p.Categories, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Prompt{}, fmt.Errorf("storage: prompt %s: %w", id, ErrNotFound)
		}
		return model.Prompt{}, fmt.Errorf("storage: get prompt: %w", err)
	}
	return p, nil
}

// ListPrompts returns all prompts ordered by creation time.
func (db *DB) ListPrompts(ctx context.Context) ([]model.Prompt, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT id, name, template, categories, created_at, updated_at
		 FROM prompts ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("storage: list prompts: %w", err)
	}
	defer rows.Close()

	var prompts []model.Prompt
	for rows.Next() {
		var p model.Prompt
		if err := rows.Scan(&p.ID, &p.Name, &p.Template, &p.Categories, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("storage: scan prompt: %w", err)
		}
		prompts = append(prompts, p)
	}
	return prompts, rows.Err()
}

// UpdatePrompt overwrites a prompt's mutable fields. Returns ErrNotFound if
// the prompt does not exist.
func (db *DB) UpdatePrompt(ctx context.Context, p model.Prompt) (model.Prompt, error) {
	p.UpdatedAt = time.Now().UTC()
	if p.Categories == nil {
		p.Categories = []string{}
	}

	tag, err := db.pool.Exec(ctx,
		`UPDATE prompts SET name = $1, template = $2, categories = $3, updated_at = $4
		 WHERE id = $5`,
		p.Name, p.Template, p.Categories, p.UpdatedAt, p.ID,
	)
	if err != nil {
		return model.Prompt{}, fmt.Errorf("storage: update prompt: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.Prompt{}, fmt.Errorf("storage: prompt %s: %w", p.ID, ErrNotFound)
	}
	return db.GetPrompt(ctx, p.ID)
}

// DeletePrompt removes a prompt. Historical runs keep their prompt_id;
// they are records of past executions, not views over the prompt table.
func (db *DB) DeletePrompt(ctx context.Context, id string) error {
	tag, err := db.pool.Exec(ctx, `DELETE FROM prompts WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("storage: delete prompt: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("storage: prompt %s: %w", id, ErrNotFound)
	}
	return nil
}
