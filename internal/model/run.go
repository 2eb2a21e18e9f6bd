// Package model defines the core domain types for Routelab.
//
// Types use strong typing (UUIDs, time.Time, enums) and avoid
// interface{} wherever possible. Pointer fields mark values that are
// null until a run reaches a terminal state.
package model

import (
	"time"

	"github.com/google/uuid"
)

// RunStatus represents the lifecycle state of an evaluation run.
type RunStatus string

const (
	RunStatusPending   RunStatus = "pending"
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
)

// Terminal reports whether the status is a terminal state.
// Terminal runs are immutable.
func (s RunStatus) Terminal() bool {
	return s == RunStatusCompleted || s == RunStatusFailed
}

// CanTransitionTo reports whether the state machine permits moving from
// s to next. Runs only move forward: pending → running → {completed, failed}.
// A pending run may fail directly (corpus unavailable before any call).
func (s RunStatus) CanTransitionTo(next RunStatus) bool {
	switch s {
	case RunStatusPending:
		return next == RunStatusRunning || next == RunStatusFailed
	case RunStatusRunning:
		return next == RunStatusCompleted || next == RunStatusFailed
	default:
		return false
	}
}

// UnknownCategory is the confusion-matrix key used for results whose
// classification attempt failed outright (no predicted label). Recording
// these under a sentinel rather than omitting them keeps error cases
// visible in the matrix.
const UnknownCategory = "UNKNOWN"

// Run is one execution of a prompt against the full test corpus.
//
// Metrics, ConfusionMatrix and FailedCases are populated atomically by a
// single metrics computation: they are all nil or all non-nil. Error is
// set only on failed runs.
type Run struct {
	ID              uuid.UUID       `json:"id"`
	PromptID        string          `json:"prompt_id"`
	Status          RunStatus       `json:"status"`
	CreatedAt       time.Time       `json:"created_at"`
	CompletedAt     *time.Time      `json:"completed_at"`
	Metrics         *Metrics        `json:"metrics"`
	ConfusionMatrix ConfusionMatrix `json:"confusion_matrix"`
	FailedCases     []FailedCase    `json:"failed_cases"`
	Error           *string         `json:"error"`
}

// Metrics holds the aggregate accuracy figures for a completed run.
type Metrics struct {
	OverallAccuracy float64                 `json:"overall_accuracy"`
	Correct         int                     `json:"correct"`
	Total           int                     `json:"total"`
	CategoryStats   map[string]CategoryStat `json:"category_stats"`
}

// CategoryStat counts outcomes for a single expected category.
// Invariant: 0 ≤ Correct ≤ Total.
type CategoryStat struct {
	Total   int `json:"total"`
	Correct int `json:"correct"`
}

// ConfusionMatrix maps actual category → predicted category → count.
// Only cells with count > 0 exist; absence implies zero. Failed
// classification attempts are counted under UnknownCategory.
type ConfusionMatrix map[string]map[string]int

// FailedCase is a single mismatch, kept in original test-case order.
// Predicted is nil when the classification call itself failed, as opposed
// to merely predicting the wrong category.
type FailedCase struct {
	TestID    int     `json:"test_id"`
	Ticket    string  `json:"ticket"`
	Expected  string  `json:"expected"`
	Predicted *string `json:"predicted"`
}

// CaseResult is the outcome of one classification attempt, the input unit
// for metrics computation and the record stored in the per-case results log.
type CaseResult struct {
	TestID    int     `json:"test_id"`
	Ticket    string  `json:"ticket"`
	Expected  string  `json:"expected"`
	Predicted *string `json:"predicted"`
	Error     string  `json:"error,omitempty"`
}

// Correct reports whether the prediction matches the expected category.
// Comparison is exact and case-sensitive; a nil prediction is never correct.
func (r CaseResult) Correct() bool {
	return r.Predicted != nil && *r.Predicted == r.Expected
}
