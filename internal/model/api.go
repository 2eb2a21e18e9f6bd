package model

import (
	"time"
)

// APIResponse is the standard response envelope for all HTTP API responses.
type APIResponse struct {
	Data any          `json:"data,omitempty"`
	Meta ResponseMeta `json:"meta"`
}

// ListResponse is the standard envelope for paginated list endpoints.
type ListResponse struct {
	Data    any          `json:"data"`
	Total   int          `json:"total"`
	HasMore bool         `json:"has_more"`
	Limit   int          `json:"limit"`
	Offset  int          `json:"offset"`
	Meta    ResponseMeta `json:"meta"`
}

// APIError is the standard error response envelope.
type APIError struct {
	Error ErrorDetail  `json:"error"`
	Meta  ResponseMeta `json:"meta"`
}

// ResponseMeta contains request metadata included in every response.
type ResponseMeta struct {
	RequestID string    `json:"request_id"`
	Timestamp time.Time `json:"timestamp"`
}

// ErrorDetail describes an API error.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// ErrorCode constants for standard API error codes.
const (
	ErrCodeInvalidInput  = "INVALID_INPUT"
	ErrCodeNotFound      = "NOT_FOUND"
	ErrCodeConflict      = "CONFLICT"
	ErrCodeInternalError = "INTERNAL_ERROR"
	ErrCodeRateLimited   = "RATE_LIMITED"
)

// CreateRunRequest is the request body for POST /v1/runs.
type CreateRunRequest struct {
	PromptID string `json:"prompt_id"`
}

// CreatePromptRequest is the request body for POST /v1/prompts.
type CreatePromptRequest struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Template string `json:"template"`
}

// UpdatePromptRequest is the request body for PUT /v1/prompts/{prompt_id}.
// Nil fields are left unchanged.
type UpdatePromptRequest struct {
	Name     *string `json:"name"`
	Template *string `json:"template"`
}

// SuggestRequest is the request body for POST /v1/suggest. The analysis is
// built from the stored run record rather than caller-supplied metrics so
// the suggestion always reflects a real completed run.
type SuggestRequest struct {
	RunID string `json:"run_id"`
}

// SuggestResponse carries the AI-generated prompt-improvement analysis.
type SuggestResponse struct {
	Analysis           string   `json:"analysis"`
	Suggestions        []string `json:"suggestions"`
	PriorityCategories []string `json:"priority_categories"`
}

// PromptSummary is one prompt's row in the metrics summary.
type PromptSummary struct {
	ID             string   `json:"id"`
	Name           string   `json:"name"`
	LatestAccuracy *float64 `json:"latest_accuracy"`
	BestAccuracy   *float64 `json:"best_accuracy"`
	RunCount       int      `json:"run_count"`
}

// MetricsSummary aggregates accuracy across all prompts and runs.
type MetricsSummary struct {
	Prompts     map[string]PromptSummary `json:"prompts"`
	BestPrompt  *string                  `json:"best_prompt"`
	TotalRuns   int                      `json:"total_runs"`
	TestSetSize int                      `json:"test_set_size"`
}

// HealthResponse is the GET /health payload.
type HealthResponse struct {
	Status     string `json:"status"`
	Version    string `json:"version"`
	Postgres   string `json:"postgres"`
	ActiveRuns int    `json:"active_runs"`
	Uptime     int64  `json:"uptime_seconds"`
}
