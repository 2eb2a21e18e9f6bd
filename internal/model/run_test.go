package model_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/routelab-ai/routelab/internal/model"
)

func TestRunStatusTransitions(t *testing.T) {
	tests := []struct {
		from, to model.RunStatus
		ok       bool
	}{
		{model.RunStatusPending, model.RunStatusRunning, true},
		{model.RunStatusPending, model.RunStatusFailed, true},
		{model.RunStatusPending, model.RunStatusCompleted, false},
		{model.RunStatusRunning, model.RunStatusCompleted, true},
		{model.RunStatusRunning, model.RunStatusFailed, true},
		{model.RunStatusRunning, model.RunStatusPending, false},
		{model.RunStatusCompleted, model.RunStatusFailed, false},
		{model.RunStatusCompleted, model.RunStatusRunning, false},
		{model.RunStatusFailed, model.RunStatusCompleted, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.ok, tt.from.CanTransitionTo(tt.to),
			"%s -> %s", tt.from, tt.to)
	}
}

func TestTerminal(t *testing.T) {
	assert.False(t, model.RunStatusPending.Terminal())
	assert.False(t, model.RunStatusRunning.Terminal())
	assert.True(t, model.RunStatusCompleted.Terminal())
	assert.True(t, model.RunStatusFailed.Terminal())
}

func TestCaseResultCorrect(t *testing.T) {
	delivery := "DELIVERY"
	lower := "delivery"

	assert.True(t, model.CaseResult{Expected: "DELIVERY", Predicted: &delivery}.Correct())
	assert.False(t, model.CaseResult{Expected: "DELIVERY", Predicted: &lower}.Correct())
	assert.False(t, model.CaseResult{Expected: "DELIVERY", Predicted: nil}.Correct())
}
