package evaluation

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TSGCFO/langchain-agent/model"
	"github.com/TSGCFO/langchain-agent/telemetry"
)

func TestHeuristic(t *testing.T) {
	tests := []struct {
		name     string
		inv      Invocation
		wantTool float64
		wantDone float64
		minReas  float64
	}{
		{
			name: "successful known tool with justification",
			inv: Invocation{
				Analysis:       &telemetry.Analysis{ToolName: "calculator", Reasoning: "Using calculator because the user asked for a sum"},
				AvailableTools: []string{"calculator"},
				Success:        true,
			},
			wantTool: 1, wantDone: 1, minReas: 0.5,
		},
		{
			name: "failed known tool",
			inv: Invocation{
				Analysis:       &telemetry.Analysis{ToolName: "calculator"},
				AvailableTools: []string{"calculator"},
				Err:            errors.New("boom"),
			},
			wantTool: 0.5, wantDone: 0,
		},
		{
			name: "unknown tool",
			inv: Invocation{
				Analysis:       &telemetry.Analysis{ToolName: "laser"},
				AvailableTools: []string{"calculator"},
				Success:        true,
			},
			wantTool: 0, wantDone: 1,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := Heuristic{}.Evaluate(context.Background(), tt.inv)
			require.NoError(t, err)
			assert.Equal(t, tt.wantTool, res.Metrics.ToolSelectionAccuracy)
			assert.Equal(t, tt.wantDone, res.Metrics.TaskCompletionSuccess)
			assert.GreaterOrEqual(t, res.Metrics.ReasoningQuality, tt.minReas)
			assert.LessOrEqual(t, res.Metrics.ReasoningQuality, 1.0)
		})
	}
}

func TestModelEvaluator(t *testing.T) {
	m := model.NewMockModel("judge").Enqueue(model.MockReply{
		Text: `{"metrics":{"tool_selection_accuracy":0.9,"reasoning_quality":1.4,"task_completion_success":1},"feedback":"fine"}`,
	})

	res, err := ModelEvaluator{Model: m}.Evaluate(context.Background(), Invocation{Command: "sum 1 2", Success: true})
	require.NoError(t, err)
	assert.Equal(t, 0.9, res.Metrics.ToolSelectionAccuracy)
	assert.Equal(t, 1.0, res.Metrics.ReasoningQuality, "scores are clamped")
	assert.Equal(t, "fine", res.Feedback)
}
