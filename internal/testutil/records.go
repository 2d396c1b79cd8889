package testutil

import (
	"time"

	"github.com/TSGCFO/langchain-agent/core"
	"github.com/TSGCFO/langchain-agent/telemetry"
)

// InteractionBuilder provides a fluent helper for interaction records.
//
//	rec := NewInteraction("add 1 and 2").Tool("calculator", "using calculator because math").Succeeded(0.2).At(now).Build()
type InteractionBuilder struct{ rec telemetry.InteractionRecord }

// NewInteraction starts a failed, analysis-free record for command.
func NewInteraction(command string) *InteractionBuilder {
	return &InteractionBuilder{rec: telemetry.InteractionRecord{
		ID:        core.NewID(),
		Timestamp: time.Now().UTC(),
		Command:   command,
	}}
}

// ID overrides the generated id.
func (b *InteractionBuilder) ID(id string) *InteractionBuilder { b.rec.ID = id; return b }

// At sets the timestamp.
func (b *InteractionBuilder) At(ts time.Time) *InteractionBuilder { b.rec.Timestamp = ts; return b }

// Tool attaches an analysis naming tool with reasoning.
func (b *InteractionBuilder) Tool(name, reasoning string) *InteractionBuilder {
	b.rec.Analysis = &telemetry.Analysis{ToolName: name, Reasoning: reasoning, Parameters: map[string]any{}}
	return b
}

// Params sets the analysis parameters. Call after Tool.
func (b *InteractionBuilder) Params(p map[string]any) *InteractionBuilder {
	if b.rec.Analysis != nil {
		b.rec.Analysis.Parameters = p
	}
	return b
}

// Succeeded marks the record successful with execution time in seconds.
func (b *InteractionBuilder) Succeeded(seconds float64) *InteractionBuilder {
	b.rec.Success = true
	b.rec.Metadata.ExecutionTime = seconds
	return b
}

// Failed marks the record failed with msg.
func (b *InteractionBuilder) Failed(msg string) *InteractionBuilder {
	b.rec.Success = false
	b.rec.Error = msg
	return b
}

// Build returns the record.
func (b *InteractionBuilder) Build() telemetry.InteractionRecord { return b.rec }

// ToolUsage builds a tool usage record.
func ToolUsage(tool string, at time.Time, seconds float64, params map[string]any, errMsg string) telemetry.ToolUsageRecord {
	return telemetry.ToolUsageRecord{
		ID:            core.NewID(),
		Timestamp:     at,
		ToolName:      tool,
		Parameters:    params,
		Success:       errMsg == "",
		Error:         errMsg,
		ExecutionTime: seconds,
	}
}

// Evaluation builds an evaluation record.
func Evaluation(at time.Time, toolAccuracy, reasoning, completion float64) telemetry.EvaluationRecord {
	return telemetry.EvaluationRecord{
		ID:            core.NewID(),
		Timestamp:     at,
		InteractionID: core.NewID(),
		Metrics: telemetry.EvaluationMetrics{
			ToolSelectionAccuracy: toolAccuracy,
			ReasoningQuality:      reasoning,
			TaskCompletionSuccess: completion,
		},
	}
}
