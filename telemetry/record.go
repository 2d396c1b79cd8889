package telemetry

import (
	"context"
	"time"

	"github.com/TSGCFO/langchain-agent/core"
)

// Interaction phases stored in InteractionMetadata.Phase.
const (
	PhaseStarted  = "started"
	PhaseFinished = "finished"
)

// Analysis is the structured decision a model made for a command.
type Analysis struct {
	ToolName   string         `json:"tool_name"`
	Parameters map[string]any `json:"parameters,omitempty"`
	Reasoning  string         `json:"reasoning,omitempty"`
}

// InteractionMetadata carries attribution and timing for an interaction.
type InteractionMetadata struct {
	AgentID       string         `json:"agent_id,omitempty"`
	CorrelationID string         `json:"correlation_id,omitempty"`
	TaskID        string         `json:"task_id,omitempty"`
	ExecutionTime float64        `json:"execution_time"` // seconds
	Phase         string         `json:"phase,omitempty"`
	Extra         map[string]any `json:"extra,omitempty"`
}

// InteractionRecord is one command handled by an agent.
type InteractionRecord struct {
	ID        string              `json:"id"`
	Timestamp time.Time           `json:"timestamp"`
	Command   string              `json:"command"`
	Analysis  *Analysis           `json:"analysis,omitempty"`
	Result    any                 `json:"result,omitempty"`
	Success   bool                `json:"success"`
	Error     string              `json:"error,omitempty"`
	Metadata  InteractionMetadata `json:"metadata"`
}

// ToolUsageRecord is one tool invocation.
type ToolUsageRecord struct {
	ID            string         `json:"id"`
	Timestamp     time.Time      `json:"timestamp"`
	ToolName      string         `json:"tool_name"`
	Parameters    map[string]any `json:"parameters,omitempty"`
	Result        any            `json:"result,omitempty"`
	Success       bool           `json:"success"`
	Error         string         `json:"error,omitempty"`
	ExecutionTime float64        `json:"execution_time"` // seconds
	AgentID       string         `json:"agent_id,omitempty"`
	CorrelationID string         `json:"correlation_id,omitempty"`
}

// EvaluationMetrics are the scores attached to an interaction, each in [0,1].
type EvaluationMetrics struct {
	ToolSelectionAccuracy float64 `json:"tool_selection_accuracy"`
	ReasoningQuality      float64 `json:"reasoning_quality"`
	TaskCompletionSuccess float64 `json:"task_completion_success"`
}

// EvaluationRecord scores one interaction.
type EvaluationRecord struct {
	ID            string            `json:"id"`
	Timestamp     time.Time         `json:"timestamp"`
	InteractionID string            `json:"interaction_id"`
	Metrics       EvaluationMetrics `json:"metrics"`
	Feedback      string            `json:"feedback,omitempty"`
}

// Recorder appends records. Implementations fill a missing ID and Timestamp.
type Recorder interface {
	RecordInteraction(ctx context.Context, rec InteractionRecord) error
	RecordToolUsage(ctx context.Context, rec ToolUsageRecord) error
	RecordEvaluation(ctx context.Context, rec EvaluationRecord) error
}

// Reader returns the most recent records of each stream, oldest first.
// Interaction records sharing an id are collapsed to the last one written.
type Reader interface {
	TailInteractions(ctx context.Context, n int) ([]InteractionRecord, error)
	TailToolUsage(ctx context.Context, n int) ([]ToolUsageRecord, error)
	TailEvaluations(ctx context.Context, n int) ([]EvaluationRecord, error)
}

// Store is a Recorder that can also be read back.
type Store interface {
	Recorder
	Reader
}

// NopRecorder discards all records.
type NopRecorder struct{}

// RecordInteraction implements Recorder.
func (NopRecorder) RecordInteraction(context.Context, InteractionRecord) error { return nil }

// RecordToolUsage implements Recorder.
func (NopRecorder) RecordToolUsage(context.Context, ToolUsageRecord) error { return nil }

// RecordEvaluation implements Recorder.
func (NopRecorder) RecordEvaluation(context.Context, EvaluationRecord) error { return nil }

func stamp(id *string, ts *time.Time, now func() time.Time) {
	if *id == "" {
		*id = core.NewID()
	}
	if ts.IsZero() {
		*ts = now().UTC()
	}
}

// collapseInteractions keeps the last record for every id, positioned where
// that last record was written. Records without an id are kept as is.
func collapseInteractions(recs []InteractionRecord) []InteractionRecord {
	seen := make(map[string]bool, len(recs))
	out := make([]InteractionRecord, 0, len(recs))
	for i := len(recs) - 1; i >= 0; i-- {
		id := recs[i].ID
		if id != "" {
			if seen[id] {
				continue
			}
			seen[id] = true
		}
		out = append(out, recs[i])
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out
}
