// Package evaluation scores finished interactions. Scores feed the evaluation
// telemetry stream and, through analytics, the performance metrics.
package evaluation

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/TSGCFO/langchain-agent/model"
	"github.com/TSGCFO/langchain-agent/telemetry"
)

// Invocation is what an evaluator sees of one interaction.
type Invocation struct {
	Command        string
	Analysis       *telemetry.Analysis
	AvailableTools []string
	Result         any
	Success        bool
	Err            error
}

// Result holds the metrics and optional free-text feedback.
type Result struct {
	Metrics  telemetry.EvaluationMetrics `json:"metrics"`
	Feedback string                      `json:"feedback,omitempty"`
}

// Evaluator scores an invocation.
type Evaluator interface {
	Evaluate(ctx context.Context, invocation Invocation) (*Result, error)
}

// Heuristic scores invocations without calling a model.
//
//   - tool selection: 1 when the chosen tool exists and succeeded, 0.5 when it
//     exists but failed, 0 when it is unknown or missing
//   - reasoning quality: half for stating a justification connector, the
//     rest scaled by length up to 200 characters
//   - task completion: 1 on success, else 0
type Heuristic struct{}

var justification = regexp.MustCompile(`(?i)\b(because|since|as|to|so that)\b`)

// Evaluate implements Evaluator.
func (Heuristic) Evaluate(_ context.Context, inv Invocation) (*Result, error) {
	var m telemetry.EvaluationMetrics
	var notes []string

	toolName := ""
	reasoning := ""
	if inv.Analysis != nil {
		toolName = inv.Analysis.ToolName
		reasoning = strings.TrimSpace(inv.Analysis.Reasoning)
	}

	switch {
	case toolName == "":
		notes = append(notes, "no tool selected")
	case !contains(inv.AvailableTools, toolName):
		notes = append(notes, fmt.Sprintf("tool %q is not available", toolName))
	case inv.Success:
		m.ToolSelectionAccuracy = 1
	default:
		m.ToolSelectionAccuracy = 0.5
		notes = append(notes, "selected tool failed")
	}

	if reasoning != "" {
		if justification.MatchString(reasoning) {
			m.ReasoningQuality += 0.5
		} else {
			notes = append(notes, "reasoning states no justification")
		}
		m.ReasoningQuality += 0.5 * min(1, float64(len(reasoning))/200)
	} else {
		notes = append(notes, "no reasoning given")
	}

	if inv.Success {
		m.TaskCompletionSuccess = 1
	} else if inv.Err != nil {
		notes = append(notes, "failed: "+inv.Err.Error())
	}

	return &Result{Metrics: m, Feedback: strings.Join(notes, "; ")}, nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

const judgePreamble = "You grade an AI agent's handling of a command. " +
	"Score tool_selection_accuracy, reasoning_quality and task_completion_success between 0 and 1 " +
	"and give one sentence of feedback."

// ModelEvaluator asks a language model to grade the invocation.
type ModelEvaluator struct {
	Model model.Model
}

// Evaluate implements Evaluator.
func (e ModelEvaluator) Evaluate(ctx context.Context, inv Invocation) (*Result, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "Command: %s\n", inv.Command)
	if inv.Analysis != nil {
		fmt.Fprintf(&b, "Chosen tool: %s\nParameters: %v\nReasoning: %s\n", inv.Analysis.ToolName, inv.Analysis.Parameters, inv.Analysis.Reasoning)
	}
	fmt.Fprintf(&b, "Available tools: %s\nSucceeded: %t\n", strings.Join(inv.AvailableTools, ", "), inv.Success)
	if inv.Err != nil {
		fmt.Fprintf(&b, "Error: %v\n", inv.Err)
	} else {
		fmt.Fprintf(&b, "Result: %v\n", inv.Result)
	}

	var res Result
	_, err := model.GenerateStructured(ctx, e.Model, model.Request{
		System:   judgePreamble,
		Messages: []model.Message{model.UserMessage(b.String())},
	}, &res)
	if err != nil {
		return nil, fmt.Errorf("evaluation: %w", err)
	}
	res.Metrics.ToolSelectionAccuracy = clamp(res.Metrics.ToolSelectionAccuracy)
	res.Metrics.ReasoningQuality = clamp(res.Metrics.ReasoningQuality)
	res.Metrics.TaskCompletionSuccess = clamp(res.Metrics.TaskCompletionSuccess)
	return &res, nil
}

func clamp(v float64) float64 { return max(0, min(1, v)) }
