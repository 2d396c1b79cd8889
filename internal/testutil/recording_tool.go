package testutil

import (
	"context"
	"sync"
)

// Call is one recorded invocation of a RecordingTool.
type Call struct {
	Tool string
	Args map[string]any
}

// CallLog collects calls across several tools so tests can assert global
// execution order.
type CallLog struct {
	mu    sync.Mutex
	calls []Call
}

// Calls returns a copy of the recorded calls in order.
func (l *CallLog) Calls() []Call {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Call, len(l.calls))
	copy(out, l.calls)
	return out
}

// Names returns the tool names of the recorded calls in order.
func (l *CallLog) Names() []string {
	calls := l.Calls()
	out := make([]string, len(calls))
	for i, c := range calls {
		out[i] = c.Tool
	}
	return out
}

func (l *CallLog) add(c Call) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls = append(l.calls, c)
}

// RecordingTool is a tool.Tool that appends each call to a CallLog and
// returns a fixed result or error.
type RecordingTool struct {
	ToolName string
	Result   any
	Err      error
	// Fn, when set, replaces Result/Err.
	Fn  func(ctx context.Context, args map[string]any) (any, error)
	Log *CallLog
}

// NewRecordingTool creates a tool returning result and logging into log.
func NewRecordingTool(name string, result any, log *CallLog) *RecordingTool {
	return &RecordingTool{ToolName: name, Result: result, Log: log}
}

// Name implements tool.Tool.
func (t *RecordingTool) Name() string { return t.ToolName }

// Description implements tool.Tool.
func (t *RecordingTool) Description() string { return "test tool " + t.ToolName }

// Parameters implements tool.Tool.
func (t *RecordingTool) Parameters() map[string]any {
	return map[string]any{"type": "object", "properties": map[string]any{}}
}

// Call implements tool.Tool.
func (t *RecordingTool) Call(ctx context.Context, args map[string]any) (any, error) {
	if t.Log != nil {
		t.Log.add(Call{Tool: t.ToolName, Args: args})
	}
	if t.Fn != nil {
		return t.Fn(ctx, args)
	}
	return t.Result, t.Err
}
