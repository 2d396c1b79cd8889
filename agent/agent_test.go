package agent

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/TSGCFO/langchain-agent/bus"
	"github.com/TSGCFO/langchain-agent/core"
	"github.com/TSGCFO/langchain-agent/telemetry"
)

// captureRecorder keeps every record as written, without collapsing.
type captureRecorder struct {
	mu           sync.Mutex
	interactions []telemetry.InteractionRecord
	toolUsage    []telemetry.ToolUsageRecord
	evaluations  []telemetry.EvaluationRecord
}

func (r *captureRecorder) RecordInteraction(_ context.Context, rec telemetry.InteractionRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.interactions = append(r.interactions, rec)
	return nil
}

func (r *captureRecorder) RecordToolUsage(_ context.Context, rec telemetry.ToolUsageRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.toolUsage = append(r.toolUsage, rec)
	return nil
}

func (r *captureRecorder) RecordEvaluation(_ context.Context, rec telemetry.EvaluationRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.evaluations = append(r.evaluations, rec)
	return nil
}

// inbox collects messages of the given types from the bus.
type inbox struct {
	mu   sync.Mutex
	msgs []core.Message
}

func (i *inbox) handle(_ context.Context, msg core.Message) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.msgs = append(i.msgs, msg)
	return nil
}

func (i *inbox) events() []core.SystemEvent {
	i.mu.Lock()
	defer i.mu.Unlock()
	var out []core.SystemEvent
	for _, m := range i.msgs {
		if ev, ok := m.Payload.(core.SystemEvent); ok {
			out = append(out, ev)
		}
	}
	return out
}

func (i *inbox) ofType(t core.MessageType) []core.Message {
	i.mu.Lock()
	defer i.mu.Unlock()
	var out []core.Message
	for _, m := range i.msgs {
		if m.Type == t {
			out = append(out, m)
		}
	}
	return out
}

func newTestBus(t *testing.T, listen ...core.MessageType) (*bus.MessageBus, *inbox) {
	t.Helper()
	b := bus.New()
	require.NoError(t, b.Initialize(context.Background()))
	t.Cleanup(func() { _ = b.Shutdown(context.Background()) })

	box := &inbox{}
	for _, typ := range listen {
		_, err := b.Subscribe(typ, box.handle)
		require.NoError(t, err)
	}
	return b, box
}
