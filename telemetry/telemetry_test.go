package telemetry

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	_ Store = (*FileStore)(nil)
	_ Store = (*MemoryStore)(nil)
)

func newFileStore(t *testing.T) *FileStore {
	t.Helper()
	s, err := NewFileStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestFileStore_AppendAndTail(t *testing.T) {
	ctx := context.Background()
	s := newFileStore(t)

	for i := 0; i < 5; i++ {
		require.NoError(t, s.RecordToolUsage(ctx, ToolUsageRecord{ToolName: fmt.Sprintf("tool-%d", i), Success: i%2 == 0}))
	}

	recs, err := s.TailToolUsage(ctx, 3)
	require.NoError(t, err)
	require.Len(t, recs, 3)
	assert.Equal(t, "tool-2", recs[0].ToolName)
	assert.Equal(t, "tool-4", recs[2].ToolName)
	assert.NotEmpty(t, recs[0].ID)
	assert.False(t, recs[0].Timestamp.IsZero())

	all, err := s.TailToolUsage(ctx, 100)
	require.NoError(t, err)
	assert.Len(t, all, 5)
}

func TestFileStore_TailAcrossBlocks(t *testing.T) {
	ctx := context.Background()
	s := newFileStore(t)

	big := strings.Repeat("x", 1000)
	for i := 0; i < 200; i++ {
		require.NoError(t, s.RecordEvaluation(ctx, EvaluationRecord{InteractionID: fmt.Sprintf("i-%03d", i), Feedback: big}))
	}

	recs, err := s.TailEvaluations(ctx, 120)
	require.NoError(t, err)
	require.Len(t, recs, 120)
	assert.Equal(t, "i-080", recs[0].InteractionID)
	assert.Equal(t, "i-199", recs[119].InteractionID)
}

func TestFileStore_MissingFileIsEmpty(t *testing.T) {
	recs, err := newFileStore(t).TailInteractions(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestFileStore_SkipsMalformedLines(t *testing.T) {
	ctx := context.Background()
	s := newFileStore(t)
	require.NoError(t, s.RecordToolUsage(ctx, ToolUsageRecord{ToolName: "a"}))

	f, err := os.OpenFile(filepath.Join(s.Dir(), ToolUsageFile), os.O_APPEND|os.O_WRONLY, 0o644)
	require.NoError(t, err)
	_, err = f.WriteString("{not json\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	require.NoError(t, s.RecordToolUsage(ctx, ToolUsageRecord{ToolName: "b"}))

	recs, err := s.TailToolUsage(ctx, 10)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "a", recs[0].ToolName)
	assert.Equal(t, "b", recs[1].ToolName)
}

func TestFileStore_CollapsesInteractionsByID(t *testing.T) {
	ctx := context.Background()
	s := newFileStore(t)

	require.NoError(t, s.RecordInteraction(ctx, InteractionRecord{ID: "x", Command: "c", Metadata: InteractionMetadata{Phase: PhaseStarted}}))
	require.NoError(t, s.RecordInteraction(ctx, InteractionRecord{ID: "y", Command: "other", Success: true}))
	require.NoError(t, s.RecordInteraction(ctx, InteractionRecord{ID: "x", Command: "c", Success: true, Metadata: InteractionMetadata{Phase: PhaseFinished}}))

	recs, err := s.TailInteractions(ctx, 10)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "y", recs[0].ID)
	assert.Equal(t, "x", recs[1].ID)
	assert.True(t, recs[1].Success)
	assert.Equal(t, PhaseFinished, recs[1].Metadata.Phase)
}

func TestFileStore_ConcurrentAppends(t *testing.T) {
	ctx := context.Background()
	s := newFileStore(t)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_ = s.RecordToolUsage(ctx, ToolUsageRecord{ToolName: fmt.Sprintf("t%d", i)})
		}(i)
	}
	wg.Wait()

	recs, err := s.TailToolUsage(ctx, 100)
	require.NoError(t, err)
	assert.Len(t, recs, 50)
}

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	fixed := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	s := NewMemoryStore(func() time.Time { return fixed })

	require.NoError(t, s.RecordInteraction(ctx, InteractionRecord{ID: "a"}))
	require.NoError(t, s.RecordInteraction(ctx, InteractionRecord{ID: "a", Success: true}))
	require.NoError(t, s.RecordEvaluation(ctx, EvaluationRecord{InteractionID: "a"}))

	recs, err := s.TailInteractions(ctx, 10)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.True(t, recs[0].Success)
	assert.Equal(t, fixed, recs[0].Timestamp)

	evals, err := s.TailEvaluations(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, evals)
}
