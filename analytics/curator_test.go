package analytics

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TSGCFO/langchain-agent/core"
	"github.com/TSGCFO/langchain-agent/internal/testutil"
	"github.com/TSGCFO/langchain-agent/telemetry"
)

func seed(t *testing.T, store *telemetry.MemoryStore, recs ...telemetry.InteractionRecord) {
	t.Helper()
	for _, r := range recs {
		require.NoError(t, store.RecordInteraction(context.Background(), r))
	}
}

func TestGenerateFineTuningDataset(t *testing.T) {
	store := telemetry.NewMemoryStore(nil)
	seed(t, store,
		testutil.NewInteraction("add 1 2").Tool("calculator", "using calculator because math").Params(map[string]any{"a": 1.0}).Succeeded(0.3).Build(),
		testutil.NewInteraction("broken").Tool("calculator", "x").Failed("nope").Build(),
		testutil.NewInteraction("plain").Succeeded(1).Build(),
	)

	got, err := NewCurator(store).GenerateFineTuningDataset(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, TrainingExample{
		Input:    "add 1 2",
		Output:   ExampleOutput{ToolName: "calculator", Parameters: map[string]any{"a": 1.0}, Reasoning: "using calculator because math"},
		Metadata: ExampleMetadata{Success: true, ExecutionTime: 0.3},
	}, got[0])
}

func TestPrepareTrainingData_ExcludesTimeoutCaseInsensitively(t *testing.T) {
	store := telemetry.NewMemoryStore(nil)
	seed(t, store,
		testutil.NewInteraction("fetch page after TIMEOUT").Tool("fetch_url", "retrying").Succeeded(1).Build(),
		testutil.NewInteraction("fetch page").Tool("fetch_url", "previous attempt hit a Timeout").Succeeded(1).Build(),
		testutil.NewInteraction("fetch docs").Tool("fetch_url", "using fetch_url to read docs").Succeeded(2).Build(),
	)

	set, err := NewCurator(store).PrepareTrainingData(context.Background(), TrainingConfig{})
	require.NoError(t, err)
	require.Len(t, set.Examples, 1)
	assert.Equal(t, "fetch docs", set.Examples[0].Input)
	assert.Equal(t, 2, set.Excluded)
	assert.Equal(t, 3, set.Candidates)
}

func TestPrepareTrainingData_Balancing(t *testing.T) {
	store := telemetry.NewMemoryStore(nil)
	seed(t, store,
		testutil.NewInteraction("c1").Tool("calculator", "r").Succeeded(3).Build(),
		testutil.NewInteraction("c2").Tool("calculator", "r").Succeeded(1).Build(),
		testutil.NewInteraction("c3").Tool("calculator", "r").Succeeded(2).Build(),
		testutil.NewInteraction("t1").Tool("current_time", "r").Succeeded(1).Build(),
	)

	set, err := NewCurator(store).PrepareTrainingData(context.Background(), TrainingConfig{
		ExcludePatterns:   []string{},
		MinSamplesPerTool: 2,
		MaxSamplesPerTool: 2,
	})
	require.NoError(t, err)

	inputs := make([]string, len(set.Examples))
	for i, ex := range set.Examples {
		inputs[i] = ex.Input
	}
	assert.Equal(t, []string{"c2", "c3"}, inputs, "sorted by execution time then truncated")
	assert.Equal(t, map[string]int{"calculator": 2}, set.PerTool)
	assert.Equal(t, []string{"current_time"}, set.DroppedTools)
}

func TestPrepareTrainingData_Provenance(t *testing.T) {
	ctx := context.Background()
	store := telemetry.NewMemoryStore(nil)
	seed(t, store, testutil.NewInteraction("c1").Tool("calculator", "r").Succeeded(1).Build())
	c := NewCurator(store)

	_, err := c.PrepareTrainingData(ctx, DefaultTrainingConfig())
	require.NoError(t, err)

	_, err = c.PrepareTrainingData(ctx, TrainingConfig{MinSamplesPerTool: 5, MaxSamplesPerTool: 2})
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrValidation)

	recs, err := store.TailInteractions(ctx, 10)
	require.NoError(t, err)
	var provenance []telemetry.InteractionRecord
	for _, r := range recs {
		if r.Command == CurationCommand {
			provenance = append(provenance, r)
		}
	}
	require.Len(t, provenance, 2)
	assert.True(t, provenance[0].Success)
	assert.Equal(t, 1, provenance[0].Result.(map[string]any)["examples"])
	assert.False(t, provenance[1].Success)
	assert.Contains(t, provenance[1].Error, "training config")

	// Provenance records carry no analysis, so they never become examples.
	examples, err := c.GenerateFineTuningDataset(ctx)
	require.NoError(t, err)
	assert.Len(t, examples, 1)
}

func TestWriteJSONL(t *testing.T) {
	var buf bytes.Buffer
	err := WriteJSONL(&buf, []TrainingExample{
		{Input: "a", Output: ExampleOutput{ToolName: "t"}},
		{Input: "b", Output: ExampleOutput{ToolName: "t"}},
	})
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	var ex TrainingExample
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &ex))
	assert.Equal(t, "b", ex.Input)
}
