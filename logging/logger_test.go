package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBufferLogger(level LogLevel) (*StructuredLogger, *bytes.Buffer) {
	buf := &bytes.Buffer{}
	cfg := DefaultLoggerConfig()
	cfg.Level = level
	cfg.Output = buf
	return NewLogger(cfg), buf
}

func TestStructuredLogger_Attributes(t *testing.T) {
	l, buf := newBufferLogger(LogLevelInfo)
	l.WithComponent("bus").WithCorrelation("agent-1", "corr-1").Info("published", "type", "task_request")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "published", entry["msg"])
	assert.Equal(t, "bus", entry["component"])
	assert.Equal(t, "agent-1", entry["agent_id"])
	assert.Equal(t, "corr-1", entry["correlation_id"])
	assert.Equal(t, "task_request", entry["type"])
}

func TestStructuredLogger_LevelFilter(t *testing.T) {
	l, buf := newBufferLogger(LogLevelWarn)
	l.Info("hidden")
	l.Debug("hidden")
	assert.Zero(t, buf.Len())

	l.Warn("shown")
	assert.Contains(t, buf.String(), "shown")
}

func TestStructuredLogger_LogToolCallFailure(t *testing.T) {
	l, buf := newBufferLogger(LogLevelInfo)
	l.LogToolCall("calculator", 5*time.Millisecond, false, errors.New("bad input"))

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "ERROR", entry["level"])
	assert.Equal(t, "calculator", entry["tool_name"])
	assert.Equal(t, "bad input", entry["error"])
}

func TestWithContext_DoesNotLeak(t *testing.T) {
	base, buf := newBufferLogger(LogLevelInfo)
	_ = base.WithContext("k", "v")
	base.Info("plain")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	_, leaked := entry["k"]
	assert.False(t, leaked)
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, LogLevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, LogLevelWarn, ParseLevel("warning"))
	assert.Equal(t, LogLevelInfo, ParseLevel("nonsense"))
}

func TestOrNoOp(t *testing.T) {
	assert.IsType(t, NoOpLogger{}, OrNoOp(nil))
}

func TestSlogAdapter(t *testing.T) {
	buf := &bytes.Buffer{}
	l := NewSlogAdapter(slog.New(slog.NewTextHandler(buf, nil)))
	l.Info("ready", "agents", 2)
	assert.Contains(t, buf.String(), "msg=ready agents=2")
}
