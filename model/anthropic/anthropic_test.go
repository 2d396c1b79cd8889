package anthropic

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TSGCFO/langchain-agent/core"
	"github.com/TSGCFO/langchain-agent/model"
)

func newTestModel(t *testing.T, handler http.HandlerFunc) *Model {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	client := anthropic.NewClient(
		option.WithBaseURL(srv.URL+"/"),
		option.WithAPIKey("test"),
		option.WithMaxRetries(0),
	)
	return NewModelFromClient(&client)
}

func TestGenerate_Text(t *testing.T) {
	m := newTestModel(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"msg_1","type":"message","role":"assistant","model":"claude",
			"content":[{"type":"text","text":"Paris."}],"stop_reason":"end_turn",
			"usage":{"input_tokens":4,"output_tokens":2}}`))
	})

	resp, err := m.Generate(context.Background(), model.Request{Messages: []model.Message{model.UserMessage("Capital of France?")}})
	require.NoError(t, err)
	assert.Equal(t, "Paris.", resp.Text)
	assert.Equal(t, 6, resp.Usage.TotalTokens)
}

func TestGenerate_StructuredUsesForcedTool(t *testing.T) {
	var got map[string]any
	m := newTestModel(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"msg_2","type":"message","role":"assistant","model":"claude",
			"content":[{"type":"tool_use","id":"tu_1","name":"respond","input":{"tool_name":"calculator"}}],
			"stop_reason":"tool_use","usage":{"input_tokens":1,"output_tokens":1}}`))
	})

	schema := map[string]any{
		"type":       "object",
		"properties": map[string]any{"tool_name": map[string]any{"type": "string"}},
		"required":   []any{"tool_name"},
	}
	resp, err := m.Generate(context.Background(), model.Request{
		Messages: []model.Message{model.UserMessage("add")},
		Schema:   schema,
	})
	require.NoError(t, err)
	assert.JSONEq(t, `{"tool_name":"calculator"}`, resp.Text)

	choice, ok := got["tool_choice"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "respond", choice["name"])
}

func TestGenerate_RateLimited(t *testing.T) {
	m := newTestModel(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"type":"error","error":{"type":"rate_limit_error","message":"slow"}}`))
	})

	_, err := m.Generate(context.Background(), model.Request{Messages: []model.Message{model.UserMessage("hi")}})
	assert.ErrorIs(t, err, core.ErrRateLimited)
}
