package model

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/TSGCFO/langchain-agent/core"
)

// Message roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one role-tagged turn of the conversation sent to the model.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// UserMessage is shorthand for a user turn.
func UserMessage(text string) Message { return Message{Role: RoleUser, Content: text} }

// AssistantMessage is shorthand for an assistant turn.
func AssistantMessage(text string) Message { return Message{Role: RoleAssistant, Content: text} }

// Request captures the normalized model input.
type Request struct {
	// System is the optional system preamble.
	System string `json:"system,omitempty"`
	// Messages are the ordered conversation turns; the last one is usually the user's.
	Messages []Message `json:"messages"`
	// Schema, when set, asks for a JSON reply conforming to it.
	Schema map[string]any `json:"schema,omitempty"`
	// SchemaName labels the schema for providers that want a name.
	SchemaName string `json:"schema_name,omitempty"`
}

// LastUserText returns the content of the last user message, or "".
func (r Request) LastUserText() string {
	for i := len(r.Messages) - 1; i >= 0; i-- {
		if r.Messages[i].Role == RoleUser {
			return r.Messages[i].Content
		}
	}
	return ""
}

// TokenUsage captures token usage statistics for a response.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Response is the final reply of a model.
type Response struct {
	ID           string      `json:"id,omitempty"`
	Text         string      `json:"text"`
	FinishReason string      `json:"finish_reason,omitempty"`
	Usage        *TokenUsage `json:"usage,omitempty"`
}

// Info contains metadata about a model implementation.
type Info struct {
	Name     string `json:"name"`
	Provider string `json:"provider"` // "openai", "anthropic", "gemini", "mock", ...
}

// Model is the minimal interface agents need to drive generation.
type Model interface {
	// Generate returns the model's reply. Errors wrap core.ErrProvider,
	// core.ErrRateLimited or core.ErrMalformedOutput.
	Generate(ctx context.Context, req Request) (*Response, error)

	// Info returns information about the model implementation.
	Info() Info
}

// Func adapts a plain function to Model.
type Func func(ctx context.Context, req Request) (*Response, error)

// Generate implements Model.
func (f Func) Generate(ctx context.Context, req Request) (*Response, error) { return f(ctx, req) }

// Info implements Model.
func (f Func) Info() Info { return Info{Name: "func", Provider: "func"} }

// ProviderError carries a vendor failure. It unwraps to core.ErrRateLimited
// for HTTP 429 and to core.ErrProvider otherwise.
type ProviderError struct {
	Provider   string
	StatusCode int
	Err        error
}

func (e *ProviderError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s api error (status %d): %v", e.Provider, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s api error: %v", e.Provider, e.Err)
}

// Unwrap exposes the error kind and the vendor error.
func (e *ProviderError) Unwrap() []error {
	kind := core.ErrProvider
	if e.StatusCode == http.StatusTooManyRequests {
		kind = core.ErrRateLimited
	}
	return []error{kind, e.Err}
}

// WrapProviderError classifies err from provider. Context errors pass through
// unchanged so deadline handling stays uniform.
func WrapProviderError(provider string, status int, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return err
	}
	return &ProviderError{Provider: provider, StatusCode: status, Err: err}
}
