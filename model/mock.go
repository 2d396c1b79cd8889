package model

import (
	"context"
	"fmt"
	"sync"
)

// MockReply is one scripted outcome of MockModel.
type MockReply struct {
	Text string
	Err  error
}

// MockModel is a lightweight in-memory Model useful for tests and examples.
// Replies are served from the script queue first, then from prompt-keyed
// canned responses, then echoed.
type MockModel struct {
	info Info

	mu        sync.Mutex
	script    []MockReply
	responses map[string]string
	requests  []Request
}

// NewMockModel constructs a MockModel.
func NewMockModel(name string) *MockModel {
	return &MockModel{
		info:      Info{Name: name, Provider: "mock"},
		responses: make(map[string]string),
	}
}

// AddResponse registers a deterministic canned completion for an input prompt.
func (m *MockModel) AddResponse(prompt, response string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses[prompt] = response
}

// Enqueue appends scripted replies served in order.
func (m *MockModel) Enqueue(replies ...MockReply) *MockModel {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.script = append(m.script, replies...)
	return m
}

// Requests returns a copy of the requests received so far.
func (m *MockModel) Requests() []Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Request, len(m.requests))
	copy(out, m.requests)
	return out
}

// Generate implements Model.
func (m *MockModel) Generate(ctx context.Context, req Request) (*Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = append(m.requests, req)

	if len(m.script) > 0 {
		next := m.script[0]
		m.script = m.script[1:]
		if next.Err != nil {
			return nil, next.Err
		}
		return &Response{Text: next.Text, FinishReason: "stop"}, nil
	}

	input := req.LastUserText()
	if full, ok := m.responses[input]; ok {
		return &Response{Text: full, FinishReason: "stop"}, nil
	}
	return &Response{Text: fmt.Sprintf("Mock response to: %s", input), FinishReason: "stop"}, nil
}

// Info implements Model.
func (m *MockModel) Info() Info { return m.info }
