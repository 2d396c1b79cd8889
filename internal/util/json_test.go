package util

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "plain object", in: `{"a":1}`, want: `{"a":1}`},
		{name: "fenced", in: "Here you go:\n```json\n{\"tool_name\":\"calc\"}\n```", want: `{"tool_name":"calc"}`},
		{name: "largest wins", in: `small {"x":1} then {"x":1,"y":[1,2]} end`, want: `{"x":1,"y":[1,2]}`},
		{name: "braces in strings", in: `note {"s":"a } b"} done`, want: `{"s":"a } b"}`},
		{name: "array", in: `result: [1, 2, 3]`, want: `[1, 2, 3]`},
		{name: "none", in: `no json here {broken`, want: ""},
		{name: "unclosed prefix", in: `{{ draft {"a":{"b":2}} trailing [`, want: `{"a":{"b":2}}`},
		{name: "nested invalid outer", in: `{oops {"k":[1]} }`, want: `{"k":[1]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractJSON(tt.in))
		})
	}
}

func TestExtractJSON_ManyUnclosedBrackets(t *testing.T) {
	text := strings.Repeat("{[", 100000) + ` answer: {"ok":true}`

	done := make(chan string, 1)
	go func() { done <- ExtractJSON(text) }()

	select {
	case got := <-done:
		assert.Equal(t, `{"ok":true}`, got)
	case <-time.After(5 * time.Second):
		t.Fatal("ExtractJSON did not finish on long unbalanced input")
	}
}
