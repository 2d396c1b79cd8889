package tool

import (
	"context"
	"fmt"
	"sort"

	"github.com/TSGCFO/langchain-agent/memory"
)

// ScratchpadTool exposes an agent's memory.Scratchpad to the model so a plan
// can stash intermediate values and read them back in later steps.
type ScratchpadTool struct {
	pad *memory.Scratchpad
}

// NewScratchpadTool creates a scratchpad tool bound to pad.
func NewScratchpadTool(pad *memory.Scratchpad) *ScratchpadTool {
	return &ScratchpadTool{pad: pad}
}

// Name returns the tool identifier.
func (t *ScratchpadTool) Name() string { return "scratchpad" }

// Description returns the tool description.
func (t *ScratchpadTool) Description() string {
	return "Stores and recalls intermediate values for the current agent. " +
		"Supports operations: get, set, delete, list."
}

// Parameters returns the JSON schema for tool parameters.
func (t *ScratchpadTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"operation": map[string]any{
				"type":        "string",
				"enum":        []string{"get", "set", "delete", "list"},
				"description": "The scratchpad operation to perform",
			},
			"key": map[string]any{
				"type":        "string",
				"description": "Key for get/set/delete operations",
			},
			"value": map[string]any{
				"description": "Value for set operations (any type)",
			},
		},
		"required": []string{"operation"},
	}
}

// Call implements the Tool interface.
func (t *ScratchpadTool) Call(_ context.Context, args map[string]any) (any, error) {
	operation, _ := args["operation"].(string)
	switch operation {
	case "get":
		key, err := requireKey(args, operation)
		if err != nil {
			return nil, err
		}
		value, exists := t.pad.Get(key)
		return map[string]any{"key": key, "exists": exists, "value": value}, nil
	case "set":
		key, err := requireKey(args, operation)
		if err != nil {
			return nil, err
		}
		t.pad.Set(key, args["value"])
		return map[string]any{"key": key, "value": args["value"], "success": true}, nil
	case "delete":
		key, err := requireKey(args, operation)
		if err != nil {
			return nil, err
		}
		t.pad.Delete(key)
		return map[string]any{"key": key, "success": true}, nil
	case "list":
		snap := t.pad.Snapshot()
		keys := make([]string, 0, len(snap))
		for k := range snap {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		return map[string]any{"keys": keys}, nil
	default:
		return nil, NewToolError(t.Name(), fmt.Sprintf("unknown operation: %q", operation), CodeValidation)
	}
}

func requireKey(args map[string]any, operation string) (string, error) {
	key, ok := args["key"].(string)
	if !ok || key == "" {
		return "", NewToolError("scratchpad", fmt.Sprintf("key parameter is required for %s operation", operation), CodeValidation)
	}
	return key, nil
}
