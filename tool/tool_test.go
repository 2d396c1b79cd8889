package tool

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TSGCFO/langchain-agent/core"
	"github.com/TSGCFO/langchain-agent/memory"
)

// -------------------- FunctionTool Tests --------------------

func sumTool() *FunctionTool {
	params := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"a": map[string]any{"type": "number"},
			"b": map[string]any{"type": "number"},
		},
		"required": []string{"a", "b"},
	}
	return NewFunctionTool("sum", "Add numbers", params, func(_ context.Context, args map[string]any) (any, error) {
		return args["a"].(float64) + args["b"].(float64), nil
	})
}

func TestFunctionTool_Success(t *testing.T) {
	result, err := sumTool().Call(context.Background(), map[string]any{"a": 2.0, "b": 3.0})
	assert.NoError(t, err)
	assert.Equal(t, 5.0, result)
}

func TestFunctionTool_ValidationError(t *testing.T) {
	_, err := sumTool().Call(context.Background(), map[string]any{"a": 1.0})
	require.Error(t, err)

	var toolErr *ToolError
	require.ErrorAs(t, err, &toolErr)
	assert.Equal(t, CodeValidation, toolErr.Code)
	assert.ErrorIs(t, err, core.ErrValidation)
}

func TestFunctionTool_ExecutionError(t *testing.T) {
	boom := errors.New("boom")
	execTool := NewFunctionTool("fail", "Fails", nil, func(context.Context, map[string]any) (any, error) {
		return nil, boom
	})
	_, err := execTool.Call(context.Background(), map[string]any{})

	var toolErr *ToolError
	require.ErrorAs(t, err, &toolErr)
	assert.Equal(t, CodeExecution, toolErr.Code)
	assert.ErrorIs(t, err, core.ErrToolExecution)
	assert.ErrorIs(t, err, boom)
}

func TestFunctionTool_ForwardsToolError(t *testing.T) {
	custom := NewToolError("quota", "limit hit", "QUOTA")
	execTool := NewFunctionTool("quota", "Quota", nil, func(context.Context, map[string]any) (any, error) {
		return nil, custom
	})
	_, err := execTool.Call(context.Background(), nil)
	assert.Same(t, custom, err)
}

type greetArgs struct {
	Name string `json:"name" jsonschema:"description=Who to greet"`
}

func TestNewFunctionToolFromStruct(t *testing.T) {
	greet := NewFunctionToolFromStruct("greet", "Greets", greetArgs{}, func(_ context.Context, args map[string]any) (any, error) {
		return "hello " + args["name"].(string), nil
	})
	_, err := greet.Call(context.Background(), map[string]any{})
	assert.ErrorIs(t, err, core.ErrValidation)

	out, err := greet.Call(context.Background(), map[string]any{"name": "ada"})
	require.NoError(t, err)
	assert.Equal(t, "hello ada", out)
}

// -------------------- Registry Tests --------------------

func TestRegistry_RegisterDuplicate(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(sumTool()))
	assert.ErrorIs(t, r.Register(sumTool()), core.ErrDuplicateID)
	assert.Equal(t, []string{"sum"}, r.Names())
}

func TestRegistry_InvokeNotFound(t *testing.T) {
	_, err := NewRegistry().Invoke(context.Background(), "missing", nil)
	assert.ErrorIs(t, err, core.ErrToolNotFound)
}

func TestRegistry_InvokeTimeout(t *testing.T) {
	release := make(chan struct{})
	defer close(release)
	slow := NewFunctionTool("slow", "Blocks", nil, func(context.Context, map[string]any) (any, error) {
		<-release
		return nil, nil
	})
	r := NewRegistry(func(o *RegistryOptions) { o.Timeout = 20 * time.Millisecond })
	require.NoError(t, r.Register(slow))

	_, err := r.Invoke(context.Background(), "slow", nil)
	assert.ErrorIs(t, err, core.ErrTimeout)
	var toolErr *ToolError
	require.ErrorAs(t, err, &toolErr)
	assert.Equal(t, CodeTimeout, toolErr.Code)
}

func TestRegistry_Hooks(t *testing.T) {
	var afterErr error
	var afterCalls int
	r := NewRegistry(func(o *RegistryOptions) {
		o.Before = append(o.Before, func(_ context.Context, name string, args map[string]any) error {
			if args["a"] == 0.0 {
				return errors.New("zero not allowed")
			}
			return nil
		})
		o.After = append(o.After, func(_ context.Context, _ string, _ map[string]any, _ any, err error, _ time.Duration) {
			afterCalls++
			afterErr = err
		})
	})
	require.NoError(t, r.Register(sumTool()))

	out, err := r.Invoke(context.Background(), "sum", map[string]any{"a": 1.0, "b": 2.0})
	require.NoError(t, err)
	assert.Equal(t, 3.0, out)
	assert.Equal(t, 1, afterCalls)
	assert.NoError(t, afterErr)

	_, err = r.Invoke(context.Background(), "sum", map[string]any{"a": 0.0, "b": 2.0})
	assert.ErrorIs(t, err, core.ErrToolExecution)
	assert.Equal(t, 1, afterCalls, "before hook rejection skips after hooks")
}

func TestRegistry_Declarations(t *testing.T) {
	r := NewRegistry().MustRegister(sumTool(), NewScratchpadTool(memory.NewScratchpad()))
	decls := r.Declarations()
	require.Len(t, decls, 2)
	assert.Equal(t, "scratchpad", decls[0].Name)
	assert.Equal(t, "sum", decls[1].Name)
}

// -------------------- Scratchpad Tool --------------------

func TestScratchpadTool(t *testing.T) {
	pad := memory.NewScratchpad()
	sp := NewScratchpadTool(pad)
	ctx := context.Background()

	_, err := sp.Call(ctx, map[string]any{"operation": "set", "key": "foo", "value": "bar"})
	require.NoError(t, err)
	v, ok := pad.Get("foo")
	require.True(t, ok)
	assert.Equal(t, "bar", v)

	res, err := sp.Call(ctx, map[string]any{"operation": "get", "key": "foo"})
	require.NoError(t, err)
	assert.Equal(t, true, res.(map[string]any)["exists"])

	res, err = sp.Call(ctx, map[string]any{"operation": "list"})
	require.NoError(t, err)
	assert.Equal(t, []string{"foo"}, res.(map[string]any)["keys"])

	_, err = sp.Call(ctx, map[string]any{"operation": "get"})
	assert.ErrorIs(t, err, core.ErrValidation)

	_, err = sp.Call(ctx, map[string]any{"operation": "explode"})
	assert.ErrorIs(t, err, core.ErrValidation)
}

func TestToolErrorFormatting(t *testing.T) {
	err := NewToolError("demo", "something failed", "E123")
	assert.Contains(t, err.Error(), "E123")
	assert.Contains(t, err.Error(), "demo")
}
