package tool

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/TSGCFO/langchain-agent/core"
	"github.com/TSGCFO/langchain-agent/internal/util"
	"github.com/TSGCFO/langchain-agent/logging"
)

// BeforeHook runs before a tool call. Returning an error aborts the call.
type BeforeHook func(ctx context.Context, name string, args map[string]any) error

// AfterHook observes every finished tool call, successful or not.
type AfterHook func(ctx context.Context, name string, args map[string]any, result any, err error, elapsed time.Duration)

// RegistryOptions configures a Registry.
type RegistryOptions struct {
	// Timeout bounds each call. Zero means no limit beyond the caller's ctx.
	Timeout time.Duration
	Logger  logging.Logger
	Before  []BeforeHook
	After   []AfterHook
}

// Registry holds the tools visible to an agent, addressed by unique name.
type Registry struct {
	opts  RegistryOptions
	mu    sync.RWMutex
	tools map[string]Tool
}

// NewRegistry creates an empty Registry.
func NewRegistry(optFns ...func(o *RegistryOptions)) *Registry {
	opts := RegistryOptions{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}
	opts.Logger = logging.OrNoOp(opts.Logger)
	return &Registry{opts: opts, tools: make(map[string]Tool)}
}

// Register adds tools. A name already present yields core.ErrDuplicateID and
// none of the given tools are added.
func (r *Registry) Register(tools ...Tool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	seen := make(map[string]bool, len(tools))
	for _, t := range tools {
		if t == nil || t.Name() == "" {
			return fmt.Errorf("tool registry: unnamed tool: %w", core.ErrValidation)
		}
		if _, exists := r.tools[t.Name()]; exists || seen[t.Name()] {
			return fmt.Errorf("tool registry: %s: %w", t.Name(), core.ErrDuplicateID)
		}
		seen[t.Name()] = true
	}
	for _, t := range tools {
		r.tools[t.Name()] = t
	}
	return nil
}

// MustRegister is Register that panics on error, for static wiring.
func (r *Registry) MustRegister(tools ...Tool) *Registry {
	if err := r.Register(tools...); err != nil {
		panic(err)
	}
	return r
}

// Get returns the tool with the given name.
func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// Names returns the registered tool names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.tools))
	for n := range r.tools {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Declarations returns the declarations of all tools, sorted by name.
func (r *Registry) Declarations() []Declaration {
	names := r.Names()
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Declaration, 0, len(names))
	for _, n := range names {
		out = append(out, Declare(r.tools[n]))
	}
	return out
}

// Invoke calls the named tool, guarded by the registry timeout and the
// caller's ctx. Unknown names fail with a NOT_FOUND ToolError, expiry with a
// TIMEOUT ToolError; both still satisfy errors.Is against the core kinds.
func (r *Registry) Invoke(ctx context.Context, name string, args map[string]any) (any, error) {
	t, ok := r.Get(name)
	if !ok {
		return nil, &ToolError{Tool: name, Message: "tool is not registered", Code: CodeNotFound}
	}
	if args == nil {
		args = map[string]any{}
	}

	for _, h := range r.opts.Before {
		if err := h(ctx, name, args); err != nil {
			return nil, &ToolError{Tool: name, Message: err.Error(), Code: CodeExecution, Cause: err}
		}
	}

	callCtx, cancel := util.WithOptionalTimeout(ctx, r.opts.Timeout)
	defer cancel()

	start := time.Now()
	result, err := util.CallWithContext(callCtx, func(c context.Context) (any, error) {
		return t.Call(c, args)
	})
	elapsed := time.Since(start)

	if err != nil {
		err = normalize(name, err)
		r.opts.Logger.Warn("Tool call failed", "tool", name, "duration_ms", elapsed.Milliseconds(), "error", err.Error())
	} else {
		r.opts.Logger.Debug("Tool call succeeded", "tool", name, "duration_ms", elapsed.Milliseconds())
	}

	for _, h := range r.opts.After {
		h(ctx, name, args, result, err, elapsed)
	}
	return result, err
}

func normalize(name string, err error) error {
	var toolErr *ToolError
	if errors.As(err, &toolErr) {
		return toolErr
	}
	if errors.Is(err, core.ErrTimeout) {
		return &ToolError{Tool: name, Message: err.Error(), Code: CodeTimeout, Cause: err}
	}
	return &ToolError{Tool: name, Message: err.Error(), Code: CodeExecution, Cause: err}
}
