package registry

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/TSGCFO/langchain-agent/bus"
	"github.com/TSGCFO/langchain-agent/core"
	"github.com/TSGCFO/langchain-agent/logging"
)

// Options configures a Registry.
type Options struct {
	// Logger defaults to a no-op logger.
	Logger logging.Logger
}

type entry struct {
	agent core.Agent
	role  core.Role
}

// Registry is the thread-safe set of registered agents. It owns the agents it
// holds: once registered, an agent is initialized and shut down only through
// the registry.
type Registry struct {
	bus    *bus.MessageBus
	logger logging.Logger

	mu       sync.RWMutex
	agents   map[string]entry
	order    []string            // registration order, drives selection
	reserved map[string]struct{} // ids whose Initialize is in flight
	closed   bool
}

// New creates an empty Registry bound to b.
func New(b *bus.MessageBus, optFns ...func(o *Options)) *Registry {
	opts := Options{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Registry{
		bus:      b,
		logger:   logging.OrNoOp(opts.Logger),
		agents:   make(map[string]entry),
		reserved: make(map[string]struct{}),
	}
}

// Bus returns the bus agents of this registry communicate over.
func (r *Registry) Bus() *bus.MessageBus { return r.bus }

// Register initializes a and stores it. It fails with core.ErrDuplicateID if
// the id is registered or being registered, and with core.ErrNotReady once
// the registry is shut down. If Initialize fails the id is released.
func (r *Registry) Register(ctx context.Context, a core.Agent) error {
	if a == nil || a.ID() == "" {
		return fmt.Errorf("registry: agent without id: %w", core.ErrValidation)
	}
	id := a.ID()

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return fmt.Errorf("registry: register %s: %w", id, core.ErrNotReady)
	}
	if _, ok := r.agents[id]; ok {
		r.mu.Unlock()
		return fmt.Errorf("registry: agent %s: %w", id, core.ErrDuplicateID)
	}
	if _, ok := r.reserved[id]; ok {
		r.mu.Unlock()
		return fmt.Errorf("registry: agent %s: %w", id, core.ErrDuplicateID)
	}
	r.reserved[id] = struct{}{}
	r.mu.Unlock()

	err := a.Initialize(ctx)

	r.mu.Lock()
	delete(r.reserved, id)
	if err != nil {
		r.mu.Unlock()
		return fmt.Errorf("registry: initialize %s: %w", id, err)
	}
	if r.closed {
		r.mu.Unlock()
		// Shutdown ran while Initialize was in flight.
		regErr := fmt.Errorf("registry: register %s: %w", id, core.ErrNotReady)
		if err := a.Shutdown(context.WithoutCancel(ctx)); err != nil {
			return errors.Join(regErr, fmt.Errorf("registry: shutdown %s: %w", id, err))
		}
		return regErr
	}
	r.agents[id] = entry{agent: a, role: a.Role()}
	r.order = append(r.order, id)
	r.mu.Unlock()

	r.logger.Info("Agent registered", "agent_id", id, "name", a.Name(), "role", string(a.Role()))
	return nil
}

// Unregister removes the agent and shuts it down. Unknown ids fail with
// core.ErrNotFound.
func (r *Registry) Unregister(ctx context.Context, id string) error {
	r.mu.Lock()
	e, ok := r.agents[id]
	if !ok {
		r.mu.Unlock()
		return fmt.Errorf("registry: agent %s: %w", id, core.ErrNotFound)
	}
	delete(r.agents, id)
	r.order = slices.DeleteFunc(r.order, func(s string) bool { return s == id })
	r.mu.Unlock()

	if err := e.agent.Shutdown(ctx); err != nil {
		return fmt.Errorf("registry: shutdown %s: %w", id, err)
	}
	r.logger.Info("Agent unregistered", "agent_id", id)
	return nil
}

// Get returns the agent with the given id.
func (r *Registry) Get(id string) (core.Agent, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.agents[id]
	return e.agent, ok
}

// ByCapability returns the agents declaring tag, in registration order.
func (r *Registry) ByCapability(tag string) []core.Agent {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []core.Agent
	for _, id := range r.order {
		a := r.agents[id].agent
		if slices.Contains(a.Capabilities(), tag) {
			out = append(out, a)
		}
	}
	return out
}

// ForTask selects the agent that should execute a task.
func (r *Registry) ForTask(_ string) (core.Agent, error) {
	return r.firstWithRole(core.RoleTask)
}

// ForQuery selects the agent that should answer a query.
func (r *Registry) ForQuery(_ string) (core.Agent, error) {
	return r.firstWithRole(core.RoleRetrieval)
}

func (r *Registry) firstWithRole(role core.Role) (core.Agent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, id := range r.order {
		if e := r.agents[id]; e.role == role {
			return e.agent, nil
		}
	}
	return nil, fmt.Errorf("registry: no %s agent: %w", role, core.ErrNoAgentsAvailable)
}

// List describes every registered agent in registration order.
func (r *Registry) List() []core.AgentInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]core.AgentInfo, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, core.InfoOf(r.agents[id].agent))
	}
	return out
}

// Len returns the number of registered agents.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.agents)
}

// Shutdown unregisters every agent concurrently, waits for all of them, then
// shuts down the bus. Errors are joined. Calling it again is a no-op.
func (r *Registry) Shutdown(ctx context.Context) error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	agents := make([]core.Agent, 0, len(r.order))
	for _, id := range r.order {
		agents = append(agents, r.agents[id].agent)
	}
	r.agents = make(map[string]entry)
	r.order = nil
	r.mu.Unlock()

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)
	for _, a := range agents {
		wg.Add(1)
		go func(a core.Agent) {
			defer wg.Done()
			if err := a.Shutdown(ctx); err != nil {
				mu.Lock()
				errs = append(errs, fmt.Errorf("registry: shutdown %s: %w", a.ID(), err))
				mu.Unlock()
			}
		}(a)
	}
	wg.Wait()

	if r.bus != nil {
		if err := r.bus.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	r.logger.Info("Registry shut down", "agents", len(agents))
	return errors.Join(errs...)
}
