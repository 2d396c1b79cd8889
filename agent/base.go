package agent

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/TSGCFO/langchain-agent/bus"
	"github.com/TSGCFO/langchain-agent/core"
	"github.com/TSGCFO/langchain-agent/logging"
	"github.com/TSGCFO/langchain-agent/memory"
)

// BaseOptions configures the shared part of an agent.
type BaseOptions struct {
	// ID defaults to a fresh uuid.
	ID           string
	Description  string
	Capabilities []string
	// HistoryCapacity defaults to memory.DefaultHistoryCapacity.
	HistoryCapacity int
	Logger          logging.Logger
}

// BaseAgent bundles identity, lifecycle and bus plumbing. Embed it in concrete
// agents and call Bind with the agent's message handler. All exported methods
// are goroutine-safe.
type BaseAgent struct {
	id           string
	name         string
	description  string
	role         core.Role
	capabilities []string
	types        []core.MessageType

	bus        *bus.MessageBus
	logger     logging.Logger
	history    *memory.History
	scratchpad *memory.Scratchpad
	handler    bus.Handler

	mu    sync.Mutex
	state core.LifecycleState
	subs  map[core.MessageType]bus.SubscriptionID
}

// NewBaseAgent creates a BaseAgent in state Created.
func NewBaseAgent(name string, role core.Role, b *bus.MessageBus, types []core.MessageType, opts BaseOptions) *BaseAgent {
	id := opts.ID
	if id == "" {
		id = core.NewID()
	}
	desc := opts.Description
	if desc == "" {
		desc = fmt.Sprintf("Agent %s", name)
	}
	return &BaseAgent{
		id:           id,
		name:         name,
		description:  desc,
		role:         role,
		capabilities: append([]string(nil), opts.Capabilities...),
		types:        append([]core.MessageType(nil), types...),
		bus:          b,
		logger:       logging.OrNoOp(opts.Logger),
		history:      memory.NewHistory(opts.HistoryCapacity),
		scratchpad:   memory.NewScratchpad(),
		state:        core.StateCreated,
		subs:         make(map[core.MessageType]bus.SubscriptionID),
	}
}

// Bind sets the handler subscribed to every declared message type.
func (b *BaseAgent) Bind(h bus.Handler) { b.handler = h }

// ID returns the agent id.
func (b *BaseAgent) ID() string { return b.id }

// Name returns the human-readable name.
func (b *BaseAgent) Name() string { return b.name }

// Description returns the agent description.
func (b *BaseAgent) Description() string { return b.description }

// Role returns the role used by the registry's selection policy.
func (b *BaseAgent) Role() core.Role { return b.role }

// Capabilities returns a copy of the declared capability tags.
func (b *BaseAgent) Capabilities() []string { return append([]string(nil), b.capabilities...) }

// SubscribedTypes returns a copy of the declared message types.
func (b *BaseAgent) SubscribedTypes() []core.MessageType {
	return append([]core.MessageType(nil), b.types...)
}

// State returns the current lifecycle state.
func (b *BaseAgent) State() core.LifecycleState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// History returns the agent's conversational history.
func (b *BaseAgent) History() *memory.History { return b.history }

// Scratchpad returns the agent's ephemeral key-value memory.
func (b *BaseAgent) Scratchpad() *memory.Scratchpad { return b.scratchpad }

// Bus returns the bus the agent publishes on.
func (b *BaseAgent) Bus() *bus.MessageBus { return b.bus }

// Initialize subscribes the bound handler to every declared type, announces
// agent_initialized and moves the agent to Active. If any subscription fails
// the ones already made are undone and the agent stays Created.
func (b *BaseAgent) Initialize(ctx context.Context) error {
	b.mu.Lock()
	if b.state != core.StateCreated {
		state := b.state
		b.mu.Unlock()
		return fmt.Errorf("agent %s is %s: %w", b.id, state, core.ErrAlreadyInitialized)
	}
	if b.handler == nil {
		b.mu.Unlock()
		return fmt.Errorf("agent %s has no message handler: %w", b.id, core.ErrValidation)
	}
	for _, t := range b.types {
		sid, err := b.bus.Subscribe(t, b.handler)
		if err != nil {
			b.unsubscribeLocked()
			b.mu.Unlock()
			return fmt.Errorf("agent %s: subscribe %s: %w", b.id, t, err)
		}
		b.subs[t] = sid
	}
	b.state = core.StateInitialized
	b.mu.Unlock()

	if err := b.publishEvent(ctx, core.EventAgentInitialized, ""); err != nil {
		b.logger.Warn("Failed to announce agent", "agent_id", b.id, "error", err.Error())
	}

	b.mu.Lock()
	b.state = core.StateActive
	b.mu.Unlock()

	b.logger.Info("Agent initialized", "agent_id", b.id, "name", b.name, "role", string(b.role))
	return nil
}

// Shutdown unsubscribes, announces agent_shutdown (best effort) and moves the
// agent to Shutdown. Calling it again is a no-op.
func (b *BaseAgent) Shutdown(ctx context.Context) error {
	b.mu.Lock()
	if b.state == core.StateShuttingDown || b.state == core.StateShutdown {
		b.mu.Unlock()
		return nil
	}
	b.state = core.StateShuttingDown
	b.unsubscribeLocked()
	b.mu.Unlock()

	if err := b.publishEvent(ctx, core.EventAgentShutdown, ""); err != nil && !errors.Is(err, core.ErrNotReady) {
		b.logger.Warn("Failed to announce shutdown", "agent_id", b.id, "error", err.Error())
	}

	b.mu.Lock()
	b.state = core.StateShutdown
	b.mu.Unlock()

	b.logger.Info("Agent shut down", "agent_id", b.id)
	return nil
}

func (b *BaseAgent) unsubscribeLocked() {
	for t, sid := range b.subs {
		if err := b.bus.Unsubscribe(t, sid); err != nil && !errors.Is(err, core.ErrNotReady) {
			b.logger.Warn("Failed to unsubscribe", "agent_id", b.id, "type", string(t), "error", err.Error())
		}
		delete(b.subs, t)
	}
}

// Publish sends msg with this agent as sender.
func (b *BaseAgent) Publish(ctx context.Context, msg core.Message) error {
	msg.Metadata.SenderID = b.id
	return b.bus.Publish(ctx, msg)
}

func (b *BaseAgent) publishEvent(ctx context.Context, event, detail string) error {
	return b.Publish(ctx, core.NewMessage(core.MessageTypeSystemEvent, b.id, core.SystemEvent{
		Event:        event,
		AgentID:      b.id,
		Capabilities: b.Capabilities(),
		Detail:       detail,
	}))
}

// RejectUnsupported announces that msg cannot be handled by this agent and
// returns an error wrapping core.ErrUnsupportedMessage.
func (b *BaseAgent) RejectUnsupported(ctx context.Context, msg core.Message) error {
	detail := fmt.Sprintf("agent %s does not handle %s", b.id, msg.Type)
	ev := core.NewReply(msg, core.MessageTypeSystemEvent, b.id, core.SystemEvent{
		Event:   core.EventUnsupportedMessage,
		AgentID: b.id,
		Detail:  detail,
	})
	if err := b.Publish(ctx, ev); err != nil {
		b.logger.Warn("Failed to publish unsupported message event", "agent_id", b.id, "error", err.Error())
	}
	return fmt.Errorf("%s: %w", detail, core.ErrUnsupportedMessage)
}
