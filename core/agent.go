package core

import "context"

// LifecycleState is the monotonic lifecycle of an agent:
// Created -> Initialized -> Active -> ShuttingDown -> Shutdown.
type LifecycleState int

const (
	StateCreated LifecycleState = iota
	StateInitialized
	StateActive
	StateShuttingDown
	StateShutdown
)

// String returns the lower-case name of the state.
func (s LifecycleState) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateInitialized:
		return "initialized"
	case StateActive:
		return "active"
	case StateShuttingDown:
		return "shutting_down"
	case StateShutdown:
		return "shutdown"
	default:
		return "unknown"
	}
}

// Role is the capability tag recorded for an agent at registration time and
// used by the registry's selection policy.
type Role string

const (
	RoleTask      Role = "task"
	RoleRetrieval Role = "retrieval"
)

// Agent defines the contract every agent must satisfy to be registered.
//
// Implementations must:
//   - Subscribe to their declared message types in Initialize and publish an
//     agent_initialized system event
//   - Unsubscribe and publish agent_shutdown in Shutdown
//   - Never move backwards through LifecycleState
type Agent interface {
	ID() string
	Name() string
	Description() string
	Role() Role
	Capabilities() []string
	SubscribedTypes() []MessageType
	State() LifecycleState
	Initialize(ctx context.Context) error
	Shutdown(ctx context.Context) error
	HandleMessage(ctx context.Context, msg Message) error
}

// AgentInfo carries identifying details about an agent for listings.
type AgentInfo struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	Description  string   `json:"description"`
	Role         Role     `json:"role"`
	Capabilities []string `json:"capabilities"`
	State        string   `json:"state"`
}

// InfoOf snapshots the identifying details of a.
func InfoOf(a Agent) AgentInfo {
	return AgentInfo{
		ID:           a.ID(),
		Name:         a.Name(),
		Description:  a.Description(),
		Role:         a.Role(),
		Capabilities: a.Capabilities(),
		State:        a.State().String(),
	}
}
