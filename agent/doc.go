// Package agent contains the agent implementations that run on the message
// bus:
//
//  1. BaseAgent: identity, lifecycle, bus subscriptions, history and scratchpad
//  2. TaskAgent: turns a request into one tool call or a dependency-ordered
//     sequence of subtasks
//  3. RAGAgent: answers queries grounded in retrieved documents
//
// Concrete agents embed *BaseAgent and bind their HandleMessage to it. The
// lifecycle only moves forward: Created, Initialized, Active, ShuttingDown,
// Shutdown.
//
// Models, tools and retrievers are collaborators behind interfaces; every call
// into them is bounded by the caller's context and the agent's own timeouts.
package agent
