// Package memory contains the per-agent state containers: a bounded
// conversational History and an ephemeral key/value Scratchpad.
//
// Both are owned by a single agent and safe for concurrent use. Neither is
// persisted; an agent that is shut down loses its memory.
package memory
