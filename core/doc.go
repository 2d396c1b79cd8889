// Package core provides the foundational domain types and interfaces shared by
// every other package. It defines the core abstractions for:
//
//   - Messages (typed bus traffic with correlation metadata)
//   - Agents (units of work with a monotonic lifecycle)
//   - Tasks and Subtasks (units of execution and their dependency graph)
//   - Documents (retrieval results)
//   - Error kinds (sentinels callers branch on with errors.Is)
//
// The package intentionally keeps implementation concerns (bus dispatch,
// registries, concrete agents, persistence) out of scope, exposing small
// types and interfaces so they can be composed by higher layers.
package core
