// Package registry owns the set of live agents.
//
// # Responsibilities
//
//   - Identity: agent ids are unique; concurrent registrations of one id
//     cannot both succeed because the id is reserved before the agent's
//     Initialize runs
//   - Lifecycle: Register initializes the agent (subscribing it on the bus),
//     Unregister shuts it down, Shutdown does so for every agent concurrently
//     and then shuts the bus down
//   - Selection: lookups by id and capability, and the role based policy used
//     by ForTask and ForQuery
//
// # Selection policy
//
// ForTask and ForQuery return the first registered agent whose role, captured
// at registration time, is task or retrieval respectively. The description
// argument is accepted so smarter routing can be added without changing call
// sites.
//
// # Example
//
//	reg := registry.New(messageBus, func(o *registry.Options) { o.Logger = logger })
//	if err := reg.Register(ctx, taskAgent); err != nil {
//	    return err
//	}
//	a, err := reg.ForTask("summarize the report")
//	defer reg.Shutdown(ctx)
package registry
