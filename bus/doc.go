// Package bus implements the typed publish/subscribe transport agents use to
// exchange core.Message values.
//
// A MessageBus moves through three states: uninitialized, ready and shut down.
// Publish, Subscribe and Unsubscribe only succeed while the bus is ready.
// Publish is synchronous: it returns after every handler subscribed to the
// message type at dispatch time has run. Handlers are invoked in subscription
// order; a handler that returns an error or panics is logged and isolated
// from the other handlers and from the publisher.
//
// A MessageStore can be attached to retain published messages for a bounded
// TTL so they can be looked up by id later. Store failures never affect live
// delivery. Two stores are provided: an in-memory map and a SQLite table.
package bus
