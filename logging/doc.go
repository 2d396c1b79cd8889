// Package logging provides the operational logging interface and adapters.
//
// The Logger interface defines the standard leveled methods (Debug, Info, Warn,
// Error) that the bus, agents, registry and analytics use for observability.
// This package includes:
//
//   - Logger interface for dependency injection
//   - SlogAdapter wrapping an existing *slog.Logger
//   - StructuredLogger with component/correlation scoping and domain helpers
//   - NoOpLogger for silent operation (tests, minimal setups)
//
// Usage:
//
//	logger := logging.NewSlogLogger(logging.LogLevelInfo, "json", false)
//	b := bus.New(func(o *bus.Options) { o.Logger = logger })
//
// Operational logs are distinct from the telemetry streams: they are for
// operators, while telemetry records feed analytics.
package logging
