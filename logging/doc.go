// Package logging provides a minimal logging interface and adapters for
// the routing core.
//
// The Logger interface defines the structured logging methods (Debug,
// Info, Warn, Error) the orchestrator and agents use for observability.
// This package includes:
//
//   - Logger interface for dependency injection
//   - SlogAdapter wrapping Go's structured logging
//   - NoOpLogger for silent operation (testing, minimal setups)
//
// Usage:
//
//	logger := logging.NewSlogLogger(logging.LogLevelInfo, "json")
//	router := agentroute.New(func(o *agentroute.Options) { o.Logger = logger })
//
// The design intentionally keeps the interface minimal to avoid vendor
// lock-in while supporting structured logging where available.
package logging
