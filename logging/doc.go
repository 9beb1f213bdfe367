// Package logging provides a minimal logging interface and adapters for the assistant.
//
// The Logger interface defines the standard logging methods (Debug, Info, Warn, Error)
// that managers, agents and the pipeline use for observability. This package includes:
//
//   - Logger interface for dependency injection
//   - SlogAdapter and AssistantLogger wrapping Go's structured logging
//   - ZapAdapter for deployments standardised on zap
//   - NoOpLogger for silent operation (testing, minimal setups)
//
// Usage:
//
//	logger := logging.NewSlogLogger(logging.LogLevelInfo, "json", false)
//	a := assistant.New(decider, func(o *assistant.Options) { o.Logger = logger })
package logging
