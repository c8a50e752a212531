// Package logging provides a minimal logging interface and adapters for GraphFlow.
//
// The Logger interface defines the standard logging methods (Debug, Info,
// Warn, Error) that the engine, stores and tool subsystem use for
// observability. This package includes:
//
//   - Logger interface for dependency injection
//   - SlogAdapter wrapping Go's structured logging
//   - NoOpLogger for silent operation (testing, minimal setups)
//   - GraphFlowLogger with contextual helpers (thread, component) and domain
//     helpers for tool and model call records
//
// Log calls use slog-style alternating key/value arguments:
//
//	logger := logging.NewSlogLogger(logging.LogLevelInfo, "json", false)
//	logger.Info("executor.checkpoint.appended", "thread_id", id, "seq", seq)
//
// The design intentionally keeps the interface minimal to avoid vendor lock-in
// while supporting structured logging where available.
package logging
