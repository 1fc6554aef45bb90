// Package logging provides structured logging for entryflow.
//
// This package wraps zap logger with convenience functions for common logging
// patterns used throughout the client. It provides both general logging
// functions and specialized functions for flow and WebSocket logging needs.
//
// # Log Levels
//
// The package supports standard log levels:
//   - Debug: Detailed debugging info (message envelopes, stale-result drops)
//   - Info: Normal operations (connections, step transitions)
//   - Warn: Non-fatal issues (ignored events, dropped updates)
//   - Error: Fatal issues (startup failures, protocol errors)
//
// # Structured Logging
//
// All log functions use structured fields for queryability:
//
//	logging.Info("Flow created",
//	    zap.String("flow_id", "01J9..."),
//	    zap.String("handler", "knx"),
//	)
//
// # Configuration
//
// Logging is silent by default so the interactive wizard owns the terminal.
// Set ENTRYFLOW_LOG_LEVEL=debug (or info/warn/error) to enable output, or
// call Initialize with an explicit level:
//
//	if err := logging.Initialize("debug"); err != nil {
//	    log.Fatal(err)
//	}
//	defer logging.Sync()
//
// # Thread Safety
//
// All logging functions are safe for concurrent use. The underlying zap
// logger handles synchronization automatically.
package logging
