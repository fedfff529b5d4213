// Package logging provides structured logging for the whac bridge binaries.
//
// This package wraps Go's standard log/slog package to provide consistent,
// structured logging across the bridge agent and the cloud collector.
//
// # Features
//
//   - JSON output for production (machine-parsable)
//   - Text output for development (human-readable)
//   - Default fields (service, version) on all log entries
//   - Level-based filtering (debug, info, warn, error)
//   - Thread-safe for concurrent use
//
// # Configuration
//
// Logging is configured via the LoggingConfig in config.yaml:
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr
//
// # Usage
//
//	logger := logging.New(cfg.Logging, "whacbridge", "1.0.0")
//	logger.Info("serial port opened", "port", "/dev/ttyACM0")
//	logger.Error("handshake failed", "error", err)
package logging
