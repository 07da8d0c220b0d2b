// Package log provides structured traffic capture for a federation.
//
// This package defines the Logger interface and Event types for capturing
// federation events at multiple layers (transport, wire, federation).
// It is separate from operational logging (slog): capture provides a
// complete machine-readable trace of what every core and broker sent,
// received and granted, for debugging and analysis.
//
// # Basic Usage
//
// Cores and brokers accept a Logger in their configuration:
//
//	// For development: log to console via slog
//	cfg.ProtocolLogger = log.NewSlogAdapter(slog.Default())
//
//	// For analysis: write to a binary capture file
//	cfg.ProtocolLogger, _ = log.NewFileLogger("/tmp/federation.flog")
//
//	// Both: use MultiLogger
//	cfg.ProtocolLogger = log.NewMultiLogger(
//	    log.NewSlogAdapter(slog.Default()),
//	    fileLogger,
//	)
//
// # Event Types
//
// Events are captured at multiple layers:
//   - Transport: Raw frame bytes on stream links (FrameEvent)
//   - Wire: Decoded action messages (ActionEvent)
//   - Federation: Lifecycle changes and time grants (StateChangeEvent, GrantEvent)
//
// Errors have a dedicated event type.
//
// # File Format
//
// Capture files are a stream of CBOR-encoded events with the .flog
// extension. The fedsim-log CLI tool provides viewing, filtering, export
// and statistics.
package log
