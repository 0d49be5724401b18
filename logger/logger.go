// Package logger defines the logging interface used throughout go-tcode, so that the protocol
// engine, the transports and the command line tool can share one logging backend.
//
// The Logger interface logs messages at the usual severity levels (Debug, Info, Warn, Error, Fatal)
// with structured key/value pairs:
//
//	conn.Logger().Debug("tcode: response received", "bytes", n, "pending", pending)
//
// Log Levels:
//
//   - DebugLevel: packet level details (records sent, tokens dropped, trace files).
//   - InfoLevel: connection lifecycle and enumeration results.
//   - WarnLevel: device responses that were dropped or could not be decoded.
//   - ErrorLevel: transport failures.
//   - FatalLevel: unrecoverable errors in the command line tool.
package logger

// LogLevel indicates the logging severity level.
type LogLevel = int8

const (
	// DebugLevel logs are voluminous and usually disabled.
	DebugLevel LogLevel = iota - 1
	// InfoLevel is the default logging priority.
	InfoLevel
	// WarnLevel logs are more important than Info, but don't need individual human review.
	WarnLevel
	// ErrorLevel logs are high-priority.
	ErrorLevel
	// FatalLevel logs a message, then calls os.Exit(1).
	FatalLevel
)

// Logger defines a common interface for logging.
type Logger interface {
	// Debug logs a message at DebugLevel.
	Debug(msg string, keysAndValues ...any)
	// Info logs a message at InfoLevel.
	Info(msg string, keysAndValues ...any)
	// Warn logs a message at WarnLevel.
	Warn(msg string, keysAndValues ...any)
	// Error logs a message at ErrorLevel.
	Error(msg string, keysAndValues ...any)
	// Fatal logs a message at FatalLevel, then calls os.Exit(1).
	Fatal(msg string, keysAndValues ...any)
	// With creates a child logger carrying the given key/value pairs.
	// Key-values added to the child don't affect the parent, and vice versa.
	With(keyValues ...any) Logger
	// Level returns the minimum enabled level for this logger.
	Level() LogLevel
	// SetLevel sets the minimum enabled level for this logger.
	SetLevel(level LogLevel)
}

// ParseLevel converts a level name ("debug", "info", "warn", "error", "fatal") to a LogLevel.
// Unknown names map to InfoLevel and ok is false.
func ParseLevel(name string) (level LogLevel, ok bool) {
	switch name {
	case "debug", "DEBUG":
		return DebugLevel, true
	case "info", "INFO", "":
		return InfoLevel, true
	case "warn", "WARN", "warning":
		return WarnLevel, true
	case "error", "ERROR":
		return ErrorLevel, true
	case "fatal", "FATAL":
		return FatalLevel, true
	default:
		return InfoLevel, false
	}
}
