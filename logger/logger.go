// Package logger provides the structured logging facade used by the
// cross-connect drivers.
//
// Drivers accept a Logger so that callers can plug in their own framework.
// The default implementation writes JSON records through log/slog; set
// ENV=development (or call NewSlog with Console) to get colored,
// human-readable console output instead.
package logger

// Level indicates the logging severity level.
type Level int8

const (
	// DebugLevel carries wire traffic and real-vs-virtual translations.
	DebugLevel Level = iota - 1
	// InfoLevel is the default logging priority.
	InfoLevel
	// WarnLevel logs recoverable anomalies.
	WarnLevel
	// ErrorLevel logs failed device operations.
	ErrorLevel
)

// ParseLevel converts a verbosity count (as given by repeated -v flags)
// into a Level.
func ParseLevel(verbosity int) Level {
	switch {
	case verbosity >= 2:
		return DebugLevel
	case verbosity == 1:
		return InfoLevel
	default:
		return WarnLevel
	}
}

// Logger defines the logging interface.
type Logger interface {
	// Debug logs a message at DebugLevel with key/value pairs.
	Debug(msg string, keysAndValues ...any)
	// Info logs a message at InfoLevel with key/value pairs.
	Info(msg string, keysAndValues ...any)
	// Warn logs a message at WarnLevel with key/value pairs.
	Warn(msg string, keysAndValues ...any)
	// Error logs a message at ErrorLevel with key/value pairs.
	Error(msg string, keysAndValues ...any)
	// With creates a child logger carrying keyValues on every record.
	With(keyValues ...any) Logger
	// Level returns the minimum enabled level.
	Level() Level
	// SetLevel sets the minimum enabled level.
	SetLevel(level Level)
}
