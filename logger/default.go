package logger

import (
	"io"
	"sync/atomic"
)

var defLogger atomic.Value

func init() {
	defLogger.Store(holder{NewSlog(Options{Level: InfoLevel})})
}

// holder keeps atomic.Value storing a single concrete type.
type holder struct{ Logger }

// GetLogger returns the package default logger.
func GetLogger() Logger {
	return defLogger.Load().(holder).Logger
}

// SetDefault replaces the package default logger.
func SetDefault(l Logger) {
	if l != nil {
		defLogger.Store(holder{l})
	}
}

// Discard returns a logger that drops every record.
func Discard() Logger {
	return NewSlog(Options{Level: ErrorLevel, Format: JSON, Output: io.Discard})
}

func Debug(msg string, keysAndValues ...any) { GetLogger().Debug(msg, keysAndValues...) }

func Info(msg string, keysAndValues ...any) { GetLogger().Info(msg, keysAndValues...) }

func Warn(msg string, keysAndValues ...any) { GetLogger().Warn(msg, keysAndValues...) }

func Error(msg string, keysAndValues ...any) { GetLogger().Error(msg, keysAndValues...) }

func With(keyValues ...any) Logger { return GetLogger().With(keyValues...) }
