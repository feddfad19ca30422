// Package logger provides a thin structured logging facade over log/slog
// with typed field constructors, so call sites stay terse and allocation-free
// on the common paths.
package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"time"
)

// LogLevel controls the minimum severity a logger emits.
type LogLevel int

// Log levels, lowest to highest severity.
const (
	LogLevelDebug LogLevel = iota
	LogLevelInfo
	LogLevelWarn
	LogLevelError
)

// Field is a typed key/value pair attached to a log record.
type Field = slog.Attr

// Logger is the logging interface used throughout the application.
type Logger interface {
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)
	// With returns a child logger that includes the given fields on every record.
	With(fields ...Field) Logger
}

// Field constructors.

// String creates a string field.
func String(key, value string) Field { return slog.String(key, value) }

// Int creates an int field.
func Int(key string, value int) Field { return slog.Int(key, value) }

// Int64 creates an int64 field.
func Int64(key string, value int64) Field { return slog.Int64(key, value) }

// Uint64 creates a uint64 field.
func Uint64(key string, value uint64) Field { return slog.Uint64(key, value) }

// Float64 creates a float64 field.
func Float64(key string, value float64) Field { return slog.Float64(key, value) }

// Bool creates a bool field.
func Bool(key string, value bool) Field { return slog.Bool(key, value) }

// Duration creates a duration field.
func Duration(key string, value time.Duration) Field { return slog.Duration(key, value) }

// Any creates a field holding an arbitrary value.
func Any(key string, value any) Field { return slog.Any(key, value) }

// Error creates an "error" field. A nil error renders as "<nil>".
func Error(err error) Field {
	if err == nil {
		return slog.String("error", "<nil>")
	}
	return slog.String("error", err.Error())
}

// slogLogger adapts *slog.Logger to the Logger interface.
type slogLogger struct {
	sl *slog.Logger
}

// Options configures logger construction.
type Options struct {
	// JSON switches output from text to JSON handler.
	JSON bool
	// AddSource includes file:line in each record.
	AddSource bool
}

// NewSlogLogger creates a Logger writing to w at the given minimum level.
// A nil opts selects the text handler without source locations.
func NewSlogLogger(w io.Writer, level LogLevel, opts *Options) Logger {
	if opts == nil {
		opts = &Options{}
	}
	hOpts := &slog.HandlerOptions{
		Level:     slogLevel(level),
		AddSource: opts.AddSource,
	}
	var handler slog.Handler
	if opts.JSON {
		handler = slog.NewJSONHandler(w, hOpts)
	} else {
		handler = slog.NewTextHandler(w, hOpts)
	}
	return &slogLogger{sl: slog.New(handler)}
}

// Default returns a text logger on stderr at info level.
func Default() Logger {
	return NewSlogLogger(os.Stderr, LogLevelInfo, nil)
}

func slogLevel(level LogLevel) slog.Level {
	switch level {
	case LogLevelDebug:
		return slog.LevelDebug
	case LogLevelInfo:
		return slog.LevelInfo
	case LogLevelWarn:
		return slog.LevelWarn
	case LogLevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func (l *slogLogger) Debug(msg string, fields ...Field) {
	l.sl.LogAttrs(context.Background(), slog.LevelDebug, msg, fields...)
}

func (l *slogLogger) Info(msg string, fields ...Field) {
	l.sl.LogAttrs(context.Background(), slog.LevelInfo, msg, fields...)
}

func (l *slogLogger) Warn(msg string, fields ...Field) {
	l.sl.LogAttrs(context.Background(), slog.LevelWarn, msg, fields...)
}

func (l *slogLogger) Error(msg string, fields ...Field) {
	l.sl.LogAttrs(context.Background(), slog.LevelError, msg, fields...)
}

func (l *slogLogger) With(fields ...Field) Logger {
	args := make([]any, 0, len(fields))
	for _, f := range fields {
		args = append(args, f)
	}
	return &slogLogger{sl: l.sl.With(args...)}
}
