package log

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"
)

// Level represents the severity level of a log message.
type Level int

// Log levels
const (
	DebugLevel Level = iota
	InfoLevel
	WarnLevel
	ErrorLevel
)

// String returns the string representation of the log level.
func (l Level) String() string {
	switch l {
	case DebugLevel:
		return "DEBUG"
	case InfoLevel:
		return "INFO"
	case WarnLevel:
		return "WARN"
	case ErrorLevel:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel parses a textual level ("debug", "info", "warn", "error").
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return DebugLevel, nil
	case "info", "":
		return InfoLevel, nil
	case "warn", "warning":
		return WarnLevel, nil
	case "error":
		return ErrorLevel, nil
	default:
		return InfoLevel, fmt.Errorf("unknown log level %q", s)
	}
}

// Output formats.
const (
	FormatText = "text"
	FormatJSON = "json"
)

// Field is a single structured key/value pair.
type Field struct {
	Key   string
	Value any
}

// Str builds a string field.
func Str(key, value string) Field { return Field{Key: key, Value: value} }

// Int builds an int field.
func Int(key string, value int) Field { return Field{Key: key, Value: value} }

// Int64 builds an int64 field.
func Int64(key string, value int64) Field { return Field{Key: key, Value: value} }

// Uint64 builds a uint64 field.
func Uint64(key string, value uint64) Field { return Field{Key: key, Value: value} }

// Dur builds a duration field.
func Dur(key string, value time.Duration) Field { return Field{Key: key, Value: value} }

// Err builds an error field under the conventional "error" key.
func Err(err error) Field { return Field{Key: "error", Value: err} }

// Component tags log lines with the owning component name.
func Component(name string) Field { return Field{Key: "component", Value: name} }

// Logger is the leveled structured logging interface used by all components.
type Logger interface {
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)

	// With returns a logger that includes the given fields on every line.
	With(fields ...Field) Logger

	// WithComponent is shorthand for With(Component(name)).
	WithComponent(name string) Logger
}

// Config is the declarative logging configuration loaded alongside the rest
// of the daemon config.
type Config struct {
	Level  string `json:"level" yaml:"level"`
	Format string `json:"format" yaml:"format"`
}

// ApplyConfig builds a Logger from a declarative Config.
func ApplyConfig(cfg Config) (Logger, error) {
	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	format := cfg.Format
	switch format {
	case "", FormatText:
		format = FormatText
	case FormatJSON:
	default:
		return nil, fmt.Errorf("unknown log format %q", cfg.Format)
	}
	return NewLogger(WithLevel(level), WithFormat(format)), nil
}

// LoggerOption configures a logger under construction.
type LoggerOption func(*baseLogger)

// WithLevel sets the minimum log level.
func WithLevel(level Level) LoggerOption {
	return func(l *baseLogger) { l.level = level }
}

// WithFormat selects the output format (FormatText or FormatJSON).
func WithFormat(format string) LoggerOption {
	return func(l *baseLogger) { l.format = format }
}

// WithOutput directs log output to w instead of stderr.
func WithOutput(w io.Writer) LoggerOption {
	return func(l *baseLogger) { l.out = w }
}

type baseLogger struct {
	level  Level
	format string
	out    io.Writer
	slog   *slog.Logger
}

// NewLogger creates a logger with the given options. Defaults: info level,
// text format, stderr.
func NewLogger(options ...LoggerOption) Logger {
	l := &baseLogger{level: InfoLevel, format: FormatText, out: os.Stderr}
	for _, opt := range options {
		opt(l)
	}
	hopts := &slog.HandlerOptions{Level: toSlogLevel(l.level)}
	var h slog.Handler
	if l.format == FormatJSON {
		h = slog.NewJSONHandler(l.out, hopts)
	} else {
		h = slog.NewTextHandler(l.out, hopts)
	}
	l.slog = slog.New(h)
	return l
}

func toSlogLevel(level Level) slog.Level {
	switch level {
	case DebugLevel:
		return slog.LevelDebug
	case InfoLevel:
		return slog.LevelInfo
	case WarnLevel:
		return slog.LevelWarn
	default:
		return slog.LevelError
	}
}

func attrs(fields []Field) []any {
	if len(fields) == 0 {
		return nil
	}
	out := make([]any, 0, len(fields))
	for _, f := range fields {
		out = append(out, slog.Any(f.Key, f.Value))
	}
	return out
}

func (l *baseLogger) Debug(msg string, fields ...Field) { l.slog.Debug(msg, attrs(fields)...) }
func (l *baseLogger) Info(msg string, fields ...Field)  { l.slog.Info(msg, attrs(fields)...) }
func (l *baseLogger) Warn(msg string, fields ...Field)  { l.slog.Warn(msg, attrs(fields)...) }
func (l *baseLogger) Error(msg string, fields ...Field) { l.slog.Error(msg, attrs(fields)...) }

func (l *baseLogger) With(fields ...Field) Logger {
	nl := *l
	nl.slog = l.slog.With(attrs(fields)...)
	return &nl
}

func (l *baseLogger) WithComponent(name string) Logger {
	return l.With(Component(name))
}

// Discard returns a logger that drops everything. Useful in tests.
func Discard() Logger {
	return NewLogger(WithOutput(io.Discard), WithLevel(ErrorLevel))
}
