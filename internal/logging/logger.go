package logging

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// LogLevel controls which messages a logger emits.
type LogLevel int

const (
	DEBUG LogLevel = iota
	INFO
	WARN
	ERROR
)

func (l LogLevel) String() string {
	switch l {
	case DEBUG:
		return "DEBUG"
	case INFO:
		return "INFO"
	case WARN:
		return "WARN"
	case ERROR:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel converts a config string into a LogLevel.
func ParseLevel(s string) (LogLevel, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return DEBUG, nil
	case "info", "":
		return INFO, nil
	case "warn", "warning":
		return WARN, nil
	case "error":
		return ERROR, nil
	default:
		return INFO, fmt.Errorf("unknown log level %q", s)
	}
}

// Field is one structured key/value attached to a log line.
type Field struct {
	Key   string
	Value interface{}
}

// F constructs a Field.
func F(key string, value interface{}) Field {
	return Field{Key: key, Value: value}
}

// Logger is the logging interface used throughout the tool.
type Logger interface {
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)
	WithTraceID(traceID string) Logger
	WithContext(ctx context.Context) Logger
	SetLevel(level LogLevel)
	Close() error
}

// LogEntry is the JSON shape written by the file logger.
type LogEntry struct {
	Timestamp time.Time              `json:"timestamp"`
	Level     string                 `json:"level"`
	Message   string                 `json:"message"`
	TraceID   string                 `json:"trace_id,omitempty"`
	Fields    map[string]interface{} `json:"fields,omitempty"`
}

type contextKey string

const traceIDKey contextKey = "trace_id"

// ContextWithTraceID stores a trace ID in the context.
func ContextWithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, traceIDKey, traceID)
}

// TraceIDFromContext extracts a trace ID previously stored in the context.
func TraceIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(traceIDKey).(string); ok {
		return v
	}
	return ""
}

// NoOpLogger discards everything. Used when both console and file output are
// disabled.
type NoOpLogger struct{}

func NewNoOpLogger() *NoOpLogger { return &NoOpLogger{} }

func (l *NoOpLogger) Debug(string, ...Field)             {}
func (l *NoOpLogger) Info(string, ...Field)              {}
func (l *NoOpLogger) Warn(string, ...Field)              {}
func (l *NoOpLogger) Error(string, ...Field)             {}
func (l *NoOpLogger) WithTraceID(string) Logger          { return l }
func (l *NoOpLogger) WithContext(context.Context) Logger { return l }
func (l *NoOpLogger) SetLevel(LogLevel)                  {}
func (l *NoOpLogger) Close() error                       { return nil }
