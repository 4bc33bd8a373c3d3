package logging

import "context"

// MultiLogger fans every message out to a set of loggers, typically console
// plus file.
type MultiLogger struct {
	loggers []Logger
}

// NewMultiLogger creates a logger that writes to all given loggers
func NewMultiLogger(loggers ...Logger) *MultiLogger {
	return &MultiLogger{loggers: loggers}
}

func (m *MultiLogger) Debug(msg string, fields ...Field) {
	for _, l := range m.loggers {
		l.Debug(msg, fields...)
	}
}

func (m *MultiLogger) Info(msg string, fields ...Field) {
	for _, l := range m.loggers {
		l.Info(msg, fields...)
	}
}

func (m *MultiLogger) Warn(msg string, fields ...Field) {
	for _, l := range m.loggers {
		l.Warn(msg, fields...)
	}
}

func (m *MultiLogger) Error(msg string, fields ...Field) {
	for _, l := range m.loggers {
		l.Error(msg, fields...)
	}
}

// WithTraceID returns a new MultiLogger whose children carry the trace ID
func (m *MultiLogger) WithTraceID(traceID string) Logger {
	traced := make([]Logger, len(m.loggers))
	for i, l := range m.loggers {
		traced[i] = l.WithTraceID(traceID)
	}
	return &MultiLogger{loggers: traced}
}

// WithContext returns a new logger that extracts trace ID from context
func (m *MultiLogger) WithContext(ctx context.Context) Logger {
	traceID := TraceIDFromContext(ctx)
	if traceID == "" {
		return m
	}
	return m.WithTraceID(traceID)
}

// SetLevel sets the minimum level on every child logger
func (m *MultiLogger) SetLevel(level LogLevel) {
	for _, l := range m.loggers {
		l.SetLevel(level)
	}
}

// Close closes every child logger, returning the first error
func (m *MultiLogger) Close() error {
	var firstErr error
	for _, l := range m.loggers {
		if err := l.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
