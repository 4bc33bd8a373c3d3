package logging

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// fileSink owns the file handle and rotation state. Loggers derived via
// WithTraceID share one sink so rotation stays coherent.
type fileSink struct {
	mu            sync.Mutex
	file          *os.File
	filePath      string
	maxFileSize   int64
	currentSize   int64
	rotateEnabled bool
}

// FileLogger implements Logger with JSON-lines output and size-based rotation
type FileLogger struct {
	sink    *fileSink
	level   LogLevel
	traceID string
}

// FileLoggerConfig contains configuration for file logger
type FileLoggerConfig struct {
	FilePath      string
	Level         LogLevel
	MaxFileSize   int64 // in bytes, 0 means no rotation
	RotateEnabled bool
}

// NewFileLogger creates a new file logger
func NewFileLogger(config FileLoggerConfig) (*FileLogger, error) {
	dir := filepath.Dir(config.FilePath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	file, err := os.OpenFile(config.FilePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}

	info, err := file.Stat()
	if err != nil {
		if closeErr := file.Close(); closeErr != nil {
			return nil, fmt.Errorf("failed to close log file after stat error: %w", closeErr)
		}
		return nil, fmt.Errorf("failed to stat log file: %w", err)
	}

	return &FileLogger{
		sink: &fileSink{
			file:          file,
			filePath:      config.FilePath,
			maxFileSize:   config.MaxFileSize,
			currentSize:   info.Size(),
			rotateEnabled: config.RotateEnabled && config.MaxFileSize > 0,
		},
		level: config.Level,
	}, nil
}

func (l *FileLogger) log(level LogLevel, msg string, fields ...Field) {
	if level < l.level {
		return
	}

	entry := LogEntry{
		Timestamp: time.Now().UTC(),
		Level:     level.String(),
		Message:   msg,
		TraceID:   l.traceID,
		Fields:    make(map[string]interface{}),
	}
	for _, field := range fields {
		entry.Fields[field.Key] = field.Value
	}

	data, err := json.Marshal(entry)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to marshal log entry: %v\n", err)
		return
	}

	l.sink.write(data)
}

func (s *fileSink) write(data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.file == nil {
		return
	}

	if s.rotateEnabled && s.currentSize >= s.maxFileSize {
		if err := s.rotate(); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to rotate log file: %v\n", err)
		}
	}

	data = append(data, '\n')
	n, err := s.file.Write(data)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to write log entry: %v\n", err)
		return
	}

	s.currentSize += int64(n)
}

// rotate renames the active file with a timestamp suffix and starts a new one.
// Caller holds the sink mutex.
func (s *fileSink) rotate() error {
	if err := s.file.Close(); err != nil {
		return fmt.Errorf("failed to close log file: %w", err)
	}

	timestamp := time.Now().UTC().Format("20060102-150405")
	rotatedPath := fmt.Sprintf("%s.%s", s.filePath, timestamp)
	if err := os.Rename(s.filePath, rotatedPath); err != nil {
		file, _ := os.OpenFile(s.filePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		s.file = file
		return fmt.Errorf("failed to rename log file: %w", err)
	}

	file, err := os.OpenFile(s.filePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to create new log file: %w", err)
	}

	s.file = file
	s.currentSize = 0

	return nil
}

// Debug logs a debug-level message
func (l *FileLogger) Debug(msg string, fields ...Field) {
	l.log(DEBUG, msg, fields...)
}

// Info logs an info-level message
func (l *FileLogger) Info(msg string, fields ...Field) {
	l.log(INFO, msg, fields...)
}

// Warn logs a warning-level message
func (l *FileLogger) Warn(msg string, fields ...Field) {
	l.log(WARN, msg, fields...)
}

// Error logs an error-level message
func (l *FileLogger) Error(msg string, fields ...Field) {
	l.log(ERROR, msg, fields...)
}

// WithTraceID returns a new logger sharing this logger's file sink
func (l *FileLogger) WithTraceID(traceID string) Logger {
	return &FileLogger{
		sink:    l.sink,
		level:   l.level,
		traceID: traceID,
	}
}

// WithContext returns a new logger that extracts trace ID from context
func (l *FileLogger) WithContext(ctx context.Context) Logger {
	traceID := TraceIDFromContext(ctx)
	if traceID == "" {
		return l
	}
	return l.WithTraceID(traceID)
}

// SetLevel sets the minimum log level
func (l *FileLogger) SetLevel(level LogLevel) {
	l.level = level
}

// Close closes the log file
func (l *FileLogger) Close() error {
	l.sink.mu.Lock()
	defer l.sink.mu.Unlock()

	if l.sink.file != nil {
		err := l.sink.file.Close()
		l.sink.file = nil
		return err
	}
	return nil
}
