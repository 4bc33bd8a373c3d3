package logging

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func readEntries(t *testing.T, path string) []LogEntry {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read log file: %v", err)
	}
	var entries []LogEntry
	for _, line := range strings.Split(string(data), "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		var entry LogEntry
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			t.Fatalf("Failed to parse log entry %q: %v", line, err)
		}
		entries = append(entries, entry)
	}
	return entries
}

func TestFileLogger_Logging(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "sync.log")

	logger, err := NewFileLogger(FileLoggerConfig{
		FilePath: logPath,
		Level:    DEBUG,
	})
	if err != nil {
		t.Fatalf("NewFileLogger() error = %v", err)
	}

	logger.Debug("resolving drive", F("drive", "Documents"))
	logger.Info("upserted artifact", F("key", "FAQ/handbook.pdf"), F("bytes", 2048))
	logger.Warn("permission fetch failed")
	logger.Error("delta fetch failed", F("retryable", true))

	if err := logger.Close(); err != nil {
		t.Fatalf("Failed to close logger: %v", err)
	}

	entries := readEntries(t, logPath)
	if len(entries) != 4 {
		t.Fatalf("Expected 4 log entries, got %d", len(entries))
	}
	if entries[0].Level != "DEBUG" {
		t.Errorf("Entry.Level = %v, want DEBUG", entries[0].Level)
	}
	if entries[1].Message != "upserted artifact" {
		t.Errorf("Entry.Message = %v, want 'upserted artifact'", entries[1].Message)
	}
	if entries[1].Fields["key"] != "FAQ/handbook.pdf" {
		t.Errorf("Entry.Fields[key] = %v", entries[1].Fields["key"])
	}
}

func TestFileLogger_LevelFiltering(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "sync.log")

	logger, err := NewFileLogger(FileLoggerConfig{
		FilePath: logPath,
		Level:    WARN,
	})
	if err != nil {
		t.Fatalf("NewFileLogger() error = %v", err)
	}

	logger.Debug("filtered")
	logger.Info("filtered")
	logger.Warn("kept")
	logger.Error("kept")

	logger.Close()

	if entries := readEntries(t, logPath); len(entries) != 2 {
		t.Errorf("Expected 2 log entries, got %d", len(entries))
	}
}

func TestFileLogger_WithTraceID(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "sync.log")

	logger, err := NewFileLogger(FileLoggerConfig{
		FilePath: logPath,
		Level:    INFO,
	})
	if err != nil {
		t.Fatalf("NewFileLogger() error = %v", err)
	}

	logger.WithTraceID("trace-123-456").Info("traced message")
	// Derived loggers share the sink, so writes interleave into one file.
	logger.Info("untraced message")

	logger.Close()

	entries := readEntries(t, logPath)
	if len(entries) != 2 {
		t.Fatalf("Expected 2 log entries, got %d", len(entries))
	}
	if entries[0].TraceID != "trace-123-456" {
		t.Errorf("Entry.TraceID = %v, want trace-123-456", entries[0].TraceID)
	}
	if entries[1].TraceID != "" {
		t.Errorf("Entry.TraceID = %v, want empty", entries[1].TraceID)
	}
}

func TestFileLogger_WithContext(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "sync.log")

	logger, err := NewFileLogger(FileLoggerConfig{
		FilePath: logPath,
		Level:    INFO,
	})
	if err != nil {
		t.Fatalf("NewFileLogger() error = %v", err)
	}

	ctx := ContextWithTraceID(context.Background(), "ctx-trace-789")
	logger.WithContext(ctx).Info("traced via context")

	logger.Close()

	entries := readEntries(t, logPath)
	if len(entries) != 1 || entries[0].TraceID != "ctx-trace-789" {
		t.Errorf("entries = %+v, want one entry with trace ctx-trace-789", entries)
	}
}

func TestFileLogger_Rotation(t *testing.T) {
	tempDir := t.TempDir()
	logPath := filepath.Join(tempDir, "sync.log")

	logger, err := NewFileLogger(FileLoggerConfig{
		FilePath:      logPath,
		Level:         INFO,
		MaxFileSize:   100,
		RotateEnabled: true,
	})
	if err != nil {
		t.Fatalf("NewFileLogger() error = %v", err)
	}

	for i := 0; i < 20; i++ {
		logger.Info("a message long enough to push the file past its size cap")
	}

	logger.Close()

	files, err := filepath.Glob(filepath.Join(tempDir, "sync.log*"))
	if err != nil {
		t.Fatalf("Failed to glob log files: %v", err)
	}
	if len(files) < 2 {
		t.Errorf("Expected at least 2 log files (active + rotated), got %d", len(files))
	}
}

func TestFileLogger_SetLevel(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "sync.log")

	logger, err := NewFileLogger(FileLoggerConfig{
		FilePath: logPath,
		Level:    DEBUG,
	})
	if err != nil {
		t.Fatalf("NewFileLogger() error = %v", err)
	}

	logger.Debug("kept")
	logger.SetLevel(ERROR)
	logger.Debug("filtered")
	logger.Info("filtered")
	logger.Error("kept")

	logger.Close()

	if entries := readEntries(t, logPath); len(entries) != 2 {
		t.Errorf("Expected 2 log entries, got %d", len(entries))
	}
}

func TestFileLogger_DoubleClose(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "sync.log")

	logger, err := NewFileLogger(FileLoggerConfig{FilePath: logPath, Level: INFO})
	if err != nil {
		t.Fatalf("NewFileLogger() error = %v", err)
	}

	if err := logger.Close(); err != nil {
		t.Fatalf("first Close() error = %v", err)
	}
	if err := logger.Close(); err != nil {
		t.Errorf("second Close() error = %v, want nil", err)
	}
	// Writes after close are dropped, not panics.
	logger.Info("dropped")
}
