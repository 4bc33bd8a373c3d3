package logging

import (
	"path/filepath"
	"testing"
)

func TestMultiLogger_FanOut(t *testing.T) {
	pathA := filepath.Join(t.TempDir(), "a.log")
	pathB := filepath.Join(t.TempDir(), "b.log")

	a, err := NewFileLogger(FileLoggerConfig{FilePath: pathA, Level: INFO})
	if err != nil {
		t.Fatalf("NewFileLogger(a) error = %v", err)
	}
	b, err := NewFileLogger(FileLoggerConfig{FilePath: pathB, Level: INFO})
	if err != nil {
		t.Fatalf("NewFileLogger(b) error = %v", err)
	}

	multi := NewMultiLogger(a, b)
	multi.Info("fanned out", F("run", 1))
	if err := multi.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	for _, path := range []string{pathA, pathB} {
		entries := readEntries(t, path)
		if len(entries) != 1 {
			t.Fatalf("%s: expected 1 entry, got %d", path, len(entries))
		}
		if entries[0].Message != "fanned out" {
			t.Errorf("%s: Message = %v", path, entries[0].Message)
		}
	}
}

func TestMultiLogger_WithTraceID(t *testing.T) {
	pathA := filepath.Join(t.TempDir(), "a.log")

	a, err := NewFileLogger(FileLoggerConfig{FilePath: pathA, Level: INFO})
	if err != nil {
		t.Fatalf("NewFileLogger() error = %v", err)
	}

	multi := NewMultiLogger(a)
	multi.WithTraceID("multi-trace-1").Warn("traced warning")
	multi.Close()

	entries := readEntries(t, pathA)
	if len(entries) != 1 {
		t.Fatalf("Expected 1 entry, got %d", len(entries))
	}
	if entries[0].TraceID != "multi-trace-1" {
		t.Errorf("TraceID = %v, want multi-trace-1", entries[0].TraceID)
	}
	if entries[0].Level != "WARN" {
		t.Errorf("Level = %v, want WARN", entries[0].Level)
	}
}

func TestMultiLogger_SetLevel(t *testing.T) {
	pathA := filepath.Join(t.TempDir(), "a.log")

	a, err := NewFileLogger(FileLoggerConfig{FilePath: pathA, Level: DEBUG})
	if err != nil {
		t.Fatalf("NewFileLogger() error = %v", err)
	}

	multi := NewMultiLogger(a)
	multi.SetLevel(ERROR)
	multi.Info("filtered")
	multi.Error("kept")
	multi.Close()

	entries := readEntries(t, pathA)
	if len(entries) != 1 {
		t.Fatalf("Expected 1 entry after SetLevel, got %d", len(entries))
	}
	if entries[0].Message != "kept" {
		t.Errorf("Message = %v, want kept", entries[0].Message)
	}
}
