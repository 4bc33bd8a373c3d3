package logging

import (
	"fmt"
	"net/http"
	"net/http/httputil"
	"time"
)

// LogConfig selects and configures the process logger.
type LogConfig struct {
	Level           LogLevel
	OutputFile      string
	EnableConsole   bool
	EnableColor     bool
	EnableTimestamp bool
	EnableDebug     bool
	RedactSensitive bool
	MaxFileSize     int64
}

// DefaultLogConfig returns the standard configuration: console output at
// INFO with redaction on, file rotation at 100 MiB when a file is set.
func DefaultLogConfig() LogConfig {
	return LogConfig{
		Level:           INFO,
		EnableConsole:   true,
		EnableColor:     true,
		EnableTimestamp: true,
		RedactSensitive: true,
		MaxFileSize:     100 * 1024 * 1024,
	}
}

// NewLogger builds the logger implied by config: console, file, both
// (MultiLogger), or NoOpLogger when everything is disabled.
func NewLogger(config LogConfig) (Logger, error) {
	var console *ConsoleLogger
	if config.EnableConsole {
		console = NewConsoleLogger(ConsoleLoggerConfig{
			Level:            config.Level,
			ColorEnabled:     config.EnableColor,
			TimestampEnabled: config.EnableTimestamp,
			RedactSensitive:  config.RedactSensitive,
		})
	}

	var file *FileLogger
	if config.OutputFile != "" {
		f, err := NewFileLogger(FileLoggerConfig{
			FilePath:      config.OutputFile,
			Level:         config.Level,
			MaxFileSize:   config.MaxFileSize,
			RotateEnabled: config.MaxFileSize > 0,
		})
		if err != nil {
			return nil, err
		}
		file = f
	}

	switch {
	case console != nil && file != nil:
		return NewMultiLogger(console, file), nil
	case console != nil:
		return console, nil
	case file != nil:
		return file, nil
	default:
		return NewNoOpLogger(), nil
	}
}

// DebugTransport is an http.RoundTripper that logs each request and response
// through the logger, with credentials redacted. Wired in under --debug.
type DebugTransport struct {
	Base   http.RoundTripper
	Logger Logger
	// DumpBodies includes request/response bodies in the dump. Off by
	// default: artifact contents can be large and sensitive.
	DumpBodies bool
}

func (t *DebugTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}

	if dump, err := httputil.DumpRequestOut(req, t.DumpBodies); err == nil {
		t.Logger.Debug("http request", F("dump", redactSensitiveData(string(dump))))
	}

	start := time.Now()
	resp, err := base.RoundTrip(req)
	elapsed := time.Since(start)

	if err != nil {
		t.Logger.Debug("http error",
			F("method", req.Method),
			F("url", redactSensitiveData(req.URL.String())),
			F("elapsed", elapsed.String()),
			F("error", err.Error()))
		return nil, err
	}

	t.Logger.Debug("http response",
		F("method", req.Method),
		F("url", redactSensitiveData(req.URL.String())),
		F("status", resp.StatusCode),
		F("elapsed", elapsed.String()))
	return resp, nil
}

// NewDebugLoggerWithTransport builds the configured logger and, when debug
// is enabled, a DebugTransport bound to it for HTTP-level tracing.
func NewDebugLoggerWithTransport(config LogConfig) (Logger, *DebugTransport, error) {
	logger, err := NewLogger(config)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	if !config.EnableDebug {
		return logger, nil, nil
	}

	return logger, &DebugTransport{Logger: logger}, nil
}
