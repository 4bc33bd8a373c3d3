package utils

// Microsoft Graph endpoints and scopes
const (
	GraphAPIBase  = "https://graph.microsoft.com/v1.0"
	GraphScope    = "https://graph.microsoft.com/.default"
	LoginEndpoint = "https://login.microsoftonline.com"
)

// Retry configuration
const (
	DefaultMaxRetries   = 3
	DefaultRetryDelayMs = 1000
	MaxRetryDelayMs     = 32000
)

// Default request timeout for one Graph call, in seconds.
const DefaultRequestTimeoutSeconds = 120

// Default bound for the engine's per-item worker pool.
const DefaultConcurrency = 4

// Schema version
const SchemaVersion = "1.0"
