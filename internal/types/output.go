package types

// OutputFormat selects how CLI results are rendered.
type OutputFormat string

const (
	OutputFormatJSON  OutputFormat = "json"
	OutputFormatTable OutputFormat = "table"
)

// GlobalFlags are the persistent flags shared by every command.
type GlobalFlags struct {
	OutputFormat OutputFormat
	JSON         bool
	Quiet        bool
	Verbose      bool
	Debug        bool
	LogLevel     string
	LogFile      string
}

// CLIWarning is a non-fatal notice included in the output envelope.
type CLIWarning struct {
	Code     string `json:"code"`
	Message  string `json:"message"`
	Severity string `json:"severity"`
}

// CLIErrorDetail is the serialized form of a failure in the output envelope.
type CLIErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Context string `json:"context,omitempty"`
}

// CLIOutput is the JSON envelope every command emits in json mode.
type CLIOutput struct {
	SchemaVersion string           `json:"schema_version"`
	TraceID       string           `json:"trace_id"`
	Command       string           `json:"command"`
	Data          interface{}      `json:"data"`
	Warnings      []CLIWarning     `json:"warnings"`
	Errors        []CLIErrorDetail `json:"errors"`
}

type TableRenderer interface {
	Headers() []string
	Rows() [][]string
	EmptyMessage() string
}

type TableRenderable interface {
	AsTableRenderer() TableRenderer
}
