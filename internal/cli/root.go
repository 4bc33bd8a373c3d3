package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/HerbigniauxBenoit/spsync/internal/logging"
	"github.com/HerbigniauxBenoit/spsync/internal/types"
	"github.com/HerbigniauxBenoit/spsync/internal/utils"
	"github.com/HerbigniauxBenoit/spsync/pkg/version"
	"github.com/spf13/cobra"
)

var (
	globalFlags    types.GlobalFlags
	logger         logging.Logger
	debugTransport *logging.DebugTransport
)

var rootCmd = &cobra.Command{
	Use:   "spsync",
	Short: "SharePoint library sync for Azure Blob Storage",
	Long: `spsync mirrors a SharePoint document library into an artifact store,
Azure Blob Storage or a local SQLite file. Runs are incremental via the
Graph delta API, with optional propagation of item permissions onto
artifact metadata.

Configuration comes from the environment; flags override per invocation.
All commands support JSON output for automation and scripting.`,
	Version:       version.Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := validateGlobalFlags(); err != nil {
			return err
		}

		level, err := logging.ParseLevel(globalFlags.LogLevel)
		if err != nil {
			return err
		}

		// Initialize logging
		logConfig := logging.LogConfig{
			Level:           level,
			OutputFile:      globalFlags.LogFile,
			EnableConsole:   !globalFlags.Quiet,
			EnableDebug:     globalFlags.Debug,
			RedactSensitive: true,
			EnableColor:     true,
			EnableTimestamp: true,
		}
		if globalFlags.Verbose {
			logConfig.Level = logging.DEBUG
		}
		if globalFlags.OutputFormat == types.OutputFormatJSON && !globalFlags.Verbose && !globalFlags.Debug {
			logConfig.EnableConsole = false
		}

		logger, debugTransport, err = logging.NewDebugLoggerWithTransport(logConfig)
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}

		return nil
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Long:  "Print the version number of spsync",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(version.Get().String())
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar((*string)(&globalFlags.OutputFormat), "output", "json", "Output format (json, table)")
	rootCmd.PersistentFlags().BoolVar(&globalFlags.JSON, "json", false, "Output in JSON format (alias for --output json)")
	rootCmd.PersistentFlags().BoolVarP(&globalFlags.Quiet, "quiet", "q", false, "Suppress non-essential output")
	rootCmd.PersistentFlags().BoolVarP(&globalFlags.Verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().BoolVar(&globalFlags.Debug, "debug", false, "Enable debug output including HTTP traces")
	rootCmd.PersistentFlags().StringVar(&globalFlags.LogLevel, "log-level", os.Getenv("LOG_LEVEL"), "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&globalFlags.LogFile, "log-file", os.Getenv("LOG_FILE"), "Path to log file")

	rootCmd.AddCommand(versionCmd)
}

func validateGlobalFlags() error {
	// Handle --json flag as alias for --output json
	if globalFlags.JSON {
		globalFlags.OutputFormat = types.OutputFormatJSON
	}

	if globalFlags.OutputFormat != types.OutputFormatJSON && globalFlags.OutputFormat != types.OutputFormatTable {
		return fmt.Errorf("invalid output format: %s", globalFlags.OutputFormat)
	}
	return nil
}

// exitError carries the process exit code a command chose after it already
// wrote its output envelope.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string {
	if e.err != nil {
		return e.err.Error()
	}
	return fmt.Sprintf("exit code %d", e.code)
}

func (e *exitError) Unwrap() error {
	return e.err
}

// fail writes the error envelope and converts err into the exit code.
func fail(out *OutputWriter, command string, err error) error {
	_ = out.WriteError(command, utils.Detail(err))
	return &exitError{code: utils.ExitCodeForRun(nil, err), err: err}
}

// Execute runs the root command and exits the process with the code the
// command selected: 0 success, 1 partial failure or abort, 2 bad config.
func Execute() {
	err := rootCmd.Execute()
	if err == nil {
		return
	}
	var exitErr *exitError
	if errors.As(err, &exitErr) {
		os.Exit(exitErr.code)
	}
	fmt.Fprintln(os.Stderr, "Error:", err)
	os.Exit(utils.ExitConfigError)
}

// GetGlobalFlags returns the global flags
func GetGlobalFlags() types.GlobalFlags {
	return globalFlags
}

// GetLogger returns the global logger
func GetLogger() logging.Logger {
	return logger
}
