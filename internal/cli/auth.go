package cli

import (
	"bufio"
	"errors"
	"io"
	"os"
	"strings"

	"github.com/HerbigniauxBenoit/spsync/internal/secrets"
	"github.com/HerbigniauxBenoit/spsync/internal/utils"
	"github.com/spf13/cobra"
)

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage the stored client secret",
	Long:  "Manage the Entra application secret used for app-only Graph access.",
}

var authSetSecretCmd = &cobra.Command{
	Use:   "set-secret",
	Short: "Store the client secret",
	Long: `Store the Entra application client secret in the OS keyring, or in an
encrypted file when no keyring is available. The secret is read from
stdin unless --value is given.`,
	RunE: runAuthSetSecret,
}

var authClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove the stored client secret",
	RunE:  runAuthClear,
}

var authStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show secret storage status",
	RunE:  runAuthStatus,
}

var authSecretValue string

func init() {
	authSetSecretCmd.Flags().StringVar(&authSecretValue, "value", "", "Secret value (read from stdin when omitted)")
	authCmd.AddCommand(authSetSecretCmd)
	authCmd.AddCommand(authClearCmd)
	authCmd.AddCommand(authStatusCmd)
	rootCmd.AddCommand(authCmd)
}

func runAuthSetSecret(cmd *cobra.Command, args []string) error {
	flags := GetGlobalFlags()
	out := NewOutputWriter(flags.OutputFormat, flags.Quiet, flags.Verbose)

	st, err := secrets.NewStore()
	if err != nil {
		return fail(out, "auth.set-secret", utils.NewAppError(utils.ErrCodeAuthFailed, "secret storage unavailable", err))
	}
	if warning := st.Warning(); warning != "" {
		out.AddWarning("KEYRING_UNAVAILABLE", warning, "warning")
	}

	value := authSecretValue
	if value == "" {
		out.Log("Reading secret from stdin...")
		value, err = readSecretLine(os.Stdin)
		if err != nil {
			return fail(out, "auth.set-secret", utils.NewAppError(utils.ErrCodeConfigInvalid, "failed to read secret", err))
		}
	}
	if value == "" {
		return fail(out, "auth.set-secret", utils.NewAppError(utils.ErrCodeConfigInvalid, "secret must not be empty", nil))
	}

	if err := st.SaveClientSecret(value); err != nil {
		return fail(out, "auth.set-secret", utils.NewAppError(utils.ErrCodeAuthFailed, "failed to store secret", err))
	}

	out.Log("Client secret stored in %s", st.BackendName())
	return out.WriteSuccess("auth.set-secret", map[string]interface{}{
		"backend": st.BackendName(),
		"stored":  true,
	})
}

func runAuthClear(cmd *cobra.Command, args []string) error {
	flags := GetGlobalFlags()
	out := NewOutputWriter(flags.OutputFormat, flags.Quiet, flags.Verbose)

	st, err := secrets.NewStore()
	if err != nil {
		return fail(out, "auth.clear", utils.NewAppError(utils.ErrCodeAuthFailed, "secret storage unavailable", err))
	}

	if err := st.DeleteClientSecret(); err != nil {
		return fail(out, "auth.clear", utils.NewAppError(utils.ErrCodeAuthFailed, "failed to remove secret", err))
	}

	out.Log("Client secret removed")
	return out.WriteSuccess("auth.clear", map[string]interface{}{
		"cleared": true,
	})
}

func runAuthStatus(cmd *cobra.Command, args []string) error {
	flags := GetGlobalFlags()
	out := NewOutputWriter(flags.OutputFormat, flags.Quiet, flags.Verbose)

	st, err := secrets.NewStore()
	if err != nil {
		return fail(out, "auth.status", utils.NewAppError(utils.ErrCodeAuthFailed, "secret storage unavailable", err))
	}
	if warning := st.Warning(); warning != "" && flags.Verbose {
		out.Log("%s", warning)
	}

	stored := false
	switch _, err := st.LoadClientSecret(); {
	case err == nil:
		stored = true
	case errors.Is(err, secrets.ErrNotFound):
	default:
		return fail(out, "auth.status", utils.NewAppError(utils.ErrCodeAuthFailed, "failed to read secret storage", err))
	}

	return out.WriteSuccess("auth.status", map[string]interface{}{
		"backend":       st.BackendName(),
		"secret_stored": stored,
	})
}

// readSecretLine reads one line, trimmed. EOF before a newline still counts
// when something was read, so piped input without a trailing newline works.
func readSecretLine(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	return strings.TrimSpace(line), nil
}
