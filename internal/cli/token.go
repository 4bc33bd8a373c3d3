package cli

import (
	"context"

	"github.com/HerbigniauxBenoit/spsync/internal/config"
	"github.com/HerbigniauxBenoit/spsync/internal/store"
	"github.com/spf13/cobra"
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Manage the stored delta token",
	Long:  "Inspect or clear the delta token that drives incremental runs.",
}

var tokenShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the stored delta token",
	RunE:  runTokenShow,
}

var tokenResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Clear the stored delta token",
	Long:  "Clear the stored delta token so the next run crawls the full library.",
	RunE:  runTokenReset,
}

func init() {
	tokenCmd.AddCommand(tokenShowCmd)
	tokenCmd.AddCommand(tokenResetCmd)
	rootCmd.AddCommand(tokenCmd)
}

func runTokenShow(cmd *cobra.Command, args []string) error {
	flags := GetGlobalFlags()
	out := NewOutputWriter(flags.OutputFormat, flags.Quiet, flags.Verbose)

	cfg, err := config.Load()
	if err != nil {
		return fail(out, "token.show", err)
	}

	contents, err := openContentStore(cfg, GetLogger())
	if err != nil {
		return fail(out, "token.show", err)
	}
	defer contents.Close()

	token, err := store.NewDeltaTokenStore(contents, GetLogger()).Load(context.Background())
	if err != nil {
		return fail(out, "token.show", err)
	}

	return out.WriteSuccess("token.show", map[string]interface{}{
		"present": token != "",
		"token":   token,
	})
}

func runTokenReset(cmd *cobra.Command, args []string) error {
	flags := GetGlobalFlags()
	out := NewOutputWriter(flags.OutputFormat, flags.Quiet, flags.Verbose)

	cfg, err := config.Load()
	if err != nil {
		return fail(out, "token.reset", err)
	}

	contents, err := openContentStore(cfg, GetLogger())
	if err != nil {
		return fail(out, "token.reset", err)
	}
	defer contents.Close()

	if err := store.NewDeltaTokenStore(contents, GetLogger()).Clear(context.Background()); err != nil {
		return fail(out, "token.reset", err)
	}

	out.Log("Delta token cleared, next run will crawl the full library")
	return out.WriteSuccess("token.reset", map[string]interface{}{
		"cleared": true,
	})
}
