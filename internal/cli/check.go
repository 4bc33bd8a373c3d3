package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/HerbigniauxBenoit/spsync/internal/config"
	"github.com/HerbigniauxBenoit/spsync/internal/graph"
	"github.com/HerbigniauxBenoit/spsync/internal/store"
	"github.com/HerbigniauxBenoit/spsync/internal/types"
	"github.com/HerbigniauxBenoit/spsync/internal/utils"
	"github.com/spf13/cobra"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Validate configuration and connectivity",
	Long: `Validate the environment configuration, then probe each dependency in
order: token acquisition, site and drive resolution, artifact store access
and delta token state. Probing stops at the first failure.`,
	RunE: runCheck,
}

func init() {
	rootCmd.AddCommand(checkCmd)
}

// checkStep is one probe result in the preflight report.
type checkStep struct {
	Name   string `json:"name"`
	OK     bool   `json:"ok"`
	Detail string `json:"detail,omitempty"`
}

type checkReport struct {
	OK     bool        `json:"ok"`
	Checks []checkStep `json:"checks"`
}

func (r *checkReport) AsTableRenderer() types.TableRenderer {
	return &checkTable{report: r}
}

type checkTable struct {
	report *checkReport
}

func (t *checkTable) Headers() []string {
	return []string{"Check", "Status", "Detail"}
}

func (t *checkTable) Rows() [][]string {
	rows := make([][]string, 0, len(t.report.Checks))
	for _, c := range t.report.Checks {
		status := "ok"
		if !c.OK {
			status = "failed"
		}
		rows = append(rows, []string{c.Name, status, truncate(c.Detail, 70)})
	}
	return rows
}

func (t *checkTable) EmptyMessage() string {
	return "No checks ran"
}

func runCheck(cmd *cobra.Command, args []string) error {
	flags := GetGlobalFlags()
	out := NewOutputWriter(flags.OutputFormat, flags.Quiet, flags.Verbose)
	log := GetLogger()

	cfg, err := config.Load()
	if err != nil {
		return fail(out, "check", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	report := &checkReport{OK: true}
	pass := func(name string, err error, detail string) bool {
		step := checkStep{Name: name, OK: err == nil, Detail: detail}
		if err != nil {
			step.Detail = err.Error()
			report.OK = false
		}
		report.Checks = append(report.Checks, step)
		return err == nil
	}

	pass("config", nil, fmt.Sprintf("site %s, drive %q", cfg.SiteURL, cfg.DriveName))

	provider, err := graph.NewTokenProvider(cfg, keyringSecretLookup())
	if err == nil {
		_, err = provider.Token(ctx)
	}
	if !pass("auth", err, "token acquired") {
		return writeCheckReport(out, report)
	}

	client := newGraphClient(cfg, provider, log)
	host, sitePath, err := cfg.SiteHostAndPath()
	var site *graph.Site
	if err == nil {
		site, err = client.ResolveSite(ctx, host, sitePath)
	}
	detail := ""
	if site != nil {
		detail = "resolved " + site.ID
	}
	if !pass("site", err, detail) {
		return writeCheckReport(out, report)
	}

	drive, err := client.ResolveDrive(ctx, site.ID, cfg.DriveName)
	detail = ""
	if drive != nil {
		detail = "resolved " + drive.ID
	}
	if !pass("drive", err, detail) {
		return writeCheckReport(out, report)
	}

	contents, err := openContentStore(cfg, log)
	detail = ""
	if err == nil {
		defer contents.Close()
		var artifacts map[string]*store.Artifact
		artifacts, err = contents.List(ctx)
		if err == nil {
			kind := "blob container " + cfg.Container
			if cfg.UseLocalStore() {
				kind = "local store " + cfg.LocalStorePath
			}
			detail = fmt.Sprintf("%s, %d artifacts", kind, len(artifacts))
		}
	}
	if !pass("store", err, detail) {
		return writeCheckReport(out, report)
	}

	token, err := store.NewDeltaTokenStore(contents, log).Load(ctx)
	detail = "no token stored, next run is a full crawl"
	if token != "" {
		detail = "token present, next run is incremental"
	}
	pass("delta-token", err, detail)

	return writeCheckReport(out, report)
}

func writeCheckReport(out *OutputWriter, report *checkReport) error {
	if err := out.WriteSuccess("check", report); err != nil {
		return err
	}
	if !report.OK {
		return &exitError{code: utils.ExitPartialFailure}
	}
	return nil
}
