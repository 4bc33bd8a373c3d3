package cli

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/HerbigniauxBenoit/spsync/internal/config"
	"github.com/HerbigniauxBenoit/spsync/internal/logging"
	syncengine "github.com/HerbigniauxBenoit/spsync/internal/sync"
	"github.com/HerbigniauxBenoit/spsync/internal/trigger"
	"github.com/HerbigniauxBenoit/spsync/internal/utils"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the HTTP trigger endpoint",
	Long: `Start the HTTP server exposing POST /sync and GET /healthz, plus the
cron schedule when one is configured. Runs until interrupted.`,
	RunE: runServe,
}

var (
	serveAddr     string
	serveSchedule string
)

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (overrides HTTP_ADDR)")
	serveCmd.Flags().StringVar(&serveSchedule, "schedule", "", "Cron schedule for automatic runs (overrides SYNC_SCHEDULE)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	flags := GetGlobalFlags()
	out := NewOutputWriter(flags.OutputFormat, flags.Quiet, flags.Verbose)
	log := GetLogger()

	cfg, err := config.Load()
	if err != nil {
		return fail(out, "serve", err)
	}
	if cmd.Flags().Changed("addr") {
		cfg.HTTPAddr = serveAddr
	}
	if cmd.Flags().Changed("schedule") {
		cfg.Schedule = serveSchedule
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	conn, err := connect(ctx, cfg, log)
	if err != nil {
		return fail(out, "serve", err)
	}
	defer conn.Close()

	runner := syncengine.NewRunner(syncengine.NewEngine(conn.engineConfig(log)))
	defaults := runOptions(cfg)

	if cfg.Schedule != "" {
		sched, err := trigger.NewScheduler(cfg.Schedule, runner, defaults, log)
		if err != nil {
			return fail(out, "serve", err)
		}
		sched.Start()
		defer sched.Stop()
		log.Info("schedule active", logging.F("schedule", cfg.Schedule))
	}

	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: trigger.NewServer(runner, defaults, log).Handler(),
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()
	log.Info("trigger endpoint listening",
		logging.F("addr", cfg.HTTPAddr),
		logging.F("site", cfg.SiteURL),
		logging.F("drive", cfg.DriveName))

	select {
	case err := <-errCh:
		return fail(out, "serve", utils.NewAppError(utils.ErrCodeInternalError, "http server failed", err))
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown incomplete", logging.F("error", err.Error()))
	}
	return nil
}
