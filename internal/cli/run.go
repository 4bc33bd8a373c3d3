package cli

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/HerbigniauxBenoit/spsync/internal/changes"
	"github.com/HerbigniauxBenoit/spsync/internal/config"
	"github.com/HerbigniauxBenoit/spsync/internal/graph"
	"github.com/HerbigniauxBenoit/spsync/internal/logging"
	"github.com/HerbigniauxBenoit/spsync/internal/secrets"
	"github.com/HerbigniauxBenoit/spsync/internal/store"
	syncengine "github.com/HerbigniauxBenoit/spsync/internal/sync"
	"github.com/HerbigniauxBenoit/spsync/internal/utils"
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run one sync pass",
	Long: `Run one reconciliation pass against the configured SharePoint library.

The pass applies delta changes when a token from a previous run exists and
crawls the whole library otherwise. Exit code 0 means success, 1 means the
run completed with failures or aborted, 2 means invalid configuration.`,
	RunE: runSync,
}

var (
	runForceFull   bool
	runDryRun      bool
	runOrphans     bool
	runPermissions bool
	runConcurrency int
	runLocalPath   string
)

func init() {
	runCmd.Flags().BoolVar(&runForceFull, "force-full", false, "Ignore the stored delta token and crawl everything")
	runCmd.Flags().BoolVar(&runDryRun, "dry-run", false, "Log mutations without applying them")
	runCmd.Flags().BoolVar(&runOrphans, "delete-orphans", false, "Delete artifacts no longer present remotely")
	runCmd.Flags().BoolVar(&runPermissions, "sync-permissions", true, "Propagate item permissions onto artifact metadata")
	runCmd.Flags().IntVar(&runConcurrency, "concurrency", 0, "Parallel item workers (0 keeps the configured value)")
	runCmd.Flags().StringVar(&runLocalPath, "local", "", "Store artifacts under this local directory instead of blob storage")
	rootCmd.AddCommand(runCmd)
}

func runSync(cmd *cobra.Command, args []string) error {
	flags := GetGlobalFlags()
	out := NewOutputWriter(flags.OutputFormat, flags.Quiet, flags.Verbose)

	cfg, err := config.Load()
	if err != nil {
		return fail(out, "run", err)
	}
	applyRunFlags(cfg, cmd)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	conn, err := connect(ctx, cfg, GetLogger())
	if err != nil {
		return fail(out, "run", err)
	}
	defer conn.Close()
	out.Verbose("resolved site %s, drive %q (%s)", conn.site.ID, conn.drive.Name, conn.drive.ID)

	runner := syncengine.NewRunner(syncengine.NewEngine(conn.engineConfig(GetLogger())))
	stats, runErr := runner.Run(ctx, runOptions(cfg))

	if runErr != nil {
		_ = out.WriteError("run", utils.Detail(runErr))
		return &exitError{code: utils.ExitCodeForRun(&stats, runErr), err: runErr}
	}
	if err := out.WriteSuccess("run", &stats); err != nil {
		return err
	}
	if exit := utils.ExitCodeForRun(&stats, nil); exit != utils.ExitSuccess {
		return &exitError{code: exit}
	}
	return nil
}

// applyRunFlags overlays flags the user actually set onto the environment
// configuration, so unset flags keep the environment-driven defaults.
func applyRunFlags(cfg *config.Config, cmd *cobra.Command) {
	if cmd.Flags().Changed("force-full") {
		cfg.ForceFullSync = runForceFull
	}
	if cmd.Flags().Changed("dry-run") {
		cfg.DryRun = runDryRun
	}
	if cmd.Flags().Changed("delete-orphans") {
		cfg.DeleteOrphans = runOrphans
	}
	if cmd.Flags().Changed("sync-permissions") {
		cfg.SyncPermissions = runPermissions
	}
	if cmd.Flags().Changed("concurrency") && runConcurrency > 0 {
		cfg.Concurrency = runConcurrency
	}
	if cmd.Flags().Changed("local") {
		cfg.LocalStorePath = runLocalPath
	}
}

func runOptions(cfg *config.Config) syncengine.Options {
	return syncengine.Options{
		ForceFull:       cfg.ForceFullSync,
		DryRun:          cfg.DryRun,
		DeleteOrphans:   cfg.DeleteOrphans,
		SyncPermissions: cfg.SyncPermissions,
		Concurrency:     cfg.Concurrency,
	}
}

// connection bundles everything a run needs against live services.
type connection struct {
	manager  *changes.Manager
	contents store.ContentStore
	tokens   store.TokenStore
	site     *graph.Site
	drive    *graph.Drive
	client   *graph.Client
}

func (c *connection) Close() error {
	return c.contents.Close()
}

func (c *connection) engineConfig(logger logging.Logger) syncengine.EngineConfig {
	return syncengine.EngineConfig{
		Source:      c.manager,
		Fetcher:     c.manager,
		Permissions: c.manager,
		Contents:    c.contents,
		Tokens:      c.tokens,
		Logger:      logger,
	}
}

// connect acquires credentials, resolves the site and drive, and opens the
// artifact store.
func connect(ctx context.Context, cfg *config.Config, logger logging.Logger) (*connection, error) {
	provider, err := graph.NewTokenProvider(cfg, keyringSecretLookup())
	if err != nil {
		return nil, err
	}
	client := newGraphClient(cfg, provider, logger)

	host, sitePath, err := cfg.SiteHostAndPath()
	if err != nil {
		return nil, utils.NewAppError(utils.ErrCodeConfigInvalid, "invalid site URL", err)
	}
	site, err := client.ResolveSite(ctx, host, sitePath)
	if err != nil {
		return nil, err
	}
	drive, err := client.ResolveDrive(ctx, site.ID, cfg.DriveName)
	if err != nil {
		return nil, err
	}

	contents, err := openContentStore(cfg, logger)
	if err != nil {
		return nil, err
	}
	if bs, ok := contents.(*store.BlobStore); ok {
		if err := bs.EnsureContainer(ctx); err != nil {
			_ = contents.Close()
			return nil, err
		}
	}

	return &connection{
		manager:  changes.NewManager(client, site.ID, drive.ID, cfg.NormalizedFolderPath(), logger),
		contents: contents,
		tokens:   store.NewDeltaTokenStore(contents, logger),
		site:     site,
		drive:    drive,
		client:   client,
	}, nil
}

func newGraphClient(cfg *config.Config, provider graph.TokenProvider, logger logging.Logger) *graph.Client {
	httpClient := &http.Client{Timeout: cfg.GetRequestTimeout()}
	if debugTransport != nil {
		httpClient.Transport = debugTransport
	}
	return graph.NewClient(provider, cfg.MaxRetries, cfg.RetryBaseDelay, logger).WithHTTPClient(httpClient)
}

// keyringSecretLookup falls back to the OS keyring for the client secret. A
// broken keyring is not fatal here: the environment path still works.
func keyringSecretLookup() graph.SecretLookup {
	st, err := secrets.NewStore()
	if err != nil {
		return nil
	}
	return st.LoadClientSecret
}

// openContentStore opens the artifact store selected by config: local SQLite
// when LOCAL_STORE_PATH is set, Azure Blob Storage otherwise.
func openContentStore(cfg *config.Config, logger logging.Logger) (store.ContentStore, error) {
	if cfg.UseLocalStore() {
		return store.OpenSQLite(filepath.Join(cfg.LocalStorePath, "artifacts.db"))
	}
	cred, err := storageCredential(cfg)
	if err != nil {
		return nil, err
	}
	return store.NewBlobStore(cfg.StorageAccount, cfg.Container, cfg.BlobPrefix, cred, logger)
}

// storageCredential picks the blob credential. Client-credential config
// reuses the same app registration as Graph; anything else falls back to the
// default Azure chain (managed identity, workload identity, CLI login).
func storageCredential(cfg *config.Config) (azcore.TokenCredential, error) {
	if cfg.UseClientSecretAuth() {
		secret := cfg.ClientSecret
		if secret == "" {
			if lookup := keyringSecretLookup(); lookup != nil {
				if s, err := lookup(); err == nil {
					secret = s
				}
			}
		}
		if secret != "" {
			cred, err := azidentity.NewClientSecretCredential(cfg.TenantID, cfg.ClientID, secret, nil)
			if err != nil {
				return nil, utils.NewAppError(utils.ErrCodeAuthFailed, "failed to build storage credential", err)
			}
			return cred, nil
		}
	}
	cred, err := azidentity.NewDefaultAzureCredential(nil)
	if err != nil {
		return nil, utils.NewAppError(utils.ErrCodeAuthFailed, "failed to build storage credential", err)
	}
	return cred, nil
}
