package cli

import (
	"testing"

	"github.com/HerbigniauxBenoit/spsync/internal/config"
)

func TestApplyRunFlags(t *testing.T) {
	setFlag := func(name, value string) {
		t.Helper()
		if err := runCmd.Flags().Set(name, value); err != nil {
			t.Fatalf("set %s: %v", name, err)
		}
	}

	cfg := config.DefaultConfig()
	cfg.DeleteOrphans = true
	cfg.DryRun = false

	// Nothing set on the command line: the environment-driven config wins,
	// including flags whose default differs from the config value.
	applyRunFlags(cfg, runCmd)
	if !cfg.DeleteOrphans {
		t.Fatal("unset flag overrode DeleteOrphans")
	}
	if cfg.DryRun {
		t.Fatal("unset flag overrode DryRun")
	}
	if cfg.Concurrency != config.DefaultConfig().Concurrency {
		t.Fatalf("unset flag changed concurrency to %d", cfg.Concurrency)
	}

	// Zero concurrency on the command line keeps the configured value.
	setFlag("concurrency", "0")
	applyRunFlags(cfg, runCmd)
	if cfg.Concurrency != config.DefaultConfig().Concurrency {
		t.Fatalf("concurrency 0 changed config to %d", cfg.Concurrency)
	}

	// Explicit flags override in both directions.
	setFlag("dry-run", "true")
	setFlag("delete-orphans", "false")
	setFlag("force-full", "true")
	setFlag("sync-permissions", "false")
	setFlag("concurrency", "8")
	setFlag("local", "/tmp/artifacts")
	applyRunFlags(cfg, runCmd)

	if !cfg.DryRun {
		t.Error("dry-run flag not applied")
	}
	if cfg.DeleteOrphans {
		t.Error("delete-orphans=false not applied")
	}
	if !cfg.ForceFullSync {
		t.Error("force-full flag not applied")
	}
	if cfg.SyncPermissions {
		t.Error("sync-permissions=false not applied")
	}
	if cfg.Concurrency != 8 {
		t.Errorf("concurrency = %d, want 8", cfg.Concurrency)
	}
	if cfg.LocalStorePath != "/tmp/artifacts" {
		t.Errorf("local store path = %q", cfg.LocalStorePath)
	}
}

func TestRunOptions(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.ForceFullSync = true
	cfg.DryRun = true
	cfg.DeleteOrphans = true
	cfg.SyncPermissions = false
	cfg.Concurrency = 7

	opts := runOptions(cfg)
	if !opts.ForceFull || !opts.DryRun || !opts.DeleteOrphans {
		t.Fatalf("boolean options not carried over: %+v", opts)
	}
	if opts.SyncPermissions {
		t.Fatal("SyncPermissions should be off")
	}
	if opts.Concurrency != 7 {
		t.Fatalf("concurrency = %d, want 7", opts.Concurrency)
	}
}
