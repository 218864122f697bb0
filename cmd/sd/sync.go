package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/schemadrift/schemadrift/internal/cache"
	"github.com/schemadrift/schemadrift/internal/catalog"
	"github.com/schemadrift/schemadrift/internal/config"
	"github.com/schemadrift/schemadrift/internal/history"
	"github.com/schemadrift/schemadrift/internal/ledger"
	"github.com/schemadrift/schemadrift/internal/lock"
	"github.com/schemadrift/schemadrift/internal/runner"
	"github.com/schemadrift/schemadrift/internal/store"
	"github.com/schemadrift/schemadrift/internal/ui"
	"github.com/schemadrift/schemadrift/internal/vcs"
)

var flagSyncNoHistory bool

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Fetch all schemas and update the ledger",
	Long: `Run one sync pass against the CloudFormation registry.

This performs a full pass:
  1. Enumerates all public AWS:: resource types
  2. Fetches each schema and writes changed ones to schemas/
  3. Updates versions.json and removed.json
  4. Commits the pass to git history (when enabled)
  5. Refreshes the query cache`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := loadConfig()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		lk, err := acquireLock(cfg)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer lk.Release()

		r, err := buildRunner(cfg, !flagSyncNoHistory)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		fmt.Printf("%s Syncing %s...\n", ui.Accent("→"), cfg.MirrorDir)
		start := time.Now()

		summary, err := r.Run(cmd.Context())
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error during sync: %v\n", err)
			os.Exit(1)
		}

		if err := refreshCache(cmd.Context(), cfg, r.Ledger); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: cache refresh failed: %v\n", err)
		}

		fmt.Printf("%s Sync complete in %v\n", ui.Pass("✓"), time.Since(start).Round(time.Millisecond))
		fmt.Printf("   Enumerated: %d\n", summary.Enumerated)
		fmt.Printf("   Changed:    %d\n", summary.Changed)
		fmt.Printf("   Removed:    %d\n", summary.Removed)
		if summary.Errored > 0 {
			fmt.Printf("   %s    %d (see warnings above)\n", ui.Warn("Errors:"), summary.Errored)
		}
		if summary.Committed {
			fmt.Printf("   History:    committed\n")
		}
	},
}

// acquireLock takes the mirror's sync lock, creating the state directory
// first.
func acquireLock(cfg *config.Config) (*lock.Lock, error) {
	if err := os.MkdirAll(cfg.StateDir(), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create state directory: %w", err)
	}
	lk, err := lock.Acquire(cfg.StateDir(), lock.DefaultTTL)
	if errors.Is(err, lock.ErrLocked) {
		return nil, fmt.Errorf("another sync is already running against %s", cfg.MirrorDir)
	}
	return lk, err
}

// buildRunner assembles a sync runner from configuration. History is
// attached only when enabled, git is available, and the mirror is a
// repository.
func buildRunner(cfg *config.Config, withHistory bool) (*runner.Runner, error) {
	st, err := store.New(cfg.SchemasDir())
	if err != nil {
		return nil, err
	}

	policy, err := ledger.ParsePolicy(cfg.MetadataPolicy)
	if err != nil {
		return nil, err
	}
	led, err := ledger.Open(cfg.MirrorDir, policy)
	if err != nil {
		return nil, err
	}

	cf, err := catalog.NewAWS(cfg.Region)
	if err != nil {
		return nil, err
	}

	r := &runner.Runner{
		Catalog:      cf,
		Store:        st,
		Ledger:       led,
		Concurrency:  cfg.Concurrency,
		FetchTimeout: cfg.FetchTimeout,
	}

	if withHistory && cfg.HistoryEnabled {
		hist, err := openHistory(cfg)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: history disabled: %v\n", err)
		} else {
			r.History = hist
		}
	}

	return r, nil
}

// openHistory opens the mirror's git repository for the history log.
func openHistory(cfg *config.Config) (*history.Log, error) {
	if !vcs.Available() {
		return nil, vcs.ErrGitNotAvailable
	}
	repo, err := vcs.Open(cfg.MirrorDir)
	if err != nil {
		return nil, err
	}
	return history.New(repo, config.SchemasSubdir), nil
}

// refreshCache rebuilds the SQLite query cache from the ledger.
func refreshCache(ctx context.Context, cfg *config.Config, led *ledger.Ledger) error {
	c, err := cache.Open(cfg.CachePath())
	if err != nil {
		return err
	}
	defer c.Close()

	if err := c.InitSchema(ctx); err != nil {
		return err
	}
	return c.Refresh(ctx, led)
}

func init() {
	syncCmd.Flags().BoolVar(&flagSyncNoHistory, "no-history", false, "skip the git history commit for this pass")
	rootCmd.AddCommand(syncCmd)
}
