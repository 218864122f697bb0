package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/schemadrift/schemadrift/internal/config"
	"github.com/schemadrift/schemadrift/internal/history"
	"github.com/schemadrift/schemadrift/internal/ui"
	"github.com/schemadrift/schemadrift/internal/vcs"
)

var flagInitYes bool

var initCmd = &cobra.Command{
	Use:   "init [dir]",
	Short: "Initialize a mirror directory",
	Long: `Create the mirror directory layout:

  <dir>/schemas/       canonical schema files
  <dir>/.schemadrift/  lock, cache, and daemon state
  <dir>/.gitignore     excludes .schemadrift/

When history is enabled and git is available, the directory is also
initialized as a git repository.`,
	Args: cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := loadConfig()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		if len(args) == 1 {
			cfg.MirrorDir = args[0]
		}

		if err := confirmNonEmpty(cfg.MirrorDir); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		for _, dir := range []string{cfg.MirrorDir, cfg.SchemasDir(), cfg.StateDir()} {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				fmt.Fprintf(os.Stderr, "Error creating %s: %v\n", dir, err)
				os.Exit(1)
			}
		}

		gitignore := filepath.Join(cfg.MirrorDir, ".gitignore")
		if _, err := os.Stat(gitignore); os.IsNotExist(err) {
			if err := os.WriteFile(gitignore, []byte(config.StateSubdir+"/\n"), 0o644); err != nil {
				fmt.Fprintf(os.Stderr, "Error writing .gitignore: %v\n", err)
				os.Exit(1)
			}
		}

		if cfg.HistoryEnabled {
			if !vcs.Available() {
				fmt.Printf("%s git not found; history disabled for this mirror\n", ui.Warn("⚠"))
			} else {
				if _, err := vcs.Init(cmd.Context(), cfg.MirrorDir, history.CommitterName, history.CommitterEmail); err != nil {
					fmt.Fprintf(os.Stderr, "Error initializing git repository: %v\n", err)
					os.Exit(1)
				}
			}
		}

		fmt.Printf("%s Initialized mirror at %s\n", ui.Pass("✓"), cfg.MirrorDir)
		fmt.Printf("   Run 'sd sync --mirror-dir %s' to fetch schemas\n", cfg.MirrorDir)
	},
}

// confirmNonEmpty asks before initializing into a directory that already
// has contents. Non-interactive callers must pass --yes.
func confirmNonEmpty(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil || len(entries) == 0 {
		return nil
	}
	if flagInitYes {
		return nil
	}
	if !ui.Interactive() {
		return fmt.Errorf("%s is not empty; pass --yes to initialize anyway", dir)
	}

	var ok bool
	prompt := huh.NewConfirm().
		Title(fmt.Sprintf("%s is not empty. Initialize anyway?", dir)).
		Value(&ok)
	if err := prompt.Run(); err != nil {
		return fmt.Errorf("failed to read confirmation: %w", err)
	}
	if !ok {
		return fmt.Errorf("aborted")
	}
	return nil
}

func init() {
	initCmd.Flags().BoolVar(&flagInitYes, "yes", false, "skip the confirmation prompt")
	rootCmd.AddCommand(initCmd)
}
