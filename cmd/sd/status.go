package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/schemadrift/schemadrift/internal/ledger"
	"github.com/schemadrift/schemadrift/internal/store"
	"github.com/schemadrift/schemadrift/internal/ui"
	"github.com/schemadrift/schemadrift/internal/vcs"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show mirror status",
	Long: `Display a summary of the local schema mirror.

Shows:
  - Mirror location and schema file count
  - Active and removed type counts from the ledger
  - Git history and query cache state`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := loadConfig()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		if _, err := os.Stat(cfg.MirrorDir); os.IsNotExist(err) {
			fmt.Printf("\n%s Mirror not initialized at %s\n", ui.Warn("⚠"), cfg.MirrorDir)
			fmt.Printf("   Run 'sd init %s' to create it\n\n", cfg.MirrorDir)
			return
		}

		led, err := ledger.Open(cfg.MirrorDir, ledger.PolicyAlways)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error opening ledger: %v\n", err)
			os.Exit(1)
		}
		active, removed := led.Counts()

		var files int
		if st, err := store.New(cfg.SchemasDir()); err == nil {
			if names, err := st.List(); err == nil {
				files = len(names)
			}
		}

		fmt.Printf("\n%s %s\n", ui.Accent("Mirror:"), cfg.MirrorDir)
		fmt.Printf("   Schema files:  %d\n", files)
		fmt.Printf("   Active types:  %d\n", active)
		fmt.Printf("   Removed types: %d\n", removed)

		if repo, err := vcs.Open(cfg.MirrorDir); err == nil {
			fmt.Printf("   History:       git repository at %s\n", repo.Root())
		} else {
			fmt.Printf("   History:       %s\n", ui.Dim("not enabled (no git repository)"))
		}

		if info, err := os.Stat(cfg.CachePath()); err == nil {
			fmt.Printf("   Query cache:   %s (%d bytes)\n", cfg.CachePath(), info.Size())
		} else {
			fmt.Printf("   Query cache:   %s\n", ui.Dim("not built (run 'sd sync')"))
		}
		fmt.Println()
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
