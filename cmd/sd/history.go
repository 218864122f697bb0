package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/schemadrift/schemadrift/internal/ui"
)

var historyCmd = &cobra.Command{
	Use:   "history <type-name>",
	Short: "Show the change timeline for one type",
	Long: `Show every recorded change to a resource type's schema, oldest first.

The timeline comes from the mirror's git history; each entry is one sync
pass in which the schema changed. Requires history to be enabled.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		typeName := args[0]

		cfg, err := loadConfig()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		hist, err := openHistory(cfg)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: history unavailable: %v\n", err)
			os.Exit(1)
		}

		entries, err := hist.Timeline(cmd.Context(), typeName)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		if len(entries) == 0 {
			fmt.Printf("No recorded history for %s\n", typeName)
			return
		}

		fmt.Printf("\n%s %s\n", ui.Accent("History:"), typeName)
		for i, e := range entries {
			label := "updated"
			if i == 0 {
				label = "first seen"
			}
			fmt.Printf("   %s  %-10s %s\n", e.Timestamp.Format(time.RFC3339), label, ui.Dim(shortCommit(e.Commit)))
		}
		fmt.Printf("\n%d changes\n", len(entries))
	},
}

func shortCommit(commit string) string {
	if len(commit) > 8 {
		return commit[:8]
	}
	return commit
}

func init() {
	rootCmd.AddCommand(historyCmd)
}
