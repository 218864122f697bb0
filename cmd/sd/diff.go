package main

import (
	"fmt"
	"os"
	"path"

	"github.com/pmezard/go-difflib/difflib"
	"github.com/spf13/cobra"

	"github.com/schemadrift/schemadrift/internal/config"
	"github.com/schemadrift/schemadrift/internal/schema"
	"github.com/schemadrift/schemadrift/internal/store"
	"github.com/schemadrift/schemadrift/internal/vcs"
)

var flagDiffRef string

var diffCmd = &cobra.Command{
	Use:   "diff <type-name>",
	Short: "Show what changed in a type's schema",
	Long: `Diff the current schema for a resource type against an earlier
revision from the mirror's git history.

By default the previous revision (HEAD~1) is used; --ref selects any
commit, for example one printed by 'sd history'.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		typeName := args[0]

		cfg, err := loadConfig()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		st, err := store.New(cfg.SchemasDir())
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		current, err := st.Read(typeName)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error reading current schema: %v\n", err)
			os.Exit(1)
		}

		repo, err := vcs.Open(cfg.MirrorDir)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: history unavailable: %v\n", err)
			os.Exit(1)
		}

		relPath := path.Join(config.SchemasSubdir, schema.FileName(typeName))
		previous, err := repo.ShowFileAtRef(cmd.Context(), flagDiffRef, relPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error reading %s at %s: %v\n", relPath, flagDiffRef, err)
			os.Exit(1)
		}

		diff := difflib.UnifiedDiff{
			A:        difflib.SplitLines(string(previous)),
			B:        difflib.SplitLines(string(current)),
			FromFile: flagDiffRef + ":" + relPath,
			ToFile:   relPath,
			Context:  3,
		}
		text, err := difflib.GetUnifiedDiffString(diff)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error computing diff: %v\n", err)
			os.Exit(1)
		}
		if text == "" {
			fmt.Printf("No changes to %s since %s\n", typeName, flagDiffRef)
			return
		}
		fmt.Print(text)
	},
}

func init() {
	diffCmd.Flags().StringVar(&flagDiffRef, "ref", "HEAD~1", "git revision to diff against")
	rootCmd.AddCommand(diffCmd)
}
