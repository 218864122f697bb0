package main

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/schemadrift/schemadrift/internal/cache"
	"github.com/schemadrift/schemadrift/internal/ledger"
	"github.com/schemadrift/schemadrift/internal/ui"
)

var (
	flagVersionsSince   string
	flagVersionsRemoved bool
	flagVersionsFormat  string
)

// versionRow is the output shape for one type, shared by all formats.
type versionRow struct {
	TypeName         string     `json:"type_name" yaml:"type_name"`
	FirstSeen        time.Time  `json:"first_seen" yaml:"first_seen"`
	LastUpdated      time.Time  `json:"last_updated" yaml:"last_updated"`
	TimeCreated      *time.Time `json:"time_created,omitempty" yaml:"time_created,omitempty"`
	DeprecatedStatus string     `json:"deprecation_status,omitempty" yaml:"deprecation_status,omitempty"`
	RemovedDate      *time.Time `json:"removed_date,omitempty" yaml:"removed_date,omitempty"`
}

var versionsCmd = &cobra.Command{
	Use:   "versions",
	Short: "List tracked type versions",
	Long: `List resource types from the version ledger.

By default all active types are listed, most recently updated first.
--since accepts RFC 3339, YYYY-MM-DD, or natural language ("2 weeks ago",
"last monday"). --removed lists removed types instead.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := loadConfig()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		var since time.Time
		if flagVersionsSince != "" {
			since, err = parseSince(flagVersionsSince, time.Now())
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
		}

		rows, err := collectVersions(cmd, cfg.CachePath(), cfg.MirrorDir, since)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		if err := renderVersions(rows); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	},
}

// parseSince turns a user-supplied time expression into a cutoff.
func parseSince(expr string, now time.Time) (time.Time, error) {
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, expr); err == nil {
			return t, nil
		}
	}

	w := when.New(nil)
	w.Add(en.All...)
	w.Add(common.All...)
	res, err := w.Parse(expr, now)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse --since %q: %w", expr, err)
	}
	if res == nil {
		return time.Time{}, fmt.Errorf("could not interpret --since %q", expr)
	}
	return res.Time, nil
}

// collectVersions reads from the query cache when it exists, otherwise
// directly from the ledger files.
func collectVersions(cmd *cobra.Command, cachePath, mirrorDir string, since time.Time) ([]versionRow, error) {
	if _, err := os.Stat(cachePath); err == nil {
		return collectFromCache(cmd, cachePath, since)
	}
	return collectFromLedger(mirrorDir, since)
}

func collectFromCache(cmd *cobra.Command, cachePath string, since time.Time) ([]versionRow, error) {
	c, err := cache.Open(cachePath)
	if err != nil {
		return nil, err
	}
	defer c.Close()

	var rows []versionRow
	if flagVersionsRemoved {
		removed, err := c.ListRemoved(cmd.Context())
		if err != nil {
			return nil, err
		}
		for _, r := range removed {
			if !since.IsZero() && r.RemovedDate.Before(since) {
				continue
			}
			rd := r.RemovedDate
			rows = append(rows, versionRow{
				TypeName:         r.TypeName,
				FirstSeen:        r.FirstSeen,
				LastUpdated:      r.LastUpdated,
				TimeCreated:      r.TimeCreated,
				DeprecatedStatus: r.DeprecatedStatus,
				RemovedDate:      &rd,
			})
		}
		return rows, nil
	}

	active, err := c.ListSince(cmd.Context(), since)
	if err != nil {
		return nil, err
	}
	for _, r := range active {
		rows = append(rows, versionRow{
			TypeName:         r.TypeName,
			FirstSeen:        r.FirstSeen,
			LastUpdated:      r.LastUpdated,
			TimeCreated:      r.TimeCreated,
			DeprecatedStatus: r.DeprecatedStatus,
		})
	}
	return rows, nil
}

func collectFromLedger(mirrorDir string, since time.Time) ([]versionRow, error) {
	led, err := ledger.Open(mirrorDir, ledger.PolicyAlways)
	if err != nil {
		return nil, err
	}

	var rows []versionRow
	if flagVersionsRemoved {
		for name, rec := range led.Removed() {
			if !since.IsZero() && rec.RemovedDate.Before(since) {
				continue
			}
			rd := rec.RemovedDate
			rows = append(rows, versionRow{
				TypeName:         name,
				FirstSeen:        rec.FirstSeen,
				LastUpdated:      rec.LastUpdated,
				TimeCreated:      rec.TimeCreated,
				DeprecatedStatus: rec.DeprecatedStatus,
				RemovedDate:      &rd,
			})
		}
	} else {
		for name, rec := range led.Versions() {
			if !since.IsZero() && rec.LastUpdated.Before(since) {
				continue
			}
			rows = append(rows, versionRow{
				TypeName:         name,
				FirstSeen:        rec.FirstSeen,
				LastUpdated:      rec.LastUpdated,
				TimeCreated:      rec.TimeCreated,
				DeprecatedStatus: rec.DeprecatedStatus,
			})
		}
	}

	// Match the cache ordering: newest activity first, name as tiebreak.
	sort.Slice(rows, func(i, j int) bool {
		if !rows[i].LastUpdated.Equal(rows[j].LastUpdated) {
			return rows[i].LastUpdated.After(rows[j].LastUpdated)
		}
		return rows[i].TypeName < rows[j].TypeName
	})
	return rows, nil
}

func renderVersions(rows []versionRow) error {
	switch flagVersionsFormat {
	case "json":
		out, err := json.MarshalIndent(rows, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal versions: %w", err)
		}
		fmt.Println(string(out))

	case "yaml":
		out, err := yaml.Marshal(rows)
		if err != nil {
			return fmt.Errorf("failed to marshal versions: %w", err)
		}
		fmt.Print(string(out))

	case "table":
		if len(rows) == 0 {
			fmt.Println("No matching types")
			return nil
		}
		for _, r := range rows {
			line := fmt.Sprintf("%-55s updated %s", r.TypeName, r.LastUpdated.Format("2006-01-02"))
			if r.RemovedDate != nil {
				line += fmt.Sprintf("  removed %s", r.RemovedDate.Format("2006-01-02"))
			}
			if r.DeprecatedStatus != "" && r.DeprecatedStatus != "LIVE" {
				line += "  " + ui.Warn(r.DeprecatedStatus)
			}
			fmt.Println(line)
		}
		fmt.Printf("\n%d types\n", len(rows))

	default:
		return fmt.Errorf("unknown format %q (want table, json, or yaml)", flagVersionsFormat)
	}
	return nil
}

func init() {
	versionsCmd.Flags().StringVar(&flagVersionsSince, "since", "", "only types updated at or after this time")
	versionsCmd.Flags().BoolVar(&flagVersionsRemoved, "removed", false, "list removed types instead of active ones")
	versionsCmd.Flags().StringVar(&flagVersionsFormat, "format", "table", "output format: table, json, or yaml")
	rootCmd.AddCommand(versionsCmd)
}
