// Command sd maintains a local versioned mirror of the CloudFormation
// public schema registry.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/schemadrift/schemadrift/internal/config"
)

var (
	flagConfig    string
	flagMirrorDir string
	flagRegion    string
)

var rootCmd = &cobra.Command{
	Use:   "sd",
	Short: "schemadrift - versioned mirror of CloudFormation resource schemas",
	Long: `schemadrift mirrors the public CloudFormation schema registry into a
local directory, one canonical JSON file per resource type, and keeps a
ledger of when each type was first seen, last updated, and removed.

Typical workflow:
  sd init ./cfn-schemas     initialize a mirror directory
  sd sync                   fetch schemas and update the ledger
  sd status                 show mirror summary
  sd versions --since "2 weeks ago"
  sd history AWS::S3::Bucket`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "config file (default schemadrift.yaml in mirror dir or cwd)")
	rootCmd.PersistentFlags().StringVar(&flagMirrorDir, "mirror-dir", "", "mirror directory (overrides config)")
	rootCmd.PersistentFlags().StringVar(&flagRegion, "region", "", "AWS region (overrides config)")
}

// loadConfig resolves configuration with flag overrides applied.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(flagConfig, flagMirrorDir)
	if err != nil {
		return nil, err
	}
	if flagRegion != "" {
		cfg.Region = flagRegion
	}
	return cfg, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
