// Package config loads schemadrift configuration from file, environment,
// and defaults via viper.
//
// Precedence, highest first: explicit flags (applied by the command layer),
// environment (SCHEMADRIFT_*), config file (schemadrift.yaml in the mirror
// directory or the working directory), built-in defaults.
package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Mirror layout relative to the mirror root.
const (
	// SchemasSubdir holds one canonical blob per resource type.
	SchemasSubdir = "schemas"

	// StateSubdir holds derived and operational state (lock, cache,
	// daemon log). It is ignored by the history repository.
	StateSubdir = ".schemadrift"
)

// Config is the resolved configuration for one invocation.
type Config struct {
	// MirrorDir is the mirror root; ledger files live directly in it.
	MirrorDir string

	// Region is the AWS region for the registry client. Empty defers to
	// the SDK's own resolution.
	Region string

	// Concurrency bounds the fetch worker pool.
	Concurrency int

	// FetchTimeout caps a single type's fetch.
	FetchTimeout time.Duration

	// MetadataPolicy is "always" or "on-change".
	MetadataPolicy string

	// HistoryEnabled turns on the git-backed history log.
	HistoryEnabled bool

	// DaemonInterval is the time between daemon passes.
	DaemonInterval time.Duration

	// DaemonLogFile, when set, routes daemon logs to a rotated file
	// instead of stderr.
	DaemonLogFile string
}

// Load resolves configuration. configFile, when non-empty, names an
// explicit config file; otherwise schemadrift.yaml is searched in mirrorDir
// and the working directory. mirrorDir, when non-empty, overrides the
// configured mirror directory (it comes from a flag).
func Load(configFile, mirrorDir string) (*Config, error) {
	v := viper.New()

	v.SetDefault("mirror.dir", "./cfn-schemas")
	v.SetDefault("aws.region", "")
	v.SetDefault("sync.concurrency", 8)
	v.SetDefault("sync.fetch_timeout", 30*time.Second)
	v.SetDefault("ledger.metadata_policy", "always")
	v.SetDefault("history.enabled", true)
	v.SetDefault("daemon.interval", time.Hour)
	v.SetDefault("daemon.log_file", "")

	v.SetEnvPrefix("SCHEMADRIFT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("schemadrift")
		v.SetConfigType("yaml")
		if mirrorDir != "" {
			v.AddConfigPath(mirrorDir)
		}
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	cfg := &Config{
		MirrorDir:      v.GetString("mirror.dir"),
		Region:         v.GetString("aws.region"),
		Concurrency:    v.GetInt("sync.concurrency"),
		FetchTimeout:   v.GetDuration("sync.fetch_timeout"),
		MetadataPolicy: v.GetString("ledger.metadata_policy"),
		HistoryEnabled: v.GetBool("history.enabled"),
		DaemonInterval: v.GetDuration("daemon.interval"),
		DaemonLogFile:  v.GetString("daemon.log_file"),
	}

	if mirrorDir != "" {
		cfg.MirrorDir = mirrorDir
	}

	return cfg, nil
}

// SchemasDir returns the schema blob directory.
func (c *Config) SchemasDir() string {
	return filepath.Join(c.MirrorDir, SchemasSubdir)
}

// StateDir returns the operational state directory.
func (c *Config) StateDir() string {
	return filepath.Join(c.MirrorDir, StateSubdir)
}

// CachePath returns the SQLite cache path.
func (c *Config) CachePath() string {
	return filepath.Join(c.StateDir(), "cache.db")
}
