package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/schemadrift/schemadrift/internal/daemon"
)

var (
	flagDaemonInterval time.Duration
	flagDaemonLogFile  string
)

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Run sync passes on an interval",
	Long: `Run schemadrift as a long-lived process.

The daemon runs a sync pass immediately and then on a fixed interval,
holds the sync lock for its lifetime, and warns when mirror files are
edited outside of it. Stop it with SIGINT or SIGTERM.

With --log-file, daemon output goes to a size-rotated log file instead
of stderr.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := loadConfig()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		if flagDaemonInterval > 0 {
			cfg.DaemonInterval = flagDaemonInterval
		}
		if flagDaemonLogFile != "" {
			cfg.DaemonLogFile = flagDaemonLogFile
		}

		lk, err := acquireLock(cfg)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer lk.Release()

		logger := log.New(os.Stderr, "[daemon] ", log.LstdFlags)
		if cfg.DaemonLogFile != "" {
			logger.SetOutput(&lumberjack.Logger{
				Filename:   cfg.DaemonLogFile,
				MaxSize:    10, // megabytes
				MaxBackups: 3,
				MaxAge:     28, // days
			})
		}

		r, err := buildRunner(cfg, true)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		r.Logger = logger

		if err := os.MkdirAll(cfg.SchemasDir(), 0o755); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		pass := func(ctx context.Context) error {
			if _, err := r.Run(ctx); err != nil {
				return err
			}
			return refreshCache(ctx, cfg, r.Ledger)
		}

		dcfg := daemon.DefaultConfig()
		dcfg.Interval = cfg.DaemonInterval
		dcfg.Logger = logger

		d, err := daemon.NewWithConfig(pass, cfg.SchemasDir(), dcfg)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		fmt.Printf("Daemon running against %s (interval %s)\n", cfg.MirrorDir, cfg.DaemonInterval)
		if err := d.Start(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	},
}

func init() {
	daemonCmd.Flags().DurationVar(&flagDaemonInterval, "interval", 0, "time between passes (overrides config)")
	daemonCmd.Flags().StringVar(&flagDaemonLogFile, "log-file", "", "rotated log file (overrides config)")
	rootCmd.AddCommand(daemonCmd)
}
