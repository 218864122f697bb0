// Package daemon runs recurring sync passes against the schema mirror.
//
// The daemon:
// 1. Runs a sync pass immediately, then on a fixed interval
// 2. Skips a tick when the previous pass is still running
// 3. Watches the schemas directory and warns about out-of-band edits
// 4. Handles graceful shutdown
package daemon

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/schemadrift/schemadrift/internal/schema"
)

// PassFunc executes one sync pass.
type PassFunc func(ctx context.Context) error

// Config holds configuration for the daemon.
type Config struct {
	// Interval is how often to run a sync pass.
	Interval time.Duration

	// DebounceInterval is how long to batch filesystem events before
	// reporting them.
	DebounceInterval time.Duration

	// Logger for daemon activity.
	Logger *log.Logger
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Interval:         time.Hour,
		DebounceInterval: 500 * time.Millisecond,
		Logger:           log.New(os.Stderr, "[daemon] ", log.LstdFlags),
	}
}

// Daemon orchestrates periodic sync passes and mirror watching.
type Daemon struct {
	pass       PassFunc
	schemasDir string
	config     *Config

	watcher   *fsnotify.Watcher
	pending   map[string]time.Time // filepath -> timestamp
	pendingMu sync.Mutex

	passRunning atomic.Bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a new Daemon instance.
//
// pass is invoked for each sync pass; schemasDir is the schema blob
// directory to watch for edits made outside the daemon.
//
// Use Start() to begin running passes.
func New(pass PassFunc, schemasDir string) (*Daemon, error) {
	return NewWithConfig(pass, schemasDir, DefaultConfig())
}

// NewWithConfig creates a daemon with custom configuration.
func NewWithConfig(pass PassFunc, schemasDir string, config *Config) (*Daemon, error) {
	if pass == nil {
		return nil, fmt.Errorf("pass cannot be nil")
	}
	if schemasDir == "" {
		return nil, fmt.Errorf("schemasDir cannot be empty")
	}
	if config == nil {
		config = DefaultConfig()
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Daemon{
		pass:       pass,
		schemasDir: schemasDir,
		config:     config,
		watcher:    watcher,
		pending:    make(map[string]time.Time),
		ctx:        ctx,
		cancel:     cancel,
	}, nil
}

// Start begins the daemon's operation.
//
// The daemon will:
// 1. Run an initial sync pass
// 2. Start watching the schemas directory
// 3. Run further passes on the configured interval
//
// This blocks until ctx is cancelled or an error occurs.
func (d *Daemon) Start(ctx context.Context) error {
	d.config.Logger.Printf("Starting daemon (interval %s)", d.config.Interval)

	d.runPass()

	if err := d.watcher.Add(d.schemasDir); err != nil {
		return fmt.Errorf("failed to watch schemas directory: %w", err)
	}
	d.config.Logger.Printf("Watching: %s", d.schemasDir)

	d.wg.Add(3)
	go d.runPassLoop()
	go d.watchFileEvents()
	go d.reportPendingEdits()

	select {
	case <-ctx.Done():
		d.config.Logger.Println("Shutdown signal received")
		return d.Stop()
	case <-d.ctx.Done():
		return nil
	}
}

// Stop gracefully shuts down the daemon.
func (d *Daemon) Stop() error {
	d.config.Logger.Println("Stopping daemon")

	d.cancel()

	if err := d.watcher.Close(); err != nil {
		d.config.Logger.Printf("Error closing watcher: %v", err)
	}

	d.wg.Wait()

	d.config.Logger.Println("Daemon stopped")
	return nil
}

// runPassLoop triggers a sync pass on every interval tick.
func (d *Daemon) runPassLoop() {
	defer d.wg.Done()

	ticker := time.NewTicker(d.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-d.ctx.Done():
			return

		case <-ticker.C:
			d.runPass()
		}
	}
}

// runPass executes one sync pass unless one is already in flight.
func (d *Daemon) runPass() {
	if !d.passRunning.CompareAndSwap(false, true) {
		d.config.Logger.Println("Previous pass still running, skipping")
		return
	}
	defer d.passRunning.Store(false)

	if err := d.pass(d.ctx); err != nil {
		d.config.Logger.Printf("Sync pass failed: %v", err)
	}
}

// watchFileEvents monitors filesystem events and queues them for reporting.
func (d *Daemon) watchFileEvents() {
	defer d.wg.Done()

	for {
		select {
		case <-d.ctx.Done():
			return

		case event, ok := <-d.watcher.Events:
			if !ok {
				return
			}

			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove) == 0 {
				continue
			}
			if filepath.Ext(event.Name) != schema.FileExt {
				continue
			}

			// A running pass writes the mirror itself; only edits made
			// while the daemon is idle are out-of-band.
			if d.passRunning.Load() {
				continue
			}

			d.queueEdit(event.Name)

		case err, ok := <-d.watcher.Errors:
			if !ok {
				return
			}
			d.config.Logger.Printf("Watcher error: %v", err)
		}
	}
}

// queueEdit adds a file to the pending edit queue with debouncing.
func (d *Daemon) queueEdit(path string) {
	d.pendingMu.Lock()
	defer d.pendingMu.Unlock()

	d.pending[path] = time.Now()
}

// reportPendingEdits periodically warns about queued out-of-band edits.
func (d *Daemon) reportPendingEdits() {
	defer d.wg.Done()

	ticker := time.NewTicker(d.config.DebounceInterval)
	defer ticker.Stop()

	for {
		select {
		case <-d.ctx.Done():
			return

		case <-ticker.C:
			d.reportReadyEdits()
		}
	}
}

// reportReadyEdits warns about files whose events have settled.
func (d *Daemon) reportReadyEdits() {
	d.pendingMu.Lock()
	defer d.pendingMu.Unlock()

	now := time.Now()
	for path, queuedAt := range d.pending {
		if now.Sub(queuedAt) < d.config.DebounceInterval {
			continue
		}

		d.config.Logger.Printf("Warning: out-of-band change to %s; next pass will overwrite it", filepath.Base(path))
		delete(d.pending, path)
	}
}
