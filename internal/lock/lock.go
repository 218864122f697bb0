// Package lock enforces the single-writer model: at most one sync pass (or
// daemon) may operate on a mirror at a time. The lock is a pid file created
// exclusively under the mirror's state directory; locks from dead or ancient
// processes are taken over.
package lock

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"syscall"
	"time"
)

// FileName is the lock file name inside the state directory.
const FileName = "sync.lock"

// DefaultTTL is how old a lock may grow before it is presumed stale even
// when its process cannot be probed.
const DefaultTTL = 2 * time.Hour

// ErrLocked is returned when another live process holds the lock.
var ErrLocked = errors.New("mirror is locked by another process")

// info is the lock file payload, written for operator visibility.
type info struct {
	PID        int       `json:"pid"`
	AcquiredAt time.Time `json:"acquired_at"`
	Hostname   string    `json:"hostname,omitempty"`
}

// Lock is a held mirror lock. Release it when the pass finishes.
type Lock struct {
	path string
}

// Acquire takes the mirror lock in stateDir, creating the directory if
// needed. A lock held by a dead process, or older than ttl (DefaultTTL when
// zero), is removed and re-acquired. Returns ErrLocked (wrapped with the
// holder's pid) when a live process holds it.
func Acquire(stateDir string, ttl time.Duration) (*Lock, error) {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if err := os.MkdirAll(stateDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create state directory: %w", err)
	}

	path := filepath.Join(stateDir, FileName)

	for attempt := 0; attempt < 2; attempt++ {
		lk, err := tryCreate(path)
		if err == nil {
			return lk, nil
		}
		if !os.IsExist(err) {
			return nil, fmt.Errorf("failed to create lock file: %w", err)
		}

		holder, stale := readHolder(path, ttl)
		if !stale {
			return nil, fmt.Errorf("%w (pid %d)", ErrLocked, holder)
		}

		// Stale: remove and retry once. A racing acquirer may win the
		// retry, which then reports ErrLocked normally.
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to remove stale lock: %w", err)
		}
	}

	return nil, ErrLocked
}

// tryCreate creates the lock file exclusively and writes the holder info.
func tryCreate(path string) (*Lock, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
	if err != nil {
		return nil, err
	}

	hostname, _ := os.Hostname()
	payload, _ := json.Marshal(info{
		PID:        os.Getpid(),
		AcquiredAt: time.Now().UTC(),
		Hostname:   hostname,
	})

	if _, err := f.Write(payload); err != nil {
		f.Close()
		os.Remove(path)
		return nil, err
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return nil, err
	}

	return &Lock{path: path}, nil
}

// readHolder inspects an existing lock file and decides whether it is stale.
// Unreadable or malformed lock files are treated as stale.
func readHolder(path string, ttl time.Duration) (pid int, stale bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, true
	}

	var li info
	if err := json.Unmarshal(data, &li); err != nil || li.PID <= 0 {
		return 0, true
	}

	if time.Since(li.AcquiredAt) > ttl {
		return li.PID, true
	}

	return li.PID, !processAlive(li.PID)
}

// processAlive probes a pid with signal 0.
func processAlive(pid int) bool {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	// On Unix FindProcess always succeeds; signal 0 does the real probe.
	return proc.Signal(syscall.Signal(0)) == nil
}

// Release removes the lock file. Safe to call once per acquired lock.
func (l *Lock) Release() error {
	if err := os.Remove(l.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to release lock: %w", err)
	}
	return nil
}
