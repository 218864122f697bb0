// Package history derives per-type change timelines from the mirror's git
// repository. One commit per pass that changed at least one blob is the
// entire write surface; everything else (latest change, change count, first
// appearance) is derived from the commit log on demand, never stored, so the
// timeline cannot diverge from the log.
package history

import (
	"context"
	"errors"
	"fmt"
	"path"
	"time"

	"github.com/schemadrift/schemadrift/internal/schema"
	"github.com/schemadrift/schemadrift/internal/vcs"
)

// Committer identity for history commits, set locally at repo init so the
// mirror works without global git configuration.
const (
	CommitterName  = "schemadrift"
	CommitterEmail = "schemadrift@localhost"
)

// Repo is the slice of git behavior the history log needs.
// *vcs.Git implements it.
type Repo interface {
	HasChanges(ctx context.Context, paths ...string) (bool, error)
	CommitAll(ctx context.Context, message string) error
	LogTimestamps(ctx context.Context, relPath string) ([]vcs.LogEntry, error)
}

// Entry is one recorded change for a type.
type Entry struct {
	// Commit is the commit hash that captured the change.
	Commit string

	// Timestamp is when the change was committed.
	Timestamp time.Time
}

// Log answers timeline queries over the mirror repository.
type Log struct {
	repo Repo

	// schemasDir is the blob directory relative to the repo root.
	schemasDir string
}

// New creates a history log over repo. schemasDir is the schema blob
// directory relative to the repository root (e.g. "schemas").
func New(repo Repo, schemasDir string) *Log {
	return &Log{repo: repo, schemasDir: schemasDir}
}

// CommitPass records a completed pass in the log. The commit happens only
// when the working tree actually changed; a pass that changed nothing leaves
// no log entry. Returns whether a commit was created.
func (l *Log) CommitPass(ctx context.Context, now time.Time) (bool, error) {
	changed, err := l.repo.HasChanges(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to check for changes: %w", err)
	}
	if !changed {
		return false, nil
	}

	msg := fmt.Sprintf("Schema update: %s", now.Format(time.RFC3339))
	if err := l.repo.CommitAll(ctx, msg); err != nil {
		if errors.Is(err, vcs.ErrNothingToCommit) {
			return false, nil
		}
		return false, fmt.Errorf("failed to commit pass: %w", err)
	}

	return true, nil
}

// Timeline returns the ordered change history for a type, oldest first.
// A type the log never saw yields an empty timeline, not an error, and
// repeated queries return identical results absent new commits.
func (l *Log) Timeline(ctx context.Context, typeName string) ([]Entry, error) {
	relPath := path.Join(l.schemasDir, schema.FileName(typeName))

	raw, err := l.repo.LogTimestamps(ctx, relPath)
	if err != nil {
		return nil, fmt.Errorf("failed to query history for %s: %w", typeName, err)
	}

	entries := make([]Entry, 0, len(raw))
	for _, e := range raw {
		entries = append(entries, Entry{Commit: e.Commit, Timestamp: e.Timestamp})
	}
	return entries, nil
}

// Latest returns the timestamp of the most recent change, or nil when the
// type has no history.
func (l *Log) Latest(ctx context.Context, typeName string) (*time.Time, error) {
	entries, err := l.Timeline(ctx, typeName)
	if err != nil || len(entries) == 0 {
		return nil, err
	}
	ts := entries[len(entries)-1].Timestamp
	return &ts, nil
}

// Count returns the number of recorded changes for the type.
func (l *Log) Count(ctx context.Context, typeName string) (int, error) {
	entries, err := l.Timeline(ctx, typeName)
	if err != nil {
		return 0, err
	}
	return len(entries), nil
}

// FirstSeen returns the timestamp of the earliest recorded change, or nil
// when the type has no history.
func (l *Log) FirstSeen(ctx context.Context, typeName string) (*time.Time, error) {
	entries, err := l.Timeline(ctx, typeName)
	if err != nil || len(entries) == 0 {
		return nil, err
	}
	ts := entries[0].Timestamp
	return &ts, nil
}
