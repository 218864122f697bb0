package vcs

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// initTestRepo creates a fresh repository, skipping when git is missing.
func initTestRepo(t *testing.T) *Git {
	t.Helper()

	if !Available() {
		t.Skip("git not installed")
	}
	g, err := Init(context.Background(), t.TempDir(), "tester", "tester@localhost")
	if err != nil {
		t.Fatalf("failed to init repository: %v", err)
	}
	return g
}

func TestLogTimestampsUnbornHeadIsEmpty(t *testing.T) {
	g := initTestRepo(t)

	entries, err := g.LogTimestamps(context.Background(), "schemas/AWS--S3--Bucket.json")
	if err != nil {
		t.Fatalf("LogTimestamps on empty repository: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("got %d entries from empty repository, want 0", len(entries))
	}
}

func TestCommitAndLogRoundTrip(t *testing.T) {
	g := initTestRepo(t)
	ctx := context.Background()
	rel := "a.json"

	dirty, err := g.HasChanges(ctx)
	if err != nil {
		t.Fatalf("HasChanges: %v", err)
	}
	if dirty {
		t.Fatal("fresh repository reported changes")
	}

	if err := os.WriteFile(filepath.Join(g.Root(), rel), []byte("{}\n"), 0o644); err != nil {
		t.Fatalf("failed to write file: %v", err)
	}

	dirty, err = g.HasChanges(ctx)
	if err != nil {
		t.Fatalf("HasChanges: %v", err)
	}
	if !dirty {
		t.Fatal("new file not reported as a change")
	}

	if err := g.CommitAll(ctx, "first"); err != nil {
		t.Fatalf("CommitAll: %v", err)
	}
	if err := g.CommitAll(ctx, "noop"); err != ErrNothingToCommit {
		t.Fatalf("clean-tree commit: got %v, want ErrNothingToCommit", err)
	}

	entries, err := g.LogTimestamps(ctx, rel)
	if err != nil {
		t.Fatalf("LogTimestamps: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("got %d entries, want 1", len(entries))
	}

	// A path the log never saw is empty, not an error, once HEAD exists.
	entries, err = g.LogTimestamps(ctx, "never-committed.json")
	if err != nil {
		t.Fatalf("LogTimestamps for unknown path: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("got %d entries for unknown path, want 0", len(entries))
	}
}

func TestParseLogTimestampsOrdersOldestFirst(t *testing.T) {
	// git log emits newest first.
	output := []byte(
		"bbb2222222222222222222222222222222222222|2026-02-10T12:00:00+00:00\n" +
			"aaa1111111111111111111111111111111111111|2026-01-10T12:00:00+00:00\n")

	entries, err := ParseLogTimestamps(output)
	if err != nil {
		t.Fatalf("ParseLogTimestamps failed: %v", err)
	}

	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2", len(entries))
	}
	if entries[0].Commit != "aaa1111111111111111111111111111111111111" {
		t.Errorf("entries not oldest-first: %v", entries)
	}
	if !entries[0].Timestamp.Before(entries[1].Timestamp) {
		t.Errorf("timestamps out of order: %v then %v", entries[0].Timestamp, entries[1].Timestamp)
	}

	want := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)
	if !entries[0].Timestamp.Equal(want) {
		t.Errorf("timestamp = %v, want %v", entries[0].Timestamp, want)
	}
}

func TestParseLogTimestampsEmptyOutput(t *testing.T) {
	entries, err := ParseLogTimestamps(nil)
	if err != nil {
		t.Fatalf("ParseLogTimestamps failed: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("got %d entries for empty output, want 0", len(entries))
	}

	entries, err = ParseLogTimestamps([]byte("\n\n"))
	if err != nil {
		t.Fatalf("ParseLogTimestamps failed on blank lines: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("got %d entries for blank output, want 0", len(entries))
	}
}

func TestParseLogTimestampsSkipsMalformedLines(t *testing.T) {
	output := []byte(
		"not-a-log-line\n" +
			"ccc3333333333333333333333333333333333333|2026-03-10T12:00:00Z\n")

	entries, err := ParseLogTimestamps(output)
	if err != nil {
		t.Fatalf("ParseLogTimestamps failed: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("got %d entries, want 1", len(entries))
	}
	if entries[0].Commit != "ccc3333333333333333333333333333333333333" {
		t.Errorf("unexpected entry: %+v", entries[0])
	}
}

func TestParseLogTimestampsRejectsBadTimestamp(t *testing.T) {
	output := []byte("ddd4444444444444444444444444444444444444|last tuesday\n")
	if _, err := ParseLogTimestamps(output); err == nil {
		t.Error("expected error for unparseable timestamp")
	}
}
