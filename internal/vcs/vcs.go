// Package vcs wraps the git binary with the small command surface the
// history log needs: repository init and discovery, staging, commits, and
// per-path commit timelines.
//
// All commands run with the repository root as working directory. Output
// parsing lives in pure functions so it can be tested without the binary.
package vcs

import (
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

// Git drives a single local git repository.
type Git struct {
	// root is the repository root directory path
	root string
}

// Available reports whether the git binary can be found.
func Available() bool {
	_, err := exec.LookPath("git")
	return err == nil
}

// Open returns a Git for the repository containing path.
// Returns ErrNotInRepo if path is not inside a repository.
func Open(path string) (*Git, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve path: %w", err)
	}

	cmd := exec.Command("git", "rev-parse", "--show-toplevel")
	cmd.Dir = absPath

	output, err := cmd.Output()
	if err != nil {
		return nil, ErrNotInRepo
	}

	return &Git{root: strings.TrimSpace(string(output))}, nil
}

// Init creates a new repository at path with a local committer identity, so
// history commits work without global git configuration. Opening an already
// initialized repository is not an error.
func Init(ctx context.Context, path, userName, userEmail string) (*Git, error) {
	if !Available() {
		return nil, ErrGitNotAvailable
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve path: %w", err)
	}

	if g, err := Open(absPath); err == nil {
		if g.root == absPath {
			return g, nil
		}
	}

	g := &Git{root: absPath}
	if _, err := g.Exec(ctx, "init"); err != nil {
		return nil, fmt.Errorf("failed to init repository: %w", err)
	}
	if _, err := g.Exec(ctx, "config", "user.name", userName); err != nil {
		return nil, fmt.Errorf("failed to set committer name: %w", err)
	}
	if _, err := g.Exec(ctx, "config", "user.email", userEmail); err != nil {
		return nil, fmt.Errorf("failed to set committer email: %w", err)
	}

	return g, nil
}

// Root returns the repository root directory path.
func (g *Git) Root() string {
	return g.root
}

// Exec executes a raw git command in the repository.
func (g *Git) Exec(ctx context.Context, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = g.root

	output, err := cmd.CombinedOutput()
	if err != nil {
		return output, fmt.Errorf("git %s failed: %w\n%s",
			strings.Join(args, " "), err, string(output))
	}

	return output, nil
}

// HasChanges returns true if there are uncommitted changes.
// If paths are specified, only checks those paths.
func (g *Git) HasChanges(ctx context.Context, paths ...string) (bool, error) {
	args := []string{"status", "--porcelain"}
	args = append(args, paths...)

	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = g.root

	output, err := cmd.Output()
	if err != nil {
		return false, fmt.Errorf("git status failed: %w", err)
	}

	return len(strings.TrimSpace(string(output))) > 0, nil
}

// CommitAll stages everything and commits with the given message.
// Returns ErrNothingToCommit when the working tree is clean.
func (g *Git) CommitAll(ctx context.Context, message string) error {
	if message == "" {
		return fmt.Errorf("commit message is required")
	}

	if _, err := g.Exec(ctx, "add", "-A"); err != nil {
		return err
	}

	clean, err := g.stagedClean(ctx)
	if err != nil {
		return err
	}
	if clean {
		return ErrNothingToCommit
	}

	if _, err := g.Exec(ctx, "commit", "-m", message, "--no-gpg-sign"); err != nil {
		return err
	}

	return nil
}

// stagedClean reports whether the index matches HEAD.
func (g *Git) stagedClean(ctx context.Context) (bool, error) {
	cmd := exec.CommandContext(ctx, "git", "diff", "--cached", "--quiet")
	cmd.Dir = g.root

	err := cmd.Run()
	if err == nil {
		return true, nil
	}
	if exitErr, ok := err.(*exec.ExitError); ok && exitErr.ExitCode() == 1 {
		return false, nil
	}
	// "git diff --cached" fails against an unborn HEAD; treat staged files
	// as changes in that case.
	if staged, serr := g.hasStagedFiles(ctx); serr == nil {
		return !staged, nil
	}
	return false, fmt.Errorf("git diff --cached failed: %w", err)
}

// hasStagedFiles reports whether the index holds any entries at all.
func (g *Git) hasStagedFiles(ctx context.Context) (bool, error) {
	cmd := exec.CommandContext(ctx, "git", "ls-files", "--cached")
	cmd.Dir = g.root

	output, err := cmd.Output()
	if err != nil {
		return false, fmt.Errorf("git ls-files failed: %w", err)
	}
	return len(strings.TrimSpace(string(output))) > 0, nil
}

// LogEntry is one commit touching a path, as reported by the commit log.
type LogEntry struct {
	// Commit is the full commit hash.
	Commit string

	// Timestamp is the committer timestamp.
	Timestamp time.Time
}

// LogTimestamps returns the commits that touched relPath, oldest first.
// A path with no history returns an empty slice, not an error.
func (g *Git) LogTimestamps(ctx context.Context, relPath string) ([]LogEntry, error) {
	cmd := exec.CommandContext(ctx, "git", "log", "--format=%H|%cI", "--", relPath)
	cmd.Dir = g.root

	output, err := cmd.Output()
	if err != nil {
		// git log fails on an unborn HEAD; that is "no history". Any
		// other exit failure is a real error and must surface.
		if exitErr, ok := err.(*exec.ExitError); ok {
			if !g.hasCommits(ctx) {
				return nil, nil
			}
			return nil, fmt.Errorf("git log failed: %w\n%s", err, exitErr.Stderr)
		}
		return nil, fmt.Errorf("git log failed: %w", err)
	}

	return ParseLogTimestamps(output)
}

// hasCommits reports whether HEAD resolves to a commit.
func (g *Git) hasCommits(ctx context.Context) bool {
	cmd := exec.CommandContext(ctx, "git", "rev-parse", "--verify", "HEAD")
	cmd.Dir = g.root
	return cmd.Run() == nil
}

// ParseLogTimestamps parses `git log --format=%H|%cI` output (newest first)
// into entries ordered oldest first. Malformed lines are skipped.
func ParseLogTimestamps(output []byte) ([]LogEntry, error) {
	lines := strings.Split(strings.TrimSpace(string(output)), "\n")

	var entries []LogEntry
	for i := len(lines) - 1; i >= 0; i-- {
		line := strings.TrimSpace(lines[i])
		if line == "" {
			continue
		}

		hash, stamp, ok := strings.Cut(line, "|")
		if !ok {
			continue
		}

		ts, err := time.Parse(time.RFC3339, strings.TrimSpace(stamp))
		if err != nil {
			return nil, fmt.Errorf("failed to parse commit timestamp %q: %w", stamp, err)
		}

		entries = append(entries, LogEntry{Commit: strings.TrimSpace(hash), Timestamp: ts})
	}

	return entries, nil
}

// ShowFileAtRef returns the content of relPath at the given ref.
func (g *Git) ShowFileAtRef(ctx context.Context, ref, relPath string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, "git", "show", ref+":"+relPath)
	cmd.Dir = g.root

	output, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("failed to read %s at %s: %w", relPath, ref, err)
	}

	return output, nil
}
