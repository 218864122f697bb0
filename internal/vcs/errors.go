package vcs

import "errors"

// Common errors returned by git operations. Check with errors.Is:
//
//	if errors.Is(err, vcs.ErrNotInRepo) {
//	    // mirror has no history repository yet
//	}
var (
	// ErrNotInRepo is returned when the directory is not inside a git
	// repository.
	ErrNotInRepo = errors.New("not in a git repository")

	// ErrGitNotAvailable is returned when the git binary is not installed
	// or not in PATH.
	ErrGitNotAvailable = errors.New("git binary not available")

	// ErrNothingToCommit is returned when a commit is requested but the
	// working tree has no changes.
	ErrNothingToCommit = errors.New("nothing to commit")
)
