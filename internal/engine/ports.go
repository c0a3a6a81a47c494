// Package engine orchestrates release workflows: it assembles repository
// snapshots, asks the lifecycle manager for a decision, and executes the
// resulting actions through adapter ports.
package engine

import (
	"context"

	"github.com/branchflow/branchflow/internal/domain/changes"
)

// VCS is the port to the version control adapter. Implementations talk
// to a local or remote git repository.
type VCS interface {
	// Tags returns all existing tags as name to commit sha.
	Tags(ctx context.Context) (map[string]string, error)
	// Head returns the tip commit of a branch.
	Head(ctx context.Context, branch string) (string, error)
	// BranchExists reports whether a branch exists.
	BranchExists(ctx context.Context, name string) (bool, error)
	// Branches returns all branch names.
	Branches(ctx context.Context) ([]string, error)
	// CommitsSince returns the commits on ref after the given tag,
	// oldest first. An empty tag means the full history of ref.
	CommitsSince(ctx context.Context, ref, tag string) ([]changes.Commit, error)
	// CreateBranch creates a branch at the given ref.
	CreateBranch(ctx context.Context, name, fromRef string) error
	// DeleteBranch deletes a branch.
	DeleteBranch(ctx context.Context, name string) error
	// MergeBranch merges source into target.
	MergeBranch(ctx context.Context, source, target string) error
	// CherryPick applies a commit onto a branch.
	CherryPick(ctx context.Context, sha, onto string) error
}

// PullRequests is the port to the code review adapter.
type PullRequests interface {
	// OpenPullRequest opens a PR and returns its URL.
	OpenPullRequest(ctx context.Context, source, target, title, body string) (string, error)
}

// GateResult is the outcome of a quality gate run.
type GateResult struct {
	Passed bool
	Reason string
}

// QualityGate is the port to the release gate. It runs before a release
// branch is allowed to finish into main.
type QualityGate interface {
	Run(ctx context.Context, branch string) (GateResult, error)
}

// LockManager serializes concurrent runs against the same branch scope.
// Acquire blocks until the lock is held or the context is done; the
// returned function releases it.
type LockManager interface {
	Acquire(ctx context.Context, key string) (func() error, error)
}

// Metrics receives engine-level counters. A nil Metrics is valid and
// records nothing.
type Metrics interface {
	TriggerHandled(kind, outcome string)
	ActionExecuted(kind string)
	RetryAttempted(op string)
}
