package version

import "errors"

// Sentinel errors for version calculation. Both are recoverable for the
// caller: they abort the triggering action, not the orchestrator.
var (
	// ErrInvalidBranchVersion indicates a branch-encoded version string
	// is malformed or inconsistent with the latest tag.
	ErrInvalidBranchVersion = errors.New("invalid branch version")

	// ErrMissingBaseVersion indicates no tag and no branch version exist
	// where one is required.
	ErrMissingBaseVersion = errors.New("missing base version")
)
