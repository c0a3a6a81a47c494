package version

import (
	"fmt"
	"strings"
)

// Kind classifies a computed version by what produced it.
type Kind string

const (
	// KindMajor is a breaking-change release on main.
	KindMajor Kind = "major"
	// KindMinor is a feature release on main.
	KindMinor Kind = "minor"
	// KindPatch is a fix release on main.
	KindPatch Kind = "patch"
	// KindReleaseCandidate is an rc prerelease cut on a release branch.
	KindReleaseCandidate Kind = "rc"
	// KindDev is an ephemeral develop-branch build identifier. Dev
	// versions are never minted as tags.
	KindDev Kind = "dev"
	// KindHotfix is a hotfix release cut from main.
	KindHotfix Kind = "hotfix"
	// KindFeatureSnapshot is an ad-hoc snapshot from a feature branch.
	KindFeatureSnapshot Kind = "feature-snapshot"
)

// String returns the string representation of the kind.
func (k Kind) String() string {
	return string(k)
}

// IsValid returns true if the kind is recognized.
func (k Kind) IsValid() bool {
	switch k {
	case KindMajor, KindMinor, KindPatch, KindReleaseCandidate, KindDev,
		KindHotfix, KindFeatureSnapshot:
		return true
	default:
		return false
	}
}

// Taggable returns true if versions of this kind may be minted as tags.
// Dev versions are ephemeral build identifiers and are never tagged.
func (k Kind) Taggable() bool {
	return k != KindDev
}

// ParseKind parses a string into a Kind.
func ParseKind(s string) (Kind, error) {
	k := Kind(strings.ToLower(strings.TrimSpace(s)))
	if !k.IsValid() {
		return "", fmt.Errorf("invalid version kind: %q", s)
	}
	return k, nil
}
