// Package tagging provides canonical tag naming and write-once tag
// creation over a version-control store.
package tagging

import (
	"fmt"
	"strings"
	"time"

	"github.com/branchflow/branchflow/internal/domain/version"
)

// Kind classifies a tag by what it marks.
type Kind string

const (
	// KindRelease marks a final release tag (v1.2.3).
	KindRelease Kind = "release"
	// KindPrerelease marks an rc/dev-style prerelease tag.
	KindPrerelease Kind = "prerelease"
	// KindEnvironment marks an environment promotion tag.
	KindEnvironment Kind = "environment"
	// KindHotfix marks a hotfix release tag.
	KindHotfix Kind = "hotfix"
	// KindSupport marks a release on a support line.
	KindSupport Kind = "support"
)

// String returns the string representation of the kind.
func (k Kind) String() string {
	return string(k)
}

// IsValid returns true if the kind is recognized.
func (k Kind) IsValid() bool {
	switch k {
	case KindRelease, KindPrerelease, KindEnvironment, KindHotfix, KindSupport:
		return true
	default:
		return false
	}
}

// Tag is an immutable value describing a minted tag. Once created its
// name is never reassigned to a different commit.
type Tag struct {
	name           string
	version        version.SemanticVersion
	kind           Kind
	createdFromSHA string
}

// NewTag creates a Tag value.
func NewTag(name string, v version.SemanticVersion, kind Kind, sha string) Tag {
	return Tag{
		name:           name,
		version:        v,
		kind:           kind,
		createdFromSHA: sha,
	}
}

// Name returns the tag name.
func (t Tag) Name() string {
	return t.name
}

// Version returns the version the tag marks.
func (t Tag) Version() version.SemanticVersion {
	return t.version
}

// Kind returns the tag kind.
func (t Tag) Kind() Kind {
	return t.kind
}

// CreatedFromSHA returns the commit the tag points at.
func (t Tag) CreatedFromSHA() string {
	return t.createdFromSHA
}

// envTimestampLayout formats the timestamp segment of environment tags.
const envTimestampLayout = "20060102-150405"

// Name builds the canonical tag name for a version and kind.
//
//   - Release and hotfix tags: <prefix><major>.<minor>.<patch>
//   - Prerelease tags: <prefix><version> with the embedded -rc.N/-<branch>.N part
//   - Environment tags: <env>/<version>-<YYYYMMDD-HHMMSS>-<shortSha>
//   - Support tags: <service>-<prefix><version>, or <prefix><version> with
//     no service
//
// An empty prefix means the conventional "v". Environment tags never
// carry the prefix.
func Name(v version.SemanticVersion, kind Kind, opts NameOptions) string {
	prefix := opts.Prefix
	if prefix == "" {
		prefix = "v"
	}
	switch kind {
	case KindEnvironment:
		return fmt.Sprintf("%s/%s-%s-%s",
			opts.Environment,
			v.String(),
			opts.Timestamp.UTC().Format(envTimestampLayout),
			shortSHA(opts.SHA),
		)
	case KindSupport:
		if opts.Service != "" {
			return opts.Service + "-" + prefix + v.String()
		}
		return prefix + v.String()
	default:
		return prefix + v.String()
	}
}

// NameOptions carries the kind-specific inputs to tag naming.
type NameOptions struct {
	// Prefix is the configured release tag prefix; empty means "v".
	Prefix string
	// Environment is the promotion target, required for environment tags.
	Environment string
	// Service is the optional monorepo service prefix for support tags.
	Service string
	// SHA is the source commit, used in environment tag names.
	SHA string
	// Timestamp is the promotion time, used in environment tag names.
	Timestamp time.Time
}

func shortSHA(sha string) string {
	if len(sha) > 7 {
		return sha[:7]
	}
	return sha
}

// KindForVersion maps a computed version kind onto the tag kind its tag
// should carry. Dev versions have no tag kind; callers must reject them
// before naming.
func KindForVersion(k version.Kind) (Kind, bool) {
	switch k {
	case version.KindMajor, version.KindMinor, version.KindPatch:
		return KindRelease, true
	case version.KindReleaseCandidate, version.KindFeatureSnapshot:
		return KindPrerelease, true
	case version.KindHotfix:
		return KindHotfix, true
	default:
		return "", false
	}
}

// ParseKind parses a string into a tag Kind.
func ParseKind(s string) (Kind, error) {
	k := Kind(strings.ToLower(strings.TrimSpace(s)))
	if !k.IsValid() {
		return "", fmt.Errorf("invalid tag kind: %q", s)
	}
	return k, nil
}
