package branch

import (
	"strings"
	"time"
)

// Branch is an entity describing a branch known to the lifecycle manager.
type Branch struct {
	name      string
	role      Role
	baseRef   string
	createdAt time.Time
	metadata  Metadata
}

// Metadata carries role-specific branch attributes. Only support branches
// populate the version line and support window.
type Metadata struct {
	// VersionLine is the release line a support branch tracks (e.g. "1.x").
	VersionLine string
	// SupportUntil is the end of the support window for a support branch.
	SupportUntil time.Time
}

// New creates a new Branch entity.
func New(name string, role Role, baseRef string, createdAt time.Time) Branch {
	return Branch{
		name:      name,
		role:      role,
		baseRef:   baseRef,
		createdAt: createdAt,
	}
}

// NewSupport creates a support branch with its version line and window.
func NewSupport(name, baseRef string, createdAt time.Time, versionLine string, supportUntil time.Time) Branch {
	return Branch{
		name:      name,
		role:      RoleSupport,
		baseRef:   baseRef,
		createdAt: createdAt,
		metadata: Metadata{
			VersionLine:  versionLine,
			SupportUntil: supportUntil,
		},
	}
}

// Name returns the branch name.
func (b Branch) Name() string {
	return b.name
}

// Role returns the branch role.
func (b Branch) Role() Role {
	return b.role
}

// BaseRef returns the ref the branch was created from.
func (b Branch) BaseRef() string {
	return b.baseRef
}

// CreatedAt returns the branch creation time.
func (b Branch) CreatedAt() time.Time {
	return b.createdAt
}

// Metadata returns the role-specific metadata.
func (b Branch) Metadata() Metadata {
	return b.metadata
}

// SupportExpired returns true for a support branch whose window has passed.
func (b Branch) SupportExpired(now time.Time) bool {
	return b.role == RoleSupport &&
		!b.metadata.SupportUntil.IsZero() &&
		now.After(b.metadata.SupportUntil)
}

// EmbeddedVersion extracts the version string a release or hotfix branch
// encodes in its name, e.g. "release/2.0.0" yields "2.0.0". Returns an
// empty string when the name carries no version segment.
func EmbeddedVersion(name string) string {
	if i := strings.LastIndexByte(name, '/'); i >= 0 {
		return name[i+1:]
	}
	return ""
}
