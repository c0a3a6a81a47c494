// Package version provides domain types for semantic versioning and
// next-version calculation.
package version

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// SemanticVersion is a value object representing a semantic version.
// Immutable by design - all operations return new instances.
type SemanticVersion struct {
	major      uint64
	minor      uint64
	patch      uint64
	prerelease Prerelease
	metadata   BuildMetadata
}

// BuildMetadata represents the build metadata portion of a semantic version.
type BuildMetadata string

// Prerelease represents the prerelease portion of a semantic version as a
// label plus an optional trailing numeric component. "rc.2" has label "rc"
// and number 2; "dev.20250301.7" has label "dev.20250301" and number 7.
type Prerelease struct {
	label    string
	number   uint64
	numbered bool
}

// NewPrerelease creates a numbered prerelease identifier.
func NewPrerelease(label string, number uint64) Prerelease {
	return Prerelease{label: label, number: number, numbered: true}
}

// ParsePrerelease splits a raw prerelease string into label and trailing
// number. A suffix after the last dot that is all digits becomes the number.
func ParsePrerelease(raw string) Prerelease {
	if raw == "" {
		return Prerelease{}
	}
	if i := strings.LastIndexByte(raw, '.'); i > 0 {
		if n, err := strconv.ParseUint(raw[i+1:], 10, 64); err == nil {
			return Prerelease{label: raw[:i], number: n, numbered: true}
		}
	}
	return Prerelease{label: raw}
}

// IsZero returns true if no prerelease is set.
func (p Prerelease) IsZero() bool {
	return p.label == "" && !p.numbered
}

// Label returns the prerelease label.
func (p Prerelease) Label() string {
	return p.label
}

// Number returns the trailing numeric component and whether one is present.
func (p Prerelease) Number() (uint64, bool) {
	return p.number, p.numbered
}

// String renders the prerelease as it appears after the hyphen.
func (p Prerelease) String() string {
	if p.IsZero() {
		return ""
	}
	if p.numbered {
		return p.label + "." + strconv.FormatUint(p.number, 10)
	}
	return p.label
}

// Compare orders prereleases by label (lexicographic) then number (numeric).
// An un-numbered prerelease sorts before a numbered one with the same label.
func (p Prerelease) Compare(other Prerelease) int {
	if p.label != other.label {
		if p.label < other.label {
			return -1
		}
		return 1
	}
	if p.numbered != other.numbered {
		if !p.numbered {
			return -1
		}
		return 1
	}
	if p.number != other.number {
		if p.number < other.number {
			return -1
		}
		return 1
	}
	return 0
}

var (
	// semverRegex validates semantic version strings.
	semverRegex = regexp.MustCompile(`^v?(\d+)\.(\d+)\.(\d+)(?:-([0-9A-Za-z-]+(?:\.[0-9A-Za-z-]+)*))?(?:\+([0-9A-Za-z-]+(?:\.[0-9A-Za-z-]+)*))?$`)

	// Zero is the zero version (0.0.0). Used as the implicit latest tag
	// for repositories that have never been released.
	Zero = SemanticVersion{}
)

// New creates a new SemanticVersion value object.
func New(major, minor, patch uint64) SemanticVersion {
	return SemanticVersion{
		major: major,
		minor: minor,
		patch: patch,
	}
}

// Parse parses a semantic version string into a SemanticVersion value object.
// A leading "v" is accepted. Returns an error if the string is not a valid
// semantic version.
func Parse(s string) (SemanticVersion, error) {
	matches := semverRegex.FindStringSubmatch(s)
	if matches == nil {
		return Zero, fmt.Errorf("invalid semantic version: %q", s)
	}

	major, err := strconv.ParseUint(matches[1], 10, 64)
	if err != nil {
		return Zero, fmt.Errorf("invalid major version: %w", err)
	}

	minor, err := strconv.ParseUint(matches[2], 10, 64)
	if err != nil {
		return Zero, fmt.Errorf("invalid minor version: %w", err)
	}

	patch, err := strconv.ParseUint(matches[3], 10, 64)
	if err != nil {
		return Zero, fmt.Errorf("invalid patch version: %w", err)
	}

	return SemanticVersion{
		major:      major,
		minor:      minor,
		patch:      patch,
		prerelease: ParsePrerelease(matches[4]),
		metadata:   BuildMetadata(matches[5]),
	}, nil
}

// MustParse parses a semantic version string and panics if invalid.
// Use only for known-good version strings.
func MustParse(s string) SemanticVersion {
	v, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return v
}

// Major returns the major version component.
func (v SemanticVersion) Major() uint64 {
	return v.major
}

// Minor returns the minor version component.
func (v SemanticVersion) Minor() uint64 {
	return v.minor
}

// Patch returns the patch version component.
func (v SemanticVersion) Patch() uint64 {
	return v.patch
}

// Prerelease returns the prerelease identifier.
func (v SemanticVersion) Prerelease() Prerelease {
	return v.prerelease
}

// Metadata returns the build metadata.
func (v SemanticVersion) Metadata() BuildMetadata {
	return v.metadata
}

// IsPrerelease returns true if this is a prerelease version.
func (v SemanticVersion) IsPrerelease() bool {
	return !v.prerelease.IsZero()
}

// IsZero returns true if this is the zero version with no qualifiers.
func (v SemanticVersion) IsZero() bool {
	return v.major == 0 && v.minor == 0 && v.patch == 0 &&
		v.prerelease.IsZero() && v.metadata == ""
}

// String returns the string representation of the version (without 'v' prefix).
func (v SemanticVersion) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%d.%d.%d", v.major, v.minor, v.patch)

	if !v.prerelease.IsZero() {
		sb.WriteString("-")
		sb.WriteString(v.prerelease.String())
	}

	if v.metadata != "" {
		sb.WriteString("+")
		sb.WriteString(string(v.metadata))
	}

	return sb.String()
}

// TagString returns the version with 'v' prefix for git tags.
func (v SemanticVersion) TagString() string {
	return "v" + v.String()
}

// Core returns the version with prerelease and metadata stripped.
func (v SemanticVersion) Core() SemanticVersion {
	return SemanticVersion{major: v.major, minor: v.minor, patch: v.patch}
}

// WithPrerelease returns a new version with the specified prerelease.
func (v SemanticVersion) WithPrerelease(pre Prerelease) SemanticVersion {
	return SemanticVersion{
		major:      v.major,
		minor:      v.minor,
		patch:      v.patch,
		prerelease: pre,
		metadata:   v.metadata,
	}
}

// WithMetadata returns a new version with the specified build metadata.
func (v SemanticVersion) WithMetadata(meta BuildMetadata) SemanticVersion {
	return SemanticVersion{
		major:      v.major,
		minor:      v.minor,
		patch:      v.patch,
		prerelease: v.prerelease,
		metadata:   meta,
	}
}

// BumpMajor returns (major+1).0.0.
func (v SemanticVersion) BumpMajor() SemanticVersion {
	return SemanticVersion{major: v.major + 1}
}

// BumpMinor returns major.(minor+1).0.
func (v SemanticVersion) BumpMinor() SemanticVersion {
	return SemanticVersion{major: v.major, minor: v.minor + 1}
}

// BumpPatch returns major.minor.(patch+1).
func (v SemanticVersion) BumpPatch() SemanticVersion {
	return SemanticVersion{major: v.major, minor: v.minor, patch: v.patch + 1}
}

// Compare compares two versions.
// Returns -1 if v < other, 0 if v == other, 1 if v > other.
// Precedence is (major, minor, patch), then prerelease absence over
// presence (a release outranks its own prerelease), then prerelease
// label/number. Build metadata is ignored.
func (v SemanticVersion) Compare(other SemanticVersion) int {
	if v.major != other.major {
		if v.major < other.major {
			return -1
		}
		return 1
	}

	if v.minor != other.minor {
		if v.minor < other.minor {
			return -1
		}
		return 1
	}

	if v.patch != other.patch {
		if v.patch < other.patch {
			return -1
		}
		return 1
	}

	if v.prerelease.IsZero() && !other.prerelease.IsZero() {
		return 1
	}
	if !v.prerelease.IsZero() && other.prerelease.IsZero() {
		return -1
	}
	return v.prerelease.Compare(other.prerelease)
}

// LessThan returns true if v < other.
func (v SemanticVersion) LessThan(other SemanticVersion) bool {
	return v.Compare(other) < 0
}

// GreaterThan returns true if v > other.
func (v SemanticVersion) GreaterThan(other SemanticVersion) bool {
	return v.Compare(other) > 0
}

// Equal returns true if two versions are equal (ignoring metadata).
func (v SemanticVersion) Equal(other SemanticVersion) bool {
	return v.Compare(other) == 0
}
