// Package releaseline tracks concurrently supported release lines and the
// change classes each line admits.
package releaseline

import (
	"fmt"
	"strings"
	"time"

	"github.com/branchflow/branchflow/internal/domain/changes"
	"github.com/branchflow/branchflow/internal/domain/version"
)

// Tier classifies a release line by its support role.
type Tier string

const (
	// TierLTS is a long-term-support line with a bounded window.
	TierLTS Tier = "lts"
	// TierCurrent is the line receiving regular releases. Exactly one
	// current line is active at a time.
	TierCurrent Tier = "current"
	// TierNext is the line for the upcoming major. At most one next
	// line is active at a time.
	TierNext Tier = "next"
)

// String returns the string representation of the tier.
func (t Tier) String() string {
	return string(t)
}

// IsValid returns true if the tier is recognized.
func (t Tier) IsValid() bool {
	switch t {
	case TierLTS, TierCurrent, TierNext:
		return true
	default:
		return false
	}
}

// Exclusive returns true for tiers that allow only one active line.
func (t Tier) Exclusive() bool {
	return t == TierCurrent || t == TierNext
}

// ParseTier parses a string into a Tier.
func ParseTier(s string) (Tier, error) {
	t := Tier(strings.ToLower(strings.TrimSpace(s)))
	if !t.IsValid() {
		return "", fmt.Errorf("invalid release line tier: %q", s)
	}
	return t, nil
}

// Line describes one supported release line.
type Line struct {
	id           string
	tier         Tier
	baseVersion  version.SemanticVersion
	supportUntil time.Time
	service      string
	admissible   map[changes.CommitClass]struct{}
	retired      bool
}

// NewLine creates a release line. admissible lists the commit classes the
// line accepts; an LTS line typically admits only fixes.
func NewLine(id string, tier Tier, base version.SemanticVersion, admissible []changes.CommitClass) *Line {
	set := make(map[changes.CommitClass]struct{}, len(admissible))
	for _, c := range admissible {
		set[c] = struct{}{}
	}
	return &Line{
		id:          id,
		tier:        tier,
		baseVersion: base,
		admissible:  set,
	}
}

// WithSupportWindow sets the end of the line's support window.
func (l *Line) WithSupportWindow(until time.Time) *Line {
	l.supportUntil = until
	return l
}

// WithService sets the optional monorepo service prefix for the line's tags.
func (l *Line) WithService(service string) *Line {
	l.service = service
	return l
}

// ID returns the line identifier.
func (l *Line) ID() string {
	return l.id
}

// Tier returns the line tier.
func (l *Line) Tier() Tier {
	return l.tier
}

// BaseVersion returns the version the line branched from.
func (l *Line) BaseVersion() version.SemanticVersion {
	return l.baseVersion
}

// SupportUntil returns the end of the support window; zero means unbounded.
func (l *Line) SupportUntil() time.Time {
	return l.supportUntil
}

// Service returns the optional service prefix.
func (l *Line) Service() string {
	return l.service
}

// Retired returns true once the line has been retired. Retirement is a
// status flag; the line's history is never deleted.
func (l *Line) Retired() bool {
	return l.retired
}

// Admits returns true if the line accepts the given commit class.
// Unclassified changes are judged by their fix-equivalent weight.
func (l *Line) Admits(class changes.CommitClass) bool {
	if l.retired {
		return false
	}
	_, ok := l.admissible[class.BumpEquivalent()]
	return ok
}

// Expired returns true when the support window has passed.
func (l *Line) Expired(now time.Time) bool {
	return !l.supportUntil.IsZero() && now.After(l.supportUntil)
}

// AdmissibleClasses returns the admissible classes in section order.
func (l *Line) AdmissibleClasses() []changes.CommitClass {
	var out []changes.CommitClass
	for _, c := range changes.SectionOrder() {
		if _, ok := l.admissible[c]; ok {
			out = append(out, c)
		}
	}
	return out
}
