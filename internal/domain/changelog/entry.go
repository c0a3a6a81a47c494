// Package changelog renders grouped changelog entries from classified
// commits and maintains the cumulative changelog document.
package changelog

import (
	"fmt"
	"time"

	"github.com/branchflow/branchflow/internal/domain/changes"
	"github.com/branchflow/branchflow/internal/domain/version"
)

// Entry is one rendered changelog section for a single version.
// Produced once per version and prepended to the cumulative document.
type Entry struct {
	version  version.SemanticVersion
	date     time.Time
	sections map[changes.CommitClass][]string
}

// NewEntry groups the given commits into changelog sections for a version.
// Unclassified commits are listed under the fix section without being
// reclassified; chores keep their own section.
func NewEntry(v version.SemanticVersion, date time.Time, commits []changes.Commit) Entry {
	sections := make(map[changes.CommitClass][]string)
	for _, c := range commits {
		class := changes.Classify(c.Message())
		bucket := class
		if class == changes.ClassUnclassified {
			bucket = changes.ClassFix
		}
		sections[bucket] = append(sections[bucket], formatLine(c))
	}

	return Entry{
		version:  v,
		date:     date.UTC(),
		sections: sections,
	}
}

// formatLine renders a single changelog bullet.
func formatLine(c changes.Commit) string {
	return fmt.Sprintf("- %s (%s)", c.Subject(), c.ShortSHA())
}

// Version returns the entry's version.
func (e Entry) Version() version.SemanticVersion {
	return e.version
}

// Date returns the entry's release date.
func (e Entry) Date() time.Time {
	return e.date
}

// Section returns the lines of one section, in commit order.
func (e Entry) Section(class changes.CommitClass) []string {
	return e.sections[class]
}

// IsEmpty returns true when no section has any line.
func (e Entry) IsEmpty() bool {
	for _, lines := range e.sections {
		if len(lines) > 0 {
			return false
		}
	}
	return true
}
