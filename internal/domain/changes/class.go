package changes

import "strings"

// CommitClass represents the release impact category of a commit.
type CommitClass string

const (
	// ClassBreaking indicates a breaking change.
	ClassBreaking CommitClass = "breaking"
	// ClassFeature indicates a new feature.
	ClassFeature CommitClass = "feature"
	// ClassFix indicates a bug fix.
	ClassFix CommitClass = "fix"
	// ClassChore indicates a maintenance change with no release impact.
	ClassChore CommitClass = "chore"
	// ClassUnclassified indicates a commit whose message matched no rule.
	ClassUnclassified CommitClass = "unclassified"
)

// AllClasses returns all commit classes.
func AllClasses() []CommitClass {
	return []CommitClass{
		ClassBreaking,
		ClassFeature,
		ClassFix,
		ClassChore,
		ClassUnclassified,
	}
}

// String returns the string representation of the class.
func (c CommitClass) String() string {
	return string(c)
}

// IsValid returns true if the class is a recognized commit class.
func (c CommitClass) IsValid() bool {
	switch c {
	case ClassBreaking, ClassFeature, ClassFix, ClassChore, ClassUnclassified:
		return true
	default:
		return false
	}
}

// severity orders classes by release impact. Higher is more severe.
// Unclassified commits weigh the same as fixes so an unrecognized
// message can never silently under-bump a release.
func (c CommitClass) severity() int {
	switch c {
	case ClassBreaking:
		return 3
	case ClassFeature:
		return 2
	case ClassFix, ClassUnclassified:
		return 1
	default:
		return 0
	}
}

// BumpEquivalent returns the class used for version-bump arithmetic.
// Unclassified maps to fix; everything else maps to itself.
func (c CommitClass) BumpEquivalent() CommitClass {
	if c == ClassUnclassified {
		return ClassFix
	}
	return c
}

// Outranks returns true if c is strictly more severe than other for
// version-bump purposes.
func (c CommitClass) Outranks(other CommitClass) bool {
	return c.severity() > other.severity()
}

// SectionTitle returns the changelog section heading for this class.
func (c CommitClass) SectionTitle() string {
	switch c {
	case ClassBreaking:
		return "Breaking Changes"
	case ClassFeature:
		return "Features"
	case ClassFix:
		return "Bug Fixes"
	case ClassChore:
		return "Chores"
	default:
		return "Other Changes"
	}
}

// SectionOrder returns the commit classes in changelog section priority
// order. Unclassified commits render under the fix section and are not
// a section of their own.
func SectionOrder() []CommitClass {
	return []CommitClass{ClassBreaking, ClassFeature, ClassFix, ClassChore}
}

// ParseClass parses a string into a CommitClass.
func ParseClass(s string) (CommitClass, bool) {
	c := CommitClass(strings.ToLower(strings.TrimSpace(s)))
	if c.IsValid() {
		return c, true
	}
	return "", false
}

// MaxClass folds a set of commits down to the most severe class present
// among breaking, feature and fix. Chores contribute nothing; an
// unclassified commit counts as a fix. Returns ClassChore when no commit
// qualifies for a bump.
func MaxClass(commits []Commit) CommitClass {
	max := ClassChore
	for _, c := range commits {
		eff := Classify(c.Message()).BumpEquivalent()
		if eff.Outranks(max) {
			max = eff
		}
	}
	return max
}
