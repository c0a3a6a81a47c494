package changes

import (
	"regexp"
	"strings"
)

// breakingMarkerRegex matches a conventional-commit "!" marker immediately
// before the colon, e.g. "feat!:" or "fix(parser)!:".
var breakingMarkerRegex = regexp.MustCompile(`^\w+(?:\([^)]*\))?!:`)

// breakingToken is the case-sensitive footer token marking a breaking change.
const breakingToken = "BREAKING CHANGE"

// Classify determines the CommitClass of a commit message.
//
// Rules are checked in precedence order, first match wins:
//  1. "BREAKING CHANGE" token anywhere, or a "!" marker before the colon.
//  2. feat:/feature: prefix.
//  3. fix:/bug:/patch: prefix.
//  4. chore:/docs:/style: prefix.
//  5. Anything else is unclassified.
//
// Classify is total and pure: it never fails, and unrecognized formats
// degrade to ClassUnclassified rather than an error.
func Classify(message string) CommitClass {
	trimmed := strings.TrimSpace(message)

	if strings.Contains(message, breakingToken) || breakingMarkerRegex.MatchString(trimmed) {
		return ClassBreaking
	}

	switch {
	case hasAnyPrefix(trimmed, "feat:", "feature:"):
		return ClassFeature
	case hasAnyPrefix(trimmed, "fix:", "bug:", "patch:"):
		return ClassFix
	case hasAnyPrefix(trimmed, "chore:", "docs:", "style:"):
		return ClassChore
	default:
		return ClassUnclassified
	}
}

func hasAnyPrefix(s string, prefixes ...string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}
