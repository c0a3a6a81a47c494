// Package changes provides domain types for classifying commit history.
package changes

import (
	"strings"
	"time"
)

// Commit is a read-only value describing a single commit, sourced from the
// version-control adapter.
type Commit struct {
	sha       string
	message   string
	timestamp time.Time
}

// NewCommit creates a new Commit value.
func NewCommit(sha, message string, timestamp time.Time) Commit {
	return Commit{
		sha:       sha,
		message:   message,
		timestamp: timestamp,
	}
}

// SHA returns the full commit SHA.
func (c Commit) SHA() string {
	return c.sha
}

// ShortSHA returns the abbreviated (7 character) commit SHA.
func (c Commit) ShortSHA() string {
	if len(c.sha) > 7 {
		return c.sha[:7]
	}
	return c.sha
}

// Message returns the full commit message.
func (c Commit) Message() string {
	return c.message
}

// Subject returns the first line of the commit message.
func (c Commit) Subject() string {
	if i := strings.IndexByte(c.message, '\n'); i >= 0 {
		return strings.TrimSpace(c.message[:i])
	}
	return strings.TrimSpace(c.message)
}

// Timestamp returns the commit timestamp in UTC.
func (c Commit) Timestamp() time.Time {
	return c.timestamp.UTC()
}

// Class returns the classification of this commit's message.
func (c Commit) Class() CommitClass {
	return Classify(c.message)
}
