package changelog

import (
	"strings"
	"testing"
	"time"

	"github.com/branchflow/branchflow/internal/domain/changes"
	"github.com/branchflow/branchflow/internal/domain/version"
)

var renderDate = time.Date(2025, 3, 1, 15, 4, 5, 0, time.UTC)

func entryFor(t *testing.T, ver string, messages ...string) Entry {
	t.Helper()
	commits := make([]changes.Commit, len(messages))
	for i, m := range messages {
		commits[i] = changes.NewCommit("abc1234def5678", m, renderDate)
	}
	return NewEntry(version.MustParse(ver), renderDate, commits)
}

func TestRenderer_Render_GroupsAndOrders(t *testing.T) {
	e := entryFor(t, "1.3.0",
		"fix: handle empty input",
		"feat: add pager",
		"feat!: drop legacy mode",
		"chore: bump deps",
	)

	out, err := NewRenderer().Render(e)
	if err != nil {
		t.Fatalf("Render() error: %v", err)
	}

	if !strings.HasPrefix(out, "## 1.3.0 (2025-03-01)") {
		t.Errorf("missing version heading, got:\n%s", out)
	}

	// Sections must appear in priority order.
	idxBreaking := strings.Index(out, "### Breaking Changes")
	idxFeatures := strings.Index(out, "### Features")
	idxFixes := strings.Index(out, "### Bug Fixes")
	idxChores := strings.Index(out, "### Chores")
	if idxBreaking < 0 || idxFeatures < 0 || idxFixes < 0 || idxChores < 0 {
		t.Fatalf("missing sections, got:\n%s", out)
	}
	if !(idxBreaking < idxFeatures && idxFeatures < idxFixes && idxFixes < idxChores) {
		t.Errorf("sections out of order, got:\n%s", out)
	}

	if !strings.Contains(out, "- feat: add pager (abc1234)") {
		t.Errorf("missing short-sha bullet, got:\n%s", out)
	}
}

func TestRenderer_Render_OmitsEmptyBuckets(t *testing.T) {
	e := entryFor(t, "1.2.4", "fix: only a fix")

	out, err := NewRenderer().Render(e)
	if err != nil {
		t.Fatalf("Render() error: %v", err)
	}

	if strings.Contains(out, "### Features") || strings.Contains(out, "### Breaking Changes") {
		t.Errorf("empty buckets must be omitted, got:\n%s", out)
	}
	if !strings.Contains(out, "### Bug Fixes") {
		t.Errorf("fix section missing, got:\n%s", out)
	}
}

func TestRenderer_Render_UnclassifiedUnderFixes(t *testing.T) {
	e := entryFor(t, "1.2.4", "assorted cleanup")

	out, err := NewRenderer().Render(e)
	if err != nil {
		t.Fatalf("Render() error: %v", err)
	}

	if !strings.Contains(out, "### Bug Fixes") {
		t.Errorf("unclassified commits should render under Bug Fixes, got:\n%s", out)
	}
	if !strings.Contains(out, "- assorted cleanup (abc1234)") {
		t.Errorf("unclassified bullet missing, got:\n%s", out)
	}
}

func TestRenderer_Merge_PrependsNewestFirst(t *testing.T) {
	r := NewRenderer()

	doc, err := r.Merge("", entryFor(t, "1.0.0", "feat: first"))
	if err != nil {
		t.Fatalf("Merge() error: %v", err)
	}
	doc, err = r.Merge(doc, entryFor(t, "1.1.0", "feat: second"))
	if err != nil {
		t.Fatalf("Merge() error: %v", err)
	}

	if !strings.HasPrefix(doc, "# Changelog") {
		t.Errorf("document header missing, got:\n%s", doc)
	}

	idxNew := strings.Index(doc, "## 1.1.0 ")
	idxOld := strings.Index(doc, "## 1.0.0 ")
	if idxNew < 0 || idxOld < 0 {
		t.Fatalf("expected both sections, got:\n%s", doc)
	}
	if idxNew > idxOld {
		t.Errorf("newest section must come first, got:\n%s", doc)
	}
}

func TestRenderer_Merge_Idempotent(t *testing.T) {
	r := NewRenderer()

	doc, err := r.Merge("", entryFor(t, "1.0.0", "feat: base"))
	if err != nil {
		t.Fatalf("Merge() error: %v", err)
	}

	// Re-render the same version with different content: the section is
	// replaced, never duplicated.
	doc, err = r.Merge(doc, entryFor(t, "1.0.0", "feat: base", "fix: follow-up"))
	if err != nil {
		t.Fatalf("Merge() error: %v", err)
	}

	if got := strings.Count(doc, "## 1.0.0 "); got != 1 {
		t.Errorf("section count for 1.0.0 = %d, want 1; doc:\n%s", got, doc)
	}
	if !strings.Contains(doc, "fix: follow-up") {
		t.Errorf("replacement section content missing, got:\n%s", doc)
	}
}

func TestRenderer_Merge_DoesNotTouchSimilarVersions(t *testing.T) {
	r := NewRenderer()

	doc, err := r.Merge("", entryFor(t, "1.0.0-rc.1", "feat: rc"))
	if err != nil {
		t.Fatalf("Merge() error: %v", err)
	}
	doc, err = r.Merge(doc, entryFor(t, "1.0.0", "feat: final"))
	if err != nil {
		t.Fatalf("Merge() error: %v", err)
	}

	if !strings.Contains(doc, "## 1.0.0-rc.1 ") {
		t.Errorf("rc section must survive the final release merge, got:\n%s", doc)
	}
	if strings.Count(doc, "## 1.0.0 ") != 1 {
		t.Errorf("expected exactly one 1.0.0 section, got:\n%s", doc)
	}
}

func TestEntry_IsEmpty(t *testing.T) {
	if !entryFor(t, "1.0.0").IsEmpty() {
		t.Error("entry with no commits should be empty")
	}
	if entryFor(t, "1.0.0", "fix: x").IsEmpty() {
		t.Error("entry with commits should not be empty")
	}
}
