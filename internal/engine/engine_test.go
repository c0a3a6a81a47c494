package engine

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/branchflow/branchflow/internal/domain/branch"
	"github.com/branchflow/branchflow/internal/domain/changelog"
	"github.com/branchflow/branchflow/internal/domain/changes"
	"github.com/branchflow/branchflow/internal/domain/lifecycle"
	"github.com/branchflow/branchflow/internal/domain/releaseline"
	"github.com/branchflow/branchflow/internal/domain/tagging"
	flowerrors "github.com/branchflow/branchflow/internal/errors"
)

var engineTime = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

// fakeVCS implements VCS against in-memory maps and records mutations.
type fakeVCS struct {
	mu       sync.Mutex
	tags     map[string]string
	heads    map[string]string
	branches []string
	commits  []changes.Commit

	created      []string
	deleted      []string
	merged       []string
	cherryPicked []string

	headErr error
}

func newFakeVCS() *fakeVCS {
	return &fakeVCS{
		tags: map[string]string{"v1.2.3": "aaa0001"},
		heads: map[string]string{
			"main":    "aaa0002",
			"develop": "bbb0001",
		},
		branches: []string{"main", "develop"},
		commits: []changes.Commit{
			changes.NewCommit("ccc0001", "feat: add export", engineTime),
			changes.NewCommit("ccc0002", "fix: handle empty input", engineTime),
		},
	}
}

func (f *fakeVCS) Tags(context.Context) (map[string]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string]string, len(f.tags))
	for k, v := range f.tags {
		out[k] = v
	}
	return out, nil
}

func (f *fakeVCS) Head(_ context.Context, branch string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.headErr != nil {
		return "", f.headErr
	}
	head, ok := f.heads[branch]
	if !ok {
		return "", errors.New("unknown branch " + branch)
	}
	return head, nil
}

func (f *fakeVCS) BranchExists(_ context.Context, name string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, b := range f.branches {
		if b == name {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeVCS) Branches(context.Context) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.branches...), nil
}

func (f *fakeVCS) CommitsSince(_ context.Context, _, _ string) ([]changes.Commit, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]changes.Commit(nil), f.commits...), nil
}

func (f *fakeVCS) CreateBranch(_ context.Context, name, fromRef string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.branches = append(f.branches, name)
	f.heads[name] = f.heads[fromRef]
	f.created = append(f.created, name)
	return nil
}

func (f *fakeVCS) DeleteBranch(_ context.Context, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, name)
	kept := f.branches[:0]
	for _, b := range f.branches {
		if b != name {
			kept = append(kept, b)
		}
	}
	f.branches = kept
	return nil
}

func (f *fakeVCS) MergeBranch(_ context.Context, source, target string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.merged = append(f.merged, source+"->"+target)
	return nil
}

func (f *fakeVCS) CherryPick(_ context.Context, sha, onto string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cherryPicked = append(f.cherryPicked, sha+"@"+onto)
	return nil
}

type fakePRs struct {
	opened []string
	err    error
}

func (f *fakePRs) OpenPullRequest(_ context.Context, source, target, _, _ string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.opened = append(f.opened, source+"->"+target)
	return "https://example.test/pr/1", nil
}

type fakeGate struct {
	result GateResult
	err    error
	runs   int
}

func (f *fakeGate) Run(context.Context, string) (GateResult, error) {
	f.runs++
	return f.result, f.err
}

type fakeChangelog struct {
	applied []changelog.Entry
}

func (f *fakeChangelog) Apply(_ context.Context, entry changelog.Entry) error {
	f.applied = append(f.applied, entry)
	return nil
}

type countingLocks struct {
	keys     []string
	released int
}

func (l *countingLocks) Acquire(_ context.Context, key string) (func() error, error) {
	l.keys = append(l.keys, key)
	return func() error {
		l.released++
		return nil
	}, nil
}

func newTestEngine(t *testing.T, vcs *fakeVCS, opts ...Option) *Engine {
	t.Helper()
	manager, err := lifecycle.NewManager(lifecycle.DefaultConfig(), releaseline.NewRegistry())
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	store := tagging.NewMemoryStore()
	for name, sha := range vcs.tags {
		if err := store.Create(context.Background(), name, sha); err != nil {
			t.Fatalf("seed tag %s: %v", name, err)
		}
	}
	base := []Option{WithClock(func() time.Time { return engineTime })}
	return New(lifecycle.DefaultConfig(), manager, vcs, store, append(base, opts...)...)
}

func releaseTrigger(label string) lifecycle.Trigger {
	trig := lifecycle.NewTrigger(lifecycle.TriggerIssueLabeled, engineTime)
	trig.Label = label
	return trig
}

func mergedTrigger(role branch.Role, head string) lifecycle.Trigger {
	trig := lifecycle.NewTrigger(lifecycle.TriggerPRMerged, engineTime)
	trig.BaseRole = branch.RoleMain
	trig.HeadRole = role
	trig.HeadBranch = head
	return trig
}

func TestHandleTriggerReleaseStart(t *testing.T) {
	vcs := newFakeVCS()
	prs := &fakePRs{}
	locks := &countingLocks{}
	e := newTestEngine(t, vcs, WithPullRequests(prs), WithLockManager(locks))

	report, err := e.HandleTrigger(context.Background(), releaseTrigger(lifecycle.LabelReleaseMinor),
		HandleOptions{RunSequence: 1})
	if err != nil {
		t.Fatalf("HandleTrigger: %v", err)
	}

	if report.Decision.VersionString != "1.3.0-rc.1" {
		t.Errorf("version = %q, want 1.3.0-rc.1", report.Decision.VersionString)
	}
	if len(vcs.created) != 1 || vcs.created[0] != "release/1.3.0" {
		t.Errorf("created branches = %v, want [release/1.3.0]", vcs.created)
	}
	if len(prs.opened) != 1 || prs.opened[0] != "release/1.3.0->main" {
		t.Errorf("opened PRs = %v, want [release/1.3.0->main]", prs.opened)
	}
	if report.PullRequestURL == "" {
		t.Error("report carries no PR URL")
	}
	if len(locks.keys) != 1 || locks.keys[0] != "release" {
		t.Errorf("lock keys = %v, want [release]", locks.keys)
	}
	if locks.released != 1 {
		t.Errorf("lock released %d times, want 1", locks.released)
	}
}

func TestHandleTriggerDryRunExecutesNothing(t *testing.T) {
	vcs := newFakeVCS()
	prs := &fakePRs{}
	e := newTestEngine(t, vcs, WithPullRequests(prs))

	report, err := e.HandleTrigger(context.Background(), releaseTrigger(lifecycle.LabelReleaseMinor),
		HandleOptions{DryRun: true, RunSequence: 1})
	if err != nil {
		t.Fatalf("HandleTrigger: %v", err)
	}

	if !report.DryRun {
		t.Error("report not marked dry run")
	}
	if len(report.Decision.Actions) == 0 {
		t.Error("dry run carries no planned actions")
	}
	if len(report.Executed) != 0 || len(vcs.created) != 0 || len(prs.opened) != 0 {
		t.Errorf("dry run executed side effects: executed=%v created=%v opened=%v",
			report.Executed, vcs.created, prs.opened)
	}
}

func TestHandleTriggerReleaseFinish(t *testing.T) {
	vcs := newFakeVCS()
	vcs.branches = append(vcs.branches, "release/1.3.0")
	vcs.heads["release/1.3.0"] = "ddd0001"
	clog := &fakeChangelog{}
	e := newTestEngine(t, vcs, WithChangelog(clog))

	report, err := e.HandleTrigger(context.Background(),
		mergedTrigger(branch.RoleRelease, "release/1.3.0"), HandleOptions{})
	if err != nil {
		t.Fatalf("HandleTrigger: %v", err)
	}

	if report.Tag == nil || report.Tag.Name() != "v1.3.0" {
		t.Fatalf("minted tag = %+v, want v1.3.0", report.Tag)
	}
	if report.Tag.CreatedFromSHA() != "aaa0002" {
		t.Errorf("tag sha = %q, want main head aaa0002", report.Tag.CreatedFromSHA())
	}
	if len(vcs.merged) != 1 || vcs.merged[0] != "main->develop" {
		t.Errorf("merges = %v, want [main->develop]", vcs.merged)
	}
	if len(vcs.deleted) != 1 || vcs.deleted[0] != "release/1.3.0" {
		t.Errorf("deleted = %v, want [release/1.3.0]", vcs.deleted)
	}
	if len(clog.applied) != 1 {
		t.Fatalf("changelog entries applied = %d, want 1", len(clog.applied))
	}
	if got := clog.applied[0].Version().String(); got != "1.3.0" {
		t.Errorf("changelog entry version = %q, want 1.3.0", got)
	}
}

func TestHandleTriggerQualityGateBlocksReleaseFinish(t *testing.T) {
	vcs := newFakeVCS()
	vcs.branches = append(vcs.branches, "release/1.3.0")
	vcs.heads["release/1.3.0"] = "ddd0001"
	gate := &fakeGate{result: GateResult{Passed: false, Reason: "coverage dropped"}}
	e := newTestEngine(t, vcs, WithQualityGate(gate))

	_, err := e.HandleTrigger(context.Background(),
		mergedTrigger(branch.RoleRelease, "release/1.3.0"), HandleOptions{})
	if !flowerrors.IsKind(err, flowerrors.KindRejected) {
		t.Fatalf("HandleTrigger = %v, want KindRejected", err)
	}

	if gate.runs != 1 {
		t.Errorf("gate runs = %d, want 1", gate.runs)
	}
	if len(vcs.merged) != 0 || len(vcs.deleted) != 0 {
		t.Errorf("gate failure still executed actions: merged=%v deleted=%v", vcs.merged, vcs.deleted)
	}
}

func TestHandleTriggerGateNotConsultedForHotfixStart(t *testing.T) {
	vcs := newFakeVCS()
	gate := &fakeGate{result: GateResult{Passed: false, Reason: "never asked"}}
	e := newTestEngine(t, vcs, WithQualityGate(gate))

	_, err := e.HandleTrigger(context.Background(), releaseTrigger(lifecycle.LabelHotfix), HandleOptions{})
	if err != nil {
		t.Fatalf("HandleTrigger: %v", err)
	}
	if gate.runs != 0 {
		t.Errorf("gate runs = %d, want 0", gate.runs)
	}
	if len(vcs.created) != 1 || vcs.created[0] != "hotfix/1.2.4" {
		t.Errorf("created = %v, want [hotfix/1.2.4]", vcs.created)
	}
}

func TestHandleTriggerRejectedTransitionHasNoSideEffects(t *testing.T) {
	vcs := newFakeVCS()
	vcs.branches = append(vcs.branches, "release/1.3.0")
	vcs.heads["release/1.3.0"] = "ddd0001"
	e := newTestEngine(t, vcs)

	// A second release cannot start while one is in flight.
	_, err := e.HandleTrigger(context.Background(), releaseTrigger(lifecycle.LabelReleaseMinor),
		HandleOptions{RunSequence: 2})
	if !errors.Is(err, lifecycle.ErrIllegalTransition) {
		t.Fatalf("HandleTrigger = %v, want ErrIllegalTransition", err)
	}
	if len(vcs.created) != 0 {
		t.Errorf("rejected transition created branches: %v", vcs.created)
	}
}

func TestHandleTriggerPromote(t *testing.T) {
	vcs := newFakeVCS()
	e := newTestEngine(t, vcs)

	trig := lifecycle.NewTrigger(lifecycle.TriggerManualPromote, engineTime)
	trig.Environment = "staging"
	trig.SourceBranch = "main"

	report, err := e.HandleTrigger(context.Background(), trig, HandleOptions{})
	if err != nil {
		t.Fatalf("HandleTrigger: %v", err)
	}

	want := "staging/1.2.3-20250301-120000-aaa0002"
	if report.Tag == nil || report.Tag.Name() != want {
		t.Fatalf("tag = %+v, want %s", report.Tag, want)
	}
}

func TestNextVersionOnMain(t *testing.T) {
	vcs := newFakeVCS()
	e := newTestEngine(t, vcs)

	v, kind, err := e.NextVersion(context.Background(), "main", 0)
	if err != nil {
		t.Fatalf("NextVersion: %v", err)
	}
	// The range holds a feature commit, so main bumps minor.
	if v.String() != "1.3.0" {
		t.Errorf("version = %q, want 1.3.0", v)
	}
	if kind != "minor" {
		t.Errorf("kind = %q, want minor", kind)
	}
}

func TestLatestFromTagsIgnoresNonReleaseTags(t *testing.T) {
	tags := map[string]string{
		"v1.2.3":                           "a",
		"v1.3.0-rc.1":                      "b",
		"staging/1.2.3-20250301-120000-ab": "c",
		"v1.10.0":                          "d",
		"not-a-version":                    "e",
	}

	latest := latestFromTags(tags, "v")
	if latest == nil || latest.String() != "1.10.0" {
		t.Fatalf("latest = %v, want 1.10.0", latest)
	}
}

func TestLatestFromTagsHonorsConfiguredPrefix(t *testing.T) {
	tags := map[string]string{
		"rel-1.2.3": "a",
		"rel-1.4.0": "b",
		"v2.0.0":    "c",
	}

	latest := latestFromTags(tags, "rel-")
	if latest == nil || latest.String() != "1.4.0" {
		t.Fatalf("latest = %v, want 1.4.0 (foreign-prefix tags ignored)", latest)
	}
}
