package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/branchflow/branchflow/internal/domain/branch"
	"github.com/branchflow/branchflow/internal/domain/changelog"
	"github.com/branchflow/branchflow/internal/domain/lifecycle"
	"github.com/branchflow/branchflow/internal/domain/tagging"
	"github.com/branchflow/branchflow/internal/domain/version"
	"github.com/branchflow/branchflow/internal/errors"
)

// ChangelogStore persists rendered changelog entries. Implemented by the
// file-backed changelog in the infrastructure layer.
type ChangelogStore interface {
	Apply(ctx context.Context, entry changelog.Entry) error
}

// Report is the outcome of one handled trigger.
type Report struct {
	Decision lifecycle.Decision `json:"decision"`
	// Executed lists the actions that were actually run, in order.
	// Empty on dry runs.
	Executed lifecycle.ActionList `json:"executed"`
	// Tag is the minted tag, when the decision included one.
	Tag *tagging.Tag `json:"tag,omitempty"`
	// PullRequestURL is set when a PR was opened.
	PullRequestURL string `json:"pull_request_url,omitempty"`
	DryRun         bool   `json:"dry_run"`
}

// Engine wires the lifecycle manager to the adapter ports and executes
// decisions.
type Engine struct {
	cfg     lifecycle.Config
	manager *lifecycle.Manager
	vcs     VCS
	tagMgr  *tagging.Manager

	prs        PullRequests
	gate       QualityGate
	locks      LockManager
	changelogs ChangelogStore
	resilience *Resilience
	metrics    Metrics
	logger     *slog.Logger
	now        func() time.Time
}

// Option configures the engine.
type Option func(*Engine)

// WithPullRequests sets the code review adapter.
func WithPullRequests(prs PullRequests) Option {
	return func(e *Engine) { e.prs = prs }
}

// WithQualityGate sets the gate run before a release finishes.
func WithQualityGate(gate QualityGate) Option {
	return func(e *Engine) { e.gate = gate }
}

// WithLockManager sets the lock manager serializing concurrent runs.
func WithLockManager(locks LockManager) Option {
	return func(e *Engine) { e.locks = locks }
}

// WithChangelog sets the changelog store updated on release finishes.
func WithChangelog(store ChangelogStore) Option {
	return func(e *Engine) { e.changelogs = store }
}

// WithResilience sets the adapter call budget.
func WithResilience(r *Resilience) Option {
	return func(e *Engine) { e.resilience = r }
}

// WithMetrics sets the metrics recorder.
func WithMetrics(m Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithLogger sets the engine logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

// WithClock overrides the engine clock.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// New creates an engine over the given lifecycle manager, VCS adapter,
// and tag store.
func New(cfg lifecycle.Config, manager *lifecycle.Manager, vcs VCS, tags tagging.Store, opts ...Option) *Engine {
	if cfg.TagPrefix == "" {
		cfg.TagPrefix = "v"
	}
	e := &Engine{
		cfg:     cfg,
		manager: manager,
		vcs:     vcs,
		tagMgr:  tagging.NewManager(tags),
		logger:  slog.Default().With("component", "engine"),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Manager exposes the lifecycle manager, mainly for registry access.
func (e *Engine) Manager() *lifecycle.Manager {
	return e.manager
}

// HandleOptions tunes one trigger handling run.
type HandleOptions struct {
	// DryRun computes the decision without executing any action.
	DryRun bool
	// RunSequence disambiguates repeated runs against the same source.
	RunSequence uint64
}

// HandleTrigger assembles a snapshot, decides the transition, and
// executes the resulting actions in order. Rejected transitions leave
// the repository untouched.
func (e *Engine) HandleTrigger(ctx context.Context, trig lifecycle.Trigger, opts HandleOptions) (*Report, error) {
	const op = "engine.HandleTrigger"

	if err := trig.Validate(); err != nil {
		e.record(trig, "invalid")
		return nil, errors.ValidationWrap(err, op, "invalid trigger")
	}

	if e.locks != nil {
		release, err := e.locks.Acquire(ctx, lockKey(trig))
		if err != nil {
			e.record(trig, "lock_failed")
			return nil, errors.ConflictWrap(err, op, "acquire run lock")
		}
		defer func() {
			if err := release(); err != nil {
				e.logger.Warn("releasing run lock failed", "error", err)
			}
		}()
	}

	snap, err := e.snapshot(ctx, trig, opts)
	if err != nil {
		e.record(trig, "snapshot_failed")
		return nil, err
	}

	dec, err := e.manager.Decide(trig, snap)
	if err != nil {
		e.record(trig, "rejected")
		return nil, err
	}

	e.logger.Info("transition decided",
		"trigger", trig.Kind,
		"version", dec.VersionString,
		"actions", len(dec.Actions),
	)

	report := &Report{Decision: dec, DryRun: opts.DryRun}
	if opts.DryRun {
		e.record(trig, "dry_run")
		return report, nil
	}

	if err := e.runQualityGate(ctx, trig); err != nil {
		e.record(trig, "gate_failed")
		return nil, err
	}

	for _, action := range dec.Actions {
		if err := e.execute(ctx, trig, dec, snap, action, report); err != nil {
			e.record(trig, "execution_failed")
			return report, err
		}
		report.Executed = append(report.Executed, action)
		if e.metrics != nil {
			e.metrics.ActionExecuted(string(action.Kind))
		}
	}

	if err := e.applyChangelog(ctx, trig, dec, snap); err != nil {
		e.record(trig, "changelog_failed")
		return report, err
	}

	e.record(trig, "ok")
	return report, nil
}

// NextVersion computes the next version for a branch without executing
// anything.
func (e *Engine) NextVersion(ctx context.Context, branchName string, runSequence uint64) (version.SemanticVersion, version.Kind, error) {
	const op = "engine.NextVersion"

	role := e.roleOf(branchName)
	latestTag, tagErr := e.latestReleaseTag(ctx)
	if tagErr != nil {
		return version.Zero, "", errors.GitWrap(tagErr, op, "scan tags")
	}

	since := ""
	if latestTag != nil {
		since = e.cfg.TagPrefix + latestTag.String()
	}
	commits, err := e.vcs.CommitsSince(ctx, branchName, since)
	if err != nil {
		return version.Zero, "", errors.GitWrap(err, op, "read commit range")
	}

	calc := version.NewCalculator()
	v, kind, err := calc.Next(version.Context{
		LatestTag:     latestTag,
		Role:          role,
		BranchName:    branchName,
		BranchVersion: e.embeddedVersion(branchName),
		Commits:       commits,
		RunSequence:   runSequence,
		Date:          e.now(),
	})
	if err != nil {
		return version.Zero, "", err
	}
	return v, kind, nil
}

// latestReleaseTag scans all tags for the highest plain release version.
func (e *Engine) latestReleaseTag(ctx context.Context) (*version.SemanticVersion, error) {
	tags, err := e.vcs.Tags(ctx)
	if err != nil {
		return nil, err
	}
	return latestFromTags(tags, e.cfg.TagPrefix), nil
}

// snapshot assembles the repository state a decision is made against.
// The independent reads run concurrently.
func (e *Engine) snapshot(ctx context.Context, trig lifecycle.Trigger, opts HandleOptions) (lifecycle.Snapshot, error) {
	const op = "engine.snapshot"

	snap := lifecycle.Snapshot{
		RunSequence: opts.RunSequence,
		Now:         e.now(),
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		tags, err := e.vcs.Tags(gctx)
		if err != nil {
			return errors.GitWrap(err, op, "list tags")
		}
		snap.Tags = tags
		snap.LatestTag = latestFromTags(tags, e.cfg.TagPrefix)
		return nil
	})

	g.Go(func() error {
		head, err := e.vcs.Head(gctx, e.cfg.MainBranch)
		if err != nil {
			return errors.GitWrap(err, op, "resolve main head")
		}
		snap.MainHead = head
		return nil
	})

	g.Go(func() error {
		head, err := e.vcs.Head(gctx, e.cfg.DevelopBranch)
		if err != nil {
			// A repo without a develop branch can still hotfix and promote.
			snap.DevelopHead = ""
			return nil
		}
		snap.DevelopHead = head
		return nil
	})

	g.Go(func() error {
		branches, err := e.vcs.Branches(gctx)
		if err != nil {
			return errors.GitWrap(err, op, "list branches")
		}
		snap.ActiveRelease = firstWithPrefix(branches, e.cfg.ReleasePrefix)
		snap.ActiveHotfix = firstWithPrefix(branches, e.cfg.HotfixPrefix)
		return nil
	})

	if err := g.Wait(); err != nil {
		return lifecycle.Snapshot{}, err
	}

	// The commit range depends on the latest tag, so it runs after.
	since := ""
	if snap.LatestTag != nil {
		since = e.cfg.TagPrefix + snap.LatestTag.String()
	}
	commits, err := e.vcs.CommitsSince(ctx, e.cfg.MainBranch, since)
	if err != nil {
		return lifecycle.Snapshot{}, errors.GitWrap(err, op, "read commit range")
	}
	snap.Commits = commits

	if trig.HeadBranch != "" {
		if head, err := e.vcs.Head(ctx, trig.HeadBranch); err == nil {
			snap.HeadSHA = head
		}
	}
	if snap.HeadSHA == "" {
		if trig.SourceBranch != "" {
			head, err := e.vcs.Head(ctx, trig.SourceBranch)
			if err != nil {
				return lifecycle.Snapshot{}, errors.GitWrap(err, op, "resolve promotion source")
			}
			snap.HeadSHA = head
		} else {
			snap.HeadSHA = snap.MainHead
		}
	}

	return snap, nil
}

// execute runs one action through the matching adapter under the
// resilience budget.
func (e *Engine) execute(ctx context.Context, trig lifecycle.Trigger, dec lifecycle.Decision, snap lifecycle.Snapshot, action lifecycle.Action, report *Report) error {
	const op = "engine.execute"

	e.logger.Debug("executing action", "action", action.String())

	switch action.Kind {
	case lifecycle.ActionCreateBranch:
		return e.withResilience(ctx, op, func(ctx context.Context) error {
			return e.vcs.CreateBranch(ctx, action.Branch, action.FromRef)
		})

	case lifecycle.ActionDeleteBranch:
		return e.withResilience(ctx, op, func(ctx context.Context) error {
			return e.vcs.DeleteBranch(ctx, action.Branch)
		})

	case lifecycle.ActionMergeBranch:
		return e.withResilience(ctx, op, func(ctx context.Context) error {
			return e.vcs.MergeBranch(ctx, action.Source, action.Target)
		})

	case lifecycle.ActionCherryPick:
		return e.withResilience(ctx, op, func(ctx context.Context) error {
			return e.vcs.CherryPick(ctx, action.CommitSHA, action.Branch)
		})

	case lifecycle.ActionCreateTag:
		tag, err := e.tagMgr.Mint(ctx, tagging.MintRequest{
			Prefix:      e.cfg.TagPrefix,
			Version:     dec.Version,
			VersionKind: dec.Kind,
			SHA:         action.SHA,
			Environment: trig.Environment,
			Timestamp:   snap.Now,
		})
		if err != nil {
			return err
		}
		report.Tag = &tag
		return nil

	case lifecycle.ActionOpenPullRequest:
		if e.prs == nil {
			e.logger.Warn("no pull request adapter configured, skipping", "source", action.Source)
			return nil
		}
		return e.withResilience(ctx, op, func(ctx context.Context) error {
			url, err := e.prs.OpenPullRequest(ctx, action.Source, action.Target, action.Title, action.Body)
			if err != nil {
				return err
			}
			report.PullRequestURL = url
			return nil
		})

	case lifecycle.ActionRetireLine:
		// Retirement is a registry flag; the manager already applied it.
		return nil

	default:
		return errors.Internal(op, fmt.Sprintf("unknown action kind %q", action.Kind))
	}
}

// runQualityGate blocks a release from finishing into main when the
// gate fails. Other transitions are not gated.
func (e *Engine) runQualityGate(ctx context.Context, trig lifecycle.Trigger) error {
	const op = "engine.runQualityGate"

	if e.gate == nil || trig.Kind != lifecycle.TriggerPRMerged || trig.HeadRole != branch.RoleRelease {
		return nil
	}

	result, err := e.gate.Run(ctx, trig.HeadBranch)
	if err != nil {
		return errors.TimeoutWrap(err, op, "quality gate did not answer")
	}
	if !result.Passed {
		return errors.Rejected(op, fmt.Sprintf("quality gate failed: %s", result.Reason))
	}
	return nil
}

// applyChangelog prepends the release's changelog entry after a
// release or hotfix finished into main.
func (e *Engine) applyChangelog(ctx context.Context, trig lifecycle.Trigger, dec lifecycle.Decision, snap lifecycle.Snapshot) error {
	const op = "engine.applyChangelog"

	if e.changelogs == nil || trig.Kind != lifecycle.TriggerPRMerged {
		return nil
	}

	entry := changelog.NewEntry(dec.Version, snap.Now, snap.Commits)
	if err := e.changelogs.Apply(ctx, entry); err != nil {
		return errors.IOWrap(err, op, "update changelog")
	}
	return nil
}

func (e *Engine) withResilience(ctx context.Context, op string, operation func(context.Context) error) error {
	if e.resilience == nil {
		return operation(ctx)
	}
	err := e.resilience.Execute(ctx, operation)
	if err != nil && e.metrics != nil && errors.IsRecoverable(err) {
		e.metrics.RetryAttempted(op)
	}
	return err
}

func (e *Engine) record(trig lifecycle.Trigger, outcome string) {
	if e.metrics != nil {
		e.metrics.TriggerHandled(string(trig.Kind), outcome)
	}
}

// roleOf maps a branch name onto its GitFlow role by configured naming.
func (e *Engine) roleOf(name string) branch.Role {
	switch {
	case name == e.cfg.MainBranch:
		return branch.RoleMain
	case name == e.cfg.DevelopBranch:
		return branch.RoleDevelop
	case strings.HasPrefix(name, e.cfg.ReleasePrefix):
		return branch.RoleRelease
	case strings.HasPrefix(name, e.cfg.HotfixPrefix):
		return branch.RoleHotfix
	case strings.HasPrefix(name, e.cfg.SupportPrefix):
		return branch.RoleSupport
	default:
		return branch.RoleFeature
	}
}

func (e *Engine) embeddedVersion(name string) string {
	if strings.HasPrefix(name, e.cfg.ReleasePrefix) || strings.HasPrefix(name, e.cfg.HotfixPrefix) {
		return strings.TrimPrefix(strings.TrimPrefix(name, e.cfg.ReleasePrefix), e.cfg.HotfixPrefix)
	}
	return ""
}

// lockKey scopes the run lock: release and hotfix cycles each serialize
// on their role, support operations on their line.
func lockKey(trig lifecycle.Trigger) string {
	switch trig.Kind {
	case lifecycle.TriggerSupportWindowExpired, lifecycle.TriggerRetireConfirmed:
		if trig.LineID != "" {
			return "support:" + trig.LineID
		}
		return "support"
	case lifecycle.TriggerManualPromote:
		return "promote:" + trig.Environment
	default:
		if trig.Label == lifecycle.LabelHotfix || trig.HeadRole == branch.RoleHotfix {
			return "hotfix"
		}
		return "release"
	}
}

// latestFromTags returns the highest plain release version among the
// given tag names, nil when none parses.
func latestFromTags(tags map[string]string, prefix string) *version.SemanticVersion {
	names := make([]string, 0, len(tags))
	for name := range tags {
		names = append(names, name)
	}
	sort.Strings(names)

	var latest *version.SemanticVersion
	for _, name := range names {
		if !strings.HasPrefix(name, prefix) {
			continue
		}
		v, err := version.Parse(strings.TrimPrefix(name, prefix))
		if err != nil || v.IsPrerelease() || v.Metadata() != "" {
			continue
		}
		if latest == nil || v.GreaterThan(*latest) {
			latest = &v
		}
	}
	return latest
}

func firstWithPrefix(names []string, prefix string) string {
	sorted := make([]string, len(names))
	copy(sorted, names)
	sort.Strings(sorted)
	for _, name := range sorted {
		if strings.HasPrefix(name, prefix) {
			return name
		}
	}
	return ""
}
