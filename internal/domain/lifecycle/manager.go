package lifecycle

import (
	"fmt"
	"time"

	"github.com/branchflow/branchflow/internal/domain/branch"
	"github.com/branchflow/branchflow/internal/domain/changes"
	"github.com/branchflow/branchflow/internal/domain/releaseline"
	"github.com/branchflow/branchflow/internal/domain/tagging"
	"github.com/branchflow/branchflow/internal/domain/version"
)

// Config names the long-lived branches and the prefixes used for
// ephemeral and support branches.
type Config struct {
	MainBranch    string
	DevelopBranch string
	ReleasePrefix string
	HotfixPrefix  string
	SupportPrefix string
	// TagPrefix is the release tag prefix; empty means "v".
	TagPrefix string
}

// DefaultConfig returns the conventional GitFlow naming.
func DefaultConfig() Config {
	return Config{
		MainBranch:    "main",
		DevelopBranch: "develop",
		ReleasePrefix: "release/",
		HotfixPrefix:  "hotfix/",
		SupportPrefix: "support/",
		TagPrefix:     "v",
	}
}

// Snapshot is the repository state a transition is decided against. It
// is assembled by the engine before the decision; the manager itself
// performs no I/O, which is what makes rejected transitions free of
// side effects.
type Snapshot struct {
	// LatestTag is the highest release version tagged, nil if none.
	LatestTag *version.SemanticVersion
	// MainHead and DevelopHead are the current branch tips.
	MainHead    string
	DevelopHead string
	// HeadSHA is the tip of the branch the trigger concerns (merged PR
	// head, promotion source).
	HeadSHA string
	// ActiveRelease and ActiveHotfix name in-flight ephemeral branches,
	// empty when none exists.
	ActiveRelease string
	ActiveHotfix  string
	// Tags maps existing tag names to the commits they point at.
	Tags map[string]string
	// Commits is the commit range since the latest tag, oldest first.
	Commits []changes.Commit
	// RunSequence disambiguates repeated runs against the same source.
	RunSequence uint64
	// Now is the decision time.
	Now time.Time
}

// Decision is the computed outcome of a legal transition: the version it
// concerns and the ordered actions that realize it.
type Decision struct {
	Trigger Trigger                 `json:"trigger"`
	Version version.SemanticVersion `json:"-"`
	// VersionString mirrors Version for JSON output.
	VersionString string       `json:"version"`
	Kind          version.Kind `json:"kind,omitempty"`
	TagName       string       `json:"tag_name,omitempty"`
	Actions       ActionList   `json:"actions"`
}

// Manager validates lifecycle transitions and emits their action lists.
// It never executes actions itself; a rejected transition leaves every
// machine and registry untouched (all-or-nothing per transition).
type Manager struct {
	cfg      Config
	calc     *version.Calculator
	registry *releaseline.Registry
	machines map[branch.Role]*CycleMachine
}

// NewManager creates a lifecycle manager over the given release line
// registry.
func NewManager(cfg Config, registry *releaseline.Registry) (*Manager, error) {
	if cfg.TagPrefix == "" {
		cfg.TagPrefix = "v"
	}
	machines := make(map[branch.Role]*CycleMachine, 2)
	for _, role := range []branch.Role{branch.RoleRelease, branch.RoleHotfix} {
		m, err := NewCycleMachine(role)
		if err != nil {
			return nil, err
		}
		machines[role] = m
	}

	return &Manager{
		cfg:      cfg,
		calc:     version.NewCalculator(),
		registry: registry,
		machines: machines,
	}, nil
}

// Registry returns the release line registry the manager consults.
func (m *Manager) Registry() *releaseline.Registry {
	return m.registry
}

// tagName renders a version as a tag name with the configured prefix.
func (m *Manager) tagName(v version.SemanticVersion) string {
	return m.cfg.TagPrefix + v.String()
}

// Decide validates the trigger against the snapshot and returns the
// decision realizing it. The cycle machines are only advanced after all
// validation has passed.
func (m *Manager) Decide(trig Trigger, snap Snapshot) (Decision, error) {
	if err := trig.Validate(); err != nil {
		return Decision{}, err
	}

	m.syncMachines(snap)

	switch trig.Kind {
	case TriggerIssueLabeled:
		if trig.Label == LabelHotfix {
			return m.startHotfix(trig, snap)
		}
		return m.startRelease(trig, snap)
	case TriggerPRMerged:
		return m.finishMerge(trig, snap)
	case TriggerManualPromote:
		return m.promote(trig, snap)
	case TriggerSupportWindowExpired:
		return m.expireSupportWindows(trig, snap)
	case TriggerRetireConfirmed:
		return m.retireConfirmed(trig)
	default:
		return Decision{}, fmt.Errorf("%w: %q", ErrUnknownTrigger, trig.Kind)
	}
}

// syncMachines aligns the per-role cycle machines with the observed
// repository state, so a fresh process sees in-flight branches.
func (m *Manager) syncMachines(snap Snapshot) {
	if snap.ActiveRelease != "" && !m.machines[branch.RoleRelease].IsOpen() {
		_ = m.machines[branch.RoleRelease].Send(EventStart)
	}
	if snap.ActiveHotfix != "" && !m.machines[branch.RoleHotfix].IsOpen() {
		_ = m.machines[branch.RoleHotfix].Send(EventStart)
	}
}

// startRelease handles release:major / release:minor labels: cut a
// release branch from develop and open its PR to main.
func (m *Manager) startRelease(trig Trigger, snap Snapshot) (Decision, error) {
	machine := m.machines[branch.RoleRelease]
	if machine.IsOpen() {
		return Decision{}, fmt.Errorf("%w: release %q is already in flight",
			ErrIllegalTransition, snap.ActiveRelease)
	}

	latest := version.Zero
	if snap.LatestTag != nil {
		latest = *snap.LatestTag
	}

	var target version.SemanticVersion
	switch trig.Label {
	case LabelReleaseMajor:
		target = latest.BumpMajor()
	case LabelReleaseMinor:
		target = latest.BumpMinor()
	}

	// A release whose final version is already tagged cannot be started.
	finalTag := m.tagName(target)
	if sha, exists := snap.Tags[finalTag]; exists {
		return Decision{}, fmt.Errorf("%w: computed version %s is already tagged at %s",
			ErrIllegalTransition, finalTag, sha)
	}

	rc, kind, err := m.calc.Next(version.Context{
		LatestTag:     snap.LatestTag,
		Role:          branch.RoleRelease,
		BranchName:    m.cfg.ReleasePrefix + target.String(),
		BranchVersion: target.String(),
		Commits:       snap.Commits,
		RunSequence:   snap.RunSequence,
		Date:          snap.Now,
	})
	if err != nil {
		return Decision{}, err
	}

	name := m.cfg.ReleasePrefix + target.String()
	actions := ActionList{
		{Kind: ActionCreateBranch, Branch: name, FromRef: m.cfg.DevelopBranch},
		{
			Kind:   ActionOpenPullRequest,
			Source: name,
			Target: m.cfg.MainBranch,
			Title:  fmt.Sprintf("Release %s", target),
			Body:   fmt.Sprintf("Release candidate %s cut from %s.", rc, m.cfg.DevelopBranch),
		},
	}

	if err := machine.Send(EventStart); err != nil {
		return Decision{}, err
	}

	return Decision{
		Trigger:       trig,
		Version:       rc,
		VersionString: rc.String(),
		Kind:          kind,
		TagName:       m.tagName(rc),
		Actions:       actions,
	}, nil
}

// startHotfix handles the bug:hotfix label: cut a hotfix branch from
// main and open its PR back to main.
func (m *Manager) startHotfix(trig Trigger, snap Snapshot) (Decision, error) {
	if snap.LatestTag == nil {
		return Decision{}, fmt.Errorf("%w: hotfix requires an existing release tag on %s",
			ErrIllegalTransition, m.cfg.MainBranch)
	}

	machine := m.machines[branch.RoleHotfix]
	if machine.IsOpen() {
		return Decision{}, fmt.Errorf("%w: hotfix %q is already in flight",
			ErrIllegalTransition, snap.ActiveHotfix)
	}

	v, kind, err := m.calc.Next(version.Context{
		LatestTag:   snap.LatestTag,
		Role:        branch.RoleHotfix,
		Commits:     snap.Commits,
		RunSequence: snap.RunSequence,
		Date:        snap.Now,
	})
	if err != nil {
		return Decision{}, err
	}

	name := m.cfg.HotfixPrefix + v.String()
	actions := ActionList{
		{Kind: ActionCreateBranch, Branch: name, FromRef: m.cfg.MainBranch},
		{
			Kind:   ActionOpenPullRequest,
			Source: name,
			Target: m.cfg.MainBranch,
			Title:  fmt.Sprintf("Hotfix %s", v),
		},
	}

	if err := machine.Send(EventStart); err != nil {
		return Decision{}, err
	}

	return Decision{
		Trigger:       trig,
		Version:       v,
		VersionString: v.String(),
		Kind:          kind,
		TagName:       m.tagName(v),
		Actions:       actions,
	}, nil
}

// finishMerge handles a merged release or hotfix PR: mint the release
// tag, merge main back into develop, delete the ephemeral branch, and
// for hotfixes cherry-pick onto admissible support lines.
func (m *Manager) finishMerge(trig Trigger, snap Snapshot) (Decision, error) {
	if trig.BaseRole != branch.RoleMain {
		return Decision{}, fmt.Errorf("%w: merged PRs are only handled into %s",
			ErrIllegalTransition, m.cfg.MainBranch)
	}

	var machine *CycleMachine
	switch trig.HeadRole {
	case branch.RoleRelease:
		machine = m.machines[branch.RoleRelease]
	case branch.RoleHotfix:
		machine = m.machines[branch.RoleHotfix]
	default:
		return Decision{}, fmt.Errorf("%w: no merge handling for %s branches",
			ErrIllegalTransition, trig.HeadRole)
	}

	if !machine.IsOpen() {
		return Decision{}, fmt.Errorf("%w: no %s branch is in flight",
			ErrIllegalTransition, trig.HeadRole)
	}

	raw := branch.EmbeddedVersion(trig.HeadBranch)
	if raw == "" {
		return Decision{}, fmt.Errorf("%w: branch %q carries no version",
			version.ErrInvalidBranchVersion, trig.HeadBranch)
	}
	v, err := version.Parse(raw)
	if err != nil {
		return Decision{}, fmt.Errorf("%w: %q", version.ErrInvalidBranchVersion, raw)
	}

	tagName := m.tagName(v)
	if sha, exists := snap.Tags[tagName]; exists && sha != snap.MainHead {
		return Decision{}, fmt.Errorf("%w: %s already points at %s",
			tagging.ErrTagConflict, tagName, sha)
	}

	actions := ActionList{
		{Kind: ActionCreateTag, TagName: tagName, SHA: snap.MainHead},
		{Kind: ActionMergeBranch, Source: m.cfg.MainBranch, Target: m.cfg.DevelopBranch},
		{Kind: ActionDeleteBranch, Branch: trig.HeadBranch},
	}

	if trig.HeadRole == branch.RoleHotfix {
		actions = append(actions, m.cherryPickActions(snap)...)
	}

	if err := machine.Send(EventMerged); err != nil {
		return Decision{}, err
	}

	kind := version.KindPatch
	if trig.HeadRole == branch.RoleHotfix {
		kind = version.KindHotfix
	}

	return Decision{
		Trigger:       trig,
		Version:       v,
		VersionString: v.String(),
		Kind:          kind,
		TagName:       tagName,
		Actions:       actions,
	}, nil
}

// cherryPickActions emits a cherry-pick for every active support line
// that admits fixes.
func (m *Manager) cherryPickActions(snap Snapshot) ActionList {
	var actions ActionList
	for _, line := range m.registry.Active() {
		if line.Tier() != releaseline.TierLTS {
			continue
		}
		if !line.Admits(changes.ClassFix) {
			continue
		}
		actions = append(actions, Action{
			Kind:      ActionCherryPick,
			Branch:    m.cfg.SupportPrefix + line.ID(),
			CommitSHA: snap.MainHead,
			LineID:    line.ID(),
		})
	}
	return actions
}

// promote handles a manual environment promotion: no branch is created,
// an environment tag is minted against the source branch head.
func (m *Manager) promote(trig Trigger, snap Snapshot) (Decision, error) {
	if snap.LatestTag == nil {
		return Decision{}, fmt.Errorf("%w: nothing to promote before the first release",
			version.ErrMissingBaseVersion)
	}

	v := *snap.LatestTag
	tagName := tagging.Name(v, tagging.KindEnvironment, tagging.NameOptions{
		Prefix:      m.cfg.TagPrefix,
		Environment: trig.Environment,
		SHA:         snap.HeadSHA,
		Timestamp:   snap.Now,
	})

	return Decision{
		Trigger:       trig,
		Version:       v,
		VersionString: v.String(),
		TagName:       tagName,
		Actions: ActionList{
			{Kind: ActionCreateTag, TagName: tagName, SHA: snap.HeadSHA},
		},
	}, nil
}

// expireSupportWindows flags every line whose window has passed. The
// support branches themselves are kept until retirement is confirmed.
func (m *Manager) expireSupportWindows(trig Trigger, snap Snapshot) (Decision, error) {
	retired := m.registry.ExpireWindows(snap.Now)

	actions := make(ActionList, 0, len(retired))
	for _, id := range retired {
		actions = append(actions, Action{Kind: ActionRetireLine, LineID: id})
	}

	return Decision{
		Trigger: trig,
		Actions: actions,
	}, nil
}

// retireConfirmed deletes the support branch of a line an operator has
// confirmed for retirement. The line itself stays registered, flagged
// retired.
func (m *Manager) retireConfirmed(trig Trigger) (Decision, error) {
	line, err := m.registry.Get(trig.LineID)
	if err != nil {
		return Decision{}, err
	}
	if !line.Retired() {
		return Decision{}, fmt.Errorf("%w: line %q has not reached end of support",
			ErrIllegalTransition, trig.LineID)
	}

	return Decision{
		Trigger: trig,
		Actions: ActionList{
			{Kind: ActionDeleteBranch, Branch: m.cfg.SupportPrefix + line.ID(), LineID: line.ID()},
		},
	}, nil
}
