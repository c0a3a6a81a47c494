package lifecycle

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/branchflow/branchflow/internal/domain/branch"
)

// TriggerKind identifies the external event that starts a run.
type TriggerKind string

const (
	// TriggerIssueLabeled fires when a tracking issue receives a
	// release or hotfix label.
	TriggerIssueLabeled TriggerKind = "issue_labeled"
	// TriggerPRMerged fires when a release or hotfix pull request merges.
	TriggerPRMerged TriggerKind = "pr_merged"
	// TriggerManualPromote fires on a manual environment promotion.
	TriggerManualPromote TriggerKind = "manual_promote"
	// TriggerSupportWindowExpired fires on the periodic support window sweep.
	TriggerSupportWindowExpired TriggerKind = "support_window_expired"
	// TriggerRetireConfirmed fires when an operator confirms retirement
	// of an already-expired support line.
	TriggerRetireConfirmed TriggerKind = "retire_confirmed"
)

// Release-flow issue labels.
const (
	LabelReleaseMajor = "release:major"
	LabelReleaseMinor = "release:minor"
	LabelHotfix       = "bug:hotfix"
)

// Trigger is one external event delivered to the engine.
type Trigger struct {
	// ID uniquely identifies the run started by this trigger.
	ID string `json:"id"`
	// Kind is the trigger kind.
	Kind TriggerKind `json:"kind"`
	// Label is the issue label for issue_labeled triggers.
	Label string `json:"label,omitempty"`
	// BaseRole and HeadRole describe the merged PR for pr_merged triggers.
	BaseRole branch.Role `json:"base_role,omitempty"`
	HeadRole branch.Role `json:"head_role,omitempty"`
	// HeadBranch is the source branch of a merged PR.
	HeadBranch string `json:"head_branch,omitempty"`
	// Environment is the promotion target for manual_promote triggers.
	Environment string `json:"environment,omitempty"`
	// SourceBranch is the branch promoted by manual_promote triggers.
	SourceBranch string `json:"source_branch,omitempty"`
	// LineID names the release line for support triggers.
	LineID string `json:"line_id,omitempty"`
	// OccurredAt is when the external event happened.
	OccurredAt time.Time `json:"occurred_at"`
}

// NewTrigger creates a trigger with a fresh run id.
func NewTrigger(kind TriggerKind, occurredAt time.Time) Trigger {
	return Trigger{
		ID:         uuid.NewString(),
		Kind:       kind,
		OccurredAt: occurredAt,
	}
}

// Validate checks the trigger carries the fields its kind requires.
func (t Trigger) Validate() error {
	switch t.Kind {
	case TriggerIssueLabeled:
		switch t.Label {
		case LabelReleaseMajor, LabelReleaseMinor, LabelHotfix:
			return nil
		default:
			return fmt.Errorf("%w: unsupported label %q", ErrUnknownTrigger, t.Label)
		}
	case TriggerPRMerged:
		if !t.BaseRole.IsValid() || !t.HeadRole.IsValid() {
			return fmt.Errorf("%w: pr_merged requires base and head roles", ErrUnknownTrigger)
		}
		return nil
	case TriggerManualPromote:
		if strings.TrimSpace(t.Environment) == "" {
			return fmt.Errorf("%w: manual_promote requires an environment", ErrUnknownTrigger)
		}
		return nil
	case TriggerSupportWindowExpired:
		return nil
	case TriggerRetireConfirmed:
		if strings.TrimSpace(t.LineID) == "" {
			return fmt.Errorf("%w: retire_confirmed requires a line id", ErrUnknownTrigger)
		}
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrUnknownTrigger, t.Kind)
	}
}

// IsReleaseLabel returns true for labels that start a release cycle.
func IsReleaseLabel(label string) bool {
	return label == LabelReleaseMajor || label == LabelReleaseMinor
}
