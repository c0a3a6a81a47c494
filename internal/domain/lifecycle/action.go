package lifecycle

import "fmt"

// ActionKind identifies one externally-executed step of a transition.
type ActionKind string

const (
	// ActionCreateBranch creates a branch from a base ref.
	ActionCreateBranch ActionKind = "create_branch"
	// ActionDeleteBranch deletes a branch.
	ActionDeleteBranch ActionKind = "delete_branch"
	// ActionMergeBranch merges a source branch into a target branch.
	ActionMergeBranch ActionKind = "merge_branch"
	// ActionCreateTag mints a tag at a commit.
	ActionCreateTag ActionKind = "create_tag"
	// ActionOpenPullRequest opens a pull request.
	ActionOpenPullRequest ActionKind = "open_pull_request"
	// ActionCherryPick cherry-picks a commit onto a support branch.
	ActionCherryPick ActionKind = "cherry_pick"
	// ActionRetireLine flags a release line as retired.
	ActionRetireLine ActionKind = "retire_line"
)

// Action is one ordered, replayable step of a transition. Fields are
// populated per kind; unused fields stay empty.
type Action struct {
	Kind ActionKind `json:"kind"`

	// Branch operations.
	Branch  string `json:"branch,omitempty"`
	FromRef string `json:"from_ref,omitempty"`

	// Merge operations.
	Source string `json:"source,omitempty"`
	Target string `json:"target,omitempty"`

	// Tag operations.
	TagName string `json:"tag_name,omitempty"`
	SHA     string `json:"sha,omitempty"`

	// Pull request operations.
	Title string `json:"title,omitempty"`
	Body  string `json:"body,omitempty"`

	// Support line operations.
	LineID    string `json:"line_id,omitempty"`
	CommitSHA string `json:"commit_sha,omitempty"`
}

// String renders a short human-readable description of the action.
func (a Action) String() string {
	switch a.Kind {
	case ActionCreateBranch:
		return fmt.Sprintf("create branch %s from %s", a.Branch, a.FromRef)
	case ActionDeleteBranch:
		return fmt.Sprintf("delete branch %s", a.Branch)
	case ActionMergeBranch:
		return fmt.Sprintf("merge %s into %s", a.Source, a.Target)
	case ActionCreateTag:
		return fmt.Sprintf("tag %s at %s", a.TagName, a.SHA)
	case ActionOpenPullRequest:
		return fmt.Sprintf("open PR %s -> %s", a.Source, a.Target)
	case ActionCherryPick:
		return fmt.Sprintf("cherry-pick %s onto %s", a.CommitSHA, a.Branch)
	case ActionRetireLine:
		return fmt.Sprintf("retire line %s", a.LineID)
	default:
		return string(a.Kind)
	}
}

// ActionList is the ordered, replayable result of a transition.
type ActionList []Action

// Kinds returns the kinds of all actions, in order.
func (l ActionList) Kinds() []ActionKind {
	kinds := make([]ActionKind, len(l))
	for i, a := range l {
		kinds[i] = a.Kind
	}
	return kinds
}
