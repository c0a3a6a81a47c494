// Package lifecycle drives GitFlow branch transitions: it validates
// triggers against the current repository state and emits the ordered
// action list that realizes each transition.
package lifecycle

import "errors"

// Sentinel errors for lifecycle transitions.
var (
	// ErrIllegalTransition indicates the trigger is not legal in the
	// current state. A rejected transition has no side effects.
	ErrIllegalTransition = errors.New("illegal transition")

	// ErrUnknownTrigger indicates the trigger kind is not recognized.
	ErrUnknownTrigger = errors.New("unknown trigger")
)
