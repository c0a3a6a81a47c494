package lifecycle

import (
	"fmt"

	"github.com/felixgeelhaar/statekit"

	"github.com/branchflow/branchflow/internal/domain/branch"
)

// CycleState is the state of one ephemeral-branch cycle.
type CycleState string

const (
	// CycleIdle means no branch of the cycle's role is in flight.
	CycleIdle CycleState = "idle"
	// CycleOpen means a branch is in flight with an open PR to main.
	CycleOpen CycleState = "open"
)

// CanTransitionTo returns true if moving to the target state is legal.
func (s CycleState) CanTransitionTo(target CycleState) bool {
	switch s {
	case CycleIdle:
		return target == CycleOpen
	case CycleOpen:
		return target == CycleIdle
	default:
		return false
	}
}

// Event names for the cycle state machine.
const (
	EventStart  statekit.EventType = "START"
	EventMerged statekit.EventType = "MERGED"
	EventCancel statekit.EventType = "CANCEL"
)

// State IDs for the cycle state machine.
var (
	StateIDIdle statekit.StateID = statekit.StateID(CycleIdle)
	StateIDOpen statekit.StateID = statekit.StateID(CycleOpen)
)

// CycleContext is the context carried by the cycle state machine.
type CycleContext struct {
	Role   branch.Role
	Branch string
}

// CycleMachine tracks whether an ephemeral branch of one role is in
// flight. One machine exists per (role, release line), matching the
// advisory lock granularity.
type CycleMachine struct {
	role        branch.Role
	interpreter *statekit.Interpreter[CycleContext]
}

// NewCycleMachine builds the cycle machine for a branch role.
func NewCycleMachine(role branch.Role) (*CycleMachine, error) {
	machine, err := statekit.NewMachine[CycleContext](fmt.Sprintf("%s-cycle", role)).
		WithInitial(StateIDIdle).
		State(StateIDIdle).
		On(EventStart).Target(StateIDOpen).
		Done().
		State(StateIDOpen).
		On(EventMerged).Target(StateIDIdle).
		On(EventCancel).Target(StateIDIdle).
		Done().
		Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build cycle machine: %w", err)
	}

	interp := statekit.NewInterpreter(machine)
	interp.Start()

	return &CycleMachine{
		role:        role,
		interpreter: interp,
	}, nil
}

// Role returns the branch role this machine tracks.
func (m *CycleMachine) Role() branch.Role {
	return m.role
}

// State returns the current cycle state.
func (m *CycleMachine) State() CycleState {
	return CycleState(m.interpreter.State().Value)
}

// IsOpen returns true while a branch of this role is in flight.
func (m *CycleMachine) IsOpen() bool {
	return m.State() == CycleOpen
}

// Send validates and applies an event. Invalid events are rejected with
// ErrIllegalTransition before the interpreter sees them, so a rejected
// event never mutates machine state.
func (m *CycleMachine) Send(event statekit.EventType) error {
	target, ok := m.targetFor(event)
	if !ok || !m.State().CanTransitionTo(target) {
		return fmt.Errorf("%w: event %s in state %s for %s cycle",
			ErrIllegalTransition, event, m.State(), m.role)
	}
	m.interpreter.Send(statekit.Event{Type: event})
	return nil
}

// targetFor maps an event to the state it leads to from the current state.
func (m *CycleMachine) targetFor(event statekit.EventType) (CycleState, bool) {
	switch event {
	case EventStart:
		return CycleOpen, m.State() == CycleIdle
	case EventMerged, EventCancel:
		return CycleIdle, m.State() == CycleOpen
	default:
		return "", false
	}
}
