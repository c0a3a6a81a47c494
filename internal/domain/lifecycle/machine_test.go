package lifecycle

import (
	"errors"
	"testing"

	"github.com/branchflow/branchflow/internal/domain/branch"
)

func TestCycleMachineStartAndMerge(t *testing.T) {
	m, err := NewCycleMachine(branch.RoleRelease)
	if err != nil {
		t.Fatalf("NewCycleMachine: %v", err)
	}

	if m.State() != CycleIdle {
		t.Fatalf("initial state = %q, want %q", m.State(), CycleIdle)
	}
	if m.IsOpen() {
		t.Fatal("fresh machine reports open")
	}

	if err := m.Send(EventStart); err != nil {
		t.Fatalf("Send(START): %v", err)
	}
	if !m.IsOpen() {
		t.Fatal("machine not open after START")
	}

	if err := m.Send(EventMerged); err != nil {
		t.Fatalf("Send(MERGED): %v", err)
	}
	if m.State() != CycleIdle {
		t.Fatalf("state after MERGED = %q, want %q", m.State(), CycleIdle)
	}
}

func TestCycleMachineRejectsIllegalEvents(t *testing.T) {
	m, err := NewCycleMachine(branch.RoleHotfix)
	if err != nil {
		t.Fatalf("NewCycleMachine: %v", err)
	}

	// Nothing to merge while idle.
	if err := m.Send(EventMerged); !errors.Is(err, ErrIllegalTransition) {
		t.Fatalf("Send(MERGED) while idle = %v, want ErrIllegalTransition", err)
	}

	if err := m.Send(EventStart); err != nil {
		t.Fatalf("Send(START): %v", err)
	}

	// No second cycle while one is open.
	if err := m.Send(EventStart); !errors.Is(err, ErrIllegalTransition) {
		t.Fatalf("Send(START) while open = %v, want ErrIllegalTransition", err)
	}

	// The failed sends must not have moved the machine.
	if !m.IsOpen() {
		t.Fatal("rejected event changed machine state")
	}
}

func TestCycleMachineCancelReturnsToIdle(t *testing.T) {
	m, err := NewCycleMachine(branch.RoleRelease)
	if err != nil {
		t.Fatalf("NewCycleMachine: %v", err)
	}

	if err := m.Send(EventStart); err != nil {
		t.Fatalf("Send(START): %v", err)
	}
	if err := m.Send(EventCancel); err != nil {
		t.Fatalf("Send(CANCEL): %v", err)
	}
	if m.State() != CycleIdle {
		t.Fatalf("state after CANCEL = %q, want %q", m.State(), CycleIdle)
	}
}

func TestCanTransitionTo(t *testing.T) {
	tests := []struct {
		from CycleState
		to   CycleState
		want bool
	}{
		{CycleIdle, CycleOpen, true},
		{CycleIdle, CycleIdle, false},
		{CycleOpen, CycleIdle, true},
		{CycleOpen, CycleOpen, false},
	}

	for _, tt := range tests {
		if got := tt.from.CanTransitionTo(tt.to); got != tt.want {
			t.Errorf("CanTransitionTo(%q -> %q) = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}
