package releaseline

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/branchflow/branchflow/internal/domain/changes"
)

// Sentinel errors for the registry.
var (
	// ErrDuplicateTier indicates a second current or next line was
	// registered while one is already active.
	ErrDuplicateTier = errors.New("duplicate tier")

	// ErrLineNotFound indicates the line id is not registered.
	ErrLineNotFound = errors.New("release line not found")
)

// Registry maintains the set of active release lines. Any number of LTS
// lines may be active concurrently; current and next tiers are exclusive.
type Registry struct {
	mu    sync.RWMutex
	lines map[string]*Line
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{lines: make(map[string]*Line)}
}

// Register adds a line to the registry. It fails with ErrDuplicateTier
// when an exclusive tier is already occupied by an active line, and
// rejects duplicate line ids.
func (r *Registry) Register(line *Line) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.lines[line.ID()]; exists {
		return fmt.Errorf("release line %q already registered", line.ID())
	}

	if line.Tier().Exclusive() {
		for _, existing := range r.lines {
			if existing.Tier() == line.Tier() && !existing.Retired() {
				return fmt.Errorf("%w: %s line %q is already active",
					ErrDuplicateTier, line.Tier(), existing.ID())
			}
		}
	}

	r.lines[line.ID()] = line
	return nil
}

// Get returns a registered line.
func (r *Registry) Get(lineID string) (*Line, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	line, ok := r.lines[lineID]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrLineNotFound, lineID)
	}
	return line, nil
}

// AdmissibleChange reports whether the line admits the given commit
// class. Retired lines admit nothing.
func (r *Registry) AdmissibleChange(lineID string, class changes.CommitClass) (bool, error) {
	line, err := r.Get(lineID)
	if err != nil {
		return false, err
	}
	return line.Admits(class), nil
}

// Retire flags a line as retired. Retirement is idempotent and never
// deletes the line.
func (r *Registry) Retire(lineID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	line, ok := r.lines[lineID]
	if !ok {
		return fmt.Errorf("%w: %q", ErrLineNotFound, lineID)
	}
	line.retired = true
	return nil
}

// ExpireWindows flags every line whose support window has passed and
// returns the ids of lines retired by this sweep.
func (r *Registry) ExpireWindows(now time.Time) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	var retired []string
	for id, line := range r.lines {
		if !line.retired && line.Expired(now) {
			line.retired = true
			retired = append(retired, id)
		}
	}
	sort.Strings(retired)
	return retired
}

// Active returns all non-retired lines sorted by id.
func (r *Registry) Active() []*Line {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*Line
	for _, line := range r.lines {
		if !line.retired {
			out = append(out, line)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].id < out[j].id })
	return out
}

// All returns every registered line, retired included, sorted by id.
func (r *Registry) All() []*Line {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Line, 0, len(r.lines))
	for _, line := range r.lines {
		out = append(out, line)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].id < out[j].id })
	return out
}

// Current returns the active current-tier line, if one exists.
func (r *Registry) Current() (*Line, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, line := range r.lines {
		if line.Tier() == TierCurrent && !line.retired {
			return line, true
		}
	}
	return nil, false
}
