package tagging

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/branchflow/branchflow/internal/domain/version"
)

// Sentinel errors for tag minting.
var (
	// ErrTagConflict indicates the tag name already points at a
	// different commit. Tags are write-once per name.
	ErrTagConflict = errors.New("tag conflict")

	// ErrNotTaggable indicates the version kind is never minted as a tag
	// (dev build identifiers).
	ErrNotTaggable = errors.New("version is not taggable")
)

// Store is the backing tag storage, implemented by the VCS adapter.
// Create must behave as a compare-and-set: it fails if the name exists.
type Store interface {
	// Lookup returns the commit a tag points at, if the tag exists.
	Lookup(ctx context.Context, name string) (sha string, found bool, err error)

	// Create records a new tag. It must fail if the name already exists.
	Create(ctx context.Context, name, sha string) error
}

// Manager mints canonical tags idempotently against a Store.
type Manager struct {
	store Store
}

// NewManager creates a tag manager over the given store.
func NewManager(store Store) *Manager {
	return &Manager{store: store}
}

// MintRequest describes a tag to mint.
type MintRequest struct {
	// Prefix is the configured release tag prefix; empty means "v".
	Prefix string
	// Version is the version the tag marks.
	Version version.SemanticVersion
	// VersionKind is the kind the calculator assigned to the version.
	VersionKind version.Kind
	// SHA is the commit the tag must point at.
	SHA string
	// Environment is the promotion target for environment tags.
	Environment string
	// Service is the optional service prefix for support-line tags.
	Service string
	// Support marks the mint as a support-line release.
	Support bool
	// Timestamp is the mint time, used in environment tag names.
	Timestamp time.Time
}

// kind resolves the tag kind for the request.
func (r MintRequest) kind() (Kind, error) {
	if r.Environment != "" {
		return KindEnvironment, nil
	}
	if r.Support {
		return KindSupport, nil
	}
	k, ok := KindForVersion(r.VersionKind)
	if !ok {
		return "", fmt.Errorf("%w: %s versions are ephemeral build identifiers", ErrNotTaggable, r.VersionKind)
	}
	return k, nil
}

// Mint creates the canonical tag for the request. Minting is idempotent:
// if the tag already exists pointing at the same commit, the existing tag
// is returned with no error; if it points elsewhere, Mint fails with
// ErrTagConflict and changes nothing.
func (m *Manager) Mint(ctx context.Context, req MintRequest) (Tag, error) {
	kind, err := req.kind()
	if err != nil {
		return Tag{}, err
	}

	name := Name(req.Version, kind, NameOptions{
		Prefix:      req.Prefix,
		Environment: req.Environment,
		Service:     req.Service,
		SHA:         req.SHA,
		Timestamp:   req.Timestamp,
	})

	existingSHA, found, err := m.store.Lookup(ctx, name)
	if err != nil {
		return Tag{}, fmt.Errorf("lookup tag %q: %w", name, err)
	}
	if found {
		if existingSHA == req.SHA {
			return NewTag(name, req.Version, kind, req.SHA), nil
		}
		return Tag{}, fmt.Errorf("%w: %q already points at %s, requested %s",
			ErrTagConflict, name, existingSHA, req.SHA)
	}

	if err := m.store.Create(ctx, name, req.SHA); err != nil {
		// The store may race a concurrent mint; re-check to distinguish
		// "already satisfied" from a true conflict.
		if sha, ok, lookupErr := m.store.Lookup(ctx, name); lookupErr == nil && ok {
			if sha == req.SHA {
				return NewTag(name, req.Version, kind, req.SHA), nil
			}
			return Tag{}, fmt.Errorf("%w: %q already points at %s, requested %s",
				ErrTagConflict, name, sha, req.SHA)
		}
		return Tag{}, fmt.Errorf("create tag %q: %w", name, err)
	}

	return NewTag(name, req.Version, kind, req.SHA), nil
}

// Exists reports whether a tag name is already minted.
func (m *Manager) Exists(ctx context.Context, name string) (bool, error) {
	_, found, err := m.store.Lookup(ctx, name)
	return found, err
}

// MemoryStore is an in-memory Store for tests and dry runs.
type MemoryStore struct {
	mu   sync.RWMutex
	tags map[string]string
}

// NewMemoryStore creates an empty in-memory tag store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{tags: make(map[string]string)}
}

// Lookup implements Store.
func (s *MemoryStore) Lookup(_ context.Context, name string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sha, ok := s.tags[name]
	return sha, ok, nil
}

// Create implements Store.
func (s *MemoryStore) Create(_ context.Context, name, sha string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tags[name]; ok {
		return fmt.Errorf("tag %q already exists", name)
	}
	s.tags[name] = sha
	return nil
}

// Names returns all tag names in sorted order.
func (s *MemoryStore) Names() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.tags))
	for name := range s.tags {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
