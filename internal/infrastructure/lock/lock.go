// Package lock provides a file-based advisory lock serializing
// concurrent orchestration runs against the same branch scope.
package lock

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"github.com/branchflow/branchflow/internal/errors"
	"github.com/branchflow/branchflow/internal/fileutil"
)

const (
	// maxLockFileSize bounds lock file reads.
	maxLockFileSize = 4 << 10

	// defaultStaleAfter is how old a lock may be before a new run may
	// take it over. Crashed runs leave their lock file behind.
	defaultStaleAfter = 10 * time.Minute

	// pollInterval is how often Acquire re-checks a held lock.
	pollInterval = 200 * time.Millisecond
)

var unsafeKeyChars = regexp.MustCompile(`[^A-Za-z0-9._-]`)

// Record is the JSON content of a lock file.
type Record struct {
	Key        string    `json:"key"`
	PID        int       `json:"pid"`
	AcquiredAt time.Time `json:"acquired_at"`
}

// Manager implements file-based advisory locks keyed by scope. Lock
// files live in a single directory; acquisition is an O_EXCL create.
type Manager struct {
	dir        string
	staleAfter time.Duration
}

// Option configures the manager.
type Option func(*Manager)

// WithStaleAfter overrides the stale lock takeover age.
func WithStaleAfter(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.staleAfter = d
		}
	}
}

// NewManager creates a lock manager storing lock files under dir.
func NewManager(dir string, opts ...Option) (*Manager, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, errors.IOWrap(err, "lock.NewManager", "failed to create lock directory")
	}

	m := &Manager{dir: dir, staleAfter: defaultStaleAfter}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// Acquire blocks until the lock for key is held or the context is done.
// The returned function releases the lock.
func (m *Manager) Acquire(ctx context.Context, key string) (func() error, error) {
	const op = "lock.Acquire"

	path := m.path(key)
	for {
		ok, err := m.tryAcquire(path, key)
		if err != nil {
			return nil, err
		}
		if ok {
			return func() error { return os.Remove(path) }, nil
		}

		if err := m.takeOverIfStale(path); err != nil {
			return nil, err
		}

		select {
		case <-ctx.Done():
			return nil, errors.TimeoutWrap(ctx.Err(), op,
				fmt.Sprintf("waiting for lock %q", key))
		case <-time.After(pollInterval):
		}
	}
}

// tryAcquire attempts the O_EXCL create. A false return means the lock
// is held by another run.
func (m *Manager) tryAcquire(path, key string) (bool, error) {
	const op = "lock.tryAcquire"

	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0600) // #nosec G304 -- path derives from sanitized key
	if err != nil {
		if os.IsExist(err) {
			return false, nil
		}
		return false, errors.IOWrap(err, op, "failed to create lock file")
	}
	defer f.Close()

	data, err := json.Marshal(Record{
		Key:        key,
		PID:        os.Getpid(),
		AcquiredAt: time.Now().UTC(),
	})
	if err != nil {
		return false, errors.IOWrap(err, op, "failed to encode lock record")
	}
	if _, err := f.Write(data); err != nil {
		_ = os.Remove(path)
		return false, errors.IOWrap(err, op, "failed to write lock record")
	}
	return true, nil
}

// takeOverIfStale removes a lock whose record is older than the stale
// age, so the next poll can claim it.
func (m *Manager) takeOverIfStale(path string) error {
	const op = "lock.takeOverIfStale"

	data, err := fileutil.ReadFileLimited(path, maxLockFileSize)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return errors.IOWrap(err, op, "failed to read lock file")
	}

	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		// A corrupt lock file cannot identify its holder; treat as stale.
		return os.Remove(path)
	}

	if time.Since(rec.AcquiredAt) > m.staleAfter {
		return os.Remove(path)
	}
	return nil
}

// Holder returns the record of the current lock holder for key, if any.
func (m *Manager) Holder(key string) (*Record, error) {
	data, err := fileutil.ReadFileLimited(m.path(key), maxLockFileSize)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.IOWrap(err, "lock.Holder", "failed to read lock file")
	}

	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, errors.IOWrap(err, "lock.Holder", "failed to decode lock record")
	}
	return &rec, nil
}

func (m *Manager) path(key string) string {
	safe := unsafeKeyChars.ReplaceAllString(key, "-")
	return filepath.Join(m.dir, safe+".lock")
}
