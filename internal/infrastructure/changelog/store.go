// Package changelog provides the file-backed store for the cumulative
// changelog document.
package changelog

import (
	"context"
	"os"
	"sync"

	domain "github.com/branchflow/branchflow/internal/domain/changelog"
	"github.com/branchflow/branchflow/internal/errors"
	"github.com/branchflow/branchflow/internal/fileutil"
)

// maxChangelogSize bounds changelog reads (4MB).
const maxChangelogSize = 4 << 20

// FileStore persists the changelog document at a fixed path. Writes are
// atomic and serialized, so concurrent runs cannot interleave sections.
type FileStore struct {
	path     string
	renderer *domain.Renderer
	mu       sync.Mutex
}

// NewFileStore creates a store writing to the given path.
func NewFileStore(path string) *FileStore {
	return &FileStore{
		path:     path,
		renderer: domain.NewRenderer(),
	}
}

// Path returns the document path.
func (s *FileStore) Path() string {
	return s.path
}

// Apply merges the entry into the document and writes it back. A missing
// document is created with the standard header. Applying the same
// version again replaces its section.
func (s *FileStore) Apply(ctx context.Context, entry domain.Entry) error {
	const op = "changelog.Apply"

	if err := ctx.Err(); err != nil {
		return errors.IOWrap(err, op, "operation canceled")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	document, err := s.read()
	if err != nil {
		return err
	}

	merged, err := s.renderer.Merge(document, entry)
	if err != nil {
		return errors.IOWrap(err, op, "failed to merge entry")
	}

	if err := fileutil.AtomicWriteFile(s.path, []byte(merged), 0644); err != nil {
		return errors.IOWrap(err, op, "failed to write changelog")
	}
	return nil
}

// Read returns the current document, empty when none exists yet.
func (s *FileStore) Read() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.read()
}

func (s *FileStore) read() (string, error) {
	data, err := fileutil.ReadFileLimited(s.path, maxChangelogSize)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", errors.IOWrap(err, "changelog.read", "failed to read changelog")
	}
	return string(data), nil
}
