package lock

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/branchflow/branchflow/internal/errors"
)

func TestAcquireAndRelease(t *testing.T) {
	m, err := NewManager(t.TempDir())
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}

	release, err := m.Acquire(context.Background(), "release")
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}

	holder, err := m.Holder("release")
	if err != nil {
		t.Fatalf("Holder: %v", err)
	}
	if holder == nil || holder.PID != os.Getpid() {
		t.Fatalf("holder = %+v, want this process", holder)
	}

	if err := release(); err != nil {
		t.Fatalf("release: %v", err)
	}

	holder, err = m.Holder("release")
	if err != nil {
		t.Fatalf("Holder after release: %v", err)
	}
	if holder != nil {
		t.Errorf("holder after release = %+v, want none", holder)
	}
}

func TestAcquireBlocksUntilReleased(t *testing.T) {
	m, err := NewManager(t.TempDir())
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}

	release, err := m.Acquire(context.Background(), "hotfix")
	if err != nil {
		t.Fatalf("first Acquire: %v", err)
	}

	acquired := make(chan error, 1)
	go func() {
		second, err := m.Acquire(context.Background(), "hotfix")
		if err == nil {
			_ = second()
		}
		acquired <- err
	}()

	// The second acquire must still be waiting.
	select {
	case err := <-acquired:
		t.Fatalf("second Acquire returned %v while lock was held", err)
	case <-time.After(300 * time.Millisecond):
	}

	if err := release(); err != nil {
		t.Fatalf("release: %v", err)
	}

	select {
	case err := <-acquired:
		if err != nil {
			t.Fatalf("second Acquire after release: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("second Acquire did not proceed after release")
	}
}

func TestAcquireHonorsContext(t *testing.T) {
	m, err := NewManager(t.TempDir())
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}

	release, err := m.Acquire(context.Background(), "release")
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	defer func() { _ = release() }()

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	_, err = m.Acquire(ctx, "release")
	if !errors.IsKind(err, errors.KindTimeout) {
		t.Fatalf("Acquire = %v, want KindTimeout", err)
	}
}

func TestStaleLockIsTakenOver(t *testing.T) {
	dir := t.TempDir()
	m, err := NewManager(dir, WithStaleAfter(50*time.Millisecond))
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}

	if _, err := m.Acquire(context.Background(), "release"); err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	// The holder never releases; its lock ages past the stale window.
	time.Sleep(100 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	release, err := m.Acquire(ctx, "release")
	if err != nil {
		t.Fatalf("Acquire over stale lock: %v", err)
	}
	_ = release()
}

func TestCorruptLockFileIsTakenOver(t *testing.T) {
	dir := t.TempDir()
	m, err := NewManager(dir)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}

	if err := os.WriteFile(filepath.Join(dir, "release.lock"), []byte("{not json"), 0600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	release, err := m.Acquire(ctx, "release")
	if err != nil {
		t.Fatalf("Acquire over corrupt lock: %v", err)
	}
	_ = release()
}

func TestKeySanitization(t *testing.T) {
	m, err := NewManager(t.TempDir())
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}

	release, err := m.Acquire(context.Background(), "support:1.x/extra")
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	defer func() { _ = release() }()

	if _, err := os.Stat(filepath.Join(m.dir, "support-1.x-extra.lock")); err != nil {
		t.Errorf("sanitized lock file missing: %v", err)
	}
}
