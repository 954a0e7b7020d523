package lock

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/Ning0612/drivemirror/internal/domain"
)

func newTestLock(t *testing.T, path string) *FileLock {
	t.Helper()
	l, err := NewFileLock(path)
	if err != nil {
		t.Fatalf("NewFileLock failed: %v", err)
	}
	t.Cleanup(func() { l.Release() })
	return l
}

func TestNewFileLock(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "state")
	path := filepath.Join(dir, "metadata.json.lock")

	l := newTestLock(t, path)

	if l.Path() != path {
		t.Errorf("Path() = %s, want %s", l.Path(), path)
	}
	if _, err := os.Stat(dir); err != nil {
		t.Errorf("lock directory not created: %v", err)
	}

	if _, err := NewFileLock(""); err == nil {
		t.Error("expected error for empty path")
	}
}

func TestAcquireRelease(t *testing.T) {
	path := filepath.Join(t.TempDir(), "m.lock")
	l := newTestLock(t, path)

	if err := l.Acquire("folder-1"); err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	if !l.IsLocked() {
		t.Error("lock should be held after Acquire")
	}

	holder, err := l.Holder()
	if err != nil {
		t.Fatalf("Holder failed: %v", err)
	}
	if holder.PID != os.Getpid() || holder.FolderID != "folder-1" {
		t.Errorf("unexpected holder: %+v", holder)
	}

	if err := l.Release(); err != nil {
		t.Fatalf("Release failed: %v", err)
	}
	if l.IsLocked() {
		t.Error("lock should be free after Release")
	}
	if _, err := l.Holder(); err == nil {
		t.Error("holder info should be removed after Release")
	}

	// Releasing again is a no-op
	if err := l.Release(); err != nil {
		t.Errorf("second Release failed: %v", err)
	}
}

func TestAcquireTwice_SameInstance(t *testing.T) {
	l := newTestLock(t, filepath.Join(t.TempDir(), "m.lock"))

	if err := l.Acquire("a"); err != nil {
		t.Fatalf("first Acquire failed: %v", err)
	}
	if err := l.Acquire("b"); err != nil {
		t.Fatalf("second Acquire on same instance failed: %v", err)
	}

	holder, err := l.Holder()
	if err != nil {
		t.Fatalf("Holder failed: %v", err)
	}
	if holder.FolderID != "b" {
		t.Errorf("expected folder b, got %s", holder.FolderID)
	}
}

func TestAcquire_ContendedReturnsSyncInProgress(t *testing.T) {
	path := filepath.Join(t.TempDir(), "m.lock")
	first := newTestLock(t, path)
	second := newTestLock(t, path)

	if err := first.Acquire("folder-1"); err != nil {
		t.Fatalf("first Acquire failed: %v", err)
	}

	err := second.Acquire("folder-1")
	if !errors.Is(err, domain.ErrSyncInProgress) {
		t.Fatalf("expected ErrSyncInProgress, got %v", err)
	}
	var lockErr *LockError
	if !errors.As(err, &lockErr) {
		t.Fatalf("expected *LockError, got %T", err)
	}
	if lockErr.Holder == nil || lockErr.Holder.PID != os.Getpid() {
		t.Errorf("expected holder info, got %+v", lockErr.Holder)
	}

	if err := first.Release(); err != nil {
		t.Fatalf("Release failed: %v", err)
	}
	if err := second.Acquire("folder-1"); err != nil {
		t.Errorf("Acquire after release failed: %v", err)
	}
}

func TestConcurrentAcquire(t *testing.T) {
	path := filepath.Join(t.TempDir(), "m.lock")

	const workers = 8
	var wg sync.WaitGroup
	var mu sync.Mutex
	acquired := 0
	locks := make([]*FileLock, workers)

	for i := 0; i < workers; i++ {
		locks[i] = newTestLock(t, path)
	}

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(l *FileLock) {
			defer wg.Done()
			if err := l.Acquire("f"); err == nil {
				mu.Lock()
				acquired++
				mu.Unlock()
			}
		}(locks[i])
	}
	wg.Wait()

	if acquired != 1 {
		t.Errorf("expected exactly 1 holder, got %d", acquired)
	}
}

func TestLockError(t *testing.T) {
	err := &LockError{Reason: "busy"}
	if err.Error() != "cannot acquire lock: busy" {
		t.Errorf("unexpected message: %s", err.Error())
	}

	withHolder := &LockError{Holder: &LockInfo{PID: 42, Hostname: "box", FolderID: "f"}, Reason: "busy"}
	if !errors.Is(withHolder, domain.ErrSyncInProgress) {
		t.Error("LockError should unwrap to ErrSyncInProgress")
	}
	var other *LockError
	if errors.As(errors.New("other"), &other) {
		t.Error("plain error is not a LockError")
	}
}
