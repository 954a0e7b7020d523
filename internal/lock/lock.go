package lock

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"

	"github.com/Ning0612/drivemirror/internal/domain"
)

// LockInfo contains metadata about the lock holder
type LockInfo struct {
	PID       int       `json:"pid"`
	Hostname  string    `json:"hostname"`
	StartTime time.Time `json:"start_time"`
	FolderID  string    `json:"folder_id,omitempty"`
}

// FileLock prevents two sync runs from sharing a metadata record.
// The OS releases the lock when the holder exits, so a crashed run never
// leaves a stale lock behind.
type FileLock struct {
	path  string
	flock *flock.Flock
	info  *LockInfo
}

// NewFileLock creates a lock backed by the file at path
func NewFileLock(path string) (*FileLock, error) {
	if path == "" {
		return nil, errors.New("lock path cannot be empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create lock directory: %w", err)
	}

	return &FileLock{
		path:  path,
		flock: flock.New(path),
	}, nil
}

// Path returns the lock file path
func (l *FileLock) Path() string {
	return l.path
}

// Acquire takes the lock without blocking.
// If another run holds it, a *LockError wrapping domain.ErrSyncInProgress is returned.
func (l *FileLock) Acquire(folderID string) error {
	if l.info != nil {
		l.info.FolderID = folderID
		return l.writeInfo(l.info)
	}

	locked, err := l.flock.TryLock()
	if err != nil {
		return fmt.Errorf("failed to acquire lock %s: %w", l.path, err)
	}
	if !locked {
		holder, _ := l.Holder()
		return &LockError{Holder: holder, Reason: "another sync is running"}
	}

	hostname, _ := os.Hostname()
	info := &LockInfo{
		PID:       os.Getpid(),
		Hostname:  hostname,
		StartTime: time.Now(),
		FolderID:  folderID,
	}
	if err := l.writeInfo(info); err != nil {
		l.flock.Unlock()
		return err
	}

	l.info = info
	return nil
}

// Release releases the lock; releasing an unheld lock is a no-op
func (l *FileLock) Release() error {
	if l.info == nil {
		return nil
	}

	if err := os.Remove(l.infoPath()); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove lock info: %w", err)
	}
	if err := l.flock.Unlock(); err != nil {
		return fmt.Errorf("failed to release lock: %w", err)
	}

	l.info = nil
	return nil
}

// IsLocked checks whether any run currently holds the lock
func (l *FileLock) IsLocked() bool {
	if l.info != nil {
		return true
	}

	check := flock.New(l.path)
	locked, err := check.TryLock()
	if err != nil {
		return false
	}
	if locked {
		check.Unlock()
		return false
	}
	return true
}

// Holder returns information about the current lock holder
func (l *FileLock) Holder() (*LockInfo, error) {
	data, err := os.ReadFile(l.infoPath())
	if err != nil {
		return nil, err
	}

	var info LockInfo
	if err := json.Unmarshal(data, &info); err != nil {
		return nil, fmt.Errorf("invalid lock info format: %w", err)
	}

	return &info, nil
}

// infoPath is a sidecar file; the lock file itself may be unreadable while locked on Windows
func (l *FileLock) infoPath() string {
	return l.path + ".info"
}

func (l *FileLock) writeInfo(info *LockInfo) error {
	data, err := json.MarshalIndent(info, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(l.infoPath(), data, 0644); err != nil {
		return fmt.Errorf("failed to write lock info: %w", err)
	}
	return nil
}

// LockError represents an error when lock cannot be acquired
type LockError struct {
	Holder *LockInfo
	Reason string
}

func (e *LockError) Error() string {
	if e.Holder != nil {
		return fmt.Sprintf("cannot acquire lock: %s (held by PID %d on %s since %s, folder: %s)",
			e.Reason,
			e.Holder.PID,
			e.Holder.Hostname,
			e.Holder.StartTime.Format(time.RFC3339),
			e.Holder.FolderID,
		)
	}
	return fmt.Sprintf("cannot acquire lock: %s", e.Reason)
}

// Unwrap lets callers test for domain.ErrSyncInProgress
func (e *LockError) Unwrap() error {
	return domain.ErrSyncInProgress
}
