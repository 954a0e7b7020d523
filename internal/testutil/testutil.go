package testutil

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/spf13/afero"

	"github.com/Ning0612/drivemirror/internal/adapter"
	"github.com/Ning0612/drivemirror/internal/domain"
)

// FakeRemote is an in-memory adapter.RemoteStorageClient
type FakeRemote struct {
	mu       sync.Mutex
	entries  []domain.RemoteEntry
	contents map[string][]byte

	// ListErr is returned by List when set
	ListErr error
	// FetchErr maps file IDs to errors returned by Fetch
	FetchErr map[string]error
	// BreakAfter maps file IDs to a byte count after which the stream fails
	BreakAfter map[string]int
	// BreakErr overrides the error a BreakAfter stream ends with; io.EOF
	// yields a clean but short body
	BreakErr map[string]error

	ListCalls  int
	FetchCalls []string
}

// NewFakeRemote creates an empty fake remote
func NewFakeRemote() *FakeRemote {
	return &FakeRemote{
		contents:   make(map[string][]byte),
		FetchErr:   make(map[string]error),
		BreakAfter: make(map[string]int),
		BreakErr:   make(map[string]error),
	}
}

// AddFile appends a file to the listing.
// The size and MD5 checksum of the entry are derived from content.
func (f *FakeRemote) AddFile(id, name, modifiedTime string, content []byte) domain.RemoteEntry {
	f.mu.Lock()
	defer f.mu.Unlock()

	entry := domain.RemoteEntry{
		Name:         name,
		ID:           id,
		ModifiedTime: modifiedTime,
		Size:         int64(len(content)),
		MD5Checksum:  MD5Hex(content),
		MimeType:     "text/csv",
	}
	f.entries = append(f.entries, entry)
	f.contents[id] = content
	return entry
}

// SetModifiedTime changes the listed timestamp and content of an existing file
func (f *FakeRemote) SetModifiedTime(id, modifiedTime string, content []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for i := range f.entries {
		if f.entries[i].ID == id {
			f.entries[i].ModifiedTime = modifiedTime
			f.entries[i].Size = int64(len(content))
			f.entries[i].MD5Checksum = MD5Hex(content)
		}
	}
	f.contents[id] = content
}

// Remove drops a file from the listing
func (f *FakeRemote) Remove(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	kept := f.entries[:0]
	for _, e := range f.entries {
		if e.ID != id {
			kept = append(kept, e)
		}
	}
	f.entries = kept
	delete(f.contents, id)
}

// List implements adapter.RemoteStorageClient
func (f *FakeRemote) List(ctx context.Context, folderID string) ([]domain.RemoteEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.ListCalls++
	if f.ListErr != nil {
		return nil, f.ListErr
	}

	out := make([]domain.RemoteEntry, len(f.entries))
	copy(out, f.entries)
	return out, nil
}

// Fetch implements adapter.RemoteStorageClient
func (f *FakeRemote) Fetch(ctx context.Context, fileID string) (io.ReadCloser, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.FetchCalls = append(f.FetchCalls, fileID)
	if err := f.FetchErr[fileID]; err != nil {
		return nil, 0, err
	}

	content, ok := f.contents[fileID]
	if !ok {
		return nil, 0, fmt.Errorf("%w: %s", domain.ErrNotFound, fileID)
	}

	var r io.Reader = bytes.NewReader(content)
	if n, ok := f.BreakAfter[fileID]; ok {
		fail := &failingReader{err: ErrStreamBroken}
		if err, ok := f.BreakErr[fileID]; ok {
			fail.err = err
		}
		r = io.MultiReader(io.LimitReader(r, int64(n)), fail)
	}

	return io.NopCloser(r), int64(len(content)), nil
}

// Fetched returns a copy of the IDs passed to Fetch, in call order
func (f *FakeRemote) Fetched() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.FetchCalls))
	copy(out, f.FetchCalls)
	return out
}

// ResetCalls clears the call counters
func (f *FakeRemote) ResetCalls() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ListCalls = 0
	f.FetchCalls = nil
}

// ErrStreamBroken is returned by streams cut short with BreakAfter
var ErrStreamBroken = errors.New("stream broken")

type failingReader struct {
	err error
}

func (r *failingReader) Read([]byte) (int, error) {
	return 0, r.err
}

var _ adapter.RemoteStorageClient = (*FakeRemote)(nil)

// MD5Hex returns the hex MD5 digest of content
func MD5Hex(content []byte) string {
	sum := md5.Sum(content)
	return hex.EncodeToString(sum[:])
}

// WriteFile creates a file on fs, failing the test on error
func WriteFile(t *testing.T, fs afero.Fs, path string, content []byte) {
	t.Helper()

	if err := afero.WriteFile(fs, path, content, 0644); err != nil {
		t.Fatalf("failed to create test file: %v", err)
	}
}

// ReadFile reads a file from fs, failing the test on error
func ReadFile(t *testing.T, fs afero.Fs, path string) []byte {
	t.Helper()

	data, err := afero.ReadFile(fs, path)
	if err != nil {
		t.Fatalf("failed to read %s: %v", path, err)
	}
	return data
}

// WaitForCondition waits for a condition to be true with timeout
func WaitForCondition(timeout time.Duration, condition func() bool) bool {
	deadline := time.Now().Add(timeout)
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()

	for {
		if condition() {
			return true
		}

		if time.Now().After(deadline) {
			return false
		}

		<-ticker.C
	}
}

// AssertEventually asserts that a condition becomes true within timeout
func AssertEventually(t *testing.T, timeout time.Duration, condition func() bool, msgAndArgs ...interface{}) {
	t.Helper()

	if !WaitForCondition(timeout, condition) {
		if len(msgAndArgs) > 0 {
			t.Fatalf("condition not met within %v: %v", timeout, msgAndArgs[0])
		} else {
			t.Fatalf("condition not met within %v", timeout)
		}
	}
}

// RandomBytes generates n bytes of random content
func RandomBytes(n int) []byte {
	b := make([]byte, n)
	rand.Read(b)
	return b
}
