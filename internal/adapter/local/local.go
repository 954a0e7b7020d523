package local

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"

	"github.com/Ning0612/drivemirror/internal/domain"
)

// TempSuffix marks in-flight downloads; such files are never part of the LocalFileSet
const TempSuffix = ".drivemirror.tmp"

// Store gives access to the flat target directory of a mirror
type Store struct {
	fs      afero.Fs
	root    string
	exclude map[string]struct{}
}

// New creates a store rooted at root.
// exclude lists file names inside root that are bookkeeping, e.g. the metadata record.
func New(fs afero.Fs, root string, exclude ...string) *Store {
	s := &Store{
		fs:      fs,
		root:    filepath.Clean(root),
		exclude: make(map[string]struct{}, len(exclude)),
	}
	for _, name := range exclude {
		s.exclude[name] = struct{}{}
	}
	return s
}

// Root returns the root path of this store
func (s *Store) Root() string {
	return s.root
}

// EnsureDir creates the target directory if it does not exist
func (s *Store) EnsureDir() error {
	info, err := s.fs.Stat(s.root)
	if err == nil {
		if !info.IsDir() {
			return domain.ErrNotDirectory
		}
		return nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return mapError(err)
	}
	return mapError(s.fs.MkdirAll(s.root, 0755))
}

// ListFiles returns the names of regular files in the target directory.
// A missing directory yields an empty set.
func (s *Store) ListFiles(ctx context.Context) (domain.LocalFileSet, error) {
	entries, err := afero.ReadDir(s.fs, s.root)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return domain.NewLocalFileSet(), nil
		}
		return nil, mapError(err)
	}

	set := make(domain.LocalFileSet, len(entries))
	for _, entry := range entries {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		if !entry.Mode().IsRegular() || s.isBookkeeping(entry.Name()) {
			continue
		}
		set[entry.Name()] = struct{}{}
	}

	return set, nil
}

// Stat returns file info for name
func (s *Store) Stat(name string) (os.FileInfo, error) {
	fullPath, err := s.resolvePath(name)
	if err != nil {
		return nil, err
	}
	info, err := s.fs.Stat(fullPath)
	if err != nil {
		return nil, mapError(err)
	}
	return info, nil
}

// Open opens a file for reading
func (s *Store) Open(name string) (io.ReadCloser, error) {
	fullPath, err := s.resolvePath(name)
	if err != nil {
		return nil, err
	}
	f, err := s.fs.Open(fullPath)
	if err != nil {
		return nil, mapError(err)
	}
	return f, nil
}

// Create opens a temp write stream for name.
// Nothing is visible under name until Commit succeeds.
func (s *Store) Create(name string) (*PendingFile, error) {
	fullPath, err := s.resolvePath(name)
	if err != nil {
		return nil, err
	}

	tempPath := fullPath + TempSuffix
	file, err := s.fs.OpenFile(tempPath, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0644)
	if err != nil {
		return nil, mapError(err)
	}

	return &PendingFile{fs: s.fs, file: file, tempPath: tempPath, finalPath: fullPath}, nil
}

// CleanTemp removes temp files left behind by an interrupted run
func (s *Store) CleanTemp() error {
	entries, err := afero.ReadDir(s.fs, s.root)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return mapError(err)
	}

	var errs []error
	for _, entry := range entries {
		if entry.Mode().IsRegular() && strings.HasSuffix(entry.Name(), TempSuffix) {
			if err := s.fs.Remove(filepath.Join(s.root, entry.Name())); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

// IsReserved reports whether name is a bookkeeping file that downloads must not replace
func (s *Store) IsReserved(name string) bool {
	return s.isBookkeeping(name)
}

func (s *Store) isBookkeeping(name string) bool {
	if strings.HasSuffix(name, TempSuffix) {
		return true
	}
	_, ok := s.exclude[name]
	return ok
}

// resolvePath safely resolves a file name to a path directly inside root
func (s *Store) resolvePath(name string) (string, error) {
	if err := domain.ValidateFileName(name); err != nil {
		return "", err
	}

	fullPath := filepath.Join(s.root, name)

	// Use filepath.Rel to verify the path stays directly within root
	rel, err := filepath.Rel(s.root, fullPath)
	if err != nil || rel != name {
		return "", domain.ErrInvalidFileName
	}

	return fullPath, nil
}

// PendingFile is a download being written to a temp file
type PendingFile struct {
	fs        afero.Fs
	file      afero.File
	tempPath  string
	finalPath string
	closed    bool
}

// Write implements io.Writer
func (p *PendingFile) Write(b []byte) (int, error) {
	return p.file.Write(b)
}

// Commit closes the temp file and renames it over the final name
func (p *PendingFile) Commit() error {
	if err := p.close(); err != nil {
		p.fs.Remove(p.tempPath)
		return mapError(err)
	}
	if err := p.fs.Rename(p.tempPath, p.finalPath); err != nil {
		p.fs.Remove(p.tempPath)
		return mapError(err)
	}
	return nil
}

// Abort discards the temp file; the previous content under the final name is untouched
func (p *PendingFile) Abort() error {
	p.close()
	if err := p.fs.Remove(p.tempPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

func (p *PendingFile) close() error {
	if p.closed {
		return nil
	}
	p.closed = true
	return p.file.Close()
}

// mapError converts OS errors to domain errors
func mapError(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, os.ErrNotExist) {
		return domain.ErrNotFound
	}
	if errors.Is(err, os.ErrPermission) {
		return domain.ErrPermissionDenied
	}

	return err
}
