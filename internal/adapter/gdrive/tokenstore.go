package gdrive

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/afero"
	"github.com/zalando/go-keyring"

	"github.com/Ning0612/drivemirror/internal/adapter"
	"github.com/Ning0612/drivemirror/internal/domain"
)

// DefaultKeyringService is the keyring service name tokens are stored under
const DefaultKeyringService = "drivemirror"

// FileTokenStore keeps the session blob in a file readable only by the owner
type FileTokenStore struct {
	fs   afero.Fs
	path string
}

// NewFileTokenStore creates a file-backed token store
func NewFileTokenStore(fs afero.Fs, path string) *FileTokenStore {
	return &FileTokenStore{fs: fs, path: path}
}

// Load reads the stored blob
func (s *FileTokenStore) Load() ([]byte, error) {
	data, err := afero.ReadFile(s.fs, s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return data, nil
}

// Save writes the blob atomically using temp file + rename
func (s *FileTokenStore) Save(blob []byte) error {
	if err := s.fs.MkdirAll(filepath.Dir(s.path), 0700); err != nil {
		return err
	}

	tempPath := s.path + ".tmp"
	if err := afero.WriteFile(s.fs, tempPath, blob, 0600); err != nil {
		return fmt.Errorf("failed to write temp token file: %w", err)
	}

	if err := s.fs.Rename(tempPath, s.path); err != nil {
		s.fs.Remove(tempPath)
		return fmt.Errorf("failed to rename token file: %w", err)
	}

	return nil
}

// Delete removes the stored blob
func (s *FileTokenStore) Delete() error {
	if err := s.fs.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// Path returns where the token is stored
func (s *FileTokenStore) Path() string {
	return s.path
}

// KeyringTokenStore keeps the session blob in the OS keyring
type KeyringTokenStore struct {
	service string
	user    string
}

// NewKeyringTokenStore creates a keyring-backed token store.
// user distinguishes multiple credentials, e.g. one per client secret file.
func NewKeyringTokenStore(service, user string) *KeyringTokenStore {
	if service == "" {
		service = DefaultKeyringService
	}
	return &KeyringTokenStore{service: service, user: user}
}

// Load reads the stored blob
func (s *KeyringTokenStore) Load() ([]byte, error) {
	secret, err := keyring.Get(s.service, s.user)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("failed to read keyring: %w", err)
	}
	return []byte(secret), nil
}

// Save stores the blob
func (s *KeyringTokenStore) Save(blob []byte) error {
	if err := keyring.Set(s.service, s.user, string(blob)); err != nil {
		return fmt.Errorf("failed to write keyring: %w", err)
	}
	return nil
}

// Delete removes the stored blob
func (s *KeyringTokenStore) Delete() error {
	if err := keyring.Delete(s.service, s.user); err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return fmt.Errorf("failed to delete keyring entry: %w", err)
	}
	return nil
}

var (
	_ adapter.TokenStore = (*FileTokenStore)(nil)
	_ adapter.TokenStore = (*KeyringTokenStore)(nil)
)
