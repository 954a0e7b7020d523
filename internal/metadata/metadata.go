// Package metadata persists the name → last-synced modifiedTime record of a mirror.
package metadata

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/afero"

	"github.com/Ning0612/drivemirror/internal/domain"
	"github.com/Ning0612/drivemirror/internal/logger"
)

// DefaultFileName is the metadata record's file name when none is configured
const DefaultFileName = "metadata.json"

// Store loads and saves the metadata record as a JSON object
type Store struct {
	fs   afero.Fs
	path string
}

// NewStore creates a store for the record at path
func NewStore(fs afero.Fs, path string) *Store {
	return &Store{fs: fs, path: path}
}

// Path returns the location of the record
func (s *Store) Path() string {
	return s.path
}

// Load reads the record.
// A missing file yields an empty record; unparseable content is logged and
// treated as empty so that the next run re-downloads everything.
func (s *Store) Load() (domain.MetadataRecord, error) {
	data, err := afero.ReadFile(s.fs, s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return domain.MetadataRecord{}, nil
		}
		return nil, fmt.Errorf("failed to read metadata %s: %w", s.path, err)
	}

	record, err := decode(data)
	if err != nil {
		logger.Get().Warn("metadata record is corrupt, starting from empty",
			"path", s.path,
			"error", err,
		)
		return domain.MetadataRecord{}, nil
	}

	return record, nil
}

// Save replaces the record on disk atomically using temp file + rename
func (s *Store) Save(record domain.MetadataRecord) error {
	if record == nil {
		record = domain.MetadataRecord{}
	}

	// encoding/json sorts map keys, which keeps the file diffable
	data, err := json.MarshalIndent(record, "", "    ")
	if err != nil {
		return fmt.Errorf("failed to encode metadata: %w", err)
	}
	data = append(data, '\n')

	if dir := filepath.Dir(s.path); dir != "" {
		if err := s.fs.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create metadata directory: %w", err)
		}
	}

	tempPath := s.path + ".tmp"
	if err := afero.WriteFile(s.fs, tempPath, data, 0644); err != nil {
		s.fs.Remove(tempPath)
		return fmt.Errorf("failed to write metadata: %w", err)
	}

	if err := s.fs.Rename(tempPath, s.path); err != nil {
		s.fs.Remove(tempPath)
		return fmt.Errorf("failed to replace metadata: %w", err)
	}

	logger.Get().Debug("metadata saved", "path", s.path, "entries", len(record))
	return nil
}

// decode parses a JSON object of string values
func decode(data []byte) (domain.MetadataRecord, error) {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrMetadataCorrupt, err)
	}
	if raw == nil {
		return nil, fmt.Errorf("%w: top-level value is not an object", domain.ErrMetadataCorrupt)
	}

	record := make(domain.MetadataRecord, len(raw))
	for name, v := range raw {
		ts, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("%w: value for %q is not a string", domain.ErrMetadataCorrupt, name)
		}
		record[name] = ts
	}
	return record, nil
}
