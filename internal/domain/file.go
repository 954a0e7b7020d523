package domain

import "strings"

// EpochSentinel is the timestamp assumed for a file that has never been synced.
// Any real Drive modifiedTime compares as newer.
const EpochSentinel = "1970-01-01T00:00:00.000Z"

// RemoteEntry describes one file as reported by the remote folder listing
type RemoteEntry struct {
	// Name is the file name inside the remote folder; it becomes the local file name
	Name string

	// ID is the opaque remote identifier used to fetch content
	ID string

	// ModifiedTime is the RFC 3339 / ISO-8601 timestamp reported by the remote.
	// Kept as a string: fixed-width ISO-8601 sorts lexicographically in time order.
	ModifiedTime string

	// Size in bytes, 0 when the remote does not report it
	Size int64

	// MD5Checksum is the remote content hash (empty when unavailable)
	MD5Checksum string

	// MimeType as reported by the remote
	MimeType string
}

// MetadataRecord maps a file name to the remote modifiedTime it was last synced at
type MetadataRecord map[string]string

// LastSynced returns the stored timestamp for name, or EpochSentinel if none
func (m MetadataRecord) LastSynced(name string) string {
	if ts, ok := m[name]; ok {
		return ts
	}
	return EpochSentinel
}

// Clone returns an independent copy of the record
func (m MetadataRecord) Clone() MetadataRecord {
	out := make(MetadataRecord, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// LocalFileSet is the set of file names currently present in the target directory
type LocalFileSet map[string]struct{}

// NewLocalFileSet builds a set from the given names
func NewLocalFileSet(names ...string) LocalFileSet {
	set := make(LocalFileSet, len(names))
	for _, n := range names {
		set[n] = struct{}{}
	}
	return set
}

// Has reports whether name is present
func (s LocalFileSet) Has(name string) bool {
	_, ok := s[name]
	return ok
}

// ValidateFileName rejects names that would escape the flat target directory
func ValidateFileName(name string) error {
	if name == "" || name == "." || name == ".." {
		return ErrInvalidFileName
	}
	if strings.ContainsAny(name, `/\`) || strings.ContainsRune(name, 0) {
		return ErrInvalidFileName
	}
	return nil
}
