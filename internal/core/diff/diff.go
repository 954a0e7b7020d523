package diff

import "github.com/Ning0612/drivemirror/internal/domain"

// Result represents the freshness of a local file relative to its remote entry
type Result int

const (
	// UpToDate indicates the local copy matches the remote timestamp
	UpToDate Result = iota
	// Missing indicates the file is not present locally
	Missing
	// Stale indicates the remote copy is newer than the last sync
	Stale
	// RemoteOlder indicates the remote timestamp is older than the stored one
	// (clock skew or a restored revision); treated as up to date
	RemoteOlder
)

// String returns a human-readable reason
func (r Result) String() string {
	switch r {
	case UpToDate:
		return "up to date"
	case Missing:
		return "missing locally"
	case Stale:
		return "remote modified"
	case RemoteOlder:
		return "remote older than last sync"
	default:
		return "unknown"
	}
}

// NeedsTransfer reports whether the result requires a download
func (r Result) NeedsTransfer() bool {
	return r == Missing || r == Stale
}

// Comparer decides whether a remote entry must be downloaded
type Comparer interface {
	// Compare returns the freshness of entry given local presence and the stored timestamp
	Compare(entry domain.RemoteEntry, presentLocally bool, lastSynced string) Result
}

// TimestampComparer compares ISO-8601 timestamps as plain strings.
//
// Presence on disk is checked first: a missing file is always transferred,
// whatever the metadata says. Otherwise the remote modifiedTime must be
// lexicographically greater than the stored one; equal means up to date.
type TimestampComparer struct{}

// NewTimestampComparer creates a new TimestampComparer
func NewTimestampComparer() *TimestampComparer {
	return &TimestampComparer{}
}

// Compare implements the Comparer interface
func (c *TimestampComparer) Compare(entry domain.RemoteEntry, presentLocally bool, lastSynced string) Result {
	if !presentLocally {
		return Missing
	}
	if lastSynced == "" {
		lastSynced = domain.EpochSentinel
	}

	switch {
	case lastSynced < entry.ModifiedTime:
		return Stale
	case lastSynced == entry.ModifiedTime:
		return UpToDate
	default:
		return RemoteOlder
	}
}
