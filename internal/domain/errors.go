package domain

import "errors"

// Adapter errors
var (
	// ErrNotFound indicates the requested resource does not exist
	ErrNotFound = errors.New("resource not found")

	// ErrPermissionDenied indicates insufficient permissions
	ErrPermissionDenied = errors.New("permission denied")

	// ErrNotDirectory indicates expected a directory but got a file
	ErrNotDirectory = errors.New("not a directory")

	// ErrQuotaExceeded indicates the remote rate limit or storage quota was hit
	ErrQuotaExceeded = errors.New("quota exceeded")
)

// Sync run errors
var (
	// ErrAuthentication indicates no valid session could be produced.
	// Fatal: the run aborts before listing.
	ErrAuthentication = errors.New("authentication failed")

	// ErrListing indicates the remote folder could not be listed.
	// Fatal: no plan is computed and metadata is not touched.
	ErrListing = errors.New("remote listing failed")

	// ErrTransfer indicates a single file could not be downloaded
	ErrTransfer = errors.New("transfer failed")

	// ErrInvalidFileName indicates a remote name that cannot be stored in a flat directory
	ErrInvalidFileName = errors.New("invalid file name")

	// ErrChecksumMismatch indicates downloaded bytes do not match the remote hash
	ErrChecksumMismatch = errors.New("checksum mismatch")

	// ErrMetadataCorrupt indicates the metadata record could not be parsed.
	// Never fatal: the record is treated as empty.
	ErrMetadataCorrupt = errors.New("metadata record corrupt")

	// ErrPartialSync indicates some planned files failed to download
	ErrPartialSync = errors.New("sync completed with failures")

	// ErrSyncInProgress indicates another sync is already running
	ErrSyncInProgress = errors.New("sync already in progress")
)

// Config errors
var (
	// ErrConfigNotFound indicates config file not found
	ErrConfigNotFound = errors.New("config file not found")

	// ErrConfigInvalid indicates config file is malformed
	ErrConfigInvalid = errors.New("invalid config")
)
