package adapter

import (
	"context"
	"io"
	"net/http"

	"github.com/Ning0612/drivemirror/internal/domain"
)

// RemoteStorageClient defines the remote side of a mirror
// Implementations return domain-level errors for consistent error handling
type RemoteStorageClient interface {
	// List returns the files directly inside the given folder
	// Entries that cannot be fetched as bytes (sub-folders, native documents)
	// are omitted
	List(ctx context.Context, folderID string) ([]domain.RemoteEntry, error)

	// Fetch opens the content of a file for streaming
	// Returns the content length, or -1 if unknown
	// Caller is responsible for closing the reader
	Fetch(ctx context.Context, fileID string) (io.ReadCloser, int64, error)
}

// CredentialProvider supplies an authenticated session for the remote
type CredentialProvider interface {
	// IsValid reports whether a usable, unexpired session is loaded
	IsValid() bool

	// Refresh exchanges the refresh token for a new session and persists it
	Refresh(ctx context.Context) error

	// ObtainNew runs the interactive consent flow and persists the result
	ObtainNew(ctx context.Context) error

	// Client returns an HTTP client that refreshes the session transparently
	Client(ctx context.Context) (*http.Client, error)
}

// TokenStore persists the credential provider's session as an opaque blob
type TokenStore interface {
	// Load returns domain.ErrNotFound if nothing is stored
	Load() ([]byte, error)
	Save(blob []byte) error
	Delete() error
}
