package gdrive

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/Ning0612/drivemirror/internal/adapter"
	"github.com/Ning0612/drivemirror/internal/domain"
	"github.com/Ning0612/drivemirror/internal/logger"
)

const (
	// MimeTypeFolder is the MIME type for Google Drive folders
	MimeTypeFolder = "application/vnd.google-apps.folder"
	// nativeMimePrefix marks Google-native documents that have no byte content
	nativeMimePrefix = "application/vnd.google-apps."
	// PageSize is the number of files to fetch per request
	PageSize = 100

	listFields = "nextPageToken, files(id, name, mimeType, size, modifiedTime, md5Checksum)"
)

// Client implements adapter.RemoteStorageClient for Google Drive
type Client struct {
	service *drive.Service
}

// New creates a Drive client from an authenticated HTTP client
func New(ctx context.Context, httpClient *http.Client, opts ...option.ClientOption) (*Client, error) {
	opts = append([]option.ClientOption{option.WithHTTPClient(httpClient)}, opts...)
	service, err := drive.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Drive service: %w", err)
	}
	return &Client{service: service}, nil
}

// NewFromProvider authenticates through the credential provider and creates a client
func NewFromProvider(ctx context.Context, provider adapter.CredentialProvider) (*Client, error) {
	httpClient, err := provider.Client(ctx)
	if err != nil {
		return nil, err
	}
	return New(ctx, httpClient)
}

// List returns the downloadable files directly inside folderID
func (c *Client) List(ctx context.Context, folderID string) ([]domain.RemoteEntry, error) {
	if strings.TrimSpace(folderID) == "" {
		return nil, fmt.Errorf("%w: folder id cannot be empty", domain.ErrNotFound)
	}

	var result []domain.RemoteEntry
	pageToken := ""
	query := fmt.Sprintf("'%s' in parents and trashed = false", escapeQueryString(folderID))

	for {
		call := c.service.Files.List().
			Q(query).
			PageSize(PageSize).
			SupportsAllDrives(true).
			IncludeItemsFromAllDrives(true).
			Fields(listFields)

		if pageToken != "" {
			call = call.PageToken(pageToken)
		}

		fileList, err := call.Context(ctx).Do()
		if err != nil {
			return nil, mapError(err)
		}

		for _, f := range fileList.Files {
			if !isDownloadable(f) {
				logger.Get().Warn("skipping non-downloadable entry",
					"name", f.Name,
					"mime_type", f.MimeType,
				)
				continue
			}
			result = append(result, entryFromDrive(f))
		}

		pageToken = fileList.NextPageToken
		if pageToken == "" {
			break
		}
	}

	return result, nil
}

// Fetch opens the binary content of a file
func (c *Client) Fetch(ctx context.Context, fileID string) (io.ReadCloser, int64, error) {
	resp, err := c.service.Files.Get(fileID).
		SupportsAllDrives(true).
		Context(ctx).
		Download()
	if err != nil {
		return nil, 0, mapError(err)
	}
	return resp.Body, resp.ContentLength, nil
}

// isDownloadable filters out folders and Google-native documents
func isDownloadable(f *drive.File) bool {
	return !strings.HasPrefix(f.MimeType, nativeMimePrefix)
}

// entryFromDrive converts a Drive file to domain.RemoteEntry
func entryFromDrive(f *drive.File) domain.RemoteEntry {
	return domain.RemoteEntry{
		Name:         f.Name,
		ID:           f.Id,
		ModifiedTime: f.ModifiedTime,
		Size:         f.Size,
		MD5Checksum:  f.Md5Checksum,
		MimeType:     f.MimeType,
	}
}

// escapeQueryString escapes special characters in Drive query strings
func escapeQueryString(s string) string {
	s = strings.ReplaceAll(s, "\\", "\\\\")
	s = strings.ReplaceAll(s, "'", "\\'")
	return s
}

// mapError converts Google API errors to domain errors
func mapError(err error) error {
	if err == nil {
		return nil
	}

	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case http.StatusNotFound:
			return fmt.Errorf("%w: %v", domain.ErrNotFound, err)
		case http.StatusUnauthorized:
			return fmt.Errorf("%w: %v", domain.ErrAuthentication, err)
		case http.StatusForbidden:
			if isRateLimit(apiErr) {
				return fmt.Errorf("%w: rate limit exceeded: %v", domain.ErrQuotaExceeded, err)
			}
			return fmt.Errorf("%w: %v", domain.ErrPermissionDenied, err)
		case http.StatusTooManyRequests:
			return fmt.Errorf("%w: rate limit exceeded: %v", domain.ErrQuotaExceeded, err)
		}
	}

	return err
}

// isRateLimit detects Drive's 403 flavour of rate limiting
func isRateLimit(apiErr *googleapi.Error) bool {
	for _, e := range apiErr.Errors {
		if e.Reason == "rateLimitExceeded" || e.Reason == "userRateLimitExceeded" {
			return true
		}
	}
	return false
}

var _ adapter.RemoteStorageClient = (*Client)(nil)
