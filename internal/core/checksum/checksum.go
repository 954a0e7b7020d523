package checksum

import (
	"context"
	"crypto/md5"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash"
	"io"
	"strings"

	"github.com/Ning0612/drivemirror/internal/domain"
)

// Algorithm represents the hashing algorithm to use
type Algorithm string

const (
	// MD5 matches the md5Checksum field reported by Drive
	MD5 Algorithm = "md5"
	// SHA256 for local-only comparisons
	SHA256 Algorithm = "sha256"
)

const bufferSize = 32 * 1024

// New returns a fresh hasher for the algorithm
func New(algo Algorithm) (hash.Hash, error) {
	switch algo {
	case MD5:
		return md5.New(), nil
	case SHA256:
		return sha256.New(), nil
	default:
		return nil, fmt.Errorf("unsupported algorithm: %s", algo)
	}
}

// Sum streams reader through the hasher and returns the hex digest
func Sum(ctx context.Context, reader io.Reader, algo Algorithm) (string, error) {
	h, err := New(algo)
	if err != nil {
		return "", err
	}

	buffer := make([]byte, bufferSize)
	for {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		default:
		}

		n, err := reader.Read(buffer)
		if n > 0 {
			h.Write(buffer[:n])
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("read error: %w", err)
		}
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}

// Verifier hashes bytes as they are written and compares against an expected digest.
// An empty expected digest disables verification.
type Verifier struct {
	h        hash.Hash
	expected string
}

// NewVerifier creates a verifier; algo must be supported when expected is set
func NewVerifier(algo Algorithm, expected string) (*Verifier, error) {
	if expected == "" {
		return &Verifier{}, nil
	}
	h, err := New(algo)
	if err != nil {
		return nil, err
	}
	return &Verifier{h: h, expected: strings.ToLower(expected)}, nil
}

// Write implements io.Writer
func (v *Verifier) Write(p []byte) (int, error) {
	if v.h == nil {
		return len(p), nil
	}
	return v.h.Write(p)
}

// Enabled reports whether a digest will be checked
func (v *Verifier) Enabled() bool {
	return v.h != nil
}

// Verify returns domain.ErrChecksumMismatch if the written bytes do not match
func (v *Verifier) Verify() error {
	if v.h == nil {
		return nil
	}
	got := hex.EncodeToString(v.h.Sum(nil))
	if got != v.expected {
		return fmt.Errorf("%w: expected %s, got %s", domain.ErrChecksumMismatch, v.expected, got)
	}
	return nil
}

// IsSupported checks if the given algorithm is supported
func IsSupported(algo Algorithm) bool {
	switch algo {
	case MD5, SHA256:
		return true
	default:
		return false
	}
}
