package checksum

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/Ning0612/drivemirror/internal/domain"
)

const (
	helloMD5    = "5eb63bbbe01eeed093cb22bb8f5acdc3"
	helloSHA256 = "b94d27b9934d3e08a52e52d7da7dabfac484efe37a5380ee9088f7ace2efcde9"
)

func TestSum(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		algo     Algorithm
		expected string
	}{
		{"md5 hello", "hello world", MD5, helloMD5},
		{"sha256 hello", "hello world", SHA256, helloSHA256},
		{"md5 empty", "", MD5, "d41d8cd98f00b204e9800998ecf8427e"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Sum(context.Background(), strings.NewReader(tt.input), tt.algo)
			if err != nil {
				t.Fatalf("Sum failed: %v", err)
			}
			if got != tt.expected {
				t.Errorf("Sum() = %s, want %s", got, tt.expected)
			}
		})
	}
}

func TestSum_UnsupportedAlgorithm(t *testing.T) {
	_, err := Sum(context.Background(), strings.NewReader("x"), "crc32")
	if err == nil {
		t.Error("Expected error for unsupported algorithm")
	}
}

func TestSum_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Sum(ctx, strings.NewReader("hello world"), MD5)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
}

func TestVerifier_Match(t *testing.T) {
	v, err := NewVerifier(MD5, strings.ToUpper(helloMD5))
	if err != nil {
		t.Fatalf("NewVerifier failed: %v", err)
	}
	if _, err := io.Copy(v, strings.NewReader("hello world")); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	if err := v.Verify(); err != nil {
		t.Errorf("Verify() = %v, want nil", err)
	}
}

func TestVerifier_Mismatch(t *testing.T) {
	v, err := NewVerifier(MD5, helloMD5)
	if err != nil {
		t.Fatalf("NewVerifier failed: %v", err)
	}
	io.Copy(v, strings.NewReader("hello world!"))

	if err := v.Verify(); !errors.Is(err, domain.ErrChecksumMismatch) {
		t.Errorf("Verify() = %v, want ErrChecksumMismatch", err)
	}
}

func TestVerifier_Disabled(t *testing.T) {
	v, err := NewVerifier("unknown", "")
	if err != nil {
		t.Fatalf("NewVerifier with empty digest should not fail: %v", err)
	}
	if v.Enabled() {
		t.Error("Expected verifier to be disabled")
	}
	v.Write([]byte("anything"))
	if err := v.Verify(); err != nil {
		t.Errorf("Verify() = %v, want nil", err)
	}
}

func TestIsSupported(t *testing.T) {
	if !IsSupported(MD5) || !IsSupported(SHA256) {
		t.Error("MD5 and SHA256 should be supported")
	}
	if IsSupported("crc32") {
		t.Error("crc32 should not be supported")
	}
}
