package logger

import (
	"errors"
	"testing"
)

func TestSanitizer_Sanitize(t *testing.T) {
	s := NewSanitizer()

	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "password",
			input:    "login with password=secret123",
			expected: "login with password=***",
		},
		{
			name:     "access token in query",
			input:    "GET https://www.googleapis.com/drive/v3/files?access_token=abc123xyz&q=x",
			expected: "GET https://www.googleapis.com/drive/v3/files?access_token=***&q=x",
		},
		{
			name:     "refresh token in json",
			input:    `{"refresh_token": "1//0gabc", "token_type": "Bearer"}`,
			expected: `{"refresh_token":"***", "token_type": "Bearer"}`,
		},
		{
			name:     "authorization code",
			input:    "redirected to http://localhost/?state=s&code=4/0AbCdEf&scope=x",
			expected: "redirected to http://localhost/?state=s&code=***&scope=x",
		},
		{
			name:     "google access token",
			input:    "using ya29.a0AfH6SMBx-y_z",
			expected: "using ya29.***",
		},
		{
			name:     "bearer token",
			input:    "Authorization: Bearer eyJhbGc...",
			expected: "Authorization: bearer ***",
		},
		{
			name:     "windows user path",
			input:    "file at C:\\Users\\john\\Documents\\file.txt",
			expected: "file at ***:\\Users\\***\\Documents\\file.txt",
		},
		{
			name:     "unix home path",
			input:    "config in /home/john/.config/drivemirror",
			expected: "config in /home/***/.config/drivemirror",
		},
		{
			name:     "email partial mask",
			input:    "shared by john.doe@example.com",
			expected: "shared by joh***@example.com",
		},
		{
			name:     "no sensitive data",
			input:    "Downloaded a.csv 50% complete.",
			expected: "Downloaded a.csv 50% complete.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := s.Sanitize(tt.input)
			if result != tt.expected {
				t.Errorf("Sanitize() = %v, want %v", result, tt.expected)
			}
		})
	}
}

func TestSanitizer_SanitizeArgs(t *testing.T) {
	s := NewSanitizer()

	tests := []struct {
		name     string
		input    []any
		expected []any
	}{
		{
			name:     "sensitive key is masked",
			input:    []any{"file", "a.csv", "refresh_token", "1//0gabcdefghij"},
			expected: []any{"file", "a.csv", "refresh_token", "1***j"},
		},
		{
			name:     "rules apply to other string values",
			input:    []any{"url", "https://x/?access_token=abc"},
			expected: []any{"url", "https://x/?access_token=***"},
		},
		{
			name:     "errors are sanitized as strings",
			input:    []any{"error", errors.New("open /home/john/x: denied")},
			expected: []any{"error", "open /home/***/x: denied"},
		},
		{
			name:     "non-string values untouched",
			input:    []any{"size", 1024, "token", 42},
			expected: []any{"size", 1024, "token", 42},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := s.SanitizeArgs(tt.input)
			if len(result) != len(tt.expected) {
				t.Fatalf("SanitizeArgs() returned %d values, want %d", len(result), len(tt.expected))
			}
			for i := range result {
				if result[i] != tt.expected[i] {
					t.Errorf("SanitizeArgs()[%d] = %v, want %v", i, result[i], tt.expected[i])
				}
			}
		})
	}
}

func TestSanitizer_SanitizeArgsDoesNotMutateInput(t *testing.T) {
	s := NewSanitizer()
	input := []any{"token", "secret-value"}

	s.SanitizeArgs(input)

	if input[1] != "secret-value" {
		t.Errorf("input was mutated: %v", input)
	}
}

func TestSanitizer_AddRule(t *testing.T) {
	s := NewSanitizer()

	if err := s.AddRule(`folder=\w+`, "folder=***"); err != nil {
		t.Fatalf("AddRule failed: %v", err)
	}

	result := s.Sanitize("listing folder=1AbCdEf")
	if result != "listing folder=***" {
		t.Errorf("Expected masked folder, got %q", result)
	}

	if err := s.AddRule(`(`, ""); err == nil {
		t.Error("Expected error for invalid pattern")
	}
}

func TestSanitizer_MaskValue(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"ab", "***"},
		{"abc", "a***"},
		{"abcdefgh", "a***"},
		{"abcdefghi", "a***i"},
		{"verylongpassword", "v***d"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			result := maskValue(tt.input)
			if result != tt.expected {
				t.Errorf("maskValue(%s) = %v, want %v", tt.input, result, tt.expected)
			}
		})
	}
}

func TestSanitizer_IsSensitiveKey(t *testing.T) {
	tests := []struct {
		input    string
		expected bool
	}{
		{"password", true},
		{"access_token", true},
		{"CLIENT_SECRET", true},
		{"credentials_path", true},
		{"auth_url", true},
		{"file", false},
		{"folder_id", false},
		{"error", false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			result := isSensitiveKey(tt.input)
			if result != tt.expected {
				t.Errorf("isSensitiveKey(%s) = %v, want %v", tt.input, result, tt.expected)
			}
		})
	}
}
