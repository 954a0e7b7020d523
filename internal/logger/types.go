package logger

import (
	"io"
	"strings"
)

// Logger 統一日誌介面
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
	With(args ...any) Logger
	Sync() error     // flush buffered output
	Shutdown() error // close owned writers
}

// Level 日誌級別
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

// String returns the string representation of the level
func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "debug"
	case LevelInfo:
		return "info"
	case LevelWarn:
		return "warn"
	case LevelError:
		return "error"
	default:
		return "unknown"
	}
}

// ParseLevel parses a string into a Level (case-insensitive)
func ParseLevel(s string) Level {
	switch strings.ToLower(s) {
	case "debug":
		return LevelDebug
	case "info":
		return LevelInfo
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo // default to info
	}
}

// Format selects the console encoding
type Format int

const (
	// FormatText is human-oriented console output, coloured on a TTY
	FormatText Format = iota
	// FormatJSON emits one JSON object per record
	FormatJSON
)

// String returns the string representation of the format
func (f Format) String() string {
	switch f {
	case FormatJSON:
		return "json"
	default:
		return "text"
	}
}

// ParseFormat parses a string into a Format (case-insensitive)
func ParseFormat(s string) Format {
	switch strings.ToLower(s) {
	case "json":
		return FormatJSON
	default:
		return FormatText
	}
}

// Config 日誌配置
type Config struct {
	Level  Level
	Format Format

	// Console receives console records; nil means os.Stderr
	Console io.Writer
	// DisableConsole turns console output off, e.g. for --quiet
	DisableConsole bool
	// NoColor forces plain text even on a terminal
	NoColor bool

	File FileConfig
}

// FileConfig 檔案日誌配置，檔案記錄一律為 JSON
type FileConfig struct {
	Path       string // empty disables file logging
	MaxSizeMB  int
	MaxAgeDays int
	MaxBackups int
	Compress   bool
}

// Enabled reports whether a log file is configured
func (c FileConfig) Enabled() bool {
	return c.Path != ""
}
