package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Ning0612/drivemirror/internal/domain"
)

// Token store kinds
const (
	TokenStoreFile    = "file"
	TokenStoreKeyring = "keyring"
)

const (
	appName = "drivemirror"

	// DriveReadonlyScope is the default OAuth scope
	DriveReadonlyScope = "https://www.googleapis.com/auth/drive.readonly"

	defaultChunkSize     = 1024 * 1024
	defaultWatchInterval = 15 * time.Minute
	minWatchInterval     = 10 * time.Second
)

// Config represents the complete configuration for drivemirror
type Config struct {
	// FolderID is the Drive folder to mirror; the CLI argument overrides it
	FolderID string `mapstructure:"folder_id"`

	// TargetDir is the flat local directory receiving the files
	TargetDir string `mapstructure:"target_dir"`

	// StateDir holds the client secret, token, metadata record and run history
	// unless their paths are set explicitly
	StateDir string `mapstructure:"state_dir"`

	MetadataPath    string `mapstructure:"metadata_path"`
	CredentialsPath string `mapstructure:"credentials_path"`
	TokenPath       string `mapstructure:"token_path"`

	// TokenStore is "file" or "keyring"
	TokenStore string   `mapstructure:"token_store"`
	Scopes     []string `mapstructure:"scopes"`

	// ChunkSize is the number of bytes copied between progress reports
	ChunkSize int `mapstructure:"chunk_size"`

	Log   LogConfig   `mapstructure:"log"`
	Watch WatchConfig `mapstructure:"watch"`
}

// LogConfig configures logging
type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	MaxBackups int    `mapstructure:"max_backups"`
	Compress   bool   `mapstructure:"compress"`
}

// WatchConfig configures repeated runs
type WatchConfig struct {
	Interval time.Duration `mapstructure:"interval"`
}

// Validate checks if the configuration is complete and consistent
func (c *Config) Validate() error {
	if strings.TrimSpace(c.TargetDir) == "" {
		return fmt.Errorf("%w: target_dir cannot be empty", domain.ErrConfigInvalid)
	}
	if strings.TrimSpace(c.StateDir) == "" {
		return fmt.Errorf("%w: state_dir cannot be empty", domain.ErrConfigInvalid)
	}

	switch c.TokenStore {
	case TokenStoreFile, TokenStoreKeyring:
	default:
		return fmt.Errorf("%w: invalid token_store: %q (want %q or %q)",
			domain.ErrConfigInvalid, c.TokenStore, TokenStoreFile, TokenStoreKeyring)
	}

	if len(c.Scopes) == 0 {
		return fmt.Errorf("%w: scopes cannot be empty", domain.ErrConfigInvalid)
	}
	if c.ChunkSize <= 0 {
		return fmt.Errorf("%w: chunk_size must be positive, got %d", domain.ErrConfigInvalid, c.ChunkSize)
	}

	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("%w: invalid log level: %q", domain.ErrConfigInvalid, c.Log.Level)
	}
	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		return fmt.Errorf("%w: invalid log format: %q", domain.ErrConfigInvalid, c.Log.Format)
	}

	if c.Watch.Interval < minWatchInterval {
		return fmt.Errorf("%w: watch interval must be at least %v, got %v",
			domain.ErrConfigInvalid, minWatchInterval, c.Watch.Interval)
	}

	return nil
}

// resolvePaths expands user paths and derives the ones left empty from StateDir
func (c *Config) resolvePaths() {
	c.StateDir = ExpandPath(c.StateDir)
	c.TargetDir = ExpandPath(c.TargetDir)

	if c.MetadataPath == "" {
		c.MetadataPath = filepath.Join(c.StateDir, "metadata.json")
	}
	if c.CredentialsPath == "" {
		c.CredentialsPath = filepath.Join(c.StateDir, "credentials.json")
	}
	if c.TokenPath == "" {
		c.TokenPath = filepath.Join(c.StateDir, "token.json")
	}

	c.MetadataPath = ExpandPath(c.MetadataPath)
	c.CredentialsPath = ExpandPath(c.CredentialsPath)
	c.TokenPath = ExpandPath(c.TokenPath)
	if c.Log.File != "" {
		c.Log.File = ExpandPath(c.Log.File)
	}
}

// LockPath returns the lock file guarding the metadata record
func (c *Config) LockPath() string {
	return c.MetadataPath + ".lock"
}

// MetadataInTarget reports whether the metadata record lives inside the target directory,
// in which case it must be excluded from the local file set
func (c *Config) MetadataInTarget() bool {
	return c.MetadataIn(c.TargetDir)
}

// MetadataIn reports whether the metadata record lives directly inside dir.
// Relative paths are resolved against the working directory first.
func (c *Config) MetadataIn(dir string) bool {
	return samePath(filepath.Dir(c.MetadataPath), dir)
}

// BookkeepingNames returns the base names of the metadata record, its lock
// and their temp files, as they appear inside the metadata directory
func (c *Config) BookkeepingNames() []string {
	meta := filepath.Base(c.MetadataPath)
	lockFile := filepath.Base(c.LockPath())
	return []string{meta, meta + ".tmp", lockFile, lockFile + ".info"}
}

func samePath(a, b string) bool {
	absA, errA := filepath.Abs(a)
	absB, errB := filepath.Abs(b)
	if errA != nil || errB != nil {
		return filepath.Clean(a) == filepath.Clean(b)
	}
	return absA == absB
}

// ExpandPath expands ~ and environment variables in a path
func ExpandPath(path string) string {
	if path == "" {
		return ""
	}
	// Expand ~ to home directory
	if path[0] == '~' {
		home, err := os.UserHomeDir()
		if err == nil {
			if len(path) > 1 && (path[1] == '/' || path[1] == filepath.Separator) {
				path = filepath.Join(home, path[2:])
			} else if len(path) == 1 {
				path = home
			}
		}
	}
	// Expand environment variables
	path = os.ExpandEnv(path)
	return filepath.Clean(path)
}

// DefaultStateDir returns the per-user directory for drivemirror state
func DefaultStateDir() string {
	if configDir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(configDir, appName)
	}
	if homeDir, err := os.UserHomeDir(); err == nil {
		return filepath.Join(homeDir, "."+appName)
	}
	return "." + appName
}
