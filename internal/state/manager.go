package state

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/Ning0612/drivemirror/internal/domain"
)

// DatabaseName is the run history file inside the state directory
const DatabaseName = "drivemirror.db"

// Manager handles run history persistence
type Manager struct {
	db *sql.DB
}

// RunRecord represents a single sync run
type RunRecord struct {
	ID              int64
	RunID           string
	FolderID        string
	TargetDir       string
	StartTime       time.Time
	EndTime         time.Time
	Status          domain.RunStatus
	FilesListed     int
	FilesPlanned    int
	FilesDownloaded int
	FilesFailed     int
	BytesDownloaded int64
	Error           string
}

// Duration returns how long the run took
func (r RunRecord) Duration() time.Duration {
	return r.EndTime.Sub(r.StartTime)
}

// NewRunID returns a fresh identifier for a run
func NewRunID() string {
	return uuid.NewString()
}

// NewManager opens (or creates) the run history in dataDir
func NewManager(dataDir string) (*Manager, error) {
	if dataDir == "" {
		return nil, fmt.Errorf("data directory cannot be empty")
	}

	// Ensure directory exists
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, DatabaseName)
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Limit connection pool to prevent "database is locked" errors
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	// Enable WAL mode for better concurrency and set busy timeout
	if _, err := db.Exec("PRAGMA journal_mode=WAL; PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode and busy timeout: %w", err)
	}

	manager := &Manager{db: db}

	if err := manager.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return manager, nil
}

// initSchema creates the database schema
func (m *Manager) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL UNIQUE,
		folder_id TEXT NOT NULL,
		target_dir TEXT NOT NULL,
		start_time TIMESTAMP NOT NULL,
		end_time TIMESTAMP NOT NULL,
		status TEXT NOT NULL,
		files_listed INTEGER DEFAULT 0,
		files_planned INTEGER DEFAULT 0,
		files_downloaded INTEGER DEFAULT 0,
		files_failed INTEGER DEFAULT 0,
		bytes_downloaded INTEGER DEFAULT 0,
		error TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_runs_folder_time ON runs(folder_id, start_time DESC);
	CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
	`

	_, err := m.db.Exec(schema)
	return err
}

// SaveRun records a sync run; an empty RunID is filled in.
// It returns the stored RunID.
func (m *Manager) SaveRun(record RunRecord) (string, error) {
	if !record.Status.IsValid() {
		return "", fmt.Errorf("invalid status: %q", record.Status)
	}
	if record.RunID == "" {
		record.RunID = NewRunID()
	}

	query := `
		INSERT INTO runs (run_id, folder_id, target_dir, start_time, end_time, status,
			files_listed, files_planned, files_downloaded, files_failed, bytes_downloaded, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := m.db.Exec(query,
		record.RunID,
		record.FolderID,
		record.TargetDir,
		record.StartTime.UTC(),
		record.EndTime.UTC(),
		string(record.Status),
		record.FilesListed,
		record.FilesPlanned,
		record.FilesDownloaded,
		record.FilesFailed,
		record.BytesDownloaded,
		record.Error,
	)
	if err != nil {
		return "", fmt.Errorf("failed to save run record: %w", err)
	}

	return record.RunID, nil
}

const selectColumns = `
	SELECT id, run_id, folder_id, target_dir, start_time, end_time, status,
		files_listed, files_planned, files_downloaded, files_failed, bytes_downloaded, error
	FROM runs`

// GetHistory retrieves the most recent runs for a folder
func (m *Manager) GetHistory(folderID string, limit int) ([]RunRecord, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be positive, got %d", limit)
	}

	rows, err := m.db.Query(selectColumns+`
		WHERE folder_id = ?
		ORDER BY start_time DESC, id DESC
		LIMIT ?`, folderID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	return scanRecords(rows)
}

// GetAllHistory retrieves the most recent runs across all folders
func (m *Manager) GetAllHistory(limit int) ([]RunRecord, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be positive, got %d", limit)
	}

	rows, err := m.db.Query(selectColumns+`
		ORDER BY start_time DESC, id DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query all history: %w", err)
	}
	return scanRecords(rows)
}

// GetLastSuccess retrieves the last run for folderID that left the mirror complete.
// Returns nil, nil if there is none.
func (m *Manager) GetLastSuccess(folderID string) (*RunRecord, error) {
	row := m.db.QueryRow(selectColumns+`
		WHERE folder_id = ? AND status IN (?, ?)
		ORDER BY start_time DESC, id DESC
		LIMIT 1`, folderID, string(domain.RunSuccess), string(domain.RunUpToDate))

	record, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query last success: %w", err)
	}
	return record, nil
}

// GetRun retrieves a run by its RunID
func (m *Manager) GetRun(runID string) (*RunRecord, error) {
	row := m.db.QueryRow(selectColumns+` WHERE run_id = ?`, runID)

	record, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: run %s", domain.ErrNotFound, runID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query run: %w", err)
	}
	return record, nil
}

// Close closes the database connection
func (m *Manager) Close() error {
	if m.db != nil {
		return m.db.Close()
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(s scanner) (*RunRecord, error) {
	var record RunRecord
	var status string
	err := s.Scan(
		&record.ID,
		&record.RunID,
		&record.FolderID,
		&record.TargetDir,
		&record.StartTime,
		&record.EndTime,
		&status,
		&record.FilesListed,
		&record.FilesPlanned,
		&record.FilesDownloaded,
		&record.FilesFailed,
		&record.BytesDownloaded,
		&record.Error,
	)
	if err != nil {
		return nil, err
	}
	record.Status = domain.RunStatus(status)
	return &record, nil
}

func scanRecords(rows *sql.Rows) ([]RunRecord, error) {
	defer rows.Close()

	var records []RunRecord
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}
		records = append(records, *record)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating records: %w", err)
	}

	return records, nil
}
