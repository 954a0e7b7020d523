package state

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Ning0612/drivemirror/internal/domain"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	manager, err := NewManager(t.TempDir())
	if err != nil {
		t.Fatalf("Failed to create manager: %v", err)
	}
	t.Cleanup(func() { manager.Close() })
	return manager
}

func TestNewManager(t *testing.T) {
	tmpDir := t.TempDir()

	manager, err := NewManager(tmpDir)
	if err != nil {
		t.Fatalf("Failed to create manager: %v", err)
	}
	defer manager.Close()

	if manager.db == nil {
		t.Error("Database connection is nil")
	}

	dbPath := filepath.Join(tmpDir, DatabaseName)
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Error("Database file was not created")
	}
}

func TestNewManager_EmptyDir(t *testing.T) {
	_, err := NewManager("")
	if err == nil {
		t.Error("Expected error for empty directory, got nil")
	}
}

func TestSaveAndGetRun(t *testing.T) {
	manager := newTestManager(t)

	start := time.Now().Add(-10 * time.Minute)
	record := RunRecord{
		FolderID:        "folder-1",
		TargetDir:       "/data/raw",
		StartTime:       start,
		EndTime:         start.Add(2 * time.Second),
		Status:          domain.RunPartial,
		FilesListed:     3,
		FilesPlanned:    3,
		FilesDownloaded: 2,
		FilesFailed:     1,
		BytesDownloaded: 2048,
		Error:           "b.csv: transfer failed",
	}

	runID, err := manager.SaveRun(record)
	if err != nil {
		t.Fatalf("Failed to save run: %v", err)
	}
	if runID == "" {
		t.Fatal("Expected generated run ID")
	}

	history, err := manager.GetHistory("folder-1", 10)
	if err != nil {
		t.Fatalf("Failed to get history: %v", err)
	}
	if len(history) != 1 {
		t.Fatalf("Expected 1 record, got %d", len(history))
	}

	got := history[0]
	if got.RunID != runID {
		t.Errorf("Expected run ID %s, got %s", runID, got.RunID)
	}
	if got.Status != domain.RunPartial {
		t.Errorf("Expected status partial, got %s", got.Status)
	}
	if got.FilesDownloaded != 2 || got.FilesFailed != 1 || got.BytesDownloaded != 2048 {
		t.Errorf("Unexpected counts: %+v", got)
	}
	if got.Error != record.Error {
		t.Errorf("Expected error %q, got %q", record.Error, got.Error)
	}
	if d := got.Duration(); d < time.Second || d > 3*time.Second {
		t.Errorf("Expected ~2s duration, got %v", d)
	}

	byID, err := manager.GetRun(runID)
	if err != nil {
		t.Fatalf("GetRun failed: %v", err)
	}
	if byID.TargetDir != "/data/raw" {
		t.Errorf("Expected target dir /data/raw, got %s", byID.TargetDir)
	}
}

func TestSaveRun_KeepsGivenRunID(t *testing.T) {
	manager := newTestManager(t)

	runID, err := manager.SaveRun(RunRecord{
		RunID:     "fixed-id",
		FolderID:  "f",
		StartTime: time.Now(),
		EndTime:   time.Now(),
		Status:    domain.RunUpToDate,
	})
	if err != nil {
		t.Fatalf("SaveRun failed: %v", err)
	}
	if runID != "fixed-id" {
		t.Errorf("Expected fixed-id, got %s", runID)
	}
}

func TestGetRun_NotFound(t *testing.T) {
	manager := newTestManager(t)

	if _, err := manager.GetRun("missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestGetLastSuccess(t *testing.T) {
	manager := newTestManager(t)
	now := time.Now()

	records := []RunRecord{
		{FolderID: "f", StartTime: now.Add(-30 * time.Minute), EndTime: now.Add(-29 * time.Minute), Status: domain.RunSuccess, FilesDownloaded: 5},
		{FolderID: "f", StartTime: now.Add(-20 * time.Minute), EndTime: now.Add(-19 * time.Minute), Status: domain.RunUpToDate},
		{FolderID: "f", StartTime: now.Add(-10 * time.Minute), EndTime: now.Add(-9 * time.Minute), Status: domain.RunFailed, Error: "listing failed"},
		{FolderID: "other", StartTime: now, EndTime: now, Status: domain.RunSuccess, FilesDownloaded: 99},
	}
	for _, r := range records {
		if _, err := manager.SaveRun(r); err != nil {
			t.Fatalf("Failed to save run: %v", err)
		}
	}

	last, err := manager.GetLastSuccess("f")
	if err != nil {
		t.Fatalf("Failed to get last success: %v", err)
	}
	if last == nil {
		t.Fatal("Expected last success, got nil")
	}
	if last.Status != domain.RunUpToDate {
		t.Errorf("Expected the up-to-date run, got %s", last.Status)
	}
}

func TestGetLastSuccess_NoSuccess(t *testing.T) {
	manager := newTestManager(t)

	_, err := manager.SaveRun(RunRecord{
		FolderID:  "f",
		StartTime: time.Now(),
		EndTime:   time.Now(),
		Status:    domain.RunFailed,
		Error:     "auth",
	})
	if err != nil {
		t.Fatalf("Failed to save run: %v", err)
	}

	last, err := manager.GetLastSuccess("f")
	if err != nil {
		t.Fatalf("Failed to get last success: %v", err)
	}
	if last != nil {
		t.Errorf("Expected nil, got %+v", last)
	}
}

func TestGetAllHistory_OrderAndLimit(t *testing.T) {
	manager := newTestManager(t)
	now := time.Now()

	for i := 0; i < 5; i++ {
		_, err := manager.SaveRun(RunRecord{
			FolderID:     []string{"a", "b"}[i%2],
			StartTime:    now.Add(time.Duration(i) * time.Minute),
			EndTime:      now.Add(time.Duration(i) * time.Minute),
			Status:       domain.RunSuccess,
			FilesPlanned: i,
		})
		if err != nil {
			t.Fatalf("Failed to save run: %v", err)
		}
	}

	history, err := manager.GetAllHistory(3)
	if err != nil {
		t.Fatalf("Failed to get history: %v", err)
	}
	if len(history) != 3 {
		t.Fatalf("Expected 3 records, got %d", len(history))
	}
	for i, want := range []int{4, 3, 2} {
		if history[i].FilesPlanned != want {
			t.Errorf("record %d: expected FilesPlanned %d, got %d", i, want, history[i].FilesPlanned)
		}
	}

	folderA, err := manager.GetHistory("a", 10)
	if err != nil {
		t.Fatalf("Failed to get folder history: %v", err)
	}
	if len(folderA) != 3 {
		t.Errorf("Expected 3 records for folder a, got %d", len(folderA))
	}
}

func TestSaveRun_InvalidStatus(t *testing.T) {
	manager := newTestManager(t)

	_, err := manager.SaveRun(RunRecord{FolderID: "f", Status: "bogus"})
	if err == nil {
		t.Error("Expected error for invalid status, got nil")
	}
}

func TestHistory_InvalidLimit(t *testing.T) {
	manager := newTestManager(t)

	if _, err := manager.GetHistory("f", 0); err == nil {
		t.Error("Expected error for zero limit")
	}
	if _, err := manager.GetAllHistory(-1); err == nil {
		t.Error("Expected error for negative limit")
	}
}
