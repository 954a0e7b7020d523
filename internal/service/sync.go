package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/afero"

	"github.com/Ning0612/drivemirror/internal/adapter"
	"github.com/Ning0612/drivemirror/internal/adapter/local"
	"github.com/Ning0612/drivemirror/internal/config"
	"github.com/Ning0612/drivemirror/internal/core/checksum"
	"github.com/Ning0612/drivemirror/internal/core/planner"
	"github.com/Ning0612/drivemirror/internal/core/transfer"
	"github.com/Ning0612/drivemirror/internal/domain"
	"github.com/Ning0612/drivemirror/internal/lock"
	"github.com/Ning0612/drivemirror/internal/logger"
	"github.com/Ning0612/drivemirror/internal/metadata"
	"github.com/Ning0612/drivemirror/internal/progress"
	"github.com/Ning0612/drivemirror/internal/state"
)

// Status lines printed to the user
const (
	msgNoFiles       = "No files found in the Google Drive folder."
	msgUpToDate      = "No updates found. All files are up-to-date."
	msgOutdated      = "The following files are missing or outdated:"
	msgDownloading   = "Downloading updated or missing files..."
	msgAllDownloaded = "All files downloaded successfully to %s."
)

// SyncService orchestrates sync runs
type SyncService struct {
	config   *config.Config
	remote   adapter.RemoteStorageClient
	fs       afero.Fs
	planner  planner.Planner
	reporter progress.Reporter
	out      io.Writer
	history  *state.Manager
	now      func() time.Time
}

// Option configures a SyncService
type Option func(*SyncService)

// WithFs sets the filesystem holding the target directory and metadata record
func WithFs(fs afero.Fs) Option {
	return func(s *SyncService) { s.fs = fs }
}

// WithOutput sets where status lines are printed; nil discards them
func WithOutput(w io.Writer) Option {
	return func(s *SyncService) {
		if w == nil {
			w = io.Discard
		}
		s.out = w
	}
}

// WithReporter overrides the per-file progress reporter
func WithReporter(r progress.Reporter) Option {
	return func(s *SyncService) { s.reporter = r }
}

// WithHistory records every run in the given history
func WithHistory(m *state.Manager) Option {
	return func(s *SyncService) { s.history = m }
}

// WithPlanner overrides the reconciliation planner
func WithPlanner(p planner.Planner) Option {
	return func(s *SyncService) { s.planner = p }
}

// NewSyncService creates a new sync service
func NewSyncService(cfg *config.Config, remote adapter.RemoteStorageClient, opts ...Option) (*SyncService, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if remote == nil {
		return nil, fmt.Errorf("remote storage client cannot be nil")
	}

	s := &SyncService{
		config:  cfg,
		remote:  remote,
		fs:      afero.NewOsFs(),
		planner: planner.NewDefaultPlanner(),
		out:     io.Discard,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.reporter == nil {
		s.reporter = progress.NewLineReporter(s.out)
	}

	return s, nil
}

// Report is the read-only view of a folder against local state
type Report struct {
	FolderID    string
	TargetDir   string
	Remote      []domain.RemoteEntry
	Assessments []planner.Assessment
	Plan        *domain.DownloadPlan
}

// Run performs one sync of folderID into targetDir.
// Empty arguments fall back to the configured folder and target.
// If some transfers fail the metadata of the others is still saved and an
// error wrapping domain.ErrPartialSync is returned alongside the result.
func (s *SyncService) Run(ctx context.Context, folderID, targetDir string) (*domain.RunResult, error) {
	folderID, targetDir, err := s.resolve(folderID, targetDir)
	if err != nil {
		return nil, err
	}

	log := logger.Get().With("folder_id", folderID, "target", targetDir)

	fileLock, err := lock.NewFileLock(s.config.LockPath())
	if err != nil {
		return nil, err
	}
	if err := fileLock.Acquire(folderID); err != nil {
		log.Error("failed to acquire sync lock", "error", err)
		return nil, fmt.Errorf("failed to acquire sync lock: %w", err)
	}
	defer func() {
		if err := fileLock.Release(); err != nil {
			log.Error("failed to release sync lock", "error", err)
		}
	}()

	result := &domain.RunResult{
		RunID:     state.NewRunID(),
		FolderID:  folderID,
		TargetDir: targetDir,
		Plan:      domain.NewDownloadPlan(),
		Failed:    make(map[string]error),
	}
	started := s.now()
	log = log.With("run_id", result.RunID)
	log.Info("sync started")

	err = s.run(ctx, result, log)
	if err != nil && result.Status == "" {
		result.Status = domain.RunFailed
	}

	s.record(result, started, err)
	log.Info("sync finished",
		"status", result.Status,
		"listed", result.RemoteCount,
		"planned", result.Plan.Len(),
		"downloaded", len(result.Downloaded),
		"failed", len(result.Failed),
		"bytes", result.Bytes,
	)

	return result, err
}

func (s *SyncService) run(ctx context.Context, result *domain.RunResult, log logger.Logger) error {
	target := s.localStore(result.TargetDir)
	if err := target.EnsureDir(); err != nil {
		log.Error("failed to prepare target directory", "error", err)
		return err
	}
	if err := target.CleanTemp(); err != nil {
		log.Warn("failed to remove leftover temp files", "error", err)
	}

	remote, err := s.list(ctx, result.FolderID)
	if err != nil {
		log.Error("listing failed", "error", err)
		return err
	}
	result.RemoteCount = len(remote)

	if len(remote) == 0 {
		s.println(msgNoFiles)
		result.Status = domain.RunNothingToSync
		return nil
	}

	store := metadata.NewStore(s.fs, s.config.MetadataPath)
	record, err := store.Load()
	if err != nil {
		return err
	}

	localFiles, err := target.ListFiles(ctx)
	if err != nil {
		return fmt.Errorf("failed to scan %s: %w", result.TargetDir, err)
	}

	plan := s.planner.Plan(remote, localFiles, record)
	result.Plan = plan

	if plan.IsEmpty() {
		s.println(msgUpToDate)
		result.Status = domain.RunUpToDate
		return nil
	}

	s.println(msgOutdated)
	for _, f := range plan.Files() {
		s.printf("%s (Last modified: %s)\n", f.Name, f.Source.ModifiedTime)
		log.Debug("planned", "file", f.Name, "reason", f.Reason)
	}
	s.println(msgDownloading)

	executor := transfer.NewExecutor(s.remote, s.fs,
		transfer.WithChunkSize(s.config.ChunkSize),
		transfer.WithReporter(s.reporter),
		transfer.WithExclude(s.bookkeepingNames(result.TargetDir)...),
	)
	transferred := executor.Execute(ctx, plan, result.TargetDir)
	result.Downloaded = transferred.Downloaded
	result.Failed = transferred.Failed
	result.Bytes = transferred.Bytes

	if len(transferred.Downloaded) > 0 {
		updated := record.Clone()
		for _, name := range transferred.Downloaded {
			f, _ := plan.Get(name)
			updated[name] = f.Source.ModifiedTime
		}
		if err := store.Save(updated); err != nil {
			result.Status = domain.RunFailed
			return err
		}
	}

	if len(transferred.Failed) == 0 {
		s.printf(msgAllDownloaded+"\n", result.TargetDir)
		result.Status = domain.RunSuccess
		return nil
	}

	if len(transferred.Downloaded) == 0 {
		result.Status = domain.RunFailed
	} else {
		result.Status = domain.RunPartial
	}
	s.printf("%d of %d file(s) failed to download.\n", len(transferred.Failed), plan.Len())
	return fmt.Errorf("%w: %d of %d file(s) failed: %w",
		domain.ErrPartialSync, len(transferred.Failed), plan.Len(), transferred.Err())
}

// RunSync implements scheduler.SyncRunner using the configured target directory
func (s *SyncService) RunSync(ctx context.Context, folderID string) error {
	_, err := s.Run(ctx, folderID, "")
	return err
}

// Inspect lists the folder and reconciles it against local state without
// transferring or saving anything
func (s *SyncService) Inspect(ctx context.Context, folderID, targetDir string) (*Report, error) {
	folderID, targetDir, err := s.resolve(folderID, targetDir)
	if err != nil {
		return nil, err
	}

	remote, err := s.list(ctx, folderID)
	if err != nil {
		return nil, err
	}

	record, err := metadata.NewStore(s.fs, s.config.MetadataPath).Load()
	if err != nil {
		return nil, err
	}

	localFiles, err := s.localStore(targetDir).ListFiles(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to scan %s: %w", targetDir, err)
	}

	return &Report{
		FolderID:    folderID,
		TargetDir:   targetDir,
		Remote:      remote,
		Assessments: s.planner.Assess(remote, localFiles, record),
		Plan:        s.planner.Plan(remote, localFiles, record),
	}, nil
}

// Verify hashes local copies of files the report considers up to date and
// returns the names whose content no longer matches the remote MD5 checksum.
// Entries without a remote checksum are skipped.
func (s *SyncService) Verify(ctx context.Context, report *Report) ([]string, error) {
	store := s.localStore(report.TargetDir)

	var mismatched []string
	for _, a := range report.Assessments {
		if !a.Present || a.Result.NeedsTransfer() || a.Entry.MD5Checksum == "" {
			continue
		}

		if a.Entry.Size > 0 {
			info, err := store.Stat(a.Entry.Name)
			if err != nil {
				return mismatched, err
			}
			if info.Size() != a.Entry.Size {
				mismatched = append(mismatched, a.Entry.Name)
				continue
			}
		}

		sum, err := s.localSum(ctx, store, a.Entry.Name)
		if err != nil {
			return mismatched, err
		}
		if sum != a.Entry.MD5Checksum {
			mismatched = append(mismatched, a.Entry.Name)
		}
	}

	return mismatched, nil
}

// ActiveRun reports the holder of the run lock, if a sync is in progress
func (s *SyncService) ActiveRun() (*lock.LockInfo, bool) {
	fileLock, err := lock.NewFileLock(s.config.LockPath())
	if err != nil || !fileLock.IsLocked() {
		return nil, false
	}
	holder, err := fileLock.Holder()
	if err != nil {
		return &lock.LockInfo{}, true
	}
	return holder, true
}

func (s *SyncService) localSum(ctx context.Context, store *local.Store, name string) (string, error) {
	r, err := store.Open(name)
	if err != nil {
		return "", err
	}
	defer r.Close()

	return checksum.Sum(ctx, r, checksum.MD5)
}

func (s *SyncService) list(ctx context.Context, folderID string) ([]domain.RemoteEntry, error) {
	remote, err := s.remote.List(ctx, folderID)
	if err != nil {
		if errors.Is(err, domain.ErrListing) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", domain.ErrListing, err)
	}
	return remote, nil
}

func (s *SyncService) resolve(folderID, targetDir string) (string, string, error) {
	if folderID == "" {
		folderID = s.config.FolderID
	}
	if targetDir == "" {
		targetDir = s.config.TargetDir
	}
	if folderID == "" {
		return "", "", fmt.Errorf("%w: no folder id given and folder_id is not configured", domain.ErrConfigInvalid)
	}
	if targetDir == "" {
		return "", "", fmt.Errorf("%w: target_dir cannot be empty", domain.ErrConfigInvalid)
	}
	return folderID, config.ExpandPath(targetDir), nil
}

func (s *SyncService) localStore(targetDir string) *local.Store {
	return local.New(s.fs, targetDir, s.bookkeepingNames(targetDir)...)
}

// bookkeepingNames returns the files of ours that may live inside targetDir
func (s *SyncService) bookkeepingNames(targetDir string) []string {
	if !s.config.MetadataIn(targetDir) {
		return nil
	}
	return s.config.BookkeepingNames()
}

// record stores the run in history; failures are logged, never fatal
func (s *SyncService) record(result *domain.RunResult, started time.Time, runErr error) {
	if s.history == nil {
		return
	}

	rec := state.RunRecord{
		RunID:           result.RunID,
		FolderID:        result.FolderID,
		TargetDir:       result.TargetDir,
		StartTime:       started,
		EndTime:         s.now(),
		Status:          result.Status,
		FilesListed:     result.RemoteCount,
		FilesPlanned:    result.Plan.Len(),
		FilesDownloaded: len(result.Downloaded),
		FilesFailed:     len(result.Failed),
		BytesDownloaded: result.Bytes,
	}
	if runErr != nil {
		rec.Error = runErr.Error()
	}

	if _, err := s.history.SaveRun(rec); err != nil {
		logger.Get().Warn("failed to record run", "run_id", result.RunID, "error", err)
	}
}

func (s *SyncService) println(line string) {
	fmt.Fprintln(s.out, line)
}

func (s *SyncService) printf(format string, args ...any) {
	fmt.Fprintf(s.out, format, args...)
}
