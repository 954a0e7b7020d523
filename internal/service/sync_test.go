package service

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ning0612/drivemirror/internal/adapter/local"
	"github.com/Ning0612/drivemirror/internal/config"
	"github.com/Ning0612/drivemirror/internal/domain"
	"github.com/Ning0612/drivemirror/internal/lock"
	"github.com/Ning0612/drivemirror/internal/metadata"
	"github.com/Ning0612/drivemirror/internal/state"
	"github.com/Ning0612/drivemirror/internal/testutil"
)

const (
	folderID  = "folder-123"
	targetDir = "/data/raw"

	t1 = "2024-05-01T10:00:00.000Z"
	t2 = "2024-05-02T10:00:00.000Z"
)

type fixture struct {
	cfg    *config.Config
	fs     afero.Fs
	remote *testutil.FakeRemote
	out    *bytes.Buffer
	svc    *SyncService
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()

	stateDir := t.TempDir()
	cfg := &config.Config{
		FolderID:     folderID,
		TargetDir:    targetDir,
		StateDir:     stateDir,
		MetadataPath: filepath.Join(stateDir, metadata.DefaultFileName),
		ChunkSize:    4,
	}

	f := &fixture{
		cfg:    cfg,
		fs:     afero.NewMemMapFs(),
		remote: testutil.NewFakeRemote(),
		out:    &bytes.Buffer{},
	}

	opts = append([]Option{WithFs(f.fs), WithOutput(f.out)}, opts...)
	svc, err := NewSyncService(cfg, f.remote, opts...)
	require.NoError(t, err)
	f.svc = svc

	return f
}

func (f *fixture) metadata(t *testing.T) domain.MetadataRecord {
	t.Helper()
	record, err := metadata.NewStore(f.fs, f.cfg.MetadataPath).Load()
	require.NoError(t, err)
	return record
}

func (f *fixture) seedMetadata(t *testing.T, record domain.MetadataRecord) {
	t.Helper()
	require.NoError(t, metadata.NewStore(f.fs, f.cfg.MetadataPath).Save(record))
}

func TestNewSyncService_Validation(t *testing.T) {
	_, err := NewSyncService(nil, testutil.NewFakeRemote())
	assert.Error(t, err)

	_, err = NewSyncService(&config.Config{}, nil)
	assert.Error(t, err)
}

func TestRun_SingleFileFirstRun(t *testing.T) {
	f := newFixture(t)
	f.remote.AddFile("id1", "a.csv", t1, []byte("x,y\n1,2\n"))

	result, err := f.svc.Run(context.Background(), "", "")
	require.NoError(t, err)

	assert.Equal(t, domain.RunSuccess, result.Status)
	assert.Equal(t, []string{"a.csv"}, result.Downloaded)
	assert.Equal(t, "x,y\n1,2\n", string(testutil.ReadFile(t, f.fs, "/data/raw/a.csv")))
	assert.Equal(t, domain.MetadataRecord{"a.csv": t1}, f.metadata(t))

	out := f.out.String()
	assert.Contains(t, out, "The following files are missing or outdated:\n")
	assert.Contains(t, out, "a.csv (Last modified: 2024-05-01T10:00:00.000Z)\n")
	assert.Contains(t, out, "Downloading updated or missing files...\n")
	assert.Contains(t, out, "Downloading a.csv...\n")
	assert.Contains(t, out, "Downloaded a.csv 100% complete.\n")
	assert.Contains(t, out, "All files downloaded successfully to /data/raw.\n")

	// Repeating the run with nothing changed is a no-op
	f.remote.ResetCalls()
	f.out.Reset()

	result, err = f.svc.Run(context.Background(), "", "")
	require.NoError(t, err)

	assert.Equal(t, domain.RunUpToDate, result.Status)
	assert.Empty(t, f.remote.Fetched())
	assert.Equal(t, "No updates found. All files are up-to-date.\n", f.out.String())
	assert.Equal(t, domain.MetadataRecord{"a.csv": t1}, f.metadata(t))
}

func TestRun_FirstRunDownloadsEverything(t *testing.T) {
	f := newFixture(t)
	f.remote.AddFile("1", "a.csv", t1, []byte("a"))
	f.remote.AddFile("2", "b.csv", t1, []byte("bb"))
	f.remote.AddFile("3", "c.csv", t2, []byte("ccc"))

	result, err := f.svc.Run(context.Background(), folderID, targetDir)
	require.NoError(t, err)

	assert.Equal(t, []string{"a.csv", "b.csv", "c.csv"}, result.Downloaded)
	assert.Equal(t, 3, result.RemoteCount)
	assert.Equal(t, int64(6), result.Bytes)
	assert.Equal(t, domain.MetadataRecord{"a.csv": t1, "b.csv": t1, "c.csv": t2}, f.metadata(t))
}

func TestRun_Staleness(t *testing.T) {
	tests := []struct {
		name       string
		stored     string
		remote     string
		downloaded bool
	}{
		{"remote newer", t1, t2, true},
		{"equal", t2, t2, false},
		{"remote older", t2, t1, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.remote.AddFile("1", "a.csv", tt.remote, []byte("new"))
			testutil.WriteFile(t, f.fs, "/data/raw/a.csv", []byte("old"))
			f.seedMetadata(t, domain.MetadataRecord{"a.csv": tt.stored})

			result, err := f.svc.Run(context.Background(), "", "")
			require.NoError(t, err)

			content := string(testutil.ReadFile(t, f.fs, "/data/raw/a.csv"))
			if tt.downloaded {
				assert.Equal(t, domain.RunSuccess, result.Status)
				assert.Equal(t, "new", content)
				assert.Equal(t, tt.remote, f.metadata(t)["a.csv"])
			} else {
				assert.Equal(t, domain.RunUpToDate, result.Status)
				assert.Equal(t, "old", content)
				assert.Equal(t, tt.stored, f.metadata(t)["a.csv"])
			}
		})
	}
}

func TestRun_MissingButUnmodified(t *testing.T) {
	f := newFixture(t)
	f.remote.AddFile("1", "a.csv", t1, []byte("restored"))
	f.seedMetadata(t, domain.MetadataRecord{"a.csv": t1})

	result, err := f.svc.Run(context.Background(), "", "")
	require.NoError(t, err)

	assert.Equal(t, []string{"a.csv"}, result.Downloaded)
	assert.Equal(t, "restored", string(testutil.ReadFile(t, f.fs, "/data/raw/a.csv")))
}

func TestRun_NoDeletions(t *testing.T) {
	f := newFixture(t)
	f.remote.AddFile("1", "a.csv", t1, []byte("a"))
	testutil.WriteFile(t, f.fs, "/data/raw/local-only.csv", []byte("keep me"))
	f.seedMetadata(t, domain.MetadataRecord{"gone.csv": t1})

	_, err := f.svc.Run(context.Background(), "", "")
	require.NoError(t, err)

	assert.Equal(t, "keep me", string(testutil.ReadFile(t, f.fs, "/data/raw/local-only.csv")))
	assert.Equal(t, t1, f.metadata(t)["gone.csv"])
}

func TestRun_PartialFailureSavesSuccesses(t *testing.T) {
	f := newFixture(t)
	f.remote.AddFile("1", "a.csv", t2, []byte("a2"))
	f.remote.AddFile("2", "b.csv", t2, []byte("b2"))
	f.remote.AddFile("3", "c.csv", t2, []byte("c2"))
	f.remote.FetchErr["2"] = domain.ErrQuotaExceeded
	f.seedMetadata(t, domain.MetadataRecord{"b.csv": t1})
	testutil.WriteFile(t, f.fs, "/data/raw/b.csv", []byte("b1"))

	result, err := f.svc.Run(context.Background(), "", "")
	require.Error(t, err)

	assert.ErrorIs(t, err, domain.ErrPartialSync)
	assert.ErrorIs(t, err, domain.ErrTransfer)
	assert.ErrorIs(t, err, domain.ErrQuotaExceeded)
	assert.Equal(t, domain.RunPartial, result.Status)
	assert.Equal(t, []string{"a.csv", "c.csv"}, result.Downloaded)
	require.Contains(t, result.Failed, "b.csv")

	assert.Equal(t, domain.MetadataRecord{"a.csv": t2, "b.csv": t1, "c.csv": t2}, f.metadata(t))
	assert.Equal(t, "b1", string(testutil.ReadFile(t, f.fs, "/data/raw/b.csv")))
	assert.Contains(t, f.out.String(), "1 of 3 file(s) failed to download.")

	// The failed file is retried on the next run
	delete(f.remote.FetchErr, "2")
	f.remote.ResetCalls()

	result, err = f.svc.Run(context.Background(), "", "")
	require.NoError(t, err)
	assert.Equal(t, []string{"b.csv"}, result.Downloaded)
	assert.Equal(t, []string{"2"}, f.remote.Fetched())
}

func TestRun_AllFailedLeavesMetadataUntouched(t *testing.T) {
	f := newFixture(t)
	f.remote.AddFile("1", "a.csv", t1, []byte("a"))
	f.remote.BreakAfter["1"] = 0

	result, err := f.svc.Run(context.Background(), "", "")
	require.Error(t, err)

	assert.ErrorIs(t, err, domain.ErrPartialSync)
	assert.Equal(t, domain.RunFailed, result.Status)

	exists, err := afero.Exists(f.fs, f.cfg.MetadataPath)
	require.NoError(t, err)
	assert.False(t, exists, "metadata must not be written when nothing succeeded")
}

func TestRun_EmptyListing(t *testing.T) {
	f := newFixture(t)

	result, err := f.svc.Run(context.Background(), "", "")
	require.NoError(t, err)

	assert.Equal(t, domain.RunNothingToSync, result.Status)
	assert.Equal(t, "No files found in the Google Drive folder.\n", f.out.String())

	exists, err := afero.Exists(f.fs, f.cfg.MetadataPath)
	require.NoError(t, err)
	assert.False(t, exists)

	isDir, err := afero.DirExists(f.fs, "/data/raw")
	require.NoError(t, err)
	assert.True(t, isDir, "target directory is created even when nothing is listed")
}

func TestRun_TargetIsFile(t *testing.T) {
	f := newFixture(t)
	f.remote.AddFile("1", "a.csv", t1, []byte("abc"))
	testutil.WriteFile(t, f.fs, "/data/raw", []byte("not a directory"))

	result, err := f.svc.Run(context.Background(), "", "")
	require.Error(t, err)

	assert.ErrorIs(t, err, domain.ErrNotDirectory)
	assert.Equal(t, domain.RunFailed, result.Status)
	assert.Equal(t, 0, f.remote.ListCalls)
	assert.Empty(t, f.remote.Fetched())
}

func TestRun_ListingFailure(t *testing.T) {
	f := newFixture(t)
	f.remote.ListErr = domain.ErrPermissionDenied
	f.seedMetadata(t, domain.MetadataRecord{"a.csv": t1})

	result, err := f.svc.Run(context.Background(), "", "")
	require.Error(t, err)

	assert.ErrorIs(t, err, domain.ErrListing)
	assert.ErrorIs(t, err, domain.ErrPermissionDenied)
	assert.Equal(t, domain.RunFailed, result.Status)
	assert.Equal(t, domain.MetadataRecord{"a.csv": t1}, f.metadata(t))
}

func TestRun_CorruptMetadataRedownloads(t *testing.T) {
	f := newFixture(t)
	f.remote.AddFile("1", "a.csv", t1, []byte("a"))
	testutil.WriteFile(t, f.fs, "/data/raw/a.csv", []byte("a"))
	testutil.WriteFile(t, f.fs, f.cfg.MetadataPath, []byte("{not json"))

	result, err := f.svc.Run(context.Background(), "", "")
	require.NoError(t, err)

	assert.Equal(t, []string{"a.csv"}, result.Downloaded)
	assert.Equal(t, domain.MetadataRecord{"a.csv": t1}, f.metadata(t))
}

func TestRun_LockHeld(t *testing.T) {
	f := newFixture(t)
	f.remote.AddFile("1", "a.csv", t1, []byte("a"))

	held, err := lock.NewFileLock(f.cfg.LockPath())
	require.NoError(t, err)
	require.NoError(t, held.Acquire(folderID))
	defer held.Release()

	_, err = f.svc.Run(context.Background(), "", "")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrSyncInProgress)
	assert.Empty(t, f.remote.Fetched())
}

func TestRun_MetadataInsideTarget(t *testing.T) {
	f := newFixture(t)
	f.cfg.TargetDir = f.cfg.StateDir
	f.remote.AddFile("1", "a.csv", t1, []byte("a"))

	_, err := f.svc.Run(context.Background(), "", "")
	require.NoError(t, err)

	report, err := f.svc.Inspect(context.Background(), "", "")
	require.NoError(t, err)
	assert.True(t, report.Plan.IsEmpty())
	require.Len(t, report.Assessments, 1)
	assert.Equal(t, "a.csv", report.Assessments[0].Entry.Name)
}

func TestRun_RelativeTargetHoldingMetadata(t *testing.T) {
	osFs := afero.NewOsFs()
	f := newFixture(t, WithFs(osFs))

	wd, err := os.Getwd()
	require.NoError(t, err)
	rel, err := filepath.Rel(wd, f.cfg.StateDir)
	require.NoError(t, err)

	f.remote.AddFile("1", "a.csv", t1, []byte("a"))
	f.remote.AddFile("2", "metadata.json", t1, []byte(`{"a.csv":"1970-01-01T00:00:00.000Z"}`))

	result, err := f.svc.Run(context.Background(), "", rel)
	require.Error(t, err)

	assert.Equal(t, domain.RunPartial, result.Status)
	assert.Equal(t, []string{"a.csv"}, result.Downloaded)
	require.Contains(t, result.Failed, "metadata.json")
	assert.ErrorIs(t, result.Failed["metadata.json"], domain.ErrInvalidFileName)
	assert.Equal(t, []string{"1"}, f.remote.Fetched(), "the remote metadata.json must not be fetched")

	record, err := metadata.NewStore(osFs, f.cfg.MetadataPath).Load()
	require.NoError(t, err)
	assert.Equal(t, domain.MetadataRecord{"a.csv": t1}, record)
}

func TestRun_NoFolder(t *testing.T) {
	f := newFixture(t)
	f.cfg.FolderID = ""

	_, err := f.svc.Run(context.Background(), "", "")
	assert.ErrorIs(t, err, domain.ErrConfigInvalid)
}

func TestRun_RecordsHistory(t *testing.T) {
	history, err := state.NewManager(t.TempDir())
	require.NoError(t, err)
	defer history.Close()

	f := newFixture(t, WithHistory(history))
	f.remote.AddFile("1", "a.csv", t1, []byte("abc"))

	result, err := f.svc.Run(context.Background(), "", "")
	require.NoError(t, err)

	rec, err := history.GetRun(result.RunID)
	require.NoError(t, err)
	assert.Equal(t, folderID, rec.FolderID)
	assert.Equal(t, domain.RunSuccess, rec.Status)
	assert.Equal(t, 1, rec.FilesListed)
	assert.Equal(t, 1, rec.FilesDownloaded)
	assert.Equal(t, int64(3), rec.BytesDownloaded)

	f.remote.ListErr = errors.New("network down")
	_, err = f.svc.Run(context.Background(), "", "")
	require.Error(t, err)

	runs, err := history.GetHistory(folderID, 10)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, domain.RunFailed, runs[0].Status)
	assert.Contains(t, runs[0].Error, "network down")
}

func TestRunSync_UsesConfiguredFolder(t *testing.T) {
	f := newFixture(t)
	f.remote.AddFile("1", "a.csv", t1, []byte("a"))

	require.NoError(t, f.svc.RunSync(context.Background(), ""))
	assert.Equal(t, domain.MetadataRecord{"a.csv": t1}, f.metadata(t))
}

func TestInspect_DoesNotTransfer(t *testing.T) {
	f := newFixture(t)
	f.remote.AddFile("1", "a.csv", t1, []byte("a"))
	f.remote.AddFile("2", "b.csv", t2, []byte("b"))
	testutil.WriteFile(t, f.fs, "/data/raw/b.csv", []byte("b"))
	f.seedMetadata(t, domain.MetadataRecord{"b.csv": t2})

	report, err := f.svc.Inspect(context.Background(), "", "")
	require.NoError(t, err)

	assert.Equal(t, []string{"a.csv"}, report.Plan.Names())
	require.Len(t, report.Assessments, 2)
	assert.True(t, report.Assessments[0].Result.NeedsTransfer())
	assert.False(t, report.Assessments[1].Result.NeedsTransfer())
	assert.Empty(t, f.remote.Fetched())
	assert.Empty(t, f.out.String())
}

func TestVerify_DetectsLocalEdits(t *testing.T) {
	f := newFixture(t)
	f.remote.AddFile("1", "a.csv", t1, []byte("a"))
	f.remote.AddFile("2", "b.csv", t1, []byte("b"))

	_, err := f.svc.Run(context.Background(), "", "")
	require.NoError(t, err)

	testutil.WriteFile(t, f.fs, "/data/raw/b.csv", []byte("edited"))

	report, err := f.svc.Inspect(context.Background(), "", "")
	require.NoError(t, err)

	mismatched, err := f.svc.Verify(context.Background(), report)
	require.NoError(t, err)
	assert.Equal(t, []string{"b.csv"}, mismatched)
}

func TestRun_RemovesLeftoverTempFiles(t *testing.T) {
	f := newFixture(t)
	f.remote.AddFile("1", "a.csv", t1, []byte("a"))
	testutil.WriteFile(t, f.fs, "/data/raw/b.csv"+local.TempSuffix, []byte("half"))

	_, err := f.svc.Run(context.Background(), "", "")
	require.NoError(t, err)

	exists, err := afero.Exists(f.fs, "/data/raw/b.csv"+local.TempSuffix)
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestActiveRun(t *testing.T) {
	f := newFixture(t)

	_, running := f.svc.ActiveRun()
	assert.False(t, running)

	held, err := lock.NewFileLock(f.cfg.LockPath())
	require.NoError(t, err)
	require.NoError(t, held.Acquire(folderID))
	defer held.Release()

	holder, running := f.svc.ActiveRun()
	require.True(t, running)
	assert.Equal(t, folderID, holder.FolderID)
}
