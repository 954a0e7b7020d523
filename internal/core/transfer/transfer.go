package transfer

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/afero"

	"github.com/Ning0612/drivemirror/internal/adapter"
	"github.com/Ning0612/drivemirror/internal/adapter/local"
	"github.com/Ning0612/drivemirror/internal/core/checksum"
	"github.com/Ning0612/drivemirror/internal/domain"
	"github.com/Ning0612/drivemirror/internal/logger"
	"github.com/Ning0612/drivemirror/internal/progress"
)

// DefaultChunkSize is the number of bytes copied between progress reports
const DefaultChunkSize = 1024 * 1024

// Result is the outcome of executing a download plan
type Result struct {
	// Downloaded lists committed files in plan order
	Downloaded []string
	// Failed maps file names to the cause of their failure
	Failed map[string]error
	// Bytes is the number of bytes committed
	Bytes int64
}

// Err joins all per-file failures, or returns nil if there were none
func (r Result) Err() error {
	if len(r.Failed) == 0 {
		return nil
	}
	errs := make([]error, 0, len(r.Failed))
	for name, err := range r.Failed {
		errs = append(errs, fmt.Errorf("%s: %w", name, err))
	}
	return errors.Join(errs...)
}

// Executor streams planned files from the remote into a local directory
type Executor struct {
	remote    adapter.RemoteStorageClient
	fs        afero.Fs
	chunkSize int
	reporter  progress.Reporter
	exclude   []string
}

// Option configures an Executor
type Option func(*Executor)

// WithChunkSize sets the copy chunk size; non-positive values keep the default
func WithChunkSize(n int) Option {
	return func(e *Executor) {
		if n > 0 {
			e.chunkSize = n
		}
	}
}

// WithReporter sets the progress reporter
func WithReporter(r progress.Reporter) Option {
	return func(e *Executor) {
		if r != nil {
			e.reporter = r
		}
	}
}

// WithExclude names bookkeeping files in the destination that must never be overwritten
func WithExclude(names ...string) Option {
	return func(e *Executor) {
		e.exclude = append(e.exclude, names...)
	}
}

// NewExecutor creates an executor writing through fs
func NewExecutor(remote adapter.RemoteStorageClient, fs afero.Fs, opts ...Option) *Executor {
	e := &Executor{
		remote:    remote,
		fs:        fs,
		chunkSize: DefaultChunkSize,
		reporter:  progress.NullReporter{},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Execute downloads every planned file into destDir, in plan order.
// Every file is attempted; failures are collected rather than aborting the run.
func (e *Executor) Execute(ctx context.Context, plan *domain.DownloadPlan, destDir string) Result {
	result := Result{Failed: make(map[string]error)}
	if plan.IsEmpty() {
		return result
	}

	files := plan.Files()
	e.reporter.SetTotal(len(files), plan.TotalBytes())

	store := local.New(e.fs, destDir, e.exclude...)
	if err := store.EnsureDir(); err != nil {
		err = fmt.Errorf("%w: preparing %s: %w", domain.ErrTransfer, destDir, err)
		for _, f := range files {
			result.Failed[f.Name] = err
			e.reporter.Error(f.Name, err)
		}
		return result
	}

	log := logger.Get().With("dest", destDir)

	for _, f := range files {
		if err := ctx.Err(); err != nil {
			result.Failed[f.Name] = fmt.Errorf("%w: %w", domain.ErrTransfer, err)
			continue
		}

		n, err := e.download(ctx, store, f)
		if err != nil {
			err = fmt.Errorf("%w: %s: %w", domain.ErrTransfer, f.Name, err)
			result.Failed[f.Name] = err
			e.reporter.Error(f.Name, err)
			log.Warn("download failed", "file", f.Name, "id", f.ID, "error", err)
			continue
		}

		result.Downloaded = append(result.Downloaded, f.Name)
		result.Bytes += n
		e.reporter.Complete(f.Name)
		log.Debug("download committed", "file", f.Name, "bytes", n)
	}

	return result
}

// download streams one file into a temp file and commits it
func (e *Executor) download(ctx context.Context, store *local.Store, f domain.PlannedFile) (int64, error) {
	if err := domain.ValidateFileName(f.Name); err != nil {
		return 0, fmt.Errorf("%q: %w", f.Name, err)
	}
	if store.IsReserved(f.Name) {
		return 0, fmt.Errorf("%q collides with a bookkeeping file: %w", f.Name, domain.ErrInvalidFileName)
	}

	e.reporter.Start(f.Name, f.Source.Size)

	verifier, err := checksum.NewVerifier(checksum.MD5, f.Source.MD5Checksum)
	if err != nil {
		return 0, err
	}

	body, length, err := e.remote.Fetch(ctx, f.ID)
	if err != nil {
		return 0, err
	}
	defer body.Close()

	total := f.Source.Size
	if length > 0 {
		total = length
	}

	pending, err := store.Create(f.Name)
	if err != nil {
		return 0, err
	}

	written, err := e.copyChunks(ctx, f.Name, io.MultiWriter(pending, verifier), body, total)
	if err == nil && length >= 0 && written != length {
		err = fmt.Errorf("short body: received %d of %d bytes: %w", written, length, io.ErrUnexpectedEOF)
	}
	if err == nil {
		err = verifier.Verify()
	}
	if err != nil {
		pending.Abort()
		return 0, err
	}

	if err := pending.Commit(); err != nil {
		return 0, err
	}

	return written, nil
}

// copyChunks copies src to dst, reporting fractional progress after every chunk
func (e *Executor) copyChunks(ctx context.Context, name string, dst io.Writer, src io.Reader, total int64) (int64, error) {
	buf := make([]byte, e.chunkSize)
	var written int64
	reported := -1.0

	for {
		if err := ctx.Err(); err != nil {
			return written, err
		}

		n, readErr := readChunk(src, buf)
		if n > 0 {
			if _, err := dst.Write(buf[:n]); err != nil {
				return written, err
			}
			written += int64(n)

			if total > 0 {
				fraction := float64(written) / float64(total)
				if fraction > 1 {
					fraction = 1
				}
				e.reporter.Progress(name, fraction)
				reported = fraction
			}
		}

		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			return written, readErr
		}
	}

	// Unknown or zero length: report completion once
	if reported < 1 {
		e.reporter.Progress(name, 1)
	}

	return written, nil
}

// readChunk fills buf from src. Only a clean io.EOF from src ends the stream;
// any other error, io.ErrUnexpectedEOF included, is returned as is.
func readChunk(src io.Reader, buf []byte) (int, error) {
	n := 0
	for n < len(buf) {
		m, err := src.Read(buf[n:])
		n += m
		if err != nil {
			return n, err
		}
	}
	return n, nil
}
