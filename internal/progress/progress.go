package progress

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
)

// Reporter receives per-file transfer progress during a sync run
type Reporter interface {
	// SetTotal announces the number of files and bytes about to be transferred
	SetTotal(totalFiles int, totalBytes int64)
	// Start begins tracking a new file transfer
	Start(name string, totalBytes int64)
	// Progress reports the completed fraction (0.0 to 1.0) of the current transfer
	Progress(name string, fraction float64)
	// Complete marks the transfer as committed
	Complete(name string)
	// Error reports a failed transfer
	Error(name string, err error)
}

// Callback is a function that receives progress updates
type Callback func(update Update)

// Update represents a progress update
type Update struct {
	Type           UpdateType
	CurrentFile    string
	CurrentTotal   int64
	Fraction       float64
	FilesCompleted int
	FilesFailed    int
	FilesTotal     int
	BytesTotal     int64
	BytesPerSecond float64
	Error          error
}

// UpdateType indicates the type of progress update
type UpdateType int

const (
	UpdateStart UpdateType = iota
	UpdateProgress
	UpdateComplete
	UpdateError
)

// String returns the lowercase name of the update type
func (t UpdateType) String() string {
	switch t {
	case UpdateStart:
		return "start"
	case UpdateProgress:
		return "progress"
	case UpdateComplete:
		return "complete"
	case UpdateError:
		return "error"
	default:
		return "unknown"
	}
}

// CallbackReporter implements Reporter with a callback function
type CallbackReporter struct {
	callback       Callback
	mu             sync.Mutex
	currentFile    string
	currentTotal   int64
	filesTotal     int
	bytesTotal     int64
	filesCompleted int
	filesFailed    int
	startTime      time.Time
}

// NewCallbackReporter creates a new CallbackReporter
func NewCallbackReporter(callback Callback) *CallbackReporter {
	return &CallbackReporter{
		callback: callback,
	}
}

// SetTotal sets the total number of files and bytes to sync
func (r *CallbackReporter) SetTotal(totalFiles int, totalBytes int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.filesTotal = totalFiles
	r.bytesTotal = totalBytes
}

// Start begins tracking a new file transfer
func (r *CallbackReporter) Start(name string, totalBytes int64) {
	r.mu.Lock()
	r.currentFile = name
	r.currentTotal = totalBytes
	r.startTime = time.Now()
	update := r.snapshot(UpdateStart)
	r.mu.Unlock()

	r.emit(update)
}

// Progress reports the completed fraction of the current transfer
func (r *CallbackReporter) Progress(name string, fraction float64) {
	r.mu.Lock()
	r.currentFile = name
	update := r.snapshot(UpdateProgress)
	update.Fraction = fraction

	elapsed := time.Since(r.startTime).Seconds()
	if elapsed > 0 && r.currentTotal > 0 {
		update.BytesPerSecond = fraction * float64(r.currentTotal) / elapsed
	}
	r.mu.Unlock()

	r.emit(update)
}

// Complete marks the current transfer as complete
func (r *CallbackReporter) Complete(name string) {
	r.mu.Lock()
	r.currentFile = name
	r.filesCompleted++
	update := r.snapshot(UpdateComplete)
	update.Fraction = 1
	r.mu.Unlock()

	r.emit(update)
}

// Error reports an error on the current transfer
func (r *CallbackReporter) Error(name string, err error) {
	r.mu.Lock()
	r.currentFile = name
	r.filesFailed++
	update := r.snapshot(UpdateError)
	update.Error = err
	r.mu.Unlock()

	r.emit(update)
}

// snapshot captures the shared fields; caller holds r.mu
func (r *CallbackReporter) snapshot(t UpdateType) Update {
	return Update{
		Type:           t,
		CurrentFile:    r.currentFile,
		CurrentTotal:   r.currentTotal,
		FilesCompleted: r.filesCompleted,
		FilesFailed:    r.filesFailed,
		FilesTotal:     r.filesTotal,
		BytesTotal:     r.bytesTotal,
	}
}

// emit calls the callback outside the lock to prevent deadlock
func (r *CallbackReporter) emit(update Update) {
	if r.callback != nil {
		r.callback(update)
	}
}

// LineReporter prints one human-readable status line per event
type LineReporter struct {
	mu sync.Mutex
	w  io.Writer
}

// NewLineReporter creates a reporter writing to w
func NewLineReporter(w io.Writer) *LineReporter {
	return &LineReporter{w: w}
}

// SetTotal prints a summary of the pending transfer
func (r *LineReporter) SetTotal(totalFiles int, totalBytes int64) {
	if totalFiles == 0 {
		return
	}
	if totalBytes > 0 {
		r.printf("Downloading %d file(s), %s in total.\n", totalFiles, humanize.IBytes(uint64(totalBytes)))
		return
	}
	r.printf("Downloading %d file(s).\n", totalFiles)
}

// Start prints "Downloading <name>..."
func (r *LineReporter) Start(name string, totalBytes int64) {
	r.printf("Downloading %s...\n", name)
}

// Progress prints "Downloaded <name> N% complete."
func (r *LineReporter) Progress(name string, fraction float64) {
	r.printf("Downloaded %s %d%% complete.\n", name, Percent(fraction))
}

// Complete is silent; the final Progress line already reports 100%
func (r *LineReporter) Complete(name string) {}

// Error prints the failure
func (r *LineReporter) Error(name string, err error) {
	r.printf("Failed to download %s: %v\n", name, err)
}

func (r *LineReporter) printf(format string, args ...any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintf(r.w, format, args...)
}

// NullReporter is a no-op reporter
type NullReporter struct{}

func (NullReporter) SetTotal(totalFiles int, totalBytes int64) {}
func (NullReporter) Start(name string, totalBytes int64)       {}
func (NullReporter) Progress(name string, fraction float64)    {}
func (NullReporter) Complete(name string)                      {}
func (NullReporter) Error(name string, err error)              {}

// Percent converts a fraction to a whole percentage clamped to 0..100
func Percent(fraction float64) int {
	switch {
	case fraction <= 0:
		return 0
	case fraction >= 1:
		return 100
	default:
		return int(fraction * 100)
	}
}

// FormatBytes formats bytes into a human-readable string
func FormatBytes(bytes int64) string {
	if bytes < 0 {
		return "unknown"
	}
	return humanize.IBytes(uint64(bytes))
}

var (
	_ Reporter = (*CallbackReporter)(nil)
	_ Reporter = (*LineReporter)(nil)
	_ Reporter = NullReporter{}
)
