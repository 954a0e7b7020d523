package scheduler

import (
	"context"
	"time"
)

// Scheduler repeats sync runs
type Scheduler interface {
	// Start begins the scheduling loop
	Start(ctx context.Context) error

	// Stop gracefully stops the scheduler, waiting for an in-flight run
	Stop() error

	// Done is closed once the scheduling loop has exited
	Done() <-chan struct{}

	// Status returns the current scheduler status
	Status() *Status
}

// Status represents the current state of a scheduler
type Status struct {
	Running        bool
	LastRunTime    time.Time
	NextRunTime    time.Time
	TotalRuns      int
	SuccessfulRuns int
	FailedRuns     int
	LastError      string
}

// Config contains scheduler configuration
type Config struct {
	// Interval specifies the duration between sync runs
	Interval time.Duration

	// FolderID is synced on every tick; empty means the runner's default folder
	FolderID string

	// RunImmediately triggers a run as soon as the scheduler starts
	RunImmediately bool
}

// SyncRunner is the interface that schedulers use to execute sync operations
type SyncRunner interface {
	// RunSync executes one sync run for folderID ("" = configured default)
	RunSync(ctx context.Context, folderID string) error
}
