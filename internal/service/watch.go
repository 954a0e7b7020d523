package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Ning0612/drivemirror/internal/scheduler"
	"github.com/Ning0612/drivemirror/internal/state"
)

// WatchService repeats sync runs on an interval
type WatchService struct {
	mu        sync.RWMutex
	runner    scheduler.SyncRunner
	history   *state.Manager
	scheduler scheduler.Scheduler
}

// WatchStatus represents the current watch status
type WatchStatus struct {
	Running        bool
	SchedulerStats *scheduler.Status
	LastRun        *state.RunRecord
}

// NewWatchService creates a watch service driving runner.
// history may be nil.
func NewWatchService(runner scheduler.SyncRunner, history *state.Manager) (*WatchService, error) {
	if runner == nil {
		return nil, fmt.Errorf("sync runner cannot be nil")
	}

	return &WatchService{
		runner:  runner,
		history: history,
	}, nil
}

// Start runs a sync of folderID immediately and then every interval.
// An empty folderID uses the configured default folder.
func (w *WatchService) Start(ctx context.Context, interval time.Duration, folderID string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.scheduler != nil {
		return fmt.Errorf("watch is already running")
	}

	sched, err := scheduler.NewIntervalScheduler(scheduler.Config{
		Interval:       interval,
		FolderID:       folderID,
		RunImmediately: true,
	}, w.runner)
	if err != nil {
		return fmt.Errorf("failed to create scheduler: %w", err)
	}

	if err := sched.Start(ctx); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}

	w.scheduler = sched
	return nil
}

// Wait blocks until the scheduling loop exits (context cancelled or Stop called)
func (w *WatchService) Wait() {
	w.mu.RLock()
	sched := w.scheduler
	w.mu.RUnlock()

	if sched == nil {
		return
	}
	<-sched.Done()
}

// Stop stops the watch, waiting for an in-flight run to finish
func (w *WatchService) Stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.scheduler == nil {
		return fmt.Errorf("watch is not running")
	}

	if err := w.scheduler.Stop(); err != nil {
		return fmt.Errorf("failed to stop scheduler: %w", err)
	}

	w.scheduler = nil
	return nil
}

// Status returns the current watch status
func (w *WatchService) Status() *WatchStatus {
	w.mu.RLock()
	defer w.mu.RUnlock()

	status := &WatchStatus{}

	if w.scheduler != nil {
		status.SchedulerStats = w.scheduler.Status()
		status.Running = status.SchedulerStats.Running
	}

	if w.history != nil {
		history, err := w.history.GetAllHistory(1)
		if err == nil && len(history) > 0 {
			status.LastRun = &history[0]
		}
	}

	return status
}
