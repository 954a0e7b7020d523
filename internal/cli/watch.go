package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/Ning0612/drivemirror/internal/logger"
	"github.com/Ning0612/drivemirror/internal/progress"
	"github.com/Ning0612/drivemirror/internal/service"
)

func (a *App) newWatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch [folder-id]",
		Short: "Sync now and then repeatedly on an interval until interrupted",
		Long: `Runs sync immediately and then every --interval (default watch.interval)
for the folder given, or for folder_id from the config. All runs share the
configured target_dir and metadata file, so one watch mirrors one folder.
Failed runs are logged and retried on the next tick. Stop with Ctrl-C.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			history := a.openHistory()
			defer closeHistory(history)

			svc, err := a.newService(cmd, false, history, service.WithReporter(progressLogger()))
			if err != nil {
				return err
			}

			watch, err := service.NewWatchService(svc, history)
			if err != nil {
				return err
			}

			interval := a.cfg.Watch.Interval
			fmt.Fprintf(a.statusOut(cmd), "Watching every %s. Press Ctrl-C to stop.\n", interval)

			folderID := folderArg(args)
			if err := watch.Start(cmd.Context(), interval, folderID); err != nil {
				return err
			}
			logger.Get().Info("watching", "interval", interval, "folder_id", folderID)

			watch.Wait()

			status := watch.Status()
			if status.SchedulerStats != nil {
				logger.Get().Info("watch stopped",
					"runs", status.SchedulerStats.TotalRuns,
					"failed", status.SchedulerStats.FailedRuns,
				)
			}
			return nil
		},
	}

	cmd.Flags().Duration("interval", 15*time.Minute, "time between runs")
	a.viper.BindPFlag("watch.interval", cmd.Flags().Lookup("interval"))

	return cmd
}

// progressLogger sends per-file progress to the log instead of the terminal
func progressLogger() progress.Reporter {
	return progress.NewCallbackReporter(func(u progress.Update) {
		switch u.Type {
		case progress.UpdateComplete:
			logger.Get().Info("downloaded",
				"file", u.CurrentFile,
				"done", u.FilesCompleted,
				"total", u.FilesTotal,
			)
		case progress.UpdateError:
			logger.Get().Warn("download failed", "file", u.CurrentFile, "error", u.Error)
		default:
			logger.Get().Debug("download progress",
				"file", u.CurrentFile,
				"percent", progress.Percent(u.Fraction),
			)
		}
	})
}
