package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/Ning0612/drivemirror/internal/progress"
	"github.com/Ning0612/drivemirror/internal/state"
)

func (a *App) newHistoryCmd() *cobra.Command {
	var folder string
	var runID string
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent sync runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			history, err := state.NewManager(a.cfg.StateDir)
			if err != nil {
				return err
			}
			defer history.Close()

			if runID != "" {
				run, err := history.GetRun(runID)
				if err != nil {
					return err
				}
				printRun(cmd.OutOrStdout(), run)
				return nil
			}

			var runs []state.RunRecord
			if folder != "" {
				runs, err = history.GetHistory(folder, limit)
			} else {
				runs, err = history.GetAllHistory(limit)
			}
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(runs) == 0 {
				fmt.Fprintln(out, "No sync runs recorded.")
				return nil
			}

			table := newTable(out, "Run", "Folder", "Started", "Duration", "Status", "Files", "Bytes", "Error")
			for _, r := range runs {
				table.Append([]string{
					shortID(r.RunID),
					truncate(r.FolderID, 20),
					formatTime(r.StartTime),
					formatDuration(r.Duration()),
					string(r.Status),
					fmt.Sprintf("%d/%d", r.FilesDownloaded, r.FilesPlanned),
					progress.FormatBytes(r.BytesDownloaded),
					truncate(r.Error, 60),
				})
			}
			table.Render()
			return nil
		},
	}

	cmd.Flags().StringVar(&folder, "folder", "", "only show runs for this folder id")
	cmd.Flags().StringVar(&runID, "run", "", "show one run in full, by the run_id recorded in the log")
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of runs to show")

	return cmd
}

func printRun(out io.Writer, r *state.RunRecord) {
	errText := r.Error
	if errText == "" {
		errText = "-"
	}

	table := newTable(out, "Field", "Value")
	table.AppendBulk([][]string{
		{"Run", r.RunID},
		{"Folder", r.FolderID},
		{"Target", r.TargetDir},
		{"Started", formatTime(r.StartTime)},
		{"Duration", formatDuration(r.Duration())},
		{"Status", string(r.Status)},
		{"Listed", fmt.Sprintf("%d", r.FilesListed)},
		{"Downloaded", fmt.Sprintf("%d/%d", r.FilesDownloaded, r.FilesPlanned)},
		{"Failed", fmt.Sprintf("%d", r.FilesFailed)},
		{"Bytes", progress.FormatBytes(r.BytesDownloaded)},
		{"Error", errText},
	})
	table.Render()
}
