package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Ning0612/drivemirror/internal/domain"
	"github.com/Ning0612/drivemirror/internal/progress"
)

func (a *App) newStatusCmd() *cobra.Command {
	var target string
	var verify bool

	cmd := &cobra.Command{
		Use:   "status [folder-id]",
		Short: "Compare every remote file with its local copy",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := a.newService(cmd, false, nil)
			if err != nil {
				return err
			}

			report, err := svc.Inspect(cmd.Context(), folderArg(args), target)
			if err != nil {
				return err
			}

			modified := make(map[string]bool)
			if verify {
				names, err := svc.Verify(cmd.Context(), report)
				if err != nil {
					return err
				}
				for _, name := range names {
					modified[name] = true
				}
			}

			out := cmd.OutOrStdout()
			if len(report.Assessments) == 0 {
				fmt.Fprintln(out, "No files found in the Google Drive folder.")
				return nil
			}

			table := newTable(out, "Name", "State", "Size", "Remote modified", "Last synced")
			for _, as := range report.Assessments {
				stateText := as.Result.String()
				if modified[as.Entry.Name] {
					stateText = "modified locally"
				}

				lastSynced := as.LastSynced
				if lastSynced == domain.EpochSentinel {
					lastSynced = "never"
				}

				table.Append([]string{
					truncate(as.Entry.Name, 48),
					stateText,
					progress.FormatBytes(as.Entry.Size),
					as.Entry.ModifiedTime,
					lastSynced,
				})
			}
			table.Render()

			fmt.Fprintf(out, "\n%d remote file(s), %d to download, target %s\n",
				len(report.Assessments), report.Plan.Len(), report.TargetDir)
			if verify {
				fmt.Fprintf(out, "%d file(s) differ from their remote checksum\n", len(modified))
			}

			if holder, running := svc.ActiveRun(); running {
				if holder.PID != 0 {
					fmt.Fprintf(out, "A sync is running (pid %d on %s, started %s)\n",
						holder.PID, holder.Hostname, formatTime(holder.StartTime))
				} else {
					fmt.Fprintln(out, "A sync is running")
				}
			}

			if history := a.openHistory(); history != nil {
				defer closeHistory(history)
				last, err := history.GetLastSuccess(report.FolderID)
				if err != nil {
					return err
				}
				if last != nil {
					fmt.Fprintf(out, "Last complete sync: %s\n", formatTime(last.EndTime))
				} else {
					fmt.Fprintln(out, "Last complete sync: never")
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&target, "target", "t", "", "local directory to compare against (default: target_dir)")
	cmd.Flags().BoolVar(&verify, "verify", false, "hash up-to-date local files and compare with the remote MD5")

	return cmd
}
