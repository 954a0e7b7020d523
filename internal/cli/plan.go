package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Ning0612/drivemirror/internal/progress"
)

func (a *App) newPlanCmd() *cobra.Command {
	var target string

	cmd := &cobra.Command{
		Use:   "plan [folder-id]",
		Short: "Show what sync would download, without downloading",
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

			out := cmd.OutOrStdout()
			switch {
			case len(report.Remote) == 0:
				fmt.Fprintln(out, "No files found in the Google Drive folder.")
				return nil
			case report.Plan.IsEmpty():
				fmt.Fprintln(out, "No updates found. All files are up-to-date.")
				return nil
			}

			table := newTable(out, "Name", "Reason", "Size", "Modified")
			for _, f := range report.Plan.Files() {
				table.Append([]string{
					f.Name,
					f.Reason,
					progress.FormatBytes(f.Source.Size),
					f.Source.ModifiedTime,
				})
			}
			table.SetFooter([]string{
				fmt.Sprintf("%d file(s)", report.Plan.Len()),
				"",
				progress.FormatBytes(report.Plan.TotalBytes()),
				"",
			})
			table.Render()
			return nil
		},
	}

	cmd.Flags().StringVarP(&target, "target", "t", "", "local directory to compare against (default: target_dir)")

	return cmd
}
