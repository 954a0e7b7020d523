package cli

import (
	"github.com/spf13/cobra"
)

func (a *App) newSyncCmd() *cobra.Command {
	var target string
	var interactive bool

	cmd := &cobra.Command{
		Use:   "sync [folder-id]",
		Short: "Download files that are missing or outdated locally",
		Long: `Lists the Drive folder, compares it with the target directory and the
metadata record, and downloads every file that is missing locally or was
modified remotely since it was last synced.

The folder and target default to folder_id and target_dir from the config.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			history := a.openHistory()
			defer closeHistory(history)

			svc, err := a.newService(cmd, interactive, history)
			if err != nil {
				return err
			}

			_, err = svc.Run(cmd.Context(), folderArg(args), target)
			return err
		},
	}

	cmd.Flags().StringVarP(&target, "target", "t", "", "local directory to mirror into (default: target_dir)")
	cmd.Flags().BoolVar(&interactive, "interactive", true, "run the OAuth consent flow if no valid token is stored")

	return cmd
}
