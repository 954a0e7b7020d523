package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Ning0612/drivemirror/internal/domain"
)

func (a *App) newAuthCmd() *cobra.Command {
	var force, revoke bool

	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Authorize drivemirror to read Google Drive",
		Long: `Runs the OAuth consent flow with the client secret at credentials_path and
stores the resulting token (token_path, or the OS keyring when
token_store is "keyring"). An existing valid token is kept unless --force
is given.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()

			auth, err := a.authenticator(a.cfg)
			if err != nil {
				return err
			}
			auth.In = cmd.InOrStdin()
			auth.Out = out

			if revoke {
				if err := auth.Revoke(); err != nil && !errors.Is(err, domain.ErrNotFound) {
					return err
				}
				fmt.Fprintln(out, "Stored token removed.")
				return nil
			}

			if !force {
				if err := auth.Session(cmd.Context()); err == nil {
					if token, ok := auth.Token(); ok && !token.Expiry.IsZero() {
						fmt.Fprintf(out, "Already authenticated (access token valid until %s).\n", formatTime(token.Expiry))
					} else {
						fmt.Fprintln(out, "Already authenticated.")
					}
					return nil
				}
			}

			return auth.ObtainNew(cmd.Context())
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "run the consent flow even if a valid token is stored")
	cmd.Flags().BoolVar(&revoke, "revoke", false, "delete the stored token")

	return cmd
}
