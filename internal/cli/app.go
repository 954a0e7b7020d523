package cli

import (
	"context"
	"io"

	"github.com/spf13/cobra"

	"github.com/Ning0612/drivemirror/internal/adapter"
	"github.com/Ning0612/drivemirror/internal/adapter/gdrive"
	"github.com/Ning0612/drivemirror/internal/config"
	"github.com/Ning0612/drivemirror/internal/logger"
	"github.com/Ning0612/drivemirror/internal/service"
	"github.com/Ning0612/drivemirror/internal/state"
)

// tokenStore picks the configured session storage
func (a *App) tokenStore(cfg *config.Config) adapter.TokenStore {
	if cfg.TokenStore == config.TokenStoreKeyring {
		return gdrive.NewKeyringTokenStore(gdrive.DefaultKeyringService, cfg.CredentialsPath)
	}
	return gdrive.NewFileTokenStore(a.fs, cfg.TokenPath)
}

func (a *App) authenticator(cfg *config.Config) (*gdrive.Authenticator, error) {
	return gdrive.NewAuthenticatorFromFile(cfg.CredentialsPath, cfg.Scopes, a.tokenStore(cfg))
}

// driveRemote is the default RemoteFactory
func (a *App) driveRemote(ctx context.Context, cfg *config.Config, interactive bool, in io.Reader, out io.Writer) (adapter.RemoteStorageClient, error) {
	auth, err := a.authenticator(cfg)
	if err != nil {
		return nil, err
	}
	auth.Interactive = interactive
	auth.In = in
	auth.Out = out

	return gdrive.NewFromProvider(ctx, auth)
}

// openHistory opens the run history; a failure only disables recording
func (a *App) openHistory() *state.Manager {
	history, err := state.NewManager(a.cfg.StateDir)
	if err != nil {
		logger.Get().Warn("run history unavailable", "dir", a.cfg.StateDir, "error", err)
		return nil
	}
	return history
}

// newService wires a SyncService for one command; history may be nil
func (a *App) newService(cmd *cobra.Command, interactive bool, history *state.Manager, extra ...service.Option) (*service.SyncService, error) {
	out := a.statusOut(cmd)

	remote, err := a.newRemote(cmd.Context(), a.cfg, interactive, cmd.InOrStdin(), out)
	if err != nil {
		return nil, err
	}

	opts := []service.Option{
		service.WithFs(a.fs),
		service.WithOutput(out),
	}
	if history != nil {
		opts = append(opts, service.WithHistory(history))
	}
	opts = append(opts, extra...)

	return service.NewSyncService(a.cfg, remote, opts...)
}

func closeHistory(history *state.Manager) {
	if history == nil {
		return
	}
	if err := history.Close(); err != nil {
		logger.Get().Warn("failed to close run history", "error", err)
	}
}
