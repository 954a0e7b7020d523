// Package cli implements the drivemirror command tree.
package cli

import (
	"context"
	"io"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Ning0612/drivemirror/internal/adapter"
	"github.com/Ning0612/drivemirror/internal/config"
	"github.com/Ning0612/drivemirror/internal/logger"
)

// skipConfigAnnotation marks commands that run without loading configuration
const skipConfigAnnotation = "drivemirror/skip-config"

// RemoteFactory builds an authenticated remote client.
// interactive allows the OAuth consent flow to run on in/out.
type RemoteFactory func(ctx context.Context, cfg *config.Config, interactive bool, in io.Reader, out io.Writer) (adapter.RemoteStorageClient, error)

// App holds state shared by all commands of one invocation
type App struct {
	viper     *viper.Viper
	fs        afero.Fs
	newRemote RemoteFactory

	cfg        *config.Config
	configPath string
	quiet      bool
}

// Option configures an App
type Option func(*App)

// WithFs sets the filesystem used for the target directory, metadata and token file
func WithFs(fs afero.Fs) Option {
	return func(a *App) { a.fs = fs }
}

// WithRemoteFactory replaces the Google Drive client factory
func WithRemoteFactory(f RemoteFactory) Option {
	return func(a *App) { a.newRemote = f }
}

// NewRootCommand builds the drivemirror command tree
func NewRootCommand(opts ...Option) *cobra.Command {
	a := &App{
		viper: config.NewViper(),
		fs:    afero.NewOsFs(),
	}
	a.newRemote = a.driveRemote
	for _, opt := range opts {
		opt(a)
	}

	root := &cobra.Command{
		Use:   "drivemirror",
		Short: "Mirror a Google Drive folder into a local directory",
		Long: `drivemirror downloads the files of one Google Drive folder that are
missing locally or were modified since the last run. Files are never
deleted locally, and a repeated run with no remote changes is a no-op.`,
		Version:       versionString(),
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Annotations[skipConfigAnnotation] == "true" {
				return nil
			}
			return a.loadConfig(cmd)
		},
	}

	pf := root.PersistentFlags()
	pf.StringVarP(&a.configPath, "config", "c", "", "config file (default: search ./config.yaml, ~/.config/drivemirror/config.yaml)")
	pf.String("log-level", "", "log level (debug, info, warn, error)")
	pf.String("log-format", "", "console log format (text, json)")
	pf.String("log-file", "", "write JSON logs to this file, rotated")
	pf.BoolVarP(&a.quiet, "quiet", "q", false, "suppress status lines and console logs")

	a.viper.BindPFlag("log.level", pf.Lookup("log-level"))
	a.viper.BindPFlag("log.format", pf.Lookup("log-format"))
	a.viper.BindPFlag("log.file", pf.Lookup("log-file"))

	root.AddCommand(
		a.newSyncCmd(),
		a.newPlanCmd(),
		a.newStatusCmd(),
		a.newHistoryCmd(),
		a.newWatchCmd(),
		a.newAuthCmd(),
		newVersionCmd(),
	)

	return root
}

// Execute runs the command tree with ctx and returns the first error
func Execute(ctx context.Context, opts ...Option) error {
	defer logger.Shutdown()
	return NewRootCommand(opts...).ExecuteContext(ctx)
}

func (a *App) loadConfig(cmd *cobra.Command) error {
	cfg, err := config.LoadWith(a.viper, a.configPath)
	if err != nil {
		return err
	}
	a.cfg = cfg

	// config is valid from here on; errors are no longer usage errors
	cmd.SilenceUsage = true

	logger.Shutdown()
	return logger.Init(logger.Config{
		Level:          logger.ParseLevel(cfg.Log.Level),
		Format:         logger.ParseFormat(cfg.Log.Format),
		Console:        cmd.ErrOrStderr(),
		DisableConsole: a.quiet,
		File: logger.FileConfig{
			Path:       cfg.Log.File,
			MaxSizeMB:  cfg.Log.MaxSizeMB,
			MaxAgeDays: cfg.Log.MaxAgeDays,
			MaxBackups: cfg.Log.MaxBackups,
			Compress:   cfg.Log.Compress,
		},
	})
}

// statusOut is where user-facing status lines go
func (a *App) statusOut(cmd *cobra.Command) io.Writer {
	if a.quiet {
		return io.Discard
	}
	return cmd.OutOrStdout()
}

func folderArg(args []string) string {
	if len(args) > 0 {
		return args[0]
	}
	return ""
}
