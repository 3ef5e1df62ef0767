// Package cli implements the wikicache command line.
package cli

import (
	"context"
	"fmt"
	"io"

	"wikicache/internal/app"
	"wikicache/internal/config"
	"wikicache/internal/render"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// Version is overridden at build time with -ldflags "-X wikicache/internal/cli.Version=...".
var Version = "dev"

// RootOptions holds global flags for all commands.
type RootOptions struct {
	ConfigPath string
	Output     string
	Verbose    bool
}

func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:           "wikicache",
		Short:         "wikicache - a local cache of Wikipedia articles",
		Long:          "Fetches Wikipedia articles, stores them as Markdown and keeps an audit log of every fetch, view, refresh and error.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if _, err := render.ParseFormat(opts.Output); err != nil {
				return WrapExitError(ExitUsage, "", err)
			}
			return nil
		},
	}
	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return WrapExitError(ExitUsage, "", err)
	})

	cmd.PersistentFlags().StringVar(&opts.ConfigPath, "config", "", "config file (default "+config.DefaultConfigPath()+")")
	cmd.PersistentFlags().StringVarP(&opts.Output, "output", "o", "text", "output format (text|json|yaml)")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "debug logging on stderr")

	cmd.AddCommand(NewGetEntryCommand(opts))
	cmd.AddCommand(NewGetRelatedCommand(opts))
	cmd.AddCommand(NewListEntriesCommand(opts))
	cmd.AddCommand(NewShowLogsCommand(opts))
	cmd.AddCommand(NewRefreshAllCommand(opts))
	cmd.AddCommand(NewDBDumpCommand(opts))
	cmd.AddCommand(NewDBRestoreCommand(opts))
	cmd.AddCommand(NewShowRawCommand(opts))
	cmd.AddCommand(NewRecentCommand(opts))
	cmd.AddCommand(NewServeCommand(opts))
	cmd.AddCommand(NewVersionCommand())

	return cmd
}

// Execute runs the command line and returns the process exit code.
func Execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	cmd := NewRootCommand()
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	err := cmd.ExecuteContext(ctx)
	if err != nil {
		fmt.Fprintln(stderr, "Error:", err)
	}
	return GetExitCode(err)
}

// session is the per-invocation state of a command that touches the cache.
type session struct {
	app     *app.App
	printer *render.Printer
}

// withSession loads the configuration, opens the cache and runs fn. Errors
// returned by fn are mapped to exit codes.
func withSession(cmd *cobra.Command, opts *RootOptions, fn func(ctx context.Context, s *session) error) error {
	format, err := render.ParseFormat(opts.Output)
	if err != nil {
		return WrapExitError(ExitUsage, "", err)
	}

	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return WrapExitError(ExitUsage, "invalid configuration", err)
	}
	logger, err := app.NewLogger(cfg.Log, opts.Verbose)
	if err != nil {
		return WrapExitError(ExitUsage, "invalid configuration", err)
	}
	defer logger.Sync()

	ctx := cmd.Context()
	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		return WrapExitError(ExitFailure, "opening cache", err)
	}
	defer func() {
		if err := a.Close(); err != nil {
			logger.Warn("Closing cache failed", zap.Error(err))
		}
	}()

	return classify(fn(ctx, &session{app: a, printer: render.New(cmd.OutOrStdout(), format)}))
}

// exactArgs is cobra.ExactArgs with a usage exit code.
func exactArgs(n int) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := cobra.ExactArgs(n)(cmd, args); err != nil {
			return WrapExitError(ExitUsage, "", err)
		}
		return nil
	}
}
