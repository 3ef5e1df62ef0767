package cli

import (
	"context"

	"wikicache/internal/model"
	"wikicache/internal/render"
	"wikicache/internal/store"

	"github.com/spf13/cobra"
)

type showLogsOptions struct {
	title  string
	action string
	limit  int
	style  string
}

func NewShowLogsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &showLogsOptions{}

	cmd := &cobra.Command{
		Use:   "show-logs",
		Short: "Show the action log",
		Long: `Show the action log, newest first. The summary format prints one line
per entry; the detailed format adds the detail field. Both end with
per-action totals and the cache hit rate.`,
		Args: exactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			style, err := render.ParseLogStyle(opts.style)
			if err != nil {
				return WrapExitError(ExitUsage, "", err)
			}
			filter := store.LogFilter{Title: opts.title, Limit: opts.limit}
			if opts.action != "" {
				action, err := model.ParseAction(opts.action)
				if err != nil {
					return WrapExitError(ExitUsage, "", err)
				}
				filter.Action = action
			}
			if opts.limit < 0 {
				return usageError("--limit must not be negative")
			}

			return withSession(cmd, rootOpts, func(ctx context.Context, s *session) error {
				entries, err := s.app.Service.Logs(ctx, filter)
				if err != nil {
					return err
				}
				return s.printer.Logs(entries, style)
			})
		},
	}

	cmd.Flags().StringVarP(&opts.title, "title", "t", "", "only entries for this title")
	cmd.Flags().StringVarP(&opts.action, "action", "a", "", "only entries with this action (fetch|view|refresh|error)")
	cmd.Flags().IntVarP(&opts.limit, "limit", "n", 20, "maximum number of entries (0 = all)")
	cmd.Flags().StringVar(&opts.style, "format", string(render.LogSummary), "text layout (summary|detailed)")
	return cmd
}
