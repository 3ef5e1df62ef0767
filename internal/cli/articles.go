package cli

import (
	"context"

	"wikicache/internal/store"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func NewGetEntryCommand(rootOpts *RootOptions) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "get-entry <title>",
		Short: "Show an article, fetching it from Wikipedia when missing or stale",
		Long: `Show a cached article. The article is fetched from Wikipedia when it
is not cached yet, when the cached copy is older than refresh.max_age, or
when --force is given. If Wikipedia is unreachable and a cached copy
exists, the cached copy is shown with a warning.`,
		Args: exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, rootOpts, func(ctx context.Context, s *session) error {
				res, err := s.app.Service.GetArticle(ctx, args[0], force)
				if res == nil {
					return err
				}
				if err != nil {
					s.app.Logger.Warn("Serving stale copy", zap.String("title", res.Article.Title), zap.Error(err))
				}
				return s.printer.Result(res, err)
			})
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "refetch even if the cached copy is fresh")
	return cmd
}

func NewGetRelatedCommand(rootOpts *RootOptions) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "get-related <title>",
		Short: "Fetch an article and the articles in its \"See also\" section",
		Long: `Fetch an article and every article listed in its "See also" section,
one level deep. A failure on one related article does not stop the others;
the summary reports how many were fetched and how many failed.`,
		Args: exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, rootOpts, func(ctx context.Context, s *session) error {
				report, err := s.app.Service.GetRelated(ctx, args[0], force)
				if report == nil {
					return err
				}
				return s.printer.Related(report)
			})
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "refetch even if cached copies are fresh")
	return cmd
}

func NewListEntriesCommand(rootOpts *RootOptions) *cobra.Command {
	var limit, offset int

	cmd := &cobra.Command{
		Use:   "list-entries",
		Short: "List cached articles, most recently modified first",
		Args:  exactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			if limit < 0 || offset < 0 {
				return usageError("--limit and --offset must not be negative")
			}
			return withSession(cmd, rootOpts, func(ctx context.Context, s *session) error {
				list, err := s.app.Service.Articles(ctx, store.ListOptions{Limit: limit, Offset: offset})
				if err != nil {
					return err
				}
				return s.printer.Articles(list)
			})
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "maximum number of articles (0 = all)")
	cmd.Flags().IntVar(&offset, "offset", 0, "skip this many articles")
	return cmd
}

func NewRefreshAllCommand(rootOpts *RootOptions) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "refresh-all",
		Short: "Refetch every stale article in the cache",
		Long: `Refetch every cached article older than refresh.max_age, or every
article with --force. Titles are processed one at a time and a failure
on one title does not stop the batch.`,
		Args: exactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, rootOpts, func(ctx context.Context, s *session) error {
				report, err := s.app.Service.RefreshAll(ctx, force)
				if err != nil {
					return err
				}
				return s.printer.Refresh(report)
			})
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "refresh fresh articles too")
	return cmd
}

func NewShowRawCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show-raw <title>",
		Short: "Show the unconverted markup of the last successful fetch",
		Long:  "Show the raw extract archived on the last successful fetch of a title. Requires archive.path.",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, rootOpts, func(ctx context.Context, s *session) error {
				rec, err := s.app.Service.Raw(ctx, args[0])
				if err != nil {
					return err
				}
				return s.printer.Raw(rec)
			})
		},
	}
}

func NewRecentCommand(rootOpts *RootOptions) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "recent",
		Short: "List recently viewed or fetched titles",
		Long:  "List titles touched most recently, newest first. Requires redis.addr.",
		Args:  exactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, rootOpts, func(ctx context.Context, s *session) error {
				titles, err := s.app.Service.Recent(ctx, limit)
				if err != nil {
					return err
				}
				return s.printer.Recent(titles)
			})
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "maximum number of titles (0 = all)")
	return cmd
}
