package cli

import (
	"context"
	"time"

	"wikicache/internal/backup"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func NewDBDumpCommand(rootOpts *RootOptions) *cobra.Command {
	var dir string

	cmd := &cobra.Command{
		Use:   "db-dump",
		Short: "Write all articles and log entries to timestamped JSON files",
		Args:  exactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, rootOpts, func(ctx context.Context, s *session) error {
				files, err := backup.Dump(ctx, s.app.DB.Articles, s.app.DB.Log, dir, time.Now())
				if err != nil {
					return err
				}
				return s.printer.Dump(files)
			})
		},
	}

	cmd.Flags().StringVarP(&dir, "output-dir", "d", ".", "directory for the dump files")
	return cmd
}

func NewDBRestoreCommand(rootOpts *RootOptions) *cobra.Command {
	var entriesFile, logsFile string

	cmd := &cobra.Command{
		Use:   "db-restore",
		Short: "Replace the cache contents with a dump",
		Long: `Replace every article and log entry with the contents of a dump.
Both files are validated completely before anything is written; invalid
input leaves the cache untouched.`,
		Args: exactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, rootOpts, func(ctx context.Context, s *session) error {
				files, err := backup.Restore(ctx, s.app.DB, entriesFile, logsFile)
				if err != nil {
					return err
				}
				s.app.Logger.Info("Cache restored",
					zap.Int("articles", files.Articles),
					zap.Int("log_entries", files.LogEntries))
				return s.printer.Restored(files)
			})
		},
	}

	cmd.Flags().StringVar(&entriesFile, "entries-file", "", "articles dump (wiki_entries_*.json)")
	cmd.Flags().StringVar(&logsFile, "logs-file", "", "log dump (wiki_entry_logs_*.json)")
	cmd.MarkFlagRequired("entries-file")
	cmd.MarkFlagRequired("logs-file")
	return cmd
}
