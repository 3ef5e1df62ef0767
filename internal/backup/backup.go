// Package backup dumps the article cache and its action log to JSON files
// and restores them again.
package backup

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"wikicache/internal/model"
	"wikicache/internal/store"
)

// TimestampLayout names dump files, e.g. wiki_entries_20240220_093000.json.
const TimestampLayout = "20060102_150405"

// Files describes one dump on disk.
type Files struct {
	EntriesPath string `json:"entries_file" yaml:"entries_file"`
	LogsPath    string `json:"logs_file" yaml:"logs_file"`
	Articles    int    `json:"articles" yaml:"articles"`
	LogEntries  int    `json:"log_entries" yaml:"log_entries"`
}

// Restorer replaces the whole store atomically. *store.DB implements it.
type Restorer interface {
	Restore(ctx context.Context, articles []model.Article, entries []model.LogEntry) error
}

// Dump writes every article and every log entry into dir.
func Dump(ctx context.Context, articles store.ArticleStore, log store.ActionLog, dir string, now time.Time) (*Files, error) {
	all, err := articles.All(ctx)
	if err != nil {
		return nil, err
	}
	entries, err := log.All(ctx)
	if err != nil {
		return nil, err
	}

	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating output dir: %w", err)
	}

	ts := now.UTC().Format(TimestampLayout)
	files := &Files{
		EntriesPath: filepath.Join(dir, "wiki_entries_"+ts+".json"),
		LogsPath:    filepath.Join(dir, "wiki_entry_logs_"+ts+".json"),
		Articles:    len(all),
		LogEntries:  len(entries),
	}
	if err := writeJSON(files.EntriesPath, all); err != nil {
		return nil, err
	}
	if err := writeJSON(files.LogsPath, entries); err != nil {
		return nil, err
	}
	return files, nil
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding %s: %w", filepath.Base(path), err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", filepath.Base(path), err)
	}
	return os.Rename(tmp, path)
}

// Restore validates both files completely and only then replaces the store
// contents. A *ValidationError means nothing was written.
func Restore(ctx context.Context, r Restorer, entriesPath, logsPath string) (*Files, error) {
	articles, err := LoadArticles(entriesPath)
	if err != nil {
		return nil, err
	}
	entries, err := LoadLogEntries(logsPath)
	if err != nil {
		return nil, err
	}
	if err := r.Restore(ctx, articles, entries); err != nil {
		return nil, err
	}
	return &Files{
		EntriesPath: entriesPath,
		LogsPath:    logsPath,
		Articles:    len(articles),
		LogEntries:  len(entries),
	}, nil
}
