// Package render prints command results as human-readable text, JSON or
// YAML.
package render

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"wikicache/internal/archive"
	"wikicache/internal/backup"
	"wikicache/internal/model"
	"wikicache/internal/wiki"

	"gopkg.in/yaml.v3"
)

type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case FormatText, FormatJSON, FormatYAML:
		return Format(s), nil
	}
	return "", fmt.Errorf("unknown output format %q (valid: text, json, yaml)", s)
}

// LogStyle selects the text layout of show-logs.
type LogStyle string

const (
	LogSummary  LogStyle = "summary"
	LogDetailed LogStyle = "detailed"
)

func ParseLogStyle(s string) (LogStyle, error) {
	switch LogStyle(s) {
	case LogSummary, LogDetailed:
		return LogStyle(s), nil
	}
	return "", fmt.Errorf("unknown log format %q (valid: summary, detailed)", s)
}

const (
	timeLayout  = "2006-01-02 15:04:05"
	shortLayout = "2006-01-02 15:04"
)

var rule = strings.Repeat("-", 80)

func stamp(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

type Printer struct {
	w      io.Writer
	format Format
}

func New(w io.Writer, format Format) *Printer {
	if format == "" {
		format = FormatText
	}
	return &Printer{w: w, format: format}
}

// emit writes v as structured data, or calls text for the text format.
func (p *Printer) emit(v any, text func(w io.Writer)) error {
	switch p.format {
	case FormatJSON:
		enc := json.NewEncoder(p.w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case FormatYAML:
		enc := yaml.NewEncoder(p.w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	default:
		text(p.w)
		return nil
	}
}

type articleView struct {
	Status  wiki.Status    `json:"status" yaml:"status"`
	Article *model.Article `json:"article" yaml:"article"`
	Warning string         `json:"warning,omitempty" yaml:"warning,omitempty"`
}

// Result prints a single fetched or cached article. warning is shown when
// a stale copy is served.
func (p *Printer) Result(res *wiki.Result, warning error) error {
	v := articleView{Status: res.Status, Article: res.Article}
	if warning != nil {
		v.Warning = warning.Error()
	}
	return p.emit(v, func(w io.Writer) {
		if v.Warning != "" {
			fmt.Fprintf(w, "warning: serving cached copy: %s\n", v.Warning)
		}
		writeArticle(w, res.Status, res.Article)
	})
}

func writeArticle(w io.Writer, status wiki.Status, a *model.Article) {
	fmt.Fprintf(w, "[%s] %s (id %d, modified %s)\n", status, a.Title, a.ID, stamp(a.ModifiedAt))
	fmt.Fprintln(w, rule)
	fmt.Fprintln(w, a.Content)
}

// Articles prints the cache listing.
func (p *Printer) Articles(list []model.ArticleSummary) error {
	return p.emit(list, func(w io.Writer) {
		if len(list) == 0 {
			fmt.Fprintln(w, "No articles in the cache.")
			return
		}
		fmt.Fprintln(w, "Stored articles:")
		for _, a := range list {
			fmt.Fprintf(w, "  %4d  %s  %s\n", a.ID, stamp(a.ModifiedAt), a.Title)
		}
		fmt.Fprintf(w, "\nTotal entries: %d\n", len(list))
	})
}

// LogTotals is the totals block printed under show-logs.
type LogTotals struct {
	Total        int                  `json:"total" yaml:"total"`
	ByAction     map[model.Action]int `json:"by_action" yaml:"by_action"`
	CacheHitRate float64              `json:"cache_hit_rate" yaml:"cache_hit_rate"`
}

// Summarize counts entries per action. Views are cache hits.
func Summarize(entries []model.LogEntry) LogTotals {
	s := LogTotals{Total: len(entries), ByAction: make(map[model.Action]int, len(model.Actions))}
	for _, a := range model.Actions {
		s.ByAction[a] = 0
	}
	for _, e := range entries {
		s.ByAction[e.Action]++
	}
	if s.Total > 0 {
		s.CacheHitRate = float64(s.ByAction[model.ActionView]) / float64(s.Total)
	}
	return s
}

type logsView struct {
	Entries []model.LogEntry `json:"entries" yaml:"entries"`
	Summary LogTotals        `json:"summary" yaml:"summary"`
}

func (p *Printer) Logs(entries []model.LogEntry, style LogStyle) error {
	v := logsView{Entries: entries, Summary: Summarize(entries)}
	return p.emit(v, func(w io.Writer) {
		if len(entries) == 0 {
			fmt.Fprintln(w, "No logs found.")
			return
		}
		fmt.Fprintf(w, "Action log (showing %d entries)\n", len(entries))
		if style == LogDetailed {
			for _, e := range entries {
				fmt.Fprintln(w, rule)
				fmt.Fprintln(w, e.Title)
				fmt.Fprintf(w, "Time:   %s\n", stamp(e.Timestamp))
				fmt.Fprintf(w, "Action: %s\n", strings.ToUpper(string(e.Action)))
				if e.Detail != "" {
					fmt.Fprintf(w, "Detail: %s\n", e.Detail)
				}
			}
			fmt.Fprintln(w, rule)
		} else {
			for _, e := range entries {
				fmt.Fprintf(w, "%s | %-7s | %s\n", e.Timestamp.UTC().Format(shortLayout), e.Action, e.Title)
			}
		}

		fmt.Fprintln(w, "\nSummary:")
		fmt.Fprintf(w, "Total entries: %d\n", v.Summary.Total)
		for _, a := range model.Actions {
			fmt.Fprintf(w, "  %-7s %d\n", a, v.Summary.ByAction[a])
		}
		fmt.Fprintf(w, "Cache hits: %d (%.1f%%)\n", v.Summary.ByAction[model.ActionView], v.Summary.CacheHitRate*100)
	})
}

type outcomeView struct {
	Title  string      `json:"title" yaml:"title"`
	ID     uint        `json:"id,omitempty" yaml:"id,omitempty"`
	Status wiki.Status `json:"status" yaml:"status"`
	Error  string      `json:"error,omitempty" yaml:"error,omitempty"`
}

func outcomes(list []wiki.Outcome) []outcomeView {
	out := make([]outcomeView, 0, len(list))
	for _, o := range list {
		v := outcomeView{Title: o.Title, ID: o.ID, Status: o.Status}
		if o.Err != nil {
			v.Error = o.Err.Error()
		}
		out = append(out, v)
	}
	return out
}

func writeOutcome(w io.Writer, o outcomeView) {
	if o.Error != "" {
		fmt.Fprintf(w, "  %-9s %s: %s\n", o.Status, o.Title, o.Error)
		return
	}
	fmt.Fprintf(w, "  %-9s %s\n", o.Status, o.Title)
}

type relatedView struct {
	Primary articleView   `json:"primary" yaml:"primary"`
	Related []outcomeView `json:"related" yaml:"related"`
	Fetched int           `json:"fetched" yaml:"fetched"`
	Failed  int           `json:"failed" yaml:"failed"`
}

func (p *Printer) Related(r *wiki.RelatedReport) error {
	v := relatedView{
		Primary: articleView{Status: r.Primary.Status, Article: r.Primary.Article},
		Related: outcomes(r.Related),
		Fetched: r.Fetched,
		Failed:  r.Failed,
	}
	return p.emit(v, func(w io.Writer) {
		writeArticle(w, r.Primary.Status, r.Primary.Article)
		fmt.Fprintln(w)
		if len(v.Related) == 0 {
			fmt.Fprintln(w, "No related articles found.")
			return
		}
		fmt.Fprintf(w, "Related articles (%d fetched, %d failed):\n", v.Fetched, v.Failed)
		for _, o := range v.Related {
			writeOutcome(w, o)
		}
	})
}

type refreshView struct {
	Total    int           `json:"total" yaml:"total"`
	Updated  int           `json:"updated" yaml:"updated"`
	Skipped  int           `json:"skipped" yaml:"skipped"`
	Failed   int           `json:"failed" yaml:"failed"`
	Outcomes []outcomeView `json:"outcomes" yaml:"outcomes"`
}

func (p *Printer) Refresh(r *wiki.RefreshReport) error {
	v := refreshView{Total: r.Total, Updated: r.Updated, Skipped: r.Skipped, Failed: r.Failed, Outcomes: outcomes(r.Outcomes)}
	return p.emit(v, func(w io.Writer) {
		if v.Total == 0 {
			fmt.Fprintln(w, "No entries found in the cache to refresh.")
			return
		}
		for _, o := range v.Outcomes {
			writeOutcome(w, o)
		}
		fmt.Fprintln(w, "\nRefresh summary:")
		fmt.Fprintf(w, "Total entries: %d\n", v.Total)
		fmt.Fprintf(w, "Updated: %d\n", v.Updated)
		fmt.Fprintf(w, "Skipped: %d\n", v.Skipped)
		fmt.Fprintf(w, "Errors: %d\n", v.Failed)
	})
}

func (p *Printer) Dump(f *backup.Files) error {
	return p.emit(f, func(w io.Writer) {
		fmt.Fprintf(w, "Wrote %d articles to %s\n", f.Articles, f.EntriesPath)
		fmt.Fprintf(w, "Wrote %d log entries to %s\n", f.LogEntries, f.LogsPath)
	})
}

func (p *Printer) Restored(f *backup.Files) error {
	return p.emit(f, func(w io.Writer) {
		fmt.Fprintf(w, "Restored %d articles and %d log entries\n", f.Articles, f.LogEntries)
	})
}

type rawView struct {
	Title      string    `json:"title" yaml:"title"`
	SourceURL  string    `json:"source_url" yaml:"source_url"`
	ArchivedAt time.Time `json:"archived_at" yaml:"archived_at"`
	Markup     string    `json:"markup" yaml:"markup"`
}

func (p *Printer) Raw(rec *archive.Record) error {
	v := rawView{Title: rec.Title, SourceURL: rec.SourceURL, ArchivedAt: rec.ArchivedAt, Markup: rec.Markup}
	return p.emit(v, func(w io.Writer) {
		fmt.Fprintf(w, "%s (archived %s from %s)\n", rec.Title, stamp(rec.ArchivedAt), rec.SourceURL)
		fmt.Fprintln(w, rule)
		fmt.Fprintln(w, rec.Markup)
	})
}

func (p *Printer) Recent(titles []string) error {
	if titles == nil {
		titles = []string{}
	}
	return p.emit(titles, func(w io.Writer) {
		if len(titles) == 0 {
			fmt.Fprintln(w, "No recent activity.")
			return
		}
		for i, t := range titles {
			fmt.Fprintf(w, "%2d. %s\n", i+1, t)
		}
	})
}
