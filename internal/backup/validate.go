package backup

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"wikicache/internal/model"
)

// ValidationError reports a backup file that cannot be restored. Index is
// the offending record, or -1 when the file as a whole is unusable.
type ValidationError struct {
	File  string
	Index int
	Msg   string
}

func (e *ValidationError) Error() string {
	if e.Index < 0 {
		return fmt.Sprintf("invalid backup %s: %s", e.File, e.Msg)
	}
	return fmt.Sprintf("invalid backup %s: record %d: %s", e.File, e.Index, e.Msg)
}

type articleRecord struct {
	ID         *uint      `json:"id"`
	Title      *string    `json:"title"`
	Content    *string    `json:"content"`
	CreatedAt  *time.Time `json:"created_at"`
	ModifiedAt *time.Time `json:"modified_at"`
}

type logRecord struct {
	ID        *uint         `json:"id"`
	Title     *string       `json:"title"`
	Action    *model.Action `json:"action"`
	Timestamp *time.Time    `json:"timestamp"`
	Detail    *string       `json:"detail"`
}

// LoadArticles reads and validates an entries dump.
func LoadArticles(path string) ([]model.Article, error) {
	var records []articleRecord
	if err := decodeStrict(path, &records); err != nil {
		return nil, err
	}

	name := filepath.Base(path)
	fail := func(i int, format string, args ...any) error {
		return &ValidationError{File: name, Index: i, Msg: fmt.Sprintf(format, args...)}
	}

	out := make([]model.Article, 0, len(records))
	ids := make(map[uint]bool, len(records))
	keys := make(map[string]bool, len(records))
	for i, r := range records {
		switch {
		case r.ID == nil || *r.ID == 0:
			return nil, fail(i, "id must be a positive integer")
		case r.Title == nil || model.NormalizeTitle(*r.Title) == "":
			return nil, fail(i, "title is required")
		case r.Content == nil:
			return nil, fail(i, "content is required")
		case r.CreatedAt == nil || r.CreatedAt.IsZero():
			return nil, fail(i, "created_at is required")
		case r.ModifiedAt == nil || r.ModifiedAt.IsZero():
			return nil, fail(i, "modified_at is required")
		case r.ModifiedAt.Before(*r.CreatedAt):
			return nil, fail(i, "modified_at precedes created_at")
		}
		if ids[*r.ID] {
			return nil, fail(i, "duplicate id %d", *r.ID)
		}
		ids[*r.ID] = true

		a := model.NewArticle(*r.Title, *r.Content, r.CreatedAt.UTC())
		if keys[a.TitleKey] {
			return nil, fail(i, "duplicate title %q", a.Title)
		}
		keys[a.TitleKey] = true

		a.ID = *r.ID
		a.ModifiedAt = r.ModifiedAt.UTC()
		out = append(out, a)
	}
	return out, nil
}

// LoadLogEntries reads and validates a log dump.
func LoadLogEntries(path string) ([]model.LogEntry, error) {
	var records []logRecord
	if err := decodeStrict(path, &records); err != nil {
		return nil, err
	}

	name := filepath.Base(path)
	fail := func(i int, format string, args ...any) error {
		return &ValidationError{File: name, Index: i, Msg: fmt.Sprintf(format, args...)}
	}

	out := make([]model.LogEntry, 0, len(records))
	ids := make(map[uint]bool, len(records))
	for i, r := range records {
		switch {
		case r.ID == nil || *r.ID == 0:
			return nil, fail(i, "id must be a positive integer")
		case r.Title == nil || model.NormalizeTitle(*r.Title) == "":
			return nil, fail(i, "title is required")
		case r.Action == nil || !r.Action.Valid():
			return nil, fail(i, "action must be one of fetch, view, refresh, error")
		case r.Timestamp == nil || r.Timestamp.IsZero():
			return nil, fail(i, "timestamp is required")
		}
		if ids[*r.ID] {
			return nil, fail(i, "duplicate id %d", *r.ID)
		}
		ids[*r.ID] = true

		detail := ""
		if r.Detail != nil {
			detail = *r.Detail
		}
		e := model.NewLogEntry(*r.Title, *r.Action, detail, r.Timestamp.UTC())
		e.ID = *r.ID
		out = append(out, e)
	}
	return out, nil
}

func decodeStrict(path string, v any) error {
	name := filepath.Base(path)
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &ValidationError{File: name, Index: -1, Msg: "file does not exist"}
		}
		return fmt.Errorf("reading %s: %w", name, err)
	}

	// null decodes into a nil slice; only arrays are accepted
	if !bytes.HasPrefix(bytes.TrimSpace(data), []byte("[")) {
		return &ValidationError{File: name, Index: -1, Msg: "expected a JSON array"}
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return &ValidationError{File: name, Index: -1, Msg: err.Error()}
	}
	if _, err := dec.Token(); err != io.EOF {
		return &ValidationError{File: name, Index: -1, Msg: "unexpected data after JSON array"}
	}
	return nil
}
