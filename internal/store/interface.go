package store

import (
	"context"
	"errors"
	"fmt"

	"wikicache/internal/model"
)

var (
	ErrNotFound   = errors.New("article not found")
	ErrEmptyTitle = errors.New("title is empty")
)

// StorageError wraps any failure of the underlying database.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage: %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// ListOptions pages through article summaries. A zero Limit lists everything.
type ListOptions struct {
	Limit  int
	Offset int
}

// LogFilter narrows an Action Log query. Zero values mean "no filter";
// a zero Limit returns every matching entry.
type LogFilter struct {
	Title  string
	Action model.Action
	Limit  int
}

// ArticleStore owns the cached articles, keyed by normalized title.
type ArticleStore interface {
	Get(ctx context.Context, title string) (*model.Article, error)
	GetByID(ctx context.Context, id uint) (*model.Article, error)
	Upsert(ctx context.Context, title, content string) (*model.Article, error)
	List(ctx context.Context, opts ListOptions) ([]model.ArticleSummary, error)
	All(ctx context.Context) ([]model.Article, error)
}

// ActionLog is the append-only audit trail.
type ActionLog interface {
	Record(ctx context.Context, title string, action model.Action, detail string) error
	Query(ctx context.Context, filter LogFilter) ([]model.LogEntry, error)
	All(ctx context.Context) ([]model.LogEntry, error)
}
