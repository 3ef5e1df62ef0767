package store

import (
	"context"
	"fmt"
	"time"

	"wikicache/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Logs is the gorm-backed ActionLog. Rows are only ever inserted.
type Logs struct {
	db  *gorm.DB
	now func() time.Time
}

var _ ActionLog = (*Logs)(nil)

func (l *Logs) Record(ctx context.Context, title string, action model.Action, detail string) error {
	if !action.Valid() {
		return &StorageError{Op: "record log", Err: fmt.Errorf("invalid action %q", action)}
	}
	entry := model.NewLogEntry(title, action, detail, stamp(l.now()))
	if entry.Title == "" {
		return ErrEmptyTitle
	}
	return wrap("record log", l.db.WithContext(ctx).Create(&entry).Error)
}

// Query returns matching entries, newest first.
func (l *Logs) Query(ctx context.Context, filter LogFilter) ([]model.LogEntry, error) {
	q := l.db.WithContext(ctx).
		Order(clause.OrderByColumn{Column: clause.Column{Name: "timestamp"}, Desc: true}).
		Order(clause.OrderByColumn{Column: clause.Column{Name: "id"}, Desc: true})
	if filter.Title != "" {
		q = q.Where("title_key = ?", model.TitleKey(filter.Title))
	}
	if filter.Action != "" {
		q = q.Where(&model.LogEntry{Action: filter.Action})
	}
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit)
	}

	out := []model.LogEntry{}
	if err := q.Find(&out).Error; err != nil {
		return nil, wrap("query logs", err)
	}
	return out, nil
}

// All returns the whole log in insertion order.
func (l *Logs) All(ctx context.Context) ([]model.LogEntry, error) {
	out := []model.LogEntry{}
	if err := l.db.WithContext(ctx).Order("id ASC").Find(&out).Error; err != nil {
		return nil, wrap("read all logs", err)
	}
	return out, nil
}
