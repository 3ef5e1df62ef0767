package model

import (
	"fmt"
	"time"
)

type Action string

const (
	ActionFetch   Action = "fetch"
	ActionView    Action = "view"
	ActionRefresh Action = "refresh"
	ActionError   Action = "error"
)

// Actions lists every valid action in display order.
var Actions = []Action{ActionFetch, ActionView, ActionRefresh, ActionError}

// ParseAction validates a user-supplied action name.
func ParseAction(s string) (Action, error) {
	for _, a := range Actions {
		if string(a) == s {
			return a, nil
		}
	}
	return "", fmt.Errorf("unknown action %q (valid: fetch, view, refresh, error)", s)
}

// Valid reports whether a is one of the known actions.
func (a Action) Valid() bool {
	_, err := ParseAction(string(a))
	return err == nil
}

// LogEntry records one action against a title. The title is a soft
// reference; there is no foreign key to wiki_entries.
type LogEntry struct {
	ID        uint      `gorm:"primaryKey" json:"id" yaml:"id"`
	Title     string    `gorm:"type:varchar(255);not null" json:"title" yaml:"title"`
	TitleKey  string    `gorm:"type:varchar(255);not null;index" json:"-" yaml:"-"`
	Action    Action    `gorm:"type:varchar(16);not null;index" json:"action" yaml:"action"`
	Timestamp time.Time `gorm:"not null;index" json:"timestamp" yaml:"timestamp"`
	Detail    string    `gorm:"type:text;not null;default:''" json:"detail" yaml:"detail"`
}

func (LogEntry) TableName() string {
	return "wiki_entry_logs"
}

// NewLogEntry builds an entry stamped with now.
func NewLogEntry(title string, action Action, detail string, now time.Time) LogEntry {
	title = NormalizeTitle(title)
	return LogEntry{
		Title:     title,
		TitleKey:  TitleKey(title),
		Action:    action,
		Timestamp: now,
		Detail:    detail,
	}
}
