package model

import (
	"time"
)

// Article is one cached encyclopedia page.
type Article struct {
	ID         uint      `gorm:"primaryKey" json:"id" yaml:"id"`
	Title      string    `gorm:"type:varchar(255);not null" json:"title" yaml:"title"`
	TitleKey   string    `gorm:"type:varchar(255);not null;uniqueIndex:idx_wiki_entries_title_key" json:"-" yaml:"-"`
	Content    string    `gorm:"type:text;not null" json:"content" yaml:"content"`
	CreatedAt  time.Time `gorm:"not null" json:"created_at" yaml:"created_at"`
	ModifiedAt time.Time `gorm:"not null;index" json:"modified_at" yaml:"modified_at"`
}

// TableName keeps the table name stable across gorm naming strategies.
func (Article) TableName() string {
	return "wiki_entries"
}

// ArticleSummary is the listing view of an Article. It never carries content.
type ArticleSummary struct {
	ID         uint      `json:"id" yaml:"id"`
	Title      string    `json:"title" yaml:"title"`
	ModifiedAt time.Time `json:"modified_at" yaml:"modified_at"`
}

// Summary strips the content off an article.
func (a Article) Summary() ArticleSummary {
	return ArticleSummary{
		ID:         a.ID,
		Title:      a.Title,
		ModifiedAt: a.ModifiedAt,
	}
}

// NewArticle creates an Article for a first successful fetch.
func NewArticle(title, content string, now time.Time) Article {
	title = NormalizeTitle(title)
	return Article{
		Title:      title,
		TitleKey:   TitleKey(title),
		Content:    content,
		CreatedAt:  now,
		ModifiedAt: now,
	}
}
