package store

import (
	"context"
	"errors"
	"time"

	"wikicache/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Articles is the gorm-backed ArticleStore.
type Articles struct {
	db  *gorm.DB
	now func() time.Time
}

var _ ArticleStore = (*Articles)(nil)

func (s *Articles) Get(ctx context.Context, title string) (*model.Article, error) {
	key := model.TitleKey(title)
	if key == "" {
		return nil, ErrEmptyTitle
	}

	var a model.Article
	if err := s.db.WithContext(ctx).Where("title_key = ?", key).Take(&a).Error; err != nil {
		return nil, wrap("get article", err)
	}
	return &a, nil
}

func (s *Articles) GetByID(ctx context.Context, id uint) (*model.Article, error) {
	var a model.Article
	if err := s.db.WithContext(ctx).Where("id = ?", id).Take(&a).Error; err != nil {
		return nil, wrap("get article by id", err)
	}
	return &a, nil
}

// Upsert creates the article or replaces its content. The read and the
// write share one transaction; concurrent writers of the same title
// resolve through the unique title_key and the last commit wins.
func (s *Articles) Upsert(ctx context.Context, title, content string) (*model.Article, error) {
	title = model.NormalizeTitle(title)
	if title == "" {
		return nil, ErrEmptyTitle
	}
	key := model.TitleKey(title)

	var out model.Article
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := stamp(s.now())

		var existing model.Article
		err := tx.Where("title_key = ?", key).Take(&existing).Error
		switch {
		case err == nil:
			// modified_at never moves backwards, even if the clock does
			if now.Before(existing.ModifiedAt) {
				now = existing.ModifiedAt
			}
		case errors.Is(err, gorm.ErrRecordNotFound):
		default:
			return err
		}

		row := model.NewArticle(title, content, now)
		err = tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "title_key"}},
			// title stays as first stored
			DoUpdates: clause.AssignmentColumns([]string{"content", "modified_at"}),
		}).Create(&row).Error
		if err != nil {
			return err
		}

		return tx.Where("title_key = ?", key).Take(&out).Error
	})
	if err != nil {
		return nil, wrap("upsert article", err)
	}
	return &out, nil
}

// List returns summaries, most recently modified first. Content is never
// selected.
func (s *Articles) List(ctx context.Context, opts ListOptions) ([]model.ArticleSummary, error) {
	q := s.db.WithContext(ctx).
		Model(&model.Article{}).
		Select("id", "title", "modified_at").
		Order("modified_at DESC").
		Order("id DESC")
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
		if opts.Offset > 0 {
			q = q.Offset(opts.Offset)
		}
	}

	out := []model.ArticleSummary{}
	if err := q.Find(&out).Error; err != nil {
		return nil, wrap("list articles", err)
	}
	return out, nil
}

// All returns every article with content, oldest id first.
func (s *Articles) All(ctx context.Context) ([]model.Article, error) {
	out := []model.Article{}
	if err := s.db.WithContext(ctx).Order("id ASC").Find(&out).Error; err != nil {
		return nil, wrap("read all articles", err)
	}
	return out, nil
}
