// Package wiki ties the Wikipedia client, the converter and the two stores
// together: it decides when a cached article is good enough, fetches and
// stores it otherwise, and records every outcome in the action log.
package wiki

import (
	"context"
	"errors"
	"time"

	"wikicache/internal/archive"
	"wikicache/internal/freshness"
	"wikicache/internal/markdown"
	"wikicache/internal/model"
	"wikicache/internal/store"
	"wikicache/internal/wikipedia"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
)

var (
	ErrInvalidTitle    = errors.New("title must not be empty")
	ErrArchiveDisabled = errors.New("raw archive is not configured")
	ErrFeedDisabled    = errors.New("recent feed is not configured")
)

// Status describes where the article in a Result came from.
type Status string

const (
	StatusCreated   Status = "created"
	StatusRefreshed Status = "refreshed"
	StatusCached    Status = "cached"
	StatusStale     Status = "stale"
	StatusSkipped   Status = "skipped"
	StatusFailed    Status = "failed"
)

// Result is the outcome of a single GetArticle call. Related lists the
// "See also" titles of the returned article.
type Result struct {
	Article *model.Article
	Status  Status
	Related []string
}

type Config struct {
	MaxAge        time.Duration
	FetchRetries  int
	RetryInterval time.Duration
}

// RawArchive stores the unconverted markup of each successful fetch.
type RawArchive interface {
	Put(ctx context.Context, rec archive.Record) error
	Get(ctx context.Context, title string) (*archive.Record, error)
}

// RecentFeed tracks recently touched titles.
type RecentFeed interface {
	Push(ctx context.Context, title string) error
	List(ctx context.Context, limit int) ([]string, error)
}

type Service struct {
	cfg      Config
	articles store.ArticleStore
	log      store.ActionLog
	client   wikipedia.Client
	convert  func(string) string
	archive  RawArchive
	recent   RecentFeed
	logger   *zap.Logger
	now      func() time.Time
}

type Option func(*Service)

func WithArchive(a RawArchive) Option {
	return func(s *Service) { s.archive = a }
}

func WithRecentFeed(f RecentFeed) Option {
	return func(s *Service) { s.recent = f }
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func WithConverter(convert func(string) string) Option {
	return func(s *Service) { s.convert = convert }
}

func New(cfg Config, articles store.ArticleStore, log store.ActionLog, client wikipedia.Client, logger *zap.Logger, opts ...Option) *Service {
	if cfg.MaxAge <= 0 {
		cfg.MaxAge = freshness.DefaultMaxAge
	}
	if cfg.FetchRetries < 0 {
		cfg.FetchRetries = 0
	}
	s := &Service{
		cfg:      cfg,
		articles: articles,
		log:      log,
		client:   client,
		convert:  markdown.Convert,
		logger:   logger,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// GetArticle returns the cached article for title, fetching it first when it
// is missing, stale or force is set.
//
// When the remote is unreachable but a cached copy exists, the copy comes
// back with StatusStale alongside the network error.
func (s *Service) GetArticle(ctx context.Context, title string, force bool) (*Result, error) {
	title = model.NormalizeTitle(title)
	if title == "" {
		return nil, ErrInvalidTitle
	}
	logger := s.logger.With(zap.String("title", title))

	existing, err := s.articles.Get(ctx, title)
	switch {
	case errors.Is(err, store.ErrNotFound):
		existing = nil
	case err != nil:
		return nil, err
	}

	policy := freshness.Policy{MaxAge: s.cfg.MaxAge, Force: force}
	if !policy.NeedsRefresh(existing, s.now()) {
		if err := s.log.Record(ctx, existing.Title, model.ActionView, ""); err != nil {
			return nil, err
		}
		s.touch(ctx, logger, existing.Title)
		logger.Debug("Served from cache", zap.Time("modified_at", existing.ModifiedAt))
		return &Result{Article: existing, Status: StatusCached, Related: wikipedia.RelatedTitles(existing.Content)}, nil
	}

	return s.fetch(ctx, logger, title, existing)
}

func (s *Service) fetch(ctx context.Context, logger *zap.Logger, title string, existing *model.Article) (*Result, error) {
	logger.Info("Downloading", zap.Bool("cached", existing != nil))

	page, err := s.fetchWithRetry(ctx, logger, title)
	if err != nil {
		return s.fetchFailed(ctx, logger, title, existing, err)
	}

	article, err := s.articles.Upsert(ctx, title, s.convert(page.Markup))
	if err != nil {
		logger.Error("Failed to save result", zap.Error(err))
		return nil, err
	}

	action, status := model.ActionFetch, StatusCreated
	if existing != nil {
		action, status = model.ActionRefresh, StatusRefreshed
	}
	if err := s.log.Record(ctx, article.Title, action, page.SourceURL); err != nil {
		return nil, err
	}

	s.archiveRaw(ctx, logger, article.Title, page)
	s.touch(ctx, logger, article.Title)

	logger.Info("Article stored", zap.String("status", string(status)), zap.Uint("id", article.ID))
	return &Result{Article: article, Status: status, Related: page.Related}, nil
}

func (s *Service) fetchFailed(ctx context.Context, logger *zap.Logger, title string, existing *model.Article, cause error) (*Result, error) {
	if err := s.log.Record(ctx, title, model.ActionError, cause.Error()); err != nil {
		return nil, errors.Join(cause, err)
	}

	if errors.Is(cause, wikipedia.ErrNotFound) {
		logger.Info("Article not found on Wikipedia")
		return nil, cause
	}

	var netErr *wikipedia.NetworkError
	if existing != nil && errors.As(cause, &netErr) {
		logger.Warn("Wikipedia unavailable, serving stale copy", zap.Error(cause))
		return &Result{Article: existing, Status: StatusStale, Related: wikipedia.RelatedTitles(existing.Content)}, cause
	}

	logger.Error("Fetch failed", zap.Error(cause))
	return nil, cause
}

// fetchWithRetry retries network failures only, at most FetchRetries times.
func (s *Service) fetchWithRetry(ctx context.Context, logger *zap.Logger, title string) (*wikipedia.Page, error) {
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = s.cfg.RetryInterval
	eb.MaxElapsedTime = 0
	b := backoff.WithContext(backoff.WithMaxRetries(eb, uint64(s.cfg.FetchRetries)), ctx)

	var page *wikipedia.Page
	attempt := 0
	op := func() error {
		attempt++
		p, err := s.client.Fetch(ctx, title)
		if err != nil {
			var netErr *wikipedia.NetworkError
			if errors.As(err, &netErr) {
				return err
			}
			return backoff.Permanent(err)
		}
		page = p
		return nil
	}
	notify := func(err error, wait time.Duration) {
		logger.Warn("Fetch attempt failed", zap.Int("attempt", attempt), zap.Duration("retry_in", wait), zap.Error(err))
	}

	if err := backoff.RetryNotify(op, b, notify); err != nil {
		return nil, err
	}
	return page, nil
}

func (s *Service) archiveRaw(ctx context.Context, logger *zap.Logger, title string, page *wikipedia.Page) {
	if s.archive == nil {
		return
	}
	rec := archive.Record{Title: title, SourceURL: page.SourceURL, ArchivedAt: s.now().UTC(), Markup: page.Markup}
	if err := s.archive.Put(ctx, rec); err != nil {
		logger.Warn("Failed to archive raw markup", zap.Error(err))
	}
}

func (s *Service) touch(ctx context.Context, logger *zap.Logger, title string) {
	if s.recent == nil {
		return
	}
	if err := s.recent.Push(ctx, title); err != nil {
		logger.Warn("Failed to update recent feed", zap.Error(err))
	}
}

// Articles lists cached article summaries, newest first.
func (s *Service) Articles(ctx context.Context, opts store.ListOptions) ([]model.ArticleSummary, error) {
	return s.articles.List(ctx, opts)
}

// Article returns a cached article by id without touching the network.
func (s *Service) Article(ctx context.Context, id uint) (*model.Article, error) {
	return s.articles.GetByID(ctx, id)
}

func (s *Service) Logs(ctx context.Context, filter store.LogFilter) ([]model.LogEntry, error) {
	return s.log.Query(ctx, filter)
}

// Raw returns the archived markup of the last successful fetch of title.
func (s *Service) Raw(ctx context.Context, title string) (*archive.Record, error) {
	if s.archive == nil {
		return nil, ErrArchiveDisabled
	}
	title = model.NormalizeTitle(title)
	if title == "" {
		return nil, ErrInvalidTitle
	}
	return s.archive.Get(ctx, title)
}

func (s *Service) Recent(ctx context.Context, limit int) ([]string, error) {
	if s.recent == nil {
		return nil, ErrFeedDisabled
	}
	return s.recent.List(ctx, limit)
}
