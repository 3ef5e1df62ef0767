package wiki

import (
	"context"

	"wikicache/internal/freshness"
	"wikicache/internal/model"

	"go.uber.org/zap"
)

// Outcome is the per-title line of a batch report. Err is set for failures;
// a stale fallback counts as a failure.
type Outcome struct {
	Title  string
	ID     uint
	Status Status
	Err    error
}

func (o Outcome) Failed() bool {
	return o.Err != nil
}

type RelatedReport struct {
	Primary *Result
	Related []Outcome
	Fetched int
	Failed  int
}

type RefreshReport struct {
	Total    int
	Updated  int
	Skipped  int
	Failed   int
	Outcomes []Outcome
}

// GetRelated fetches title, then every title in its "See also" section,
// one hop deep. Failures of related titles are collected, not returned.
func (s *Service) GetRelated(ctx context.Context, title string, force bool) (*RelatedReport, error) {
	primary, err := s.GetArticle(ctx, title, force)
	if primary == nil {
		return nil, err
	}
	if err != nil {
		s.logger.Warn("Using stale primary for related lookup", zap.String("title", primary.Article.Title), zap.Error(err))
	}

	report := &RelatedReport{Primary: primary}
	seen := map[string]bool{model.TitleKey(primary.Article.Title): true}
	for _, related := range primary.Related {
		key := model.TitleKey(related)
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true

		if err := ctx.Err(); err != nil {
			return report, err
		}

		out := s.outcome(related, func() (*Result, error) {
			return s.GetArticle(ctx, related, force)
		})
		if out.Failed() {
			report.Failed++
		} else {
			report.Fetched++
		}
		report.Related = append(report.Related, out)
	}

	s.logger.Info("Related lookup finished",
		zap.String("title", primary.Article.Title),
		zap.Int("fetched", report.Fetched),
		zap.Int("failed", report.Failed))
	return report, nil
}

// RefreshAll re-fetches every stored article that is stale, or all of them
// when force is set. It keeps going past individual failures.
func (s *Service) RefreshAll(ctx context.Context, force bool) (*RefreshReport, error) {
	articles, err := s.articles.All(ctx)
	if err != nil {
		return nil, err
	}

	report := &RefreshReport{Total: len(articles)}
	policy := freshness.Policy{MaxAge: s.cfg.MaxAge, Force: force}
	for i := range articles {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		a := &articles[i]

		if !policy.NeedsRefresh(a, s.now()) {
			report.Skipped++
			report.Outcomes = append(report.Outcomes, Outcome{Title: a.Title, ID: a.ID, Status: StatusSkipped})
			continue
		}

		logger := s.logger.With(zap.String("title", a.Title))
		out := s.outcome(a.Title, func() (*Result, error) {
			return s.fetch(ctx, logger, a.Title, a)
		})
		if out.Failed() {
			report.Failed++
		} else {
			report.Updated++
		}
		report.Outcomes = append(report.Outcomes, out)
	}

	s.logger.Info("Refresh finished",
		zap.Int("total", report.Total),
		zap.Int("updated", report.Updated),
		zap.Int("skipped", report.Skipped),
		zap.Int("failed", report.Failed))
	return report, nil
}

func (s *Service) outcome(title string, run func() (*Result, error)) Outcome {
	res, err := run()
	out := Outcome{Title: model.NormalizeTitle(title), Err: err, Status: StatusFailed}
	if res != nil {
		out.ID = res.Article.ID
		out.Title = res.Article.Title
		out.Status = res.Status
	}
	return out
}
