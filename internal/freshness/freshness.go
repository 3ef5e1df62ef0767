// Package freshness decides when a cached article must be fetched again.
package freshness

import (
	"time"

	"wikicache/internal/model"
)

// DefaultMaxAge is the age after which a cached article is considered stale
// when no other value is configured.
const DefaultMaxAge = 24 * time.Hour

// IsStale reports whether an article last modified at modifiedAt is older
// than maxAge at now. A modifiedAt in the future is never stale.
func IsStale(modifiedAt time.Time, maxAge time.Duration, now time.Time) bool {
	if modifiedAt.After(now) {
		return false
	}
	return now.Sub(modifiedAt) > maxAge
}

// Policy bundles the configured age threshold with a per-call force flag.
type Policy struct {
	MaxAge time.Duration
	Force  bool
}

// NeedsRefresh reports whether article must be re-fetched. A nil article
// (not cached yet) always needs a fetch.
func (p Policy) NeedsRefresh(article *model.Article, now time.Time) bool {
	if article == nil || p.Force {
		return true
	}
	return IsStale(article.ModifiedAt, p.MaxAge, now)
}
