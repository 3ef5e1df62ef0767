package freshness

import (
	"testing"
	"time"

	"wikicache/internal/model"

	"github.com/stretchr/testify/assert"
)

func TestIsStale(t *testing.T) {
	now := time.Date(2024, 2, 20, 12, 0, 0, 0, time.UTC)
	maxAge := 24 * time.Hour

	assert.True(t, IsStale(now.Add(-25*time.Hour), maxAge, now), "25h old should be stale")
	assert.False(t, IsStale(now.Add(-1*time.Hour), maxAge, now), "1h old should be fresh")
	assert.False(t, IsStale(now.Add(-24*time.Hour), maxAge, now), "exactly max age is not older than max age")
	assert.False(t, IsStale(now.Add(3*time.Hour), maxAge, now), "future timestamps are never stale")
	assert.True(t, IsStale(now.Add(-time.Nanosecond), 0, now), "zero max age makes anything in the past stale")
}

func TestPolicy_NeedsRefresh(t *testing.T) {
	now := time.Date(2024, 2, 20, 12, 0, 0, 0, time.UTC)
	fresh := &model.Article{ModifiedAt: now.Add(-time.Hour)}
	stale := &model.Article{ModifiedAt: now.Add(-25 * time.Hour)}
	skewed := &model.Article{ModifiedAt: now.Add(time.Hour)}

	p := Policy{MaxAge: DefaultMaxAge}
	assert.True(t, p.NeedsRefresh(nil, now), "missing article must be fetched")
	assert.False(t, p.NeedsRefresh(fresh, now))
	assert.True(t, p.NeedsRefresh(stale, now))
	assert.False(t, p.NeedsRefresh(skewed, now))

	forced := Policy{MaxAge: DefaultMaxAge, Force: true}
	assert.True(t, forced.NeedsRefresh(fresh, now))
	assert.True(t, forced.NeedsRefresh(skewed, now))
}
