package wiki

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"wikicache/internal/archive"
	"wikicache/internal/model"
	"wikicache/internal/recent"
	"wikicache/internal/store"
	"wikicache/internal/wikipedia"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var base = time.Date(2024, 2, 20, 9, 30, 0, 0, time.UTC)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

// fakeClient serves pages from memory. Unknown titles are NotFound.
type fakeClient struct {
	mu    sync.Mutex
	pages map[string]*wikipedia.Page
	down  bool
	flaky int
	calls map[string]int
}

func newFakeClient() *fakeClient {
	return &fakeClient{pages: map[string]*wikipedia.Page{}, calls: map[string]int{}}
}

func (f *fakeClient) add(title, markup string, related ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pages[model.TitleKey(title)] = &wikipedia.Page{
		Title:     title,
		Markup:    markup,
		Related:   related,
		SourceURL: "https://en.wikipedia.org/wiki/" + title,
	}
}

func (f *fakeClient) setDown(down bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.down = down
}

func (f *fakeClient) callsFor(title string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[model.TitleKey(title)]
}

func (f *fakeClient) Fetch(ctx context.Context, title string) (*wikipedia.Page, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := model.TitleKey(title)
	f.calls[key]++

	if f.down {
		return nil, &wikipedia.NetworkError{Title: title, StatusCode: 503, Err: errors.New("Service Unavailable")}
	}
	if f.flaky > 0 {
		f.flaky--
		return nil, &wikipedia.NetworkError{Title: title, Err: errors.New("connection reset")}
	}
	p, ok := f.pages[key]
	if !ok {
		return nil, &wikipedia.NotFoundError{Title: title}
	}
	cp := *p
	return &cp, nil
}

type fixture struct {
	svc    *Service
	db     *store.DB
	client *fakeClient
	clock  *fakeClock
}

func newFixture(t *testing.T, cfg Config, opts ...Option) *fixture {
	t.Helper()
	clock := &fakeClock{t: base}
	db, err := store.Open(store.Config{Driver: store.DriverSQLite, Path: filepath.Join(t.TempDir(), "wiki.db")}, zap.NewNop(), store.WithClock(clock.Now))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	client := newFakeClient()
	opts = append([]Option{WithClock(clock.Now)}, opts...)
	svc := New(cfg, db.Articles, db.Log, client, zap.NewNop(), opts...)
	return &fixture{svc: svc, db: db, client: client, clock: clock}
}

func (f *fixture) logs(t *testing.T, action model.Action) []model.LogEntry {
	t.Helper()
	entries, err := f.db.Log.Query(context.Background(), store.LogFilter{Action: action})
	require.NoError(t, err)
	return entries
}

func (f *fixture) articleCount(t *testing.T) int {
	t.Helper()
	all, err := f.db.Articles.All(context.Background())
	require.NoError(t, err)
	return len(all)
}

func TestGetArticle_FetchThenCache(t *testing.T) {
	f := newFixture(t, Config{MaxAge: 24 * time.Hour})
	f.client.add("Alan Turing", "== Early life ==\nBorn in '''London'''.")
	ctx := context.Background()

	first, err := f.svc.GetArticle(ctx, "alan_turing", false)
	require.NoError(t, err)
	assert.Equal(t, StatusCreated, first.Status)
	assert.Equal(t, "alan turing", first.Article.Title)
	assert.Equal(t, "## Early life\nBorn in **London**.", first.Article.Content)

	f.clock.Advance(time.Hour)
	second, err := f.svc.GetArticle(ctx, "Alan Turing", false)
	require.NoError(t, err)
	assert.Equal(t, StatusCached, second.Status)
	assert.Equal(t, first.Article.ID, second.Article.ID)
	assert.Equal(t, first.Article.Content, second.Article.Content)
	assert.True(t, second.Article.ModifiedAt.Equal(first.Article.ModifiedAt))

	assert.Equal(t, 1, f.client.callsFor("Alan Turing"))
	assert.Len(t, f.logs(t, model.ActionFetch), 1)
	assert.Len(t, f.logs(t, model.ActionView), 1)
}

func TestGetArticle_StaleOrForcedRefreshes(t *testing.T) {
	f := newFixture(t, Config{MaxAge: 24 * time.Hour})
	f.client.add("Go", "Go is a language.")
	ctx := context.Background()

	first, err := f.svc.GetArticle(ctx, "Go", false)
	require.NoError(t, err)

	f.clock.Advance(25 * time.Hour)
	stale, err := f.svc.GetArticle(ctx, "Go", false)
	require.NoError(t, err)
	assert.Equal(t, StatusRefreshed, stale.Status)
	assert.Equal(t, first.Article.Content, stale.Article.Content)
	assert.True(t, stale.Article.ModifiedAt.After(first.Article.ModifiedAt))

	f.clock.Advance(time.Minute)
	forced, err := f.svc.GetArticle(ctx, "Go", true)
	require.NoError(t, err)
	assert.Equal(t, StatusRefreshed, forced.Status)
	assert.True(t, forced.Article.ModifiedAt.After(stale.Article.ModifiedAt))
	assert.True(t, forced.Article.CreatedAt.Equal(first.Article.CreatedAt))

	assert.Equal(t, 1, f.articleCount(t))
	assert.Len(t, f.logs(t, model.ActionRefresh), 2)
	assert.Empty(t, f.logs(t, model.ActionView))
}

func TestGetArticle_NotFoundCreatesNoRow(t *testing.T) {
	f := newFixture(t, Config{FetchRetries: 3})

	_, err := f.svc.GetArticle(context.Background(), "Qwzxv Nonexistent", false)
	require.Error(t, err)
	assert.ErrorIs(t, err, wikipedia.ErrNotFound)

	assert.Equal(t, 0, f.articleCount(t))
	errs := f.logs(t, model.ActionError)
	require.Len(t, errs, 1)
	assert.Equal(t, "Qwzxv Nonexistent", errs[0].Title)
	assert.Equal(t, 1, f.client.callsFor("Qwzxv Nonexistent"), "not found is never retried")
}

func TestGetArticle_NetworkFailureServesStaleCopy(t *testing.T) {
	f := newFixture(t, Config{MaxAge: time.Hour, FetchRetries: 2})
	f.client.add("Rust", "Rust is a language.")
	ctx := context.Background()

	orig, err := f.svc.GetArticle(ctx, "Rust", false)
	require.NoError(t, err)

	f.clock.Advance(2 * time.Hour)
	f.client.setDown(true)

	res, err := f.svc.GetArticle(ctx, "Rust", false)
	var netErr *wikipedia.NetworkError
	require.ErrorAs(t, err, &netErr)
	require.NotNil(t, res)
	assert.Equal(t, StatusStale, res.Status)
	assert.Equal(t, orig.Article.Content, res.Article.Content)
	assert.True(t, res.Article.ModifiedAt.Equal(orig.Article.ModifiedAt))

	assert.Equal(t, 4, f.client.callsFor("Rust"), "one success plus one attempt and two retries")
	assert.Len(t, f.logs(t, model.ActionError), 1)
}

func TestGetArticle_NetworkFailureWithoutCache(t *testing.T) {
	f := newFixture(t, Config{})
	f.client.setDown(true)

	res, err := f.svc.GetArticle(context.Background(), "Anything", false)
	assert.Nil(t, res)
	var netErr *wikipedia.NetworkError
	assert.ErrorAs(t, err, &netErr)
	assert.Equal(t, 0, f.articleCount(t))
}

func TestGetArticle_RetriesTransientFailures(t *testing.T) {
	f := newFixture(t, Config{FetchRetries: 2})
	f.client.add("Flaky", "finally")
	f.client.flaky = 2

	res, err := f.svc.GetArticle(context.Background(), "Flaky", false)
	require.NoError(t, err)
	assert.Equal(t, "finally", res.Article.Content)
	assert.Equal(t, 3, f.client.callsFor("Flaky"))
	assert.Empty(t, f.logs(t, model.ActionError))
}

func TestGetArticle_RetriesAreBounded(t *testing.T) {
	f := newFixture(t, Config{FetchRetries: 1})
	f.client.add("Flaky", "finally")
	f.client.flaky = 5

	_, err := f.svc.GetArticle(context.Background(), "Flaky", false)
	require.Error(t, err)
	assert.Equal(t, 2, f.client.callsFor("Flaky"))
}

func TestGetArticle_InvalidTitle(t *testing.T) {
	f := newFixture(t, Config{})

	_, err := f.svc.GetArticle(context.Background(), " __ ", false)
	assert.ErrorIs(t, err, ErrInvalidTitle)
	assert.Empty(t, f.logs(t, ""))
}

func TestGetRelated_CollectsFailures(t *testing.T) {
	f := newFixture(t, Config{})
	f.client.add("Alan Turing", "Turing.", "Enigma machine", "Missing One", "Missing Two")
	f.client.add("Enigma machine", "A cipher device.")
	ctx := context.Background()

	report, err := f.svc.GetRelated(ctx, "Alan Turing", false)
	require.NoError(t, err)

	assert.Equal(t, StatusCreated, report.Primary.Status)
	assert.Equal(t, 1, report.Fetched)
	assert.Equal(t, 2, report.Failed)
	require.Len(t, report.Related, 3)
	assert.Equal(t, StatusCreated, report.Related[0].Status)
	assert.ErrorIs(t, report.Related[1].Err, wikipedia.ErrNotFound)

	assert.Equal(t, 2, f.articleCount(t))
	assert.Len(t, f.logs(t, model.ActionError), 2)
}

func TestGetRelated_SkipsPrimaryAndDuplicates(t *testing.T) {
	f := newFixture(t, Config{})
	f.client.add("Go", "Go.", "go", "Rust", "rust", "Rust")
	f.client.add("Rust", "Rust.")

	report, err := f.svc.GetRelated(context.Background(), "Go", false)
	require.NoError(t, err)
	require.Len(t, report.Related, 1)
	assert.Equal(t, "Rust", report.Related[0].Title)
	assert.Equal(t, 1, f.client.callsFor("Rust"))
	assert.Equal(t, 1, f.client.callsFor("Go"))
}

func TestGetRelated_FromCachedContent(t *testing.T) {
	f := newFixture(t, Config{})
	f.client.add("Go", "Go is a language.\n\n== See also ==\nRust\nZig\n\n== References ==\nnone", "Rust", "Zig")
	f.client.add("Rust", "Rust.")
	f.client.add("Zig", "Zig.")
	ctx := context.Background()

	_, err := f.svc.GetArticle(ctx, "Go", false)
	require.NoError(t, err)

	report, err := f.svc.GetRelated(ctx, "Go", false)
	require.NoError(t, err)
	assert.Equal(t, StatusCached, report.Primary.Status)
	assert.Equal(t, 2, report.Fetched)
	assert.Equal(t, 1, f.client.callsFor("Go"))
}

func TestGetRelated_PrimaryFailureAborts(t *testing.T) {
	f := newFixture(t, Config{})

	report, err := f.svc.GetRelated(context.Background(), "Nope", false)
	assert.Nil(t, report)
	assert.ErrorIs(t, err, wikipedia.ErrNotFound)
}

func TestRefreshAll_OnlyStale(t *testing.T) {
	f := newFixture(t, Config{MaxAge: 24 * time.Hour})
	ctx := context.Background()
	for _, title := range []string{"Old", "New", "Gone"} {
		f.client.add(title, title+" body")
	}

	_, err := f.svc.GetArticle(ctx, "Old", false)
	require.NoError(t, err)
	_, err = f.svc.GetArticle(ctx, "Gone", false)
	require.NoError(t, err)
	f.clock.Advance(20 * time.Hour)
	_, err = f.svc.GetArticle(ctx, "New", false)
	require.NoError(t, err)
	f.clock.Advance(5 * time.Hour)

	// "Gone" was deleted upstream; the batch must keep going
	delete(f.client.pages, model.TitleKey("Gone"))

	report, err := f.svc.RefreshAll(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, 3, report.Total)
	assert.Equal(t, 1, report.Updated)
	assert.Equal(t, 1, report.Skipped)
	assert.Equal(t, 1, report.Failed)

	assert.Len(t, f.logs(t, model.ActionRefresh), 1)
	assert.Len(t, f.logs(t, model.ActionError), 1)
	assert.Empty(t, f.logs(t, model.ActionView))
	assert.Equal(t, 1, f.client.callsFor("New"))
}

func TestRefreshAll_ForceRefreshesEverything(t *testing.T) {
	f := newFixture(t, Config{})
	ctx := context.Background()
	for _, title := range []string{"A", "B", "C"} {
		f.client.add(title, title)
		_, err := f.svc.GetArticle(ctx, title, false)
		require.NoError(t, err)
	}
	f.clock.Advance(time.Minute)

	report, err := f.svc.RefreshAll(ctx, true)
	require.NoError(t, err)
	assert.Equal(t, 3, report.Updated)
	assert.Zero(t, report.Skipped)
	assert.Len(t, f.logs(t, model.ActionRefresh), 3)
	assert.Empty(t, f.logs(t, model.ActionView))
}

func TestRefreshAll_EmptyStore(t *testing.T) {
	f := newFixture(t, Config{})

	report, err := f.svc.RefreshAll(context.Background(), false)
	require.NoError(t, err)
	assert.Zero(t, report.Total)
}

func TestService_ArchiveAndRecentFeed(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	feed, err := recent.New(context.Background(), mr.Addr(), 10)
	require.NoError(t, err)
	defer feed.Close()

	arc, err := archive.OpenInMemory()
	require.NoError(t, err)
	defer arc.Close()

	f := newFixture(t, Config{}, WithArchive(arc), WithRecentFeed(feed))
	f.client.add("Go", "== History ==\nStarted in 2007.")
	f.client.add("Rust", "Rust.")
	ctx := context.Background()

	for _, title := range []string{"Go", "Rust", "Go"} {
		_, err := f.svc.GetArticle(ctx, title, false)
		require.NoError(t, err)
	}

	rec, err := f.svc.Raw(ctx, "go")
	require.NoError(t, err)
	assert.Equal(t, "== History ==\nStarted in 2007.", rec.Markup)

	titles, err := f.svc.Recent(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"Go", "Rust"}, titles)
}

func TestService_OptionalFeaturesDisabled(t *testing.T) {
	f := newFixture(t, Config{})

	_, err := f.svc.Raw(context.Background(), "Go")
	assert.ErrorIs(t, err, ErrArchiveDisabled)
	_, err = f.svc.Recent(context.Background(), 5)
	assert.ErrorIs(t, err, ErrFeedDisabled)
}

// failingLog rejects every write once broken is set.
type failingLog struct {
	store.ActionLog
	broken bool
}

func (l *failingLog) Record(ctx context.Context, title string, action model.Action, detail string) error {
	if l.broken {
		return &store.StorageError{Op: "record log", Err: errors.New("disk full")}
	}
	return l.ActionLog.Record(ctx, title, action, detail)
}

func TestGetArticle_LogFailureFailsOperation(t *testing.T) {
	f := newFixture(t, Config{MaxAge: 24 * time.Hour})
	f.client.add("Alan Turing", "Mathematician.")
	f.client.add("Enigma machine", "Cipher device.")

	log := &failingLog{ActionLog: f.db.Log}
	svc := New(Config{MaxAge: 24 * time.Hour}, f.db.Articles, log, f.client, zap.NewNop(), WithClock(f.clock.Now))
	ctx := context.Background()

	_, err := svc.GetArticle(ctx, "Alan Turing", false)
	require.NoError(t, err)
	log.broken = true

	tests := []struct {
		name  string
		title string
		force bool
	}{
		{"view", "Alan Turing", false},
		{"refresh", "Alan Turing", true},
		{"fetch", "Enigma machine", false},
		{"not found", "Qwzxv", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := svc.GetArticle(ctx, tt.title, tt.force)
			assert.Nil(t, res)
			var se *store.StorageError
			require.ErrorAs(t, err, &se)
			assert.Equal(t, "record log", se.Op)
		})
	}

	_, err = svc.GetArticle(ctx, "Qwzxv", false)
	assert.ErrorIs(t, err, wikipedia.ErrNotFound)
}

func TestGetArticle_LogFailureWithStaleCopy(t *testing.T) {
	f := newFixture(t, Config{MaxAge: 24 * time.Hour})
	f.client.add("Alan Turing", "Mathematician.")

	log := &failingLog{ActionLog: f.db.Log}
	svc := New(Config{MaxAge: 24 * time.Hour}, f.db.Articles, log, f.client, zap.NewNop(), WithClock(f.clock.Now))
	ctx := context.Background()

	_, err := svc.GetArticle(ctx, "Alan Turing", false)
	require.NoError(t, err)

	log.broken = true
	f.client.setDown(true)
	res, err := svc.GetArticle(ctx, "Alan Turing", true)
	assert.Nil(t, res, "no stale copy when the error cannot be audited")

	var se *store.StorageError
	require.ErrorAs(t, err, &se)
	var ne *wikipedia.NetworkError
	assert.ErrorAs(t, err, &ne)
}
