package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"wikicache/internal/config"
	"wikicache/internal/model"
	"wikicache/internal/store"
	"wikicache/internal/wiki"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testConfig(t *testing.T, apiURL string) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Database.Path = filepath.Join(t.TempDir(), "app.db")
	cfg.Wikipedia.BaseURL = apiURL
	cfg.Refresh.RetryInterval = 0
	return cfg
}

func wikipediaStub(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("titles") == "Go" {
			w.Write([]byte(`{"query":{"pages":[{"title":"Go","extract":"Go is a language.\n\n== See also ==\nRust\n"}]}}`))
			return
		}
		w.Write([]byte(`{"query":{"pages":[{"title":"x","missing":true}]}}`))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestNew_EndToEnd(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	cfg := testConfig(t, wikipediaStub(t).URL)
	cfg.Redis.Addr = mr.Addr()
	cfg.Archive.Path = filepath.Join(t.TempDir(), "archive")

	ctx := context.Background()
	a, err := New(ctx, cfg, zap.NewNop())
	require.NoError(t, err)
	defer a.Close()

	require.NotNil(t, a.Archive)
	require.NotNil(t, a.Feed)

	res, err := a.Service.GetArticle(ctx, "Go", false)
	require.NoError(t, err)
	assert.Equal(t, wiki.StatusCreated, res.Status)
	assert.Equal(t, "Go is a language.\n\n## See also\nRust", res.Article.Content)
	assert.Equal(t, []string{"Rust"}, res.Related)

	rec, err := a.Service.Raw(ctx, "Go")
	require.NoError(t, err)
	assert.Contains(t, rec.Markup, "== See also ==")

	titles, err := a.Service.Recent(ctx, 5)
	require.NoError(t, err)
	assert.Equal(t, []string{"Go"}, titles)

	logs, err := a.Service.Logs(ctx, store.LogFilter{Action: model.ActionFetch})
	require.NoError(t, err)
	assert.Len(t, logs, 1)
}

func TestNew_OptionalBackendsDegrade(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	addr := mr.Addr()
	mr.Close()

	cfg := testConfig(t, wikipediaStub(t).URL)
	cfg.Redis.Addr = addr

	a, err := New(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)
	defer a.Close()

	assert.Nil(t, a.Feed)
	assert.Nil(t, a.Archive)
	_, err = a.Service.Recent(context.Background(), 5)
	assert.ErrorIs(t, err, wiki.ErrFeedDisabled)
}

func TestNew_BadDatabase(t *testing.T) {
	cfg := testConfig(t, "http://unused")
	cfg.Database.Driver = "mysql"

	_, err := New(context.Background(), cfg, zap.NewNop())
	assert.Error(t, err)
}

func TestNewLogger(t *testing.T) {
	logger, err := NewLogger(config.LogConfig{Level: "warn", Format: "json"}, false)
	require.NoError(t, err)
	assert.False(t, logger.Core().Enabled(zap.InfoLevel))

	logger, err = NewLogger(config.LogConfig{Level: "warn", Format: "console"}, true)
	require.NoError(t, err)
	assert.True(t, logger.Core().Enabled(zap.DebugLevel))

	_, err = NewLogger(config.LogConfig{Level: "loud"}, false)
	assert.Error(t, err)
}

func TestServe_StopsOnCancel(t *testing.T) {
	a, err := New(context.Background(), testConfig(t, wikipediaStub(t).URL), zap.NewNop())
	require.NoError(t, err)
	defer a.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Serve(ctx, "127.0.0.1:0") }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
}

func TestServe_ListenError(t *testing.T) {
	a, err := New(context.Background(), testConfig(t, wikipediaStub(t).URL), zap.NewNop())
	require.NoError(t, err)
	defer a.Close()

	err = a.Serve(context.Background(), "256.0.0.1:bad")
	assert.Error(t, err)
}
