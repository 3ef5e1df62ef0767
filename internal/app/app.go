// Package app builds the object graph shared by the CLI and the server.
package app

import (
	"context"
	"errors"
	"fmt"

	"wikicache/internal/archive"
	"wikicache/internal/config"
	"wikicache/internal/recent"
	"wikicache/internal/store"
	"wikicache/internal/wiki"
	"wikicache/internal/wikipedia"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type App struct {
	Config  *config.Config
	Logger  *zap.Logger
	DB      *store.DB
	Service *wiki.Service
	Archive *archive.Archive
	Feed    *recent.Feed
}

// NewLogger writes to stderr so command output on stdout stays clean.
func NewLogger(cfg config.LogConfig, verbose bool) (*zap.Logger, error) {
	zc := zap.NewDevelopmentConfig()
	if cfg.Format == "json" {
		zc = zap.NewProductionConfig()
	}
	zc.OutputPaths = []string{"stderr"}
	zc.ErrorOutputPaths = []string{"stderr"}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("log.level: %w", err)
	}
	if verbose {
		level = zapcore.DebugLevel
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	return zc.Build()
}

// New opens the database and the optional archive and feed, then wires the
// service. Optional backends that fail to open are logged and skipped.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	db, err := store.Open(store.Config{
		Driver:       cfg.Database.Driver,
		Path:         cfg.Database.Path,
		DSN:          cfg.Database.DSN,
		LogLevel:     cfg.Database.LogLevel,
		MaxOpenConns: cfg.Database.MaxOpenConns,
	}, logger)
	if err != nil {
		return nil, err
	}

	a := &App{Config: cfg, Logger: logger, DB: db}
	var opts []wiki.Option

	if cfg.Archive.Path != "" {
		arc, err := archive.Open(cfg.Archive.Path)
		if err != nil {
			logger.Warn("Raw archive unavailable", zap.String("path", cfg.Archive.Path), zap.Error(err))
		} else {
			a.Archive = arc
			opts = append(opts, wiki.WithArchive(arc))
		}
	}

	if cfg.Redis.Addr != "" {
		feed, err := recent.New(ctx, cfg.Redis.Addr, cfg.Redis.RecentSize)
		if err != nil {
			logger.Warn("Recent feed unavailable", zap.String("addr", cfg.Redis.Addr), zap.Error(err))
		} else {
			a.Feed = feed
			opts = append(opts, wiki.WithRecentFeed(feed))
		}
	}

	client := wikipedia.NewHTTPClient(wikipedia.Options{
		BaseURL:   cfg.Wikipedia.BaseURL,
		UserAgent: cfg.Wikipedia.UserAgent,
		Timeout:   cfg.Wikipedia.Timeout,
		Format:    wikipedia.Format(cfg.Wikipedia.Format),
	})

	a.Service = wiki.New(wiki.Config{
		MaxAge:        cfg.Refresh.MaxAge,
		FetchRetries:  cfg.Refresh.FetchRetries,
		RetryInterval: cfg.Refresh.RetryInterval,
	}, db.Articles, db.Log, client, logger, opts...)

	return a, nil
}

// RunArchiveGC blocks until ctx is done. It is a no-op without an archive.
func (a *App) RunArchiveGC(ctx context.Context) {
	if a.Archive == nil {
		return
	}
	a.Archive.RunGC(ctx, a.Config.Archive.GCInterval, a.Logger)
}

func (a *App) Close() error {
	var errs []error
	if a.Feed != nil {
		errs = append(errs, a.Feed.Close())
	}
	if a.Archive != nil {
		errs = append(errs, a.Archive.Close())
	}
	errs = append(errs, a.DB.Close())
	return errors.Join(errs...)
}
