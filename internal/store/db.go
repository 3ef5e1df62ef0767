package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"wikicache/internal/model"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Config selects and tunes the relational backend.
type Config struct {
	Driver       string
	Path         string // sqlite database file
	DSN          string // postgres connection string
	LogLevel     string // silent, error, warn, info
	MaxOpenConns int
}

// DB holds the shared connection and the two tables' owners.
type DB struct {
	gorm     *gorm.DB
	Articles *Articles
	Log      *Logs
}

type Option func(*options)

type options struct {
	now func() time.Time
}

// WithClock replaces time.Now for every timestamp the store writes.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		o.now = now
	}
}

// Open connects to the configured database and migrates both tables.
func Open(cfg Config, logger *zap.Logger, opts ...Option) (*DB, error) {
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}

	dial, err := dialector(cfg)
	if err != nil {
		return nil, err
	}

	gdb, err := gorm.Open(dial, &gorm.Config{
		Logger: gormlogger.New(zap.NewStdLog(logger.Named("gorm")), gormlogger.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  logLevel(cfg.LogLevel),
			IgnoreRecordNotFoundError: true,
		}),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open %s database: %w", driverName(cfg.Driver), err)
	}

	sqlDB, err := gdb.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database connection: %w", err)
	}
	if driverName(cfg.Driver) == DriverSQLite {
		// SQLite allows a single writer; one connection avoids SQLITE_BUSY.
		sqlDB.SetMaxOpenConns(1)
		sqlDB.SetMaxIdleConns(1)
	} else if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}

	if err := gdb.AutoMigrate(&model.Article{}, &model.LogEntry{}); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to migrate schema: %w", err)
	}

	return &DB{
		gorm:     gdb,
		Articles: &Articles{db: gdb, now: o.now},
		Log:      &Logs{db: gdb, now: o.now},
	}, nil
}

// Close releases the underlying connection pool.
func (d *DB) Close() error {
	sqlDB, err := d.gorm.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Restore replaces both tables wholesale in one transaction. Either every
// row is written or nothing changes. Row ids and timestamps are preserved.
func (d *DB) Restore(ctx context.Context, articles []model.Article, entries []model.LogEntry) error {
	articles = append([]model.Article(nil), articles...)
	for i := range articles {
		articles[i].Title = model.NormalizeTitle(articles[i].Title)
		articles[i].TitleKey = model.TitleKey(articles[i].Title)
	}
	entries = append([]model.LogEntry(nil), entries...)
	for i := range entries {
		entries[i].Title = model.NormalizeTitle(entries[i].Title)
		entries[i].TitleKey = model.TitleKey(entries[i].Title)
	}

	err := d.gorm.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("1 = 1").Delete(&model.LogEntry{}).Error; err != nil {
			return err
		}
		if err := tx.Where("1 = 1").Delete(&model.Article{}).Error; err != nil {
			return err
		}
		if len(articles) > 0 {
			if err := tx.CreateInBatches(&articles, 100).Error; err != nil {
				return err
			}
		}
		if len(entries) > 0 {
			if err := tx.CreateInBatches(&entries, 100).Error; err != nil {
				return err
			}
		}
		return resetSequences(tx)
	})
	return wrap("restore", err)
}

// resetSequences moves postgres id sequences past the restored ids.
// SQLite derives the next rowid from the table itself.
func resetSequences(tx *gorm.DB) error {
	if tx.Dialector.Name() != DriverPostgres {
		return nil
	}
	for _, table := range []string{"wiki_entries", "wiki_entry_logs"} {
		q := fmt.Sprintf(
			"SELECT setval(pg_get_serial_sequence('%[1]s', 'id'), COALESCE((SELECT MAX(id) FROM %[1]s), 0) + 1, false)",
			table,
		)
		if err := tx.Exec(q).Error; err != nil {
			return fmt.Errorf("reset %s sequence: %w", table, err)
		}
	}
	return nil
}

func dialector(cfg Config) (gorm.Dialector, error) {
	switch driverName(cfg.Driver) {
	case DriverSQLite:
		if cfg.Path == "" {
			return nil, errors.New("sqlite driver requires a database path")
		}
		if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
			return nil, fmt.Errorf("creating database dir: %w", err)
		}
		return sqlite.Open(cfg.Path + "?_busy_timeout=5000&_journal_mode=WAL"), nil
	case DriverPostgres:
		if cfg.DSN == "" {
			return nil, errors.New("postgres driver requires a dsn")
		}
		return postgres.Open(cfg.DSN), nil
	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.Driver)
	}
}

func driverName(driver string) string {
	if driver == "" {
		return DriverSQLite
	}
	return driver
}

func logLevel(level string) gormlogger.LogLevel {
	switch level {
	case "info":
		return gormlogger.Info
	case "warn":
		return gormlogger.Warn
	case "error":
		return gormlogger.Error
	default:
		return gormlogger.Silent
	}
}

// stamp normalizes timestamps to what every supported backend can hold.
func stamp(t time.Time) time.Time {
	return t.UTC().Truncate(time.Microsecond)
}

func wrap(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound), errors.Is(err, ErrNotFound):
		return ErrNotFound
	case errors.Is(err, ErrEmptyTitle):
		return err
	default:
		var se *StorageError
		if errors.As(err, &se) {
			return err
		}
		return &StorageError{Op: op, Err: err}
	}
}
