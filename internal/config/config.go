// Package config loads wikicache settings from defaults, an optional .env
// file, an optional YAML file and WIKICACHE_* environment variables, in
// that order of precedence (later wins).
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix marks environment overrides. Nested keys use a double
// underscore, e.g. WIKICACHE_REFRESH__MAX_AGE=12h.
const EnvPrefix = "WIKICACHE_"

type Config struct {
	Database  DatabaseConfig  `koanf:"database"`
	Wikipedia WikipediaConfig `koanf:"wikipedia"`
	Refresh   RefreshConfig   `koanf:"refresh"`
	Server    ServerConfig    `koanf:"server"`
	Redis     RedisConfig     `koanf:"redis"`
	Archive   ArchiveConfig   `koanf:"archive"`
	Log       LogConfig       `koanf:"log"`
}

type DatabaseConfig struct {
	Driver       string `koanf:"driver"` // sqlite, postgres
	Path         string `koanf:"path"`
	DSN          string `koanf:"dsn"`
	LogLevel     string `koanf:"log_level"`
	MaxOpenConns int    `koanf:"max_open_conns"`
}

type WikipediaConfig struct {
	BaseURL   string        `koanf:"base_url"`
	UserAgent string        `koanf:"user_agent"`
	Timeout   time.Duration `koanf:"timeout"`
	Format    string        `koanf:"format"` // plain, html
}

type RefreshConfig struct {
	MaxAge        time.Duration `koanf:"max_age"`
	FetchRetries  int           `koanf:"fetch_retries"`
	RetryInterval time.Duration `koanf:"retry_interval"`
}

type ServerConfig struct {
	Addr         string        `koanf:"addr"`
	ReadTimeout  time.Duration `koanf:"read_timeout"`
	WriteTimeout time.Duration `koanf:"write_timeout"`
	PageSize     int           `koanf:"page_size"`
}

// RedisConfig enables the recent activity feed when Addr is set.
type RedisConfig struct {
	Addr       string `koanf:"addr"`
	RecentSize int    `koanf:"recent_size"`
}

// ArchiveConfig enables the raw markup archive when Path is set.
type ArchiveConfig struct {
	Path       string        `koanf:"path"`
	GCInterval time.Duration `koanf:"gc_interval"`
}

type LogConfig struct {
	Level  string `koanf:"level"`  // debug, info, warn, error
	Format string `koanf:"format"` // console, json
}

func DefaultConfigPath() string {
	return filepath.Join(xdg.ConfigHome, "wikicache", "config.yaml")
}

func DefaultDatabasePath() string {
	return filepath.Join(xdg.DataHome, "wikicache", "wikicache.db")
}

func Default() *Config {
	return &Config{
		Database: DatabaseConfig{
			Driver:   "sqlite",
			Path:     DefaultDatabasePath(),
			LogLevel: "silent",
		},
		Wikipedia: WikipediaConfig{
			BaseURL:   "https://en.wikipedia.org/w/api.php",
			UserAgent: "wikicache/1.0 (https://github.com/wikicache/wikicache)",
			Timeout:   30 * time.Second,
			Format:    "plain",
		},
		Refresh: RefreshConfig{
			MaxAge:        24 * time.Hour,
			FetchRetries:  2,
			RetryInterval: 500 * time.Millisecond,
		},
		Server: ServerConfig{
			Addr:         ":8000",
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 60 * time.Second,
			PageSize:     50,
		},
		Redis: RedisConfig{
			RecentSize: 50,
		},
		Archive: ArchiveConfig{
			GCInterval: 5 * time.Minute,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Load builds the effective configuration. An empty path falls back to
// DefaultConfigPath, which may be absent; an explicit path must exist.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}

	k := koanf.New(".")

	explicit := path != ""
	if !explicit {
		path = DefaultConfigPath()
	}
	if _, err := os.Stat(path); err == nil {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("loading config %s: %w", path, err)
		}
	} else if explicit {
		return nil, fmt.Errorf("loading config %s: %w", path, err)
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("loading environment: %w", err)
	}

	cfg := Default()
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func envKey(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	return strings.ReplaceAll(s, "__", ".")
}

func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "sqlite":
		if c.Database.Path == "" {
			return errors.New("database.path is required for the sqlite driver")
		}
	case "postgres":
		if c.Database.DSN == "" {
			return errors.New("database.dsn is required for the postgres driver")
		}
	default:
		return fmt.Errorf("database.driver: unknown driver %q (valid: sqlite, postgres)", c.Database.Driver)
	}

	if c.Wikipedia.Format != "plain" && c.Wikipedia.Format != "html" {
		return fmt.Errorf("wikipedia.format: unknown format %q (valid: plain, html)", c.Wikipedia.Format)
	}
	if c.Wikipedia.BaseURL == "" {
		return errors.New("wikipedia.base_url is required")
	}
	if c.Refresh.MaxAge <= 0 {
		return fmt.Errorf("refresh.max_age must be positive, got %s", c.Refresh.MaxAge)
	}
	if c.Refresh.FetchRetries < 0 {
		return fmt.Errorf("refresh.fetch_retries must not be negative, got %d", c.Refresh.FetchRetries)
	}
	if c.Server.PageSize < 1 {
		return fmt.Errorf("server.page_size must be at least 1, got %d", c.Server.PageSize)
	}
	switch c.Log.Format {
	case "console", "json":
	default:
		return fmt.Errorf("log.format: unknown format %q (valid: console, json)", c.Log.Format)
	}
	return nil
}
