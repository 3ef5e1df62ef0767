// Package recent keeps a short, most-recent-first list of touched titles in
// Redis so the web index and the `recent` command can show activity without
// scanning the action log.
package recent

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const (
	key         = "list:recent"
	DefaultSize = 50
)

type Feed struct {
	rdb  *redis.Client
	size int64
}

// New connects to Redis and checks the connection.
func New(ctx context.Context, addr string, size int) (*Feed, error) {
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	if size <= 0 {
		size = DefaultSize
	}
	return &Feed{rdb: rdb, size: int64(size)}, nil
}

func (f *Feed) Close() error {
	return f.rdb.Close()
}

// Push moves title to the head of the feed, dropping any older occurrence
// and trimming the list to the configured size.
func (f *Feed) Push(ctx context.Context, title string) error {
	pipe := f.rdb.TxPipeline()
	pipe.LRem(ctx, key, 0, title)
	pipe.LPush(ctx, key, title)
	pipe.LTrim(ctx, key, 0, f.size-1)
	_, err := pipe.Exec(ctx)
	return err
}

// List returns up to limit titles, newest first. A non-positive limit
// returns the whole feed.
func (f *Feed) List(ctx context.Context, limit int) ([]string, error) {
	stop := int64(limit) - 1
	if limit <= 0 {
		stop = -1
	}
	titles, err := f.rdb.LRange(ctx, key, 0, stop).Result()
	if err != nil {
		return nil, err
	}
	return titles, nil
}
