// Package archive keeps the raw, unconverted markup of every fetched page
// in BadgerDB, gzip-compressed, next to a small JSON metadata record.
package archive

import (
	"bytes"
	"compress/gzip"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"wikicache/internal/model"

	"github.com/dgraph-io/badger/v4"
	"go.uber.org/zap"
)

var ErrNotFound = errors.New("no raw markup archived for title")

// Record is one archived fetch.
type Record struct {
	Title      string    `json:"title"`
	SourceURL  string    `json:"source_url"`
	ArchivedAt time.Time `json:"archived_at"`
	Size       int       `json:"size"`
	Markup     string    `json:"-"`
}

type Archive struct {
	db *badger.DB
}

// Open opens (or creates) an on-disk archive.
func Open(path string) (*Archive, error) {
	opts := badger.DefaultOptions(path)
	opts.Logger = nil
	return open(opts)
}

// OpenInMemory keeps everything in RAM. Nothing survives Close.
func OpenInMemory() (*Archive, error) {
	opts := badger.DefaultOptions("").WithInMemory(true)
	opts.Logger = nil
	return open(opts)
}

func open(opts badger.Options) (*Archive, error) {
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger: %w", err)
	}
	return &Archive{db: db}, nil
}

func (a *Archive) Close() error {
	return a.db.Close()
}

func keys(title string) (meta, raw []byte) {
	sum := sha256.Sum256([]byte(model.TitleKey(title)))
	h := hex.EncodeToString(sum[:])
	return []byte("meta:" + h), []byte("raw:" + h)
}

// Put overwrites the archived markup for rec.Title.
func (a *Archive) Put(ctx context.Context, rec Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	var compressed bytes.Buffer
	zw := gzip.NewWriter(&compressed)
	if _, err := io.WriteString(zw, rec.Markup); err != nil {
		return err
	}
	if err := zw.Close(); err != nil {
		return err
	}

	rec.Title = model.NormalizeTitle(rec.Title)
	rec.Size = len(rec.Markup)
	meta, err := json.Marshal(rec)
	if err != nil {
		return err
	}

	metaKey, rawKey := keys(rec.Title)
	return a.db.Update(func(txn *badger.Txn) error {
		if err := txn.SetEntry(badger.NewEntry(rawKey, compressed.Bytes())); err != nil {
			return err
		}
		return txn.SetEntry(badger.NewEntry(metaKey, meta))
	})
}

// Get returns the latest archived record for title, markup included.
func (a *Archive) Get(ctx context.Context, title string) (*Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var metaJSON, compressed []byte
	metaKey, rawKey := keys(title)
	err := a.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(metaKey)
		if err != nil {
			return err
		}
		if metaJSON, err = item.ValueCopy(nil); err != nil {
			return err
		}
		item, err = txn.Get(rawKey)
		if err != nil {
			return err
		}
		compressed, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	var rec Record
	if err := json.Unmarshal(metaJSON, &rec); err != nil {
		return nil, fmt.Errorf("decoding archive metadata: %w", err)
	}

	zr, err := gzip.NewReader(bytes.NewReader(compressed))
	if err != nil {
		return nil, fmt.Errorf("opening archived markup: %w", err)
	}
	defer zr.Close()
	raw, err := io.ReadAll(zr)
	if err != nil {
		return nil, fmt.Errorf("decompressing archived markup: %w", err)
	}
	rec.Markup = string(raw)
	return &rec, nil
}

// RunGC reclaims value-log space every interval until ctx is done.
func (a *Archive) RunGC(ctx context.Context, interval time.Duration, logger *zap.Logger) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for {
				err := a.db.RunValueLogGC(0.7)
				if err == nil {
					continue
				}
				if errors.Is(err, badger.ErrGCInMemoryMode) {
					return
				}
				if !errors.Is(err, badger.ErrNoRewrite) {
					logger.Warn("Archive GC failed", zap.Error(err))
				}
				break
			}
		}
	}
}
