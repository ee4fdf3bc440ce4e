// Package cache provides a durable content-addressed store for raw fetched
// pages. A miss is never an error condition for the pipeline; callers
// re-fetch and carry on.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"

	"github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"
)

const pagePrefix = "page:"

// Cache stores raw fetched bytes keyed by source URL, backed by BadgerDB.
// Entries are immutable once written; Badger gives per-key isolation so
// concurrent workers never corrupt unrelated entries.
type Cache struct {
	db     *badger.DB
	logger *slog.Logger
}

// badgerLoggerAdapter adapts slog.Logger to badger.Logger.
type badgerLoggerAdapter struct {
	logger *slog.Logger
}

var _ badger.Logger = (*badgerLoggerAdapter)(nil)

func (bl *badgerLoggerAdapter) Errorf(msg string, items ...any) {
	bl.logger.Error(fmt.Sprintf(msg, items...))
}

func (bl *badgerLoggerAdapter) Warningf(msg string, items ...any) {
	bl.logger.Warn(fmt.Sprintf(msg, items...))
}

func (bl *badgerLoggerAdapter) Infof(msg string, items ...any) {
	bl.logger.Debug(fmt.Sprintf(msg, items...))
}

func (bl *badgerLoggerAdapter) Debugf(msg string, items ...any) {
	bl.logger.Debug(fmt.Sprintf(msg, items...))
}

// Open opens (or creates) a cache at the given directory.
func Open(dir string, logger *slog.Logger) (*Cache, error) {
	if logger == nil {
		logger = slog.Default()
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating cache directory: %w", err)
	}

	opts := badger.DefaultOptions(dir)
	opts.Logger = &badgerLoggerAdapter{logger: logger}
	opts.Compression = options.None

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("opening cache: %w", err)
	}

	return &Cache{db: db, logger: logger}, nil
}

// Close closes the underlying database.
func (c *Cache) Close() error {
	return c.db.Close()
}

// Hash returns the hex-encoded SHA-256 digest of raw bytes. The same digest
// is used everywhere a content hash appears.
func Hash(raw []byte) string {
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}

// Get returns the cached raw bytes and their content hash for a URL.
// Returns ErrCacheMiss when the URL has never been cached or the entry was
// evicted; that is an expected outcome, not a failure.
func (c *Cache) Get(ctx context.Context, url string) ([]byte, string, error) {
	if err := ctx.Err(); err != nil {
		return nil, "", err
	}

	var raw []byte
	err := c.db.View(func(tx *badger.Txn) error {
		item, err := tx.Get(makePageKey(url))
		if err != nil {
			if err == badger.ErrKeyNotFound {
				return ErrCacheMiss
			}
			return err
		}
		raw, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		return nil, "", err
	}

	return raw, Hash(raw), nil
}

// Put stores raw bytes for a URL and returns their content hash. A write
// failure is surfaced but callers must continue with the fresh bytes; the
// cache is a performance concern, never a correctness one.
func (c *Cache) Put(ctx context.Context, url string, raw []byte) (string, error) {
	hash := Hash(raw)

	if err := ctx.Err(); err != nil {
		return hash, err
	}

	err := c.db.Update(func(tx *badger.Txn) error {
		return tx.Set(makePageKey(url), raw)
	})
	if err != nil {
		return hash, fmt.Errorf("caching %s: %w", url, err)
	}

	return hash, nil
}

func makePageKey(url string) []byte {
	return []byte(pagePrefix + url)
}
