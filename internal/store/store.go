// Package store is the optional persistent tier of the price cache.
//
// Entries are whole price series keyed by "SYMBOL|start|end" and serialized as
// JSON. A store never decides freshness; callers compare FetchedAt to their TTL.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"

	"tearsheet-api/internal/config"
	"tearsheet-api/internal/models"
)

// ErrMiss is returned by Get when the key is absent.
var ErrMiss = errors.New("store: miss")

type PriceStore interface {
	Name() string
	Get(ctx context.Context, key string) (*models.PriceSeries, error)
	Put(ctx context.Context, key string, s *models.PriceSeries) error
	Purge(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}

// Open builds the store selected by cfg.CacheBackend. The "memory" backend
// has no persistent tier and yields a nil store.
func Open(ctx context.Context, cfg *config.Config) (PriceStore, error) {
	var (
		ps  PriceStore
		err error
	)
	switch cfg.CacheBackend {
	case "", "memory":
		return nil, nil
	case "sqlite":
		ps, err = OpenSQLite(cfg.SQLitePath)
	case "redis":
		ps, err = OpenRedis(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.CacheTTL)
	case "firestore":
		ps, err = OpenFirestore(ctx, cfg.FirestoreProject)
	default:
		return nil, fmt.Errorf("unknown cache backend %q", cfg.CacheBackend)
	}
	if err != nil {
		return nil, err
	}
	return ps, nil
}

// Key is the cache key of a symbol's history over a date range.
func Key(symbol string, start, end models.Date) string {
	return symbol + "|" + start.String() + "|" + end.String()
}

func encode(s *models.PriceSeries) ([]byte, error) {
	return json.Marshal(s)
}

func decode(b []byte) (*models.PriceSeries, error) {
	var s models.PriceSeries
	if err := json.Unmarshal(b, &s); err != nil {
		return nil, fmt.Errorf("decode cached series: %w", err)
	}
	return &s, nil
}

func fetchedAt(s *models.PriceSeries) time.Time {
	if s.FetchedAt.IsZero() {
		return time.Now().UTC()
	}
	return s.FetchedAt.UTC()
}
