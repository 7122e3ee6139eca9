package services

import (
	"container/list"
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"tearsheet-api/internal/config"
	"tearsheet-api/internal/models"
	"tearsheet-api/internal/store"
)

// Cache is a bounded in-memory cache with least recently used eviction and a
// fixed time to live.
type Cache[K comparable, V any] struct {
	mu       sync.Mutex
	items    map[K]*list.Element
	order    *list.List // front is most recently used
	capacity int
	ttl      time.Duration
	now      func() time.Time
	stop     chan struct{}
	stopOnce sync.Once
}

type cacheItem[K comparable, V any] struct {
	key        K
	value      V
	expiration time.Time
}

func NewCache[K comparable, V any](capacity int, ttl time.Duration) *Cache[K, V] {
	if capacity < 1 {
		capacity = 1
	}
	c := &Cache[K, V]{
		items:    make(map[K]*list.Element),
		order:    list.New(),
		capacity: capacity,
		ttl:      ttl,
		now:      time.Now,
		stop:     make(chan struct{}),
	}

	go c.cleanup()

	return c
}

func (c *Cache[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero V
	el, exists := c.items[key]
	if !exists {
		return zero, false
	}
	item := el.Value.(*cacheItem[K, V])
	if c.now().After(item.expiration) {
		c.removeElement(el)
		return zero, false
	}
	c.order.MoveToFront(el)
	return item.value, true
}

func (c *Cache[K, V]) Set(key K, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	exp := c.now().Add(c.ttl)
	if el, exists := c.items[key]; exists {
		item := el.Value.(*cacheItem[K, V])
		item.value, item.expiration = value, exp
		c.order.MoveToFront(el)
		return
	}

	c.items[key] = c.order.PushFront(&cacheItem[K, V]{key: key, value: value, expiration: exp})
	for c.order.Len() > c.capacity {
		c.removeElement(c.order.Back())
	}
}

func (c *Cache[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

// Purge drops every entry.
func (c *Cache[K, V]) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = make(map[K]*list.Element)
	c.order.Init()
}

// Close stops the background expiry sweep.
func (c *Cache[K, V]) Close() {
	c.stopOnce.Do(func() { close(c.stop) })
}

func (c *Cache[K, V]) removeElement(el *list.Element) {
	item := c.order.Remove(el).(*cacheItem[K, V])
	delete(c.items, item.key)
}

func (c *Cache[K, V]) cleanup() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
			c.evictExpired()
		}
	}
}

func (c *Cache[K, V]) evictExpired() {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	for el := c.order.Back(); el != nil; {
		prev := el.Prev()
		if now.After(el.Value.(*cacheItem[K, V]).expiration) {
			c.removeElement(el)
		}
		el = prev
	}
}

// CacheService caches fetched price series in memory and, when configured,
// in a persistent store. Store failures are logged and otherwise ignored.
type CacheService struct {
	log    zerolog.Logger
	ttl    time.Duration
	prices *Cache[string, *models.PriceSeries]
	store  store.PriceStore
	now    func() time.Time
}

// NewCacheService wraps ps, which may be nil for a memory only cache.
func NewCacheService(cfg *config.Config, ps store.PriceStore, log zerolog.Logger) *CacheService {
	return &CacheService{
		log:    log.With().Str("component", "cache").Logger(),
		ttl:    cfg.CacheTTL,
		prices: NewCache[string, *models.PriceSeries](cfg.CacheMaxEntries, cfg.CacheTTL),
		store:  ps,
		now:    time.Now,
	}
}

// GetPrices looks the series up in memory, then in the store. A stored entry
// older than the TTL is a miss.
func (s *CacheService) GetPrices(ctx context.Context, symbol string, start, end models.Date) (*models.PriceSeries, bool) {
	key := store.Key(symbol, start, end)
	if series, found := s.prices.Get(key); found {
		return series, true
	}
	if s.store == nil {
		return nil, false
	}

	series, err := s.store.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, store.ErrMiss) {
			s.log.Warn().Err(err).Str("key", key).Str("backend", s.store.Name()).Msg("cache read failed")
		}
		return nil, false
	}
	if s.now().Sub(series.FetchedAt) > s.ttl {
		return nil, false
	}
	s.prices.Set(key, series)
	return series, true
}

func (s *CacheService) SetPrices(ctx context.Context, series *models.PriceSeries) {
	key := store.Key(series.Symbol, series.Start, series.End)
	s.prices.Set(key, series)
	if s.store == nil {
		return
	}
	if err := s.store.Put(ctx, key, series); err != nil {
		s.log.Warn().Err(err).Str("key", key).Str("backend", s.store.Name()).Msg("cache write failed")
	}
}

// Purge clears both tiers.
func (s *CacheService) Purge(ctx context.Context) error {
	s.prices.Purge()
	if s.store != nil {
		return s.store.Purge(ctx)
	}
	return nil
}

// Backend names the persistent tier, "memory" when there is none.
func (s *CacheService) Backend() string {
	if s.store == nil {
		return "memory"
	}
	return s.store.Name()
}

// Ping checks the persistent tier.
func (s *CacheService) Ping(ctx context.Context) error {
	if s.store == nil {
		return nil
	}
	return s.store.Ping(ctx)
}

// Close stops the memory sweep and closes the store.
func (s *CacheService) Close() error {
	s.prices.Close()
	if s.store != nil {
		return s.store.Close()
	}
	return nil
}
