package engine

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/redis/go-redis/v9"
)

// Cache metrics: atomic counters for thread-safe access.
var (
	cacheHits   atomic.Int64
	cacheMisses atomic.Int64
)

// DocCache caches extracted documents in two tiers: L1 in-memory LRU + L2 Redis.
// L1 is lost on restart, L2 survives it. A nil *DocCache is a valid, disabled cache.
type DocCache struct {
	l1  *expirable.LRU[string, Document]
	rdb *redis.Client // nil if Redis unavailable
	ttl time.Duration
}

// NewDocCache sets up the document cache. ttl <= 0 disables caching (returns nil).
// redisURL can be empty to disable L2.
func NewDocCache(redisURL string, ttl time.Duration, maxEntries int) *DocCache {
	if ttl <= 0 {
		return nil
	}
	c := &DocCache{
		l1:  expirable.NewLRU[string, Document](maxEntries, nil, ttl),
		ttl: ttl,
	}

	if redisURL != "" {
		opts, err := redis.ParseURL(redisURL)
		if err != nil {
			slog.Warn("cache: invalid redis URL, L2 disabled", slog.Any("error", err))
		} else {
			rdb := redis.NewClient(opts)
			ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
			defer cancel()
			if err := rdb.Ping(ctx).Err(); err != nil {
				slog.Warn("cache: redis unreachable, L2 disabled", slog.Any("error", err))
				_ = rdb.Close()
			} else {
				c.rdb = rdb
				slog.Info("cache: L2 redis connected", slog.String("addr", opts.Addr))
			}
		}
	}

	slog.Info("cache: initialized", slog.Duration("ttl", ttl), slog.Bool("redis", c.rdb != nil), slog.Int("max_entries", maxEntries))
	return c
}

// CacheKey builds a deterministic cache key from parts.
func CacheKey(parts ...string) string {
	joined := strings.Join(parts, "|")
	hash := sha256.Sum256([]byte(joined))
	return fmt.Sprintf("gsum:%x", hash[:12]) // 24-char hex prefix
}

// Get tries L1, then L2. On L2 hit, populates L1.
func (c *DocCache) Get(ctx context.Context, key string) (Document, bool) {
	if c == nil {
		cacheMisses.Add(1)
		return Document{}, false
	}

	if doc, ok := c.l1.Get(key); ok {
		slog.Debug("cache: L1 hit", slog.String("key", key))
		cacheHits.Add(1)
		return doc, true
	}

	if c.rdb != nil {
		data, err := c.rdb.Get(ctx, key).Bytes()
		if err == nil {
			var doc Document
			if json.Unmarshal(data, &doc) == nil {
				slog.Debug("cache: L2 hit", slog.String("key", key))
				cacheHits.Add(1)
				c.l1.Add(key, doc)
				return doc, true
			}
		}
	}

	cacheMisses.Add(1)
	return Document{}, false
}

// Set stores doc in both tiers.
func (c *DocCache) Set(ctx context.Context, key string, doc Document) {
	if c == nil {
		return
	}
	c.l1.Add(key, doc)

	if c.rdb == nil {
		return
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return
	}
	if err := c.rdb.Set(ctx, key, data, c.ttl).Err(); err != nil {
		slog.Debug("cache: L2 set failed", slog.Any("error", err))
	}
}

// Len reports the number of live L1 entries.
func (c *DocCache) Len() int {
	if c == nil {
		return 0
	}
	return c.l1.Len()
}

// CacheStats returns current cache hit/miss counters.
func CacheStats() (hits, misses int64) {
	return cacheHits.Load(), cacheMisses.Load()
}
