package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"
)

// Stats reports cumulative hit/miss/eviction counters for a Cache. Exposed
// so the capability abstraction in §9 ("caches as pluggable interfaces
// {get, set, evict, stats}") is genuinely queryable, not just a comment.
type Stats struct {
	Hits      int64
	Misses    int64
	Evictions int64
}

// Cache is the capability abstraction every in-process cache (embedding,
// rerank score, type snapshot) is expressed behind. A production
// configuration swaps the persistent tier without touching consumers.
type Cache[V any] interface {
	Get(ctx context.Context, key string) (V, bool, error)
	Set(ctx context.Context, key string, value V, ttl time.Duration) error
	Evict(ctx context.Context, key string) error
	Stats() Stats
}

// PersistentTier is the optional second tier behind a MemoryCache: a
// string-keyed, string-valued store with TTL. *RedisCache satisfies this
// shape directly (Get/Set/Delete already have this signature).
type PersistentTier interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// MemoryCache is the in-process default: an LRU with per-entry TTL
// (hashicorp/golang-lru/v2's expirable variant), sharded only by the
// library's own internal locking — safe to share across concurrent
// requests without holding a lock across a suspension point, since every
// method here returns immediately.
type MemoryCache[V any] struct {
	lru    *lru.LRU[string, V]
	tier   PersistentTier
	hits   atomic.Int64
	misses atomic.Int64
	evicts atomic.Int64
}

// NewMemoryCache builds a bounded, TTL-evicting in-process cache with an
// optional persistent tier for cross-process reuse (e.g. across indexing
// runs). Pass a nil tier for a purely in-memory cache.
func NewMemoryCache[V any](size int, ttl time.Duration, tier PersistentTier) *MemoryCache[V] {
	c := &MemoryCache[V]{tier: tier}
	onEvict := func(key string, value V) { c.evicts.Add(1) }
	c.lru = lru.NewLRU[string, V](size, onEvict, ttl)
	return c
}

func (c *MemoryCache[V]) Get(ctx context.Context, key string) (V, bool, error) {
	var zero V
	if v, ok := c.lru.Get(key); ok {
		c.hits.Add(1)
		return v, true, nil
	}
	if c.tier != nil {
		raw, err := c.tier.Get(ctx, key)
		if err != nil {
			return zero, false, fmt.Errorf("cache: persistent tier get: %w", err)
		}
		if raw != "" {
			var v V
			if err := json.Unmarshal([]byte(raw), &v); err != nil {
				return zero, false, fmt.Errorf("cache: decode persistent value: %w", err)
			}
			c.lru.Add(key, v)
			c.hits.Add(1)
			return v, true, nil
		}
	}
	c.misses.Add(1)
	return zero, false, nil
}

func (c *MemoryCache[V]) Set(ctx context.Context, key string, value V, ttl time.Duration) error {
	c.lru.Add(key, value)
	if c.tier != nil {
		raw, err := json.Marshal(value)
		if err != nil {
			return fmt.Errorf("cache: encode persistent value: %w", err)
		}
		if err := c.tier.Set(ctx, key, string(raw), ttl); err != nil {
			return fmt.Errorf("cache: persistent tier set: %w", err)
		}
	}
	return nil
}

func (c *MemoryCache[V]) Evict(ctx context.Context, key string) error {
	c.lru.Remove(key)
	if c.tier != nil {
		return c.tier.Delete(ctx, key)
	}
	return nil
}

func (c *MemoryCache[V]) Stats() Stats {
	return Stats{Hits: c.hits.Load(), Misses: c.misses.Load(), Evictions: c.evicts.Load()}
}

// NormalizeQuery lowercases and collapses whitespace, the query
// normalization rule shared by every cache key that embeds a query string
// (rerank cache, retrieval cache).
func NormalizeQuery(q string) string {
	return strings.Join(strings.Fields(strings.ToLower(q)), " ")
}

// RerankCacheKey builds the composite key for the reranker's score cache:
// (normalized_query, chunk_id, content_hash, prompt_version) -> score.
func RerankCacheKey(query, chunkID, contentHash, promptVersion string) string {
	return fmt.Sprintf("rerank:%s:%s:%s:%s", NormalizeQuery(query), chunkID, contentHash, promptVersion)
}
