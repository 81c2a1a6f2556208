package embedding

import (
	"context"
	"crypto/sha256"
	"fmt"
	"time"

	"github.com/codeintel/codeindex/internal/cache"
)

// Provider is the embedding-provider capability the core consults at the
// edge of indexing (chunk content -> vector) and retrieval (query text ->
// vector). VoyageClient is the only implementation in the pack; the
// interface exists so the orchestrator and retriever depend on a
// capability, not a concrete HTTP client (§1's "embedding provider ... is
// an external collaborator, specified only at its interface").
type Provider interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	Dimension() int
}

var _ Provider = (*VoyageClient)(nil)

// CachedProvider wraps a Provider with the §4.11 embedding cache:
// hash(text) -> vector, target hit rate >=90% on repeated workloads.
// Identical input always returns the identical cached vector (§8's cache
// correctness property), since the cache is keyed by the exact text, not
// a normalized form.
type CachedProvider struct {
	inner Provider
	cache cache.Cache[[]float32]
	ttl   time.Duration
}

// NewCachedProvider wires a caching layer in front of any Provider. A nil
// ttl (0) means entries never expire via TTL (the underlying MemoryCache
// still evicts by LRU size).
func NewCachedProvider(inner Provider, c cache.Cache[[]float32], ttl time.Duration) *CachedProvider {
	return &CachedProvider{inner: inner, cache: c, ttl: ttl}
}

// Embed batches only the cache misses to the underlying provider,
// preserving input order in the returned slice.
func (p *CachedProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	var missIdx []int
	var missTexts []string

	for i, t := range texts {
		key := textHash(t)
		if v, ok, err := p.cache.Get(ctx, key); err == nil && ok {
			out[i] = v
			continue
		}
		missIdx = append(missIdx, i)
		missTexts = append(missTexts, t)
	}

	if len(missTexts) == 0 {
		return out, nil
	}

	vectors, err := p.inner.Embed(ctx, missTexts)
	if err != nil {
		return nil, fmt.Errorf("embedding: cached provider: %w", err)
	}
	for j, idx := range missIdx {
		out[idx] = vectors[j]
		_ = p.cache.Set(ctx, textHash(texts[idx]), vectors[j], p.ttl)
	}
	return out, nil
}

func (p *CachedProvider) Dimension() int { return p.inner.Dimension() }

func textHash(text string) string {
	sum := sha256.Sum256([]byte(text))
	return fmt.Sprintf("emb:%x", sum)
}
