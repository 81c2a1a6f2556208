package retriever

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/codeintel/codeindex/internal/cache"
	"github.com/codeintel/codeindex/internal/embedding"
	"github.com/codeintel/codeindex/internal/errs"
	"github.com/codeintel/codeindex/internal/index"
	"github.com/codeintel/codeindex/internal/observability"
)

// Strategy pairs an index adapter with the source tag fusion uses to pick
// its weight and RRF k. A repo's symbol adapter is searched twice under
// two tags, once as SourceSymbol (name/fqn lookup) and once as
// SourceGraph (caller/callee expansion), since the spec's weight table
// treats them as distinct signals despite sharing a backing store.
type Strategy struct {
	Source  string
	Adapter index.Adapter
}

// Options tunes one Retrieve call.
type Options struct {
	TopK          int
	RerankEnabled bool
	PromptVersion string
}

// Reranker is the optional two-stage cross-interaction scorer (§4.9 step 9).
type Reranker interface {
	Score(ctx context.Context, query, content string) (float64, error)
}

// ContentLookup resolves a chunk's current content and content_hash from
// the relational store, since a SearchHit only carries what its backing
// index happened to store (the lexical/symbol/fuzzy adapters don't keep a
// content copy). Required only when RerankEnabled is set.
type ContentLookup func(ctx context.Context, chunkID string) (content, contentHash string, err error)

// Retriever composes intent classification, query expansion, parallel
// multi-strategy search, weighted RRF fusion, and optional reranking.
type Retriever struct {
	Strategies    []Strategy
	Classifier    IntentClassifier
	Tracer        *observability.Tracer
	Reranker      Reranker
	RerankCache   cache.Cache[float64]
	LookupContent ContentLookup
	FusionVersion string
	// Embedder embeds the query text for the vector strategy. A nil
	// Embedder means the vector strategy is skipped (its Search call
	// requires filters["embedding"], which nothing else can populate).
	Embedder embedding.Provider
	// ReadyCheck reports whether (repoID, snapshotID) has finished
	// publishing to every adapter (§5's ordering guarantee). A nil
	// ReadyCheck skips the gate, matching a deployment with no relational
	// store configured.
	ReadyCheck func(ctx context.Context, repoID, snapshotID string) (bool, error)
}

// New builds a Retriever over the given strategies with the default
// rule-based classifier.
func New(strategies []Strategy, tracer *observability.Tracer) *Retriever {
	return &Retriever{
		Strategies:    strategies,
		Classifier:    NewClassifier(),
		Tracer:        tracer,
		FusionVersion: "rrf-v1",
	}
}

// Result is the Retrieve return value: the fused, boosted hit list plus
// its explanation payload.
type Result struct {
	Hits        []Fused
	Explanation *observability.Explanation
}

// Retrieve runs the full §4.9 pipeline for one query against one
// (repo_id, snapshot_id).
func (r *Retriever) Retrieve(ctx context.Context, repoID, snapshotID, query string, opts Options) (*Result, error) {
	if opts.TopK <= 0 {
		opts.TopK = 20
	}

	if r.ReadyCheck != nil {
		ready, err := r.ReadyCheck(ctx, repoID, snapshotID)
		if err != nil {
			return nil, fmt.Errorf("retriever: ready check: %w", err)
		}
		if !ready {
			return nil, errs.New(errs.KindNotReady, fmt.Sprintf("snapshot %s/%s is not ready for search", repoID, snapshotID))
		}
	}

	scores := r.Classifier.Classify(query)
	dominant, dominantP := scores.Dominant()
	exp := Expand(query)

	explain := observability.NewExplanation(query, r.FusionVersion)
	explain.DominantIntent = string(dominant)
	for intent, p := range scores {
		explain.IntentScores[string(intent)] = p
	}

	// The vector strategy's Search contract requires a pre-computed query
	// embedding (internal/index.VectorIndex never embeds text itself); embed
	// once up front rather than per-strategy goroutine, since every vector
	// call in this request shares the same query text.
	var queryEmbedding []float32
	if r.Embedder != nil {
		vecs, err := r.Embedder.Embed(ctx, []string{query})
		if err != nil {
			explain.RecordStrategy(observability.StrategyExplain{Strategy: index.SourceVector, Error: err.Error()})
		} else if len(vecs) == 1 {
			queryEmbedding = vecs[0]
		}
	}

	results := make([]StrategyResult, len(r.Strategies))
	g, gctx := errgroup.WithContext(ctx)
	for i, strat := range r.Strategies {
		i, strat := i, strat
		if strat.Source == index.SourceVector && len(queryEmbedding) == 0 {
			// No embedder configured or the embed call failed: skip rather
			// than call Search with no embedding, which errors every time.
			continue
		}
		g.Go(func() error {
			start := time.Now()
			k := adaptiveK(strat.Source, dominant)
			filters := index.Filters{}
			if strat.Source == index.SourceVector {
				filters["embedding"] = queryEmbedding
			}
			hits, err := strat.Adapter.Search(gctx, repoID, snapshotID, query, k, filters)
			latency := time.Since(start)

			se := observability.StrategyExplain{
				Strategy:  strat.Source,
				Hits:      len(hits),
				LatencyMs: latency.Milliseconds(),
			}
			if err != nil {
				se.Error = err.Error()
				se.TimedOut = gctx.Err() != nil
				// Per-strategy failure isolation: a slow or unhealthy
				// index degrades the fused result, it never fails the query.
				explain.RecordStrategy(se)
				return nil
			}
			explain.RecordStrategy(se)
			results[i] = StrategyResult{Source: strat.Source, Hits: hits}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("retriever: strategy fan-out: %w", err)
	}

	weights := BoostForIntent(BlendProfile(scores), scores)
	for i, s := range results {
		results[i].Hits = truncate(s.Hits, adaptiveK(s.Source, dominant))
	}
	fused := Fuse(results, weights, exp)
	for source, w := range weights {
		explain.IntentScores["weight:"+source] = w
	}
	explain.IntentScores["dominant_p"] = dominantP

	if len(fused) > opts.TopK*5 {
		fused = fused[:opts.TopK*5]
	}

	if opts.RerankEnabled && r.Reranker != nil {
		if err := r.rerank(ctx, query, fused, opts); err != nil {
			return nil, fmt.Errorf("retriever: rerank: %w", err)
		}
	}
	if len(fused) > opts.TopK {
		fused = fused[:opts.TopK]
	}

	return &Result{Hits: fused, Explanation: explain}, nil
}

func (r *Retriever) rerank(ctx context.Context, query string, fused []Fused, opts Options) error {
	normalized := cache.NormalizeQuery(query)
	for i := range fused {
		f := &fused[i]
		var content, contentHash string
		if r.LookupContent != nil {
			var err error
			content, contentHash, err = r.LookupContent(ctx, f.ChunkID)
			if err != nil {
				continue // a lookup failure falls back to the fused score
			}
		}
		key := cache.RerankCacheKey(normalized, f.ChunkID, contentHash, opts.PromptVersion)
		if r.RerankCache != nil {
			if v, ok, err := r.RerankCache.Get(ctx, key); err == nil && ok {
				f.Score = v
				continue
			}
		}
		score, err := r.Reranker.Score(ctx, query, content)
		if err != nil {
			continue // a single rerank failure falls back to the fused score
		}
		f.Score = score
		if r.RerankCache != nil {
			r.RerankCache.Set(ctx, key, score, time.Hour)
		}
	}
	sortFused(fused)
	return nil
}

func sortFused(fused []Fused) {
	for i := 1; i < len(fused); i++ {
		for j := i; j > 0 && fused[j].Score > fused[j-1].Score; j-- {
			fused[j], fused[j-1] = fused[j-1], fused[j]
		}
	}
}

// adaptiveK picks the per-strategy result count: symbol-like queries need
// only a handful of precise candidates, flow queries need a much wider
// net for multi-hop graph expansion to have material to work with.
func adaptiveK(source string, dominant Intent) int {
	switch {
	case dominant == IntentSymbol && (source == index.SourceSymbol || source == index.SourceFuzzy):
		return 20
	case dominant == IntentFlow && source == index.SourceGraph:
		return 100
	case dominant == IntentFlow:
		return 80
	default:
		return 40
	}
}

func truncate(hits []index.SearchHit, k int) []index.SearchHit {
	if len(hits) > k {
		return hits[:k]
	}
	return hits
}
