package index

import (
	"context"
	"fmt"

	"github.com/codeintel/codeindex/internal/graph"
)

// GraphExpandAdapter is the SourceGraph strategy's adapter: caller/callee
// lookup and multi-hop symbol expansion (§4.9 step 4, weighted 0.50 on
// flow intent). It shares SymbolIndex's Neo4j connection but never reuses
// SymbolIndex.Search's exact/prefix name match, since that answers "what
// is this symbol" while this answers "what does this symbol touch."
type GraphExpandAdapter struct {
	symbols *SymbolIndex
}

// NewGraphExpandAdapter wraps an existing SymbolIndex so the two adapters
// share one Neo4j connection instead of opening a second driver.
func NewGraphExpandAdapter(symbols *SymbolIndex) *GraphExpandAdapter {
	return &GraphExpandAdapter{symbols: symbols}
}

// Upsert and Delete are no-ops: the nodes this adapter reads are written
// by SymbolIndex.Upsert/Delete against the same store, and upserting them
// twice would be redundant rather than additive.
func (g *GraphExpandAdapter) Upsert(ctx context.Context, repoID, snapshotID string, docs []Document) error {
	return nil
}

func (g *GraphExpandAdapter) Delete(ctx context.Context, repoID, snapshotID string) error {
	return nil
}

// Search resolves query to one or more seed symbols, then expands outward
// via callers, callees, and a bounded multi-hop traversal, scoring direct
// call-graph neighbors above symbols reached only through expansion.
func (g *GraphExpandAdapter) Search(ctx context.Context, repoID, snapshotID, query string, k int, filters Filters) ([]SearchHit, error) {
	key := RepoKey(repoID, snapshotID)
	n := g.symbols.Neo4j()

	seeds, err := n.FindSymbolByName(ctx, key, query)
	if err != nil {
		return nil, fmt.Errorf("index: graph: seed lookup: %w", err)
	}
	if len(seeds) == 0 {
		seeds, err = n.FindSymbolByPrefix(ctx, key, query, 5)
		if err != nil {
			return nil, fmt.Errorf("index: graph: seed prefix lookup: %w", err)
		}
	}
	if len(seeds) == 0 {
		return nil, nil
	}

	names := make([]string, 0, len(seeds))
	for _, sym := range seeds {
		names = append(names, sym.Name)
	}

	seen := map[string]struct{}{}
	hits := make([]SearchHit, 0, k)
	add := func(sym graph.Symbol, score float64) {
		id := fmt.Sprintf("%s:%d", sym.FilePath, sym.StartLine)
		if sym.ID != "" {
			id = sym.ID
		}
		if _, dup := seen[id]; dup {
			return
		}
		seen[id] = struct{}{}
		hits = append(hits, SearchHit{
			ChunkID:   id,
			Source:    SourceGraph,
			Score:     score,
			FilePath:  sym.FilePath,
			StartLine: sym.StartLine,
			EndLine:   sym.EndLine,
			Metadata:  map[string]any{"fqn": sym.FQN, "kind": sym.Kind, "name": sym.Name},
		})
	}

	for _, name := range names {
		if callers, err := n.FindCallers(ctx, key, name); err == nil {
			for _, c := range callers {
				add(c, 0.9)
			}
		}
		if callees, err := n.FindCallees(ctx, key, name); err == nil {
			for _, c := range callees {
				add(c, 0.9)
			}
		}
	}

	if len(hits) < k {
		if expanded, err := n.ExpandFromSymbols(ctx, key, names, 2, k); err == nil {
			for _, e := range expanded {
				add(e, 0.6)
			}
		}
	}

	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

func (g *GraphExpandAdapter) HealthCheck(ctx context.Context) Health {
	return g.symbols.HealthCheck(ctx)
}

// Close is a no-op: the Neo4j driver is owned and closed by the
// SymbolIndex this adapter wraps.
func (g *GraphExpandAdapter) Close() error { return nil }
