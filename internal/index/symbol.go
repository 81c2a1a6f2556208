package index

import (
	"context"
	"fmt"

	"github.com/codeintel/codeindex/internal/graph"
)

// SymbolIndex is the graph-store adapter keyed on fqn/name: exact name
// matches (score 1.0) followed by name-prefix / fqn-substring matches
// (score 0.7); it does no fuzzy matching. Repo/snapshot
// scoping is encoded as a composite RepoKey tag since Neo4j nodes carry a
// single "repo" property rather than a native two-part key.
type SymbolIndex struct {
	neo4j *graph.Neo4jStore
}

// NewSymbolIndex wires a Neo4j connection.
func NewSymbolIndex(uri, username, password string) (*SymbolIndex, error) {
	n, err := graph.NewNeo4jStore(uri, username, password)
	if err != nil {
		return nil, fmt.Errorf("index: symbol: %w", err)
	}
	return &SymbolIndex{neo4j: n}, nil
}

func (s *SymbolIndex) Upsert(ctx context.Context, repoID, snapshotID string, docs []Document) error {
	key := RepoKey(repoID, snapshotID)
	for _, d := range docs {
		if d.Symbol == nil {
			continue
		}
		if err := s.neo4j.UpsertFile(ctx, graph.File{Path: d.FilePath, Repo: key}); err != nil {
			return fmt.Errorf("index: symbol: upsert file: %w", err)
		}
		sym := graph.Symbol{
			ID:        d.Symbol.ID,
			FQN:       d.Symbol.FQN,
			Name:      d.Symbol.Name,
			Kind:      d.Symbol.Kind,
			Repo:      key,
			FilePath:  d.FilePath,
			StartLine: d.StartLine,
			EndLine:   d.EndLine,
			ParentID:  d.Symbol.ParentID,
		}
		if err := s.neo4j.UpsertSymbol(ctx, sym); err != nil {
			return fmt.Errorf("index: symbol: upsert symbol %s: %w", d.Symbol.FQN, err)
		}
	}
	return nil
}

func (s *SymbolIndex) Delete(ctx context.Context, repoID, snapshotID string) error {
	return s.neo4j.DeleteByRepoKey(ctx, RepoKey(repoID, snapshotID))
}

func (s *SymbolIndex) Search(ctx context.Context, repoID, snapshotID, query string, k int, filters Filters) ([]SearchHit, error) {
	key := RepoKey(repoID, snapshotID)

	exact, err := s.neo4j.FindSymbolByName(ctx, key, query)
	if err != nil {
		return nil, fmt.Errorf("index: symbol: exact search: %w", err)
	}

	hits := make([]SearchHit, 0, k)
	seen := make(map[string]struct{})
	for _, sym := range exact {
		hits = append(hits, symbolHit(sym, 1.0))
		seen[sym.Name] = struct{}{}
		if len(hits) >= k {
			return hits, nil
		}
	}

	prefixed, err := s.neo4j.FindSymbolByPrefix(ctx, key, query, k-len(hits))
	if err != nil {
		return nil, fmt.Errorf("index: symbol: prefix search: %w", err)
	}
	for _, sym := range prefixed {
		if _, dup := seen[sym.Name]; dup {
			continue
		}
		hits = append(hits, symbolHit(sym, 0.7))
		if len(hits) >= k {
			break
		}
	}
	return hits, nil
}

func symbolHit(sym graph.Symbol, score float64) SearchHit {
	return SearchHit{
		ChunkID:   sym.ID,
		Source:    SourceSymbol,
		Score:     score,
		FilePath:  sym.FilePath,
		StartLine: sym.StartLine,
		EndLine:   sym.EndLine,
		Metadata:  map[string]any{"fqn": sym.FQN, "kind": sym.Kind, "name": sym.Name},
	}
}

func (s *SymbolIndex) HealthCheck(ctx context.Context) Health {
	if err := s.neo4j.HealthCheck(ctx); err != nil {
		return Health{OK: false, Detail: err.Error()}
	}
	return Health{OK: true}
}

func (s *SymbolIndex) Close() error { return s.neo4j.Close(context.Background()) }

// Neo4j exposes the underlying store so the retriever's graph strategy
// (callers/callees/multi-hop expansion — a distinct capability from
// fqn/name lookup) can call FindCallers/FindCallees/ExpandFromSymbols
// directly without widening the Adapter interface.
func (s *SymbolIndex) Neo4j() *graph.Neo4jStore { return s.neo4j }
