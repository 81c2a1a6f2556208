package index

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeintel/codeindex/internal/relstore"
)

// adapterCase names one Adapter.New plus the Documents it should be
// conformance-tested with, so a single shared exercise covers every
// backend against the same contract (§9's "adapter conformance test
// suite") instead of five near-duplicate hand-rolled test functions.
type adapterCase struct {
	name    string
	adapter Adapter
	docs    []Document
	query   string
	filters Filters
}

func TestAdapterConformance(t *testing.T) {
	const repoID, snapshotID = "conformance-repo", "snap-1"

	docs := []Document{
		{ChunkID: "c1", RepoID: repoID, SnapshotID: snapshotID, Kind: "function", FilePath: "a.py", StartLine: 1, EndLine: 5, Content: "def alpha_handler(): pass", Identifiers: []string{"alpha_handler"}, DocType: "docstring"},
		{ChunkID: "c2", RepoID: repoID, SnapshotID: snapshotID, Kind: "function", FilePath: "b.py", StartLine: 1, EndLine: 5, Content: "def beta_worker(): pass", Identifiers: []string{"beta_worker"}, DocType: "docstring"},
	}

	var cases []adapterCase

	lexical, err := NewLexicalIndex("")
	require.NoError(t, err)
	t.Cleanup(func() { lexical.Close() })
	cases = append(cases, adapterCase{name: "lexical", adapter: lexical, docs: docs, query: "alpha_handler"})

	domain, err := NewDomainIndex("")
	require.NoError(t, err)
	t.Cleanup(func() { domain.Close() })
	cases = append(cases, adapterCase{name: "domain", adapter: domain, docs: docs, query: "alpha_handler"})

	dsn := "file:" + t.TempDir() + "/conformance.db?_pragma=busy_timeout(5000)"
	db, err := relstore.Open(dsn)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, relstore.Migrate(db))
	cases = append(cases, adapterCase{name: "fuzzy", adapter: NewFuzzyIndex(db), docs: docs, query: "alpha_handlr"})

	if qdrantURL := os.Getenv("QDRANT_URL"); qdrantURL != "" {
		vec, err := NewVectorIndex(qdrantURL, 4)
		require.NoError(t, err)
		t.Cleanup(func() { vec.Close() })
		vecDocs := make([]Document, len(docs))
		copy(vecDocs, docs)
		for i := range vecDocs {
			vecDocs[i].Embedding = []float32{0.1, 0.2, 0.3, 0.4}
		}
		cases = append(cases, adapterCase{name: "vector", adapter: vec, docs: vecDocs, query: "alpha", filters: Filters{"embedding": []float32{0.1, 0.2, 0.3, 0.4}}})
	}

	if neo4jURL := os.Getenv("NEO4J_URL"); neo4jURL != "" {
		user := os.Getenv("NEO4J_USER")
		if user == "" {
			user = "neo4j"
		}
		sym, err := NewSymbolIndex(neo4jURL, user, os.Getenv("NEO4J_PASSWORD"))
		require.NoError(t, err)
		t.Cleanup(func() { sym.Close() })
		symDocs := make([]Document, len(docs))
		copy(symDocs, docs)
		for i := range symDocs {
			symDocs[i].Symbol = &SymbolRecord{ID: symDocs[i].ChunkID, Name: symDocs[i].Identifiers[0], Kind: "function"}
		}
		cases = append(cases, adapterCase{name: "symbol", adapter: sym, docs: symDocs, query: "alpha_handler"})
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			ctx := context.Background()

			if h := c.adapter.HealthCheck(ctx); !h.OK {
				t.Fatalf("%s: HealthCheck reported unhealthy before any writes: %s", c.name, h.Detail)
			}

			require.NoError(t, c.adapter.Upsert(ctx, repoID, snapshotID, c.docs))

			hits, err := c.adapter.Search(ctx, repoID, snapshotID, c.query, 10, c.filters)
			require.NoError(t, err)
			assert.NotEmpty(t, hits, "%s: expected at least one hit for %q after upsert", c.name, c.query)
			for _, hit := range hits {
				assert.NotEmpty(t, hit.ChunkID, "%s: hit missing ChunkID", c.name)
			}

			require.NoError(t, c.adapter.Delete(ctx, repoID, snapshotID))

			hitsAfterDelete, err := c.adapter.Search(ctx, repoID, snapshotID, c.query, 10, c.filters)
			require.NoError(t, err)
			assert.Empty(t, hitsAfterDelete, "%s: delete(repo_id, snapshot_id) must be strict", c.name)
		})
	}
}
