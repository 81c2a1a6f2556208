package e2e

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeintel/codeindex/internal/app"
	"github.com/codeintel/codeindex/internal/config"
	"github.com/codeintel/codeindex/internal/contextbuilder"
	"github.com/codeintel/codeindex/internal/graph"
	"github.com/codeintel/codeindex/internal/index"
	"github.com/codeintel/codeindex/internal/ir"
	"github.com/codeintel/codeindex/internal/orchestrator"
	"github.com/codeintel/codeindex/internal/retriever"
)

// newScenarioApp wires only the in-process adapters (lexical, domain,
// fuzzy) against a throwaway repo root: a bare config.Config (never
// config.DefaultConfig, whose localhost URLs would make app.New dial real
// Qdrant/Neo4j/Redis) keeps every scenario below runnable without any
// external service.
func newScenarioApp(t *testing.T, repoRoot string) *app.App {
	t.Helper()
	a, err := app.New(context.Background(), &config.Config{}, repoRoot, app.Options{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })
	return a
}

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	full := filepath.Join(root, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
	require.NoError(t, os.WriteFile(full, []byte(content), 0o644))
}

// TestS3TypoTolerance covers the "search handles a misspelled identifier"
// scenario: a one-character typo on a real function name must still
// surface that function through the fuzzy adapter's edit-distance match.
func TestS3TypoTolerance(t *testing.T) {
	repoRoot := t.TempDir()
	writeFile(t, repoRoot, "billing/invoice.py", `def calculate_total(items):
    return sum(item.price for item in items)
`)

	a := newScenarioApp(t, repoRoot)
	ctx := context.Background()

	_, err := a.Orchestrator.IndexRepoFull(ctx, "repo1", "snap-0", repoRoot, orchestrator.Options{SkipNavDocs: true, SkipPatterns: true})
	require.NoError(t, err)

	res, err := a.Retriever.Retrieve(ctx, "repo1", "snap-0", "calculate_totl", retriever.Options{TopK: 10})
	require.NoError(t, err)
	require.NotEmpty(t, res.Hits, "a one-letter typo on calculate_total must still return a hit via fuzzy matching")

	var sawInvoice bool
	for _, h := range res.Hits {
		if h.FilePath == "billing/invoice.py" {
			sawInvoice = true
		}
	}
	assert.True(t, sawInvoice)
}

// TestS4IncrementalUpdatePreservesUnchangedChunkIdentity covers the
// "editing one file doesn't disturb another file's chunks" scenario:
// chunk IDs are content-addressed on (repo, file, symbol, start line), so
// re-indexing after touching only billing/invoice.py must leave
// billing/catalog.py's chunk IDs byte-identical across snapshots, while
// invoice.py's chunk set picks up the new function.
func TestS4IncrementalUpdatePreservesUnchangedChunkIdentity(t *testing.T) {
	repoRoot := t.TempDir()
	writeFile(t, repoRoot, "billing/catalog.py", `def list_items():
    return []
`)
	writeFile(t, repoRoot, "billing/invoice.py", `def calculate_total(items):
    return sum(item.price for item in items)
`)

	a := newScenarioApp(t, repoRoot)
	ctx := context.Background()

	_, err := a.Orchestrator.IndexRepoFull(ctx, "repo1", "snap-0", repoRoot, orchestrator.Options{SkipNavDocs: true, SkipPatterns: true})
	require.NoError(t, err)
	snap0Catalog := chunkIDsForFile(t, a.RelStore, "repo1", "snap-0", "billing/catalog.py")
	require.NotEmpty(t, snap0Catalog)

	writeFile(t, repoRoot, "billing/invoice.py", `def calculate_total(items):
    return sum(item.price for item in items)


def apply_discount(total, pct):
    return total * (1 - pct)
`)

	_, err = a.Orchestrator.IndexRepoFull(ctx, "repo1", "snap-1", repoRoot, orchestrator.Options{SkipNavDocs: true, SkipPatterns: true})
	require.NoError(t, err)
	snap1Catalog := chunkIDsForFile(t, a.RelStore, "repo1", "snap-1", "billing/catalog.py")
	snap1Invoice := chunkIDsForFile(t, a.RelStore, "repo1", "snap-1", "billing/invoice.py")

	assert.ElementsMatch(t, snap0Catalog, snap1Catalog, "untouched file's chunk IDs must not change across a re-index")
	assert.GreaterOrEqual(t, len(snap1Invoice), 2, "the new apply_discount function must appear as its own chunk")
}

func chunkIDsForFile(t *testing.T, db *sql.DB, repoID, snapshotID, filePath string) []string {
	t.Helper()
	rows, err := db.Query(`SELECT id FROM chunks WHERE repo_id = ? AND snapshot_id = ? AND file_path = ? AND deleted = 0`, repoID, snapshotID, filePath)
	require.NoError(t, err)
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		require.NoError(t, rows.Scan(&id))
		ids = append(ids, id)
	}
	return ids
}

// TestS5SnapshotIsolationAcrossPublish covers the "querying an older
// snapshot keeps working after a newer one is published" scenario: both
// snapshots index the same repo_id under different snapshot IDs, and each
// remains independently searchable until its own Delete is called.
func TestS5SnapshotIsolationAcrossPublish(t *testing.T) {
	repoRoot := t.TempDir()
	writeFile(t, repoRoot, "auth/session.py", `def create_session(user_id):
    return {"user_id": user_id, "version": "v1"}
`)

	a := newScenarioApp(t, repoRoot)
	ctx := context.Background()

	_, err := a.Orchestrator.IndexRepoFull(ctx, "repo1", "snap-0", repoRoot, orchestrator.Options{SkipNavDocs: true, SkipPatterns: true})
	require.NoError(t, err)

	writeFile(t, repoRoot, "auth/session.py", `def create_session(user_id):
    return {"user_id": user_id, "version": "v2"}
`)
	_, err = a.Orchestrator.IndexRepoFull(ctx, "repo1", "snap-1", repoRoot, orchestrator.Options{SkipNavDocs: true, SkipPatterns: true})
	require.NoError(t, err)

	resOld, err := a.Retriever.Retrieve(ctx, "repo1", "snap-0", "create_session", retriever.Options{TopK: 10})
	require.NoError(t, err, "snap-0 must still be queryable after snap-1 is published")
	require.NotEmpty(t, resOld.Hits)

	resNew, err := a.Retriever.Retrieve(ctx, "repo1", "snap-1", "create_session", retriever.Options{TopK: 10})
	require.NoError(t, err)
	require.NotEmpty(t, resNew.Hits)

	_, err = a.Retriever.Retrieve(ctx, "repo1", "snap-does-not-exist", "create_session", retriever.Options{TopK: 10})
	assert.Error(t, err, "a snapshot that was never published must fail the readiness gate, not return an empty result")
}

// TestS6ContextOrderingFollowsDependencyDAG covers the "assembled context
// puts definitions before the code that uses them" scenario against the
// spec's own User -> UserService -> UserHandler example: fused rank alone
// would put the top-scoring handler first, but dependency ordering must
// still emit User and UserService ahead of it.
func TestS6ContextOrderingFollowsDependencyDAG(t *testing.T) {
	candidates := []contextbuilder.Candidate{
		{ChunkID: "handler", SymbolID: "sym-user-handler", FilePath: "api/user_handler.py", Content: "class UserHandler: ...", Score: 0.95},
		{ChunkID: "service", SymbolID: "sym-user-service", FilePath: "services/user_service.py", Content: "class UserService: ...", Score: 0.4},
		{ChunkID: "model", SymbolID: "sym-user", FilePath: "models/user.py", Content: "class User: ...", Score: 0.05},
	}
	edges := []*ir.Edge{
		{SourceID: "sym-user-handler", TargetID: "sym-user-service", Kind: ir.EdgeCalls},
		{SourceID: "sym-user-service", TargetID: "sym-user", Kind: ir.EdgeReferencesType},
	}

	res, err := contextbuilder.Build(candidates, contextbuilder.Options{Budget: 10000, Edges: edges})
	require.NoError(t, err)

	var order []string
	for _, c := range res.Chunks {
		order = append(order, c.ChunkID)
	}
	assert.Equal(t, []string{"model", "service", "handler"}, order)
}

// TestS1SymbolNavigation covers "jump to a symbol by name" against a real
// Neo4j-backed symbol index; skipped when no live graph is available.
func TestS1SymbolNavigation(t *testing.T) {
	neo4jURL := os.Getenv("NEO4J_URL")
	if neo4jURL == "" {
		t.Skip("NEO4J_URL not set, skipping symbol navigation scenario")
	}
	user := os.Getenv("NEO4J_USER")
	if user == "" {
		user = "neo4j"
	}

	sym, err := index.NewSymbolIndex(neo4jURL, user, os.Getenv("NEO4J_PASSWORD"))
	require.NoError(t, err)
	defer sym.Close()

	const repoID, snapshotID = "scenario-s1-repo", "snap-1"
	ctx := context.Background()
	defer sym.Delete(ctx, repoID, snapshotID)

	docs := []index.Document{
		{ChunkID: "c1", RepoID: repoID, SnapshotID: snapshotID, Kind: "function", FilePath: "billing/invoice.py", StartLine: 1, EndLine: 3,
			Identifiers: []string{"calculate_total"},
			Symbol:      &index.SymbolRecord{ID: "sym-calc-total", Name: "calculate_total", FQN: "billing.invoice.calculate_total", Kind: "function"}},
	}
	require.NoError(t, sym.Upsert(ctx, repoID, snapshotID, docs))

	hits, err := sym.Search(ctx, repoID, snapshotID, "calculate_total", 10, nil)
	require.NoError(t, err)
	require.NotEmpty(t, hits)
	assert.Equal(t, "billing/invoice.py", hits[0].FilePath)
}

// TestS2CallerDiscovery covers "find every caller of a symbol" against a
// real Neo4j-backed graph: skipped when no live graph is available.
func TestS2CallerDiscovery(t *testing.T) {
	neo4jURL := os.Getenv("NEO4J_URL")
	if neo4jURL == "" {
		t.Skip("NEO4J_URL not set, skipping caller discovery scenario")
	}
	user := os.Getenv("NEO4J_USER")
	if user == "" {
		user = "neo4j"
	}
	password := os.Getenv("NEO4J_PASSWORD")

	store, err := graph.NewNeo4jStore(neo4jURL, user, password)
	require.NoError(t, err)
	defer store.Close(context.Background())

	ctx := context.Background()
	const repoID = "scenario-s2-repo"
	require.NoError(t, store.EnsureSchema(ctx))
	defer store.DeleteRepository(ctx, repoID)

	caller := graph.Symbol{Name: "apply_discount", Kind: "function", Repo: repoID, FilePath: "billing/invoice.py", StartLine: 10, EndLine: 12}
	callee := graph.Symbol{Name: "calculate_total", Kind: "function", Repo: repoID, FilePath: "billing/invoice.py", StartLine: 1, EndLine: 3}
	require.NoError(t, store.UpsertSymbol(ctx, caller))
	require.NoError(t, store.UpsertSymbol(ctx, callee))
	require.NoError(t, store.CreateCallRelationship(ctx, repoID, caller, callee))

	callers, err := store.FindCallers(ctx, repoID, "calculate_total")
	require.NoError(t, err)
	require.Len(t, callers, 1)
	assert.Equal(t, "apply_discount", callers[0].Name)
}
