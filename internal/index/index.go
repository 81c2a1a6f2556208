// Package index defines the uniform adapter contract shared by the five
// specialized indexes (lexical, vector, symbol, fuzzy, domain) and the
// denormalized IndexDocument handed to each at the edge of the indexing
// stage. Downstream code (the orchestrator, the retriever) programs to
// this single capability set; adding a new backing store means
// implementing Adapter, nothing more.
package index

import "context"

// Document is the denormalized record produced by the chunk-to-index
// transformer. A single Document carries every per-index projection; each
// adapter reads only the fields it needs.
type Document struct {
	ChunkID    string
	RepoID     string
	SnapshotID string
	Kind       string // file | class | function | method | module
	FilePath   string
	StartLine  int
	EndLine    int

	// Lexical
	Content string

	// Vector
	Embedding []float32

	// Symbol
	Symbol *SymbolRecord

	// Fuzzy
	Identifiers []string

	// Domain
	DocType string

	Metadata map[string]any
}

// SymbolRecord is the symbol-index projection of an IR/Chunk entity.
type SymbolRecord struct {
	ID          string
	FQN         string
	Name        string
	Kind        string
	ParentID    string
	SignatureID string
	TypeID      string
}

// Filters narrows a Search call to a subset of documents (e.g. by kind or
// file path prefix); adapters treat an absent key as unconstrained.
type Filters map[string]any

// SearchHit is the uniform result shape returned by every adapter. Score
// scales differ by Source; the retriever must never compare raw scores
// across sources (see Weighted RRF in internal/retriever).
type SearchHit struct {
	ChunkID   string
	Source    string // lexical | vector | symbol | fuzzy | domain
	Score     float64
	FilePath  string
	StartLine int
	EndLine   int
	Metadata  map[string]any
}

// Health is the result of probing a backing store independently of any
// query, so a single adapter outage never masks the others.
type Health struct {
	OK     bool
	Detail string
}

// Adapter is the capability set all five index backends implement:
// upsert, delete, search, health_check, close. upsert is idempotent,
// identified by ChunkID; delete(repo_id, snapshot_id) is strict — it
// removes every document tagged with that pair and a subsequent search
// against it returns empty.
type Adapter interface {
	Upsert(ctx context.Context, repoID, snapshotID string, docs []Document) error
	Delete(ctx context.Context, repoID, snapshotID string) error
	Search(ctx context.Context, repoID, snapshotID, query string, k int, filters Filters) ([]SearchHit, error)
	HealthCheck(ctx context.Context) Health
	Close() error
}

// Source name constants, used both as Adapter.Search's "source" tag on
// hits and as map keys wherever a caller needs to address one of the five
// adapters by name (the retriever's strategy map, the orchestrator's
// configured-adapters list).
const (
	SourceLexical = "lexical"
	SourceVector  = "vector"
	SourceSymbol  = "symbol"
	SourceFuzzy   = "fuzzy"
	SourceDomain  = "domain"
	SourceGraph   = "graph" // alias used by the retriever for symbol-graph traversal hits
)

// RepoKey is the composite scoping tag "repo_id::snapshot_id" used by
// backends (Neo4j, Qdrant collections-with-filter) that don't have a
// native two-part primary key.
func RepoKey(repoID, snapshotID string) string {
	return repoID + "::" + snapshotID
}
