package index

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/mapping"
)

// lexicalDoc is the Bleve document stored for one chunk's raw code text.
type lexicalDoc struct {
	RepoID     string
	SnapshotID string
	Kind       string
	FilePath   string
	Content    string
}

// LexicalIndex is the inverted-index-over-raw-code-text adapter: analyzed
// match queries over chunk content (no regex), BM25-like scoring on
// Bleve's native 0-30-ish scale.
type LexicalIndex struct {
	mu    sync.RWMutex
	index bleve.Index
	path  string
}

// NewLexicalIndex opens (or creates) a disk-backed Bleve index at path. An
// empty path creates an in-memory index, used by tests.
func NewLexicalIndex(path string) (*LexicalIndex, error) {
	idx, err := openOrCreateBleve(path, buildCodeMapping())
	if err != nil {
		return nil, fmt.Errorf("index: lexical: %w", err)
	}
	return &LexicalIndex{index: idx, path: path}, nil
}

func buildCodeMapping() *mapping.IndexMappingImpl {
	m := bleve.NewIndexMapping()
	docMapping := bleve.NewDocumentMapping()
	contentField := bleve.NewTextFieldMapping()
	contentField.Store = false
	docMapping.AddFieldMappingsAt("Content", contentField)
	m.DefaultMapping = docMapping
	return m
}

func openOrCreateBleve(path string, m *mapping.IndexMappingImpl) (bleve.Index, error) {
	if path == "" {
		return bleve.NewMemOnly(m)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	idx, err := bleve.Open(path)
	if err == bleve.ErrorIndexPathDoesNotExist {
		return bleve.New(path, m)
	}
	return idx, err
}

func (l *LexicalIndex) Upsert(ctx context.Context, repoID, snapshotID string, docs []Document) error {
	if len(docs) == 0 {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	batch := l.index.NewBatch()
	for _, d := range docs {
		ld := lexicalDoc{RepoID: repoID, SnapshotID: snapshotID, Kind: d.Kind, FilePath: d.FilePath, Content: d.Content}
		if err := batch.Index(bleveDocID(repoID, snapshotID, d.ChunkID), ld); err != nil {
			return fmt.Errorf("index: lexical: batch index %s: %w", d.ChunkID, err)
		}
	}
	return l.index.Batch(batch)
}

func (l *LexicalIndex) Delete(ctx context.Context, repoID, snapshotID string) error {
	ids, err := l.idsForSnapshot(repoID, snapshotID)
	if err != nil {
		return err
	}
	if len(ids) == 0 {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	batch := l.index.NewBatch()
	for _, id := range ids {
		batch.Delete(id)
	}
	return l.index.Batch(batch)
}

func (l *LexicalIndex) Search(ctx context.Context, repoID, snapshotID, query string, k int, filters Filters) ([]SearchHit, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	mq := bleve.NewMatchQuery(query)
	mq.SetField("Content")
	scope := scopeQuery(repoID, snapshotID)
	conjunct := bleve.NewConjunctionQuery(mq, scope)

	req := bleve.NewSearchRequest(conjunct)
	req.Size = k
	req.Fields = []string{"RepoID", "SnapshotID", "Kind", "FilePath"}

	res, err := l.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("index: lexical: search: %w", err)
	}

	hits := make([]SearchHit, 0, len(res.Hits))
	for _, h := range res.Hits {
		chunkID := chunkIDFromBleveDocID(h.ID)
		hits = append(hits, SearchHit{
			ChunkID:  chunkID,
			Source:   SourceLexical,
			Score:    h.Score,
			FilePath: fieldString(h.Fields, "FilePath"),
		})
	}
	return hits, nil
}

func (l *LexicalIndex) HealthCheck(ctx context.Context) Health {
	if _, err := l.index.DocCount(); err != nil {
		return Health{OK: false, Detail: err.Error()}
	}
	return Health{OK: true}
}

func (l *LexicalIndex) Close() error { return l.index.Close() }

func (l *LexicalIndex) idsForSnapshot(repoID, snapshotID string) ([]string, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	req := bleve.NewSearchRequest(scopeQuery(repoID, snapshotID))
	count, err := l.index.DocCount()
	if err != nil {
		return nil, err
	}
	req.Size = int(count)
	res, err := l.index.Search(req)
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(res.Hits))
	for i, h := range res.Hits {
		ids[i] = h.ID
	}
	return ids, nil
}

func scopeQuery(repoID, snapshotID string) *bleve.ConjunctionQuery {
	repoQ := bleve.NewMatchQuery(repoID)
	repoQ.SetField("RepoID")
	snapQ := bleve.NewMatchQuery(snapshotID)
	snapQ.SetField("SnapshotID")
	return bleve.NewConjunctionQuery(repoQ, snapQ)
}

func bleveDocID(repoID, snapshotID, chunkID string) string {
	return repoID + "::" + snapshotID + "::" + chunkID
}

func chunkIDFromBleveDocID(id string) string {
	// repo_id and snapshot_id are opaque but never contain "::" themselves
	// (they are hex/UUID-shaped IDs), so the final segment is the chunk ID.
	parts := strings.SplitN(id, "::", 3)
	if len(parts) == 3 {
		return parts[2]
	}
	return id
}

func fieldString(fields map[string]interface{}, key string) string {
	if v, ok := fields[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}
