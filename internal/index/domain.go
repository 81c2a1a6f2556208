package index

import (
	"context"
	"fmt"
	"sync"

	"github.com/blevesearch/bleve/v2"
)

// domainDoc is the Bleve document stored for one documentation-typed chunk
// (docstrings, markdown, AGENTS.md sections — see internal/docs).
type domainDoc struct {
	RepoID      string `json:"repo_id"`
	SnapshotID  string `json:"snapshot_id"`
	DocType     string `json:"doc_type"`
	FilePath    string `json:"file_path"`
	HeadingPath string `json:"heading_path"`
	Content     string `json:"content"`
}

// DomainIndex is the full-text adapter over documentation content:
// natural-language queries, TF-IDF-style ranking. It is a second Bleve
// index rather than a shared one with LexicalIndex because its mapping
// tunes for prose (no code tokenizer) and its corpus (docstrings, guides)
// is a different retrieval population than raw source text.
type DomainIndex struct {
	mu    sync.RWMutex
	index bleve.Index
}

// NewDomainIndex opens (or creates) a disk-backed Bleve index at path; an
// empty path creates an in-memory index for tests.
func NewDomainIndex(path string) (*DomainIndex, error) {
	m := bleve.NewIndexMapping()
	idx, err := openOrCreateBleve(path, m)
	if err != nil {
		return nil, fmt.Errorf("index: domain: %w", err)
	}
	return &DomainIndex{index: idx}, nil
}

func (d *DomainIndex) Upsert(ctx context.Context, repoID, snapshotID string, docs []Document) error {
	if len(docs) == 0 {
		return nil
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	batch := d.index.NewBatch()
	for _, doc := range docs {
		if doc.DocType == "" {
			continue
		}
		headingPath, _ := doc.Metadata["heading_path"].(string)
		dd := domainDoc{
			RepoID: repoID, SnapshotID: snapshotID, DocType: doc.DocType,
			FilePath: doc.FilePath, HeadingPath: headingPath, Content: doc.Content,
		}
		if err := batch.Index(bleveDocID(repoID, snapshotID, doc.ChunkID), dd); err != nil {
			return fmt.Errorf("index: domain: batch index %s: %w", doc.ChunkID, err)
		}
	}
	if batch.Size() == 0 {
		return nil
	}
	return d.index.Batch(batch)
}

func (d *DomainIndex) Delete(ctx context.Context, repoID, snapshotID string) error {
	ids, err := d.idsForSnapshot(repoID, snapshotID)
	if err != nil {
		return err
	}
	if len(ids) == 0 {
		return nil
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	batch := d.index.NewBatch()
	for _, id := range ids {
		batch.Delete(id)
	}
	return d.index.Batch(batch)
}

func (d *DomainIndex) Search(ctx context.Context, repoID, snapshotID, query string, k int, filters Filters) ([]SearchHit, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	mq := bleve.NewMatchQuery(query)
	mq.SetField("Content")
	conjunct := bleve.NewConjunctionQuery(mq, scopeQuery(repoID, snapshotID))

	if docType, ok := filters["doc_type"].(string); ok && docType != "" {
		dq := bleve.NewMatchQuery(docType)
		dq.SetField("DocType")
		conjunct.AddQuery(dq)
	}

	req := bleve.NewSearchRequest(conjunct)
	req.Size = k
	req.Fields = []string{"FilePath", "HeadingPath", "DocType"}

	res, err := d.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("index: domain: search: %w", err)
	}

	hits := make([]SearchHit, 0, len(res.Hits))
	for _, h := range res.Hits {
		hits = append(hits, SearchHit{
			ChunkID:  chunkIDFromBleveDocID(h.ID),
			Source:   SourceDomain,
			Score:    h.Score,
			FilePath: fieldString(h.Fields, "FilePath"),
			Metadata: map[string]any{"heading_path": fieldString(h.Fields, "HeadingPath"), "doc_type": fieldString(h.Fields, "DocType")},
		})
	}
	return hits, nil
}

func (d *DomainIndex) HealthCheck(ctx context.Context) Health {
	if _, err := d.index.DocCount(); err != nil {
		return Health{OK: false, Detail: err.Error()}
	}
	return Health{OK: true}
}

func (d *DomainIndex) Close() error { return d.index.Close() }

func (d *DomainIndex) idsForSnapshot(repoID, snapshotID string) ([]string, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	count, err := d.index.DocCount()
	if err != nil {
		return nil, err
	}
	req := bleve.NewSearchRequest(scopeQuery(repoID, snapshotID))
	req.Size = int(count)
	res, err := d.index.Search(req)
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(res.Hits))
	for i, h := range res.Hits {
		ids[i] = h.ID
	}
	return ids, nil
}
