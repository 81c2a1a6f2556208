package index

import (
	"context"
	"fmt"

	"github.com/codeintel/codeindex/internal/store"
)

// VectorIndex is the dense-vector nearest-neighbor adapter backed by
// Qdrant. One collection per repository; snapshot_id is carried as a
// payload field and filtered on at query/delete time rather than split
// into per-snapshot collections, matching §6's "one collection per
// repository (or one collection with a repo filter)" allowance.
type VectorIndex struct {
	qdrant     *store.QdrantStore
	vectorSize int
}

// NewVectorIndex wires a Qdrant connection for similarity search. Upsert
// creates the repository's collection on demand via EnsureCollection.
func NewVectorIndex(url string, vectorSize int) (*VectorIndex, error) {
	qs, err := store.NewQdrantStore(url)
	if err != nil {
		return nil, fmt.Errorf("index: vector: %w", err)
	}
	return &VectorIndex{qdrant: qs, vectorSize: vectorSize}, nil
}

func collectionName(repoID string) string { return "repo_" + repoID }

func (v *VectorIndex) EnsureCollection(ctx context.Context, repoID string) error {
	return v.qdrant.EnsureCollection(ctx, collectionName(repoID), v.vectorSize)
}

func (v *VectorIndex) Upsert(ctx context.Context, repoID, snapshotID string, docs []Document) error {
	var points []store.Point
	for _, d := range docs {
		if len(d.Embedding) == 0 {
			continue
		}
		points = append(points, store.Point{
			ID:     d.ChunkID,
			Vector: d.Embedding,
			Payload: map[string]interface{}{
				"repo_id":     repoID,
				"snapshot_id": snapshotID,
				"kind":        d.Kind,
				"file_path":   d.FilePath,
				"start_line":  d.StartLine,
				"end_line":    d.EndLine,
			},
		})
	}
	if len(points) == 0 {
		return nil
	}
	if err := v.EnsureCollection(ctx, repoID); err != nil {
		return fmt.Errorf("index: vector: ensure collection: %w", err)
	}
	return v.qdrant.UpsertPoints(ctx, collectionName(repoID), points)
}

func (v *VectorIndex) Delete(ctx context.Context, repoID, snapshotID string) error {
	return v.qdrant.DeleteByFilter(ctx, collectionName(repoID), map[string]interface{}{"snapshot_id": snapshotID})
}

// Search expects filters["embedding"] to carry the pre-computed query
// embedding (the retriever owns calling the embedding provider; this
// adapter never embeds text itself).
func (v *VectorIndex) Search(ctx context.Context, repoID, snapshotID, query string, k int, filters Filters) ([]SearchHit, error) {
	vector, ok := filters["embedding"].([]float32)
	if !ok || len(vector) == 0 {
		return nil, fmt.Errorf("index: vector: search requires filters[\"embedding\"]")
	}
	points, err := v.qdrant.QuerySimilar(ctx, collectionName(repoID), vector, k, map[string]interface{}{"snapshot_id": snapshotID})
	if err != nil {
		return nil, fmt.Errorf("index: vector: search: %w", err)
	}
	hits := make([]SearchHit, len(points))
	for i, p := range points {
		hits[i] = SearchHit{
			ChunkID:   p.ID,
			Source:    SourceVector,
			Score:     float64(p.Score),
			FilePath:  stringPayload(p.Payload, "file_path"),
			StartLine: intPayload(p.Payload, "start_line"),
			EndLine:   intPayload(p.Payload, "end_line"),
		}
	}
	return hits, nil
}

func (v *VectorIndex) HealthCheck(ctx context.Context) Health {
	if err := v.qdrant.HealthCheck(ctx); err != nil {
		return Health{OK: false, Detail: err.Error()}
	}
	return Health{OK: true}
}

func (v *VectorIndex) Close() error { return v.qdrant.Close() }

func stringPayload(p map[string]interface{}, key string) string {
	if v, ok := p[key].(string); ok {
		return v
	}
	return ""
}

func intPayload(p map[string]interface{}, key string) int {
	switch v := p[key].(type) {
	case int64:
		return int(v)
	case int:
		return v
	default:
		return 0
	}
}
