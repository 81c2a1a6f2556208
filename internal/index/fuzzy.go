package index

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"fmt"
	"sort"

	"github.com/hbollon/go-edlib"
)

// FuzzyIndex is the trigram/edit-distance adapter over identifiers: short
// identifier strings, 0..1 similarity scoring via Levenshtein distance.
// Backed by the relational store's fuzzy_identifiers table rather than a
// dedicated trigram service, since the pack carries no such client and
// go-edlib gives edit-distance similarity directly over the candidate set
// (see DESIGN.md's internal/index ledger entry).
type FuzzyIndex struct {
	db *sql.DB
}

// NewFuzzyIndex wires a relational handle; the fuzzy_identifiers table is
// created by relstore's migrations.
func NewFuzzyIndex(db *sql.DB) *FuzzyIndex { return &FuzzyIndex{db: db} }

func (f *FuzzyIndex) Upsert(ctx context.Context, repoID, snapshotID string, docs []Document) error {
	tx, err := f.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("index: fuzzy: begin: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO fuzzy_identifiers(id, repo_id, snapshot_id, chunk_id, identifier, file_path, start_line, end_line)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("index: fuzzy: prepare: %w", err)
	}
	defer stmt.Close()

	for _, d := range docs {
		for _, ident := range d.Identifiers {
			rowID := fuzzyRowID(repoID, snapshotID, d.ChunkID, ident)
			if _, err := stmt.ExecContext(ctx, rowID, repoID, snapshotID, d.ChunkID, ident, d.FilePath, d.StartLine, d.EndLine); err != nil {
				return fmt.Errorf("index: fuzzy: insert %s: %w", ident, err)
			}
		}
	}
	return tx.Commit()
}

func (f *FuzzyIndex) Delete(ctx context.Context, repoID, snapshotID string) error {
	_, err := f.db.ExecContext(ctx, `DELETE FROM fuzzy_identifiers WHERE repo_id = ? AND snapshot_id = ?`, repoID, snapshotID)
	return err
}

type fuzzyCandidate struct {
	chunkID   string
	identifier string
	filePath  string
	startLine int
	endLine   int
}

func (f *FuzzyIndex) Search(ctx context.Context, repoID, snapshotID, query string, k int, filters Filters) ([]SearchHit, error) {
	rows, err := f.db.QueryContext(ctx,
		`SELECT chunk_id, identifier, file_path, start_line, end_line FROM fuzzy_identifiers WHERE repo_id = ? AND snapshot_id = ?`,
		repoID, snapshotID)
	if err != nil {
		return nil, fmt.Errorf("index: fuzzy: query candidates: %w", err)
	}
	defer rows.Close()

	var candidates []fuzzyCandidate
	for rows.Next() {
		var c fuzzyCandidate
		if err := rows.Scan(&c.chunkID, &c.identifier, &c.filePath, &c.startLine, &c.endLine); err != nil {
			return nil, err
		}
		candidates = append(candidates, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	type scored struct {
		fuzzyCandidate
		score float32
	}
	out := make([]scored, 0, len(candidates))
	for _, c := range candidates {
		sim, err := edlib.StringsSimilarity(query, c.identifier, edlib.Levenshtein)
		if err != nil {
			continue
		}
		if sim <= 0 {
			continue
		}
		out = append(out, scored{fuzzyCandidate: c, score: sim})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].score > out[j].score })
	if len(out) > k {
		out = out[:k]
	}

	hits := make([]SearchHit, len(out))
	for i, s := range out {
		hits[i] = SearchHit{
			ChunkID:   s.chunkID,
			Source:    SourceFuzzy,
			Score:     float64(s.score),
			FilePath:  s.filePath,
			StartLine: s.startLine,
			EndLine:   s.endLine,
			Metadata:  map[string]any{"identifier": s.identifier},
		}
	}
	return hits, nil
}

func (f *FuzzyIndex) HealthCheck(ctx context.Context) Health {
	if err := f.db.PingContext(ctx); err != nil {
		return Health{OK: false, Detail: err.Error()}
	}
	return Health{OK: true}
}

func (f *FuzzyIndex) Close() error { return nil } // db lifecycle owned by relstore

func fuzzyRowID(repoID, snapshotID, chunkID, identifier string) string {
	sum := sha256.Sum256([]byte(repoID + "\x00" + snapshotID + "\x00" + chunkID + "\x00" + identifier))
	return fmt.Sprintf("%x", sum[:16])
}
