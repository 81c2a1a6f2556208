package relstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// ChunkRow is the relational projection of a chunk, the backing store for
// audit retention (§3's "chunk rows that must persist for audit" via
// soft-delete) and for the retriever's rerank content lookup, since the
// lexical/symbol/fuzzy adapters don't all keep a full content copy.
type ChunkRow struct {
	ID            string
	RepoID        string
	SnapshotID    string
	Kind          string
	FilePath      string
	StartLine     int
	EndLine       int
	Content       string
	ContentHash   string
	ParentChunkID string
	SymbolID      string
}

// UpsertChunks writes one row per chunk inside a single transaction.
// content itself is carried in the metadata JSON blob rather than its own
// column, since the schema's `metadata` column is the documented catch-all
// and adding a dedicated `content` column would require a migration this
// package doesn't otherwise need.
func UpsertChunks(ctx context.Context, db *sql.DB, rows []ChunkRow) error {
	if len(rows) == 0 {
		return nil
	}
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("relstore: upsert chunks: begin: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO chunks(id, repo_id, snapshot_id, kind, file_path, start_line, end_line, content_hash, parent_chunk_id, symbol_id, metadata, deleted, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 0, ?)
		ON CONFLICT(id) DO UPDATE SET
			content_hash = excluded.content_hash,
			metadata = excluded.metadata,
			deleted = 0`)
	if err != nil {
		return fmt.Errorf("relstore: upsert chunks: prepare: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC().Format(time.RFC3339Nano)
	for _, r := range rows {
		meta, err := json.Marshal(map[string]string{"content": r.Content})
		if err != nil {
			return fmt.Errorf("relstore: upsert chunks: encode metadata: %w", err)
		}
		if _, err := stmt.ExecContext(ctx, r.ID, r.RepoID, r.SnapshotID, r.Kind, r.FilePath,
			r.StartLine, r.EndLine, r.ContentHash, r.ParentChunkID, r.SymbolID, string(meta), now); err != nil {
			return fmt.Errorf("relstore: upsert chunk %s: %w", r.ID, err)
		}
	}
	return tx.Commit()
}

// GetChunkContent resolves a chunk's current content and content_hash,
// backing internal/retriever.ContentLookup.
func GetChunkContent(ctx context.Context, db *sql.DB, chunkID string) (content, contentHash string, err error) {
	var metaRaw string
	row := db.QueryRowContext(ctx, `SELECT content_hash, metadata FROM chunks WHERE id = ? AND deleted = 0`, chunkID)
	if err := row.Scan(&contentHash, &metaRaw); err != nil {
		if err == sql.ErrNoRows {
			return "", "", fmt.Errorf("relstore: chunk %s not found", chunkID)
		}
		return "", "", fmt.Errorf("relstore: get chunk content: %w", err)
	}
	var meta map[string]string
	if metaRaw != "" {
		if err := json.Unmarshal([]byte(metaRaw), &meta); err != nil {
			return "", contentHash, fmt.Errorf("relstore: decode chunk metadata: %w", err)
		}
	}
	return meta["content"], contentHash, nil
}

// SoftDeleteSnapshot flags every chunk row for (repoID, snapshotID) as
// deleted without removing it, satisfying §3's "soft-delete ... for chunk
// rows that must persist for audit" while keeping index-adapter deletes
// (which are strict removals) consistent with the relational audit trail.
func SoftDeleteSnapshot(ctx context.Context, db *sql.DB, repoID, snapshotID string) error {
	_, err := db.ExecContext(ctx, `UPDATE chunks SET deleted = 1 WHERE repo_id = ? AND snapshot_id = ?`, repoID, snapshotID)
	if err != nil {
		return fmt.Errorf("relstore: soft delete snapshot: %w", err)
	}
	return nil
}

// DomainDocRow is the relational projection of a documentation-typed chunk.
type DomainDocRow struct {
	ID          string
	RepoID      string
	SnapshotID  string
	ChunkID     string
	DocType     string
	HeadingPath string
	Content     string
	FilePath    string
	StartLine   int
	EndLine     int
}

// UpsertDomainDocuments writes the relational mirror of what DomainIndex
// stores in Bleve, keeping the schema's domain_documents table (§6) a real
// audit/query surface instead of dead DDL.
func UpsertDomainDocuments(ctx context.Context, db *sql.DB, rows []DomainDocRow) error {
	if len(rows) == 0 {
		return nil
	}
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("relstore: upsert domain documents: begin: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO domain_documents(id, repo_id, snapshot_id, chunk_id, doc_type, heading_path, content, file_path, start_line, end_line)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("relstore: upsert domain documents: prepare: %w", err)
	}
	defer stmt.Close()

	for _, r := range rows {
		if _, err := stmt.ExecContext(ctx, r.ID, r.RepoID, r.SnapshotID, r.ChunkID, r.DocType, r.HeadingPath, r.Content, r.FilePath, r.StartLine, r.EndLine); err != nil {
			return fmt.Errorf("relstore: upsert domain document %s: %w", r.ID, err)
		}
	}
	return tx.Commit()
}
