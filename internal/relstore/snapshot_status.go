package relstore

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// PublishSnapshot marks (repoID, snapshotID) ready for querying, recorded
// once upsertAll has finished writing to at least one adapter (§5's
// ordering guarantee: a snapshot is never visible to Retrieve before every
// adapter write it required has settled).
func PublishSnapshot(ctx context.Context, db *sql.DB, repoID, snapshotID string) error {
	_, err := db.ExecContext(ctx,
		`INSERT INTO snapshot_status (repo_id, snapshot_id, ready, published_at)
		 VALUES (?, ?, 1, ?)
		 ON CONFLICT (repo_id, snapshot_id) DO UPDATE SET ready = 1, published_at = excluded.published_at`,
		repoID, snapshotID, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("relstore: publish snapshot: %w", err)
	}
	return nil
}

// IsSnapshotReady reports whether (repoID, snapshotID) has been published.
// A snapshot with no row at all is not ready: it either hasn't finished
// indexing or was never published, and in both cases queries should wait
// or fall back to an older snapshot rather than searching a partial one.
func IsSnapshotReady(ctx context.Context, db *sql.DB, repoID, snapshotID string) (bool, error) {
	var ready int
	err := db.QueryRowContext(ctx,
		`SELECT ready FROM snapshot_status WHERE repo_id = ? AND snapshot_id = ?`,
		repoID, snapshotID).Scan(&ready)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("relstore: snapshot ready check: %w", err)
	}
	return ready == 1, nil
}
