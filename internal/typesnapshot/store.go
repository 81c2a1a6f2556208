package typesnapshot

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// persistedRecord mirrors the JSON shape of §6's Type Snapshot record.
type persistedRecord struct {
	SnapshotID string        `json:"snapshot_id"`
	ProjectID  string        `json:"project_id"`
	Files      []string      `json:"files"`
	TypingInfo []typingEntry `json:"typing_info"`
}

type typingEntry struct {
	File string   `json:"file"`
	Span spanJSON `json:"span"`
	Type string   `json:"type"`
}

type spanJSON struct {
	SL int `json:"sl"`
	SC int `json:"sc"`
	EL int `json:"el"`
	EC int `json:"ec"`
}

// Store persists Snapshots in the relational store and maintains a
// write-through in-process cache keyed by "{repo_id}:latest" and
// "{snapshot_id}" (fixed size ~64 entries).
type Store struct {
	db    *sql.DB
	cache *lru.Cache[string, *Snapshot]
}

// NewStore wires a relational handle with a 64-entry write-through cache.
func NewStore(db *sql.DB) (*Store, error) {
	c, err := lru.New[string, *Snapshot](64)
	if err != nil {
		return nil, err
	}
	return &Store{db: db, cache: c}, nil
}

// Save inserts a new row; snapshots are never updated in place.
func (s *Store) Save(ctx context.Context, snap *Snapshot) error {
	data, err := marshal(snap)
	if err != nil {
		return fmt.Errorf("typesnapshot: marshal: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO type_snapshots(snapshot_id, repo_id, timestamp, data) VALUES (?, ?, ?, ?)`,
		snap.SnapshotID, snap.RepoID, snap.Timestamp.UTC().Format(time.RFC3339Nano), data,
	)
	if err != nil {
		return fmt.Errorf("typesnapshot: insert: %w", err)
	}
	s.cache.Add(snap.SnapshotID, snap)
	s.cache.Add(snap.RepoID+":latest", snap)
	return nil
}

// LoadLatest returns the newest snapshot for repoID by timestamp.
func (s *Store) LoadLatest(ctx context.Context, repoID string) (*Snapshot, error) {
	if v, ok := s.cache.Get(repoID + ":latest"); ok {
		return v, nil
	}
	row := s.db.QueryRowContext(ctx,
		`SELECT data FROM type_snapshots WHERE repo_id = ? ORDER BY timestamp DESC LIMIT 1`, repoID)
	var data string
	if err := row.Scan(&data); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("typesnapshot: load latest: %w", err)
	}
	snap, err := unmarshal(data)
	if err != nil {
		return nil, err
	}
	s.cache.Add(repoID+":latest", snap)
	s.cache.Add(snap.SnapshotID, snap)
	return snap, nil
}

// LoadByID returns a specific snapshot.
func (s *Store) LoadByID(ctx context.Context, snapshotID string) (*Snapshot, error) {
	if v, ok := s.cache.Get(snapshotID); ok {
		return v, nil
	}
	row := s.db.QueryRowContext(ctx, `SELECT data FROM type_snapshots WHERE snapshot_id = ?`, snapshotID)
	var data string
	if err := row.Scan(&data); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("typesnapshot: load by id: %w", err)
	}
	snap, err := unmarshal(data)
	if err != nil {
		return nil, err
	}
	s.cache.Add(snapshotID, snap)
	return snap, nil
}

// List returns up to limit snapshots for repoID, newest first.
func (s *Store) List(ctx context.Context, repoID string, limit int) ([]*Snapshot, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT data FROM type_snapshots WHERE repo_id = ? ORDER BY timestamp DESC LIMIT ?`, repoID, limit)
	if err != nil {
		return nil, fmt.Errorf("typesnapshot: list: %w", err)
	}
	defer rows.Close()

	var out []*Snapshot
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		snap, err := unmarshal(data)
		if err != nil {
			return nil, err
		}
		out = append(out, snap)
	}
	return out, rows.Err()
}

// DeleteOld removes all but the keep_count newest snapshots for repoID and
// clears any cached entries for the deleted snapshots.
func (s *Store) DeleteOld(ctx context.Context, repoID string, keepCount int) (int, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT snapshot_id FROM type_snapshots WHERE repo_id = ? ORDER BY timestamp DESC`, repoID)
	if err != nil {
		return 0, err
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return 0, err
		}
		ids = append(ids, id)
	}
	rows.Close()

	if len(ids) <= keepCount {
		return 0, nil
	}
	toDelete := ids[keepCount:]

	deleted := 0
	for _, id := range toDelete {
		if _, err := s.db.ExecContext(ctx, `DELETE FROM type_snapshots WHERE snapshot_id = ?`, id); err != nil {
			return deleted, err
		}
		s.cache.Remove(id)
		deleted++
	}
	s.cache.Remove(repoID + ":latest")
	return deleted, nil
}

// Merge applies the direct file-keyed incremental rule: start from the
// previous snapshot's typing_info, drop entries whose file is in the
// changed-or-deleted set, then add entries from re-analyzing changed files
// only. This must never be replaced by a generic "diff the two snapshots"
// routine — that approach erroneously removed unchanged files in an
// earlier revision (see SPEC_FULL.md §4.6 / §9 incremental-merge hazard).
func Merge(prev *Snapshot, changedFiles, deletedFiles []string, freshEntries map[string][]TypingEntry, newSnapshotID, repoID string, files []string) *Snapshot {
	removed := make(map[string]struct{}, len(changedFiles)+len(deletedFiles))
	for _, f := range changedFiles {
		removed[f] = struct{}{}
	}
	for _, f := range deletedFiles {
		removed[f] = struct{}{}
	}

	merged := make(map[string][]TypingEntry)
	if prev != nil {
		for file, entries := range prev.TypingInfo {
			if _, gone := removed[file]; gone {
				continue
			}
			merged[file] = entries
		}
	}
	for file, entries := range freshEntries {
		merged[file] = entries
	}

	return &Snapshot{
		SnapshotID: newSnapshotID,
		RepoID:     repoID,
		Timestamp:  time.Now().UTC(),
		Files:      files,
		TypingInfo: merged,
	}
}

func marshal(snap *Snapshot) (string, error) {
	rec := persistedRecord{SnapshotID: snap.SnapshotID, ProjectID: snap.RepoID, Files: snap.Files}
	for file, entries := range snap.TypingInfo {
		for _, e := range entries {
			rec.TypingInfo = append(rec.TypingInfo, typingEntry{
				File: file,
				Span: spanJSON{SL: e.StartLine, SC: e.StartCol, EL: e.EndLine, EC: e.EndCol},
				Type: e.Type,
			})
		}
	}
	b, err := json.Marshal(rec)
	return string(b), err
}

func unmarshal(data string) (*Snapshot, error) {
	var rec persistedRecord
	if err := json.Unmarshal([]byte(data), &rec); err != nil {
		return nil, fmt.Errorf("typesnapshot: unmarshal: %w", err)
	}
	typing := make(map[string][]TypingEntry)
	for _, e := range rec.TypingInfo {
		typing[e.File] = append(typing[e.File], TypingEntry{
			File: e.File, StartLine: e.Span.SL, StartCol: e.Span.SC, EndLine: e.Span.EL, EndCol: e.Span.EC, Type: e.Type,
		})
	}
	return &Snapshot{
		SnapshotID: rec.SnapshotID,
		RepoID:     rec.ProjectID,
		Files:      rec.Files,
		TypingInfo: typing,
	}, nil
}
