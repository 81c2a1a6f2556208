// Package relstore owns the relational store: chunk rows, type-snapshot
// JSON documents, fuzzy-identifier rows, domain-document rows, and the
// ordered, reversible schema migrations that create them.
package relstore

import (
	"database/sql"
	"embed"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

// Open opens (and creates, if absent) a sqlite-backed relational store at
// dsn. dsn follows modernc.org/sqlite conventions, e.g. "file:/path/to/db.sqlite".
func Open(dsn string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("relstore: open: %w", err)
	}
	db.SetMaxOpenConns(10)
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("relstore: ping: %w", err)
	}
	return db, nil
}

type migration struct {
	version int
	name    string
	up      string
	down    string
}

var migrationNameRe = regexp.MustCompile(`^(\d+)_(.+)\.(up|down)\.sql$`)

func loadMigrations() ([]migration, error) {
	entries, err := migrationFS.ReadDir("migrations")
	if err != nil {
		return nil, err
	}

	byVersion := make(map[int]*migration)
	for _, e := range entries {
		m := migrationNameRe.FindStringSubmatch(e.Name())
		if m == nil {
			continue
		}
		version, _ := strconv.Atoi(m[1])
		name, direction := m[2], m[3]

		content, err := migrationFS.ReadFile("migrations/" + e.Name())
		if err != nil {
			return nil, err
		}

		mig, ok := byVersion[version]
		if !ok {
			mig = &migration{version: version, name: name}
			byVersion[version] = mig
		}
		if direction == "up" {
			mig.up = string(content)
		} else {
			mig.down = string(content)
		}
	}

	out := make([]migration, 0, len(byVersion))
	for _, m := range byVersion {
		out = append(out, *m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].version < out[j].version })
	return out, nil
}

// Migrate applies every migration newer than the current schema_migrations
// high-water mark, in order, each inside its own transaction.
func Migrate(db *sql.DB) error {
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS schema_migrations (
		version INTEGER PRIMARY KEY,
		name TEXT NOT NULL,
		applied_at TEXT NOT NULL
	)`); err != nil {
		return fmt.Errorf("relstore: ensure schema_migrations: %w", err)
	}

	current, err := currentVersion(db)
	if err != nil {
		return err
	}

	migrations, err := loadMigrations()
	if err != nil {
		return fmt.Errorf("relstore: load migrations: %w", err)
	}

	for _, m := range migrations {
		if m.version <= current {
			continue
		}
		if err := applyOne(db, m, m.up); err != nil {
			return fmt.Errorf("relstore: apply migration %d_%s: %w", m.version, m.name, err)
		}
	}
	return nil
}

// MigrateDown reverts the single most recently applied migration.
func MigrateDown(db *sql.DB) error {
	current, err := currentVersion(db)
	if err != nil {
		return err
	}
	if current == 0 {
		return nil
	}
	migrations, err := loadMigrations()
	if err != nil {
		return err
	}
	for _, m := range migrations {
		if m.version != current {
			continue
		}
		tx, err := db.Begin()
		if err != nil {
			return err
		}
		if _, err := tx.Exec(m.down); err != nil {
			tx.Rollback()
			return fmt.Errorf("relstore: revert migration %d_%s: %w", m.version, m.name, err)
		}
		if _, err := tx.Exec(`DELETE FROM schema_migrations WHERE version = ?`, m.version); err != nil {
			tx.Rollback()
			return err
		}
		return tx.Commit()
	}
	return fmt.Errorf("relstore: no migration found for version %d", current)
}

// Status reports the currently applied migration version and name.
func Status(db *sql.DB) (version int, name string, err error) {
	row := db.QueryRow(`SELECT version, name FROM schema_migrations ORDER BY version DESC LIMIT 1`)
	err = row.Scan(&version, &name)
	if err == sql.ErrNoRows {
		return 0, "", nil
	}
	return version, name, err
}

func currentVersion(db *sql.DB) (int, error) {
	var v sql.NullInt64
	row := db.QueryRow(`SELECT MAX(version) FROM schema_migrations`)
	if err := row.Scan(&v); err != nil {
		return 0, err
	}
	if !v.Valid {
		return 0, nil
	}
	return int(v.Int64), nil
}

func applyOne(db *sql.DB, m migration, sqlText string) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	for _, stmt := range strings.Split(sqlText, ";") {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		if _, err := tx.Exec(stmt); err != nil {
			tx.Rollback()
			return err
		}
	}
	if _, err := tx.Exec(
		`INSERT INTO schema_migrations(version, name, applied_at) VALUES (?, ?, ?)`,
		m.version, m.name, time.Now().UTC().Format(time.RFC3339),
	); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}
