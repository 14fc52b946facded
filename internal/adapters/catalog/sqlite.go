package catalog

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/okian/featable/internal/features/learning"
	_ "modernc.org/sqlite"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS %s (
	content_id INTEGER PRIMARY KEY,
	part       INTEGER NOT NULL,
	kind       TEXT    NOT NULL DEFAULT '',
	tags       TEXT    NOT NULL DEFAULT ''
);`

// DefaultTable is the catalog table name when none is configured.
const DefaultTable = "catalog"

// SQLite is a file-backed catalog store. The table is migrated on open and
// the whole catalog is cached in memory: lookups sit on the feature
// builders' hot path and never touch the database.
type SQLite struct {
	db    *sql.DB
	table string
	cache map[int64]learning.ContentInfo
}

// SQLiteOption applies a configuration option to OpenSQLite.
type SQLiteOption func(*SQLite)

// WithTable selects the catalog table. Question and lecture catalogs have
// overlapping id spaces, so one database file holds them in separate
// tables.
func WithTable(name string) SQLiteOption {
	return func(s *SQLite) {
		if name != "" {
			s.table = name
		}
	}
}

// OpenSQLite opens (or creates) a catalog database and loads its entries.
func OpenSQLite(ctx context.Context, path string, opts ...SQLiteOption) (*SQLite, error) {
	// modernc.org/sqlite takes pragmas as _pragma=name(value) in the DSN.
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open catalog db: %w", err)
	}
	// SQLite handles concurrency better with a single writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	s := &SQLite{db: db, table: DefaultTable}
	for _, opt := range opts {
		opt(s)
	}

	if _, err := db.ExecContext(ctx, fmt.Sprintf(schemaSQL, s.table)); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate catalog db: %w", err)
	}
	if err := s.reload(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Insert upserts entries and refreshes the cache.
func (s *SQLite) Insert(ctx context.Context, entries ...Entry) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin insert: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf(`
		INSERT INTO %s (content_id, part, kind, tags) VALUES (?, ?, ?, ?)
		ON CONFLICT(content_id) DO UPDATE SET part=excluded.part, kind=excluded.kind, tags=excluded.tags`, s.table))
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("prepare insert: %w", err)
	}
	for _, e := range entries {
		if _, err := stmt.ExecContext(ctx, e.ID, e.Part, e.Kind, e.Tags); err != nil {
			stmt.Close()
			tx.Rollback()
			return fmt.Errorf("insert entry %d: %w", e.ID, err)
		}
	}
	stmt.Close()
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit insert: %w", err)
	}
	return s.reload(ctx)
}

func (s *SQLite) reload(ctx context.Context) error {
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`SELECT content_id, part, kind, tags FROM %s`, s.table))
	if err != nil {
		return fmt.Errorf("load catalog: %w", err)
	}
	defer rows.Close()

	cache := make(map[int64]learning.ContentInfo)
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.Part, &e.Kind, &e.Tags); err != nil {
			return fmt.Errorf("scan catalog entry: %w", err)
		}
		cache[e.ID] = e.info()
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate catalog: %w", err)
	}
	s.cache = cache
	return nil
}

// Lookup resolves one content id from the cache.
func (s *SQLite) Lookup(id int64) (learning.ContentInfo, bool) {
	info, ok := s.cache[id]
	return info, ok
}

// Len reports the number of cached catalog entries.
func (s *SQLite) Len() int { return len(s.cache) }

// Close closes the underlying database.
func (s *SQLite) Close() error { return s.db.Close() }
