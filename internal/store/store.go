// Package store provides the SQLite-backed memo content store with link and
// tag tables and optional FTS5 full-text search.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/starford/memos/internal/apperr"
	"github.com/starford/memos/internal/models"
)

const coreSchemaSQL = `
CREATE TABLE IF NOT EXISTS memos (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	content    TEXT NOT NULL,
	plain      TEXT NOT NULL DEFAULT '',
	checksum   TEXT NOT NULL DEFAULT '',
	visibility TEXT NOT NULL DEFAULT 'PRIVATE',
	row_status TEXT NOT NULL DEFAULT 'NORMAL',
	has_link   INTEGER NOT NULL DEFAULT 0,
	has_image  INTEGER NOT NULL DEFAULT 0,
	created_ts DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_ts DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS memo_links (
	source INTEGER NOT NULL REFERENCES memos(id) ON DELETE CASCADE,
	target INTEGER NOT NULL,
	UNIQUE(source, target)
);

CREATE TABLE IF NOT EXISTS memo_tags (
	memo_id INTEGER NOT NULL REFERENCES memos(id) ON DELETE CASCADE,
	label   TEXT NOT NULL,
	UNIQUE(memo_id, label)
);

CREATE INDEX IF NOT EXISTS idx_memos_status ON memos(row_status, created_ts);
CREATE INDEX IF NOT EXISTS idx_memo_links_target ON memo_links(target);
CREATE INDEX IF NOT EXISTS idx_memo_tags_label ON memo_tags(label);
`

// Store defines the content store operations.
// Consumers should depend on this interface rather than the concrete *DB type.
type Store interface {
	GetMemo(ctx context.Context, id int64) (*models.Memo, error)
	CreateMemo(ctx context.Context, content string, vis models.Visibility) (*models.Memo, error)
	PatchMemo(ctx context.Context, id int64, patch models.MemoPatch) (*models.Memo, models.Change, error)
	DeleteMemo(ctx context.Context, id int64) error
	ListMemos(ctx context.Context, opts ListOptions) ([]models.Memo, int, error)
	ListTags(ctx context.Context) ([]models.TagCount, error)
	Search(ctx context.Context, query string, limit int) ([]SearchResult, error)
	ListLinkedCandidates(ctx context.Context, query string, limit int) ([]models.MemoSummary, error)
	ListBackwardCandidates(ctx context.Context, selfID int64) ([]models.MemoSummary, error)
	Checksums(ctx context.Context) (map[int64]string, error)
	Ping(ctx context.Context) error
	Close() error
}

// Verify *DB satisfies Store at compile time.
var _ Store = (*DB)(nil)

// DB wraps a sql.DB with memo-specific operations.
type DB struct {
	conn *sql.DB
	now  func() time.Time
}

// Option configures a DB.
type Option func(*DB)

// WithClock overrides the clock used for created and updated timestamps.
func WithClock(now func() time.Time) Option {
	return func(db *DB) {
		db.now = now
	}
}

// Open opens (or creates) the SQLite database and applies the schema.
func Open(dsn string, opts ...Option) (*DB, error) {
	conn, err := sql.Open("sqlite3", dsn+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("store: open db: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("store: ping: %w", err)
	}
	if _, err := conn.Exec(coreSchemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("store: apply core schema: %w", err)
	}
	if err := migrate(conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("store: migrate: %w", err)
	}
	if err := initFTS(conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("store: apply fts schema: %w", err)
	}
	db := &DB{conn: conn, now: time.Now}
	for _, opt := range opts {
		opt(db)
	}
	return db, nil
}

// Close closes the underlying database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Ping reports whether the database is reachable.
func (db *DB) Ping(ctx context.Context) error {
	if err := db.conn.PingContext(ctx); err != nil {
		return unavailable("ping", err)
	}
	return nil
}

// unavailable wraps a driver error so callers can match ErrStoreUnavailable
// while keeping the cause.
func unavailable(op string, err error) error {
	return fmt.Errorf("store: %s: %w: %w", op, apperr.ErrStoreUnavailable, err)
}

func (db *DB) timestamp() time.Time {
	return db.now().UTC()
}
