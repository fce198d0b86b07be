//go:build !sqlite_fts5

package store

import (
	"context"
	"database/sql"
)

func initFTS(_ *sql.DB) error {
	// FTS5 not available; search uses LIKE on the memos.plain column.
	return nil
}

func ftsUpsert(_ context.Context, _ *sql.Tx, _ int64, _ string, _ []string) error {
	// Plain text is already stored in the memos table.
	return nil
}

func ftsDelete(_ context.Context, _ *sql.Tx, _ int64) error { return nil }

// Search performs a LIKE-based search (fallback when FTS5 is not compiled in).
func (db *DB) Search(ctx context.Context, query string, limit int) ([]SearchResult, error) {
	if limit <= 0 {
		limit = 20
	}
	like := "%" + escapeLike(query) + "%"
	rows, err := db.conn.QueryContext(ctx, `
		SELECT id, substr(plain, 1, 200)
		FROM memos
		WHERE row_status = 'NORMAL'
		  AND (plain LIKE ? ESCAPE '\' OR id IN (SELECT memo_id FROM memo_tags WHERE label LIKE ? ESCAPE '\'))
		ORDER BY updated_ts DESC
		LIMIT ?
	`, like, like, limit)
	if err != nil {
		return nil, unavailable("search", err)
	}
	return scanResults(rows)
}
