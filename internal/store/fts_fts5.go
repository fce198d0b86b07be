//go:build sqlite_fts5

package store

import (
	"context"
	"database/sql"
	"strings"
)

func initFTS(conn *sql.DB) error {
	_, err := conn.Exec(`
		CREATE VIRTUAL TABLE IF NOT EXISTS memos_fts USING fts5(
			memo_id UNINDEXED,
			body,
			tags,
			tokenize = 'unicode61 remove_diacritics 2'
		);
	`)
	return err
}

func ftsUpsert(ctx context.Context, tx *sql.Tx, id int64, body string, tags []string) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM memos_fts WHERE memo_id = ?`, id); err != nil {
		return unavailable("clear fts", err)
	}
	_, err := tx.ExecContext(ctx, `INSERT INTO memos_fts (memo_id, body, tags) VALUES (?, ?, ?)`,
		id, body, strings.Join(tags, " "))
	if err != nil {
		return unavailable("upsert fts", err)
	}
	return nil
}

func ftsDelete(ctx context.Context, tx *sql.Tx, id int64) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM memos_fts WHERE memo_id = ?`, id); err != nil {
		return unavailable("delete fts", err)
	}
	return nil
}

// Search performs an FTS5 full-text search over normal memos and returns
// matching results with snippets.
func (db *DB) Search(ctx context.Context, query string, limit int) ([]SearchResult, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := db.conn.QueryContext(ctx, `
		SELECT f.memo_id,
		       snippet(memos_fts, 1, '<b>', '</b>', '...', 32)
		FROM memos_fts f JOIN memos m ON m.id = f.memo_id
		WHERE memos_fts MATCH ? AND m.row_status = 'NORMAL'
		ORDER BY rank
		LIMIT ?
	`, query, limit)
	if err != nil {
		return nil, unavailable("search", err)
	}
	return scanResults(rows)
}
