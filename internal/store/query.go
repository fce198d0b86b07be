package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/starford/memos/internal/apperr"
	"github.com/starford/memos/internal/models"
)

// ListOptions filters and pages ListMemos.
type ListOptions struct {
	Status models.RowStatus
	Tag    string
	Type   models.MemoType
	Limit  int
	Offset int
}

// ListMemos returns memos newest first with the total count matching the filter.
func (db *DB) ListMemos(ctx context.Context, opts ListOptions) ([]models.Memo, int, error) {
	if opts.Limit <= 0 || opts.Limit > 500 {
		opts.Limit = 50
	}
	if opts.Offset < 0 {
		opts.Offset = 0
	}
	if opts.Type != "" && !opts.Type.Valid() {
		return nil, 0, fmt.Errorf("store: list memos: type %q: %w", opts.Type, apperr.ErrInvalidInput)
	}

	var where []string
	var args []any
	if opts.Status != "" {
		where = append(where, `row_status = ?`)
		args = append(args, opts.Status)
	}
	if opts.Tag != "" {
		where = append(where, `id IN (SELECT memo_id FROM memo_tags WHERE label = ?)`)
		args = append(args, opts.Tag)
	}
	switch opts.Type {
	case models.Connected:
		where = append(where, `id IN (SELECT source FROM memo_links)`)
	case models.Linked:
		where = append(where, `has_link = 1`)
	case models.Imaged:
		where = append(where, `has_image = 1`)
	}
	cond := ""
	if len(where) > 0 {
		cond = ` WHERE ` + strings.Join(where, ` AND `)
	}

	var total int
	if err := db.conn.QueryRowContext(ctx, `SELECT count(*) FROM memos`+cond, args...).Scan(&total); err != nil {
		return nil, 0, unavailable("count memos", err)
	}

	rows, err := db.conn.QueryContext(ctx,
		`SELECT `+memoColumns+` FROM memos`+cond+` ORDER BY created_ts DESC, id DESC LIMIT ? OFFSET ?`,
		append(args, opts.Limit, opts.Offset)...)
	if err != nil {
		return nil, 0, unavailable("list memos", err)
	}
	defer rows.Close()

	out := []models.Memo{}
	for rows.Next() {
		m, err := scanMemo(rows)
		if err != nil {
			return nil, 0, unavailable("scan memo", err)
		}
		out = append(out, *m)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, unavailable("list memos", err)
	}
	return out, total, nil
}

// ListTags returns every tag used by a normal memo with its usage count,
// most used first.
func (db *DB) ListTags(ctx context.Context) ([]models.TagCount, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT t.label, count(*) AS n
		FROM memo_tags t JOIN memos m ON m.id = t.memo_id
		WHERE m.row_status = 'NORMAL'
		GROUP BY t.label
		ORDER BY n DESC, t.label ASC
	`)
	if err != nil {
		return nil, unavailable("list tags", err)
	}
	defer rows.Close()

	out := []models.TagCount{}
	for rows.Next() {
		var tc models.TagCount
		if err := rows.Scan(&tc.Label, &tc.Count); err != nil {
			return nil, unavailable("scan tag", err)
		}
		out = append(out, tc)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("list tags", err)
	}
	return out, nil
}

// ListLinkedCandidates returns normal memos whose text contains query,
// most recently updated first. An empty query matches every memo.
func (db *DB) ListLinkedCandidates(ctx context.Context, query string, limit int) ([]models.MemoSummary, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := db.conn.QueryContext(ctx, `
		SELECT id, content, row_status, created_ts, updated_ts
		FROM memos
		WHERE row_status = 'NORMAL' AND (? = '' OR plain LIKE ? ESCAPE '\')
		ORDER BY updated_ts DESC, id DESC
		LIMIT ?
	`, query, "%"+escapeLike(query)+"%", limit)
	if err != nil {
		return nil, unavailable("list linked candidates", err)
	}
	return scanSummaries(rows, "list linked candidates")
}

// ListBackwardCandidates returns the normal memos whose indexed links point
// at selfID. Callers rescan the content; the link table only narrows the set.
func (db *DB) ListBackwardCandidates(ctx context.Context, selfID int64) ([]models.MemoSummary, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT m.id, m.content, m.row_status, m.created_ts, m.updated_ts
		FROM memo_links l JOIN memos m ON m.id = l.source
		WHERE l.target = ? AND m.row_status = 'NORMAL'
	`, selfID)
	if err != nil {
		return nil, unavailable("list backward candidates", err)
	}
	return scanSummaries(rows, "list backward candidates")
}

// Checksums returns the content checksum of every memo keyed by id.
func (db *DB) Checksums(ctx context.Context) (map[int64]string, error) {
	rows, err := db.conn.QueryContext(ctx, `SELECT id, checksum FROM memos`)
	if err != nil {
		return nil, unavailable("checksums", err)
	}
	defer rows.Close()

	out := make(map[int64]string)
	for rows.Next() {
		var id int64
		var cs string
		if err := rows.Scan(&id, &cs); err != nil {
			return nil, unavailable("scan checksum", err)
		}
		out[id] = cs
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("checksums", err)
	}
	return out, nil
}

func scanSummaries(rows *sql.Rows, op string) ([]models.MemoSummary, error) {
	defer rows.Close()
	out := []models.MemoSummary{}
	for rows.Next() {
		var s models.MemoSummary
		if err := rows.Scan(&s.ID, &s.Content, &s.RowStatus, &s.CreatedTs, &s.UpdatedTs); err != nil {
			return nil, unavailable(op, err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable(op, err)
	}
	return out, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
