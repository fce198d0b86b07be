package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/starford/memos/internal/apperr"
	"github.com/starford/memos/internal/checksum"
	"github.com/starford/memos/internal/document"
	"github.com/starford/memos/internal/linkgraph"
	"github.com/starford/memos/internal/models"
	"github.com/starford/memos/internal/pattern"
	"github.com/starford/memos/internal/render"
)

const memoColumns = `id, content, checksum, visibility, row_status, created_ts, updated_ts`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMemo(row rowScanner) (*models.Memo, error) {
	var m models.Memo
	if err := row.Scan(&m.ID, &m.Content, &m.Checksum, &m.Visibility, &m.RowStatus, &m.CreatedTs, &m.UpdatedTs); err != nil {
		return nil, err
	}
	return &m, nil
}

// GetMemo returns the memo with the given id.
func (db *DB) GetMemo(ctx context.Context, id int64) (*models.Memo, error) {
	m, err := scanMemo(db.conn.QueryRowContext(ctx, `SELECT `+memoColumns+` FROM memos WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("store: get memo %d: %w", id, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, unavailable("get memo", err)
	}
	return m, nil
}

// CreateMemo inserts a new normal memo and indexes its links and tags.
func (db *DB) CreateMemo(ctx context.Context, content string, vis models.Visibility) (*models.Memo, error) {
	if vis == "" {
		vis = models.Private
	}
	if !vis.Valid() {
		return nil, fmt.Errorf("store: create memo: visibility %q: %w", vis, apperr.ErrInvalidInput)
	}

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, unavailable("begin tx", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	now := db.timestamp()
	m := &models.Memo{
		Content:    content,
		Checksum:   checksum.Sum([]byte(content)),
		Visibility: vis,
		RowStatus:  models.Normal,
		CreatedTs:  now,
		UpdatedTs:  now,
	}
	res, err := tx.ExecContext(ctx, `
		INSERT INTO memos (content, plain, checksum, visibility, row_status, created_ts, updated_ts)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, m.Content, plainText(content), m.Checksum, m.Visibility, m.RowStatus, m.CreatedTs, m.UpdatedTs)
	if err != nil {
		return nil, unavailable("insert memo", err)
	}
	if m.ID, err = res.LastInsertId(); err != nil {
		return nil, unavailable("insert memo", err)
	}
	if err := writeDerived(ctx, tx, m.ID, content); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, unavailable("commit", err)
	}
	return m, nil
}

// PatchMemo applies the non-nil fields of patch in one transaction and
// reports which of them changed. A set IfMatch is compared with the stored
// checksum inside the same transaction. The updated timestamp only moves
// when something changes.
func (db *DB) PatchMemo(ctx context.Context, id int64, patch models.MemoPatch) (*models.Memo, models.Change, error) {
	var ch models.Change
	if patch.Visibility != nil && !patch.Visibility.Valid() {
		return nil, ch, fmt.Errorf("store: patch memo: visibility %q: %w", *patch.Visibility, apperr.ErrInvalidInput)
	}
	if patch.RowStatus != nil && !patch.RowStatus.Valid() {
		return nil, ch, fmt.Errorf("store: patch memo: row status %q: %w", *patch.RowStatus, apperr.ErrInvalidInput)
	}

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, ch, unavailable("begin tx", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	m, err := scanMemo(tx.QueryRowContext(ctx, `SELECT `+memoColumns+` FROM memos WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ch, fmt.Errorf("store: patch memo %d: %w", id, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, ch, unavailable("patch memo", err)
	}
	if patch.IfMatch != "" && patch.IfMatch != m.Checksum {
		return nil, ch, fmt.Errorf("store: patch memo %d: %w", id, apperr.ErrConflict)
	}

	if patch.Content != nil && *patch.Content != m.Content {
		m.Content = *patch.Content
		m.Checksum = checksum.Sum([]byte(m.Content))
		ch.Content = true
	}
	if patch.Visibility != nil && *patch.Visibility != m.Visibility {
		m.Visibility = *patch.Visibility
		ch.Visibility = true
	}
	if patch.RowStatus != nil && *patch.RowStatus != m.RowStatus {
		m.RowStatus = *patch.RowStatus
		ch.RowStatus = true
	}
	if !ch.Any() {
		return m, ch, nil
	}
	m.UpdatedTs = db.timestamp()

	if _, err := tx.ExecContext(ctx, `
		UPDATE memos
		SET content = ?, checksum = ?, visibility = ?, row_status = ?, updated_ts = ?
		WHERE id = ?
	`, m.Content, m.Checksum, m.Visibility, m.RowStatus, m.UpdatedTs, m.ID); err != nil {
		return nil, ch, unavailable("update memo", err)
	}
	if ch.Content {
		if _, err := tx.ExecContext(ctx, `UPDATE memos SET plain = ? WHERE id = ?`, plainText(m.Content), m.ID); err != nil {
			return nil, ch, unavailable("update memo", err)
		}
		if err := writeDerived(ctx, tx, m.ID, m.Content); err != nil {
			return nil, ch, err
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, ch, unavailable("commit", err)
	}
	return m, ch, nil
}

// DeleteMemo removes a memo together with its links, tags and FTS entry.
func (db *DB) DeleteMemo(ctx context.Context, id int64) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return unavailable("begin tx", err)
	}
	defer tx.Rollback() //nolint:errcheck

	res, err := tx.ExecContext(ctx, `DELETE FROM memos WHERE id = ?`, id)
	if err != nil {
		return unavailable("delete memo", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("store: delete memo %d: %w", id, apperr.ErrNotFound)
	}
	if err := ftsDelete(ctx, tx, id); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return unavailable("commit", err)
	}
	return nil
}

// writeDerived replaces the link, tag and FTS rows of a memo.
func writeDerived(ctx context.Context, tx *sql.Tx, id int64, content string) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM memo_links WHERE source = ?`, id); err != nil {
		return unavailable("clear links", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM memo_tags WHERE memo_id = ?`, id); err != nil {
		return unavailable("clear tags", err)
	}

	if targets := linkgraph.ForwardIDs(content, id); len(targets) > 0 {
		stmt, err := tx.PrepareContext(ctx, `INSERT OR IGNORE INTO memo_links (source, target) VALUES (?, ?)`)
		if err != nil {
			return unavailable("prepare link insert", err)
		}
		defer stmt.Close()
		for _, target := range targets {
			if _, err := stmt.ExecContext(ctx, id, target); err != nil {
				return unavailable("insert link", err)
			}
		}
	}

	tags := tagLabels(content)
	if len(tags) > 0 {
		stmt, err := tx.PrepareContext(ctx, `INSERT OR IGNORE INTO memo_tags (memo_id, label) VALUES (?, ?)`)
		if err != nil {
			return unavailable("prepare tag insert", err)
		}
		defer stmt.Close()
		for _, label := range tags {
			if _, err := stmt.ExecContext(ctx, id, label); err != nil {
				return unavailable("insert tag", err)
			}
		}
	}

	link, image := contentFlags(content)
	if _, err := tx.ExecContext(ctx, `UPDATE memos SET has_link = ?, has_image = ? WHERE id = ?`, link, image, id); err != nil {
		return unavailable("update flags", err)
	}

	return ftsUpsert(ctx, tx, id, plainText(content), tags)
}

// contentFlags reports whether the text outside references holds a web URL
// and an image URL.
func contentFlags(content string) (link, image bool) {
	var b strings.Builder
	leaf := func(in document.Inline) {
		for _, span := range in {
			if t, ok := span.(document.Text); ok {
				b.WriteString(t.Value)
				continue
			}
			b.WriteByte(' ')
		}
		b.WriteByte('\n')
	}
	for _, blk := range document.Parse(content) {
		leaf(blk.Content)
		for _, it := range blk.Items {
			leaf(it.Content)
		}
	}
	text := b.String()
	return pattern.HasURL(text), pattern.ImageURLRe.MatchString(text)
}

func tagLabels(content string) []string {
	var labels []string
	for _, tag := range pattern.Tags(content) {
		if !slices.Contains(labels, tag.Label) {
			labels = append(labels, tag.Label)
		}
	}
	return labels
}

func plainText(content string) string {
	return render.PlainText(render.Render(content))
}
