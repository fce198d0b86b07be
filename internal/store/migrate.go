package store

import (
	"database/sql"
)

// flagColumns were added to memos after the first release. Databases
// created before that get them on open, filled from the stored content.
var flagColumns = []string{"has_link", "has_image"}

func migrate(conn *sql.DB) error {
	have, err := columns(conn, "memos")
	if err != nil {
		return err
	}
	added := false
	for _, col := range flagColumns {
		if have[col] {
			continue
		}
		if _, err := conn.Exec(`ALTER TABLE memos ADD COLUMN ` + col + ` INTEGER NOT NULL DEFAULT 0`); err != nil {
			return err
		}
		added = true
	}
	if !added {
		return nil
	}
	return backfillFlags(conn)
}

func columns(conn *sql.DB, table string) (map[string]bool, error) {
	rows, err := conn.Query(`SELECT name FROM pragma_table_info(?)`, table)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[string]bool)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		out[name] = true
	}
	return out, rows.Err()
}

func backfillFlags(conn *sql.DB) error {
	rows, err := conn.Query(`SELECT id, content FROM memos`)
	if err != nil {
		return err
	}
	contents := make(map[int64]string)
	for rows.Next() {
		var id int64
		var content string
		if err := rows.Scan(&id, &content); err != nil {
			rows.Close()
			return err
		}
		contents[id] = content
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	for id, content := range contents {
		link, image := contentFlags(content)
		if _, err := conn.Exec(`UPDATE memos SET has_link = ?, has_image = ? WHERE id = ?`, link, image, id); err != nil {
			return err
		}
	}
	return nil
}
