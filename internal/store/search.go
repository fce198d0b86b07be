package store

import "database/sql"

// SearchResult represents one search hit.
type SearchResult struct {
	ID      int64  `json:"id"`
	Snippet string `json:"snippet"`
}

func scanResults(rows *sql.Rows) ([]SearchResult, error) {
	defer rows.Close()
	out := []SearchResult{}
	for rows.Next() {
		var r SearchResult
		if err := rows.Scan(&r.ID, &r.Snippet); err != nil {
			return nil, unavailable("scan search result", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("search", err)
	}
	return out, nil
}
