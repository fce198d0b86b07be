// Package linkgraph computes the forward and backward memo links of a memo
// by scanning storage strings for memo-link tokens at read time.
package linkgraph

import (
	"cmp"
	"context"
	"errors"
	"slices"

	"github.com/starford/memos/internal/apperr"
	"github.com/starford/memos/internal/models"
	"github.com/starford/memos/internal/pattern"
)

// Graph holds the memos linked from a memo and the memos linking to it.
type Graph struct {
	Forward  []models.MemoSummary `json:"forward"`
	Backward []models.MemoSummary `json:"backward"`
}

// LookupFunc resolves a memo id to its summary.
type LookupFunc func(id int64) (models.MemoSummary, bool)

// ForwardIDs returns the ids linked from content in document order,
// without duplicates and without selfID.
func ForwardIDs(content string, selfID int64) []int64 {
	var ids []int64
	for _, l := range pattern.MemoLinks(content) {
		if l.ID == selfID || slices.Contains(ids, l.ID) {
			continue
		}
		ids = append(ids, l.ID)
	}
	return ids
}

// LinksTo reports whether content holds a memo-link token to id.
func LinksTo(content string, id int64) bool {
	for _, l := range pattern.MemoLinks(content) {
		if l.ID == id {
			return true
		}
	}
	return false
}

// Resolve builds the link graph of the memo selfID with the given content.
// Ids that lookup cannot resolve are dropped. Backward links are the normal
// memos of backward that link to selfID, newest first and by id on ties.
// Neither content nor backward is modified.
func Resolve(content string, selfID int64, lookup LookupFunc, backward []models.MemoSummary) Graph {
	g := Graph{
		Forward:  []models.MemoSummary{},
		Backward: []models.MemoSummary{},
	}
	for _, id := range ForwardIDs(content, selfID) {
		if m, ok := lookup(id); ok {
			g.Forward = append(g.Forward, m)
		}
	}
	for _, m := range backward {
		if m.ID == selfID || m.RowStatus != models.Normal {
			continue
		}
		if LinksTo(m.Content, selfID) {
			g.Backward = append(g.Backward, m)
		}
	}
	SortBackward(g.Backward)
	return g
}

// SortBackward orders summaries by creation time descending, then id ascending.
func SortBackward(ms []models.MemoSummary) {
	slices.SortStableFunc(ms, func(a, b models.MemoSummary) int {
		if c := b.CreatedTs.Compare(a.CreatedTs); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
}

// Store is the slice of the content store the Resolver reads.
type Store interface {
	GetMemo(ctx context.Context, id int64) (*models.Memo, error)
	ListBackwardCandidates(ctx context.Context, selfID int64) ([]models.MemoSummary, error)
}

// Resolver resolves link graphs against a Store.
type Resolver struct {
	store Store
}

// NewResolver returns a Resolver reading from store.
func NewResolver(store Store) *Resolver {
	return &Resolver{store: store}
}

// Resolve loads the snapshot needed for the memo's graph and resolves it.
// Store errors are returned as they are; a memo the store cannot find is
// a dangling link and is left out.
func (r *Resolver) Resolve(ctx context.Context, content string, selfID int64) (Graph, error) {
	found := make(map[int64]models.MemoSummary)
	for _, id := range ForwardIDs(content, selfID) {
		m, err := r.store.GetMemo(ctx, id)
		if err != nil {
			if errors.Is(err, apperr.ErrNotFound) {
				continue
			}
			return Graph{}, err
		}
		found[id] = m.Summary()
	}

	var backward []models.MemoSummary
	if selfID > 0 {
		var err error
		backward, err = r.store.ListBackwardCandidates(ctx, selfID)
		if err != nil {
			return Graph{}, err
		}
	}

	lookup := func(id int64) (models.MemoSummary, bool) {
		m, ok := found[id]
		return m, ok
	}
	return Resolve(content, selfID, lookup, backward), nil
}
