// Package models defines the domain types for memos.
package models

import "time"

// Visibility controls who may read a memo.
type Visibility string

// Visibility values.
const (
	Public    Visibility = "PUBLIC"
	Protected Visibility = "PROTECTED"
	Private   Visibility = "PRIVATE"
)

// Valid reports whether v is a known visibility.
func (v Visibility) Valid() bool {
	switch v {
	case Public, Protected, Private:
		return true
	}
	return false
}

// RowStatus is the lifecycle state of a memo.
type RowStatus string

// Row statuses.
const (
	Normal   RowStatus = "NORMAL"
	Archived RowStatus = "ARCHIVED"
)

// Valid reports whether s is a known row status.
func (s RowStatus) Valid() bool {
	return s == Normal || s == Archived
}

// MemoType selects memos by what their content holds.
type MemoType string

// Memo types.
const (
	// Connected memos link to at least one other memo.
	Connected MemoType = "CONNECTED"
	// Linked memos contain a web URL.
	Linked MemoType = "LINKED"
	// Imaged memos contain an image URL.
	Imaged MemoType = "IMAGED"
)

// Valid reports whether t is a known memo type.
func (t MemoType) Valid() bool {
	switch t {
	case Connected, Linked, Imaged:
		return true
	}
	return false
}

// Memo is a stored memo. Content is its storage string.
type Memo struct {
	ID         int64      `json:"id"`
	Content    string     `json:"content"`
	Checksum   string     `json:"checksum"`
	Visibility Visibility `json:"visibility"`
	RowStatus  RowStatus  `json:"row_status"`
	CreatedTs  time.Time  `json:"created_ts"`
	UpdatedTs  time.Time  `json:"updated_ts"`
}

// Summary returns the summary view of m.
func (m *Memo) Summary() MemoSummary {
	return MemoSummary{
		ID:        m.ID,
		Content:   m.Content,
		RowStatus: m.RowStatus,
		CreatedTs: m.CreatedTs,
		UpdatedTs: m.UpdatedTs,
	}
}

// MemoSummary is the lightweight form used in link lists and candidates.
type MemoSummary struct {
	ID        int64     `json:"id"`
	Content   string    `json:"content"`
	RowStatus RowStatus `json:"row_status"`
	CreatedTs time.Time `json:"created_ts"`
	UpdatedTs time.Time `json:"updated_ts"`
}

// MemoPatch is a partial update. Nil fields are left unchanged.
type MemoPatch struct {
	Content    *string
	Visibility *Visibility
	RowStatus  *RowStatus
	// IfMatch, when set, must equal the stored checksum for the patch to apply.
	IfMatch    string
}

// Empty reports whether p changes nothing.
func (p MemoPatch) Empty() bool {
	return p.Content == nil && p.Visibility == nil && p.RowStatus == nil
}

// Change records which fields a patch actually changed.
type Change struct {
	Content    bool
	Visibility bool
	RowStatus  bool
}

// Any reports whether anything changed.
func (c Change) Any() bool {
	return c.Content || c.Visibility || c.RowStatus
}

// TagCount is a tag label with the number of normal memos using it.
type TagCount struct {
	Label string `json:"label"`
	Count int    `json:"count"`
}
