package api

import (
	"github.com/starford/memos/internal/linkgraph"
	"github.com/starford/memos/internal/memoservice"
	"github.com/starford/memos/internal/models"
	"github.com/starford/memos/internal/store"
)

// CreateMemoRequest is the request body for creating a memo.
type CreateMemoRequest struct {
	Content    string            `json:"content" example:"Call @[Ann](12) about #[q3 plan]" validate:"required"`
	Visibility models.Visibility `json:"visibility,omitempty" example:"PRIVATE" enums:"PUBLIC,PROTECTED,PRIVATE"`
}

// PatchMemoRequest is the request body for updating a memo. Absent fields
// are left unchanged.
type PatchMemoRequest struct {
	Content    *string            `json:"content,omitempty" example:"**done**"`
	Visibility *models.Visibility `json:"visibility,omitempty" example:"PUBLIC" enums:"PUBLIC,PROTECTED,PRIVATE"`
	RowStatus  *models.RowStatus  `json:"row_status,omitempty" example:"ARCHIVED" enums:"NORMAL,ARCHIVED"`
}

func (r PatchMemoRequest) patch() models.MemoPatch {
	return models.MemoPatch{
		Content:    r.Content,
		Visibility: r.Visibility,
		RowStatus:  r.RowStatus,
	}
}

// Memo is the stored memo (aliased from the domain layer).
type Memo = models.Memo

// MemoView is a memo with its rendered forms and links (aliased from the domain layer).
type MemoView = memoservice.MemoView

// MemoItem is a memo in a list response (aliased from the domain layer).
type MemoItem = memoservice.MemoItem

// LinkGraph holds the forward and backward links of a memo.
type LinkGraph = linkgraph.Graph

// MemoListResponse wraps paginated memo listings.
type MemoListResponse struct {
	Memos []MemoItem `json:"memos" validate:"required"`
	Total int        `json:"total" example:"42" validate:"required"`
}

// RenderResponse is the rendered form of a memo.
type RenderResponse struct {
	HTML    string `json:"html" example:"<p><strong>hi</strong></p>" validate:"required"`
	Plain   string `json:"plain" example:"hi" validate:"required"`
	Preview string `json:"preview" example:"hi" validate:"required"`
}

// SearchResponse wraps search results.
type SearchResponse struct {
	Results []store.SearchResult `json:"results" validate:"required"`
}

// TagListResponse wraps the tags in use.
type TagListResponse struct {
	Tags []models.TagCount `json:"tags" validate:"required"`
}
