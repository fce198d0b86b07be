package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/starford/memos/internal/apperr"
	"github.com/starford/memos/internal/memoservice"
	"github.com/starford/memos/internal/models"
	"github.com/starford/memos/internal/pattern"
	"github.com/starford/memos/internal/store"
)

const maxBodyBytes = 10 << 20

// Handler holds API route handlers.
type Handler struct {
	svc *memoservice.Service
}

// NewHandler creates a new Handler.
func NewHandler(svc *memoservice.Service) *Handler {
	return &Handler{svc: svc}
}

// memoID parses the {id} URL parameter. It writes a 400 and returns false
// when the parameter is not a memo id.
func memoID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, ok := pattern.ParseMemoID(chi.URLParam(r, "id"))
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid memo id"))
	}
	return id, ok
}

// writeError maps service errors to status codes. Unexpected errors are
// logged and reported as 500.
func writeError(w http.ResponseWriter, r *http.Request, op string, err error, attrs ...slog.Attr) {
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorBody("not found"))
	case errors.Is(err, apperr.ErrConflict):
		writeJSON(w, http.StatusConflict, errorBody("checksum mismatch"))
	case errors.Is(err, apperr.ErrEmptyContent):
		writeJSON(w, http.StatusBadRequest, errorBody("content is empty"))
	case errors.Is(err, apperr.ErrInvalidInput):
		writeJSON(w, http.StatusBadRequest, errorBody("invalid input"))
	case errors.Is(err, apperr.ErrStoreUnavailable):
		slog.LogAttrs(r.Context(), slog.LevelError, op+" failed", append(attrs, slog.String("error", err.Error()))...)
		writeJSON(w, http.StatusServiceUnavailable, errorBody("store unavailable"))
	default:
		slog.LogAttrs(r.Context(), slog.LevelError, op+" failed", append(attrs, slog.String("error", err.Error()))...)
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
	}
}

// ListMemos handles GET /api/memos.
//
//	@Summary		List memos newest first
//	@Tags			memos
//	@Produce		json
//	@Param			status	query		string	false	"Row status"	Enums(NORMAL, ARCHIVED)
//	@Param			tag		query		string	false	"Filter by tag"
//	@Param			type	query		string	false	"Memo type"	Enums(CONNECTED, LINKED, IMAGED)
//	@Param			limit	query		int		false	"Page size"
//	@Param			offset	query		int		false	"Page offset"
//	@Success		200		{object}	MemoListResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/memos [get]
func (h *Handler) ListMemos(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	status := models.RowStatus(strings.ToUpper(q.Get("status")))
	if status != "" && !status.Valid() {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid status"))
		return
	}
	typ := models.MemoType(strings.ToUpper(q.Get("type")))
	if typ != "" && !typ.Valid() {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid type"))
		return
	}
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))

	items, total, err := h.svc.List(r.Context(), store.ListOptions{
		Status: status,
		Tag:    q.Get("tag"),
		Type:   typ,
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		writeError(w, r, "list memos", err)
		return
	}
	writeJSON(w, http.StatusOK, MemoListResponse{Memos: items, Total: total})
}

// GetMemo handles GET /api/memos/{id}.
//
//	@Summary		Get a memo with its HTML, plain text and links
//	@Tags			memos
//	@Produce		json
//	@Param			id	path		int	true	"Memo id"
//	@Success		200	{object}	MemoView
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/memos/{id} [get]
func (h *Handler) GetMemo(w http.ResponseWriter, r *http.Request) {
	id, ok := memoID(w, r)
	if !ok {
		return
	}
	view, err := h.svc.View(r.Context(), id)
	if err != nil {
		writeError(w, r, "get memo", err, slog.Int64("id", id))
		return
	}
	w.Header().Set("ETag", strconv.Quote(view.Checksum))
	writeJSON(w, http.StatusOK, view)
}

// CreateMemo handles POST /api/memos.
//
//	@Summary		Create a memo
//	@Tags			memos
//	@Accept			json
//	@Produce		json
//	@Param			body	body		CreateMemoRequest	true	"Memo to create"
//	@Success		201		{object}	Memo
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/memos [post]
func (h *Handler) CreateMemo(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	var req CreateMemoRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	memo, err := h.svc.Create(r.Context(), req.Content, req.Visibility)
	if err != nil {
		writeError(w, r, "create memo", err)
		return
	}
	writeJSON(w, http.StatusCreated, memo)
}

// PatchMemo handles PATCH /api/memos/{id}.
//
//	@Summary		Update a memo with optimistic concurrency
//	@Tags			memos
//	@Accept			json
//	@Produce		json
//	@Param			id			path		int					true	"Memo id"
//	@Param			If-Match	header		string				false	"SHA-256 checksum for optimistic concurrency"
//	@Param			body		body		PatchMemoRequest	true	"Fields to change"
//	@Success		200			{object}	Memo
//	@Failure		400			{object}	errResponse
//	@Failure		404			{object}	errResponse
//	@Failure		409			{object}	errResponse
//	@Security		BearerAuth
//	@Router			/memos/{id} [patch]
func (h *Handler) PatchMemo(w http.ResponseWriter, r *http.Request) {
	id, ok := memoID(w, r)
	if !ok {
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	var req PatchMemoRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}

	// Strip surrounding quotes if present (standard ETag format).
	ifMatch := strings.Trim(r.Header.Get("If-Match"), `"`)

	memo, err := h.svc.Patch(r.Context(), id, req.patch(), ifMatch)
	if err != nil {
		writeError(w, r, "patch memo", err, slog.Int64("id", id))
		return
	}
	writeJSON(w, http.StatusOK, memo)
}

// DeleteMemo handles DELETE /api/memos/{id}.
//
//	@Summary		Delete a memo
//	@Tags			memos
//	@Param			id	path	int	true	"Memo id"
//	@Success		204	"Memo deleted"
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/memos/{id} [delete]
func (h *Handler) DeleteMemo(w http.ResponseWriter, r *http.Request) {
	id, ok := memoID(w, r)
	if !ok {
		return
	}
	if err := h.svc.Delete(r.Context(), id); err != nil {
		writeError(w, r, "delete memo", err, slog.Int64("id", id))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Links handles GET /api/memos/{id}/links.
//
//	@Summary		Forward and backward links of a memo
//	@Tags			memos
//	@Produce		json
//	@Param			id	path		int	true	"Memo id"
//	@Success		200	{object}	LinkGraph
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/memos/{id}/links [get]
func (h *Handler) Links(w http.ResponseWriter, r *http.Request) {
	id, ok := memoID(w, r)
	if !ok {
		return
	}
	g, err := h.svc.LinksByID(r.Context(), id)
	if err != nil {
		writeError(w, r, "resolve links", err, slog.Int64("id", id))
		return
	}
	writeJSON(w, http.StatusOK, g)
}

// Render handles GET /api/memos/{id}/render.
//
//	@Summary		Rendered HTML of a memo
//	@Tags			memos
//	@Produce		json
//	@Param			id	path		int	true	"Memo id"
//	@Success		200	{object}	RenderResponse
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/memos/{id}/render [get]
func (h *Handler) Render(w http.ResponseWriter, r *http.Request) {
	id, ok := memoID(w, r)
	if !ok {
		return
	}
	memo, err := h.svc.Get(r.Context(), id)
	if err != nil {
		writeError(w, r, "render memo", err, slog.Int64("id", id))
		return
	}
	html := h.svc.Render(memo.Content)
	writeJSON(w, http.StatusOK, RenderResponse{
		HTML:    html,
		Plain:   h.svc.PlainText(memo.Content),
		Preview: h.svc.Preview(memo.Content),
	})
}

// Search handles GET /api/search.
//
//	@Summary		Full-text search across memos
//	@Tags			search
//	@Produce		json
//	@Param			q		query		string	true	"Search query"
//	@Param			limit	query		int		false	"Max results"
//	@Success		200		{object}	SearchResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/search [get]
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if strings.TrimSpace(q) == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("query parameter 'q' is required"))
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	results, err := h.svc.Search(r.Context(), q, limit)
	if err != nil {
		writeError(w, r, "search", err, slog.String("query", q))
		return
	}
	if results == nil {
		results = []store.SearchResult{}
	}
	writeJSON(w, http.StatusOK, SearchResponse{Results: results})
}

// Tags handles GET /api/tags.
//
//	@Summary		Tags in use with memo counts
//	@Tags			tags
//	@Produce		json
//	@Success		200	{object}	TagListResponse
//	@Security		BearerAuth
//	@Router			/tags [get]
func (h *Handler) Tags(w http.ResponseWriter, r *http.Request) {
	tags, err := h.svc.Tags(r.Context())
	if err != nil {
		writeError(w, r, "list tags", err)
		return
	}
	if tags == nil {
		tags = []models.TagCount{}
	}
	writeJSON(w, http.StatusOK, TagListResponse{Tags: tags})
}
