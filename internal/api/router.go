package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/memos/internal/memoservice"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
func NewRouter(svc *memoservice.Service, authEnabled bool, token string, sseHandler http.Handler) chi.Router {
	h := NewHandler(svc)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	r.Route("/memos", func(r chi.Router) {
		r.Get("/", h.ListMemos)
		r.Post("/", h.CreateMemo)
		r.Get("/{id}", h.GetMemo)
		r.Patch("/{id}", h.PatchMemo)
		r.Delete("/{id}", h.DeleteMemo)
		r.Get("/{id}/links", h.Links)
		r.Get("/{id}/render", h.Render)
	})

	r.Get("/search", h.Search)
	r.Get("/tags", h.Tags)

	// SSE endpoint (protected by same auth middleware).
	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
