package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/tagshelf/internal/query"
)

// NewRouter creates a chi router with all API routes, to be mounted at /api.
// sseHandler, if non-nil, is mounted at GET /events.
func NewRouter(svc *query.Service, sseHandler http.Handler) chi.Router {
	h := NewHandler(svc)

	r := chi.NewRouter()

	// Folders.
	r.Get("/folder", h.GetFolder)
	r.Get("/folders/counts", h.FolderCounts)

	// Files.
	r.Get("/files", h.ListFiles)
	r.Get("/files/{filename}", h.GetFile)

	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
