package api

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/starford/tagshelf/internal/query"
)

// Handler holds API route handlers.
type Handler struct {
	svc *query.Service
}

// NewHandler creates a new Handler.
func NewHandler(svc *query.Service) *Handler {
	return &Handler{svc: svc}
}

// pageParams reads the optional page and limit query parameters.
// Missing values are zero, which the service replaces with its defaults.
func pageParams(q url.Values) (page, limit int, ok bool) {
	var err error
	if v := q.Get("page"); v != "" {
		if page, err = strconv.Atoi(v); err != nil {
			return 0, 0, false
		}
	}
	if v := q.Get("limit"); v != "" {
		if limit, err = strconv.Atoi(v); err != nil {
			return 0, 0, false
		}
	}
	return page, limit, true
}

// GetFolder handles GET /api/folder.
//
// Without a path parameter it returns the whole folder structure. With one
// it returns a page of that folder's bundle; repeated tag parameters keep
// only notes carrying one of those leaf tags.
func (h *Handler) GetFolder(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if !q.Has("path") {
		root, err := h.svc.FolderStructure(r.Context())
		if err != nil {
			writeError(w, r, "folder structure", err)
			return
		}
		writeJSON(w, http.StatusOK, root)
		return
	}

	page, limit, ok := pageParams(q)
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorBody("page and limit must be integers"))
		return
	}
	res, err := h.svc.FilesForFolder(r.Context(), q.Get("path"), page, limit, q["tag"])
	if err != nil {
		writeError(w, r, "folder files", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// FolderCounts handles GET /api/folders/counts.
func (h *Handler) FolderCounts(w http.ResponseWriter, r *http.Request) {
	counts, err := h.svc.VerifyFolderCounts(r.Context())
	if err != nil {
		writeError(w, r, "folder counts", err)
		return
	}
	mismatches := 0
	for _, c := range counts {
		if !c.Match {
			mismatches++
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"folders":    counts,
		"mismatches": mismatches,
	})
}

// ListFiles handles GET /api/files.
func (h *Handler) ListFiles(w http.ResponseWriter, r *http.Request) {
	page, limit, ok := pageParams(r.URL.Query())
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorBody("page and limit must be integers"))
		return
	}
	res, err := h.svc.ListFiles(r.Context(), page, limit)
	if err != nil {
		writeError(w, r, "list files", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// GetFile handles GET /api/files/{filename}.
//
// The note checksum is sent as a strong ETag; a matching If-None-Match
// gets 304 with no body.
func (h *Handler) GetFile(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "filename")
	if decoded, err := url.PathUnescape(name); err == nil {
		name = decoded
	}

	note, err := h.svc.FileContent(r.Context(), name)
	if err != nil {
		writeError(w, r, "get file", err)
		return
	}

	if note.Checksum != "" {
		etag := `"` + note.Checksum + `"`
		w.Header().Set("ETag", etag)
		if etagMatch(r.Header.Get("If-None-Match"), etag) {
			w.WriteHeader(http.StatusNotModified)
			return
		}
	}
	writeJSON(w, http.StatusOK, note)
}

func etagMatch(header, etag string) bool {
	for _, candidate := range strings.Split(header, ",") {
		candidate = strings.TrimSpace(candidate)
		if candidate == "*" || strings.TrimPrefix(candidate, "W/") == etag {
			return true
		}
	}
	return false
}
