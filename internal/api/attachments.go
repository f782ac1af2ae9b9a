package api

import (
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/starford/tagshelf/internal/apperr"
	"github.com/starford/tagshelf/internal/attachment"
)

// AttachmentHandler serves files from per-note attachment directories.
type AttachmentHandler struct {
	resolver *attachment.Resolver
}

// NewAttachmentHandler creates a handler over the resolver's root.
func NewAttachmentHandler(resolver *attachment.Resolver) *AttachmentHandler {
	return &AttachmentHandler{resolver: resolver}
}

// MountPath is where the handler should be mounted: the resolver's public
// prefix when it is a local path, otherwise /attachments.
func (h *AttachmentHandler) MountPath() string {
	p := h.resolver.Prefix()
	if strings.HasPrefix(p, "/") && p != "/" {
		return p
	}
	return attachment.DefaultPrefix
}

// Routes returns the attachment routes with caching headers applied.
func (h *AttachmentHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(CacheControl(AttachmentCacheControl))
	r.Get("/{note}/*", h.ServeFile)
	return r
}

// ServeFile handles GET <prefix>/{note}/*.
func (h *AttachmentHandler) ServeFile(w http.ResponseWriter, r *http.Request) {
	base := unescape(chi.URLParam(r, "note"))
	rel := unescape(chi.URLParam(r, "*"))
	if base == "" || rel == "" {
		http.NotFound(w, r)
		return
	}

	data, contentType, err := h.resolver.ReadBaseAttachment(base, rel)
	if err != nil {
		// Traversal attempts wrap ErrNotFound and get the same 404.
		if errors.Is(err, apperr.ErrNotFound) {
			http.NotFound(w, r)
			return
		}
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func unescape(s string) string {
	if decoded, err := url.PathUnescape(s); err == nil {
		return decoded
	}
	return s
}
