package api

import (
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/norandom/blogd/internal/apperr"
	"github.com/norandom/blogd/internal/postservice"
	"github.com/norandom/blogd/internal/storage"
)

// AttachmentHandler serves the files referenced by posts. Lookups go
// through the service so only attachments recorded in the snapshot are
// reachable, and through the provider so nothing outside the content root
// is served.
type AttachmentHandler struct {
	svc      *postservice.Service
	provider storage.Provider
}

// NewAttachmentHandler creates a handler backed by the content provider.
func NewAttachmentHandler(svc *postservice.Service, provider storage.Provider) *AttachmentHandler {
	return &AttachmentHandler{svc: svc, provider: provider}
}

// attachmentName extracts the file name from the URL (everything after the
// slug segment). Supports encoded slashes from OpenAPI clients.
func attachmentName(r *http.Request) string {
	raw := strings.TrimPrefix(chi.URLParam(r, "*"), "/")
	if raw == "" {
		return ""
	}
	decoded, err := url.PathUnescape(raw)
	if err != nil {
		return raw
	}
	return decoded
}

// Serve handles GET /api/v1/attachments/{slug}/*.
//
//	@Summary		Download an attachment of a post
//	@Tags			posts
//	@Param			slug	path	string	true	"Post slug"
//	@Param			name	path	string	true	"Attachment file name"
//	@Success		200		{file}	binary
//	@Failure		404		{object}	errResponse
//	@Router			/attachments/{slug}/{name} [get]
func (h *AttachmentHandler) Serve(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")
	name := attachmentName(r)
	if name == "" {
		writeError(w, http.StatusBadRequest, "attachment name is required")
		return
	}

	ref, err := h.svc.Attachment(r.Context(), slug, name)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			writeError(w, http.StatusNotFound, "not found")
		} else {
			slog.Error("attachment lookup failed",
				slog.String("slug", slug),
				slog.String("name", name),
				slog.String("error", err.Error()))
			writeError(w, http.StatusInternalServerError, "internal error")
		}
		return
	}

	abs, err := h.provider.Resolve(ref)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid attachment path")
		return
	}
	if _, statErr := os.Stat(abs); os.IsNotExist(statErr) {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	http.ServeFile(w, r, abs)
}
