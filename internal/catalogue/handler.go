// AngelaMos | 2026
// handler.go

package catalogue

import (
	"errors"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"path/filepath"

	"github.com/go-chi/chi/v5"

	"github.com/carterperez-dev/bibliotech/internal/core"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes mounts the public catalogue. Writes are mounted by the
// lifecycle handler on the same /documents prefix.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/documents", h.List)
	r.Get("/documents/{documentID}", h.Get)
	r.Get("/documents/{documentID}/cover", h.Cover)
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	params := ListDocumentsParams{
		Page:     core.QueryInt(r, "page", 1),
		PageSize: core.QueryInt(r, "page_size", 20),
		Query:    r.URL.Query().Get("q"),
	}

	docs, total, err := h.service.List(r.Context(), params)
	if err != nil {
		core.InternalServerError(w, err)
		return
	}

	params.Normalize()
	core.Paginated(
		w,
		ToDocumentResponseList(docs),
		params.Page,
		params.PageSize,
		total,
	)
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	doc, err := h.service.Get(r.Context(), chi.URLParam(r, "documentID"))
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			core.NotFound(w, "document")
			return
		}
		core.InternalServerError(w, err)
		return
	}

	core.OK(w, ToDocumentResponse(doc))
}

func (h *Handler) Cover(w http.ResponseWriter, r *http.Request) {
	rc, name, err := h.service.OpenCover(
		r.Context(),
		chi.URLParam(r, "documentID"),
	)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			core.NotFound(w, "cover")
			return
		}
		core.InternalServerError(w, err)
		return
	}
	defer rc.Close() //nolint:errcheck

	contentType := mime.TypeByExtension(filepath.Ext(name))
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Cache-Control", "public, max-age=3600")
	w.WriteHeader(http.StatusOK)

	if _, err := io.Copy(w, rc); err != nil {
		slog.Warn("cover stream interrupted", "error", err, "cover", name)
	}
}
