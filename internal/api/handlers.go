package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/starford/blogpush/internal/apperr"
	"github.com/starford/blogpush/internal/models"
	"github.com/starford/blogpush/internal/publish"
	"github.com/starford/blogpush/internal/render"
)

const maxBodyBytes = 10 << 20

// Handler holds API route handlers.
type Handler struct {
	svc *Service
}

// NewHandler creates a new Handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// docPath extracts the document path from a wildcard route. Encoded slashes
// (posts%2Fa.md) are accepted.
func docPath(r *http.Request) string {
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

// decodeJSON reads a JSON body into v and validates it when v supports it.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	if vv, ok := v.(interface{ Validate() error }); ok {
		if err := vv.Validate(); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return false
		}
	}
	return true
}

// PublishSelection handles POST /api/publish/selection.
//
//	@Summary		Publish a text selection under a generated name
//	@Tags			publish
//	@Accept			json
//	@Produce		json
//	@Param			body	body		PublishSelectionRequest	true	"Selected text"
//	@Success		200		{object}	PublishResponse
//	@Failure		502		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/publish/selection [post]
func (h *Handler) PublishSelection(w http.ResponseWriter, r *http.Request) {
	var req PublishSelectionRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	res, err := h.svc.Publisher.PublishSelection(r.Context(), req.Text)
	if err != nil {
		writePublishError(w, res, err)
		return
	}
	writeJSON(w, http.StatusOK, newPublishResponse(res))
}

// PublishDocument handles POST /api/publish/document.
//
//	@Summary		Publish a whole vault document
//	@Tags			publish
//	@Accept			json
//	@Produce		json
//	@Param			body	body		DocumentRequest	true	"Document to publish"
//	@Success		200		{object}	PublishResponse
//	@Failure		404		{object}	errResponse
//	@Failure		409		{object}	errResponse
//	@Failure		502		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/publish/document [post]
func (h *Handler) PublishDocument(w http.ResponseWriter, r *http.Request) {
	var req DocumentRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	doc, err := h.svc.Documents.Load(r.Context(), req.Path)
	if err != nil {
		writeDocumentError(w, req.Path, err)
		return
	}
	res, err := h.svc.Publisher.PublishDocument(r.Context(), doc)
	if err != nil {
		writePublishError(w, res, err)
		return
	}
	writeJSON(w, http.StatusOK, newPublishResponse(res))
}

func writePublishError(w http.ResponseWriter, res *publish.Result, err error) {
	switch {
	case errors.Is(err, apperr.ErrAlreadyExists):
		writeError(w, http.StatusConflict, publish.MsgFailed+publish.Reason(err))
	case res != nil:
		// remote write went through, the local refresh did not
		slog.Error("publish: local refresh failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, publish.MsgLocalNotSynced+errors.Unwrap(err).Error())
	default:
		writeError(w, http.StatusBadGateway, publish.MsgFailed+publish.Reason(err))
	}
}

func writeDocumentError(w http.ResponseWriter, path string, err error) {
	if errors.Is(err, apperr.ErrNotFound) {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	slog.Error("load document failed", slog.String("path", path), slog.String("error", err.Error()))
	writeError(w, http.StatusInternalServerError, "internal error")
}

// UpdateMetadata handles POST /api/metadata.
//
//	@Summary		Add or refresh the metadata header of a document
//	@Tags			documents
//	@Accept			json
//	@Produce		json
//	@Param			body	body		DocumentRequest	true	"Document"
//	@Success		200		{object}	MetadataResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/metadata [post]
func (h *Handler) UpdateMetadata(w http.ResponseWriter, r *http.Request) {
	var req DocumentRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	text, err := h.svc.Documents.EnsureMetadata(r.Context(), req.Path)
	if err != nil {
		writeDocumentError(w, req.Path, err)
		return
	}
	writeJSON(w, http.StatusOK, MetadataResponse{Path: req.Path, Content: text})
}

// ListPublications handles GET /api/publications.
//
//	@Summary		List recent publications
//	@Tags			history
//	@Produce		json
//	@Param			limit	query		int	false	"Max entries"
//	@Success		200		{object}	PublicationListResponse
//	@Security		BearerAuth
//	@Router			/publications [get]
func (h *Handler) ListPublications(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	items, err := h.svc.History.ListPublications(r.Context(), limit)
	if err != nil {
		slog.Error("list publications failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if items == nil {
		items = []models.Publication{}
	}
	writeJSON(w, http.StatusOK, PublicationListResponse{Publications: items})
}

// ListDocuments handles GET /api/documents.
//
//	@Summary		List vault documents and whether they changed since publishing
//	@Tags			history
//	@Produce		json
//	@Param			dirty	query		bool	false	"Only documents with unpublished changes"
//	@Success		200		{object}	DocumentListResponse
//	@Security		BearerAuth
//	@Router			/documents [get]
func (h *Handler) ListDocuments(w http.ResponseWriter, r *http.Request) {
	states, err := h.svc.History.Status(r.Context())
	if err != nil {
		slog.Error("document status failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	onlyDirty, _ := strconv.ParseBool(r.URL.Query().Get("dirty"))
	out := make([]models.DocumentState, 0, len(states))
	for _, s := range states {
		if onlyDirty && !s.Dirty {
			continue
		}
		out = append(out, s)
	}
	writeJSON(w, http.StatusOK, DocumentListResponse{Documents: out})
}

// Preview handles GET /api/preview/*. It renders the post a publish would
// produce, without contacting the remote store.
func (h *Handler) Preview(w http.ResponseWriter, r *http.Request) {
	path := docPath(r)
	if path == "" {
		writeError(w, http.StatusBadRequest, "path is required")
		return
	}
	doc, err := h.svc.Documents.Load(r.Context(), path)
	if err != nil {
		writeDocumentError(w, path, err)
		return
	}
	page, err := h.svc.Renderer.Render(h.svc.Publisher.Preview(doc).Content)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := render.WriteDocument(w, page); err != nil {
		slog.Error("preview write failed", slog.String("path", path), slog.String("error", err.Error()))
	}
}
