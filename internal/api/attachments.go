package api

import (
	"errors"
	"io"
	"log/slog"
	"mime"
	"net/http"

	"github.com/starford/blogpush/internal/apperr"
)

const maxUploadBytes = 50 << 20 // 50 MB

// UploadAttachment handles POST /api/attachments.
//
// A multipart/form-data body uploads its "file" field. A JSON body
// ({"url": ..., "filename": ...}) fetches a data URI or http(s) URL first.
//
//	@Summary		Upload an attachment to object storage
//	@Tags			attachments
//	@Accept			mpfd,json
//	@Produce		json
//	@Success		201	{object}	attachment.Asset
//	@Failure		400	{object}	errResponse
//	@Failure		503	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/attachments [post]
func (h *Handler) UploadAttachment(w http.ResponseWriter, r *http.Request) {
	if h.svc.Attachments == nil {
		writeError(w, http.StatusServiceUnavailable, "object storage is not configured")
		return
	}

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "application/json" {
		var req FetchAttachmentRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		asset, err := h.svc.Attachments.Fetch(r.Context(), req.URL, req.Filename)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeJSON(w, http.StatusCreated, asset)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, "file too large or invalid multipart")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "missing 'file' field in multipart form")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read file")
		return
	}
	asset, err := h.svc.Attachments.Upload(r.Context(), header.Filename, data)
	if err != nil {
		if errors.Is(err, apperr.ErrEmptyContent) {
			writeError(w, http.StatusBadRequest, "file is empty")
			return
		}
		slog.Warn("attachment upload failed", slog.String("filename", header.Filename), slog.String("error", err.Error()))
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, asset)
}

// RewriteAttachments handles POST /api/attachments/rewrite. Every local image
// referenced by the document is uploaded and its reference replaced.
//
//	@Summary		Upload a document's local images and rewrite their references
//	@Tags			attachments
//	@Accept			json
//	@Produce		json
//	@Param			body	body		DocumentRequest	true	"Document"
//	@Success		200		{object}	attachment.Rewrite
//	@Failure		404		{object}	errResponse
//	@Failure		503		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/attachments/rewrite [post]
func (h *Handler) RewriteAttachments(w http.ResponseWriter, r *http.Request) {
	if h.svc.Attachments == nil {
		writeError(w, http.StatusServiceUnavailable, "object storage is not configured")
		return
	}
	var req DocumentRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	rw, err := h.svc.Attachments.RewriteDocument(r.Context(), req.Path)
	if err != nil {
		writeDocumentError(w, req.Path, err)
		return
	}
	writeJSON(w, http.StatusOK, rw)
}
