package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
func NewRouter(svc *Service, authEnabled bool, token string, sseHandler http.Handler) chi.Router {
	h := NewHandler(svc)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	r.Post("/publish/selection", h.PublishSelection)
	r.Post("/publish/document", h.PublishDocument)
	r.Post("/metadata", h.UpdateMetadata)

	r.Post("/attachments", h.UploadAttachment)
	r.Post("/attachments/rewrite", h.RewriteAttachments)

	r.Get("/publications", h.ListPublications)
	r.Get("/documents", h.ListDocuments)
	r.Get("/preview/*", h.Preview)

	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}
	return r
}
