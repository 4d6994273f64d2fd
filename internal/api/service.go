package api

import (
	"github.com/starford/blogpush/internal/attachment"
	"github.com/starford/blogpush/internal/document"
	"github.com/starford/blogpush/internal/history"
	"github.com/starford/blogpush/internal/publish"
	"github.com/starford/blogpush/internal/render"
)

// Service groups the collaborators the HTTP handlers drive.
type Service struct {
	Publisher   *publish.Publisher
	Documents   *document.Service
	History     *history.DB
	Renderer    *render.Renderer
	Attachments *attachment.Service // nil when object storage is disabled
}

// NewService creates a Service. attachments may be nil.
func NewService(pub *publish.Publisher, docs *document.Service, hist *history.DB, attachments *attachment.Service) *Service {
	return &Service{
		Publisher:   pub,
		Documents:   docs,
		History:     hist,
		Renderer:    render.New(),
		Attachments: attachments,
	}
}
