package api

import (
	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/blogpush/internal/models"
	"github.com/starford/blogpush/internal/publish"
)

// PublishSelectionRequest is the body of POST /api/publish/selection.
type PublishSelectionRequest struct {
	Text string `json:"text" example:"hello"`
}

// DocumentRequest names a vault document.
type DocumentRequest struct {
	Path string `json:"path" example:"Ideas.md" validate:"required"`
}

// Validate validates the request.
func (r *DocumentRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Path, validation.Required),
	)
}

// FetchAttachmentRequest is the JSON body of POST /api/attachments.
type FetchAttachmentRequest struct {
	URL      string `json:"url" example:"https://example.com/image.png" validate:"required"`
	Filename string `json:"filename,omitempty" example:"cover.png"`
}

// Validate validates the request.
func (r *FetchAttachmentRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.URL, validation.Required),
	)
}

// PublishResponse is returned by both publish endpoints.
type PublishResponse struct {
	Skipped  bool   `json:"skipped,omitempty"`
	Message  string `json:"message"`
	Path     string `json:"path,omitempty" example:"data/blog/Ideas.mdx"`
	Filename string `json:"filename,omitempty" example:"Ideas"`
	SHA      string `json:"sha,omitempty"`
	Created  bool   `json:"created"`
}

func newPublishResponse(res *publish.Result) PublishResponse {
	if res.Skipped {
		return PublishResponse{Skipped: true, Message: publish.MsgNoContent}
	}
	return PublishResponse{
		Message:  publish.MsgPublished + res.Path,
		Path:     res.Path,
		Filename: res.Filename,
		SHA:      res.SHA,
		Created:  res.Created,
	}
}

// MetadataResponse is returned by POST /api/metadata.
type MetadataResponse struct {
	Path    string `json:"path"`
	Content string `json:"content"`
}

// PublicationListResponse wraps the publish history.
type PublicationListResponse struct {
	Publications []models.Publication `json:"publications"`
}

// DocumentListResponse wraps vault document states.
type DocumentListResponse struct {
	Documents []models.DocumentState `json:"documents"`
}
