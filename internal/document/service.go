// Package document loads vault documents and keeps their metadata header in
// step with what was published.
package document

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"strings"
	"time"

	"github.com/starford/blogpush/internal/apperr"
	"github.com/starford/blogpush/internal/metadata"
	"github.com/starford/blogpush/internal/models"
	"github.com/starford/blogpush/internal/storage"
)

// Service reads and rewrites documents in the vault.
type Service struct {
	store      storage.Provider
	defaultTag string
	now        func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithClock overrides the time source used for timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService creates a document service over store. defaultTag is used when
// a header is generated for an untitled document.
func NewService(store storage.Provider, defaultTag string, opts ...Option) *Service {
	s := &Service{store: store, defaultTag: defaultTag, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Title derives a document title from its file name.
func Title(p string) string {
	base := path.Base(strings.ReplaceAll(p, "\\", "/"))
	if base == "." || base == "/" {
		return ""
	}
	return strings.TrimSuffix(base, path.Ext(base))
}

// Load reads the document at path.
func (s *Service) Load(_ context.Context, p string) (models.Document, error) {
	data, err := s.read(p)
	if err != nil {
		return models.Document{}, err
	}
	return models.Document{Path: p, Title: Title(p), Text: string(data)}, nil
}

// Refresh rewrites the local document from the content that was just
// published, stamping a new lastmod. The body is kept byte for byte.
func (s *Service) Refresh(_ context.Context, p, published string) (string, error) {
	text := published
	if block := metadata.Extract(published); block != "" {
		text = metadata.UpdateLastmod(block, s.now()) + published[len(block):]
	}
	if err := s.store.Write(p, []byte(text)); err != nil {
		return "", fmt.Errorf("document: refresh %s: %w", p, err)
	}
	return text, nil
}

// EnsureMetadata adds a header to the document at path, or refreshes the
// lastmod of the one it already has. No network call is made.
func (s *Service) EnsureMetadata(_ context.Context, p string) (string, error) {
	data, err := s.read(p)
	if err != nil {
		return "", err
	}
	now := s.now()
	block, body := metadata.Split(string(data))
	if block != "" {
		block = metadata.UpdateLastmod(block, now)
	} else {
		block = metadata.Generate(Title(p), now, s.defaultTag)
	}
	text := metadata.Assemble(block, body)
	if err := s.store.Write(p, []byte(text)); err != nil {
		return "", fmt.Errorf("document: write %s: %w", p, err)
	}
	return text, nil
}

func (s *Service) read(p string) ([]byte, error) {
	if p == "" {
		return nil, fmt.Errorf("document: path is required")
	}
	data, err := s.store.Read(p)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("document: %s: %w", p, apperr.ErrNotFound)
		}
		return nil, err
	}
	return data, nil
}
