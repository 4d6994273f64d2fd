package attachment

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/starford/blogpush/internal/apperr"
	"github.com/starford/blogpush/internal/storage"
)

// Asset is an uploaded attachment.
type Asset struct {
	Name     string `json:"name"`
	Key      string `json:"key"`
	URL      string `json:"url"`
	Markdown string `json:"markdown"`
}

// Rewrite is the outcome of RewriteDocument.
type Rewrite struct {
	Path    string   `json:"path"`
	Text    string   `json:"-"`
	Assets  []Asset  `json:"assets"`
	Skipped []string `json:"skipped,omitempty"`
}

// Config holds the attachment settings.
type Config struct {
	// KeyPrefix is the first key segment, "blog" by default.
	KeyPrefix string
	MaxSize   int64
}

// Service validates attachments and uploads them under dated keys.
type Service struct {
	up     Uploader
	vault  storage.Provider
	cfg    Config
	now    func() time.Time
	logger *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithClock overrides the time source used for key dates.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// NewService creates a Service. vault may be nil when documents are never
// rewritten.
func NewService(up Uploader, vault storage.Provider, cfg Config, opts ...Option) *Service {
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = "blog"
	}
	if cfg.MaxSize <= 0 {
		cfg.MaxSize = DefaultMaxSize
	}
	s := &Service{up: up, vault: vault, cfg: cfg, now: time.Now, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Key returns the object key for name: <prefix>/<yyyyMM>/<name>.
func (s *Service) Key(name string) string {
	return path.Join(strings.Trim(s.cfg.KeyPrefix, "/"), s.now().Format("200601"), name)
}

// Upload validates data and stores it under the key for name.
func (s *Service) Upload(ctx context.Context, name string, data []byte) (Asset, error) {
	if len(data) == 0 {
		return Asset{}, fmt.Errorf("attachment: %s: %w", name, apperr.ErrEmptyContent)
	}
	if int64(len(data)) > s.cfg.MaxSize {
		return Asset{}, fmt.Errorf("attachment: file too large: %d bytes (max %d)", len(data), s.cfg.MaxSize)
	}
	name = sanitizeFilename(name)
	ext := strings.ToLower(path.Ext(name))
	if !allowedExtensions[ext] {
		return Asset{}, fmt.Errorf("attachment: unsupported file extension: %q (allowed: png, jpg, jpeg, gif, webp, svg, pdf)", ext)
	}
	if err := validateMagicBytes(data, ext); err != nil {
		return Asset{}, fmt.Errorf("attachment: %w", err)
	}

	key := s.Key(name)
	u, err := s.up.Put(ctx, key, bytes.NewReader(data), int64(len(data)), extToMime[ext])
	if err != nil {
		return Asset{}, err
	}
	s.logger.Info("attachment: uploaded", slog.String("key", key), slog.Int("size", len(data)))
	return Asset{Name: name, Key: key, URL: u, Markdown: fmt.Sprintf("![%s](%s)", name, u)}, nil
}

// Fetch uploads the attachment found at rawURL, a base64 data URI or an
// http(s) URL. name overrides the derived file name when non-empty.
func (s *Service) Fetch(ctx context.Context, rawURL, name string) (Asset, error) {
	var (
		data []byte
		ext  string
		err  error
	)
	if strings.HasPrefix(rawURL, "data:") {
		data, ext, err = decodeDataURI(rawURL)
	} else {
		data, ext, err = fetchHTTP(ctx, rawURL, s.cfg.MaxSize)
	}
	if err != nil {
		return Asset{}, fmt.Errorf("attachment: %w", err)
	}
	if name == "" {
		name = filenameFromURL(rawURL, ext)
	}
	return s.Upload(ctx, name, data)
}

var (
	// ![alt](target) with a target that has no spaces.
	linkRe = regexp.MustCompile(`!\[([^\]]*)\]\(([^)\s]+)\)`)
	// ![[target]] or ![[target|size]]
	embedRe = regexp.MustCompile(`!\[\[([^\]|]+)(?:\|[^\]]*)?\]\]`)
)

// RewriteDocument uploads every local attachment referenced by the document
// at docPath and replaces each reference with ![name](url). Remote http(s)
// references are left alone. The document is only written when something
// changed.
func (s *Service) RewriteDocument(ctx context.Context, docPath string) (*Rewrite, error) {
	if s.vault == nil {
		return nil, fmt.Errorf("attachment: no vault configured")
	}
	raw, err := s.vault.Read(docPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("attachment: %s: %w", docPath, apperr.ErrNotFound)
		}
		return nil, err
	}
	text := string(raw)
	out := &Rewrite{Path: docPath}
	uploaded := map[string]Asset{}

	resolve := func(target string) (Asset, bool) {
		if a, ok := uploaded[target]; ok {
			return a, true
		}
		a, err := s.uploadReference(ctx, docPath, target)
		if err != nil {
			s.logger.Warn("attachment: reference skipped",
				slog.String("path", docPath),
				slog.String("target", target),
				slog.String("error", err.Error()))
			out.Skipped = append(out.Skipped, target)
			return Asset{}, false
		}
		uploaded[target] = a
		out.Assets = append(out.Assets, a)
		return a, true
	}

	text = linkRe.ReplaceAllStringFunc(text, func(m string) string {
		sub := linkRe.FindStringSubmatch(m)
		alt, target := sub[1], sub[2]
		if isRemote(target) {
			return m
		}
		a, ok := resolve(target)
		if !ok {
			return m
		}
		if alt == "" {
			alt = a.Name
		}
		return fmt.Sprintf("![%s](%s)", alt, a.URL)
	})
	text = embedRe.ReplaceAllStringFunc(text, func(m string) string {
		target := strings.TrimSpace(embedRe.FindStringSubmatch(m)[1])
		a, ok := resolve(target)
		if !ok {
			return m
		}
		return a.Markdown
	})

	out.Text = text
	if text != string(raw) {
		if err := s.vault.Write(docPath, []byte(text)); err != nil {
			return nil, fmt.Errorf("attachment: write %s: %w", docPath, err)
		}
	}
	return out, nil
}

func isRemote(target string) bool {
	lower := strings.ToLower(target)
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}

func (s *Service) uploadReference(ctx context.Context, docPath, target string) (Asset, error) {
	if strings.HasPrefix(target, "data:") {
		return s.Fetch(ctx, target, "")
	}
	name := target
	if unescaped, err := url.PathUnescape(target); err == nil {
		name = unescaped
	}
	for _, candidate := range candidates(docPath, name) {
		data, err := s.vault.Read(candidate)
		if err != nil {
			continue
		}
		return s.Upload(ctx, path.Base(candidate), data)
	}
	return Asset{}, fmt.Errorf("attachment: %s: %w", target, apperr.ErrNotFound)
}

// candidates lists the vault paths a reference may point at: relative to the
// document, then from the vault root, then in the attachments folder.
func candidates(docPath, name string) []string {
	name = filepath.ToSlash(name)
	dir := path.Dir(filepath.ToSlash(docPath))
	out := []string{path.Join(dir, name)}
	if root := strings.TrimPrefix(path.Clean("/"+name), "/"); root != out[0] {
		out = append(out, root)
	}
	return append(out, path.Join("attachments", path.Base(name)))
}
