// Package publish turns a document or a selection into a post and pushes it
// to the remote store.
package publish

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/starford/blogpush/internal/apperr"
	"github.com/starford/blogpush/internal/checksum"
	"github.com/starford/blogpush/internal/metadata"
	"github.com/starford/blogpush/internal/models"
	"github.com/starford/blogpush/internal/normalize"
	"github.com/starford/blogpush/internal/notify"
	"github.com/starford/blogpush/internal/remote"
)

// Policy decides what happens when the target path already exists remotely.
type Policy string

const (
	// PolicyUpdate overwrites the existing post using its SHA.
	PolicyUpdate Policy = "update"
	// PolicyReject refuses to publish over an existing post.
	PolicyReject Policy = "reject"
)

// Notice texts.
const (
	MsgPublished      = "Content published: "
	MsgFailed         = "Failed to publish content: "
	MsgNoContent      = "No content selected"
	MsgLocalNotSynced = "Content published but the local document was not updated: "
)

// Config holds the publishing settings.
type Config struct {
	ContentDir string
	Extension  string
	DefaultTag string
	OnExisting Policy
}

// LocalSync rewrites a local document after its content was published.
type LocalSync interface {
	Refresh(ctx context.Context, path, published string) (string, error)
}

// Recorder stores a journal entry for each successful publish.
type Recorder interface {
	RecordPublication(ctx context.Context, p models.Publication) (int64, error)
}

// Draft is the post that would be published, before any remote call.
type Draft struct {
	Filename string `json:"filename"`
	Path     string `json:"path"`
	Content  string `json:"content"`
}

// Result describes a finished publish.
type Result struct {
	Draft
	SHA     string `json:"sha,omitempty"`
	Created bool   `json:"created"`
	// Skipped is set when there was nothing to publish.
	Skipped bool `json:"skipped,omitempty"`
	// Local is the refreshed text of the originating document.
	Local string `json:"-"`
}

// Publisher drives the read-then-write protocol for one post at a time.
type Publisher struct {
	store    remote.Store
	local    LocalSync
	notifier notify.Notifier
	cfg      Config
	recorder Recorder
	logger   *slog.Logger
	now      func() time.Time
}

// Option configures a Publisher.
type Option func(*Publisher)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(p *Publisher) { p.now = now }
}

// WithRecorder journals every successful publish.
func WithRecorder(r Recorder) Option {
	return func(p *Publisher) { p.recorder = r }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(p *Publisher) { p.logger = l }
}

// NewPublisher creates a Publisher. local may be nil when only selections are
// published.
func NewPublisher(store remote.Store, local LocalSync, notifier notify.Notifier, cfg Config, opts ...Option) *Publisher {
	if cfg.ContentDir == "" {
		cfg.ContentDir = "data/blog"
	}
	if cfg.Extension == "" {
		cfg.Extension = "mdx"
	}
	if cfg.OnExisting == "" {
		cfg.OnExisting = PolicyUpdate
	}
	if notifier == nil {
		notifier = notify.Func(func(context.Context, notify.Notice) {})
	}
	p := &Publisher{
		store:    store,
		local:    local,
		notifier: notifier,
		cfg:      cfg,
		logger:   slog.Default(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// PreviewSelection builds the post for a selection without publishing it.
func (p *Publisher) PreviewSelection(text string) Draft {
	now := p.now()
	block := metadata.Generate("", now, p.cfg.DefaultTag)
	return p.draft(block, normalize.Normalize(text), "", now)
}

// Preview builds the post for a whole document without publishing it.
func (p *Publisher) Preview(doc models.Document) Draft {
	now := p.now()
	block, body := metadata.Split(doc.Text)
	if block == "" {
		block = metadata.Generate(doc.Title, now, p.cfg.DefaultTag)
	}
	return p.draft(block, normalize.Normalize(body), doc.Title, now)
}

func (p *Publisher) draft(block, body, title string, now time.Time) Draft {
	filename := title
	if filename == "" {
		filename = p.cfg.DefaultTag + "-" + metadata.CompactTimestamp(now)
	}
	ext := strings.TrimPrefix(p.cfg.Extension, ".")
	return Draft{
		Filename: filename,
		Path:     path.Join(p.cfg.ContentDir, filename+"."+ext),
		Content:  metadata.Assemble(block, body),
	}
}

// PublishSelection publishes a bare selection under a generated name. No
// local document is touched. An empty selection is a no-op.
func (p *Publisher) PublishSelection(ctx context.Context, text string) (*Result, error) {
	if strings.TrimSpace(text) == "" {
		p.notifier.Notify(ctx, notify.Notice{Level: notify.LevelInfo, Message: MsgNoContent})
		return &Result{Skipped: true}, nil
	}
	return p.publish(ctx, p.PreviewSelection(text), "")
}

// PublishDocument publishes a whole document, keeping its header when it has
// one, then refreshes the local copy.
func (p *Publisher) PublishDocument(ctx context.Context, doc models.Document) (*Result, error) {
	return p.publish(ctx, p.Preview(doc), doc.Path)
}

func (p *Publisher) publish(ctx context.Context, d Draft, localPath string) (*Result, error) {
	base, err := p.base(ctx, d.Path)
	if err != nil {
		return nil, p.fail(ctx, d, "read", err)
	}

	wr, err := p.store.Write(ctx, remote.WriteRequest{
		Path:    d.Path,
		Content: []byte(d.Content),
		Message: "publish: " + d.Filename,
		Base:    base,
	})
	if err != nil {
		return nil, p.fail(ctx, d, "write", err)
	}

	res := &Result{Draft: d, SHA: wr.SHA, Created: wr.Created}
	p.logger.Info("publish: done",
		slog.String("path", d.Path),
		slog.String("sha", wr.SHA),
		slog.Bool("created", wr.Created))

	var syncErr error
	if localPath != "" && p.local != nil {
		res.Local, syncErr = p.local.Refresh(ctx, localPath, d.Content)
	}
	p.record(ctx, res, localPath)

	if syncErr != nil {
		p.logger.Error("publish: local refresh failed",
			slog.String("path", localPath),
			slog.String("error", syncErr.Error()))
		p.notifier.Notify(ctx, notify.Notice{Level: notify.LevelError, Message: MsgLocalNotSynced + syncErr.Error(), Path: d.Path})
		return res, fmt.Errorf("publish: refresh %s: %w", localPath, syncErr)
	}
	p.notifier.Notify(ctx, notify.Notice{Level: notify.LevelSuccess, Message: MsgPublished + d.Path, Path: d.Path})
	return res, nil
}

// base reads the target path and returns the Base for the write. Only a
// transport failure is an error here; the remote store maps every other read
// failure to not-found.
func (p *Publisher) base(ctx context.Context, remotePath string) (remote.Base, error) {
	f, err := p.store.Read(ctx, remotePath)
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		return remote.Create(), nil
	case err != nil:
		return remote.Base{}, err
	}
	if p.cfg.OnExisting == PolicyReject {
		return remote.Base{}, fmt.Errorf("%s %w", remotePath, apperr.ErrAlreadyExists)
	}
	p.logger.Info("publish: updating existing post", slog.String("path", remotePath), slog.String("sha", f.SHA))
	return remote.BaseOf(f), nil
}

func (p *Publisher) fail(ctx context.Context, d Draft, op string, err error) error {
	p.logger.Error("publish: failed",
		slog.String("op", op),
		slog.String("path", d.Path),
		slog.String("error", err.Error()))
	p.notifier.Notify(ctx, notify.Notice{Level: notify.LevelError, Message: MsgFailed + Reason(err), Path: d.Path})
	return fmt.Errorf("publish: %s %s: %w", op, d.Path, err)
}

func (p *Publisher) record(ctx context.Context, res *Result, localPath string) {
	if p.recorder == nil {
		return
	}
	title := res.Filename
	if m, _, err := metadata.Parse(res.Content); err == nil && m.Title != "" {
		title = m.Title
	}
	pub := models.Publication{
		RemotePath:  res.Path,
		LocalPath:   localPath,
		Title:       title,
		SHA:         res.SHA,
		Created:     res.Created,
		PublishedAt: p.now(),
	}
	if res.Local != "" {
		pub.Checksum = checksum.String(res.Local)
	}
	if _, err := p.recorder.RecordPublication(ctx, pub); err != nil {
		p.logger.Warn("publish: record failed", slog.String("path", res.Path), slog.String("error", err.Error()))
	}
}

// Reason returns the user-facing cause of a publish failure: the remote
// service message when there is one, the raw transport error otherwise.
// Wrapping prefixes added on the way up are dropped.
func Reason(err error) string {
	var (
		re *remote.Error
		ue *url.Error
	)
	switch {
	case errors.As(err, &re):
		return re.Error()
	case errors.As(err, &ue):
		return ue.Error()
	case errors.Is(err, context.Canceled):
		return context.Canceled.Error()
	case errors.Is(err, context.DeadlineExceeded):
		return context.DeadlineExceeded.Error()
	}
	return err.Error()
}
