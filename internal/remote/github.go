package remote

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/go-github/v66/github"

	"github.com/starford/blogpush/internal/apperr"
)

// GitHubConfig holds the coordinates of the target repository.
type GitHubConfig struct {
	BaseURL string
	Owner   string
	Repo    string
	Branch  string
	Token   string
	Timeout time.Duration
}

// GitHub implements Store on top of the GitHub contents API.
type GitHub struct {
	client *github.Client
	owner  string
	repo   string
	branch string
	logger *slog.Logger
}

var _ Store = (*GitHub)(nil)

// NewGitHub creates a contents API client. An empty BaseURL targets
// api.github.com.
func NewGitHub(cfg GitHubConfig, logger *slog.Logger) (*GitHub, error) {
	if logger == nil {
		logger = slog.Default()
	}
	client := github.NewClient(&http.Client{Timeout: cfg.Timeout})
	if cfg.Token != "" {
		client = client.WithAuthToken(cfg.Token)
	}
	if cfg.BaseURL != "" {
		u, err := url.Parse(strings.TrimSuffix(cfg.BaseURL, "/") + "/")
		if err != nil {
			return nil, fmt.Errorf("remote: parse base url: %w", err)
		}
		client.BaseURL = u
	}
	return &GitHub{
		client: client,
		owner:  cfg.Owner,
		repo:   cfg.Repo,
		branch: cfg.Branch,
		logger: logger,
	}, nil
}

// Read fetches the file at path on the configured branch.
//
// Any structured error response is reported as apperr.ErrNotFound so the
// caller falls back to creating the file; only transport failures are
// returned as errors.
func (g *GitHub) Read(ctx context.Context, path string) (*File, error) {
	fc, _, resp, err := g.client.Repositories.GetContents(ctx, g.owner, g.repo, path,
		&github.RepositoryContentGetOptions{Ref: g.branch})
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusNotFound {
			return nil, apperr.ErrNotFound
		}
		if se := serviceError(err); se != nil {
			g.logger.Warn("remote: read rejected, treating as missing",
				slog.String("path", path),
				slog.Int("status", se.StatusCode),
				slog.String("error", se.Message))
			return nil, apperr.ErrNotFound
		}
		return nil, fmt.Errorf("remote: read %s: %w", path, err)
	}
	if fc == nil {
		return nil, fmt.Errorf("remote: read %s: path is a directory", path)
	}

	file := &File{Path: path, SHA: fc.GetSHA()}
	content, err := fc.GetContent()
	if err != nil {
		// Files over 1 MB come back without inline content; the SHA is
		// all a conditional update needs.
		g.logger.Debug("remote: content not inline", slog.String("path", path), slog.String("error", err.Error()))
	} else {
		file.Content = []byte(content)
	}
	return file, nil
}

// Write creates the file when req.Base is Create() and otherwise sends a
// conditional update carrying the SHA.
func (g *GitHub) Write(ctx context.Context, req WriteRequest) (*WriteResult, error) {
	opts := &github.RepositoryContentFileOptions{
		Message: github.String(req.Message),
		Content: req.Content,
	}
	if g.branch != "" {
		opts.Branch = github.String(g.branch)
	}

	// CreateFile and UpdateFile put the path into the URL as is, while
	// GetContents escapes it. Titles may contain '#', '?' or '%'.
	escaped := (&url.URL{Path: req.Path}).EscapedPath()

	var (
		res *github.RepositoryContentResponse
		err error
	)
	if sha, ok := req.Base.SHA(); ok {
		opts.SHA = github.String(sha)
		res, _, err = g.client.Repositories.UpdateFile(ctx, g.owner, g.repo, escaped, opts)
	} else {
		res, _, err = g.client.Repositories.CreateFile(ctx, g.owner, g.repo, escaped, opts)
	}
	if err != nil {
		if se := serviceError(err); se != nil {
			return nil, se
		}
		return nil, fmt.Errorf("remote: write %s: %w", req.Path, err)
	}

	return &WriteResult{
		Path:      req.Path,
		SHA:       res.GetContent().GetSHA(),
		CommitSHA: res.Commit.GetSHA(),
		Created:   !req.Base.IsUpdate(),
	}, nil
}

// serviceError converts go-github's structured failures into *Error.
func serviceError(err error) *Error {
	var (
		errResp  *github.ErrorResponse
		rateErr  *github.RateLimitError
		abuseErr *github.AbuseRateLimitError
	)
	switch {
	case errors.As(err, &errResp):
		return &Error{StatusCode: statusOf(errResp.Response), Message: errResp.Message}
	case errors.As(err, &rateErr):
		return &Error{StatusCode: statusOf(rateErr.Response), Message: rateErr.Message}
	case errors.As(err, &abuseErr):
		return &Error{StatusCode: statusOf(abuseErr.Response), Message: abuseErr.Message}
	}
	return nil
}

func statusOf(resp *http.Response) int {
	if resp == nil {
		return 0
	}
	return resp.StatusCode
}
