// Package remote abstracts the versioned remote repository that posts are
// published to.
//
// Writes follow a read-then-write protocol: the caller reads the current
// identity token (the blob SHA) immediately before writing and passes it back
// as an explicit Base, so the remote service can reject stale updates.
package remote

import (
	"context"
	"net/http"
)

// File is a path-addressed blob in the remote store.
type File struct {
	Path    string
	Content []byte
	SHA     string
}

// Base states what a write expects to find at the path: nothing (create) or
// the blob identified by a SHA (update).
type Base struct {
	sha    string
	update bool
}

// Create is the Base for a path that does not exist yet.
func Create() Base { return Base{} }

// Update is the Base for replacing the blob with the given SHA.
func Update(sha string) Base { return Base{sha: sha, update: true} }

// BaseOf returns Update(f.SHA) for an existing file and Create() for nil.
func BaseOf(f *File) Base {
	if f == nil {
		return Create()
	}
	return Update(f.SHA)
}

// IsUpdate reports whether the write replaces an existing blob.
func (b Base) IsUpdate() bool { return b.update }

// SHA returns the identity token and whether one is present.
func (b Base) SHA() (string, bool) { return b.sha, b.update }

// WriteRequest describes a single create-or-update.
type WriteRequest struct {
	Path    string
	Content []byte
	Message string
	Base    Base
}

// WriteResult reports the state of the path after a successful write.
type WriteResult struct {
	Path      string
	SHA       string
	CommitSHA string
	Created   bool
}

// Store reads and writes files in the remote repository.
type Store interface {
	// Read returns the current file at path, or apperr.ErrNotFound.
	Read(ctx context.Context, path string) (*File, error)
	// Write creates or conditionally updates the file described by req.
	Write(ctx context.Context, req WriteRequest) (*WriteResult, error)
}

// Error is a structured failure reported by the remote service, such as
// rejected credentials, a version conflict or a rate limit.
type Error struct {
	StatusCode int
	Message    string
}

// Error returns the service-provided message verbatim.
func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if text := http.StatusText(e.StatusCode); text != "" {
		return text
	}
	return "remote request failed"
}
