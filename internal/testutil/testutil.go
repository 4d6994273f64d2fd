// Package testutil provides shared test helpers for setting up vaults,
// databases and an in-memory remote store.
package testutil

import (
	"context"
	"fmt"
	"os"
	"sync"
	"testing"

	"github.com/starford/blogpush/internal/apperr"
	"github.com/starford/blogpush/internal/history"
	"github.com/starford/blogpush/internal/remote"
	"github.com/starford/blogpush/internal/storage"
)

// TestDB creates a temporary history database that is automatically cleaned up.
func TestDB(t *testing.T) *history.DB {
	t.Helper()
	dbFile, err := os.CreateTemp("", "blogpush-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() { os.Remove(dbFile.Name()) })

	db, err := history.Open(dbFile.Name())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// TestVault creates a temporary vault directory with a storage.FS.
func TestVault(t *testing.T) (string, *storage.FS) {
	t.Helper()
	vaultDir := t.TempDir()
	store, err := storage.NewFS(vaultDir)
	if err != nil {
		t.Fatal(err)
	}
	return vaultDir, store
}

// FakeRemote is an in-memory remote.Store that enforces the SHA protocol
// and records every call.
type FakeRemote struct {
	mu       sync.Mutex
	files    map[string]remote.File
	seq      int
	reads    []string
	writes   []remote.WriteRequest
	readErr  error
	writeErr error
}

// NewFakeRemote creates an empty FakeRemote.
func NewFakeRemote() *FakeRemote {
	return &FakeRemote{files: map[string]remote.File{}}
}

// Put seeds a file with the given SHA.
func (f *FakeRemote) Put(path, content, sha string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.files[path] = remote.File{Path: path, Content: []byte(content), SHA: sha}
}

// FailReads makes every Read return err.
func (f *FakeRemote) FailReads(err error) {
	f.mu.Lock()
	f.readErr = err
	f.mu.Unlock()
}

// FailWrites makes every Write return err.
func (f *FakeRemote) FailWrites(err error) {
	f.mu.Lock()
	f.writeErr = err
	f.mu.Unlock()
}

// File returns the stored file at path.
func (f *FakeRemote) File(path string) (remote.File, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	file, ok := f.files[path]
	return file, ok
}

// Reads returns the paths passed to Read, in order.
func (f *FakeRemote) Reads() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.reads...)
}

// Writes returns the requests passed to Write, in order.
func (f *FakeRemote) Writes() []remote.WriteRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]remote.WriteRequest(nil), f.writes...)
}

// Read implements remote.Store.
func (f *FakeRemote) Read(_ context.Context, path string) (*remote.File, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reads = append(f.reads, path)
	if f.readErr != nil {
		return nil, f.readErr
	}
	file, ok := f.files[path]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	return &file, nil
}

// Write implements remote.Store.
func (f *FakeRemote) Write(_ context.Context, req remote.WriteRequest) (*remote.WriteResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.writes = append(f.writes, req)
	if f.writeErr != nil {
		return nil, f.writeErr
	}
	current, exists := f.files[req.Path]
	sha, isUpdate := req.Base.SHA()
	switch {
	case exists && (!isUpdate || sha != current.SHA):
		return nil, &remote.Error{StatusCode: 409, Message: "sha does not match"}
	case !exists && isUpdate:
		return nil, &remote.Error{StatusCode: 422, Message: "sha wasn't supplied"}
	}
	f.seq++
	newSHA := fmt.Sprintf("sha%d", f.seq)
	f.files[req.Path] = remote.File{Path: req.Path, Content: append([]byte(nil), req.Content...), SHA: newSHA}
	return &remote.WriteResult{Path: req.Path, SHA: newSHA, CommitSHA: "commit-" + newSHA, Created: !exists}, nil
}
