package history

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/starford/blogpush/internal/apperr"
	"github.com/starford/blogpush/internal/models"
	"github.com/starford/blogpush/internal/storage"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	f, err := os.CreateTemp("", "blogpush-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	f.Close()
	t.Cleanup(func() { os.Remove(f.Name()) })

	db, err := Open(f.Name())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestSchemaCreation(t *testing.T) {
	db := testDB(t)
	var count int
	if err := db.conn.QueryRow(`SELECT count(*) FROM publications`).Scan(&count); err != nil {
		t.Fatalf("publications table missing: %v", err)
	}
	if err := db.conn.QueryRow(`SELECT count(*) FROM documents`).Scan(&count); err != nil {
		t.Fatalf("documents table missing: %v", err)
	}
}

func TestRecordAndListPublications(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	for i, p := range []models.Publication{
		{RemotePath: "data/blog/a.mdx", LocalPath: "a.md", Title: "a", SHA: "s1", Created: true},
		{RemotePath: "data/blog/闲谈-20240101000000.mdx", Title: "", SHA: "s2", Created: true},
		{RemotePath: "data/blog/a.mdx", LocalPath: "a.md", Title: "a", SHA: "s3"},
	} {
		id, err := db.RecordPublication(ctx, p)
		if err != nil {
			t.Fatalf("RecordPublication #%d: %v", i, err)
		}
		if id != int64(i+1) {
			t.Errorf("id = %d, want %d", id, i+1)
		}
	}

	list, err := db.ListPublications(ctx, 2)
	if err != nil {
		t.Fatalf("ListPublications: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("len = %d, want 2", len(list))
	}
	if list[0].SHA != "s3" || list[1].SHA != "s2" {
		t.Errorf("order = %s, %s; want newest first", list[0].SHA, list[1].SHA)
	}
	if list[0].Created || !list[1].Created {
		t.Errorf("created flags = %v, %v", list[0].Created, list[1].Created)
	}
	if list[0].PublishedAt.IsZero() {
		t.Error("published_at not set")
	}
}

func TestLastPublication(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	if _, err := db.LastPublication(ctx, "a.md"); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
	_, _ = db.RecordPublication(ctx, models.Publication{RemotePath: "r", LocalPath: "a.md", SHA: "old"})
	_, _ = db.RecordPublication(ctx, models.Publication{RemotePath: "r", LocalPath: "a.md", SHA: "new"})

	p, err := db.LastPublication(ctx, "a.md")
	if err != nil {
		t.Fatalf("LastPublication: %v", err)
	}
	if p.SHA != "new" {
		t.Errorf("sha = %q, want new", p.SHA)
	}
}

func TestUpsertAndGetChecksum(t *testing.T) {
	db := testDB(t)
	if err := db.UpsertDocument("hello.md", "abc123", time.Now()); err != nil {
		t.Fatalf("UpsertDocument: %v", err)
	}
	if err := db.UpsertDocument("hello.md", "def456", time.Now()); err != nil {
		t.Fatalf("UpsertDocument: %v", err)
	}
	cs, err := db.GetChecksum("hello.md")
	if err != nil {
		t.Fatalf("GetChecksum: %v", err)
	}
	if cs != "def456" {
		t.Errorf("checksum = %q, want def456", cs)
	}
	if cs, _ := db.GetChecksum("missing.md"); cs != "" {
		t.Errorf("missing checksum = %q", cs)
	}
}

func TestStatus(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	_ = db.UpsertDocument("clean.md", "c1", time.Now())
	_ = db.UpsertDocument("edited.md", "e2", time.Now())
	_ = db.UpsertDocument("never.md", "n1", time.Now())
	_, _ = db.RecordPublication(ctx, models.Publication{RemotePath: "r/clean", LocalPath: "clean.md", Checksum: "c1"})
	_, _ = db.RecordPublication(ctx, models.Publication{RemotePath: "r/edited", LocalPath: "edited.md", Checksum: "e1"})

	states, err := db.Status(ctx)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if len(states) != 3 {
		t.Fatalf("len = %d, want 3", len(states))
	}
	byPath := map[string]models.DocumentState{}
	for _, s := range states {
		byPath[s.Path] = s
	}
	if s := byPath["clean.md"]; s.Dirty || s.PublishedAt == nil {
		t.Errorf("clean.md = %+v", s)
	}
	if s := byPath["edited.md"]; !s.Dirty || s.PublishedChecksum != "e1" {
		t.Errorf("edited.md = %+v", s)
	}
	if s := byPath["never.md"]; !s.Dirty || s.PublishedAt != nil {
		t.Errorf("never.md = %+v", s)
	}
}

func TestSync(t *testing.T) {
	dir := t.TempDir()
	store, err := storage.NewFS(dir)
	if err != nil {
		t.Fatal(err)
	}
	db := testDB(t)
	_ = os.WriteFile(filepath.Join(dir, "a.md"), []byte("a"), 0o644)
	_ = os.MkdirAll(filepath.Join(dir, "sub"), 0o755)
	_ = os.WriteFile(filepath.Join(dir, "sub", "b.mdx"), []byte("b"), 0o644)
	_ = os.WriteFile(filepath.Join(dir, "image.png"), []byte("png"), 0o644)
	_ = db.UpsertDocument("gone.md", "x", time.Now())

	if err := Sync(db, store, quietLogger()); err != nil {
		t.Fatalf("Sync: %v", err)
	}
	all, err := db.AllChecksums()
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 2 {
		t.Fatalf("tracked = %v, want a.md and sub/b.mdx", all)
	}
	if all["a.md"] == "" || all["sub/b.mdx"] == "" {
		t.Errorf("tracked = %v", all)
	}
	if _, ok := all["gone.md"]; ok {
		t.Error("stale document not removed")
	}
}
