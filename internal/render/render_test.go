package render

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/starford/blogpush/internal/metadata"
	"github.com/starford/blogpush/internal/normalize"
)

func TestRender_HardBreaks(t *testing.T) {
	content := metadata.Generate("Ideas", time.Date(2024, 1, 2, 3, 4, 5, 0, time.Local), "闲谈") +
		"\n" + normalize.Normalize("first\nsecond")

	page, err := New().Render(content)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if page.Meta.Title != "Ideas" {
		t.Errorf("title = %q", page.Meta.Title)
	}
	if !strings.Contains(string(page.HTML), "first<br") {
		t.Errorf("html = %q, want a hard break", page.HTML)
	}
	if strings.Contains(string(page.HTML), "title:") {
		t.Error("metadata header leaked into the body")
	}
}

func TestRender_WithoutBreaksJoinsLines(t *testing.T) {
	page, err := New().Render("first\nsecond")
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(page.HTML), "<br") {
		t.Errorf("html = %q", page.HTML)
	}
}

func TestWriteDocument(t *testing.T) {
	page, err := New().Render("---\ntitle: 'A <b>'\ntags: [go, notes]\n---\n| a | b |\n|---|---|\n| 1 | 2 |\n")
	if err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	if err := WriteDocument(&buf, page); err != nil {
		t.Fatalf("WriteDocument: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "<title>A &lt;b&gt;</title>") {
		t.Errorf("title not escaped: %s", out)
	}
	if !strings.Contains(out, "go, notes") {
		t.Errorf("tags missing: %s", out)
	}
	if !strings.Contains(out, "<table>") {
		t.Errorf("GFM table not rendered: %s", out)
	}
}
