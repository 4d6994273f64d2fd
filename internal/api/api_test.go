package api

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/starford/blogpush/internal/attachment"
	"github.com/starford/blogpush/internal/document"
	"github.com/starford/blogpush/internal/history"
	"github.com/starford/blogpush/internal/notify"
	"github.com/starford/blogpush/internal/publish"
	"github.com/starford/blogpush/internal/remote"
	"github.com/starford/blogpush/internal/storage"
	"github.com/starford/blogpush/internal/testutil"
)

var pngData = append([]byte("\x89PNG\r\n\x1a\n"), make([]byte, 32)...)

type memUploader struct {
	keys []string
}

func (m *memUploader) Put(_ context.Context, key string, r io.Reader, _ int64, _ string) (string, error) {
	_, _ = io.Copy(io.Discard, r)
	m.keys = append(m.keys, key)
	return "https://cdn.test/" + key, nil
}

type testEnv struct {
	router   http.Handler
	vault    *storage.FS
	remote   *testutil.FakeRemote
	db       *history.DB
	uploader *memUploader
	notices  *notify.Recorder
}

type envOpts struct {
	token         string
	noAttachments bool
	onExisting    publish.Policy
}

func newTestEnv(t *testing.T, o envOpts) *testEnv {
	t.Helper()
	_, vault := testutil.TestVault(t)
	e := &testEnv{
		vault:    vault,
		remote:   testutil.NewFakeRemote(),
		db:       testutil.TestDB(t),
		uploader: &memUploader{},
		notices:  &notify.Recorder{},
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	now := func() time.Time { return time.Date(2024, 6, 1, 12, 30, 0, 0, time.Local) }
	docs := document.NewService(vault, "闲谈", document.WithClock(now))
	pub := publish.NewPublisher(e.remote, docs, e.notices,
		publish.Config{DefaultTag: "闲谈", OnExisting: o.onExisting},
		publish.WithClock(now), publish.WithRecorder(e.db), publish.WithLogger(logger))
	var att *attachment.Service
	if !o.noAttachments {
		att = attachment.NewService(e.uploader, vault, attachment.Config{}, attachment.WithLogger(logger))
	}
	e.router = NewRouter(NewService(pub, docs, e.db, att), o.token != "", o.token, nil)
	return e
}

func (e *testEnv) do(t *testing.T, method, target string, body any, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var rdr io.Reader
	if body != nil {
		b, _ := json.Marshal(body)
		rdr = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, target, rdr)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func TestAuth(t *testing.T) {
	e := newTestEnv(t, envOpts{token: "secret"})

	if w := e.do(t, http.MethodGet, "/publications", nil); w.Code != http.StatusUnauthorized {
		t.Errorf("no token = %d, want 401", w.Code)
	}
	if w := e.do(t, http.MethodGet, "/publications", nil, "Authorization", "Bearer wrong"); w.Code != http.StatusUnauthorized {
		t.Errorf("wrong token = %d, want 401", w.Code)
	}
	if w := e.do(t, http.MethodGet, "/publications", nil, "Authorization", "Bearer secret"); w.Code != http.StatusOK {
		t.Errorf("valid token = %d, want 200", w.Code)
	}
}

func TestAuthDisabled(t *testing.T) {
	e := newTestEnv(t, envOpts{})
	if w := e.do(t, http.MethodGet, "/documents", nil); w.Code != http.StatusOK {
		t.Errorf("status = %d", w.Code)
	}
}

func TestPublishSelection(t *testing.T) {
	e := newTestEnv(t, envOpts{})

	w := e.do(t, http.MethodPost, "/publish/selection", PublishSelectionRequest{Text: "hello"})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	var resp PublishResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if !strings.HasPrefix(resp.Path, "data/blog/闲谈-") || !resp.Created {
		t.Errorf("resp = %+v", resp)
	}
	if resp.Message != "Content published: "+resp.Path {
		t.Errorf("message = %q", resp.Message)
	}
	if _, ok := e.remote.File(resp.Path); !ok {
		t.Error("remote file not written")
	}
}

func TestPublishSelection_Empty(t *testing.T) {
	e := newTestEnv(t, envOpts{})

	w := e.do(t, http.MethodPost, "/publish/selection", PublishSelectionRequest{Text: "  "})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var resp PublishResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if !resp.Skipped || resp.Message != "No content selected" {
		t.Errorf("resp = %+v", resp)
	}
	if len(e.remote.Reads()) != 0 {
		t.Error("remote store contacted")
	}
}

func TestPublishDocument(t *testing.T) {
	e := newTestEnv(t, envOpts{})
	_ = e.vault.Write("Ideas.md", []byte("some thoughts"))

	w := e.do(t, http.MethodPost, "/publish/document", DocumentRequest{Path: "Ideas.md"})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	f, ok := e.remote.File("data/blog/Ideas.mdx")
	if !ok {
		t.Fatal("remote file missing")
	}
	local, _ := e.vault.Read("Ideas.md")
	if string(local) != string(f.Content) {
		t.Errorf("local = %q, remote = %q", local, f.Content)
	}

	w = e.do(t, http.MethodGet, "/publications", nil)
	var list PublicationListResponse
	_ = json.Unmarshal(w.Body.Bytes(), &list)
	if len(list.Publications) != 1 || list.Publications[0].LocalPath != "Ideas.md" {
		t.Errorf("publications = %+v", list.Publications)
	}
}

func TestPublishDocument_Errors(t *testing.T) {
	e := newTestEnv(t, envOpts{})

	if w := e.do(t, http.MethodPost, "/publish/document", DocumentRequest{}); w.Code != http.StatusBadRequest {
		t.Errorf("empty path = %d, want 400", w.Code)
	}
	if w := e.do(t, http.MethodPost, "/publish/document", DocumentRequest{Path: "missing.md"}); w.Code != http.StatusNotFound {
		t.Errorf("missing document = %d, want 404", w.Code)
	}

	req := httptest.NewRequest(http.MethodPost, "/publish/document", strings.NewReader("{not json"))
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("bad json = %d, want 400", w.Code)
	}
}

func TestPublishDocument_RemoteRejects(t *testing.T) {
	e := newTestEnv(t, envOpts{})
	_ = e.vault.Write("Ideas.md", []byte("x"))
	e.remote.FailWrites(&remote.Error{StatusCode: 401, Message: "Bad credentials"})

	w := e.do(t, http.MethodPost, "/publish/document", DocumentRequest{Path: "Ideas.md"})
	if w.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502", w.Code)
	}
	var body errResponse
	_ = json.Unmarshal(w.Body.Bytes(), &body)
	if body.Error != "Failed to publish content: Bad credentials" {
		t.Errorf("error = %q", body.Error)
	}
}

func TestPublishDocument_RejectPolicy(t *testing.T) {
	e := newTestEnv(t, envOpts{onExisting: publish.PolicyReject})
	_ = e.vault.Write("Ideas.md", []byte("x"))
	e.remote.Put("data/blog/Ideas.mdx", "old", "abc")

	w := e.do(t, http.MethodPost, "/publish/document", DocumentRequest{Path: "Ideas.md"})
	if w.Code != http.StatusConflict {
		t.Errorf("status = %d, want 409", w.Code)
	}
}

func TestUpdateMetadata(t *testing.T) {
	e := newTestEnv(t, envOpts{})
	_ = e.vault.Write("Travel.md", []byte("went places"))

	w := e.do(t, http.MethodPost, "/metadata", DocumentRequest{Path: "Travel.md"})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var resp MetadataResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if !strings.HasPrefix(resp.Content, "---\ntitle: 'Travel'\n") {
		t.Errorf("content = %q", resp.Content)
	}
	if len(e.remote.Reads())+len(e.remote.Writes()) != 0 {
		t.Error("metadata update reached the remote store")
	}
}

func TestListDocuments(t *testing.T) {
	e := newTestEnv(t, envOpts{})
	_ = e.vault.Write("a.md", []byte("a"))
	_ = e.vault.Write("b.md", []byte("b"))
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	if err := history.Sync(e.db, e.vault, logger); err != nil {
		t.Fatal(err)
	}
	_ = e.do(t, http.MethodPost, "/publish/document", DocumentRequest{Path: "a.md"})
	if err := history.Sync(e.db, e.vault, logger); err != nil {
		t.Fatal(err)
	}

	w := e.do(t, http.MethodGet, "/documents", nil)
	var all DocumentListResponse
	_ = json.Unmarshal(w.Body.Bytes(), &all)
	if len(all.Documents) != 2 {
		t.Fatalf("documents = %+v", all.Documents)
	}

	w = e.do(t, http.MethodGet, "/documents?dirty=true", nil)
	var dirty DocumentListResponse
	_ = json.Unmarshal(w.Body.Bytes(), &dirty)
	if len(dirty.Documents) != 1 || dirty.Documents[0].Path != "b.md" {
		t.Errorf("dirty = %+v", dirty.Documents)
	}
}

func TestPreview(t *testing.T) {
	e := newTestEnv(t, envOpts{})
	_ = e.vault.Write("posts/Ideas.md", []byte("one\ntwo"))

	w := e.do(t, http.MethodGet, "/preview/posts%2FIdeas.md", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("content type = %q", ct)
	}
	if !strings.Contains(w.Body.String(), "one<br") || !strings.Contains(w.Body.String(), "<title>Ideas</title>") {
		t.Errorf("body = %s", w.Body.String())
	}
	if len(e.remote.Writes()) != 0 {
		t.Error("preview published")
	}
}

func multipartBody(t *testing.T, filename string, data []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", filename)
	if err != nil {
		t.Fatal(err)
	}
	_, _ = fw.Write(data)
	_ = mw.Close()
	return &buf, mw.FormDataContentType()
}

func TestUploadAttachment_Multipart(t *testing.T) {
	e := newTestEnv(t, envOpts{})
	body, ct := multipartBody(t, "shot.png", pngData)

	req := httptest.NewRequest(http.MethodPost, "/attachments", body)
	req.Header.Set("Content-Type", ct)
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	var asset attachment.Asset
	_ = json.Unmarshal(w.Body.Bytes(), &asset)
	if !strings.HasSuffix(asset.Key, "/shot.png") || !strings.HasPrefix(asset.Markdown, "![shot.png](https://cdn.test/blog/") {
		t.Errorf("asset = %+v", asset)
	}
}

func TestUploadAttachment_RejectsBadFile(t *testing.T) {
	e := newTestEnv(t, envOpts{})
	body, ct := multipartBody(t, "run.exe", []byte("MZ"))

	req := httptest.NewRequest(http.MethodPost, "/attachments", body)
	req.Header.Set("Content-Type", ct)
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
	if len(e.uploader.keys) != 0 {
		t.Error("rejected file uploaded")
	}
}

func TestUploadAttachment_DataURI(t *testing.T) {
	e := newTestEnv(t, envOpts{})
	w := e.do(t, http.MethodPost, "/attachments", FetchAttachmentRequest{
		URL:      "data:image/png;base64," + base64.StdEncoding.EncodeToString(pngData),
		Filename: "cover.png",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	if len(e.uploader.keys) != 1 || !strings.HasSuffix(e.uploader.keys[0], "/cover.png") {
		t.Errorf("keys = %v", e.uploader.keys)
	}
}

func TestUploadAttachment_Disabled(t *testing.T) {
	e := newTestEnv(t, envOpts{noAttachments: true})
	w := e.do(t, http.MethodPost, "/attachments", FetchAttachmentRequest{URL: "data:image/png;base64,AA=="})
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", w.Code)
	}
	w = e.do(t, http.MethodPost, "/attachments/rewrite", DocumentRequest{Path: "a.md"})
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("rewrite status = %d, want 503", w.Code)
	}
}

func TestRewriteAttachments(t *testing.T) {
	e := newTestEnv(t, envOpts{})
	_ = e.vault.Write("img.png", pngData)
	_ = e.vault.Write("post.md", []byte("look ![](img.png)"))

	w := e.do(t, http.MethodPost, "/attachments/rewrite", DocumentRequest{Path: "post.md"})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	data, _ := e.vault.Read("post.md")
	if !strings.Contains(string(data), "![img.png](https://cdn.test/blog/") {
		t.Errorf("document = %q", data)
	}

	w = e.do(t, http.MethodPost, "/attachments/rewrite", DocumentRequest{Path: "missing.md"})
	if w.Code != http.StatusNotFound {
		t.Errorf("missing = %d, want 404", w.Code)
	}
}

func TestPublicationsEmptyList(t *testing.T) {
	e := newTestEnv(t, envOpts{})
	w := e.do(t, http.MethodGet, "/publications", nil)
	if !strings.Contains(w.Body.String(), `"publications":[]`) {
		t.Errorf("body = %s", w.Body.String())
	}
}
