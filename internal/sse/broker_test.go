package sse

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/starford/blogpush/internal/history"
	"github.com/starford/blogpush/internal/notify"
)

// Compile-time checks.
var (
	_ notify.Notifier       = (*Broker)(nil)
	_ history.EventCallback = (*Broker)(nil).DocumentEvent
)

func TestSubscribeUnsubscribe(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	defer b.Close()
	if b.ClientCount() != 0 {
		t.Fatalf("expected 0 clients")
	}
	ch := b.Subscribe()
	if b.ClientCount() != 1 {
		t.Fatalf("expected 1 client")
	}
	b.Unsubscribe(ch)
	if b.ClientCount() != 0 {
		t.Fatalf("expected 0 clients after unsub")
	}
}

func TestNotifyDelivery(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	b.Notify(context.Background(), notify.Notice{
		Level:   notify.LevelSuccess,
		Message: "Content published: data/blog/a.mdx",
		Path:    "data/blog/a.mdx",
	})

	select {
	case msg := <-ch:
		s := string(msg)
		if !strings.HasPrefix(s, "event: notice\n") {
			t.Errorf("missing event type in %q", s)
		}
		if !strings.Contains(s, `"message":"Content published: data/blog/a.mdx"`) || !strings.Contains(s, `"level":"success"`) {
			t.Errorf("missing data in %q", s)
		}
		if !strings.HasSuffix(s, "\n\n") {
			t.Errorf("event not terminated: %q", s)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for message")
	}
}

func TestDocumentEvent_StatusThrottle(t *testing.T) {
	b := NewBroker(500 * time.Millisecond)
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	b.DocumentEvent(history.EventChanged, "a.md")
	b.DocumentEvent(history.EventRemoved, "b.md")
	b.DocumentEvent("bogus", "c.md")

	time.Sleep(50 * time.Millisecond)
	var changed, removed, status int
loop:
	for {
		select {
		case msg := <-ch:
			s := string(msg)
			switch {
			case strings.Contains(s, "event: "+TypeStatusUpdated):
				status++
			case strings.Contains(s, "event: "+TypeDocumentChanged):
				changed++
			case strings.Contains(s, "event: "+TypeDocumentRemoved):
				removed++
			default:
				t.Errorf("unexpected event %q", s)
			}
		default:
			break loop
		}
	}
	if changed != 1 || removed != 1 {
		t.Errorf("changed/removed = %d/%d, want 1/1", changed, removed)
	}
	if status != 1 {
		t.Errorf("status events = %d, want 1 (throttled)", status)
	}
}

// flushRecorder guards the body so the test can read it while the handler
// is still writing.
type flushRecorder struct {
	mu sync.Mutex
	*httptest.ResponseRecorder
}

func (r *flushRecorder) Write(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ResponseRecorder.Write(p)
}

func (r *flushRecorder) body() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ResponseRecorder.Body.String()
}

func TestSSEHandler(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	defer b.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req := httptest.NewRequest(http.MethodGet, "/api/events", nil).WithContext(ctx)
	w := &flushRecorder{ResponseRecorder: httptest.NewRecorder()}

	done := make(chan struct{})
	go func() {
		b.ServeHTTP(w, req)
		close(done)
	}()

	time.Sleep(50 * time.Millisecond)
	if b.ClientCount() != 1 {
		t.Fatalf("expected 1 client from handler")
	}

	b.DocumentEvent(history.EventChanged, "x.md")
	time.Sleep(50 * time.Millisecond)

	cancel()
	<-done

	if body := w.body(); !strings.Contains(body, "event: document.changed") {
		t.Errorf("handler output missing event: %q", body)
	}
	if ct := w.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("content type = %q", ct)
	}

	time.Sleep(50 * time.Millisecond)
	if b.ClientCount() != 0 {
		t.Errorf("client not cleaned up after disconnect")
	}
}

func TestPublishDropsOnFullBuffer(t *testing.T) {
	b := NewBroker(time.Second)
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	// Buffer holds 64; the rest must be dropped without blocking.
	for i := 0; i < 70; i++ {
		b.Publish(Event{Type: "test", Data: map[string]string{"i": "x"}})
	}
}

func TestCloseClosesSubscribersAndStopsOperations(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	ch := b.Subscribe()
	if b.ClientCount() != 1 {
		t.Fatalf("expected 1 client")
	}

	b.Close()

	select {
	case _, ok := <-ch:
		if ok {
			t.Fatal("expected subscriber channel to be closed")
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for channel close")
	}
	if b.ClientCount() != 0 {
		t.Fatalf("expected 0 clients after close")
	}

	// no-ops after close
	b.Publish(Event{Type: "notice"})
	b.Notify(context.Background(), notify.Notice{Message: "x"})
	b.DocumentEvent(history.EventChanged, "x.md")
}
