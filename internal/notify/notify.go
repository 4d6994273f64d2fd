// Package notify delivers user-visible notices about publish operations.
package notify

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
)

// Level classifies a notice.
type Level string

const (
	LevelInfo    Level = "info"
	LevelSuccess Level = "success"
	LevelError   Level = "error"
)

// Notice is a single message for the user.
type Notice struct {
	Level   Level  `json:"level"`
	Message string `json:"message"`
	Path    string `json:"path,omitempty"`
}

// Notifier is the user-visible notification channel.
type Notifier interface {
	Notify(ctx context.Context, n Notice)
}

// Func adapts a function to Notifier.
type Func func(ctx context.Context, n Notice)

// Notify calls f.
func (f Func) Notify(ctx context.Context, n Notice) { f(ctx, n) }

// Writer prints notices as lines, one per notice.
type Writer struct {
	mu sync.Mutex
	w  io.Writer
}

// NewWriter creates a Writer that prints to w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

// Notify writes the notice message.
func (w *Writer) Notify(_ context.Context, n Notice) {
	w.mu.Lock()
	defer w.mu.Unlock()
	_, _ = fmt.Fprintln(w.w, n.Message)
}

// Log records notices through a slog.Logger.
type Log struct {
	logger *slog.Logger
}

// NewLog creates a Log notifier.
func NewLog(logger *slog.Logger) *Log {
	return &Log{logger: logger}
}

// Notify logs the notice at a level matching its severity.
func (l *Log) Notify(ctx context.Context, n Notice) {
	level := slog.LevelInfo
	if n.Level == LevelError {
		level = slog.LevelError
	}
	l.logger.LogAttrs(ctx, level, "notice",
		slog.String("level", string(n.Level)),
		slog.String("message", n.Message),
		slog.String("path", n.Path))
}

// Multi fans a notice out to several notifiers.
type Multi []Notifier

// Notify forwards n to every notifier in order.
func (m Multi) Notify(ctx context.Context, n Notice) {
	for _, x := range m {
		if x != nil {
			x.Notify(ctx, n)
		}
	}
}

// Recorder keeps notices in memory.
type Recorder struct {
	mu      sync.Mutex
	notices []Notice
}

// Notify appends n.
func (r *Recorder) Notify(_ context.Context, n Notice) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notices = append(r.notices, n)
}

// Notices returns a copy of everything recorded so far.
func (r *Recorder) Notices() []Notice {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Notice(nil), r.notices...)
}

// Last returns the most recent notice and whether there was one.
func (r *Recorder) Last() (Notice, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.notices) == 0 {
		return Notice{}, false
	}
	return r.notices[len(r.notices)-1], true
}
