package internal

import (
	"io"

	"github.com/starford/blogpush/internal/notify"
)

// Option is a functional option for configuring the application.
type Option func(*application)

type application struct {
	config    *Config
	notifiers []notify.Notifier
	logOutput io.Writer
}

// WithConfig sets the application configuration.
func WithConfig(cfg *Config) Option {
	return func(a *application) {
		a.config = cfg
	}
}

// WithNotifier adds a destination for user-facing notices, on top of the
// log and the SSE broker.
func WithNotifier(n notify.Notifier) Option {
	return func(a *application) {
		a.notifiers = append(a.notifiers, n)
	}
}

// WithLogOutput redirects the JSON log (stderr by default).
func WithLogOutput(w io.Writer) Option {
	return func(a *application) {
		a.logOutput = w
	}
}
