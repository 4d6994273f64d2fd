// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/starford/blogpush/internal/api"
	"github.com/starford/blogpush/internal/attachment"
	"github.com/starford/blogpush/internal/document"
	"github.com/starford/blogpush/internal/history"
	"github.com/starford/blogpush/internal/mcpserver"
	"github.com/starford/blogpush/internal/notify"
	"github.com/starford/blogpush/internal/publish"
	"github.com/starford/blogpush/internal/remote"
	"github.com/starford/blogpush/internal/sse"
	"github.com/starford/blogpush/internal/storage"
)

// App holds the wired components shared by every entry point.
type App struct {
	Config      *Config
	Logger      *slog.Logger
	Vault       *storage.FS
	History     *history.DB
	Documents   *document.Service
	Publisher   *publish.Publisher
	Attachments *attachment.Service // nil when object storage is not configured
	Broker      *sse.Broker
}

// NewApp builds the application from the given options. The caller must
// Close it.
func NewApp(_ context.Context, opts ...Option) (*App, error) {
	app := &application{logOutput: os.Stderr}

	for _, opt := range opts {
		opt(app)
	}

	if app.config == nil {
		return nil, fmt.Errorf("config is required")
	}

	cfg := app.config

	// Initialize structured JSON logger.
	logger := slog.New(slog.NewJSONHandler(app.logOutput, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
	slog.SetDefault(logger)

	logger.Debug("Configuration loaded",
		slog.String("vault_path", cfg.Vault.Path),
		slog.String("sqlite_path", cfg.SQLite.Path),
		slog.String("repository", cfg.Remote.Owner+"/"+cfg.Remote.Repo),
		slog.String("branch", cfg.Remote.Branch),
		slog.Bool("attachments", cfg.Storage.Enabled()),
		slog.String("log_level", cfg.App.LogLevel.String()))

	// Ensure vault directory exists.
	if err := os.MkdirAll(cfg.Vault.Path, 0o755); err != nil {
		return nil, fmt.Errorf("create vault dir: %w", err)
	}

	vault, err := storage.NewFS(cfg.Vault.Path)
	if err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}

	gh, err := remote.NewGitHub(remote.GitHubConfig{
		BaseURL: cfg.Remote.BaseURL,
		Owner:   cfg.Remote.Owner,
		Repo:    cfg.Remote.Repo,
		Branch:  cfg.Remote.Branch,
		Token:   cfg.Remote.Token,
		Timeout: cfg.Remote.Timeout,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("init remote: %w", err)
	}

	var attachments *attachment.Service
	if cfg.Storage.Enabled() {
		objects, err := attachment.NewObjectStore(attachment.StoreConfig{
			Endpoint:        cfg.Storage.Endpoint,
			Region:          cfg.Storage.Region,
			Bucket:          cfg.Storage.Bucket,
			AccessKeyID:     cfg.Storage.AccessKeyID,
			SecretAccessKey: cfg.Storage.SecretAccessKey,
			UseSSL:          cfg.Storage.UseSSL,
			PublicBaseURL:   cfg.Storage.PublicBaseURL,
		})
		if err != nil {
			return nil, fmt.Errorf("init object storage: %w", err)
		}
		attachments = attachment.NewService(objects, vault,
			attachment.Config{KeyPrefix: cfg.Storage.KeyPrefix},
			attachment.WithLogger(logger))
	}

	db, err := history.Open(cfg.SQLite.Path)
	if err != nil {
		return nil, fmt.Errorf("init history: %w", err)
	}

	// Run initial sync.
	if err := history.Sync(db, vault, logger); err != nil {
		logger.Warn("initial sync failed", slog.String("error", err.Error()))
	}

	// SSE broker.
	broker := sse.NewBroker(2 * time.Second)

	notifier := notify.Multi{notify.NewLog(logger), broker}
	notifier = append(notifier, app.notifiers...)

	docs := document.NewService(vault, cfg.Publish.DefaultTag)
	pub := publish.NewPublisher(gh, docs, notifier, publish.Config{
		ContentDir: cfg.Remote.ContentDir,
		Extension:  cfg.Remote.Extension,
		DefaultTag: cfg.Publish.DefaultTag,
		OnExisting: publish.Policy(cfg.Publish.OnExisting),
	}, publish.WithRecorder(db), publish.WithLogger(logger))

	return &App{
		Config:      cfg,
		Logger:      logger,
		Vault:       vault,
		History:     db,
		Documents:   docs,
		Publisher:   pub,
		Attachments: attachments,
		Broker:      broker,
	}, nil
}

// Close releases the history database and the broker.
func (a *App) Close() error {
	a.Broker.Close()
	return a.History.Close()
}

// Run builds the application and serves HTTP until ctx ends or a signal
// arrives.
func Run(ctx context.Context, opts ...Option) error {
	app, err := NewApp(ctx, opts...)
	if err != nil {
		return err
	}
	defer app.Close()
	return app.Serve(ctx)
}

// Serve runs the HTTP command surface and the vault watcher.
func (a *App) Serve(ctx context.Context) error {
	cfg := a.Config
	logger := a.Logger

	// Build API service and router.
	svc := api.NewService(a.Publisher, a.Documents, a.History, a.Attachments)
	apiRouter := api.NewRouter(svc, cfg.Auth.AuthEnabled(), cfg.Auth.Token, a.Broker)

	// Build chi router.
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Health check endpoints (unauthenticated).
	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/health/ready", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if _, err := a.History.ListPublications(r.Context(), 1); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"unavailable"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	// Mount API routes under /api.
	r.Mount("/api", apiRouter)

	httpServer := &http.Server{
		Addr:              cfg.App.HTTP.Address(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gCtx := errgroup.WithContext(ctx)

	// Start file watcher with SSE callback.
	g.Go(func() error {
		if err := history.Watch(gCtx, a.History, a.Vault, cfg.Vault.Path, logger, a.Broker.DocumentEvent); err != nil {
			logger.Error("watcher stopped", slog.String("error", err.Error()))
		}
		return nil
	})

	// Start HTTP server.
	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", cfg.App.HTTP.Address()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	// Handle shutdown signals.
	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(quit)

		select {
		case sig := <-quit:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
		case <-gCtx.Done():
			logger.Info("Context cancelled, initiating shutdown")
		}

		logger.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}

		return errShutdown
	})

	if err := g.Wait(); err != nil && !errors.Is(err, errShutdown) {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

// errShutdown cancels the group so the watcher stops with the server.
var errShutdown = errors.New("shutdown")

// ServeMCP serves the MCP tools over stdin/stdout until stdin closes.
func (a *App) ServeMCP(_ context.Context) error {
	srv := mcpserver.New(a.Publisher, a.Documents, a.History, a.Attachments)
	a.Logger.Info("Starting MCP server on stdio")
	if err := srv.ServeStdio(); err != nil {
		return fmt.Errorf("mcp: %w", err)
	}
	return nil
}
