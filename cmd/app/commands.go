package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/starford/blogpush/internal"
	"github.com/starford/blogpush/internal/apperr"
	"github.com/starford/blogpush/internal/models"
	"github.com/starford/blogpush/internal/render"
)

var errNoStorage = fmt.Errorf("object storage: %w", apperr.ErrNotConfigured)

func commands() []*cli.Command {
	return []*cli.Command{
		{
			Name:      "publish",
			Usage:     "Publish a whole vault document",
			ArgsUsage: "<document>",
			Flags: []cli.Flag{
				&cli.BoolFlag{Name: "dry-run", Usage: "Print the post instead of publishing it"},
			},
			Action: appAction(false, publishDocument),
		},
		{
			Name:  "select",
			Usage: "Publish a piece of text under a generated name",
			Flags: []cli.Flag{
				&cli.StringFlag{Name: "text", Aliases: []string{"t"}, Usage: "Text to publish (read from stdin when empty)"},
				&cli.BoolFlag{Name: "dry-run", Usage: "Print the post instead of publishing it"},
			},
			Action: appAction(false, publishSelection),
		},
		{
			Name:      "meta",
			Usage:     "Add a metadata header to a document or refresh its lastmod",
			ArgsUsage: "<document>",
			Action:    appAction(false, updateMetadata),
		},
		{
			Name:      "attach",
			Usage:     "Upload the local images of a document and rewrite their references",
			ArgsUsage: "<document>",
			Action:    appAction(false, rewriteAttachments),
		},
		{
			Name:      "upload",
			Usage:     "Upload files, data URIs or URLs to object storage",
			ArgsUsage: "<file|url>...",
			Action:    appAction(false, uploadFiles),
		},
		{
			Name:      "preview",
			Usage:     "Render the post a publish would produce as HTML",
			ArgsUsage: "<document>",
			Flags: []cli.Flag{
				&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Usage: "Write HTML to this file instead of stdout"},
			},
			Action: appAction(true, previewDocument),
		},
		{
			Name:  "history",
			Usage: "List recent publications",
			Flags: []cli.Flag{
				&cli.IntFlag{Name: "limit", Aliases: []string{"n"}, Value: 20, Usage: "Maximum number of entries"},
			},
			Action: appAction(true, listHistory),
		},
		{
			Name:  "status",
			Usage: "Show which vault documents changed since their last publication",
			Flags: []cli.Flag{
				&cli.BoolFlag{Name: "all", Usage: "Include unchanged documents"},
			},
			Action: appAction(true, showStatus),
		},
		{
			Name:  "serve",
			Usage: "Run the HTTP API, the SSE stream and the vault watcher",
			Action: appAction(true, func(ctx context.Context, _ *cli.Command, app *internal.App) error {
				if err := app.Serve(ctx); err != nil {
					return fmt.Errorf("app run error: %w", err)
				}
				return nil
			}),
		},
		{
			Name:  "mcp",
			Usage: "Serve the publishing tools over MCP on stdin/stdout",
			Action: appAction(true, func(ctx context.Context, _ *cli.Command, app *internal.App) error {
				return app.ServeMCP(ctx)
			}),
		},
	}
}

func requireArg(cmd *cli.Command, name string) (string, error) {
	arg := cmd.Args().First()
	if arg == "" {
		return "", fmt.Errorf("%s: missing %s argument", cmd.Name, name)
	}
	return arg, nil
}

// vaultPath accepts a path relative to the vault or one that resolves inside it.
func vaultPath(app *internal.App, arg string) string {
	if !filepath.IsAbs(arg) {
		if _, err := os.Stat(arg); err != nil {
			return filepath.ToSlash(arg)
		}
		abs, err := filepath.Abs(arg)
		if err != nil {
			return filepath.ToSlash(arg)
		}
		arg = abs
	}
	rel, err := filepath.Rel(app.Vault.Root(), arg)
	if err != nil || strings.HasPrefix(rel, "..") {
		return filepath.ToSlash(arg)
	}
	return filepath.ToSlash(rel)
}

func loadDocument(ctx context.Context, cmd *cli.Command, app *internal.App) (models.Document, error) {
	arg, err := requireArg(cmd, "document")
	if err != nil {
		return models.Document{}, err
	}
	return app.Documents.Load(ctx, vaultPath(app, arg))
}

func publishDocument(ctx context.Context, cmd *cli.Command, app *internal.App) error {
	doc, err := loadDocument(ctx, cmd, app)
	if err != nil {
		return err
	}
	if cmd.Bool("dry-run") {
		d := app.Publisher.Preview(doc)
		fmt.Fprintf(os.Stdout, "# %s\n%s\n", d.Path, d.Content)
		return nil
	}
	_, err = app.Publisher.PublishDocument(ctx, doc)
	return err
}

func publishSelection(ctx context.Context, cmd *cli.Command, app *internal.App) error {
	text := cmd.String("text")
	if text == "" {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return fmt.Errorf("read stdin: %w", err)
		}
		text = string(data)
	}
	if cmd.Bool("dry-run") {
		d := app.Publisher.PreviewSelection(text)
		fmt.Fprintf(os.Stdout, "# %s\n%s\n", d.Path, d.Content)
		return nil
	}
	_, err := app.Publisher.PublishSelection(ctx, text)
	return err
}

func updateMetadata(ctx context.Context, cmd *cli.Command, app *internal.App) error {
	arg, err := requireArg(cmd, "document")
	if err != nil {
		return err
	}
	p := vaultPath(app, arg)
	if _, err := app.Documents.EnsureMetadata(ctx, p); err != nil {
		return err
	}
	fmt.Fprintf(os.Stdout, "Metadata updated: %s\n", p)
	return nil
}

func rewriteAttachments(ctx context.Context, cmd *cli.Command, app *internal.App) error {
	if app.Attachments == nil {
		return errNoStorage
	}
	arg, err := requireArg(cmd, "document")
	if err != nil {
		return err
	}
	rw, err := app.Attachments.RewriteDocument(ctx, vaultPath(app, arg))
	if err != nil {
		return err
	}
	for _, a := range rw.Assets {
		fmt.Fprintf(os.Stdout, "uploaded %s -> %s\n", a.Name, a.URL)
	}
	for _, s := range rw.Skipped {
		fmt.Fprintf(os.Stdout, "skipped %s\n", s)
	}
	return nil
}

func uploadFiles(ctx context.Context, cmd *cli.Command, app *internal.App) error {
	if app.Attachments == nil {
		return errNoStorage
	}
	args := cmd.Args().Slice()
	if len(args) == 0 {
		return fmt.Errorf("upload: missing file argument")
	}
	var errs []error
	for _, arg := range args {
		var md string
		switch {
		case strings.HasPrefix(arg, "data:"), strings.HasPrefix(arg, "http://"), strings.HasPrefix(arg, "https://"):
			a, err := app.Attachments.Fetch(ctx, arg, "")
			if err != nil {
				errs = append(errs, err)
				continue
			}
			md = a.Markdown
		default:
			data, err := os.ReadFile(arg)
			if err != nil {
				errs = append(errs, fmt.Errorf("upload: %w", err))
				continue
			}
			a, err := app.Attachments.Upload(ctx, filepath.Base(arg), data)
			if err != nil {
				errs = append(errs, err)
				continue
			}
			md = a.Markdown
		}
		fmt.Fprintln(os.Stdout, md)
	}
	return errors.Join(errs...)
}

func previewDocument(ctx context.Context, cmd *cli.Command, app *internal.App) error {
	doc, err := loadDocument(ctx, cmd, app)
	if err != nil {
		return err
	}
	page, err := render.New().Render(app.Publisher.Preview(doc).Content)
	if err != nil {
		return err
	}

	var w io.Writer = os.Stdout
	if out := cmd.String("output"); out != "" {
		f, err := os.Create(out)
		if err != nil {
			return fmt.Errorf("preview: %w", err)
		}
		defer f.Close()
		w = f
	}
	return render.WriteDocument(w, page)
}

func listHistory(ctx context.Context, cmd *cli.Command, app *internal.App) error {
	items, err := app.History.ListPublications(ctx, int(cmd.Int("limit")))
	if err != nil {
		return err
	}
	for _, p := range items {
		local := p.LocalPath
		if local == "" {
			local = "(selection)"
		}
		fmt.Fprintf(os.Stdout, "%s  %-40s  %s  %.7s\n",
			p.PublishedAt.Local().Format("2006-01-02 15:04:05"), p.RemotePath, local, p.SHA)
	}
	return nil
}

func showStatus(ctx context.Context, cmd *cli.Command, app *internal.App) error {
	states, err := app.History.Status(ctx)
	if err != nil {
		return err
	}
	out := make([]models.DocumentState, 0, len(states))
	for _, s := range states {
		if s.Dirty || cmd.Bool("all") {
			out = append(out, s)
		}
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
