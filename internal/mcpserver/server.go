// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes blogpush publishing tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/blogpush/internal/apperr"
	"github.com/starford/blogpush/internal/attachment"
	"github.com/starford/blogpush/internal/document"
	"github.com/starford/blogpush/internal/history"
	"github.com/starford/blogpush/internal/publish"
)

const postFormatURI = "blogpush://post-format"

// Server wraps the MCP server with blogpush tools.
type Server struct {
	mcp         *server.MCPServer
	publisher   *publish.Publisher
	docs        *document.Service
	history     *history.DB
	attachments *attachment.Service
}

// New creates a new MCP server with all blogpush tools registered.
// attachments may be nil when object storage is not configured.
func New(pub *publish.Publisher, docs *document.Service, hist *history.DB, attachments *attachment.Service) *Server {
	s := &Server{publisher: pub, docs: docs, history: hist, attachments: attachments}

	s.mcp = server.NewMCPServer(
		"blogpush",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("publish_selection",
		mcp.WithDescription("Publish a piece of text as a new blog post. A metadata header "+
			"is generated and the post is named after the default tag and the current time."),
		mcp.WithString("text", mcp.Required(), mcp.Description("Post body in Markdown")),
	), s.publishSelection)

	s.mcp.AddTool(mcp.NewTool("publish_article",
		mcp.WithDescription("Publish a whole vault document as a blog post named after the "+
			"document. The local document's lastmod is refreshed afterwards."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Vault-relative path of the document (e.g. posts/Ideas.md)")),
	), s.publishArticle)

	s.mcp.AddTool(mcp.NewTool("preview_post",
		mcp.WithDescription("Return the exact post content publish_article would push, without publishing."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Vault-relative path of the document")),
	), s.previewPost)

	s.mcp.AddTool(mcp.NewTool("update_metadata",
		mcp.WithDescription("Add a metadata header to a document, or refresh its lastmod when it has one. "+
			"Nothing is published."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Vault-relative path of the document")),
	), s.updateMetadata)

	s.mcp.AddTool(mcp.NewTool("upload_attachment",
		mcp.WithDescription("Upload an image or PDF to object storage. Accepts a base64 data URI "+
			"(data:image/png;base64,...) or an http(s) URL. Returns a Markdown image reference "+
			"ready to paste into a post."),
		mcp.WithString("url", mcp.Required(), mcp.Description("Data URI or http(s) URL of the file")),
		mcp.WithString("filename", mcp.Description("Optional file name; derived from the URL when empty")),
	), s.uploadAttachment)

	s.mcp.AddTool(mcp.NewTool("rewrite_attachments",
		mcp.WithDescription("Upload every local image a document references and rewrite the references to their public URLs."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Vault-relative path of the document")),
	), s.rewriteAttachments)

	s.mcp.AddTool(mcp.NewTool("list_publications",
		mcp.WithDescription("List recent publications, newest first."),
		mcp.WithNumber("limit", mcp.Description("Maximum number of entries (default 20)")),
	), s.listPublications)

	s.mcp.AddTool(mcp.NewTool("get_post_format",
		mcp.WithDescription("Returns the blog post format contract. "+
			"Call this before writing content meant for publishing."),
	), s.getPostFormat)

	s.mcp.AddResource(
		mcp.NewResource(postFormatURI, "Post Format Contract",
			mcp.WithResourceDescription("Metadata header and body layout of a published post."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readPostFormatResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func jsonResult(v any) *mcp.CallToolResult {
	out, _ := json.MarshalIndent(v, "", "  ")
	return mcp.NewToolResultText(string(out))
}

func (s *Server) publishSelection(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	text, err := req.RequireString("text")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	res, err := s.publisher.PublishSelection(ctx, text)
	return publishResult(res, err), nil
}

func (s *Server) publishArticle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	doc, err := s.docs.Load(ctx, path)
	if err != nil {
		return documentError(path, err), nil
	}
	res, err := s.publisher.PublishDocument(ctx, doc)
	return publishResult(res, err), nil
}

func publishResult(res *publish.Result, err error) *mcp.CallToolResult {
	switch {
	case err != nil && res != nil:
		return mcp.NewToolResultError(publish.MsgLocalNotSynced + errors.Unwrap(err).Error())
	case err != nil:
		return mcp.NewToolResultError(publish.MsgFailed + publish.Reason(err))
	case res.Skipped:
		return mcp.NewToolResultText(publish.MsgNoContent)
	}
	return mcp.NewToolResultText(publish.MsgPublished + res.Path)
}

func documentError(path string, err error) *mcp.CallToolResult {
	if errors.Is(err, apperr.ErrNotFound) {
		return mcp.NewToolResultError(fmt.Sprintf("not found: %s", path))
	}
	return mcp.NewToolResultError(err.Error())
}

func (s *Server) previewPost(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	doc, err := s.docs.Load(ctx, path)
	if err != nil {
		return documentError(path, err), nil
	}
	return mcp.NewToolResultText(s.publisher.Preview(doc).Content), nil
}

func (s *Server) updateMetadata(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	text, err := s.docs.EnsureMetadata(ctx, path)
	if err != nil {
		return documentError(path, err), nil
	}
	return mcp.NewToolResultText(text), nil
}

func (s *Server) uploadAttachment(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if s.attachments == nil {
		return mcp.NewToolResultError(apperr.ErrNotConfigured.Error() + ": object storage"), nil
	}
	rawURL, err := req.RequireString("url")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	filename := ""
	if v, fErr := req.RequireString("filename"); fErr == nil {
		filename = v
	}
	asset, err := s.attachments.Fetch(ctx, rawURL, filename)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(asset), nil
}

func (s *Server) rewriteAttachments(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if s.attachments == nil {
		return mcp.NewToolResultError(apperr.ErrNotConfigured.Error() + ": object storage"), nil
	}
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	rw, err := s.attachments.RewriteDocument(ctx, path)
	if err != nil {
		return documentError(path, err), nil
	}
	return jsonResult(rw), nil
}

func (s *Server) listPublications(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	items, err := s.history.ListPublications(ctx, req.GetInt("limit", 20))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(items) == 0 {
		return mcp.NewToolResultText("no publications yet"), nil
	}
	return jsonResult(items), nil
}

func (s *Server) getPostFormat(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(PostFormatContract), nil
}

func (s *Server) readPostFormatResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      postFormatURI,
			MIMEType: "text/markdown",
			Text:     PostFormatContract,
		},
	}, nil
}
