// Package render turns a post into HTML for local preview.
package render

import (
	"bytes"
	"fmt"
	"html/template"
	"io"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/renderer/html"

	"github.com/starford/blogpush/internal/metadata"
)

// Page is a rendered post.
type Page struct {
	Meta metadata.Metadata
	HTML template.HTML
}

// Renderer converts post content with GFM extensions. It is safe for
// concurrent use.
type Renderer struct {
	engine goldmark.Markdown
}

// New creates a Renderer.
func New() *Renderer {
	return &Renderer{
		engine: goldmark.New(
			goldmark.WithExtensions(extension.GFM, extension.Footnote),
			goldmark.WithParserOptions(parser.WithAutoHeadingID()),
			goldmark.WithRendererOptions(html.WithUnsafe()),
		),
	}
}

// Render parses the metadata header of content and converts the body.
func (r *Renderer) Render(content string) (*Page, error) {
	meta, body, err := metadata.Parse(content)
	if err != nil {
		return nil, fmt.Errorf("render: %w", err)
	}
	var buf bytes.Buffer
	if err := r.engine.Convert([]byte(body), &buf); err != nil {
		return nil, fmt.Errorf("render: convert: %w", err)
	}
	return &Page{Meta: meta, HTML: template.HTML(buf.String())}, nil
}

var pageTmpl = template.Must(template.New("page").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>{{.Meta.Title}}</title>
</head>
<body>
<article>
<header>
<h1>{{.Meta.Title}}</h1>
<p>{{.Meta.Date}}{{if .Meta.Tags}} · {{range $i, $t := .Meta.Tags}}{{if $i}}, {{end}}{{$t}}{{end}}{{end}}</p>
</header>
{{.HTML}}
</article>
</body>
</html>
`))

// WriteDocument writes p as a standalone HTML document.
func WriteDocument(w io.Writer, p *Page) error {
	return pageTmpl.Execute(w, p)
}
