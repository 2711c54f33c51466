package modules

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"
	"io"
	"io/fs"
	"sort"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"

	"github.com/FACorreiaa/go-portal-shell/internal/router"
)

//go:embed content/*.md
var contentFS embed.FS

// Content is the file system holding the bundled markdown articles.
func Content() fs.FS {
	sub, err := fs.Sub(contentFS, "content")
	if err != nil {
		panic(err)
	}
	return sub
}

var md = goldmark.New(
	goldmark.WithExtensions(extension.GFM),
	goldmark.WithRendererOptions(html.WithHardWraps()),
)

const articlesTemplate = `<section class="module module-{{.Module}}">
<h1>{{if .Pt}}Conteúdos{{else}}Content{{end}}</h1>
{{range .Articles}}<article id="{{.Slug}}">{{.Body}}</article>
{{end}}</section>`

// MarkdownLoader converts every *.md file of FS into one content page.
// Conversion happens once, on first load.
type MarkdownLoader struct {
	FS     fs.FS
	Module string
}

var _ router.Loader = MarkdownLoader{}

type article struct {
	Slug string
	Body template.HTML
}

func (l MarkdownLoader) Load(ctx context.Context) (router.Component, error) {
	names, err := fs.Glob(l.FS, "*.md")
	if err != nil {
		return nil, fmt.Errorf("list markdown for %q: %w", l.Module, err)
	}
	sort.Strings(names)

	articles := make([]article, 0, len(names))
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		src, err := fs.ReadFile(l.FS, name)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", name, err)
		}
		var buf bytes.Buffer
		if err := md.Convert(src, &buf); err != nil {
			return nil, fmt.Errorf("convert %s: %w", name, err)
		}
		articles = append(articles, article{
			Slug: strings.TrimSuffix(name, ".md"),
			// goldmark escapes raw HTML unless html.WithUnsafe is set
			Body: template.HTML(buf.String()),
		})
	}

	tmpl, err := template.New(l.Module).Parse(articlesTemplate)
	if err != nil {
		return nil, err
	}
	return &contentPage{module: l.Module, tmpl: tmpl, articles: articles}, nil
}

type contentPage struct {
	module   string
	tmpl     *template.Template
	articles []article
}

func (c *contentPage) Render(w io.Writer, props router.Props) error {
	return c.tmpl.Execute(w, struct {
		Module   string
		Pt       bool
		Articles []article
	}{c.module, props.Language != "en", c.articles})
}
