package modules

import (
	"context"
	"embed"
	"fmt"
	"io/fs"

	"github.com/FACorreiaa/go-portal-shell/internal/router"
)

//go:embed templates/*.html
var templateFS embed.FS

// Templates is the file system holding the bundled module templates.
func Templates() fs.FS {
	sub, err := fs.Sub(templateFS, "templates")
	if err != nil {
		panic(err)
	}
	return sub
}

// TemplateLoader reads <module>.html from an fs.FS when the module is first needed.
type TemplateLoader struct {
	FS     fs.FS
	Module string
}

var _ router.Loader = TemplateLoader{}

func (l TemplateLoader) Load(ctx context.Context) (router.Component, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	src, err := fs.ReadFile(l.FS, l.Module+".html")
	if err != nil {
		return nil, fmt.Errorf("read template for %q: %w", l.Module, err)
	}
	return NewPage(l.Module, string(src))
}
