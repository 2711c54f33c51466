// Package modules provides the loaders behind the portal's feature modules.
// Each loader produces a router.Component the first time its route is visited.
package modules

import (
	"fmt"
	"html/template"
	"io"

	"github.com/FACorreiaa/go-portal-shell/internal/router"
)

// Page is a feature module rendered from an html/template.
type Page struct {
	name string
	tmpl *template.Template
}

var _ router.Component = (*Page)(nil)

// NewPage parses src as the template of module name.
func NewPage(name, src string) (*Page, error) {
	tmpl, err := template.New(name).Funcs(funcs).Parse(src)
	if err != nil {
		return nil, fmt.Errorf("parse module %q: %w", name, err)
	}
	return &Page{name: name, tmpl: tmpl}, nil
}

// Name is the module key the page was loaded for.
func (p *Page) Name() string { return p.name }

func (p *Page) Render(w io.Writer, props router.Props) error {
	return p.tmpl.Execute(w, props)
}

var funcs = template.FuncMap{
	"param": func(params router.Params, name string) string { return params[name] },
	"hasRole": func(props router.Props, role string) bool {
		return props.User != nil && props.User.HasRole(role)
	},
	"pt": func(props router.Props) bool { return props.Language != "en" },
}
