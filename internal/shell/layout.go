package shell

import (
	"bytes"
	"embed"
	"html/template"
	"io"

	"github.com/FACorreiaa/go-portal-shell/internal/preference"
	"github.com/FACorreiaa/go-portal-shell/internal/router"
	"github.com/FACorreiaa/go-portal-shell/internal/session"
)

//go:embed templates/*.html
var templateFS embed.FS

var layoutTmpl = template.Must(template.ParseFS(templateFS, "templates/*.html"))

// MenuItem is one entry of the shell navigation menu.
type MenuItem struct {
	Path   string
	Label  string
	Roles  []string
	Active bool
}

type label struct{ pt, en string }

type menuEntry struct {
	path  string
	label label
	roles []string
}

// Entries without roles are shown to everyone; the others to holders of any
// listed role. Visibility is cosmetic and never gates a navigation.
var menu = []menuEntry{
	{path: "/", label: label{"Início", "Home"}},
	{path: "/cursos", label: label{"Cursos", "Courses"}},
	{path: "/meus-cursos", label: label{"Meus cursos", "My courses"}, roles: []string{"STUDENT"}},
	{path: "/minhas-aulas", label: label{"Minhas aulas", "My lessons"}},
	{path: "/agendamentos", label: label{"Agendamentos", "Bookings"}},
	{path: "/professores-disponiveis", label: label{"Professores", "Teachers"}, roles: []string{"STUDENT"}},
	{path: "/gerenciar-solicitacoes", label: label{"Solicitações", "Requests"}, roles: []string{"TEACHER", "INSTRUCTOR", "ADMIN"}},
	{path: "/meus-pagamentos", label: label{"Pagamentos", "Payments"}},
	{path: "/eventos", label: label{"Eventos", "Events"}},
	{path: "/conteudos", label: label{"Conteúdos", "Contents"}},
	{path: "/painel", label: label{"Painel", "Dashboard"}, roles: []string{"TEACHER", "INSTRUCTOR"}},
	{path: "/admin", label: label{"Administração", "Admin"}, roles: []string{"ADMIN"}},
	{path: "/notificacoes", label: label{"Notificações", "Notifications"}},
	{path: "/minha-conta", label: label{"Minha conta", "My account"}},
}

// Menu returns the entries visible to user, marking the one containing path.
func Menu(user *session.UserProfile, lang preference.Language, path string) []MenuItem {
	items := make([]MenuItem, 0, len(menu))
	for _, e := range menu {
		if !visible(e.roles, user) {
			continue
		}
		l := e.label.pt
		if lang == preference.LanguageEN {
			l = e.label.en
		}
		items = append(items, MenuItem{
			Path:   e.path,
			Label:  l,
			Roles:  e.roles,
			Active: e.path == path || (e.path != "/" && len(path) > len(e.path) && path[:len(e.path)+1] == e.path+"/"),
		})
	}
	return items
}

func visible(roles []string, user *session.UserProfile) bool {
	if len(roles) == 0 {
		return true
	}
	if user == nil {
		return false
	}
	for _, r := range roles {
		if user.HasRole(r) {
			return true
		}
	}
	return false
}

type page struct {
	Title        string
	Lang         string
	Theme        string
	PT           bool
	Refresh      int
	Chrome       bool
	NavigationID string
	Menu         []MenuItem
	User         *session.UserProfile
	Location     string
	Module       string
	Body         template.HTML
}

func newPage(f router.Frame, props router.Props) page {
	p := page{
		Title:        "Portal",
		Lang:         preference.Language(props.Language).Tag().String(),
		Theme:        props.Theme,
		PT:           props.Language != string(preference.LanguageEN),
		NavigationID: f.ID,
		User:         props.User,
		Location:     f.Location.String(),
	}
	if f.Route != nil {
		p.Title = "Portal · " + f.Route.Module
		p.Module = f.Route.Module
		p.Chrome = f.Route.Kind == router.Protected
	}
	if p.Chrome {
		p.Menu = Menu(props.User, preference.Language(props.Language), f.Location.Path)
	}
	return p
}

func renderLayout(w io.Writer, p page) error {
	return layoutTmpl.ExecuteTemplate(w, "layout", p)
}

func renderPart(name string, p page) (template.HTML, error) {
	var buf bytes.Buffer
	if err := layoutTmpl.ExecuteTemplate(&buf, name, p); err != nil {
		return "", err
	}
	return template.HTML(buf.String()), nil
}
