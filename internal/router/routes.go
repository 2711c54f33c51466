package router

import (
	"fmt"
	"net/http"
	"path"
	"strings"

	"github.com/go-chi/chi/v5"
)

// HomePath is the landing route and the authenticated default destination.
const HomePath = "/"

// Kind classifies a route.
type Kind int

const (
	// Public routes render only without a session (login, signup, password reset).
	Public Kind = iota
	// Protected routes render through the guard.
	Protected
)

func (k Kind) String() string {
	if k == Public {
		return "public"
	}
	return "protected"
}

// Route maps a path pattern to a feature module. Patterns use static segments,
// ":name" parameters and a trailing "*" that matches any remainder.
// Exact routes match only the full pattern; a non-exact route also matches
// every path below it, and a pattern ending in "*" is never exact.
type Route struct {
	Pattern string
	Kind    Kind
	Exact   bool
	Module  string
}

// Params holds the values captured by ":name" segments. The remainder matched
// by "*" is stored under "*".
type Params map[string]string

// Table is the static route table, compiled into a chi tree. chi's
// precedence applies: static segments win over parameters, parameters over
// "*".
type Table struct {
	routes []Route
	mux    *chi.Mux
	index  map[string]int
}

// NewTable validates and compiles routes.
func NewTable(routes ...Route) (*Table, error) {
	t := &Table{
		routes: make([]Route, 0, len(routes)),
		mux:    chi.NewRouter(),
		index:  make(map[string]int, 2*len(routes)),
	}
	seen := make(map[string]struct{}, len(routes))
	for _, r := range routes {
		if !strings.HasPrefix(r.Pattern, "/") {
			return nil, fmt.Errorf("route %q: pattern must start with /", r.Pattern)
		}
		if r.Module == "" {
			return nil, fmt.Errorf("route %q: module key is required", r.Pattern)
		}
		if _, dup := seen[r.Pattern]; dup {
			return nil, fmt.Errorf("route %q: declared twice", r.Pattern)
		}
		seen[r.Pattern] = struct{}{}
		segs := strings.Split(strings.TrimPrefix(r.Pattern, "/"), "/")
		for i, seg := range segs {
			if seg == "*" && i != len(segs)-1 {
				return nil, fmt.Errorf("route %q: * must be the last segment", r.Pattern)
			}
			if strings.ContainsAny(seg, "{}") {
				return nil, fmt.Errorf("route %q: braces are not allowed", r.Pattern)
			}
			if strings.HasPrefix(seg, ":") {
				segs[i] = "{" + seg[1:] + "}"
			}
		}
		if segs[len(segs)-1] == "*" {
			r.Exact = false
			segs = segs[:len(segs)-1]
		}
		base := "/" + strings.Join(segs, "/")
		patterns := []string{base}
		if !r.Exact {
			patterns = append(patterns, strings.TrimSuffix(base, "/")+"/*")
		}
		for _, p := range patterns {
			if _, dup := t.index[p]; dup {
				return nil, fmt.Errorf("route %q: overlaps an earlier route at %q", r.Pattern, p)
			}
			if err := t.handle(p); err != nil {
				return nil, fmt.Errorf("route %q: %w", r.Pattern, err)
			}
			t.index[p] = len(t.routes)
		}
		t.routes = append(t.routes, r)
	}
	return t, nil
}

// handle registers p on the tree. chi reports malformed patterns by panicking.
func (t *Table) handle(p string) (err error) {
	defer func() {
		if v := recover(); v != nil {
			err = fmt.Errorf("%v", v)
		}
	}()
	t.mux.Get(p, http.NotFound)
	return nil
}

// MustTable is NewTable for static declarations.
func MustTable(routes ...Route) *Table {
	t, err := NewTable(routes...)
	if err != nil {
		panic(err)
	}
	return t
}

// Routes returns the entries in declaration order.
func (t *Table) Routes() []Route {
	out := make([]Route, len(t.routes))
	copy(out, t.routes)
	return out
}

// Modules returns the distinct module keys referenced by the table.
func (t *Table) Modules() []string {
	var keys []string
	seen := make(map[string]struct{})
	for _, r := range t.routes {
		if _, ok := seen[r.Module]; ok {
			continue
		}
		seen[r.Module] = struct{}{}
		keys = append(keys, r.Module)
	}
	return keys
}

// Match resolves p against the table. ok is false when only the catch-all
// applies.
func (t *Table) Match(p string) (Route, Params, bool) {
	rctx := chi.NewRouteContext()
	pattern := t.mux.Find(rctx, http.MethodGet, path.Clean("/"+p))
	i, ok := t.index[pattern]
	if !ok {
		return Route{}, nil, false
	}
	r := t.routes[i]
	var params Params
	for k, key := range rctx.URLParams.Keys {
		if params == nil {
			params = Params{}
		}
		params[key] = rctx.URLParams.Values[k]
	}
	if strings.HasSuffix(r.Pattern, "*") {
		if params == nil {
			params = Params{}
		}
		if _, ok := params["*"]; !ok {
			params["*"] = ""
		}
	} else {
		delete(params, "*")
		if len(params) == 0 {
			params = nil
		}
	}
	return r, params, true
}

// Module keys of the default route table.
const (
	ModuleAuth          = "auth"
	ModuleHome          = "home"
	ModuleBookings      = "bookings"
	ModuleDashboard     = "dashboard"
	ModuleAdmin         = "admin"
	ModuleCourses       = "courses"
	ModuleLessons       = "lessons"
	ModuleRequests      = "requests"
	ModuleFinance       = "finance"
	ModuleTeachers      = "teachers"
	ModuleEvents        = "events"
	ModuleContents      = "contents"
	ModuleSupport       = "support"
	ModuleNotifications = "notifications"
	ModuleAccount       = "account"
)

// DefaultRoutes is the route surface of the portal.
func DefaultRoutes() []Route {
	pub := func(p string) Route { return Route{Pattern: p, Kind: Public, Exact: true, Module: ModuleAuth} }
	exact := func(p, module string) Route {
		return Route{Pattern: p, Kind: Protected, Exact: true, Module: module}
	}
	prefix := func(p, module string) Route {
		return Route{Pattern: p, Kind: Protected, Module: module}
	}
	return []Route{
		pub("/login"),
		pub("/cadastro"),
		pub("/reset-senha"),

		exact("/", ModuleHome),
		exact("/agendamentos", ModuleBookings),
		prefix("/painel/*", ModuleDashboard),
		prefix("/admin/*", ModuleAdmin),
		exact("/cursos", ModuleCourses),
		exact("/cursos/:courseId", ModuleCourses),
		exact("/meus-cursos", ModuleCourses),
		exact("/minhas-aulas", ModuleLessons),
		exact("/minhas-solicitacoes", ModuleRequests),
		exact("/gerenciar-solicitacoes", ModuleRequests),
		exact("/meus-pagamentos", ModuleFinance),
		exact("/professores-disponiveis", ModuleTeachers),
		exact("/agendar-aula/:teacherId", ModuleTeachers),
		exact("/eventos", ModuleEvents),
		exact("/campeonatos", ModuleEvents),
		exact("/ranking", ModuleEvents),
		exact("/conteudos", ModuleContents),
		exact("/atendimento", ModuleSupport),
		exact("/notificacoes", ModuleNotifications),
		exact("/minha-conta", ModuleAccount),
		exact("/perfil", ModuleAccount),
	}
}

// DefaultTable compiles DefaultRoutes.
func DefaultTable() *Table { return MustTable(DefaultRoutes()...) }
