// Package guard gates protected views on the presence of a session.
//
// The decision is synchronous and uses only the current in-memory session, so
// it is re-evaluated on every render: a session that disappears between two
// renders of the same view redirects on the second one.
package guard

import (
	"log/slog"
	"net/http"
	"net/url"
	"strings"
)

// LoginPath is where denied navigations are sent.
const LoginPath = "/login"

// ReturnParam is the query parameter carrying the remembered location.
const ReturnParam = "from"

// Session is what the guard reads. *session.Store implements it.
type Session interface {
	IsAuthenticated() bool
}

// State is the outcome of a check.
type State int

const (
	Allowed State = iota
	Denied
)

func (s State) String() string {
	if s == Allowed {
		return "allowed"
	}
	return "denied"
}

// Location is a requested path with its query string.
type Location struct {
	Path     string
	RawQuery string
}

// LocationFromURL extracts the navigable part of u.
func LocationFromURL(u *url.URL) Location {
	return Location{Path: u.Path, RawQuery: u.RawQuery}
}

// String renders the location as a local URL.
func (l Location) String() string {
	if l.RawQuery == "" {
		return l.Path
	}
	return l.Path + "?" + l.RawQuery
}

// Redirect sends the viewer to To. From, when set, is the originally requested
// location the login flow may return to.
type Redirect struct {
	To   string
	From *Location
}

// URL renders the redirect target, carrying From as ?from=.
func (r Redirect) URL() string {
	if r.From == nil {
		return r.To
	}
	return r.To + "?" + url.Values{ReturnParam: {r.From.String()}}.Encode()
}

// Decision is the result of Check. Redirect is set only when Denied.
type Decision struct {
	State    State
	Redirect *Redirect
}

// Guard decides Allowed/Denied from the session.
type Guard struct {
	session Session
	logger  *slog.Logger
}

// New returns a guard reading sess.
func New(sess Session, logger *slog.Logger) *Guard {
	return &Guard{session: sess, logger: logger.With(slog.String("component", "guard"))}
}

// Check evaluates loc against the current session.
func (g *Guard) Check(loc Location) Decision {
	if g.session.IsAuthenticated() {
		return Decision{State: Allowed}
	}
	from := loc
	g.logger.Debug("Navigation denied, redirecting to login", slog.String("from", from.String()))
	return Decision{
		State:    Denied,
		Redirect: &Redirect{To: LoginPath, From: &from},
	}
}

// Protect wraps next so that each request is checked before it runs. Form
// posts are remembered by the page they came from (the ReturnParam field),
// since the action URL itself cannot be revisited with a GET.
func (g *Guard) Protect(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		loc := LocationFromURL(r.URL)
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			loc = Location{Path: "/"}
			if u, err := url.Parse(SafeReturnPath(r.PostFormValue(ReturnParam))); err == nil {
				loc = LocationFromURL(u)
			}
		}
		d := g.Check(loc)
		if d.State == Denied {
			http.Redirect(w, r, d.Redirect.URL(), http.StatusSeeOther)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ReturnPath extracts the remembered location from a login URL query and
// sanitizes it with SafeReturnPath.
func ReturnPath(query url.Values) string {
	return SafeReturnPath(query.Get(ReturnParam))
}

// SafeReturnPath returns raw if it is a local absolute path, "/" otherwise.
func SafeReturnPath(raw string) string {
	if raw == "" || !strings.HasPrefix(raw, "/") || strings.HasPrefix(raw, "//") || strings.Contains(raw, `\`) {
		return "/"
	}
	u, err := url.Parse(raw)
	if err != nil || u.Scheme != "" || u.Host != "" {
		return "/"
	}
	return Location{Path: u.Path, RawQuery: u.RawQuery}.String()
}
