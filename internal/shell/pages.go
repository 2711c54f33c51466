package shell

import (
	"bytes"
	"context"
	"errors"
	"html/template"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/FACorreiaa/go-portal-shell/internal/guard"
	"github.com/FACorreiaa/go-portal-shell/internal/preference"
	"github.com/FACorreiaa/go-portal-shell/internal/router"
	"github.com/FACorreiaa/go-portal-shell/internal/session"
)

// placeholderRefresh is how many seconds a placeholder page waits before the
// browser asks again.
const placeholderRefresh = 1

// Navigator is the router surface the page handler drives.
type Navigator interface {
	Navigate(ctx context.Context, loc guard.Location) router.Frame
	AwaitSettled(ctx context.Context, loc guard.Location) (router.Frame, error)
}

// PageHandler turns page requests into navigations and writes the resulting frame.
type PageHandler struct {
	navigator Navigator
	registry  *router.Registry
	session   *session.Store
	theme     *preference.ThemeStore
	language  *preference.LanguageStore
	wait      time.Duration
	logger    *slog.Logger
}

func NewPageHandler(nav Navigator, reg *router.Registry, sess *session.Store, theme *preference.ThemeStore,
	lang *preference.LanguageStore, wait time.Duration, logger *slog.Logger) *PageHandler {
	return &PageHandler{
		navigator: nav,
		registry:  reg,
		session:   sess,
		theme:     theme,
		language:  lang,
		wait:      wait,
		logger:    logger.With(slog.String("handler", "pages")),
	}
}

// Navigate serves any page path.
func (h *PageHandler) Navigate(w http.ResponseWriter, r *http.Request) {
	loc := guard.LocationFromURL(r.URL)
	f := h.frame(r.Context(), loc)

	props := h.props(f)
	p := newPage(f, props)
	l := h.logger.With(
		slog.String("request_id", middleware.GetReqID(r.Context())),
		slog.String("navigation_id", f.ID),
		slog.String("frame", f.Kind.String()),
	)

	switch f.Kind {
	case router.FrameRedirect:
		http.Redirect(w, r, f.Redirect.URL(), http.StatusSeeOther)
		return
	case router.FramePlaceholder:
		body, err := renderPart("placeholder", p)
		if err != nil {
			h.fail(w, l, err)
			return
		}
		p.Body, p.Refresh = body, placeholderRefresh
		w.Header().Set("Refresh", strconv.Itoa(placeholderRefresh))
		h.write(w, l, http.StatusOK, p)
	case router.FrameFailure:
		l.ErrorContext(r.Context(), "Navigation failed", slog.Any("error", f.Err))
		body, err := renderPart("failure", p)
		if err != nil {
			h.fail(w, l, err)
			return
		}
		p.Body = body
		h.write(w, l, http.StatusInternalServerError, p)
	case router.FrameView:
		var buf bytes.Buffer
		if err := f.Component.Render(&buf, props); err != nil {
			h.fail(w, l, err)
			return
		}
		p.Body = template.HTML(buf.String())
		h.write(w, l, http.StatusOK, p)
	}
}

// frame navigates to loc. With a wait budget a request arriving while its
// module loads may get the view instead of the placeholder.
func (h *PageHandler) frame(ctx context.Context, loc guard.Location) router.Frame {
	if h.wait <= 0 {
		return h.navigator.Navigate(ctx, loc)
	}
	ctx, cancel := context.WithTimeout(ctx, h.wait)
	defer cancel()
	f, err := h.navigator.AwaitSettled(ctx, loc)
	if err != nil && !errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, router.ErrSuperseded) {
		h.logger.DebugContext(ctx, "Stopped waiting for navigation", slog.Any("error", err))
	}
	return f
}

func (h *PageHandler) props(f router.Frame) router.Props {
	props := router.Props{
		Location: f.Location,
		Params:   f.Params,
		Theme:    string(h.theme.Get()),
		Language: string(h.language.Get()),
	}
	if u, ok := h.session.User(); ok && h.session.IsAuthenticated() {
		props.User = &u
	}
	return props
}

func (h *PageHandler) write(w http.ResponseWriter, l *slog.Logger, status int, p page) {
	var buf bytes.Buffer
	if err := renderLayout(&buf, p); err != nil {
		h.fail(w, l, err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if _, err := buf.WriteTo(w); err != nil {
		l.Warn("Failed to write page", slog.Any("error", err))
	}
}

func (h *PageHandler) fail(w http.ResponseWriter, l *slog.Logger, err error) {
	l.Error("Failed to render page", slog.Any("error", err))
	http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
}

// Logout clears the session and sends the viewer to the login page.
func (h *PageHandler) Logout(w http.ResponseWriter, r *http.Request) {
	h.session.Logout()
	http.Redirect(w, r, guard.LoginPath, http.StatusSeeOther)
}

// ToggleTheme flips the theme and returns to the referring page.
func (h *PageHandler) ToggleTheme(w http.ResponseWriter, r *http.Request) {
	h.theme.Toggle()
	http.Redirect(w, r, back(r), http.StatusSeeOther)
}

// ToggleLanguage flips the language and returns to the referring page.
func (h *PageHandler) ToggleLanguage(w http.ResponseWriter, r *http.Request) {
	h.language.Toggle()
	http.Redirect(w, r, back(r), http.StatusSeeOther)
}

// RetryModule resets a failed module and navigates back to the page that
// failed.
func (h *PageHandler) RetryModule(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "module")
	if h.registry.Reset(key) {
		h.logger.InfoContext(r.Context(), "Module retry requested", slog.String("module", key))
	}
	to := "/"
	if err := r.ParseForm(); err == nil {
		to = guard.SafeReturnPath(r.PostForm.Get(guard.ReturnParam))
	}
	http.Redirect(w, r, to, http.StatusSeeOther)
}

// back is the local path of the Referer, or "/".
func back(r *http.Request) string {
	ref := r.Referer()
	if ref == "" {
		return "/"
	}
	u, err := url.Parse(ref)
	if err != nil {
		return "/"
	}
	return guard.SafeReturnPath(guard.LocationFromURL(u).String())
}
