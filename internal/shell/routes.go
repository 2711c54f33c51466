// Package shell is the HTTP face of the portal shell: every GET on a page path
// is a navigation, and a small JSON API exposes the session and preferences.
package shell

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	appLogger "github.com/FACorreiaa/go-portal-shell/app/logger"
	appMiddleware "github.com/FACorreiaa/go-portal-shell/app/middleware"
	"github.com/FACorreiaa/go-portal-shell/internal/guard"
	"github.com/FACorreiaa/go-portal-shell/internal/preference"
)

// Config contains the handlers and middleware the router mounts.
type Config struct {
	Pages       *PageHandler
	Session     *SessionHandler
	Theme       *PreferenceHandler[preference.Theme]
	Language    *PreferenceHandler[preference.Language]
	Modules     *ModulesHandler
	Guard       *guard.Guard
	Hints       *appMiddleware.Hints
	Metrics     http.Handler
	CORSOrigins []string
	Timeout     time.Duration
	Logger      *slog.Logger
}

// SetupRouter builds the shell's HTTP handler.
func SetupRouter(cfg *Config) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(appLogger.StructuredLogger(cfg.Logger))
	r.Use(middleware.Recoverer)
	if cfg.Timeout > 0 {
		r.Use(middleware.Timeout(cfg.Timeout))
	}
	r.Use(middleware.Compress(5, "text/html", "application/json"))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("pong"))
	})
	if cfg.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", cfg.Metrics)
	}
	// browsers fetch it on their own; it must not count as a navigation
	r.Get("/favicon.ico", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   cfg.CORSOrigins,
			AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
		r.Use(appMiddleware.NoStore)

		r.Route("/session", func(r chi.Router) {
			r.Get("/", cfg.Session.Get)
			r.Post("/", cfg.Session.Login)
			r.Delete("/", cfg.Session.Logout)
			r.Put("/user", cfg.Session.UpdateUser)
		})
		r.Route("/preferences", func(r chi.Router) {
			r.Get("/theme", cfg.Theme.Get)
			r.Put("/theme", cfg.Theme.Set)
			r.Post("/theme/toggle", cfg.Theme.Toggle)
			r.Get("/language", cfg.Language.Get)
			r.Put("/language", cfg.Language.Set)
			r.Post("/language/toggle", cfg.Language.Toggle)
		})
		r.Route("/modules", func(r chi.Router) {
			r.Get("/", cfg.Modules.List)
			r.Post("/{module}/reset", cfg.Modules.Reset)
		})
	})

	r.Group(func(r chi.Router) {
		r.Use(appMiddleware.ClientHints(cfg.Hints))
		r.Use(appMiddleware.NoStore)
		r.Post("/logout", cfg.Pages.Logout)
		r.Post("/preferences/theme/toggle", cfg.Pages.ToggleTheme)
		r.Post("/preferences/language/toggle", cfg.Pages.ToggleLanguage)
		r.With(cfg.Guard.Protect).Post("/modules/{module}/retry", cfg.Pages.RetryModule)
		r.Get("/*", cfg.Pages.Navigate)
	})
	return r
}
