package appMiddleware

import (
	"net/http"
	"strings"
	"sync/atomic"

	"github.com/FACorreiaa/go-portal-shell/internal/preference"
)

// ColorSchemeHint is the client hint carrying the viewer's light/dark preference.
const ColorSchemeHint = "Sec-CH-Prefers-Color-Scheme"

// Hints remembers the last color scheme the viewer's browser asked for.
// It is the shell's host environment preference.
type Hints struct {
	scheme atomic.Value // preference.Theme
}

// ColorScheme implements preference.HostPreference.
func (h *Hints) ColorScheme() (preference.Theme, bool) {
	t, ok := h.scheme.Load().(preference.Theme)
	return t, ok
}

// ClientHints asks browsers for the color scheme hint and records it.
func ClientHints(h *Hints) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Add("Accept-CH", ColorSchemeHint)
			w.Header().Add("Vary", ColorSchemeHint)
			if raw := r.Header.Get(ColorSchemeHint); raw != "" {
				if t, ok := preference.ParseTheme(strings.Trim(raw, `"`)); ok {
					h.scheme.Store(t)
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

// NoStore disables caching of shell responses: every navigation must be decided afresh.
func NoStore(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-store")
		next.ServeHTTP(w, r)
	})
}
