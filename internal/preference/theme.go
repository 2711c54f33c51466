package preference

import (
	"log/slog"
	"strings"

	"github.com/FACorreiaa/go-portal-shell/internal/storage"
)

// Theme is the light/dark display preference.
type Theme string

const (
	ThemeLight Theme = "light"
	ThemeDark  Theme = "dark"
)

// ThemeKey is the storage key of the theme preference.
const ThemeKey = "theme"

// HostPreference reports the theme the host environment asks for, if any.
type HostPreference func() (Theme, bool)

// ParseTheme accepts "light" or "dark", case-insensitively.
func ParseTheme(raw string) (Theme, bool) {
	switch Theme(strings.ToLower(strings.TrimSpace(raw))) {
	case ThemeLight:
		return ThemeLight, true
	case ThemeDark:
		return ThemeDark, true
	}
	return "", false
}

// ThemeStore persists the theme preference.
type ThemeStore = Store[Theme]

// NewThemeStore falls back to host's preference when nothing is persisted, then to light.
func NewThemeStore(writer *storage.Writer, logger *slog.Logger, host HostPreference) *ThemeStore {
	return NewStore(Spec[Theme]{
		Key:   ThemeKey,
		Parse: ParseTheme,
		Fallback: func() Theme {
			if host != nil {
				if t, ok := host(); ok {
					return t
				}
			}
			return ThemeLight
		},
		Toggle: func(t Theme) Theme {
			if t == ThemeDark {
				return ThemeLight
			}
			return ThemeDark
		},
	}, writer, logger)
}
