package preference

import (
	"log/slog"
	"strings"

	"golang.org/x/text/language"

	"github.com/FACorreiaa/go-portal-shell/internal/storage"
)

// Language is the UI language code.
type Language string

const (
	LanguagePT Language = "pt"
	LanguageEN Language = "en"
)

// LanguageKey is the storage key of the language preference.
const LanguageKey = "language"

// DefaultLanguage is used when nothing is persisted.
const DefaultLanguage = LanguagePT

// ParseLanguage accepts any BCP 47 tag whose base language is Portuguese or
// English ("pt-BR" and "en-US" included).
func ParseLanguage(raw string) (Language, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", false
	}
	tag, err := language.Parse(raw)
	if err != nil {
		return "", false
	}
	base, conf := tag.Base()
	if conf == language.No {
		return "", false
	}
	switch Language(base.String()) {
	case LanguagePT:
		return LanguagePT, true
	case LanguageEN:
		return LanguageEN, true
	}
	return "", false
}

// Tag returns the BCP 47 tag rendered pages should declare.
func (l Language) Tag() language.Tag {
	if l == LanguageEN {
		return language.English
	}
	return language.BrazilianPortuguese
}

// LanguageStore persists the language preference.
type LanguageStore = Store[Language]

// NewLanguageStore falls back to DefaultLanguage when nothing is persisted.
func NewLanguageStore(writer *storage.Writer, logger *slog.Logger) *LanguageStore {
	return NewStore(Spec[Language]{
		Key:      LanguageKey,
		Parse:    ParseLanguage,
		Fallback: func() Language { return DefaultLanguage },
		Toggle: func(l Language) Language {
			if l == LanguagePT {
				return LanguageEN
			}
			return LanguagePT
		},
	}, writer, logger)
}
