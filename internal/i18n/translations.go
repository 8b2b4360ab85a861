// Package i18n holds the message catalogue every user-visible text is
// rendered from.
package i18n

import (
	"embed"
	"fmt"
	"log/slog"

	"github.com/nicksnyder/go-i18n/v2/i18n"
	"github.com/pelletier/go-toml/v2"
	"golang.org/x/text/language"
)

//go:embed active.*.toml
var localeFS embed.FS

var catalogueFiles = []string{"active.en.toml", "active.pt.toml"}

// Translator is a thin wrapper around go-i18n's Bundle/Localizer bound to a
// single configured locale, falling back to English.
type Translator struct {
	localizer *i18n.Localizer
	tag       language.Tag
}

// NewTranslator loads the embedded catalogue for locale (e.g. "pt").
func NewTranslator(locale string) (*Translator, error) {
	tag, err := language.Parse(locale)
	if err != nil {
		return nil, fmt.Errorf("invalid locale %q: %w", locale, err)
	}

	bundle := i18n.NewBundle(language.English)
	bundle.RegisterUnmarshalFunc("toml", toml.Unmarshal)
	for _, file := range catalogueFiles {
		if _, err := bundle.LoadMessageFileFS(localeFS, file); err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", file, err)
		}
	}

	return &Translator{
		localizer: i18n.NewLocalizer(bundle, tag.String(), language.English.String()),
		tag:       tag,
	}, nil
}

// Locale returns the tag the translator was built for.
func (t *Translator) Locale() language.Tag {
	return t.tag
}

// T renders the message identified by key. Missing keys render as the key
// itself so a broken catalogue never blocks a send.
func (t *Translator) T(key string, data map[string]any) string {
	return t.localize(&i18n.LocalizeConfig{MessageID: key, TemplateData: data})
}

// Plural renders key using the plural form selected by count. count is also
// available to the template as .Count.
func (t *Translator) Plural(key string, count int, data map[string]any) string {
	merged := make(map[string]any, len(data)+1)
	for k, v := range data {
		merged[k] = v
	}
	merged["Count"] = count
	return t.localize(&i18n.LocalizeConfig{MessageID: key, PluralCount: count, TemplateData: merged})
}

func (t *Translator) localize(cfg *i18n.LocalizeConfig) string {
	if cfg.MessageID == "" {
		return ""
	}
	msg, err := t.localizer.Localize(cfg)
	if err != nil {
		slog.Warn("i18n: localize failed", "key", cfg.MessageID, "locale", t.tag.String(), "error", err)
		return cfg.MessageID
	}
	return msg
}
