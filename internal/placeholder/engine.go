package placeholder

import (
	"slices"

	"github.com/hashicorp/go-hclog"
	"golang.org/x/text/language"

	"github.com/peteski22/prior-consent/internal/settings"
	"github.com/peteski22/prior-consent/pkg/contract/addon"
)

// Engine resolves the placeholder text shown in place of blocked content.
type Engine struct {
	settings *settings.Service
	language addon.LanguageSource
	logger   hclog.Logger
}

// NewEngine creates an Engine. lang may be nil, in which case only the
// language-independent templates are used.
func NewEngine(svc *settings.Service, lang addon.LanguageSource, logger hclog.Logger) *Engine {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &Engine{
		settings: svc,
		language: lang,
		logger:   logger.Named("placeholder"),
	}
}

// ResolveAddon resolves the placeholder of an addon from its stored configuration.
func (e *Engine) ResolveAddon(key, defaultTemplate, categories string) (string, bool) {
	return e.Resolve(e.settings.AddonPlaceholder(key), defaultTemplate, categories)
}

// ResolveWidget resolves the placeholder of a widget stored under option.
func (e *Engine) ResolveWidget(option, widget, defaultTemplate, categories string) (string, bool) {
	return e.Resolve(e.settings.WidgetPlaceholder(option, widget), defaultTemplate, categories)
}

// Resolve returns the merged placeholder for cfg, or false when the placeholder is disabled.
// Templates are tried in order: the current language, its closest stored
// match, the host-language entry, the stored default, then defaultTemplate.
func (e *Engine) Resolve(cfg addon.PlaceholderConfig, defaultTemplate, categories string) (string, bool) {
	if !cfg.Enabled {
		return "", false
	}
	return Merge(e.template(cfg.Languages, defaultTemplate), categories), true
}

func (e *Engine) template(langs map[string]string, defaultTemplate string) string {
	if code := e.currentLanguage(); code != "" {
		if t, ok := langs[code]; ok {
			return t
		}
		if t, ok := closest(code, langs); ok {
			return t
		}
	}
	if t, ok := langs[addon.LanguageHost]; ok && t != "" {
		return t
	}
	if t, ok := langs[addon.LanguageDefault]; ok && t != "" {
		return t
	}
	return defaultTemplate
}

func (e *Engine) currentLanguage() string {
	if e.language == nil {
		return ""
	}
	code, err := e.language.CurrentLanguage(true)
	if err != nil {
		e.logger.Debug("language unavailable, using default placeholder", "error", err)
		return ""
	}
	return code
}

// closest finds the stored template whose language best matches code, e.g. "de" for "de-AT".
func closest(code string, langs map[string]string) (string, bool) {
	want, err := language.Parse(code)
	if err != nil {
		return "", false
	}

	keys := make([]string, 0, len(langs))
	for k := range langs {
		if k == addon.LanguageDefault || k == addon.LanguageHost {
			continue
		}
		keys = append(keys, k)
	}
	slices.Sort(keys)

	var (
		tags   []language.Tag
		tagKey []string
	)
	for _, k := range keys {
		tag, err := language.Parse(k)
		if err != nil {
			continue
		}
		tags = append(tags, tag)
		tagKey = append(tagKey, k)
	}
	if len(tags) == 0 {
		return "", false
	}

	wantBase, _ := want.Base()
	for i, tag := range tags {
		if base, _ := tag.Base(); base == wantBase {
			return langs[tagKey[i]], true
		}
	}

	_, idx, conf := language.NewMatcher(tags).Match(want)
	if conf < language.High {
		return "", false
	}
	return langs[tagKey[idx]], true
}
