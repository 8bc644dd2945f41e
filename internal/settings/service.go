package settings

import (
	"errors"

	"github.com/hashicorp/go-hclog"

	"github.com/peteski22/prior-consent/pkg/contract/addon"
)

const (
	// OptionAvailableAddons holds per-addon settings keyed by addon option key.
	OptionAvailableAddons = "available_addons"

	// OptionActivePlugins lists the plugin files currently running on the host.
	OptionActivePlugins = "active_plugins"

	// OptionInstalledPlugins lists plugin files present on the host but not necessarily running.
	OptionInstalledPlugins = "installed_plugins"
)

const (
	fieldEnabled     = "enabled"
	fieldCookieType  = "cookie_type"
	fieldPlaceholder = "placeholder"
	fieldLanguages   = "languages"
)

// Service provides typed read access to addon and widget settings.
// Every call reads the store again, operator changes apply on the next evaluation.
type Service struct {
	store  addon.SettingsStore
	logger hclog.Logger
}

// NewService wraps store. A nil store behaves as an empty one.
func NewService(store addon.SettingsStore, logger hclog.Logger) *Service {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &Service{store: store, logger: logger.Named("settings")}
}

// Store returns the underlying settings store.
func (s *Service) Store() addon.SettingsStore {
	return s.store
}

// AddonEnabled reports whether the operator switched the addon on.
// A missing entry or flag means disabled.
func (s *Service) AddonEnabled(key string) bool {
	v, ok := s.entry(OptionAvailableAddons, key)
	if !ok {
		return false
	}
	flag, _ := lookup(v, fieldEnabled)
	return truthy(flag)
}

// AddonCategories returns the stored categories for the addon, or def when
// none are stored or the stored value is malformed.
func (s *Service) AddonCategories(key string, def addon.CategorySet) addon.CategorySet {
	return s.categories(OptionAvailableAddons, key, def)
}

// AddonPlaceholder returns the addon's placeholder configuration.
// The placeholder is enabled only when its flag is stored.
func (s *Service) AddonPlaceholder(key string) addon.PlaceholderConfig {
	v, _ := s.entry(OptionAvailableAddons, key)
	flag, _ := lookup(v, fieldPlaceholder, fieldEnabled)
	return addon.PlaceholderConfig{
		Enabled:   truthy(flag),
		Languages: languages(v),
	}
}

// WidgetEnabled reports whether a widget under option is switched on.
// A widget with no stored entry at all is enabled (fresh install); a widget
// whose entry exists without the enabled flag was explicitly switched off.
func (s *Service) WidgetEnabled(option, widget string) bool {
	v, ok := s.entry(option, widget)
	if !ok {
		return true
	}
	flag, _ := lookup(v, fieldEnabled)
	return truthy(flag)
}

// WidgetCategories returns the stored categories for a widget, or def.
func (s *Service) WidgetCategories(option, widget string, def addon.CategorySet) addon.CategorySet {
	return s.categories(option, widget, def)
}

// WidgetPlaceholder returns a widget's placeholder configuration.
// Like WidgetEnabled, an absent widget entry means enabled.
func (s *Service) WidgetPlaceholder(option, widget string) addon.PlaceholderConfig {
	v, ok := s.entry(option, widget)
	if !ok {
		return addon.PlaceholderConfig{Enabled: true}
	}
	flag, _ := lookup(v, fieldPlaceholder, fieldEnabled)
	return addon.PlaceholderConfig{
		Enabled:   truthy(flag),
		Languages: languages(v),
	}
}

// HasPlaceholder reports whether the addon stores any per-language templates.
func (s *Service) HasPlaceholder(key string) bool {
	return s.AddonPlaceholder(key).HasLanguages()
}

// Placeholders returns the addon's stored per-language templates.
func (s *Service) Placeholders(key string) map[string]string {
	return s.AddonPlaceholder(key).Languages
}

// WidgetHasPlaceholder reports whether the widget stores any per-language templates.
func (s *Service) WidgetHasPlaceholder(option, widget string) bool {
	return s.WidgetPlaceholder(option, widget).HasLanguages()
}

// WidgetPlaceholders returns the widget's stored per-language templates.
func (s *Service) WidgetPlaceholders(option, widget string) map[string]string {
	return s.WidgetPlaceholder(option, widget).Languages
}

func (s *Service) entry(option, key string) (any, bool) {
	if s == nil || s.store == nil {
		return nil, false
	}
	root, ok := s.store.Option(option)
	if !ok {
		return nil, false
	}
	return lookup(root, key)
}

func (s *Service) categories(option, key string, def addon.CategorySet) addon.CategorySet {
	v, ok := s.entry(option, key)
	if !ok {
		return def
	}
	raw, ok := lookup(v, fieldCookieType)
	if !ok {
		return def
	}
	values, ok := asStrings(raw)
	if !ok {
		s.logger.Debug("stored categories are not a list, using default", "option", option, "key", key)
		return def
	}
	set, err := addon.ParseCategorySet(values)
	if err != nil {
		if errors.Is(err, addon.ErrMalformedCategories) {
			s.logger.Warn("ignoring stored categories", "option", option, "key", key, "error", err)
		}
		return def
	}
	return set
}

func languages(entry any) map[string]string {
	raw, ok := lookup(entry, fieldPlaceholder, fieldLanguages)
	if !ok {
		return nil
	}
	m, ok := asMap(raw)
	if !ok {
		return nil
	}
	out := make(map[string]string, len(m))
	for lang, v := range m {
		if text, ok := v.(string); ok {
			out[lang] = text
		}
	}
	return out
}
