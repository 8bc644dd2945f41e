package addon

import "io"

// SettingsStore is the operator key/value settings backend.
type SettingsStore interface {
	// Option returns the structured value stored under key.
	// Maps decode as map[string]any and lists as []any.
	Option(key string) (any, bool)
}

// ConsentSource reports the visitor's current consent state.
type ConsentSource interface {
	// AreCategoriesAccepted reports whether every category is accepted.
	AreCategoriesAccepted(categories []Category) (bool, error)
}

// PluginStateSource reports whether host plugins are present and running.
type PluginStateSource interface {
	IsInstalled(pluginFile string) bool
	IsActivated(pluginFile string) bool
}

// LanguageSource resolves the active language code.
type LanguageSource interface {
	// CurrentLanguage returns a language code such as "en" or "de-AT".
	// When useHostFallback is true the host language is returned if the
	// consent tool has no language of its own.
	CurrentLanguage(useHostFallback bool) (string, error)
}

// Scheduler cancels previously scheduled callbacks.
type Scheduler interface {
	// Cancel removes the callback and reports whether it was registered.
	Cancel(ref CallbackRef) bool
}

// Action is a callback run at a lifecycle hook; it may write markup to w.
type Action func(w io.Writer)

// Filter transforms the text of a surface.
type Filter func(content string) string

// LifecycleHost invokes registered callbacks at fixed points of a page render.
type LifecycleHost interface {
	Scheduler

	// AddAction schedules fn at ref.Hook with ref.Priority.
	AddAction(ref CallbackRef, fn Action)

	// AddFilter registers fn against surface with the given priority.
	AddFilter(surface Surface, priority int, fn Filter)

	// WidgetActive reports whether the widget is placed on the page being rendered.
	WidgetActive(widget string) bool
}
