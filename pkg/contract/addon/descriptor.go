package addon

import "fmt"

// CallbackRef identifies a callback registered on a lifecycle hook.
// Owner and Method name the registering component the way the host knows it,
// so a reference can be built for callbacks this process never registered itself.
type CallbackRef struct {
	// Hook is the lifecycle point the callback runs on.
	Hook string

	// Owner is the component (class, package) that registered the callback.
	Owner string

	// Method is the callback name within Owner.
	Method string

	// Priority orders callbacks on the same hook, lower runs first.
	Priority int
}

// String renders the reference as Owner::Method@Hook:Priority.
func (r CallbackRef) String() string {
	return fmt.Sprintf("%s::%s@%s:%d", r.Owner, r.Method, r.Hook, r.Priority)
}

// Descriptor identifies one supported third-party integration.
// Descriptors are static catalog data, built once and never mutated.
type Descriptor struct {
	// Key is the option key, unique across the registry.
	Key string

	// Name is the human-readable integration name.
	Name string

	// PluginFile identifies the host plugin used for installed/activated checks.
	// Empty means the addon has no host dependency and is always installed and activated.
	PluginFile string

	// Kind selects the gating mechanism.
	Kind Kind

	// DefaultCategories apply when the operator stored no valid override.
	DefaultCategories CategorySet

	// DefaultPlaceholder is the compiled-in placeholder template.
	DefaultPlaceholder string

	// EntryHook and EntryPriority are where the orchestrator schedules the addon's entry point.
	EntryHook     string
	EntryPriority int

	// Callbacks are the third-party callbacks a suppressor cancels.
	Callbacks []CallbackRef

	// ScriptHandles are enqueued script handles a suppressor tags inert
	// instead of cancelling.
	ScriptHandles []string

	// WidgetOption is the settings option holding per-widget configuration (composite only).
	WidgetOption string

	// Widgets are the sub-integrations of a composite addon.
	Widgets []WidgetDescriptor
}

// HasPluginFile reports whether the addon depends on a detectable host plugin.
func (d Descriptor) HasPluginFile() bool {
	return d.PluginFile != ""
}

// Widget returns the widget with the given key.
func (d Descriptor) Widget(key string) (WidgetDescriptor, bool) {
	for _, w := range d.Widgets {
		if w.Key == key {
			return w, true
		}
	}
	return WidgetDescriptor{}, false
}

// WidgetDescriptor is a sub-integration exposed as an independent toggle under a composite addon.
type WidgetDescriptor struct {
	// Key is the widget option name inside the parent's WidgetOption.
	Key string

	// Label is the human-readable widget name.
	Label string

	DefaultCategories  CategorySet
	DefaultPlaceholder string

	// SuppressHook and SuppressPriority schedule the consent check; the priority
	// must be lower than that of every entry in Callbacks on the same hook.
	SuppressHook     string
	SuppressPriority int

	// Callbacks are the widget's own scheduled callbacks to cancel.
	Callbacks []CallbackRef

	// DisplayHook is where the widget placeholder is printed.
	DisplayHook string
}
