package addons

import (
	"fmt"

	"github.com/hashicorp/go-hclog"

	"github.com/peteski22/prior-consent/internal/settings"
	"github.com/peteski22/prior-consent/pkg/contract/addon"
)

// ActivationState is the derived eligibility of an addon.
type ActivationState struct {
	Installed bool
	Activated bool
	Enabled   bool
}

// Active reports whether the addon is installed, activated and enabled.
func (s ActivationState) Active() bool {
	return s.Installed && s.Activated && s.Enabled
}

// Unavailable reports whether the host plugin is missing or not running.
func (s ActivationState) Unavailable() bool {
	return !(s.Installed && s.Activated)
}

// AvailableButDisabled reports whether the host plugin runs but the operator left the addon off.
func (s ActivationState) AvailableButDisabled() bool {
	return s.Installed && s.Activated && !s.Enabled
}

// Registry holds the static addon catalog and resolves each addon's activation state.
// NOTE: Use NewRegistry to create a Registry.
type Registry struct {
	catalog  []addon.Descriptor
	index    map[string]int
	settings *settings.Service
	plugins  addon.PluginStateSource
	logger   hclog.Logger
}

// NewRegistry builds a Registry over catalog. Keys must be unique.
func NewRegistry(
	catalog []addon.Descriptor,
	svc *settings.Service,
	plugins addon.PluginStateSource,
	logger hclog.Logger,
) (*Registry, error) {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}

	index := make(map[string]int, len(catalog))
	for i, d := range catalog {
		if d.Key == "" {
			return nil, fmt.Errorf("addon at position %d has no key", i)
		}
		if _, ok := index[d.Key]; ok {
			return nil, fmt.Errorf("duplicate addon key: '%s'", d.Key)
		}
		if d.Kind == addon.KindComposite && d.WidgetOption == "" {
			return nil, fmt.Errorf("composite addon '%s' has no widget option", d.Key)
		}
		index[d.Key] = i
	}

	return &Registry{
		catalog:  catalog,
		index:    index,
		settings: svc,
		plugins:  plugins,
		logger:   logger.Named("registry"),
	}, nil
}

// List returns every addon in catalog order.
func (r *Registry) List() []addon.Descriptor {
	out := make([]addon.Descriptor, len(r.catalog))
	copy(out, r.catalog)
	return out
}

// Get returns the addon registered under key.
func (r *Registry) Get(key string) (addon.Descriptor, error) {
	i, ok := r.index[key]
	if !ok {
		return addon.Descriptor{}, fmt.Errorf("%w: '%s'", ErrAddonNotFound, key)
	}
	return r.catalog[i], nil
}

// Active returns the addons whose activation state is active, in catalog order.
func (r *Registry) Active() []addon.Descriptor {
	return r.filter(ActivationState.Active)
}

// Unavailable returns the addons whose host plugin is missing or not running.
func (r *Registry) Unavailable() []addon.Descriptor {
	return r.filter(ActivationState.Unavailable)
}

// AvailableDisabled returns the addons that could run but are switched off.
func (r *Registry) AvailableDisabled() []addon.Descriptor {
	return r.filter(ActivationState.AvailableButDisabled)
}

func (r *Registry) filter(keep func(ActivationState) bool) []addon.Descriptor {
	var out []addon.Descriptor
	for _, d := range r.catalog {
		st := r.State(d)
		if keep(st) {
			out = append(out, d)
			continue
		}
		r.logger.Trace("addon filtered", "addon", d.Key, "installed", st.Installed, "activated", st.Activated, "enabled", st.Enabled)
	}
	return out
}

// State resolves the activation state of d.
func (r *Registry) State(d addon.Descriptor) ActivationState {
	return ActivationState{
		Installed: r.IsInstalled(d),
		Activated: r.IsActivated(d),
		Enabled:   r.IsEnabled(d),
	}
}

// IsInstalled reports whether the addon's host plugin is installed.
// Addons without a plugin file are always installed.
func (r *Registry) IsInstalled(d addon.Descriptor) bool {
	if !d.HasPluginFile() {
		return true
	}
	return r.plugins != nil && r.plugins.IsInstalled(d.PluginFile)
}

// IsActivated reports whether the addon's host plugin is running.
// Addons without a plugin file are always activated.
func (r *Registry) IsActivated(d addon.Descriptor) bool {
	if !d.HasPluginFile() {
		return true
	}
	return r.plugins != nil && r.plugins.IsActivated(d.PluginFile)
}

// IsEnabled reports whether the operator switched the addon on.
func (r *Registry) IsEnabled(d addon.Descriptor) bool {
	return r.settings.AddonEnabled(d.Key)
}

// Categories resolves the categories gating d: the stored override or its default.
func (r *Registry) Categories(d addon.Descriptor) addon.CategorySet {
	return r.settings.AddonCategories(d.Key, d.DefaultCategories)
}

// WidgetEnabled reports whether widget w of composite d is switched on.
func (r *Registry) WidgetEnabled(d addon.Descriptor, w addon.WidgetDescriptor) bool {
	return r.settings.WidgetEnabled(d.WidgetOption, w.Key)
}

// WidgetCategories resolves the categories gating widget w of composite d.
func (r *Registry) WidgetCategories(d addon.Descriptor, w addon.WidgetDescriptor) addon.CategorySet {
	return r.settings.WidgetCategories(d.WidgetOption, w.Key, w.DefaultCategories)
}

// Settings returns the settings service the registry reads from.
func (r *Registry) Settings() *settings.Service {
	return r.settings
}
