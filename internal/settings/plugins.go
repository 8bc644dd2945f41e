package settings

import (
	"slices"

	"github.com/peteski22/prior-consent/pkg/contract/addon"
)

var _ addon.PluginStateSource = (*PluginState)(nil)

// PluginState answers plugin installed/activated queries from the
// active_plugins and installed_plugins options.
type PluginState struct {
	store addon.SettingsStore
}

// NewPluginState creates a PluginState reading from store.
func NewPluginState(store addon.SettingsStore) *PluginState {
	return &PluginState{store: store}
}

// IsInstalled reports whether pluginFile is installed; an activated plugin is always installed.
func (p *PluginState) IsInstalled(pluginFile string) bool {
	return p.listed(OptionInstalledPlugins, pluginFile) || p.IsActivated(pluginFile)
}

// IsActivated reports whether pluginFile is running.
func (p *PluginState) IsActivated(pluginFile string) bool {
	return p.listed(OptionActivePlugins, pluginFile)
}

func (p *PluginState) listed(option, pluginFile string) bool {
	if p.store == nil {
		return false
	}
	v, ok := p.store.Option(option)
	if !ok {
		return false
	}
	files, ok := asStrings(v)
	if !ok {
		return false
	}
	return slices.Contains(files, pluginFile)
}
