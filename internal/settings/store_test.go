package settings

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleSettings = `
available_addons:
  embed_autocorrect:
    enabled: "1"
    cookie_type: [marketing]
    placeholder:
      enabled: "1"
      languages:
        default: "Please accept [renew_consent]%s[/renew_consent] cookies."
active_plugins:
  - jetpack/jetpack.php
`

func writeSettings(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "settings.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestNewFileStore_RequiresPath(t *testing.T) {
	_, err := NewFileStore("", nil)
	require.ErrorIs(t, err, ErrNoSettingsFile)
}

func TestFileStore_Load(t *testing.T) {
	store, err := NewFileStore(writeSettings(t, sampleSettings), nil)
	require.NoError(t, err)

	_, ok := store.Option(OptionAvailableAddons)
	assert.False(t, ok, "nothing is available before Load")

	require.NoError(t, store.Load())

	svc := NewService(store, nil)
	assert.True(t, svc.AddonEnabled("embed_autocorrect"))
	assert.Equal(t, "marketing", svc.AddonCategories("embed_autocorrect", defaultSet()).DisplayToken())
	assert.True(t, svc.AddonPlaceholder("embed_autocorrect").Enabled)
	assert.True(t, NewPluginState(store).IsActivated("jetpack/jetpack.php"))
}

func TestFileStore_LoadKeepsPreviousOnError(t *testing.T) {
	path := writeSettings(t, sampleSettings)
	store, err := NewFileStore(path, nil)
	require.NoError(t, err)
	require.NoError(t, store.Load())

	require.NoError(t, os.WriteFile(path, []byte("available_addons: [unclosed"), 0o600))
	require.Error(t, store.Load())

	assert.True(t, NewService(store, nil).AddonEnabled("embed_autocorrect"))
}

func TestFileStore_LoadMissingFile(t *testing.T) {
	store, err := NewFileStore(filepath.Join(t.TempDir(), "nope.yaml"), nil)
	require.NoError(t, err)
	require.Error(t, store.Load())
}
