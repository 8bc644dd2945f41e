package addons

import "github.com/peteski22/prior-consent/pkg/contract/addon"

// Addon option keys.
const (
	KeyEmbedAutocorrect = "embed_autocorrect"
	KeyPixelCaffeine    = "pixel_caffeine"
	KeyAnalytify        = "analytify"
	KeyJetpack          = "jetpack"
)

// WidgetInternetDefenseLeague is the Jetpack Internet Defense League widget key.
const WidgetInternetDefenseLeague = "internet_defense_league"

// JetpackWidgetOption is the settings option holding Jetpack widget configuration.
const JetpackWidgetOption = "jetpack_addon"

const videoPlaceholder = "Please accept [renew_consent]%s[/renew_consent] cookies to watch this video."

// DefaultCatalog returns the built-in integrations in registry order.
func DefaultCatalog() []addon.Descriptor {
	return []addon.Descriptor{
		{
			Key:                KeyEmbedAutocorrect,
			Name:               "Embed autocorrect",
			Kind:               addon.KindRewriter,
			DefaultCategories:  addon.NewCategorySet(addon.CategoryMarketing, addon.CategoryStatistics),
			DefaultPlaceholder: videoPlaceholder,
			EntryHook:          addon.HookLoaded,
			EntryPriority:      addon.DefaultPriority,
		},
		{
			Key:                KeyPixelCaffeine,
			Name:               "Pixel Caffeine",
			PluginFile:         "pixel-caffeine/pixel-caffeine.php",
			Kind:               addon.KindSuppressor,
			DefaultCategories:  addon.NewCategorySet(addon.CategoryMarketing),
			DefaultPlaceholder: videoPlaceholder,
			EntryHook:          addon.HookLoaded,
			EntryPriority:      5,
			Callbacks: []addon.CallbackRef{
				{Hook: addon.HookHead, Owner: "AEPC_Pixel_Scripts", Method: "pixel_init", Priority: 99},
				{Hook: addon.HookFooter, Owner: "AEPC_Pixel_Scripts", Method: "pixel_init", Priority: 1},
			},
			ScriptHandles: []string{"aepc-pixel-events"},
		},
		{
			Key:                KeyAnalytify,
			Name:               "Analytify",
			PluginFile:         "wp-analytify/wp-analytify.php",
			Kind:               addon.KindSuppressor,
			DefaultCategories:  addon.NewCategorySet(addon.CategoryStatistics),
			DefaultPlaceholder: videoPlaceholder,
			EntryHook:          addon.HookLoaded,
			EntryPriority:      5,
			Callbacks: []addon.CallbackRef{
				{Hook: addon.HookHead, Owner: "WP_Analytify", Method: "analytify_add_analytics_code", Priority: addon.DefaultPriority},
			},
		},
		{
			Key:           KeyJetpack,
			Name:          "Jetpack",
			PluginFile:    "jetpack/jetpack.php",
			Kind:          addon.KindComposite,
			EntryHook:     addon.HookLoaded,
			EntryPriority: addon.DefaultPriority,
			WidgetOption:  JetpackWidgetOption,
			Widgets: []addon.WidgetDescriptor{
				{
					Key:                WidgetInternetDefenseLeague,
					Label:              "Internet defense league",
					DefaultCategories:  addon.NewCategorySet(addon.CategoryMarketing),
					DefaultPlaceholder: "Please accept [renew_consent]%s[/renew_consent] cookies to enable internet defense league.",
					SuppressHook:       addon.HookFooter,
					SuppressPriority:   9,
					Callbacks: []addon.CallbackRef{
						{Hook: addon.HookFooter, Owner: "Jetpack_Internet_Defense_League_Widget", Method: "footer_script", Priority: addon.DefaultPriority},
					},
					DisplayHook: WidgetDisplayHook(WidgetInternetDefenseLeague),
				},
			},
		},
	}
}

// WidgetDisplayHook is the hook a host fires while rendering the given widget.
func WidgetDisplayHook(widget string) string {
	return "jetpack_widget_view:" + widget
}
