package pipeline

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/peteski22/prior-consent/internal/addons"
	"github.com/peteski22/prior-consent/internal/consent"
	"github.com/peteski22/prior-consent/internal/lifecycle"
	"github.com/peteski22/prior-consent/internal/placeholder"
	"github.com/peteski22/prior-consent/internal/settings"
	"github.com/peteski22/prior-consent/pkg/contract/addon"
)

const youtubeEmbed = `<iframe width="560" height="315" src="https://www.youtube.com/embed/abc123" frameborder="0"></iframe>`

var (
	pixelHead = addon.CallbackRef{Hook: addon.HookHead, Owner: "AEPC_Pixel_Scripts", Method: "pixel_init", Priority: 99}
	pixelFoot = addon.CallbackRef{Hook: addon.HookFooter, Owner: "AEPC_Pixel_Scripts", Method: "pixel_init", Priority: 1}
	analytify = addon.CallbackRef{Hook: addon.HookHead, Owner: "WP_Analytify", Method: "analytify_add_analytics_code", Priority: 10}
	idlFooter = addon.CallbackRef{Hook: addon.HookFooter, Owner: "Jetpack_Internet_Defense_League_Widget", Method: "footer_script", Priority: 10}
)

// siteOptions enables every built-in addon with its host plugin running.
func siteOptions() map[string]any {
	return map[string]any{
		settings.OptionAvailableAddons: map[string]any{
			addons.KeyEmbedAutocorrect: map[string]any{
				"enabled":     true,
				"placeholder": map[string]any{"enabled": true},
			},
			addons.KeyPixelCaffeine: map[string]any{"enabled": true},
			addons.KeyAnalytify:     map[string]any{"enabled": true},
			addons.KeyJetpack:       map[string]any{"enabled": true},
		},
		settings.OptionActivePlugins: []any{
			"pixel-caffeine/pixel-caffeine.php",
			"wp-analytify/wp-analytify.php",
			"jetpack/jetpack.php",
		},
	}
}

type fixture struct {
	host *lifecycle.Host
	orch *Orchestrator
}

func newFixture(t *testing.T, options map[string]any, source addon.ConsentSource) *fixture {
	t.Helper()

	store := settings.NewMemoryStore(options)
	svc := settings.NewService(store, nil)
	registry, err := addons.NewRegistry(addons.DefaultCatalog(), svc, settings.NewPluginState(store), nil)
	require.NoError(t, err)

	host := lifecycle.NewHost(nil)
	host.AddAction(pixelHead, writeString("<script>fbq('init')</script>"))
	host.AddAction(pixelFoot, writeString("<script>fbq('track')</script>"))
	host.AddAction(analytify, writeString("<script>ga('create')</script>"))
	host.AddAction(idlFooter, writeString("<script>idl()</script>"))

	var evaluator *consent.Evaluator
	if source != nil {
		evaluator = consent.NewEvaluator(source, nil)
	}
	engine := placeholder.NewEngine(svc, placeholder.StaticLanguage("en"), nil)

	orch, err := NewOrchestrator(host, registry, evaluator, engine, nil)
	require.NoError(t, err)

	return &fixture{host: host, orch: orch}
}

func writeString(s string) addon.Action {
	return func(w io.Writer) { _, _ = io.WriteString(w, s) }
}

func (f *fixture) render(t *testing.T) {
	t.Helper()
	f.orch.Load(context.Background())
	f.host.Do(addon.HookLoaded, io.Discard)
}

func (f *fixture) output(hook string) string {
	var b strings.Builder
	f.host.Do(hook, &b)
	return b.String()
}

func TestLoad_SchedulesOnlyActiveAddons(t *testing.T) {
	opts := siteOptions()
	opts[settings.OptionActivePlugins] = []any{"pixel-caffeine/pixel-caffeine.php"}
	f := newFixture(t, opts, consent.NewStaticSource())

	n := f.orch.Load(context.Background())

	require.Equal(t, 2, n)
	assert.Equal(t, []addon.CallbackRef{
		{Hook: addon.HookLoaded, Owner: entryOwner, Method: addons.KeyPixelCaffeine, Priority: 5},
		{Hook: addon.HookLoaded, Owner: entryOwner, Method: addons.KeyEmbedAutocorrect, Priority: addon.DefaultPriority},
	}, f.host.Actions(addon.HookLoaded))
}

func TestRewriter_GatesBothSurfacesWithoutConsent(t *testing.T) {
	f := newFixture(t, siteOptions(), consent.NewStaticSource())
	f.render(t)

	for _, surface := range addon.TextSurfaces {
		got := f.host.ApplyFilters(surface, youtubeEmbed)
		assert.Contains(t, got, `data-cookieconsent="marketing, statistics" data-src="https://www.youtube.com/embed/abc123"`, surface)
		assert.Contains(t, got, `<div class="cookieconsent-optout-marketing">Please accept <a href="javascript:Cookiebot.renew()">marketing, statistics</a> cookies to watch this video.</div>`, surface)
	}
}

func TestRewriter_DefaultConfigEmitsEmptyPlaceholderBlock(t *testing.T) {
	opts := siteOptions()
	opts[settings.OptionAvailableAddons].(map[string]any)[addons.KeyEmbedAutocorrect] = map[string]any{"enabled": true}
	f := newFixture(t, opts, consent.NewStaticSource())
	f.render(t)

	got := f.host.ApplyFilters(addon.SurfaceContent, youtubeEmbed)
	assert.Contains(t, got, `data-src="https://www.youtube.com/embed/abc123"`)
	assert.True(t, strings.HasSuffix(got, `</iframe><div class="cookieconsent-optout-marketing"></div>`))
}

func TestRewriter_RunsAfterOtherFilters(t *testing.T) {
	f := newFixture(t, siteOptions(), consent.NewStaticSource())
	f.host.AddFilter(addon.SurfaceContent, addon.DefaultPriority, func(string) string { return youtubeEmbed })
	f.render(t)

	got := f.host.ApplyFilters(addon.SurfaceContent, "[video id=abc123]")
	assert.Contains(t, got, `data-src="https://www.youtube.com/embed/abc123"`)
}

func TestRewriter_AcceptedRegistersNothing(t *testing.T) {
	f := newFixture(t, siteOptions(), consent.NewStaticSource(addon.CategoryMarketing, addon.CategoryStatistics))
	f.render(t)

	assert.Equal(t, youtubeEmbed, f.host.ApplyFilters(addon.SurfaceContent, youtubeEmbed))
	assert.Equal(t, youtubeEmbed, f.host.ApplyFilters(addon.SurfaceWidgetText, youtubeEmbed))
}

func TestRewriter_ConsentCheckedOncePerRender(t *testing.T) {
	opts := siteOptions()
	opts[settings.OptionActivePlugins] = []any{}

	var calls int
	f := newFixture(t, opts, consent.SourceFunc(func([]addon.Category) (bool, error) {
		calls++
		return false, nil
	}))
	f.render(t)

	content := youtubeEmbed + youtubeEmbed
	f.host.ApplyFilters(addon.SurfaceContent, content)
	f.host.ApplyFilters(addon.SurfaceWidgetText, content)

	assert.Equal(t, 1, calls)
}

func TestSuppressor_CancelsCallbacksWithoutConsent(t *testing.T) {
	f := newFixture(t, siteOptions(), consent.NewStaticSource(addon.CategoryPreferences))
	f.render(t)

	assert.False(t, f.host.Scheduled(pixelHead))
	assert.False(t, f.host.Scheduled(pixelFoot))
	assert.False(t, f.host.Scheduled(analytify))
	assert.Empty(t, f.output(addon.HookHead))
}

func TestSuppressor_LeavesCallbacksWithConsent(t *testing.T) {
	f := newFixture(t, siteOptions(), consent.NewStaticSource(addon.CategoryStatistics))
	f.render(t)

	assert.False(t, f.host.Scheduled(pixelHead), "marketing withheld")
	assert.True(t, f.host.Scheduled(analytify), "statistics accepted")
	assert.Equal(t, "<script>ga('create')</script>", f.output(addon.HookHead))
}

func TestSuppressor_TagsEnqueuedScripts(t *testing.T) {
	f := newFixture(t, siteOptions(), consent.NewStaticSource())
	f.render(t)

	tag := `<script id="aepc-pixel-events-js" src="https://example.org/pixel-events.js"></script>`
	got := f.host.ApplyFilters(addon.SurfaceScriptTag, tag)

	assert.True(t, strings.HasPrefix(got, `<script type="text/plain" data-cookieconsent="marketing" id="aepc-pixel-events-js"`))
}

func TestComposite_WidgetSuppressedWithPlaceholder(t *testing.T) {
	opts := siteOptions()
	opts[addons.JetpackWidgetOption] = map[string]any{
		addons.WidgetInternetDefenseLeague: map[string]any{
			"enabled":     true,
			"cookie_type": []any{"marketing"},
			"placeholder": map[string]any{
				"enabled":   true,
				"languages": map[string]any{"en": "Accept [renew_consent]%s[/renew_consent] to join."},
			},
		},
	}
	f := newFixture(t, opts, consent.NewStaticSource(addon.CategoryStatistics))
	f.host.SetWidgetActive(addons.WidgetInternetDefenseLeague, true)
	f.render(t)

	require.True(t, f.host.Scheduled(idlFooter), "cancelled when the footer runs, not before")

	footer := f.output(addon.HookFooter)
	assert.NotContains(t, footer, "idl()")
	assert.False(t, f.host.Scheduled(idlFooter))

	display := f.output(addons.WidgetDisplayHook(addons.WidgetInternetDefenseLeague))
	assert.Equal(t, `<div class="cookieconsent-optout-marketing">Accept <a href="javascript:Cookiebot.renew()">marketing</a> to join.</div>`, display)
}

func TestComposite_FreshInstallWidgetGatedWithDefaultPlaceholder(t *testing.T) {
	f := newFixture(t, siteOptions(), consent.NewStaticSource())
	f.host.SetWidgetActive(addons.WidgetInternetDefenseLeague, true)
	f.render(t)

	assert.NotContains(t, f.output(addon.HookFooter), "idl()")
	assert.Contains(t, f.output(addons.WidgetDisplayHook(addons.WidgetInternetDefenseLeague)), "enable internet defense league.")
}

func TestComposite_InactiveWidgetUntouched(t *testing.T) {
	f := newFixture(t, siteOptions(), consent.NewStaticSource())
	f.render(t)

	assert.Contains(t, f.output(addon.HookFooter), "idl()")
	assert.Empty(t, f.output(addons.WidgetDisplayHook(addons.WidgetInternetDefenseLeague)))
}

func TestComposite_DisabledWidgetUntouched(t *testing.T) {
	opts := siteOptions()
	opts[addons.JetpackWidgetOption] = map[string]any{
		addons.WidgetInternetDefenseLeague: map[string]any{"cookie_type": []any{"marketing"}},
	}
	f := newFixture(t, opts, consent.NewStaticSource())
	f.host.SetWidgetActive(addons.WidgetInternetDefenseLeague, true)
	f.render(t)

	assert.Contains(t, f.output(addon.HookFooter), "idl()")
}

func TestFaultInOneAddonDoesNotBlockOthers(t *testing.T) {
	f := newFixture(t, siteOptions(), consent.SourceFunc(func(cats []addon.Category) (bool, error) {
		for _, c := range cats {
			if c == addon.CategoryStatistics && len(cats) == 1 {
				panic("analytics consent lookup exploded")
			}
		}
		return false, nil
	}))
	f.render(t)

	assert.True(t, f.host.Scheduled(analytify), "faulty addon left as is")
	assert.False(t, f.host.Scheduled(pixelHead), "other addons still suppressed")
	assert.Contains(t, f.host.ApplyFilters(addon.SurfaceContent, youtubeEmbed), "data-src=")
}

func TestWorstCase_RendersUnmodified(t *testing.T) {
	f := newFixture(t, siteOptions(), consent.SourceFunc(func([]addon.Category) (bool, error) {
		return false, errors.New("consent service unreachable")
	}))
	f.render(t)

	assert.Equal(t, youtubeEmbed, f.host.ApplyFilters(addon.SurfaceContent, youtubeEmbed))
	assert.True(t, f.host.Scheduled(pixelHead))
	assert.True(t, f.host.Scheduled(analytify))
}

func TestWorstCase_NoConsentSource(t *testing.T) {
	f := newFixture(t, siteOptions(), nil)
	f.render(t)

	assert.Equal(t, youtubeEmbed, f.host.ApplyFilters(addon.SurfaceContent, youtubeEmbed))
	assert.True(t, f.host.Scheduled(pixelFoot))
}

func TestRewriteContent(t *testing.T) {
	f := newFixture(t, siteOptions(), consent.NewStaticSource())

	got, err := f.orch.RewriteContent(context.Background(), addons.KeyEmbedAutocorrect, youtubeEmbed)
	require.NoError(t, err)
	assert.Contains(t, got, `data-src="https://www.youtube.com/embed/abc123"`)

	_, err = f.orch.RewriteContent(context.Background(), "nope", youtubeEmbed)
	require.ErrorIs(t, err, addons.ErrAddonNotFound)

	got, err = f.orch.RewriteContent(context.Background(), addons.KeyPixelCaffeine, youtubeEmbed)
	require.ErrorIs(t, err, addons.ErrWrongKind)
	assert.Equal(t, youtubeEmbed, got)
}

func TestRewriteContent_NoMatchesUnchanged(t *testing.T) {
	f := newFixture(t, siteOptions(), consent.NewStaticSource())

	got, err := f.orch.RewriteContent(context.Background(), addons.KeyEmbedAutocorrect, "<p>plain</p>")
	require.NoError(t, err)
	assert.Equal(t, "<p>plain</p>", got)
}

func TestSuppress(t *testing.T) {
	f := newFixture(t, siteOptions(), consent.NewStaticSource())

	n, err := f.orch.Suppress(context.Background(), addons.KeyPixelCaffeine)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	_, err = f.orch.Suppress(context.Background(), addons.KeyEmbedAutocorrect)
	require.ErrorIs(t, err, addons.ErrWrongKind)

	_, err = f.orch.Suppress(context.Background(), "nope")
	require.ErrorIs(t, err, addons.ErrAddonNotFound)
}

func TestNewOrchestrator_RequiresHostAndRegistry(t *testing.T) {
	_, err := NewOrchestrator(nil, nil, nil, nil, nil)
	require.Error(t, err)

	_, err = NewOrchestrator(lifecycle.NewHost(nil), nil, nil, nil, nil)
	require.Error(t, err)
}
