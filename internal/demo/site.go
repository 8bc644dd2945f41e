// Package demo is a small site with third-party integrations, used to show the
// consent pipeline end to end.
package demo

import (
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/hashicorp/go-hclog"

	"github.com/peteski22/prior-consent/internal/addons"
	"github.com/peteski22/prior-consent/internal/lifecycle"
	"github.com/peteski22/prior-consent/internal/pipeline"
	"github.com/peteski22/prior-consent/pkg/contract/addon"
)

// Callbacks the simulated third-party plugins schedule on every render.
var (
	PixelHead = addon.CallbackRef{Hook: addon.HookHead, Owner: "AEPC_Pixel_Scripts", Method: "pixel_init", Priority: 99}
	PixelFoot = addon.CallbackRef{Hook: addon.HookFooter, Owner: "AEPC_Pixel_Scripts", Method: "pixel_init", Priority: 1}
	Analytics = addon.CallbackRef{Hook: addon.HookHead, Owner: "WP_Analytify", Method: "analytify_add_analytics_code", Priority: 10}
	IDLFooter = addon.CallbackRef{Hook: addon.HookFooter, Owner: "Jetpack_Internet_Defense_League_Widget", Method: "footer_script", Priority: 10}
)

const (
	pixelEventsTag = `<script type='text/javascript' id='aepc-pixel-events-js' src='/static/pixel-events.js'></script>`

	// Article is the page body, with embeds from YouTube and Twitter.
	Article = `<h1>Welcome</h1>
<p>Our latest video:</p>
<iframe width="560" height="315" src="https://www.youtube.com/embed/dQw4w9WgXcQ" frameborder="0" allowfullscreen></iframe>
<blockquote class="twitter-tweet"><a href="https://twitter.com/golang/status/1">Go 1.25 is out</a></blockquote>
<script async src="https://platform.twitter.com/widgets.js" charset="utf-8"></script>`

	// Sidebar is the text widget shown next to the article.
	Sidebar = `<p>Follow us:</p>
<iframe src="https://player.vimeo.com/video/76979871" width="320" height="180"></iframe>`
)

// Schedule registers the site's third-party callbacks on h. It is meant to be
// passed to pipeline.Factory.OnRender.
func Schedule(_ *http.Request, h *lifecycle.Host) {
	h.AddAction(PixelHead, write("<script>fbq('init', '0000');</script>\n"))
	h.AddAction(PixelFoot, write("<script>fbq('track', 'PageView');</script>\n"))
	h.AddAction(Analytics, write("<script>ga('create', 'UA-0000-1', 'auto');</script>\n"))
	h.AddAction(IDLFooter, write("<script src=\"https://internetdefenseleague.org/alert.js\"></script>\n"))
	h.SetWidgetActive(addons.WidgetInternetDefenseLeague, true)
}

func write(s string) addon.Action {
	return func(w io.Writer) {
		_, _ = io.WriteString(w, s)
	}
}

// Handler renders the demo page through the request's consent render.
func Handler(logger hclog.Logger) http.HandlerFunc {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	logger = logger.Named("demo")

	return func(w http.ResponseWriter, r *http.Request) {
		render, err := pipeline.RenderFrom(r.Context())
		if err != nil {
			logger.Error("no render for request", "error", err)
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = io.WriteString(w, Page(render))
	}
}

// Page renders the full document, firing hooks and filters in host order.
func Page(render *pipeline.Render) string {
	render.Loaded()
	host := render.Host

	var b strings.Builder
	b.WriteString("<!DOCTYPE html>\n<html>\n<head>\n<title>prior-consent demo</title>\n")
	host.Do(addon.HookHead, &b)
	b.WriteString(host.ApplyFilters(addon.SurfaceScriptTag, pixelEventsTag))
	b.WriteString("\n</head>\n<body>\n<article>\n")
	b.WriteString(host.ApplyFilters(addon.SurfaceContent, Article))
	b.WriteString("\n</article>\n<aside>\n")
	b.WriteString(host.ApplyFilters(addon.SurfaceWidgetText, Sidebar))
	fmt.Fprintf(&b, "\n<div class=\"widget widget_%s\">\n", addons.WidgetInternetDefenseLeague)
	host.Do(addons.WidgetDisplayHook(addons.WidgetInternetDefenseLeague), &b)
	b.WriteString("</div>\n</aside>\n")
	host.Do(addon.HookFooter, &b)
	b.WriteString("</body>\n</html>\n")

	return b.String()
}
