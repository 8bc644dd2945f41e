package rewrite

import (
	"regexp"

	"github.com/peteski22/prior-consent/pkg/contract/addon"
)

const (
	// TransformScript keeps a script tag but marks it non-executable until consent is given.
	TransformScript Transform = iota

	// TransformIframe moves the iframe src into a non-loading attribute.
	TransformIframe
)

// Transform selects how a matched embed is made inert.
type Transform int

// String returns the transform name.
func (t Transform) String() string {
	switch t {
	case TransformScript:
		return "script"
	case TransformIframe:
		return "iframe"
	default:
		return "unknown"
	}
}

// Rule pairs a pattern for one class of third-party embed with the
// transform that neutralizes it and the categories gating it.
type Rule struct {
	// Name identifies the rule in logs.
	Name string

	// Pattern matches a complete embed element. It should be case-insensitive
	// and let '.' span newlines.
	Pattern *regexp.Regexp

	Transform Transform

	// Categories must all be accepted for the embed to load.
	Categories addon.CategorySet

	// Domains, when set, restricts matches to embeds whose src belongs to one
	// of these registrable domains.
	Domains []string
}

var (
	twitterWidgetPattern = regexp.MustCompile(
		`(?is)<script[^>]*\ssrc=["'][^"']*platform\.twitter\.com/widgets\.js[^"']*["'][^>]*>.*?</script>`)

	videoIframePattern = regexp.MustCompile(
		`(?is)<iframe[^>]*\ssrc=["'][^"']*(?:facebook\.com|youtu\.be|youtube\.com|youtube-nocookie\.com|player\.vimeo\.com)/[^>]*>.*?</iframe>`)
)

// TwitterWidgetRule gates the Twitter widgets.js loader.
func TwitterWidgetRule(categories addon.CategorySet) Rule {
	return Rule{
		Name:       "twitter-widget-script",
		Pattern:    twitterWidgetPattern,
		Transform:  TransformScript,
		Categories: categories,
		Domains:    []string{"twitter.com"},
	}
}

// VideoIframeRule gates Facebook, YouTube and Vimeo iframes.
func VideoIframeRule(categories addon.CategorySet) Rule {
	return Rule{
		Name:       "video-iframe",
		Pattern:    videoIframePattern,
		Transform:  TransformIframe,
		Categories: categories,
		Domains:    []string{"facebook.com", "youtu.be", "youtube.com", "youtube-nocookie.com", "vimeo.com"},
	}
}

// ScriptHandleRule gates the script tag the host emits for an enqueued
// script handle, identified by its "<handle>-js" id attribute.
func ScriptHandleRule(handle string, categories addon.CategorySet) Rule {
	return Rule{
		Name: "script-handle:" + handle,
		Pattern: regexp.MustCompile(
			`(?is)<script[^>]*\sid=["']` + regexp.QuoteMeta(handle) + `-js["'][^>]*>.*?</script>`),
		Transform:  TransformScript,
		Categories: categories,
	}
}

// EmbedRules returns the built-in embed rules, in the order they are applied.
func EmbedRules(categories addon.CategorySet) []Rule {
	return []Rule{
		TwitterWidgetRule(categories),
		VideoIframeRule(categories),
	}
}
