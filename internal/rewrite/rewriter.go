package rewrite

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/hashicorp/go-hclog"

	"github.com/peteski22/prior-consent/pkg/contract/addon"
)

// consentAttr tags markup for the client-side consent tooling.
const consentAttr = "data-cookieconsent"

var (
	scriptOpen   = regexp.MustCompile(`(?i)^<script`)
	iframeSrc    = regexp.MustCompile(`(?i)(\s)src\s*=`)
	alreadyGated = regexp.MustCompile(`(?i)\s` + consentAttr + `\s*=`)
)

// ConsentChecker reports whether a category set is accepted.
type ConsentChecker interface {
	IsAccepted(set addon.CategorySet) bool
}

// PlaceholderFunc returns the placeholder text for blocked content gated on
// categories, or false when no placeholder should be shown.
type PlaceholderFunc func(categories addon.CategorySet) (string, bool)

// Rewriter neutralizes third-party embeds in rendered markup until the
// visitor accepts the categories they need.
// NOTE: Use New to create a Rewriter.
type Rewriter struct {
	consent     ConsentChecker
	placeholder PlaceholderFunc
	logger      hclog.Logger
}

// New creates a Rewriter. A nil placeholder rewrites without any placeholder block,
// as for script tags in the document head.
func New(consent ConsentChecker, placeholder PlaceholderFunc, logger hclog.Logger) *Rewriter {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &Rewriter{
		consent:     consent,
		placeholder: placeholder,
		logger:      logger.Named("rewriter"),
	}
}

// Rewrite applies rules to content in order and returns the result.
// Content without matches is returned unchanged.
func (r *Rewriter) Rewrite(content string, rules []Rule) string {
	out, _ := r.Apply(content, rules)
	return out
}

// Apply is Rewrite that also reports how many embeds were neutralized.
func (r *Rewriter) Apply(content string, rules []Rule) (string, int) {
	var total int
	for _, rule := range rules {
		var n int
		content, n = r.applyRule(content, rule)
		total += n
	}
	return content, total
}

// applyRule rewrites each match of rule independently. Output is rebuilt
// from match positions so one rewritten embed can never be confused with another.
func (r *Rewriter) applyRule(content string, rule Rule) (string, int) {
	if rule.Pattern == nil {
		return content, 0
	}
	locs := rule.Pattern.FindAllStringIndex(content, -1)
	if len(locs) == 0 {
		return content, 0
	}

	var (
		b       strings.Builder
		last    int
		count   int
		notice  string
		noticed bool
	)
	b.Grow(len(content))

	for _, loc := range locs {
		match := content[loc[0]:loc[1]]
		b.WriteString(content[last:loc[0]])
		last = loc[1]

		if !r.shouldGate(match, rule) {
			b.WriteString(match)
			continue
		}

		inert, ok := inertMarkup(match, rule)
		if !ok {
			r.logger.Debug("could not neutralize match", "rule", rule.Name)
			b.WriteString(match)
			continue
		}

		if !noticed {
			notice = r.notice(rule.Categories)
			noticed = true
		}

		b.WriteString(inert)
		b.WriteString(notice)
		count++
	}
	b.WriteString(content[last:])

	if count > 0 {
		r.logger.Debug("neutralized embeds", "rule", rule.Name, "count", count, "categories", rule.Categories.DisplayToken())
	}

	return b.String(), count
}

func (r *Rewriter) shouldGate(match string, rule Rule) bool {
	if alreadyGated.MatchString(match) {
		return false
	}
	if !domainAllowed(match, rule.Domains) {
		r.logger.Debug("embed host not covered by rule", "rule", rule.Name)
		return false
	}
	if r.consent != nil && r.consent.IsAccepted(rule.Categories) {
		return false
	}
	return true
}

// notice builds the placeholder block appended after a neutralized embed.
// The block is always emitted, the consent tooling toggles it by class; it
// only carries text when the placeholder resolves.
func (r *Rewriter) notice(categories addon.CategorySet) string {
	if r.placeholder == nil {
		return ""
	}
	rep, ok := categories.Representative()
	if !ok {
		return ""
	}
	text, ok := r.placeholder(categories)
	if !ok {
		text = ""
	}
	return fmt.Sprintf(`<div class="cookieconsent-optout-%s">%s</div>`, rep, text)
}

// inertMarkup applies the rule's transform to a single match.
func inertMarkup(match string, rule Rule) (string, bool) {
	tag := fmt.Sprintf(`%s="%s"`, consentAttr, rule.Categories.DisplayToken())

	switch rule.Transform {
	case TransformScript:
		loc := scriptOpen.FindStringIndex(match)
		if loc == nil {
			return "", false
		}
		return match[:loc[1]] + ` type="text/plain" ` + tag + match[loc[1]:], true

	case TransformIframe:
		loc := iframeSrc.FindStringSubmatchIndex(match)
		if loc == nil {
			return "", false
		}
		// loc[2]:loc[3] is the whitespace preceding src, kept as is.
		return match[:loc[3]] + tag + ` data-src=` + match[loc[1]:], true

	default:
		return "", false
	}
}
