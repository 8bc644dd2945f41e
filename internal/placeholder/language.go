package placeholder

import (
	"errors"

	"golang.org/x/text/language"

	"github.com/peteski22/prior-consent/pkg/contract/addon"
)

// ErrNoLanguage is returned when no language can be determined.
var ErrNoLanguage = errors.New("no language available")

var (
	_ addon.LanguageSource = (*AcceptLanguage)(nil)
	_ addon.LanguageSource = StaticLanguage("")
)

// AcceptLanguage resolves the visitor's preferred language from an Accept-Language header.
type AcceptLanguage struct {
	preferred string
	host      string
}

// FromAcceptLanguage parses header; hostLanguage is returned when the header
// names no usable language and the caller asks for the host fallback.
func FromAcceptLanguage(header, hostLanguage string) *AcceptLanguage {
	a := &AcceptLanguage{host: hostLanguage}
	tags, _, err := language.ParseAcceptLanguage(header)
	if err == nil && len(tags) > 0 && tags[0] != language.Und {
		a.preferred = tags[0].String()
	}
	return a
}

// CurrentLanguage returns the highest-weighted language in the header.
func (a *AcceptLanguage) CurrentLanguage(useHostFallback bool) (string, error) {
	if a.preferred != "" {
		return a.preferred, nil
	}
	if useHostFallback && a.host != "" {
		return a.host, nil
	}
	return "", ErrNoLanguage
}

// StaticLanguage always reports the same language code.
type StaticLanguage string

// CurrentLanguage returns the code, or ErrNoLanguage when it is empty.
func (s StaticLanguage) CurrentLanguage(_ bool) (string, error) {
	if s == "" {
		return "", ErrNoLanguage
	}
	return string(s), nil
}
