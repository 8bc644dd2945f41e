package consent

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"

	"github.com/peteski22/prior-consent/pkg/contract/addon"
)

// CookieName is the cookie the consent banner stores the visitor's choices in.
const CookieName = "CookieConsent"

// notRequired is the cookie value written when the visitor's region needs no consent.
const notRequired = "-1"

// ErrMalformedCookie is returned when the consent cookie cannot be read.
var ErrMalformedCookie = errors.New("malformed consent cookie")

var cookieFlag = regexp.MustCompile(`(\w+)\s*:\s*(true|false)`)

var _ addon.ConsentSource = (*CookieSource)(nil)

// CookieSource reports consent recorded in the consent banner cookie, e.g.
//
//	{stamp:'...',necessary:true,preferences:true,statistics:false,marketing:false,method:'explicit',ver:1}
type CookieSource struct {
	accepted    map[addon.Category]bool
	notRequired bool
	err         error
}

// ParseCookie reads a raw (possibly URL-encoded) cookie value.
// An empty value means the visitor has not answered yet, nothing is accepted.
func ParseCookie(raw string) (*CookieSource, error) {
	s := &CookieSource{accepted: make(map[addon.Category]bool)}

	value := strings.TrimSpace(raw)
	if value == "" {
		return s, nil
	}
	if decoded, err := url.QueryUnescape(value); err == nil {
		value = decoded
	}
	if value == notRequired {
		s.notRequired = true
		return s, nil
	}
	if !strings.HasPrefix(value, "{") || !strings.HasSuffix(value, "}") {
		return nil, fmt.Errorf("%w: %q", ErrMalformedCookie, raw)
	}

	var found bool
	for _, m := range cookieFlag.FindAllStringSubmatch(value, -1) {
		c := addon.Category(m[1])
		if !c.Valid() {
			continue
		}
		found = true
		s.accepted[c] = m[2] == "true"
	}
	if !found {
		return nil, fmt.Errorf("%w: no category flags in %q", ErrMalformedCookie, raw)
	}

	return s, nil
}

// FromRequest builds a source from the request's consent cookie.
// A malformed cookie yields a source whose queries fail, so evaluation fails open.
func FromRequest(r *http.Request) *CookieSource {
	c, err := r.Cookie(CookieName)
	if err != nil {
		return &CookieSource{accepted: make(map[addon.Category]bool)}
	}
	s, err := ParseCookie(c.Value)
	if err != nil {
		return &CookieSource{err: err}
	}
	return s
}

// AreCategoriesAccepted reports whether the cookie accepts every category.
func (s *CookieSource) AreCategoriesAccepted(categories []addon.Category) (bool, error) {
	if s.err != nil {
		return false, s.err
	}
	if s.notRequired {
		return true, nil
	}
	for _, c := range categories {
		if !s.accepted[c] {
			return false, nil
		}
	}
	return true, nil
}
