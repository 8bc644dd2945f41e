package rewrite

import (
	"net/url"
	"regexp"
	"slices"
	"strings"

	"golang.org/x/net/publicsuffix"
)

var srcAttr = regexp.MustCompile(`(?is)\ssrc\s*=\s*["']([^"']*)["']`)

// srcDomain returns the registrable domain (eTLD+1) of the first src attribute in tag.
func srcDomain(tag string) (string, bool) {
	m := srcAttr.FindStringSubmatch(tag)
	if m == nil {
		return "", false
	}

	raw := strings.TrimSpace(m[1])
	if strings.HasPrefix(raw, "//") {
		raw = "https:" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", false
	}
	host := strings.ToLower(u.Hostname())
	if host == "" {
		return "", false
	}

	domain, err := publicsuffix.EffectiveTLDPlusOne(host)
	if err != nil {
		return "", false
	}
	return domain, true
}

// domainAllowed reports whether tag's src belongs to one of domains. An empty list allows everything.
func domainAllowed(tag string, domains []string) bool {
	if len(domains) == 0 {
		return true
	}
	domain, ok := srcDomain(tag)
	if !ok {
		return false
	}
	return slices.Contains(domains, domain)
}
