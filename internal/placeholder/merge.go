package placeholder

import "strings"

// Merge tokens understood in placeholder templates.
const (
	// TokenCategories is replaced by the category display token.
	TokenCategories = "%s"

	// TokenRenewOpen starts a link that reopens the consent banner.
	TokenRenewOpen = "[renew_consent]"

	// TokenRenewClose ends the renew link.
	TokenRenewClose = "[/renew_consent]"
)

const (
	renewAnchorOpen  = `<a href="javascript:Cookiebot.renew()">`
	renewAnchorClose = `</a>`
)

// Merge substitutes every merge token in template. Tokens are replaced in a
// fixed order: categories, then the renew link opener, then its closer.
func Merge(template, categories string) string {
	out := strings.ReplaceAll(template, TokenCategories, categories)
	out = strings.ReplaceAll(out, TokenRenewOpen, renewAnchorOpen)
	return strings.ReplaceAll(out, TokenRenewClose, renewAnchorClose)
}
