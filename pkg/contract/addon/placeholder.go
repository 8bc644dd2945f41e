package addon

const (
	// LanguageDefault keys the operator's fallback template.
	LanguageDefault = "default"

	// LanguageHost keys the template used for whatever language the host site runs in.
	LanguageHost = "_wp"
)

// PlaceholderConfig is the stored placeholder configuration of an addon or widget.
type PlaceholderConfig struct {
	// Enabled turns placeholder output on.
	Enabled bool

	// Languages maps a language code, LanguageDefault or LanguageHost to a raw template.
	Languages map[string]string
}

// HasLanguages reports whether any per-language template is stored.
func (c PlaceholderConfig) HasLanguages() bool {
	return len(c.Languages) > 0
}
