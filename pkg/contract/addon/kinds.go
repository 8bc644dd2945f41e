package addon

const (
	// KindRewriter addons rewrite rendered markup on the text surfaces.
	KindRewriter Kind = iota

	// KindSuppressor addons cancel scheduled third-party callbacks.
	KindSuppressor

	// KindComposite addons own independently toggled widgets.
	KindComposite
)

// Kind is the gating mechanism an addon uses. The set is closed, the
// orchestrator switches over it exhaustively.
type Kind int

// String returns the kind name used in logs and span attributes.
func (k Kind) String() string {
	switch k {
	case KindRewriter:
		return "rewriter"
	case KindSuppressor:
		return "suppressor"
	case KindComposite:
		return "composite"
	default:
		return "unknown"
	}
}
