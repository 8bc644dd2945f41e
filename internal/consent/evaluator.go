package consent

import (
	"github.com/hashicorp/go-hclog"

	"github.com/peteski22/prior-consent/pkg/contract/addon"
)

// Evaluator answers whether a category set is currently accepted.
// It never caches: the visitor can change consent between two checks of the same render.
type Evaluator struct {
	source addon.ConsentSource
	logger hclog.Logger
}

// NewEvaluator creates an Evaluator querying source.
func NewEvaluator(source addon.ConsentSource, logger hclog.Logger) *Evaluator {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &Evaluator{source: source, logger: logger.Named("consent")}
}

// IsAccepted reports whether every category in set is accepted.
// The empty set is always accepted. When the consent source is missing or
// fails the answer is true, the page renders unblocked rather than broken.
func (e *Evaluator) IsAccepted(set addon.CategorySet) bool {
	if set.IsEmpty() {
		return true
	}
	if e.source == nil {
		e.logger.Warn("no consent source, failing open", "categories", set.DisplayToken())
		return true
	}

	ok, err := e.source.AreCategoriesAccepted(set.Categories())
	if err != nil {
		e.logger.Warn("consent source failed, failing open", "categories", set.DisplayToken(), "error", err)
		return true
	}

	return ok
}
