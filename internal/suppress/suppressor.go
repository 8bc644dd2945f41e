package suppress

import (
	"github.com/hashicorp/go-hclog"

	"github.com/peteski22/prior-consent/pkg/contract/addon"
)

// ConsentChecker reports whether a category set is accepted.
type ConsentChecker interface {
	IsAccepted(set addon.CategorySet) bool
}

// Suppressor cancels scheduled third-party callbacks whose categories the
// visitor has not accepted.
// NOTE: Use New to create a Suppressor.
type Suppressor struct {
	scheduler addon.Scheduler
	consent   ConsentChecker
	logger    hclog.Logger
}

// New creates a Suppressor cancelling callbacks through scheduler.
func New(scheduler addon.Scheduler, consent ConsentChecker, logger hclog.Logger) *Suppressor {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &Suppressor{
		scheduler: scheduler,
		consent:   consent,
		logger:    logger.Named("suppressor"),
	}
}

// SuppressIfNotAccepted cancels every ref unless categories are accepted.
// It must run before the referenced callbacks fire.
// Returns the number of callbacks that were actually removed.
func (s *Suppressor) SuppressIfNotAccepted(categories addon.CategorySet, refs ...addon.CallbackRef) int {
	if s.consent != nil && s.consent.IsAccepted(categories) {
		return 0
	}
	return s.Cancel(refs...)
}

// Cancel removes refs from the scheduler without consulting consent.
// Refs that were never scheduled are skipped.
func (s *Suppressor) Cancel(refs ...addon.CallbackRef) int {
	if s.scheduler == nil {
		s.logger.Warn("no scheduler, callbacks left in place", "count", len(refs))
		return 0
	}

	var removed int
	for _, ref := range refs {
		if !s.scheduler.Cancel(ref) {
			s.logger.Debug("callback not scheduled", "callback", ref.String())
			continue
		}
		s.logger.Debug("cancelled callback", "callback", ref.String())
		removed++
	}
	return removed
}
