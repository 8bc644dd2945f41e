package consent

import (
	"github.com/peteski22/prior-consent/pkg/contract/addon"
)

var (
	_ addon.ConsentSource = (*StaticSource)(nil)
	_ addon.ConsentSource = SourceFunc(nil)
)

// SourceFunc adapts a function to addon.ConsentSource.
type SourceFunc func(categories []addon.Category) (bool, error)

// AreCategoriesAccepted calls f.
func (f SourceFunc) AreCategoriesAccepted(categories []addon.Category) (bool, error) {
	return f(categories)
}

// StaticSource accepts a fixed set of categories.
type StaticSource struct {
	accepted addon.CategorySet
}

// NewStaticSource creates a source that accepts exactly the given categories.
func NewStaticSource(accepted ...addon.Category) *StaticSource {
	return &StaticSource{accepted: addon.NewCategorySet(accepted...)}
}

// AreCategoriesAccepted reports whether all categories are in the accepted set.
func (s *StaticSource) AreCategoriesAccepted(categories []addon.Category) (bool, error) {
	for _, c := range categories {
		if !s.accepted.Contains(c) {
			return false, nil
		}
	}
	return true, nil
}
