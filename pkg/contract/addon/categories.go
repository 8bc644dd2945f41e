package addon

import (
	"fmt"
	"strings"
)

const (
	// CategoryPreferences covers cookies that remember user choices such as language or region.
	CategoryPreferences Category = "preferences"

	// CategoryStatistics covers anonymous usage measurement.
	CategoryStatistics Category = "statistics"

	// CategoryMarketing covers cross-site tracking and advertising.
	CategoryMarketing Category = "marketing"
)

// Category is a consent purpose the visitor accepts or declines independently.
type Category string

// canonicalOrder ranks categories for Representative, strictest purpose first.
var canonicalOrder = []Category{
	CategoryMarketing,
	CategoryStatistics,
	CategoryPreferences,
}

// Valid reports whether c belongs to the fixed category vocabulary.
func (c Category) Valid() bool {
	for _, known := range canonicalOrder {
		if c == known {
			return true
		}
	}
	return false
}

// CategorySet is an ordered, duplicate-free set of categories.
// The zero value is the empty set, which every consent source accepts.
// NOTE: CategorySet values are immutable, methods never modify the receiver.
type CategorySet struct {
	ids []Category
}

// NewCategorySet builds a set from ids, keeping first-seen order and dropping duplicates.
func NewCategorySet(ids ...Category) CategorySet {
	var s CategorySet
	for _, id := range ids {
		if !s.Contains(id) {
			s.ids = append(s.ids, id)
		}
	}
	return s
}

// ParseCategorySet builds a set from stored identifiers.
// Any identifier outside the vocabulary makes the whole list malformed.
func ParseCategorySet(values []string) (CategorySet, error) {
	ids := make([]Category, 0, len(values))
	for _, v := range values {
		c := Category(strings.ToLower(strings.TrimSpace(v)))
		if !c.Valid() {
			return CategorySet{}, fmt.Errorf("%w: unknown category %q", ErrMalformedCategories, v)
		}
		ids = append(ids, c)
	}
	return NewCategorySet(ids...), nil
}

// Len returns the number of categories in the set.
func (s CategorySet) Len() int { return len(s.ids) }

// IsEmpty reports whether the set has no categories.
func (s CategorySet) IsEmpty() bool { return len(s.ids) == 0 }

// Contains reports whether c is a member of the set.
func (s CategorySet) Contains(c Category) bool {
	for _, id := range s.ids {
		if id == c {
			return true
		}
	}
	return false
}

// Union returns the categories of s followed by those of other not already in s.
func (s CategorySet) Union(other CategorySet) CategorySet {
	return NewCategorySet(append(s.Categories(), other.ids...)...)
}

// Equal reports whether both sets hold the same categories, ignoring order.
func (s CategorySet) Equal(other CategorySet) bool {
	if s.Len() != other.Len() {
		return false
	}
	for _, id := range s.ids {
		if !other.Contains(id) {
			return false
		}
	}
	return true
}

// Categories returns a copy of the members in set order.
func (s CategorySet) Categories() []Category {
	out := make([]Category, len(s.ids))
	copy(out, s.ids)
	return out
}

// Strings returns the members as plain strings in set order.
func (s CategorySet) Strings() []string {
	out := make([]string, len(s.ids))
	for i, id := range s.ids {
		out[i] = string(id)
	}
	return out
}

// DisplayToken joins the members for interpolation into placeholder text and
// data-cookieconsent attributes, e.g. "marketing, statistics".
func (s CategorySet) DisplayToken() string {
	return strings.Join(s.Strings(), ", ")
}

// String implements fmt.Stringer.
func (s CategorySet) String() string {
	return s.DisplayToken()
}

// Representative picks the single category used to tag opt-out markup
// (cookieconsent-optout-<category>). The choice is the first member in
// canonical order so identical sets always render identical markup.
// It returns false for the empty set.
func (s CategorySet) Representative() (Category, bool) {
	for _, c := range canonicalOrder {
		if s.Contains(c) {
			return c, true
		}
	}
	if len(s.ids) > 0 {
		return s.ids[0], true
	}
	return "", false
}
