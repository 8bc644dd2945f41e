package addon

import "errors"

// ErrMalformedCategories is returned when a stored category list is not a valid set.
var ErrMalformedCategories = errors.New("malformed category list")
