package addons

import "errors"

var (
	// ErrAddonNotFound is returned when a key does not name an addon in the registry.
	ErrAddonNotFound = errors.New("addon not found")

	// ErrWrongKind is returned when an addon is asked to run a mechanism it does not implement.
	ErrWrongKind = errors.New("addon does not support this operation")
)
