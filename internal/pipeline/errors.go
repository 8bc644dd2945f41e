package pipeline

import "errors"

var (
	// ErrAddonFault is recorded when an addon panics while being evaluated.
	ErrAddonFault = errors.New("addon evaluation failed")

	// ErrNoRender is returned when a request context carries no render.
	ErrNoRender = errors.New("no consent render in context")
)
