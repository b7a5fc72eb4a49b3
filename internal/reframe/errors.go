package reframe

import "errors"

// Sentinel errors returned by the reframer.
var (
	// ErrNotSupported is returned by Process when a blocking-reference
	// packet arrives in a mode that must queue it. The reframer stays in
	// this state until it is discarded.
	ErrNotSupported = errors.New("reframe: blocking packets cannot be queued in this mode")
	ErrUnknownInput = errors.New("reframe: input not configured")
	ErrBadOption    = errors.New("reframe: invalid option")
)
