package monitor

import "errors"

// Coarse error kinds exposed to callers. Each wrapped error keeps the
// underlying cause on the chain so root causes stay diagnosable while
// callers switch on a stable kind with errors.Is.
var (
	// ErrValidation indicates malformed arguments; never retried internally.
	ErrValidation = errors.New("monitor: invalid request")

	// ErrNotFound indicates an operation against an unknown event id.
	ErrNotFound = errors.New("monitor: event not found")

	// ErrStore indicates a datastore failure in the primary path.
	ErrStore = errors.New("monitor: store operation failed")
)
