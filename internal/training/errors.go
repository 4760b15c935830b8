package training

import "github.com/jhellman/mesoapp/internal/errors"

// Error kinds surfaced by the training package. Handlers map these to HTTP
// status codes; everything else is treated as an internal error.
var (
	// ErrNotFound indicates the referenced entity does not exist.
	ErrNotFound = errors.NewSentinel("not found")
	// ErrValidation indicates malformed input such as negative actuals.
	ErrValidation = errors.NewSentinel("validation failed")
	// ErrInvalidTransition indicates a lifecycle method was invoked from a
	// state that does not permit it.
	ErrInvalidTransition = errors.NewSentinel("invalid transition")
	// ErrConflict indicates an optimistic-concurrency precondition failed at
	// write time and the operation should be retried against fresh state.
	ErrConflict = errors.NewSentinel("conflict")
)
