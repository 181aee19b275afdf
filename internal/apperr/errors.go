package apperr

import "errors"

// ErrInvalid is returned when the input fails domain validation.
var ErrInvalid = errors.New("invalid input")

// ErrConflict indicates a uniqueness or state conflict (HTTP 409).
var ErrConflict = errors.New("conflict")

// ErrNotFound indicates that the requested resource does not exist.
var ErrNotFound = errors.New("not found")

// Dispatch errors.
var (
	// ErrInvalidLocation - a GeoPoint is outside the valid latitude/longitude range.
	ErrInvalidLocation = errors.New("invalid location")
	// ErrNoCourierAvailable - no available courier could be selected. Non-fatal: the request stays pending.
	ErrNoCourierAvailable = errors.New("no courier available")
	// ErrAssignmentConflict - the selected courier was claimed concurrently, twice in a row.
	ErrAssignmentConflict = errors.New("assignment conflict")
	// ErrInvalidTransition - the requested lifecycle step is out of order.
	ErrInvalidTransition = errors.New("invalid transition")
	// ErrAlreadyTerminal - the request is delivered or cancelled.
	ErrAlreadyTerminal = errors.New("already terminal")
	// ErrCourierUnavailableAtClaim - the conditional claim found the courier no longer available.
	ErrCourierUnavailableAtClaim = errors.New("courier unavailable at claim")
)
