package schedule

import "errors"

// Validation errors: bad input shape, rejected before any transaction opens.
var (
	ErrInvalidPeriod      = errors.New("period must be morning or afternoon")
	ErrInvalidStatus      = errors.New("unrecognized booking status")
	ErrMissingService     = errors.New("a service is required")
	ErrIncompleteIdentity = errors.New("provisional identity fields are incomplete")
	ErrInvalidRange       = errors.New("invalid date range")
	ErrInvalidCapacity    = errors.New("invalid capacity value")
)

// Business-rule violations: safe to surface to the requester verbatim.
var (
	ErrPastDate           = errors.New("date must be in the future")
	ErrClosedDay          = errors.New("the clinic is closed on that day")
	ErrHoliday            = errors.New("the clinic is closed for a holiday on that date")
	ErrNoAvailability     = errors.New("no slots available for that date and period")
	ErrCancelWindowClosed = errors.New("the booking can no longer be cancelled")
	ErrInvalidTransition  = errors.New("invalid booking status transition")
)

// ErrReservationContended is a transient concurrency conflict. Distinct from
// ErrNoAvailability: the caller may retry the same request once, since the
// conflict does not imply the pool was actually exhausted.
var ErrReservationContended = errors.New("reservation contended, please retry")

// ErrIdentityConflict is an integrity violation: a booking must carry exactly
// one of a canonical patient link or provisional identity fields.
var ErrIdentityConflict = errors.New("booking must carry exactly one of patient link or provisional identity")

// Not-found conditions.
var (
	ErrBookingNotFound  = errors.New("booking not found")
	ErrCapacityNotFound = errors.New("no capacity record for that date")
)
