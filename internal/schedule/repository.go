package schedule

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// CapacityDefaults are the system-wide per-period slot counts used when a
// date is provisioned lazily.
type CapacityDefaults struct {
	Morning   int
	Afternoon int
}

// Repository contains all DB interactions needed by the scheduling service.
type Repository interface {
	GetCapacity(ctx context.Context, date time.Time) (*DateCapacity, error)

	// CreateCapacityIfAbsent inserts the row unless one already exists and
	// returns the stored record either way. Safe to call redundantly.
	CreateCapacityIfAbsent(ctx context.Context, cap DateCapacity) (*DateCapacity, error)

	UpdateCapacity(ctx context.Context, cap DateCapacity) (*DateCapacity, error)

	// CountBlocking counts bookings in the blocking status set for the pool.
	CountBlocking(ctx context.Context, date time.Time, period Period) (int, error)

	// ReserveBooking atomically re-checks remaining availability and inserts
	// the booking in requested state. The capacity row is provisioned with
	// defaults when absent. Returns ErrNoAvailability when the pool is full
	// and ErrReservationContended on a storage-level conflict.
	ReserveBooking(ctx context.Context, b *Booking, defaults CapacityDefaults) (*Booking, error)

	GetBooking(ctx context.Context, id uuid.UUID) (*Booking, error)

	// ConfirmBooking applies the approve transition: requested -> confirmed,
	// links the canonical patient, clears the provisional fields, records the
	// confirming staff, and optionally assigns a provider. The update is
	// conditional on the current status, so a concurrent approve loses.
	ConfirmBooking(ctx context.Context, id, patientID uuid.UUID, staffID uuid.UUID, providerID *uuid.UUID, confirmedAt time.Time) (*Booking, error)

	// TransitionBooking moves the booking to the target status only when its
	// current status is one of from. ErrInvalidTransition otherwise.
	TransitionBooking(ctx context.Context, id uuid.UUID, to BookingStatus, from ...BookingStatus) (*Booking, error)

	ListBookingsForDate(ctx context.Context, date time.Time) ([]Booking, error)

	// ListConfirmedForDate feeds the reminder worker.
	ListConfirmedForDate(ctx context.Context, date time.Time) ([]Booking, error)

	InsertEvent(ctx context.Context, ev BookingEvent) error
}
