package schedule

import (
	"time"

	"github.com/google/uuid"

	"github.com/Aerzsu/dental-clinic-sub000/internal/patient"
)

// Period is one of the two daily booking windows. Each carries its own
// independently tracked capacity.
type Period string

const (
	PeriodMorning   Period = "morning"
	PeriodAfternoon Period = "afternoon"
)

func (p Period) Valid() bool {
	return p == PeriodMorning || p == PeriodAfternoon
}

func ParsePeriod(s string) (Period, error) {
	p := Period(s)
	if !p.Valid() {
		return "", ErrInvalidPeriod
	}
	return p, nil
}

type BookingStatus string

const (
	StatusRequested BookingStatus = "requested"
	StatusConfirmed BookingStatus = "confirmed"
	StatusRejected  BookingStatus = "rejected"
	StatusCancelled BookingStatus = "cancelled"
	StatusNoShow    BookingStatus = "no_show"
	StatusCompleted BookingStatus = "completed"
)

// Blocking reports whether a booking in this status counts against period
// capacity. Rejected, cancelled and no-show bookings free their slot.
func (s BookingStatus) Blocking() bool {
	switch s {
	case StatusRequested, StatusConfirmed, StatusCompleted:
		return true
	}
	return false
}

// Terminal statuses admit no further transitions.
func (s BookingStatus) Terminal() bool {
	switch s {
	case StatusRejected, StatusCancelled, StatusNoShow, StatusCompleted:
		return true
	}
	return false
}

func (s BookingStatus) Valid() bool {
	switch s {
	case StatusRequested, StatusConfirmed, StatusRejected, StatusCancelled, StatusNoShow, StatusCompleted:
		return true
	}
	return false
}

// BlockingStatuses is the set used in availability counts, in SQL array form.
var BlockingStatuses = []BookingStatus{StatusRequested, StatusConfirmed, StatusCompleted}

type PatientType string

const (
	PatientNew       PatientType = "new"
	PatientReturning PatientType = "returning"
)

// DateCapacity is the per-calendar-date slot pool. Availability is always
// derived by counting blocking bookings against it, never by decrementing a
// counter, so the ledger cannot drift.
type DateCapacity struct {
	Date      time.Time // midnight, clinic-local
	Morning   int
	Afternoon int
	Note      string
	CreatedBy *uuid.UUID
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (c *DateCapacity) For(p Period) int {
	if p == PeriodMorning {
		return c.Morning
	}
	return c.Afternoon
}

// IdentityRef is the booking's claim on an identity: either a link to a
// canonical patient record, or the provisional fields captured from the
// requester. Exactly one side is ever set.
type IdentityRef struct {
	patientID   *uuid.UUID
	provisional *patient.Provisional
}

func LinkedIdentity(patientID uuid.UUID) IdentityRef {
	return IdentityRef{patientID: &patientID}
}

func ProvisionalIdentity(info patient.Provisional) IdentityRef {
	return IdentityRef{provisional: &info}
}

// Linked returns the canonical patient ID, if resolved.
func (r IdentityRef) Linked() (uuid.UUID, bool) {
	if r.patientID == nil {
		return uuid.Nil, false
	}
	return *r.patientID, true
}

// Provisional returns the captured identity fields, if not yet resolved.
func (r IdentityRef) Provisional() (patient.Provisional, bool) {
	if r.provisional == nil {
		return patient.Provisional{}, false
	}
	return *r.provisional, true
}

// Validate enforces the exactly-one invariant.
func (r IdentityRef) Validate() error {
	switch {
	case r.patientID != nil && r.provisional != nil:
		return ErrIdentityConflict
	case r.patientID == nil && r.provisional == nil:
		return ErrIdentityConflict
	case r.provisional != nil && !r.provisional.Complete():
		return ErrIncompleteIdentity
	}
	return nil
}

// Booking is one patient's claim on one (date, period) pair.
type Booking struct {
	ID          uuid.UUID
	Date        time.Time // midnight, clinic-local
	Period      Period
	Status      BookingStatus
	PatientType PatientType
	Identity    IdentityRef
	ServiceID   uuid.UUID
	ProviderID  *uuid.UUID
	Reason      string
	RequestedAt time.Time
	ConfirmedAt *time.Time
	ConfirmedBy *uuid.UUID
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (b *Booking) BlocksCapacity() bool {
	return b.Status.Blocking()
}

// IsPast reports whether the booking's date is before today in now's zone.
// The stored date's own zone is ignored: only the calendar day matters.
func (b *Booking) IsPast(now time.Time) bool {
	return dayStart(b.Date, now.Location()).Before(startOfDay(now))
}

// CanBeCancelled holds when the booking is still actionable and its date is
// further out than the cancellation window.
func (b *Booking) CanBeCancelled(now time.Time, window time.Duration) bool {
	if b.Status != StatusRequested && b.Status != StatusConfirmed {
		return false
	}
	return dayStart(b.Date, now.Location()).After(now.Add(window))
}

// DisplayName is the provisional requester name while unresolved. Callers
// with a hydrated detail should prefer the canonical patient's name.
func (b *Booking) DisplayName() string {
	if info, ok := b.Identity.Provisional(); ok {
		return info.FullName()
	}
	return ""
}

// BookingDetail is a booking hydrated with its referenced records.
type BookingDetail struct {
	Booking
	Patient      *patient.Patient
	ServiceName  string
	ProviderName string
}

func (d *BookingDetail) DisplayName() string {
	if d.Patient != nil {
		return d.Patient.FullName()
	}
	return d.Booking.DisplayName()
}

// BookingEvent is an audit record written fire-and-forget on lifecycle
// changes.
type BookingEvent struct {
	ID        int64
	EventType string
	BookingID *uuid.UUID
	Payload   []byte
	CreatedAt time.Time
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// dayStart pins t's calendar day to midnight in loc.
func dayStart(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}
