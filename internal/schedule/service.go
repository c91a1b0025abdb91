package schedule

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/Aerzsu/dental-clinic-sub000/internal/holiday"
	"github.com/Aerzsu/dental-clinic-sub000/internal/metrics"
	"github.com/Aerzsu/dental-clinic-sub000/internal/patient"
	redisclient "github.com/Aerzsu/dental-clinic-sub000/internal/redis"
)

const (
	EventBookingRequested = "BOOKING_REQUESTED"
	EventBookingConfirmed = "BOOKING_CONFIRMED"
	EventBookingRejected  = "BOOKING_REJECTED"
	EventBookingCancelled = "BOOKING_CANCELLED"
	EventBookingCompleted = "BOOKING_COMPLETED"
	EventBookingNoShow    = "BOOKING_NO_SHOW"
)

const dateLayout = "2006-01-02"

// IdentityResolver resolves provisional booking identities to canonical
// patients at approval time.
type IdentityResolver interface {
	Resolve(ctx context.Context, info patient.Provisional) (*patient.Patient, error)
}

// Notifier delivers booking notifications. Fire-and-forget: failures are
// logged, never surfaced.
type Notifier interface {
	BookingConfirmed(ctx context.Context, p *patient.Patient, b *Booking)
	BookingRejected(ctx context.Context, email, name string, b *Booking)
}

// Settings are the clinic scheduling rules, fixed at startup.
type Settings struct {
	Defaults      CapacityDefaults
	CancelWindow  time.Duration
	Timezone      *time.Location
	ClosedWeekday time.Weekday

	// Now overrides the clock in tests. Defaults to time.Now.
	Now func() time.Time
}

type Service struct {
	repo     Repository
	locker   redisclient.Locker
	resolver IdentityResolver
	holidays holiday.Calendar
	notifier Notifier
	metrics  *metrics.SchedulingMetrics
	log      zerolog.Logger
	settings Settings
}

func NewService(repo Repository, locker redisclient.Locker, resolver IdentityResolver, holidays holiday.Calendar, settings Settings, logger zerolog.Logger) *Service {
	if settings.Timezone == nil {
		settings.Timezone = time.Local
	}
	return &Service{
		repo:     repo,
		locker:   locker,
		resolver: resolver,
		holidays: holidays,
		settings: settings,
		log:      logger,
	}
}

func (s *Service) WithNotifier(n Notifier) *Service {
	s.notifier = n
	return s
}

func (s *Service) WithMetrics(m *metrics.SchedulingMetrics) *Service {
	s.metrics = m
	return s
}

func (s *Service) now() time.Time {
	if s.settings.Now != nil {
		return s.settings.Now().In(s.settings.Timezone)
	}
	return time.Now().In(s.settings.Timezone)
}

func (s *Service) today() time.Time {
	return startOfDay(s.now())
}

// normalizeDate pins the request's calendar day to clinic-local midnight.
func (s *Service) normalizeDate(d time.Time) time.Time {
	return dayStart(d, s.settings.Timezone)
}

// GetOrCreateCapacity returns the capacity record for the date, provisioning
// it with the configured defaults when absent. Closed days and past dates
// are never provisioned.
func (s *Service) GetOrCreateCapacity(ctx context.Context, date time.Time, requestedBy *uuid.UUID) (*DateCapacity, error) {
	date = s.normalizeDate(date)

	if date.Weekday() == s.settings.ClosedWeekday {
		return nil, ErrClosedDay
	}
	if date.Before(s.today()) {
		return nil, ErrPastDate
	}

	c, err := s.repo.GetCapacity(ctx, date)
	if err == nil {
		return c, nil
	}
	if !errors.Is(err, ErrCapacityNotFound) {
		return nil, fmt.Errorf("load capacity: %w", err)
	}

	created, err := s.repo.CreateCapacityIfAbsent(ctx, DateCapacity{
		Date:      date,
		Morning:   s.settings.Defaults.Morning,
		Afternoon: s.settings.Defaults.Afternoon,
		CreatedBy: requestedBy,
	})
	if err != nil {
		return nil, fmt.Errorf("provision capacity: %w", err)
	}
	return created, nil
}

// UpdateCapacity applies a staff capacity edit.
func (s *Service) UpdateCapacity(ctx context.Context, date time.Time, morning, afternoon int, note string, staffID uuid.UUID) (*DateCapacity, error) {
	if morning < 0 || afternoon < 0 {
		return nil, fmt.Errorf("capacity values must be non-negative: %w", ErrInvalidCapacity)
	}

	date = s.normalizeDate(date)
	if date.Weekday() == s.settings.ClosedWeekday {
		return nil, ErrClosedDay
	}

	if _, err := s.repo.CreateCapacityIfAbsent(ctx, DateCapacity{
		Date:      date,
		Morning:   s.settings.Defaults.Morning,
		Afternoon: s.settings.Defaults.Afternoon,
		CreatedBy: &staffID,
	}); err != nil {
		return nil, fmt.Errorf("ensure capacity row: %w", err)
	}

	return s.repo.UpdateCapacity(ctx, DateCapacity{
		Date:      date,
		Morning:   morning,
		Afternoon: afternoon,
		Note:      note,
	})
}

// AvailableFor computes remaining availability for the pool. Never negative;
// zero for closed days and past dates.
func (s *Service) AvailableFor(ctx context.Context, date time.Time, period Period) (int, error) {
	if !period.Valid() {
		return 0, ErrInvalidPeriod
	}

	date = s.normalizeDate(date)
	if date.Weekday() == s.settings.ClosedWeekday || date.Before(s.today()) {
		return 0, nil
	}

	c, err := s.GetOrCreateCapacity(ctx, date, nil)
	if err != nil {
		return 0, err
	}

	blocking, err := s.repo.CountBlocking(ctx, date, period)
	if err != nil {
		return 0, fmt.Errorf("count blocking bookings: %w", err)
	}

	remaining := c.For(period) - blocking
	if remaining < 0 {
		remaining = 0
	}
	return remaining, nil
}

func (s *Service) AvailableMorning(ctx context.Context, date time.Time) (int, error) {
	return s.AvailableFor(ctx, date, PeriodMorning)
}

func (s *Service) AvailableAfternoon(ctx context.Context, date time.Time) (int, error) {
	return s.AvailableFor(ctx, date, PeriodAfternoon)
}

func (s *Service) HasAvailability(ctx context.Context, date time.Time, period Period) (bool, error) {
	n, err := s.AvailableFor(ctx, date, period)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// DayAvailability is one row of the booking calendar.
type DayAvailability struct {
	Date               time.Time
	MorningAvailable   int
	MorningTotal       int
	AfternoonAvailable int
	AfternoonTotal     int
}

// AvailabilityForRange returns per-date availability for the calendar and
// staff dashboards. Closed days are omitted; past dates report zero without
// provisioning anything.
func (s *Service) AvailabilityForRange(ctx context.Context, start, end time.Time) ([]DayAvailability, error) {
	start = s.normalizeDate(start)
	end = s.normalizeDate(end)
	if end.Before(start) {
		return nil, fmt.Errorf("end date before start date: %w", ErrInvalidRange)
	}

	today := s.today()
	var result []DayAvailability

	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		if d.Weekday() == s.settings.ClosedWeekday {
			continue
		}

		if d.Before(today) {
			result = append(result, DayAvailability{Date: d})
			continue
		}

		c, err := s.GetOrCreateCapacity(ctx, d, nil)
		if err != nil {
			return nil, err
		}

		morningBlocking, err := s.repo.CountBlocking(ctx, d, PeriodMorning)
		if err != nil {
			return nil, fmt.Errorf("count morning bookings: %w", err)
		}
		afternoonBlocking, err := s.repo.CountBlocking(ctx, d, PeriodAfternoon)
		if err != nil {
			return nil, fmt.Errorf("count afternoon bookings: %w", err)
		}

		result = append(result, DayAvailability{
			Date:               d,
			MorningAvailable:   clampZero(c.Morning - morningBlocking),
			MorningTotal:       c.Morning,
			AfternoonAvailable: clampZero(c.Afternoon - afternoonBlocking),
			AfternoonTotal:     c.Afternoon,
		})
	}

	return result, nil
}

// ReserveRequest is one reservation attempt. Exactly one of PatientID or
// Provisional identifies the requester.
type ReserveRequest struct {
	Date        time.Time
	Period      Period
	ServiceID   uuid.UUID
	PatientType PatientType
	PatientID   *uuid.UUID
	Provisional *patient.Provisional
	Reason      string
}

// Reserve admits or rejects a booking request. The availability check and
// the insert run as one atomic unit per (date, period): a Redis lock keyed
// on the pool serializes attempts, and the storage transaction re-checks the
// count either way, so two racing requests for the last slot cannot both
// succeed.
func (s *Service) Reserve(ctx context.Context, req ReserveRequest) (*Booking, error) {
	if !req.Period.Valid() {
		return nil, ErrInvalidPeriod
	}
	if req.ServiceID == uuid.Nil {
		return nil, ErrMissingService
	}

	identity, err := buildIdentity(req)
	if err != nil {
		return nil, err
	}

	date := s.normalizeDate(req.Date)
	if err := s.validateBookable(ctx, date); err != nil {
		return nil, err
	}

	patientType := req.PatientType
	if patientType == "" {
		patientType = PatientNew
		if _, linked := identity.Linked(); linked {
			patientType = PatientReturning
		}
	}

	b := &Booking{
		Date:        date,
		Period:      req.Period,
		Status:      StatusRequested,
		PatientType: patientType,
		Identity:    identity,
		ServiceID:   req.ServiceID,
		Reason:      req.Reason,
		RequestedAt: s.now(),
	}

	var created *Booking
	start := time.Now()

	err = s.locker.WithPeriodLock(ctx, date.Format(dateLayout), string(req.Period), func(lockCtx context.Context) error {
		got, err := s.repo.ReserveBooking(lockCtx, b, s.settings.Defaults)
		if err != nil {
			return err
		}
		created = got
		return nil
	})

	s.metrics.ObserveReserveLatency(string(req.Period), time.Since(start).Seconds())

	if err != nil {
		switch {
		case errors.Is(err, redisclient.ErrLockNotAcquired), errors.Is(err, ErrReservationContended):
			s.metrics.ObserveReservation(string(req.Period), "contended")
			return nil, ErrReservationContended
		case errors.Is(err, ErrNoAvailability):
			s.metrics.ObserveReservation(string(req.Period), "capacity_exhausted")
			return nil, ErrNoAvailability
		default:
			s.metrics.ObserveReservation(string(req.Period), "error")
			return nil, err
		}
	}

	s.metrics.ObserveReservation(string(req.Period), "created")
	s.logEvent(ctx, created.ID, EventBookingRequested, map[string]any{
		"date":    date.Format(dateLayout),
		"period":  string(req.Period),
		"service": req.ServiceID.String(),
	})

	return created, nil
}

// GetBooking loads one booking.
func (s *Service) GetBooking(ctx context.Context, id uuid.UUID) (*Booking, error) {
	return s.repo.GetBooking(ctx, id)
}

// BookingsForDate lists every booking on a date, all statuses.
func (s *Service) BookingsForDate(ctx context.Context, date time.Time) ([]Booking, error) {
	return s.repo.ListBookingsForDate(ctx, s.normalizeDate(date))
}

// ConfirmedForDate lists confirmed bookings on a date, for reminders.
func (s *Service) ConfirmedForDate(ctx context.Context, date time.Time) ([]Booking, error) {
	return s.repo.ListConfirmedForDate(ctx, s.normalizeDate(date))
}

// validateBookable applies the cheap pre-validation rules that run before the
// race-sensitive section: the date must be strictly in the future, not the
// weekly closed day, and not a holiday.
func (s *Service) validateBookable(ctx context.Context, date time.Time) error {
	if !date.After(s.today()) {
		return ErrPastDate
	}
	if date.Weekday() == s.settings.ClosedWeekday {
		return ErrClosedDay
	}
	if s.holidays != nil {
		isHoliday, err := s.holidays.IsHoliday(ctx, date)
		if err != nil {
			return fmt.Errorf("check holiday calendar: %w", err)
		}
		if isHoliday {
			return ErrHoliday
		}
	}
	return nil
}

func buildIdentity(req ReserveRequest) (IdentityRef, error) {
	if req.PatientID != nil && req.Provisional != nil {
		return IdentityRef{}, ErrIdentityConflict
	}

	var ref IdentityRef
	switch {
	case req.PatientID != nil:
		ref = LinkedIdentity(*req.PatientID)
	case req.Provisional != nil:
		ref = ProvisionalIdentity(*req.Provisional)
	}

	if err := ref.Validate(); err != nil {
		return IdentityRef{}, err
	}
	return ref, nil
}

func (s *Service) logEvent(ctx context.Context, bookingID uuid.UUID, eventType string, payload map[string]any) {
	data, err := json.Marshal(payload)
	if err != nil {
		s.log.Warn().Err(err).Str("event", eventType).Msg("marshal event payload")
		data = nil
	}

	id := bookingID
	ev := BookingEvent{
		EventType: eventType,
		BookingID: &id,
		Payload:   data,
		CreatedAt: s.now(),
	}

	if err := s.repo.InsertEvent(ctx, ev); err != nil {
		s.log.Warn().Err(err).Str("event", eventType).Stringer("booking_id", bookingID).Msg("insert booking event")
	}
}

func clampZero(n int) int {
	if n < 0 {
		return 0
	}
	return n
}
