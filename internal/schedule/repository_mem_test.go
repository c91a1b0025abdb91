package schedule

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/Aerzsu/dental-clinic-sub000/internal/holiday"
	"github.com/Aerzsu/dental-clinic-sub000/internal/patient"
)

// memRepo is a mutex-guarded in-memory Repository with the same conditional
// semantics as the Postgres implementation, so the service can be tested
// without a database.
type memRepo struct {
	mu         sync.Mutex
	capacities map[string]*DateCapacity
	bookings   map[uuid.UUID]*Booking
	events     []BookingEvent
}

func newMemRepo() *memRepo {
	return &memRepo{
		capacities: make(map[string]*DateCapacity),
		bookings:   make(map[uuid.UUID]*Booking),
	}
}

func dayKey(d time.Time) string {
	return d.Format(dateLayout)
}

func (r *memRepo) GetCapacity(ctx context.Context, date time.Time) (*DateCapacity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.capacities[dayKey(date)]
	if !ok {
		return nil, ErrCapacityNotFound
	}
	cp := *c
	return &cp, nil
}

func (r *memRepo) CreateCapacityIfAbsent(ctx context.Context, cap DateCapacity) (*DateCapacity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.provisionLocked(cap), nil
}

func (r *memRepo) provisionLocked(cap DateCapacity) *DateCapacity {
	key := dayKey(cap.Date)
	if existing, ok := r.capacities[key]; ok {
		cp := *existing
		return &cp
	}
	cap.CreatedAt = time.Now()
	cap.UpdatedAt = cap.CreatedAt
	stored := cap
	r.capacities[key] = &stored
	cp := stored
	return &cp
}

func (r *memRepo) UpdateCapacity(ctx context.Context, cap DateCapacity) (*DateCapacity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.capacities[dayKey(cap.Date)]
	if !ok {
		return nil, ErrCapacityNotFound
	}
	existing.Morning = cap.Morning
	existing.Afternoon = cap.Afternoon
	existing.Note = cap.Note
	existing.UpdatedAt = time.Now()
	cp := *existing
	return &cp, nil
}

func (r *memRepo) CountBlocking(ctx context.Context, date time.Time, period Period) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.countBlockingLocked(date, period), nil
}

func (r *memRepo) countBlockingLocked(date time.Time, period Period) int {
	n := 0
	for _, b := range r.bookings {
		if dayKey(b.Date) == dayKey(date) && b.Period == period && b.Status.Blocking() {
			n++
		}
	}
	return n
}

func (r *memRepo) ReserveBooking(ctx context.Context, b *Booking, defaults CapacityDefaults) (*Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c := r.provisionLocked(DateCapacity{
		Date:      b.Date,
		Morning:   defaults.Morning,
		Afternoon: defaults.Afternoon,
	})

	if r.countBlockingLocked(b.Date, b.Period) >= c.For(b.Period) {
		return nil, ErrNoAvailability
	}

	stored := *b
	stored.ID = uuid.New()
	stored.CreatedAt = time.Now()
	stored.UpdatedAt = stored.CreatedAt
	r.bookings[stored.ID] = &stored

	cp := stored
	return &cp, nil
}

func (r *memRepo) GetBooking(ctx context.Context, id uuid.UUID) (*Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	b, ok := r.bookings[id]
	if !ok {
		return nil, ErrBookingNotFound
	}
	cp := *b
	return &cp, nil
}

func (r *memRepo) ConfirmBooking(ctx context.Context, id, patientID uuid.UUID, staffID uuid.UUID, providerID *uuid.UUID, confirmedAt time.Time) (*Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	b, ok := r.bookings[id]
	if !ok {
		return nil, ErrBookingNotFound
	}
	if b.Status != StatusRequested {
		return nil, ErrInvalidTransition
	}

	b.Status = StatusConfirmed
	b.Identity = LinkedIdentity(patientID)
	b.ConfirmedAt = &confirmedAt
	b.ConfirmedBy = &staffID
	if providerID != nil {
		b.ProviderID = providerID
	}
	b.UpdatedAt = time.Now()

	cp := *b
	return &cp, nil
}

func (r *memRepo) TransitionBooking(ctx context.Context, id uuid.UUID, to BookingStatus, from ...BookingStatus) (*Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	b, ok := r.bookings[id]
	if !ok {
		return nil, ErrBookingNotFound
	}

	allowed := false
	for _, f := range from {
		if b.Status == f {
			allowed = true
			break
		}
	}
	if !allowed {
		return nil, ErrInvalidTransition
	}

	b.Status = to
	b.UpdatedAt = time.Now()
	cp := *b
	return &cp, nil
}

func (r *memRepo) ListBookingsForDate(ctx context.Context, date time.Time) ([]Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []Booking
	for _, b := range r.bookings {
		if dayKey(b.Date) == dayKey(date) {
			out = append(out, *b)
		}
	}
	return out, nil
}

func (r *memRepo) ListConfirmedForDate(ctx context.Context, date time.Time) ([]Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []Booking
	for _, b := range r.bookings {
		if dayKey(b.Date) == dayKey(date) && b.Status == StatusConfirmed {
			out = append(out, *b)
		}
	}
	return out, nil
}

func (r *memRepo) InsertEvent(ctx context.Context, ev BookingEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

// localLocker serializes period callbacks in-process, standing in for the
// Redis locker.
type localLocker struct {
	mu sync.Mutex
}

func (l *localLocker) WithPeriodLock(ctx context.Context, day, period string, fn func(ctx context.Context) error) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return fn(ctx)
}

// memResolver implements IdentityResolver over an in-memory patient store
// with the same matching rules as the real resolver.
type memResolver struct {
	mu       sync.Mutex
	patients []*patient.Patient
	resolves int
}

func (r *memResolver) Resolve(ctx context.Context, info patient.Provisional) (*patient.Patient, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.resolves++

	for _, p := range r.patients {
		if strings.EqualFold(p.Email, info.Email) || patient.NormalizePhone(p.Phone) == patient.NormalizePhone(info.Phone) {
			cp := *p
			return &cp, nil
		}
	}

	created := &patient.Patient{
		ID:        uuid.New(),
		FirstName: info.FirstName,
		LastName:  info.LastName,
		Email:     info.Email,
		Phone:     info.Phone,
		Address:   info.Address,
	}
	r.patients = append(r.patients, created)
	cp := *created
	return &cp, nil
}

// holidayOn marks a fixed set of dates as holidays.
type holidayOn struct {
	dates map[string]bool
}

func (h holidayOn) IsHoliday(ctx context.Context, date time.Time) (bool, error) {
	return h.dates[dayKey(date)], nil
}

// fixedClock keeps service tests deterministic.
var testNow = time.Date(2025, time.March, 10, 9, 0, 0, 0, time.UTC) // a Monday

func newTestService(repo Repository, resolver IdentityResolver, holidays holiday.Calendar) *Service {
	settings := Settings{
		Defaults:      CapacityDefaults{Morning: 6, Afternoon: 8},
		CancelWindow:  24 * time.Hour,
		Timezone:      time.UTC,
		ClosedWeekday: time.Sunday,
		Now:           func() time.Time { return testNow },
	}
	return NewService(repo, &localLocker{}, resolver, holidays, settings, zerolog.Nop())
}
