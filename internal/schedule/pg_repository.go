package schedule

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/Aerzsu/dental-clinic-sub000/internal/patient"
)

// DB is the subset of pgxpool.Pool the repository needs. pgxmock satisfies
// it in tests.
type DB interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type PgRepository struct {
	db DB
}

func NewPgRepository(db DB) *PgRepository {
	return &PgRepository{db: db}
}

const bookingColumns = `id, date, period, status, patient_type, patient_id, service_id, provider_id,
	first_name, last_name, email, phone, address, reason,
	requested_at, confirmed_at, confirmed_by, created_at, updated_at`

// Helpers

func scanCapacity(row pgx.Row) (*DateCapacity, error) {
	var c DateCapacity
	var note *string
	var createdBy *uuid.UUID

	err := row.Scan(
		&c.Date,
		&c.Morning,
		&c.Afternoon,
		&note,
		&createdBy,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrCapacityNotFound
		}
		return nil, err
	}

	if note != nil {
		c.Note = *note
	}
	c.CreatedBy = createdBy
	return &c, nil
}

func scanBooking(row pgx.Row) (*Booking, error) {
	var b Booking
	var patientID, providerID, confirmedBy *uuid.UUID
	var firstName, lastName, email, phone, address, reason *string
	var confirmedAt *time.Time

	err := row.Scan(
		&b.ID,
		&b.Date,
		&b.Period,
		&b.Status,
		&b.PatientType,
		&patientID,
		&b.ServiceID,
		&providerID,
		&firstName,
		&lastName,
		&email,
		&phone,
		&address,
		&reason,
		&b.RequestedAt,
		&confirmedAt,
		&confirmedBy,
		&b.CreatedAt,
		&b.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrBookingNotFound
		}
		return nil, err
	}

	if patientID != nil {
		b.Identity = LinkedIdentity(*patientID)
	} else {
		b.Identity = ProvisionalIdentity(provisionalFromColumns(firstName, lastName, email, phone, address))
	}
	b.ProviderID = providerID
	b.ConfirmedAt = confirmedAt
	b.ConfirmedBy = confirmedBy
	if reason != nil {
		b.Reason = *reason
	}
	return &b, nil
}

// Interface methods

func (r *PgRepository) GetCapacity(ctx context.Context, date time.Time) (*DateCapacity, error) {
	row := r.db.QueryRow(ctx, `
		SELECT date, morning_capacity, afternoon_capacity, note, created_by, created_at, updated_at
		FROM date_capacities
		WHERE date = $1
	`, date)
	return scanCapacity(row)
}

func (r *PgRepository) CreateCapacityIfAbsent(ctx context.Context, cap DateCapacity) (*DateCapacity, error) {
	_, err := r.db.Exec(ctx, `
		INSERT INTO date_capacities (date, morning_capacity, afternoon_capacity, note, created_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, now(), now())
		ON CONFLICT (date) DO NOTHING
	`, cap.Date, cap.Morning, cap.Afternoon, nullableString(cap.Note), cap.CreatedBy)
	if err != nil {
		return nil, fmt.Errorf("provision capacity: %w", err)
	}
	return r.GetCapacity(ctx, cap.Date)
}

func (r *PgRepository) UpdateCapacity(ctx context.Context, cap DateCapacity) (*DateCapacity, error) {
	row := r.db.QueryRow(ctx, `
		UPDATE date_capacities
		SET morning_capacity   = $2,
		    afternoon_capacity = $3,
		    note               = $4,
		    updated_at         = now()
		WHERE date = $1
		RETURNING date, morning_capacity, afternoon_capacity, note, created_by, created_at, updated_at
	`, cap.Date, cap.Morning, cap.Afternoon, nullableString(cap.Note))
	return scanCapacity(row)
}

func (r *PgRepository) CountBlocking(ctx context.Context, date time.Time, period Period) (int, error) {
	var count int
	err := r.db.QueryRow(ctx, `
		SELECT COUNT(*)
		FROM bookings
		WHERE date = $1
		  AND period = $2
		  AND status IN ('requested', 'confirmed', 'completed')
	`, date, period).Scan(&count)
	if err != nil {
		return 0, err
	}
	return count, nil
}

// ReserveBooking runs the check-then-insert pair as one transaction. The
// FOR UPDATE on the capacity row serializes concurrent reservations for the
// same date, so the recount inside the transaction observes every committed
// blocking booking before the insert is allowed.
func (r *PgRepository) ReserveBooking(ctx context.Context, b *Booking, defaults CapacityDefaults) (*Booking, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin reserve tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	_, err = tx.Exec(ctx, `
		INSERT INTO date_capacities (date, morning_capacity, afternoon_capacity, created_at, updated_at)
		VALUES ($1, $2, $3, now(), now())
		ON CONFLICT (date) DO NOTHING
	`, b.Date, defaults.Morning, defaults.Afternoon)
	if err != nil {
		return nil, mapConflictErr(fmt.Errorf("provision capacity: %w", err))
	}

	var morning, afternoon int
	err = tx.QueryRow(ctx, `
		SELECT morning_capacity, afternoon_capacity
		FROM date_capacities
		WHERE date = $1
		FOR UPDATE
	`, b.Date).Scan(&morning, &afternoon)
	if err != nil {
		return nil, mapConflictErr(fmt.Errorf("lock capacity row: %w", err))
	}

	capacity := afternoon
	if b.Period == PeriodMorning {
		capacity = morning
	}

	var blocking int
	err = tx.QueryRow(ctx, `
		SELECT COUNT(*)
		FROM bookings
		WHERE date = $1
		  AND period = $2
		  AND status IN ('requested', 'confirmed', 'completed')
	`, b.Date, b.Period).Scan(&blocking)
	if err != nil {
		return nil, mapConflictErr(fmt.Errorf("count blocking bookings: %w", err))
	}

	if blocking >= capacity {
		return nil, ErrNoAvailability
	}

	id := b.ID
	if id == uuid.Nil {
		id = uuid.New()
	}
	patientID, _ := identityColumns(b.Identity)
	info, _ := b.Identity.Provisional()

	row := tx.QueryRow(ctx, `
		INSERT INTO bookings (id, date, period, status, patient_type, patient_id, service_id, provider_id,
			first_name, last_name, email, phone, address, reason,
			requested_at, created_at, updated_at)
		VALUES ($1, $2, $3, 'requested', $4, $5, $6, $7,
			$8, $9, $10, $11, $12, $13,
			$14, now(), now())
		RETURNING `+bookingColumns+`
	`, id, b.Date, b.Period, b.PatientType, patientID, b.ServiceID, b.ProviderID,
		nullableString(info.FirstName), nullableString(info.LastName), nullableString(info.Email),
		nullableString(info.Phone), nullableString(info.Address), nullableString(b.Reason),
		b.RequestedAt)

	created, err := scanBooking(row)
	if err != nil {
		return nil, mapConflictErr(fmt.Errorf("insert booking: %w", err))
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, mapConflictErr(fmt.Errorf("commit reserve tx: %w", err))
	}

	return created, nil
}

func (r *PgRepository) GetBooking(ctx context.Context, id uuid.UUID) (*Booking, error) {
	row := r.db.QueryRow(ctx, `
		SELECT `+bookingColumns+`
		FROM bookings
		WHERE id = $1
	`, id)
	return scanBooking(row)
}

func (r *PgRepository) ConfirmBooking(ctx context.Context, id, patientID uuid.UUID, staffID uuid.UUID, providerID *uuid.UUID, confirmedAt time.Time) (*Booking, error) {
	row := r.db.QueryRow(ctx, `
		UPDATE bookings
		SET status       = 'confirmed',
		    patient_id   = $2,
		    provider_id  = COALESCE($3, provider_id),
		    confirmed_at = $4,
		    confirmed_by = $5,
		    first_name   = NULL,
		    last_name    = NULL,
		    email        = NULL,
		    phone        = NULL,
		    address      = NULL,
		    updated_at   = now()
		WHERE id = $1
		  AND status = 'requested'
		RETURNING `+bookingColumns+`
	`, id, patientID, providerID, confirmedAt, staffID)

	b, err := scanBooking(row)
	if err != nil {
		if errors.Is(err, ErrBookingNotFound) {
			// Either gone or already actioned by someone else.
			return nil, ErrInvalidTransition
		}
		return nil, err
	}
	return b, nil
}

func (r *PgRepository) TransitionBooking(ctx context.Context, id uuid.UUID, to BookingStatus, from ...BookingStatus) (*Booking, error) {
	fromStrs := make([]string, len(from))
	for i, s := range from {
		fromStrs[i] = string(s)
	}

	row := r.db.QueryRow(ctx, `
		UPDATE bookings
		SET status     = $2,
		    updated_at = now()
		WHERE id = $1
		  AND status = ANY($3)
		RETURNING `+bookingColumns+`
	`, id, to, fromStrs)

	b, err := scanBooking(row)
	if err != nil {
		if errors.Is(err, ErrBookingNotFound) {
			return nil, ErrInvalidTransition
		}
		return nil, err
	}
	return b, nil
}

func (r *PgRepository) ListBookingsForDate(ctx context.Context, date time.Time) ([]Booking, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+bookingColumns+`
		FROM bookings
		WHERE date = $1
		ORDER BY period, requested_at
	`, date)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectBookings(rows)
}

func (r *PgRepository) ListConfirmedForDate(ctx context.Context, date time.Time) ([]Booking, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+bookingColumns+`
		FROM bookings
		WHERE date = $1
		  AND status = 'confirmed'
		ORDER BY period, requested_at
	`, date)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectBookings(rows)
}

func (r *PgRepository) InsertEvent(ctx context.Context, ev BookingEvent) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO booking_events (event_type, booking_id, payload, created_at)
		VALUES ($1, $2, $3, COALESCE($4, now()))
	`, ev.EventType, ev.BookingID, ev.Payload, nullableTime(ev.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert booking event: %w", err)
	}
	return nil
}

func collectBookings(rows pgx.Rows) ([]Booking, error) {
	var result []Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *b)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// mapConflictErr translates storage-level serialization conflicts into the
// retryable sentinel, leaving everything else intact.
func mapConflictErr(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "40001", "40P01", "55P03": // serialization, deadlock, lock not available
			return fmt.Errorf("%w: %s", ErrReservationContended, pgErr.Code)
		}
	}
	return err
}

func identityColumns(ref IdentityRef) (patientID *uuid.UUID, linked bool) {
	if id, ok := ref.Linked(); ok {
		return &id, true
	}
	return nil, false
}

func provisionalFromColumns(firstName, lastName, email, phone, address *string) patient.Provisional {
	deref := func(s *string) string {
		if s == nil {
			return ""
		}
		return *s
	}
	return patient.Provisional{
		FirstName: deref(firstName),
		LastName:  deref(lastName),
		Email:     deref(email),
		Phone:     deref(phone),
		Address:   deref(address),
	}
}

func nullableString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
