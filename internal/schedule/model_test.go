package schedule

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/Aerzsu/dental-clinic-sub000/internal/patient"
)

func TestBookingStatusBlocking(t *testing.T) {
	blocking := map[BookingStatus]bool{
		StatusRequested: true,
		StatusConfirmed: true,
		StatusCompleted: true,
		StatusRejected:  false,
		StatusCancelled: false,
		StatusNoShow:    false,
	}

	for status, want := range blocking {
		if got := status.Blocking(); got != want {
			t.Errorf("%s.Blocking() = %v, want %v", status, got, want)
		}
	}
}

func TestBookingStatusTerminal(t *testing.T) {
	terminal := map[BookingStatus]bool{
		StatusRequested: false,
		StatusConfirmed: false,
		StatusRejected:  true,
		StatusCancelled: true,
		StatusNoShow:    true,
		StatusCompleted: true,
	}

	for status, want := range terminal {
		if got := status.Terminal(); got != want {
			t.Errorf("%s.Terminal() = %v, want %v", status, got, want)
		}
	}
}

func TestParsePeriod(t *testing.T) {
	if p, err := ParsePeriod("morning"); err != nil || p != PeriodMorning {
		t.Fatalf("ParsePeriod(morning) = %v, %v", p, err)
	}
	if p, err := ParsePeriod("afternoon"); err != nil || p != PeriodAfternoon {
		t.Fatalf("ParsePeriod(afternoon) = %v, %v", p, err)
	}
	if _, err := ParsePeriod("evening"); !errors.Is(err, ErrInvalidPeriod) {
		t.Fatalf("ParsePeriod(evening) err = %v, want ErrInvalidPeriod", err)
	}
	if _, err := ParsePeriod(""); !errors.Is(err, ErrInvalidPeriod) {
		t.Fatalf("ParsePeriod(\"\") err = %v, want ErrInvalidPeriod", err)
	}
}

func TestDateCapacityFor(t *testing.T) {
	c := DateCapacity{Morning: 6, Afternoon: 8}
	if c.For(PeriodMorning) != 6 {
		t.Errorf("For(morning) = %d, want 6", c.For(PeriodMorning))
	}
	if c.For(PeriodAfternoon) != 8 {
		t.Errorf("For(afternoon) = %d, want 8", c.For(PeriodAfternoon))
	}
}

func TestCanBeCancelledWindow(t *testing.T) {
	now := time.Date(2025, time.March, 10, 9, 0, 0, 0, time.UTC)
	window := 24 * time.Hour

	tests := []struct {
		name   string
		date   time.Time
		status BookingStatus
		want   bool
	}{
		{
			// Midnight of the 12th is 39h out, beyond the window.
			name:   "two days ahead",
			date:   time.Date(2025, time.March, 12, 0, 0, 0, 0, time.UTC),
			status: StatusConfirmed,
			want:   true,
		},
		{
			// Midnight of the 11th is only 15h out.
			name:   "tomorrow inside window",
			date:   time.Date(2025, time.March, 11, 0, 0, 0, 0, time.UTC),
			status: StatusConfirmed,
			want:   false,
		},
		{
			name:   "same day",
			date:   time.Date(2025, time.March, 10, 0, 0, 0, 0, time.UTC),
			status: StatusRequested,
			want:   false,
		},
		{
			name:   "far out but already completed",
			date:   time.Date(2025, time.March, 20, 0, 0, 0, 0, time.UTC),
			status: StatusCompleted,
			want:   false,
		},
		{
			name:   "far out but already cancelled",
			date:   time.Date(2025, time.March, 20, 0, 0, 0, 0, time.UTC),
			status: StatusCancelled,
			want:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := Booking{Date: tt.date, Status: tt.status}
			if got := b.CanBeCancelled(now, window); got != tt.want {
				t.Errorf("CanBeCancelled = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCanBeCancelledBoundary(t *testing.T) {
	// Exactly at the boundary: booking at midnight, now exactly window
	// before it. After() is strict, so the boundary itself is too late.
	date := time.Date(2025, time.March, 12, 0, 0, 0, 0, time.UTC)
	b := Booking{Date: date, Status: StatusConfirmed}
	window := 24 * time.Hour

	atBoundary := date.Add(-window)
	if b.CanBeCancelled(atBoundary, window) {
		t.Error("cancellation at the exact window boundary should be refused")
	}

	justBefore := atBoundary.Add(-time.Minute)
	if !b.CanBeCancelled(justBefore, window) {
		t.Error("cancellation one minute before the window closes should be allowed")
	}
}

func TestIsPastIgnoresStoredZone(t *testing.T) {
	// The driver hands dates back as UTC midnight. A booking for today must
	// not read as past just because local now is ahead of UTC.
	manila := time.FixedZone("PHT", 8*3600)
	now := time.Date(2025, time.March, 10, 7, 0, 0, 0, manila)

	today := Booking{Date: time.Date(2025, time.March, 10, 0, 0, 0, 0, time.UTC)}
	if today.IsPast(now) {
		t.Error("booking dated today should not be past")
	}

	yesterday := Booking{Date: time.Date(2025, time.March, 9, 0, 0, 0, 0, time.UTC)}
	if !yesterday.IsPast(now) {
		t.Error("booking dated yesterday should be past")
	}
}

func TestIdentityRefValidate(t *testing.T) {
	complete := patient.Provisional{
		FirstName: "Maria",
		LastName:  "Santos",
		Email:     "maria@example.com",
		Phone:     "09171234567",
	}

	if err := LinkedIdentity(uuid.New()).Validate(); err != nil {
		t.Errorf("linked identity: %v", err)
	}
	if err := ProvisionalIdentity(complete).Validate(); err != nil {
		t.Errorf("complete provisional identity: %v", err)
	}

	if err := (IdentityRef{}).Validate(); !errors.Is(err, ErrIdentityConflict) {
		t.Errorf("empty identity err = %v, want ErrIdentityConflict", err)
	}

	incomplete := complete
	incomplete.Phone = ""
	if err := ProvisionalIdentity(incomplete).Validate(); !errors.Is(err, ErrIncompleteIdentity) {
		t.Errorf("incomplete provisional err = %v, want ErrIncompleteIdentity", err)
	}

	id := uuid.New()
	both := IdentityRef{patientID: &id, provisional: &complete}
	if err := both.Validate(); !errors.Is(err, ErrIdentityConflict) {
		t.Errorf("both sides set err = %v, want ErrIdentityConflict", err)
	}
}

func TestIdentityRefAccessors(t *testing.T) {
	id := uuid.New()
	linked := LinkedIdentity(id)

	got, ok := linked.Linked()
	if !ok || got != id {
		t.Fatalf("Linked() = %v, %v", got, ok)
	}
	if _, ok := linked.Provisional(); ok {
		t.Fatal("linked identity should not expose provisional fields")
	}

	info := patient.Provisional{FirstName: "Juan", LastName: "Cruz", Email: "j@c.ph", Phone: "0917"}
	prov := ProvisionalIdentity(info)
	if _, ok := prov.Linked(); ok {
		t.Fatal("provisional identity should not expose a patient link")
	}
	gotInfo, ok := prov.Provisional()
	if !ok || gotInfo != info {
		t.Fatalf("Provisional() = %+v, %v", gotInfo, ok)
	}
}

func TestDisplayName(t *testing.T) {
	b := Booking{Identity: ProvisionalIdentity(patient.Provisional{FirstName: "Ana", LastName: "Reyes"})}
	if b.DisplayName() != "Ana Reyes" {
		t.Errorf("DisplayName = %q", b.DisplayName())
	}

	linked := Booking{Identity: LinkedIdentity(uuid.New())}
	if linked.DisplayName() != "" {
		t.Errorf("linked booking DisplayName = %q, want empty", linked.DisplayName())
	}

	d := BookingDetail{
		Booking: linked,
		Patient: &patient.Patient{FirstName: "Ana", LastName: "Reyes"},
	}
	if d.DisplayName() != "Ana Reyes" {
		t.Errorf("detail DisplayName = %q", d.DisplayName())
	}
}
