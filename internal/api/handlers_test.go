package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/Aerzsu/dental-clinic-sub000/internal/holiday"
	"github.com/Aerzsu/dental-clinic-sub000/internal/patient"
	"github.com/Aerzsu/dental-clinic-sub000/internal/schedule"
)

// Fakes wiring a real service over an in-memory store.

type fakeRepo struct {
	mu         sync.Mutex
	capacities map[string]*schedule.DateCapacity
	bookings   map[uuid.UUID]*schedule.Booking
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		capacities: make(map[string]*schedule.DateCapacity),
		bookings:   make(map[uuid.UUID]*schedule.Booking),
	}
}

func (r *fakeRepo) key(d time.Time) string { return d.Format("2006-01-02") }

func (r *fakeRepo) GetCapacity(ctx context.Context, date time.Time) (*schedule.DateCapacity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.capacities[r.key(date)]
	if !ok {
		return nil, schedule.ErrCapacityNotFound
	}
	cp := *c
	return &cp, nil
}

func (r *fakeRepo) CreateCapacityIfAbsent(ctx context.Context, cap schedule.DateCapacity) (*schedule.DateCapacity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.capacities[r.key(cap.Date)]; ok {
		cp := *existing
		return &cp, nil
	}
	stored := cap
	r.capacities[r.key(cap.Date)] = &stored
	cp := stored
	return &cp, nil
}

func (r *fakeRepo) UpdateCapacity(ctx context.Context, cap schedule.DateCapacity) (*schedule.DateCapacity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	existing, ok := r.capacities[r.key(cap.Date)]
	if !ok {
		return nil, schedule.ErrCapacityNotFound
	}
	existing.Morning = cap.Morning
	existing.Afternoon = cap.Afternoon
	existing.Note = cap.Note
	cp := *existing
	return &cp, nil
}

func (r *fakeRepo) CountBlocking(ctx context.Context, date time.Time, period schedule.Period) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, b := range r.bookings {
		if r.key(b.Date) == r.key(date) && b.Period == period && b.Status.Blocking() {
			n++
		}
	}
	return n, nil
}

func (r *fakeRepo) ReserveBooking(ctx context.Context, b *schedule.Booking, defaults schedule.CapacityDefaults) (*schedule.Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := r.key(b.Date)
	c, ok := r.capacities[key]
	if !ok {
		stored := schedule.DateCapacity{Date: b.Date, Morning: defaults.Morning, Afternoon: defaults.Afternoon}
		r.capacities[key] = &stored
		c = &stored
	}

	blocking := 0
	for _, existing := range r.bookings {
		if r.key(existing.Date) == key && existing.Period == b.Period && existing.Status.Blocking() {
			blocking++
		}
	}
	if blocking >= c.For(b.Period) {
		return nil, schedule.ErrNoAvailability
	}

	stored := *b
	stored.ID = uuid.New()
	r.bookings[stored.ID] = &stored
	cp := stored
	return &cp, nil
}

func (r *fakeRepo) GetBooking(ctx context.Context, id uuid.UUID) (*schedule.Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.bookings[id]
	if !ok {
		return nil, schedule.ErrBookingNotFound
	}
	cp := *b
	return &cp, nil
}

func (r *fakeRepo) ConfirmBooking(ctx context.Context, id, patientID uuid.UUID, staffID uuid.UUID, providerID *uuid.UUID, confirmedAt time.Time) (*schedule.Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.bookings[id]
	if !ok || b.Status != schedule.StatusRequested {
		return nil, schedule.ErrInvalidTransition
	}
	b.Status = schedule.StatusConfirmed
	b.Identity = schedule.LinkedIdentity(patientID)
	b.ConfirmedAt = &confirmedAt
	b.ConfirmedBy = &staffID
	if providerID != nil {
		b.ProviderID = providerID
	}
	cp := *b
	return &cp, nil
}

func (r *fakeRepo) TransitionBooking(ctx context.Context, id uuid.UUID, to schedule.BookingStatus, from ...schedule.BookingStatus) (*schedule.Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.bookings[id]
	if !ok {
		return nil, schedule.ErrBookingNotFound
	}
	for _, f := range from {
		if b.Status == f {
			b.Status = to
			cp := *b
			return &cp, nil
		}
	}
	return nil, schedule.ErrInvalidTransition
}

func (r *fakeRepo) ListBookingsForDate(ctx context.Context, date time.Time) ([]schedule.Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []schedule.Booking
	for _, b := range r.bookings {
		if r.key(b.Date) == r.key(date) {
			out = append(out, *b)
		}
	}
	return out, nil
}

func (r *fakeRepo) ListConfirmedForDate(ctx context.Context, date time.Time) ([]schedule.Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []schedule.Booking
	for _, b := range r.bookings {
		if r.key(b.Date) == r.key(date) && b.Status == schedule.StatusConfirmed {
			out = append(out, *b)
		}
	}
	return out, nil
}

func (r *fakeRepo) InsertEvent(ctx context.Context, ev schedule.BookingEvent) error { return nil }

type passLocker struct{}

func (passLocker) WithPeriodLock(ctx context.Context, day, period string, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type fakeResolver struct{}

func (fakeResolver) Resolve(ctx context.Context, info patient.Provisional) (*patient.Patient, error) {
	return &patient.Patient{
		ID:        uuid.New(),
		FirstName: info.FirstName,
		LastName:  info.LastName,
		Email:     info.Email,
		Phone:     info.Phone,
	}, nil
}

// Monday 2025-03-10 09:00 UTC.
var apiNow = time.Date(2025, time.March, 10, 9, 0, 0, 0, time.UTC)

func newAPIService(repo schedule.Repository) *schedule.Service {
	return schedule.NewService(repo, passLocker{}, fakeResolver{}, holiday.None{}, schedule.Settings{
		Defaults:      schedule.CapacityDefaults{Morning: 6, Afternoon: 8},
		CancelWindow:  24 * time.Hour,
		Timezone:      time.UTC,
		ClosedWeekday: time.Sunday,
		Now:           func() time.Time { return apiNow },
	}, zerolog.Nop())
}

func reserveBody(date string) *bytes.Reader {
	body, _ := json.Marshal(ReserveBookingRequest{
		Date:      date,
		Period:    "morning",
		ServiceID: uuid.NewString(),
		FirstName: "Maria",
		LastName:  "Santos",
		Email:     "maria@example.com",
		Phone:     "09171234567",
		Reason:    "cleaning",
	})
	return bytes.NewReader(body)
}

func TestReserveBookingHandlerCreated(t *testing.T) {
	svc := newAPIService(newFakeRepo())
	handler := reserveBookingHandler(svc)

	req := httptest.NewRequest("POST", "/bookings", reserveBody("2025-03-14"))
	rec := httptest.NewRecorder()
	handler(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var resp BookingResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Status != "requested" {
		t.Errorf("status = %q, want requested", resp.Status)
	}
	if resp.Requester == nil || resp.Requester.Name != "Maria Santos" {
		t.Errorf("requester = %+v", resp.Requester)
	}
	if resp.PatientID != nil {
		t.Error("new patient booking must not carry a patient_id")
	}
}

func TestReserveBookingHandlerValidation(t *testing.T) {
	svc := newAPIService(newFakeRepo())
	handler := reserveBookingHandler(svc)

	tests := []struct {
		name     string
		body     string
		wantCode int
	}{
		{"bad json", "{", http.StatusBadRequest},
		{"bad date", `{"date":"14-03-2025","period":"morning","service_id":"` + uuid.NewString() + `"}`, http.StatusBadRequest},
		{"bad period", `{"date":"2025-03-14","period":"evening","service_id":"` + uuid.NewString() + `"}`, http.StatusBadRequest},
		{"bad service id", `{"date":"2025-03-14","period":"morning","service_id":"not-a-uuid"}`, http.StatusBadRequest},
		{"bad patient id", `{"date":"2025-03-14","period":"morning","service_id":"` + uuid.NewString() + `","patient_id":"nope"}`, http.StatusBadRequest},
		{"incomplete identity", `{"date":"2025-03-14","period":"morning","service_id":"` + uuid.NewString() + `","first_name":"Maria"}`, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("POST", "/bookings", bytes.NewReader([]byte(tt.body)))
			rec := httptest.NewRecorder()
			handler(rec, req)
			if rec.Code != tt.wantCode {
				t.Errorf("status = %d, want %d, body = %s", rec.Code, tt.wantCode, rec.Body.String())
			}
		})
	}
}

func TestReserveBookingHandlerBusinessRefusals(t *testing.T) {
	svc := newAPIService(newFakeRepo())
	handler := reserveBookingHandler(svc)

	tests := []struct {
		name     string
		date     string
		wantCode int
		wantErr  string
	}{
		{"past date", "2025-03-07", http.StatusUnprocessableEntity, "past_date"},
		{"closed sunday", "2025-03-16", http.StatusUnprocessableEntity, "closed_day"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("POST", "/bookings", reserveBody(tt.date))
			rec := httptest.NewRecorder()
			handler(rec, req)

			if rec.Code != tt.wantCode {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantCode)
			}
			var resp ErrorResponse
			if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
				t.Fatalf("decode error body: %v", err)
			}
			if resp.Error != tt.wantErr {
				t.Errorf("error code = %q, want %q", resp.Error, tt.wantErr)
			}
		})
	}
}

func TestReserveBookingHandlerCapacityExhausted(t *testing.T) {
	repo := newFakeRepo()
	repo.capacities["2025-03-14"] = &schedule.DateCapacity{
		Date:    time.Date(2025, time.March, 14, 0, 0, 0, 0, time.UTC),
		Morning: 1, Afternoon: 1,
	}
	svc := newAPIService(repo)
	handler := reserveBookingHandler(svc)

	rec := httptest.NewRecorder()
	handler(rec, httptest.NewRequest("POST", "/bookings", reserveBody("2025-03-14")))
	if rec.Code != http.StatusCreated {
		t.Fatalf("first booking: status = %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	handler(rec, httptest.NewRequest("POST", "/bookings", reserveBody("2025-03-14")))
	if rec.Code != http.StatusConflict {
		t.Fatalf("second booking: status = %d, want 409", rec.Code)
	}

	var resp ErrorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	if resp.Error != "no_availability" {
		t.Errorf("error code = %q, want no_availability", resp.Error)
	}
}

func TestAvailabilityHandler(t *testing.T) {
	svc := newAPIService(newFakeRepo())
	handler := availabilityHandler(svc)

	req := httptest.NewRequest("GET", "/availability?start=2025-03-11&end=2025-03-12", nil)
	rec := httptest.NewRecorder()
	handler(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var days []DayAvailabilityResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &days); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(days) != 2 {
		t.Fatalf("len = %d, want 2", len(days))
	}
	if days[0].MorningAvailable != 6 || days[0].AfternoonAvailable != 8 {
		t.Errorf("defaults not reported: %+v", days[0])
	}

	t.Run("missing params", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler(rec, httptest.NewRequest("GET", "/availability", nil))
		if rec.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", rec.Code)
		}
	})

	t.Run("inverted range", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler(rec, httptest.NewRequest("GET", "/availability?start=2025-03-12&end=2025-03-11", nil))
		if rec.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", rec.Code)
		}
	})
}

func approveViaRouter(t *testing.T, svc *schedule.Service, bookingID uuid.UUID, body string) *httptest.ResponseRecorder {
	t.Helper()

	r := chi.NewRouter()
	r.Post("/bookings/{id}/approve", lifecycleAction(func(req *http.Request, bookingID, staffID uuid.UUID, providerID *uuid.UUID) (*schedule.Booking, error) {
		return svc.Approve(req.Context(), bookingID, staffID, providerID)
	}))

	req := httptest.NewRequest("POST", fmt.Sprintf("/bookings/%s/approve", bookingID), bytes.NewReader([]byte(body)))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestApproveEndpoint(t *testing.T) {
	repo := newFakeRepo()
	svc := newAPIService(repo)

	b, err := svc.Reserve(context.Background(), schedule.ReserveRequest{
		Date:      time.Date(2025, time.March, 14, 0, 0, 0, 0, time.UTC),
		Period:    schedule.PeriodMorning,
		ServiceID: uuid.New(),
		Provisional: &patient.Provisional{
			FirstName: "Maria", LastName: "Santos",
			Email: "maria@example.com", Phone: "09171234567",
		},
	})
	if err != nil {
		t.Fatalf("seed booking: %v", err)
	}

	staffID := uuid.NewString()
	rec := approveViaRouter(t, svc, b.ID, `{"staff_id":"`+staffID+`"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var resp BookingResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Status != "confirmed" {
		t.Errorf("status = %q, want confirmed", resp.Status)
	}
	if resp.PatientID == nil {
		t.Error("confirmed booking must expose the linked patient_id")
	}
	if resp.Requester != nil {
		t.Error("confirmed booking must not leak provisional requester fields")
	}

	// Replaying the approve hits the conditional update.
	rec = approveViaRouter(t, svc, b.ID, `{"staff_id":"`+staffID+`"}`)
	if rec.Code != http.StatusConflict {
		t.Errorf("replay status = %d, want 409", rec.Code)
	}
}

func TestApproveEndpointValidation(t *testing.T) {
	svc := newAPIService(newFakeRepo())

	rec := approveViaRouter(t, svc, uuid.New(), `{"staff_id":"not-a-uuid"}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad staff id: status = %d, want 400", rec.Code)
	}

	rec = approveViaRouter(t, svc, uuid.New(), `{"staff_id":"`+uuid.NewString()+`"}`)
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown booking: status = %d, want 404", rec.Code)
	}
}

func TestHandleScheduleErrorMapping(t *testing.T) {
	tests := []struct {
		err      error
		wantCode int
		wantErr  string
	}{
		{schedule.ErrInvalidPeriod, http.StatusBadRequest, "invalid_request"},
		{schedule.ErrMissingService, http.StatusBadRequest, "invalid_request"},
		{schedule.ErrPastDate, http.StatusUnprocessableEntity, "past_date"},
		{schedule.ErrClosedDay, http.StatusUnprocessableEntity, "closed_day"},
		{schedule.ErrHoliday, http.StatusUnprocessableEntity, "holiday"},
		{schedule.ErrNoAvailability, http.StatusConflict, "no_availability"},
		{schedule.ErrReservationContended, http.StatusConflict, "reservation_contended"},
		{schedule.ErrCancelWindowClosed, http.StatusConflict, "cancel_window_closed"},
		{schedule.ErrInvalidTransition, http.StatusConflict, "invalid_status_transition"},
		{schedule.ErrIdentityConflict, http.StatusUnprocessableEntity, "identity_conflict"},
		{schedule.ErrBookingNotFound, http.StatusNotFound, "booking_not_found"},
		{errors.New("pool exploded"), http.StatusInternalServerError, "internal_error"},
	}

	for _, tt := range tests {
		t.Run(tt.wantErr, func(t *testing.T) {
			rec := httptest.NewRecorder()
			handleScheduleError(rec, tt.err)

			if rec.Code != tt.wantCode {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantCode)
			}
			var resp ErrorResponse
			if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
				t.Fatalf("decode error body: %v", err)
			}
			if resp.Error != tt.wantErr {
				t.Errorf("error code = %q, want %q", resp.Error, tt.wantErr)
			}
		})
	}
}

func TestUpdateCapacityEndpoint(t *testing.T) {
	svc := newAPIService(newFakeRepo())

	r := chi.NewRouter()
	r.Put("/capacity/{date}", updateCapacityHandler(svc))

	body := `{"morning":3,"afternoon":5,"note":"half day","staff_id":"` + uuid.NewString() + `"}`
	req := httptest.NewRequest("PUT", "/capacity/2025-03-14", bytes.NewReader([]byte(body)))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var resp CapacityResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Morning != 3 || resp.Afternoon != 5 {
		t.Errorf("capacity = %d/%d, want 3/5", resp.Morning, resp.Afternoon)
	}
	if resp.Note != "half day" {
		t.Errorf("note = %q", resp.Note)
	}
}
