package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/Aerzsu/dental-clinic-sub000/internal/catalog"
	"github.com/Aerzsu/dental-clinic-sub000/internal/patient"
	"github.com/Aerzsu/dental-clinic-sub000/internal/schedule"
)

const dateLayout = "2006-01-02"

func availabilityHandler(svc *schedule.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start, err := time.Parse(dateLayout, r.URL.Query().Get("start"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_start", "start must be YYYY-MM-DD")
			return
		}
		end, err := time.Parse(dateLayout, r.URL.Query().Get("end"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_end", "end must be YYYY-MM-DD")
			return
		}

		days, err := svc.AvailabilityForRange(r.Context(), start, end)
		if err != nil {
			if errors.Is(err, schedule.ErrInvalidRange) {
				writeError(w, http.StatusBadRequest, "invalid_range", err.Error())
				return
			}
			writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
			return
		}

		resp := make([]DayAvailabilityResponse, 0, len(days))
		for _, d := range days {
			resp = append(resp, DayAvailabilityResponse{
				Date:               d.Date.Format(dateLayout),
				MorningAvailable:   d.MorningAvailable,
				MorningTotal:       d.MorningTotal,
				AfternoonAvailable: d.AfternoonAvailable,
				AfternoonTotal:     d.AfternoonTotal,
			})
		}

		writeJSON(w, http.StatusOK, resp)
	}
}

func reserveBookingHandler(svc *schedule.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req ReserveBookingRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		date, err := time.Parse(dateLayout, req.Date)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_date", "date must be YYYY-MM-DD")
			return
		}

		period, err := schedule.ParsePeriod(req.Period)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_period", "period must be morning or afternoon")
			return
		}

		serviceID, err := uuid.Parse(req.ServiceID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_service_id", "service_id must be a valid UUID")
			return
		}

		reserve := schedule.ReserveRequest{
			Date:      date,
			Period:    period,
			ServiceID: serviceID,
			Reason:    req.Reason,
		}

		if req.PatientID != "" {
			patientID, err := uuid.Parse(req.PatientID)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_patient_id", "patient_id must be a valid UUID")
				return
			}
			reserve.PatientID = &patientID
		} else {
			reserve.Provisional = &patient.Provisional{
				FirstName: req.FirstName,
				LastName:  req.LastName,
				Email:     req.Email,
				Phone:     req.Phone,
				Address:   req.Address,
			}
		}

		b, err := svc.Reserve(r.Context(), reserve)
		if err != nil {
			handleScheduleError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, toBookingResponse(b))
	}
}

func getBookingHandler(svc *schedule.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_booking_id", "id must be a valid UUID")
			return
		}

		b, err := svc.GetBooking(r.Context(), id)
		if err != nil {
			handleScheduleError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toBookingResponse(b))
	}
}

func listBookingsHandler(svc *schedule.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		date, err := time.Parse(dateLayout, r.URL.Query().Get("date"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_date", "date must be YYYY-MM-DD")
			return
		}

		bookings, err := svc.BookingsForDate(r.Context(), date)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
			return
		}

		resp := make([]BookingResponse, 0, len(bookings))
		for i := range bookings {
			resp = append(resp, toBookingResponse(&bookings[i]))
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

// lifecycleAction wires one staff transition endpoint.
func lifecycleAction(apply func(r *http.Request, bookingID, staffID uuid.UUID, providerID *uuid.UUID) (*schedule.Booking, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		bookingID, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_booking_id", "id must be a valid UUID")
			return
		}

		var req StaffActionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		staffID, err := uuid.Parse(req.StaffID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_staff_id", "staff_id must be a valid UUID")
			return
		}

		var providerID *uuid.UUID
		if req.ProviderID != "" {
			id, err := uuid.Parse(req.ProviderID)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_provider_id", "provider_id must be a valid UUID")
				return
			}
			providerID = &id
		}

		b, err := apply(r, bookingID, staffID, providerID)
		if err != nil {
			handleScheduleError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toBookingResponse(b))
	}
}

func getCapacityHandler(svc *schedule.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		date, err := time.Parse(dateLayout, chi.URLParam(r, "date"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_date", "date must be YYYY-MM-DD")
			return
		}

		c, err := svc.GetOrCreateCapacity(r.Context(), date, nil)
		if err != nil {
			handleScheduleError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, CapacityResponse{
			Date:      c.Date.Format(dateLayout),
			Morning:   c.Morning,
			Afternoon: c.Afternoon,
			Note:      c.Note,
		})
	}
}

func updateCapacityHandler(svc *schedule.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		date, err := time.Parse(dateLayout, chi.URLParam(r, "date"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_date", "date must be YYYY-MM-DD")
			return
		}

		var req UpdateCapacityRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		staffID, err := uuid.Parse(req.StaffID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_staff_id", "staff_id must be a valid UUID")
			return
		}

		c, err := svc.UpdateCapacity(r.Context(), date, req.Morning, req.Afternoon, req.Note, staffID)
		if err != nil {
			handleScheduleError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, CapacityResponse{
			Date:      c.Date.Format(dateLayout),
			Morning:   c.Morning,
			Afternoon: c.Afternoon,
			Note:      c.Note,
		})
	}
}

func listServicesHandler(repo catalog.Repository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		services, err := repo.ListServices(r.Context())
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
			return
		}
		writeJSON(w, http.StatusOK, services)
	}
}

func listProvidersHandler(repo catalog.Repository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		providers, err := repo.ListProviders(r.Context())
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
			return
		}
		writeJSON(w, http.StatusOK, providers)
	}
}

// handleScheduleError maps core errors onto HTTP statuses. Business-rule
// refusals carry messages safe to show to the requester.
func handleScheduleError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, schedule.ErrInvalidPeriod),
		errors.Is(err, schedule.ErrMissingService),
		errors.Is(err, schedule.ErrIncompleteIdentity),
		errors.Is(err, schedule.ErrInvalidRange),
		errors.Is(err, schedule.ErrInvalidCapacity):
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
	case errors.Is(err, schedule.ErrPastDate):
		writeError(w, http.StatusUnprocessableEntity, "past_date", err.Error())
	case errors.Is(err, schedule.ErrClosedDay):
		writeError(w, http.StatusUnprocessableEntity, "closed_day", err.Error())
	case errors.Is(err, schedule.ErrHoliday):
		writeError(w, http.StatusUnprocessableEntity, "holiday", err.Error())
	case errors.Is(err, schedule.ErrNoAvailability):
		writeError(w, http.StatusConflict, "no_availability", err.Error())
	case errors.Is(err, schedule.ErrReservationContended):
		writeError(w, http.StatusConflict, "reservation_contended", "the slot is being booked, please retry shortly")
	case errors.Is(err, schedule.ErrCancelWindowClosed):
		writeError(w, http.StatusConflict, "cancel_window_closed", err.Error())
	case errors.Is(err, schedule.ErrInvalidTransition):
		writeError(w, http.StatusConflict, "invalid_status_transition", err.Error())
	case errors.Is(err, schedule.ErrIdentityConflict):
		writeError(w, http.StatusUnprocessableEntity, "identity_conflict", err.Error())
	case errors.Is(err, schedule.ErrBookingNotFound):
		writeError(w, http.StatusNotFound, "booking_not_found", err.Error())
	case errors.Is(err, schedule.ErrCapacityNotFound):
		writeError(w, http.StatusNotFound, "capacity_not_found", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}
