package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/Aerzsu/dental-clinic-sub000/internal/schedule"
)

type ReserveBookingRequest struct {
	Date      string `json:"date"` // YYYY-MM-DD
	Period    string `json:"period"`
	ServiceID string `json:"service_id"`
	Reason    string `json:"reason,omitempty"`

	// Returning patients send their ID; new patients send the identity
	// fields instead. Exactly one form is accepted.
	PatientID string `json:"patient_id,omitempty"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
	Email     string `json:"email,omitempty"`
	Phone     string `json:"phone,omitempty"`
	Address   string `json:"address,omitempty"`
}

type StaffActionRequest struct {
	StaffID    string `json:"staff_id"`
	ProviderID string `json:"provider_id,omitempty"`
}

type UpdateCapacityRequest struct {
	Morning   int    `json:"morning"`
	Afternoon int    `json:"afternoon"`
	Note      string `json:"note,omitempty"`
	StaffID   string `json:"staff_id"`
}

type BookingResponse struct {
	ID          uuid.UUID  `json:"id"`
	Date        string     `json:"date"`
	Period      string     `json:"period"`
	Status      string     `json:"status"`
	PatientType string     `json:"patient_type"`
	PatientID   *uuid.UUID `json:"patient_id,omitempty"`
	ServiceID   uuid.UUID  `json:"service_id"`
	ProviderID  *uuid.UUID `json:"provider_id,omitempty"`
	Requester   *Requester `json:"requester,omitempty"`
	Reason      string     `json:"reason,omitempty"`
	RequestedAt time.Time  `json:"requested_at"`
	ConfirmedAt *time.Time `json:"confirmed_at,omitempty"`
}

type Requester struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

type DayAvailabilityResponse struct {
	Date               string `json:"date"`
	MorningAvailable   int    `json:"morning_available"`
	MorningTotal       int    `json:"morning_total"`
	AfternoonAvailable int    `json:"afternoon_available"`
	AfternoonTotal     int    `json:"afternoon_total"`
}

type CapacityResponse struct {
	Date      string `json:"date"`
	Morning   int    `json:"morning"`
	Afternoon int    `json:"afternoon"`
	Note      string `json:"note,omitempty"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func toBookingResponse(b *schedule.Booking) BookingResponse {
	resp := BookingResponse{
		ID:          b.ID,
		Date:        b.Date.Format("2006-01-02"),
		Period:      string(b.Period),
		Status:      string(b.Status),
		PatientType: string(b.PatientType),
		ServiceID:   b.ServiceID,
		ProviderID:  b.ProviderID,
		Reason:      b.Reason,
		RequestedAt: b.RequestedAt,
		ConfirmedAt: b.ConfirmedAt,
	}

	if id, ok := b.Identity.Linked(); ok {
		resp.PatientID = &id
	} else if info, ok := b.Identity.Provisional(); ok {
		resp.Requester = &Requester{
			Name:  info.FullName(),
			Email: info.Email,
			Phone: info.Phone,
		}
	}

	return resp
}
