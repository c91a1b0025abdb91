package schedule

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/Aerzsu/dental-clinic-sub000/internal/patient"
)

// Approve moves a requested booking to confirmed. If the booking still
// carries a provisional identity, the canonical patient is resolved (matched
// or created) first and linked; the provisional fields are cleared by the
// confirm write. The status update is conditional on the booking still being
// in requested state, so a concurrent approve by another staff member fails
// with ErrInvalidTransition instead of double-processing.
func (s *Service) Approve(ctx context.Context, bookingID, staffID uuid.UUID, providerID *uuid.UUID) (*Booking, error) {
	b, err := s.repo.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, fmt.Errorf("load booking: %w", err)
	}

	if b.Status != StatusRequested {
		s.metrics.ObserveTransition("approve", "rejected_precondition")
		return nil, ErrInvalidTransition
	}

	patientID, linked := b.Identity.Linked()
	var resolved *patient.Patient
	if !linked {
		info, ok := b.Identity.Provisional()
		if !ok {
			return nil, ErrIdentityConflict
		}
		// Idempotent under approval retry: a re-run finds the record the
		// first attempt created.
		resolved, err = s.resolver.Resolve(ctx, info)
		if err != nil {
			s.metrics.ObserveTransition("approve", "error")
			return nil, fmt.Errorf("resolve patient identity: %w", err)
		}
		patientID = resolved.ID
	}

	confirmed, err := s.repo.ConfirmBooking(ctx, bookingID, patientID, staffID, providerID, s.now())
	if err != nil {
		s.metrics.ObserveTransition("approve", "conflict")
		return nil, err
	}

	s.metrics.ObserveTransition("approve", "ok")
	s.logEvent(ctx, confirmed.ID, EventBookingConfirmed, map[string]any{
		"staff_id":   staffID.String(),
		"patient_id": patientID.String(),
	})

	if s.notifier != nil && resolved != nil {
		s.notifier.BookingConfirmed(ctx, resolved, confirmed)
	}

	return confirmed, nil
}

// Reject declines a requested booking. No identity resolution happens: a
// rejected request never creates or touches a canonical patient record.
func (s *Service) Reject(ctx context.Context, bookingID, staffID uuid.UUID) (*Booking, error) {
	b, err := s.repo.TransitionBooking(ctx, bookingID, StatusRejected, StatusRequested)
	if err != nil {
		s.metrics.ObserveTransition("reject", "conflict")
		return nil, err
	}

	s.metrics.ObserveTransition("reject", "ok")
	s.logEvent(ctx, b.ID, EventBookingRejected, map[string]any{
		"staff_id": staffID.String(),
	})

	if s.notifier != nil {
		if info, ok := b.Identity.Provisional(); ok {
			s.notifier.BookingRejected(ctx, info.Email, info.FullName(), b)
		}
	}

	return b, nil
}

// Cancel withdraws a requested or confirmed booking, subject to the
// cancellation window: the booking's date must be further out than the
// configured window.
func (s *Service) Cancel(ctx context.Context, bookingID, actorID uuid.UUID) (*Booking, error) {
	b, err := s.repo.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, fmt.Errorf("load booking: %w", err)
	}

	if b.Status != StatusRequested && b.Status != StatusConfirmed {
		s.metrics.ObserveTransition("cancel", "rejected_precondition")
		return nil, ErrInvalidTransition
	}
	if !b.CanBeCancelled(s.now(), s.settings.CancelWindow) {
		s.metrics.ObserveTransition("cancel", "window_closed")
		return nil, ErrCancelWindowClosed
	}

	cancelled, err := s.repo.TransitionBooking(ctx, bookingID, StatusCancelled, StatusRequested, StatusConfirmed)
	if err != nil {
		s.metrics.ObserveTransition("cancel", "conflict")
		return nil, err
	}

	s.metrics.ObserveTransition("cancel", "ok")
	s.logEvent(ctx, cancelled.ID, EventBookingCancelled, map[string]any{
		"actor_id": actorID.String(),
	})

	return cancelled, nil
}

// Complete marks a confirmed booking as completed after the visit.
func (s *Service) Complete(ctx context.Context, bookingID, staffID uuid.UUID) (*Booking, error) {
	b, err := s.repo.TransitionBooking(ctx, bookingID, StatusCompleted, StatusConfirmed)
	if err != nil {
		s.metrics.ObserveTransition("complete", "conflict")
		return nil, err
	}

	s.metrics.ObserveTransition("complete", "ok")
	s.logEvent(ctx, b.ID, EventBookingCompleted, map[string]any{
		"staff_id": staffID.String(),
	})

	return b, nil
}

// MarkNoShow records that a confirmed patient did not arrive.
func (s *Service) MarkNoShow(ctx context.Context, bookingID, staffID uuid.UUID) (*Booking, error) {
	b, err := s.repo.TransitionBooking(ctx, bookingID, StatusNoShow, StatusConfirmed)
	if err != nil {
		s.metrics.ObserveTransition("no_show", "conflict")
		return nil, err
	}

	s.metrics.ObserveTransition("no_show", "ok")
	s.logEvent(ctx, b.ID, EventBookingNoShow, map[string]any{
		"staff_id": staffID.String(),
	})

	return b, nil
}
