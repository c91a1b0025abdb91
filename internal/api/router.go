package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/Aerzsu/dental-clinic-sub000/internal/catalog"
	"github.com/Aerzsu/dental-clinic-sub000/internal/schedule"
)

type RouterConfig struct {
	Service *schedule.Service
	Catalog catalog.Repository
	PgPool  *pgxpool.Pool
	Redis   *redis.Client
	Logger  zerolog.Logger
	Env     string
	Version string
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(cfg.Logger))

	// Health and metrics
	health := NewHealthHandler(cfg.PgPool, cfg.Redis, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)
	r.Handle("/metrics", promhttp.Handler())

	// Public booking flow
	r.Get("/availability", availabilityHandler(cfg.Service))
	r.Post("/bookings", reserveBookingHandler(cfg.Service))
	r.Get("/bookings/{id}", getBookingHandler(cfg.Service))

	// Staff workflow
	r.Get("/bookings", listBookingsHandler(cfg.Service))
	r.Post("/bookings/{id}/approve", lifecycleAction(func(req *http.Request, bookingID, staffID uuid.UUID, providerID *uuid.UUID) (*schedule.Booking, error) {
		return cfg.Service.Approve(req.Context(), bookingID, staffID, providerID)
	}))
	r.Post("/bookings/{id}/reject", lifecycleAction(func(req *http.Request, bookingID, staffID uuid.UUID, _ *uuid.UUID) (*schedule.Booking, error) {
		return cfg.Service.Reject(req.Context(), bookingID, staffID)
	}))
	r.Post("/bookings/{id}/cancel", lifecycleAction(func(req *http.Request, bookingID, staffID uuid.UUID, _ *uuid.UUID) (*schedule.Booking, error) {
		return cfg.Service.Cancel(req.Context(), bookingID, staffID)
	}))
	r.Post("/bookings/{id}/complete", lifecycleAction(func(req *http.Request, bookingID, staffID uuid.UUID, _ *uuid.UUID) (*schedule.Booking, error) {
		return cfg.Service.Complete(req.Context(), bookingID, staffID)
	}))
	r.Post("/bookings/{id}/no-show", lifecycleAction(func(req *http.Request, bookingID, staffID uuid.UUID, _ *uuid.UUID) (*schedule.Booking, error) {
		return cfg.Service.MarkNoShow(req.Context(), bookingID, staffID)
	}))

	// Capacity administration
	r.Get("/capacity/{date}", getCapacityHandler(cfg.Service))
	r.Put("/capacity/{date}", updateCapacityHandler(cfg.Service))

	// Catalogs
	r.Get("/services", listServicesHandler(cfg.Catalog))
	r.Get("/providers", listProvidersHandler(cfg.Catalog))

	return r
}
