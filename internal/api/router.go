package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/sessionlab/booking-engine/internal/booking"
	"github.com/sessionlab/booking-engine/internal/reconcile"
	"github.com/sessionlab/booking-engine/internal/webhook"
)

type RouterConfig struct {
	Bookings           *booking.Service
	Coordinator        *reconcile.Coordinator
	SchedulingVerifier *webhook.Verifier
	PaymentVerifier    *webhook.Verifier
	PgPool             *pgxpool.Pool
	Redis              *redis.Client
	Env                string
	Version            string
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	// Apply middleware
	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware)

	// Health endpoints
	health := NewHealthHandler(cfg.PgPool, cfg.Redis, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)

	// Inbound webhooks, one endpoint per provider
	r.Post("/webhooks/scheduling", webhookHandler(cfg.SchedulingVerifier, cfg.Coordinator))
	r.Post("/webhooks/payment", webhookHandler(cfg.PaymentVerifier, cfg.Coordinator))

	// Booking intents
	r.Post("/bookings", createBookingHandler(cfg.Bookings))
	r.Get("/bookings/{id}", getBookingHandler(cfg.Bookings))
	r.Get("/bookings/{id}/history", bookingHistoryHandler(cfg.Bookings))
	r.Post("/bookings/{id}/cancel", cancelBookingHandler(cfg.Coordinator))

	return r
}
