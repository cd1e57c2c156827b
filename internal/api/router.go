package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/hackgods/vetcare-appointments/internal/appointment"
	"github.com/hackgods/vetcare-appointments/internal/metrics"
)

type RouterConfig struct {
	Service        *appointment.Service
	PgPool         *pgxpool.Pool
	Redis          *redis.Client
	Metrics        *metrics.Collector
	Logger         zerolog.Logger
	JWTSecret      []byte
	Env            string
	Version        string
	RequestTimeout time.Duration
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(cfg.Logger, cfg.Metrics))
	r.Use(RecoveryMiddleware(cfg.Logger))
	if cfg.RequestTimeout > 0 {
		r.Use(chimiddleware.Timeout(cfg.RequestTimeout))
	}

	health := NewHealthHandler(cfg.PgPool, cfg.Redis, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)
	r.Method(http.MethodGet, "/metrics", cfg.Metrics.Handler())

	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(cfg.JWTSecret))

		r.Post("/appointments", createAppointmentHandler(cfg.Service))
		r.Get("/appointments", listAppointmentsHandler(cfg.Service))
		r.Get("/appointments/mine", listMyAppointmentsHandler(cfg.Service))
		r.Get("/appointments/{id}", getAppointmentHandler(cfg.Service))
		r.Post("/appointments/{id}/doctor-response", doctorResponseHandler(cfg.Service))
		r.Post("/appointments/{id}/owner-response", ownerResponseHandler(cfg.Service))
		r.Post("/appointments/{id}/payment", paymentHandler(cfg.Service))
		r.Post("/appointments/{id}/complete", completeHandler(cfg.Service))
		r.Post("/appointments/{id}/cancel", cancelHandler(cfg.Service))

		r.Get("/pets/{id}/history", petHistoryHandler(cfg.Service))
	})

	return r
}
