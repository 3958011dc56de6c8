package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/hackgods/clinic-booking/internal/appointment"
	"github.com/hackgods/clinic-booking/internal/auth"
)

type RouterConfig struct {
	Service *appointment.Service
	Tokens  *auth.TokenService
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
	r.Use(RecoverMiddleware(cfg.Logger))

	var pgPing, redisPing Pinger
	if cfg.PgPool != nil {
		pgPing = cfg.PgPool
	}
	if cfg.Redis != nil {
		redisPing = PingFunc(func(ctx context.Context) error { return cfg.Redis.Ping(ctx).Err() })
	}
	health := NewHealthHandler(pgPing, redisPing, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)

	h := newAppointmentHandler(cfg.Service, NewValidator(), cfg.Logger)
	r.Route("/appointments", func(r chi.Router) {
		r.Use(auth.Middleware(cfg.Tokens, cfg.Logger))

		r.Post("/book", h.book)
		r.Get("/me", h.listMine)
		r.Get("/doctor/{id}/upcoming", h.doctorUpcoming)

		r.Route("/{id}", func(r chi.Router) {
			r.Post("/confirm", h.confirm)
			r.Post("/cancel", h.cancel)
			r.Post("/reschedule/patient", h.reschedulePatient)
			r.Post("/reschedule/doctor", h.rescheduleDoctor)
			r.Post("/reschedule/accept", h.acceptReschedule)
			r.Post("/reschedule/reject", h.rejectReschedule)
			r.Post("/complete", h.complete)
		})
	})

	return r
}
