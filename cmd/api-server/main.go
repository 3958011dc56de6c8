package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/hackgods/clinic-booking/internal/api"
	"github.com/hackgods/clinic-booking/internal/appointment"
	"github.com/hackgods/clinic-booking/internal/auth"
	"github.com/hackgods/clinic-booking/internal/clock"
	"github.com/hackgods/clinic-booking/internal/config"
	"github.com/hackgods/clinic-booking/internal/db"
	"github.com/hackgods/clinic-booking/internal/logging"
	"github.com/hackgods/clinic-booking/internal/notify"
	redisclient "github.com/hackgods/clinic-booking/internal/redis"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		boot := logging.New("api-server", "dev", "info")
		boot.Fatal().Err(err).Msg("config load error")
	}
	log := logging.New("api-server", cfg.Env, cfg.LogLevel)
	log.Info().
		Str("env", cfg.Env).
		Str("http_port", cfg.HTTPPort).
		Str("store", cfg.StoreDriver).
		Str("lock", cfg.LockBackend).
		Msg("api-server starting up")

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var (
		repo      appointment.Repository
		directory appointment.Directory
		pgPool    *pgxpool.Pool
	)
	switch cfg.StoreDriver {
	case config.StoreDriverPostgres:
		pgCtx, cancelPg := context.WithTimeout(rootCtx, 30*time.Second)
		pgPool, err = db.Open(pgCtx, cfg.PostgresDSN, log)
		cancelPg()
		if err != nil {
			log.Fatal().Err(err).Msg("postgres connection error")
		}
		defer pgPool.Close()
		log.Info().Msg("connected to Postgres")

		repo = appointment.NewPgRepository(pgPool)
		directory = appointment.NewPgDirectory(pgPool)
	default:
		log.Warn().Msg("using in-memory store, data is lost on restart")
		repo = appointment.NewMemoryRepository()
		directory = seededMemoryDirectory()
	}

	var (
		locker redisclient.Locker
		rdb    *redis.Client
	)
	switch cfg.LockBackend {
	case config.LockBackendRedis:
		rdb, err = redisclient.NewRedisClient(rootCtx, cfg.Redis)
		if err != nil {
			log.Fatal().Err(err).Msg("redis connection error")
		}
		defer func() {
			if err := rdb.Close(); err != nil {
				log.Error().Err(err).Msg("error closing redis")
			}
		}()
		log.Info().Str("addr", cfg.Redis.Addr).Int("db", cfg.Redis.DB).Msg("connected to Redis")
		locker = redisclient.NewRedisSlotLocker(rdb, cfg.LockTTL)
	default:
		locker = redisclient.NewLocalLocker()
	}

	mailer := notify.NewAsync(notify.FromConfig(cfg, log), 4, 256, 15*time.Second, log)
	svc := appointment.NewService(repo, directory, locker, mailer, clock.System(), log)
	tokens := auth.NewTokenService(cfg.JWTSecret, cfg.JWTIssuer, cfg.TokenTTL, clock.System())

	srv := &http.Server{
		Addr: net.JoinHostPort("", cfg.HTTPPort),
		Handler: api.NewRouter(api.RouterConfig{
			Service: svc,
			Tokens:  tokens,
			PgPool:  pgPool,
			Redis:   rdb,
			Logger:  log,
			Env:     cfg.Env,
			Version: version,
		}),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info().Str("addr", srv.Addr).Msg("http server listening")
		serveErr <- srv.ListenAndServe()
	}()

	failed := false
	select {
	case err := <-serveErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("http server failed")
			failed = true
		}
	case <-rootCtx.Done():
		log.Info().Msg("shutdown signal received")
	}

	shutdown(srv, mailer, cfg.ShutdownTimeout, log)
	log.Info().Msg("api-server stopped")
	if failed {
		os.Exit(1)
	}
}

// shutdown stops accepting requests, then flushes queued notifications.
func shutdown(srv *http.Server, mailer *notify.Async, timeout time.Duration, log zerolog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("http server shutdown error")
	}
	if err := mailer.Close(ctx); err != nil {
		log.Warn().Err(err).Msg("pending notifications dropped")
	}
}

// seededMemoryDirectory gives the memory store a couple of known parties so the
// API is usable without a database.
func seededMemoryDirectory() *appointment.MemoryDirectory {
	dir := appointment.NewMemoryDirectory()
	dir.AddDoctor(appointment.Party{ID: "doc-1", Name: "Dr. Meera Nair", Email: "meera.nair@clinic.local"})
	dir.AddDoctor(appointment.Party{ID: "doc-2", Name: "Dr. Arjun Rao", Email: "arjun.rao@clinic.local"})
	dir.AddPatient(appointment.Party{ID: "pat-1", Name: "Asha Menon", Email: "asha.menon@example.local"})
	dir.AddPatient(appointment.Party{ID: "pat-2", Name: "Ravi Kumar", Email: "ravi.kumar@example.local"})
	return dir
}
