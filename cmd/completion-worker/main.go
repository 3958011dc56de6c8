package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/hackgods/clinic-booking/internal/appointment"
	"github.com/hackgods/clinic-booking/internal/clock"
	"github.com/hackgods/clinic-booking/internal/config"
	"github.com/hackgods/clinic-booking/internal/db"
	"github.com/hackgods/clinic-booking/internal/logging"
	"github.com/hackgods/clinic-booking/internal/notify"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		boot := logging.New("completion-worker", "dev", "info")
		boot.Fatal().Err(err).Msg("config load error")
	}
	log := logging.New("completion-worker", cfg.Env, cfg.LogLevel)

	// the memory store lives inside the api-server process, there is nothing to sweep here
	if cfg.StoreDriver != config.StoreDriverPostgres {
		log.Fatal().Str("store", cfg.StoreDriver).Msg("completion worker requires STORE_DRIVER=postgres")
	}

	log.Info().Str("env", cfg.Env).Dur("interval", cfg.WorkerInterval).Msg("completion worker starting up")

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pgCtx, cancelPg := context.WithTimeout(rootCtx, 30*time.Second)
	pgPool, err := db.Open(pgCtx, cfg.PostgresDSN, log)
	cancelPg()
	if err != nil {
		log.Fatal().Err(err).Msg("postgres connection error")
	}
	defer pgPool.Close()
	log.Info().Msg("connected to Postgres")

	// a slow relay must not stall the sweep, mail goes out from the queue
	mailer := notify.NewAsync(notify.FromConfig(cfg, log), 2, 256, 15*time.Second, log)
	defer drain(mailer, cfg.ShutdownTimeout, log)

	// completion never claims a slot, so no slot locker is needed
	svc := appointment.NewService(
		appointment.NewPgRepository(pgPool),
		appointment.NewPgDirectory(pgPool),
		nil,
		mailer,
		clock.System(),
		log,
	)

	// Run once at startup
	runOnce(rootCtx, svc, log)

	ticker := time.NewTicker(cfg.WorkerInterval)
	defer ticker.Stop()

	for {
		select {
		case <-rootCtx.Done():
			log.Info().Msg("shutdown signal received, stopping completion worker")
			return
		case <-ticker.C:
			runOnce(rootCtx, svc, log)
		}
	}
}

func runOnce(ctx context.Context, svc *appointment.Service, log zerolog.Logger) {
	runCtx, cancel := context.WithTimeout(ctx, 20*time.Second)
	defer cancel()

	start := time.Now()
	completed, err := svc.AutoCompleteExpired(runCtx)
	if err != nil {
		log.Error().Err(err).Int("completed", completed).Msg("completion run error")
		return
	}
	log.Debug().Int("completed", completed).Dur("took", time.Since(start)).Msg("completion run complete")
}

// drain flushes queued completion emails before exit.
func drain(mailer *notify.Async, timeout time.Duration, log zerolog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := mailer.Close(ctx); err != nil {
		log.Warn().Err(err).Msg("pending notifications dropped")
	}
}
