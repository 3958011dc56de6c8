package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/brianvoe/gofakeit/v7"

	"github.com/hackgods/clinic-booking/internal/appointment"
	"github.com/hackgods/clinic-booking/internal/auth"
	"github.com/hackgods/clinic-booking/internal/clock"
	"github.com/hackgods/clinic-booking/internal/config"
	"github.com/hackgods/clinic-booking/internal/db"
	"github.com/hackgods/clinic-booking/internal/logging"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		boot := logging.New("seed", "dev", "info")
		boot.Fatal().Err(err).Msg("config load error")
	}
	log := logging.New("seed", cfg.Env, cfg.LogLevel)

	if cfg.StoreDriver != config.StoreDriverPostgres {
		log.Fatal().Str("store", cfg.StoreDriver).Msg("seed requires STORE_DRIVER=postgres")
	}

	doctors := getInt("SEED_DOCTORS", 10)
	patients := getInt("SEED_PATIENTS", 100)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	pool, err := db.Open(ctx, cfg.PostgresDSN, log)
	if err != nil {
		log.Fatal().Err(err).Msg("connect postgres")
	}
	defer pool.Close()

	dir := appointment.NewPgDirectory(pool)
	faker := gofakeit.New(0)

	log.Info().Int("doctors", doctors).Int("patients", patients).Msg("seed starting")

	var doctorIDs, patientIDs []string
	for i := 1; i <= doctors; i++ {
		p := appointment.Party{
			ID:    fmt.Sprintf("doc-%03d", i),
			Name:  "Dr. " + faker.Name(),
			Email: strings.ToLower(faker.Email()),
		}
		if err := dir.UpsertDoctor(ctx, p); err != nil {
			log.Fatal().Err(err).Str("id", p.ID).Msg("seed doctors")
		}
		doctorIDs = append(doctorIDs, p.ID)
	}
	log.Info().Int("count", len(doctorIDs)).Msg("doctors seeded")

	for i := 1; i <= patients; i++ {
		p := appointment.Party{
			ID:    fmt.Sprintf("pat-%04d", i),
			Name:  faker.Name(),
			Email: strings.ToLower(faker.Email()),
		}
		if err := dir.UpsertPatient(ctx, p); err != nil {
			log.Fatal().Err(err).Str("id", p.ID).Msg("seed patients")
		}
		patientIDs = append(patientIDs, p.ID)
	}
	log.Info().Int("count", len(patientIDs)).Msg("patients seeded")

	tokens := auth.NewTokenService(cfg.JWTSecret, cfg.JWTIssuer, cfg.TokenTTL, clock.System())
	printTokens(tokens, appointment.RoleDoctor, first(doctorIDs, 2))
	printTokens(tokens, appointment.RolePatient, first(patientIDs, 3))

	log.Info().Msg("seed complete")
}

// printTokens writes "role id token" lines to stdout for manual API testing.
func printTokens(tokens *auth.TokenService, role appointment.Role, ids []string) {
	for _, id := range ids {
		raw, err := tokens.Issue(auth.Actor{ID: id, Role: role})
		if err != nil {
			fmt.Fprintf(os.Stderr, "issue token for %s: %v\n", id, err)
			continue
		}
		fmt.Printf("%s\t%s\t%s\n", role, id, raw)
	}
}

func first(ids []string, n int) []string {
	if len(ids) < n {
		return ids
	}
	return ids[:n]
}

func getInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			return n
		}
	}
	return def
}
