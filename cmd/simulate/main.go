package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/hackgods/clinic-booking/internal/appointment"
	"github.com/hackgods/clinic-booking/internal/auth"
	"github.com/hackgods/clinic-booking/internal/clock"
	"github.com/hackgods/clinic-booking/internal/config"
	"github.com/hackgods/clinic-booking/internal/db"
	"github.com/hackgods/clinic-booking/internal/logging"
)

type SimConfig struct {
	APIBaseURL   string
	DoctorID     string
	Rounds       int
	Concurrency  int
	FirstSlot    time.Time
	PatientLimit int
}

// OperationMetrics aggregates the outcome and latency of booking attempts.
type OperationMetrics struct {
	Total     int64
	Success   int64
	Conflict  int64
	Error     int64
	Latencies []time.Duration
	mu        sync.Mutex
}

func (om *OperationMetrics) Record(latency time.Duration, status int) {
	atomic.AddInt64(&om.Total, 1)
	switch status {
	case http.StatusCreated:
		atomic.AddInt64(&om.Success, 1)
	case http.StatusConflict:
		atomic.AddInt64(&om.Conflict, 1)
	default:
		atomic.AddInt64(&om.Error, 1)
	}

	om.mu.Lock()
	om.Latencies = append(om.Latencies, latency)
	om.mu.Unlock()
}

func (om *OperationMetrics) Stats() (avg, p50, p95, worst time.Duration) {
	om.mu.Lock()
	defer om.mu.Unlock()

	if len(om.Latencies) == 0 {
		return 0, 0, 0, 0
	}

	latencies := make([]time.Duration, len(om.Latencies))
	copy(latencies, om.Latencies)
	sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })

	var sum time.Duration
	for _, l := range latencies {
		sum += l
	}
	avg = sum / time.Duration(len(latencies))
	p50 = latencies[len(latencies)*50/100]
	p95 = latencies[min(len(latencies)*95/100, len(latencies)-1)]
	worst = latencies[len(latencies)-1]
	return avg, p50, p95, worst
}

type roundResult struct {
	slot     time.Time
	winners  int
	conflict int
	errors   int
}

type Simulator struct {
	config  SimConfig
	client  *http.Client
	tokens  []string
	metrics OperationMetrics
	log     zerolog.Logger
}

func main() {
	baseCfg, err := config.Load()
	if err != nil {
		boot := logging.New("simulate", "dev", "info")
		boot.Fatal().Err(err).Msg("config load error")
	}
	log := logging.New("simulate", baseCfg.Env, baseCfg.LogLevel)

	cfg := loadConfig()
	if cfg.Concurrency <= 1 || cfg.Rounds <= 0 {
		log.Fatal().Int("concurrency", cfg.Concurrency).Int("rounds", cfg.Rounds).Msg("SIM_CONCURRENCY must be > 1 and SIM_ROUNDS > 0")
	}

	patients, err := loadPatients(baseCfg, cfg.PatientLimit, log)
	if err != nil {
		log.Fatal().Err(err).Msg("load patients")
	}

	issuer := auth.NewTokenService(baseCfg.JWTSecret, baseCfg.JWTIssuer, time.Hour, clock.System())
	tokens := make([]string, 0, len(patients))
	for _, id := range patients {
		raw, err := issuer.Issue(auth.Actor{ID: id, Role: appointment.RolePatient})
		if err != nil {
			log.Fatal().Err(err).Str("patient_id", id).Msg("issue token")
		}
		tokens = append(tokens, raw)
	}

	sim := &Simulator{
		config: cfg,
		client: &http.Client{Timeout: 10 * time.Second},
		tokens: tokens,
		log:    log,
	}

	log.Info().
		Str("api", cfg.APIBaseURL).
		Str("doctor_id", cfg.DoctorID).
		Int("rounds", cfg.Rounds).
		Int("concurrency", cfg.Concurrency).
		Int("patients", len(tokens)).
		Msg("simulator starting")

	results := sim.Run(context.Background())
	if !sim.PrintReport(results) {
		os.Exit(1)
	}
}

func loadConfig() SimConfig {
	first := getTime("SIM_FIRST_SLOT", defaultFirstSlot())
	return SimConfig{
		APIBaseURL:   strings.TrimRight(getEnv("SIM_API_BASE_URL", "http://localhost:8080"), "/"),
		DoctorID:     getEnv("SIM_DOCTOR_ID", "doc-1"),
		Rounds:       getInt("SIM_ROUNDS", 5),
		Concurrency:  getInt("SIM_CONCURRENCY", 50),
		FirstSlot:    first,
		PatientLimit: getInt("SIM_PATIENT_LIMIT", 200),
	}
}

// defaultFirstSlot is 10:00 clinic time tomorrow.
func defaultFirstSlot() time.Time {
	tomorrow := time.Now().In(clock.IST).AddDate(0, 0, 1)
	return time.Date(tomorrow.Year(), tomorrow.Month(), tomorrow.Day(), 10, 0, 0, 0, clock.IST)
}

// loadPatients reads patient ids from Postgres when configured, otherwise from
// SIM_PATIENT_IDS.
func loadPatients(cfg config.Config, limit int, log zerolog.Logger) ([]string, error) {
	if raw := os.Getenv("SIM_PATIENT_IDS"); raw != "" || cfg.StoreDriver != config.StoreDriverPostgres {
		if raw == "" {
			raw = "pat-1,pat-2"
		}
		var ids []string
		for _, id := range strings.Split(raw, ",") {
			if id = strings.TrimSpace(id); id != "" {
				ids = append(ids, id)
			}
		}
		return ids, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := db.ConnectPostgres(ctx, cfg.PostgresDSN)
	if err != nil {
		return nil, err
	}
	defer pool.Close()

	ids, err := queryPatientIDs(ctx, pool, limit)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, fmt.Errorf("no patients found, run cmd/seed first")
	}
	log.Info().Int("count", len(ids)).Msg("loaded patients from postgres")
	return ids, nil
}

func queryPatientIDs(ctx context.Context, pool *pgxpool.Pool, limit int) ([]string, error) {
	rows, err := pool.Query(ctx, `SELECT id FROM patients ORDER BY id LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("query patients: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Run fires Concurrency simultaneous bookings at one slot per round.
func (s *Simulator) Run(ctx context.Context) []roundResult {
	results := make([]roundResult, 0, s.config.Rounds)
	for round := 0; round < s.config.Rounds; round++ {
		slot := s.config.FirstSlot.Add(time.Duration(round) * appointment.SlotDuration)
		results = append(results, s.round(ctx, slot))
	}
	return results
}

func (s *Simulator) round(ctx context.Context, slot time.Time) roundResult {
	var (
		wg       sync.WaitGroup
		start    = make(chan struct{})
		winners  int64
		conflict int64
		failed   int64
	)
	for i := 0; i < s.config.Concurrency; i++ {
		wg.Add(1)
		go func(token string) {
			defer wg.Done()
			<-start

			status := s.book(ctx, token, slot)
			switch status {
			case http.StatusCreated:
				atomic.AddInt64(&winners, 1)
			case http.StatusConflict:
				atomic.AddInt64(&conflict, 1)
			default:
				atomic.AddInt64(&failed, 1)
			}
		}(s.tokens[i%len(s.tokens)])
	}
	close(start)
	wg.Wait()

	return roundResult{slot: slot, winners: int(winners), conflict: int(conflict), errors: int(failed)}
}

func (s *Simulator) book(ctx context.Context, token string, slot time.Time) int {
	body, _ := json.Marshal(map[string]string{
		"doctor_id":      s.config.DoctorID,
		"startTimestamp": appointment.FormatTimestamp(slot),
		"notes":          "simulated booking",
	})

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.config.APIBaseURL+"/appointments/book", bytes.NewReader(body))
	if err != nil {
		return 0
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	started := time.Now()
	resp, err := s.client.Do(req)
	latency := time.Since(started)
	if err != nil {
		s.log.Debug().Err(err).Msg("booking request failed")
		s.metrics.Record(latency, 0)
		return 0
	}
	defer resp.Body.Close()

	s.metrics.Record(latency, resp.StatusCode)
	return resp.StatusCode
}

// PrintReport writes the per-round outcome and reports whether every round had
// exactly one winner.
func (s *Simulator) PrintReport(results []roundResult) bool {
	fmt.Println("\n" + strings.Repeat("=", 80))
	fmt.Println("CONCURRENT BOOKING REPORT")
	fmt.Println(strings.Repeat("=", 80))
	fmt.Printf("Doctor: %s  Concurrency: %d  Rounds: %d\n\n", s.config.DoctorID, s.config.Concurrency, s.config.Rounds)

	ok := true
	for _, r := range results {
		verdict := "OK"
		if r.winners != 1 {
			verdict = "FAIL"
			ok = false
		}
		fmt.Printf("  %s  201=%d  409=%d  other=%d  %s\n",
			appointment.FormatTimestamp(r.slot), r.winners, r.conflict, r.errors, verdict)
	}

	avg, p50, p95, worst := s.metrics.Stats()
	fmt.Println()
	fmt.Printf("Requests: %d  Created: %d  Conflicts: %d  Errors: %d\n",
		atomic.LoadInt64(&s.metrics.Total), atomic.LoadInt64(&s.metrics.Success),
		atomic.LoadInt64(&s.metrics.Conflict), atomic.LoadInt64(&s.metrics.Error))
	fmt.Printf("Latency: avg=%s p50=%s p95=%s max=%s\n",
		avg.Round(time.Millisecond), p50.Round(time.Millisecond),
		p95.Round(time.Millisecond), worst.Round(time.Millisecond))
	return ok
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getTime(key string, def time.Time) time.Time {
	if v := os.Getenv(key); v != "" {
		if t, err := appointment.ParseTimestamp(v); err == nil {
			return t
		}
	}
	return def
}
