package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/hackgods/vetcare-appointments/internal/config"
	"github.com/hackgods/vetcare-appointments/internal/db"
	"github.com/hackgods/vetcare-appointments/internal/identity"
	"github.com/hackgods/vetcare-appointments/internal/logging"
)

type SimConfig struct {
	APIBaseURL      string
	Duration        time.Duration
	Workers         int
	RescheduleRatio float64
	CancelRatio     float64
	RaceRatio       float64
	OwnerLimit      int
	DoctorLimit     int
	PostgresDSN     string
	JWTSecret       []byte
	TokenTTL        time.Duration
}

type ownerPet struct {
	OwnerID uuid.UUID
	PetID   uuid.UUID
}

type DataPool struct {
	OwnerPets []ownerPet
	Doctors   []uuid.UUID
	Admin     uuid.UUID
}

type OperationMetrics struct {
	Total     int64
	Success   int64
	Conflict  int64
	Error     int64
	Latencies []time.Duration
	mu        sync.Mutex
}

func (om *OperationMetrics) Record(latency time.Duration, success bool, conflict bool) {
	atomic.AddInt64(&om.Total, 1)
	if success {
		atomic.AddInt64(&om.Success, 1)
	} else if conflict {
		atomic.AddInt64(&om.Conflict, 1)
	} else {
		atomic.AddInt64(&om.Error, 1)
	}

	om.mu.Lock()
	om.Latencies = append(om.Latencies, latency)
	om.mu.Unlock()
}

func (om *OperationMetrics) Stats() (avg, min, max, p50, p95 time.Duration) {
	om.mu.Lock()
	defer om.mu.Unlock()

	if len(om.Latencies) == 0 {
		return 0, 0, 0, 0, 0
	}

	latencies := make([]time.Duration, len(om.Latencies))
	copy(latencies, om.Latencies)

	sort.Slice(latencies, func(i, j int) bool {
		return latencies[i] < latencies[j]
	})

	var sum time.Duration
	for _, l := range latencies {
		sum += l
	}

	avg = sum / time.Duration(len(latencies))
	min = latencies[0]
	max = latencies[len(latencies)-1]
	p50 = latencies[min2(len(latencies)*50/100, len(latencies)-1)]
	p95 = latencies[min2(len(latencies)*95/100, len(latencies)-1)]

	return avg, min, max, p50, p95
}

type Metrics struct {
	Book          OperationMetrics
	DoctorRespond OperationMetrics
	OwnerRespond  OperationMetrics
	Pay           OperationMetrics
	Complete      OperationMetrics
	Cancel        OperationMetrics
	Read          OperationMetrics
	History       OperationMetrics
	Race          OperationMetrics
}

type Simulator struct {
	config  SimConfig
	pool    *DataPool
	client  *http.Client
	log     zerolog.Logger
	metrics Metrics

	tokens sync.Map // uuid.UUID -> string
}

func main() {
	cfg, logger := loadConfig()
	if err := validateConfig(cfg); err != nil {
		logger.Fatal().Err(err).Msg("invalid config")
	}

	logger.Info().
		Dur("duration", cfg.Duration).
		Int("workers", cfg.Workers).
		Float64("reschedule_ratio", cfg.RescheduleRatio).
		Float64("cancel_ratio", cfg.CancelRatio).
		Float64("race_ratio", cfg.RaceRatio).
		Msg("simulator starting")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pgPool, err := db.ConnectPostgres(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("connect postgres")
	}
	defer pgPool.Close()

	dataPool, err := loadDataPool(ctx, pgPool, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("load data pool")
	}

	logger.Info().
		Int("owner_pets", len(dataPool.OwnerPets)).
		Int("doctors", len(dataPool.Doctors)).
		Msg("data pool loaded")

	sim := &Simulator{
		config: cfg,
		pool:   dataPool,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
		log: logger,
	}

	sim.Run()
	sim.PrintReport()
}

func loadConfig() (SimConfig, zerolog.Logger) {
	baseCfg, err := config.Load()
	if err != nil {
		fallback := logging.New("dev", "info", "simulate")
		fallback.Fatal().Err(err).Msg("failed to load base config")
	}

	cfg := SimConfig{
		APIBaseURL:      getEnv("SIM_API_BASE_URL", "http://localhost:8080"),
		Duration:        getDuration("SIM_DURATION", 30*time.Second),
		Workers:         getInt("SIM_WORKERS", 10),
		RescheduleRatio: getFloat("SIM_RESCHEDULE_RATIO", 0.3),
		CancelRatio:     getFloat("SIM_CANCEL_RATIO", 0.1),
		RaceRatio:       getFloat("SIM_RACE_RATIO", 0.1),
		OwnerLimit:      getInt("SIM_OWNER_LIMIT", 4000),
		DoctorLimit:     getInt("SIM_DOCTOR_LIMIT", 100),
		PostgresDSN:     baseCfg.PostgresDSN,
		JWTSecret:       []byte(baseCfg.JWTSecret),
		TokenTTL:        baseCfg.TokenTTL,
	}

	return cfg, logging.New(baseCfg.Env, baseCfg.LogLevel, "simulate")
}

func validateConfig(cfg SimConfig) error {
	if cfg.PostgresDSN == "" {
		return fmt.Errorf("POSTGRES_DSN is required (set in .env or environment)")
	}
	if cfg.Workers <= 0 {
		return fmt.Errorf("SIM_WORKERS must be > 0")
	}
	if cfg.Duration <= 0 {
		return fmt.Errorf("SIM_DURATION must be > 0")
	}
	return nil
}

func loadDataPool(ctx context.Context, pool *pgxpool.Pool, cfg SimConfig) (*DataPool, error) {
	dataPool := &DataPool{}

	rows, err := pool.Query(ctx, `
		SELECT p.owner_id, p.id
		FROM pets p
		JOIN users u ON u.id = p.owner_id AND u.role = 'owner'
		LIMIT $1
	`, cfg.OwnerLimit)
	if err != nil {
		return nil, fmt.Errorf("load pets: %w", err)
	}
	for rows.Next() {
		var op ownerPet
		if err := rows.Scan(&op.OwnerID, &op.PetID); err != nil {
			rows.Close()
			return nil, err
		}
		dataPool.OwnerPets = append(dataPool.OwnerPets, op)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	rows, err = pool.Query(ctx, `SELECT id FROM users WHERE role = 'doctor' LIMIT $1`, cfg.DoctorLimit)
	if err != nil {
		return nil, fmt.Errorf("load doctors: %w", err)
	}
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, err
		}
		dataPool.Doctors = append(dataPool.Doctors, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if err := pool.QueryRow(ctx, `SELECT id FROM users WHERE role = 'admin' LIMIT 1`).Scan(&dataPool.Admin); err != nil {
		return nil, fmt.Errorf("load admin: %w", err)
	}

	if len(dataPool.OwnerPets) == 0 {
		return nil, fmt.Errorf("no pets loaded")
	}
	if len(dataPool.Doctors) == 0 {
		return nil, fmt.Errorf("no doctors loaded")
	}

	return dataPool, nil
}

func (s *Simulator) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.Duration)
	defer cancel()

	s.log.Info().Msg("starting simulation")

	var wg sync.WaitGroup
	for i := 0; i < s.config.Workers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			s.worker(ctx, workerID)
		}(i)
	}

	wg.Wait()
	s.log.Info().Msg("simulation complete")
}

func (s *Simulator) worker(ctx context.Context, workerID int) {
	rng := rand.New(rand.NewSource(time.Now().UnixNano() + int64(workerID)))

	for {
		select {
		case <-ctx.Done():
			return
		default:
			s.runLifecycle(ctx, rng)
		}
	}
}

// runLifecycle walks one appointment from booking to a terminal status,
// taking the reschedule, cancel and race branches by ratio.
func (s *Simulator) runLifecycle(ctx context.Context, rng *rand.Rand) {
	op := s.pool.OwnerPets[rng.Intn(len(s.pool.OwnerPets))]
	doctorID := s.pool.Doctors[rng.Intn(len(s.pool.Doctors))]

	var created struct {
		ID uuid.UUID `json:"id"`
	}
	ok := s.call(ctx, &s.metrics.Book, http.MethodPost, "/appointments", op.OwnerID, identity.RoleOwner, map[string]any{
		"doctor_id":        doctorID,
		"pet_id":           op.PetID,
		"appointment_date": randomDate(rng),
		"appointment_time": randomTime(rng),
		"appointment_type": []string{"HomeVisit", "VideoCall", "OnClinic"}[rng.Intn(3)],
		"charges":          float64(rng.Intn(200) + 20),
	}, http.StatusCreated, &created)
	if !ok || created.ID == uuid.Nil {
		return
	}
	apptPath := "/appointments/" + created.ID.String()

	s.call(ctx, &s.metrics.Read, http.MethodGet, apptPath, doctorID, identity.RoleDoctor, nil, http.StatusOK, nil)

	if rng.Float64() < s.config.CancelRatio {
		s.call(ctx, &s.metrics.Cancel, http.MethodPost, apptPath+"/cancel", op.OwnerID, identity.RoleOwner, nil, http.StatusOK, nil)
		return
	}

	if rng.Float64() < s.config.RescheduleRatio {
		if !s.call(ctx, &s.metrics.DoctorRespond, http.MethodPost, apptPath+"/doctor-response", doctorID, identity.RoleDoctor, map[string]any{
			"status":           "Rescheduled",
			"appointment_date": randomDate(rng),
			"appointment_time": randomTime(rng),
		}, http.StatusOK, nil) {
			return
		}
		if !s.call(ctx, &s.metrics.OwnerRespond, http.MethodPost, apptPath+"/owner-response", op.OwnerID, identity.RoleOwner, map[string]any{
			"status": "Accepted",
		}, http.StatusOK, nil) {
			return
		}
	} else if rng.Float64() < s.config.RaceRatio {
		if !s.race(ctx, apptPath, op.OwnerID, doctorID) {
			return
		}
	} else {
		if !s.call(ctx, &s.metrics.DoctorRespond, http.MethodPost, apptPath+"/doctor-response", doctorID, identity.RoleDoctor, map[string]any{
			"status": "Accepted",
		}, http.StatusOK, nil) {
			return
		}
	}

	if !s.call(ctx, &s.metrics.Pay, http.MethodPost, apptPath+"/payment", op.OwnerID, identity.RoleOwner, map[string]any{
		"is_paid": true,
	}, http.StatusOK, nil) {
		return
	}

	s.call(ctx, &s.metrics.Complete, http.MethodPost, apptPath+"/complete", doctorID, identity.RoleDoctor, map[string]any{
		"diagnosis":     "Routine check",
		"treatment":     "None required",
		"prescriptions": "",
	}, http.StatusOK, nil)

	s.call(ctx, &s.metrics.History, http.MethodGet, "/pets/"+op.PetID.String()+"/history", op.OwnerID, identity.RoleOwner, nil, http.StatusOK, nil)
	s.call(ctx, &s.metrics.Read, http.MethodGet, "/appointments?limit=20&pet_id="+op.PetID.String(), s.pool.Admin, identity.RoleAdmin, nil, http.StatusOK, nil)
}

// race has the owner and the doctor accept the same appointment at once.
// Exactly one should win; the other sees a conflict or an invalid transition.
func (s *Simulator) race(ctx context.Context, apptPath string, ownerID, doctorID uuid.UUID) bool {
	var (
		wg   sync.WaitGroup
		wins int32
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		if s.call(ctx, &s.metrics.Race, http.MethodPost, apptPath+"/owner-response", ownerID, identity.RoleOwner,
			map[string]any{"status": "Accepted"}, http.StatusOK, nil) {
			atomic.AddInt32(&wins, 1)
		}
	}()
	go func() {
		defer wg.Done()
		if s.call(ctx, &s.metrics.Race, http.MethodPost, apptPath+"/doctor-response", doctorID, identity.RoleDoctor,
			map[string]any{"status": "Accepted"}, http.StatusOK, nil) {
			atomic.AddInt32(&wins, 1)
		}
	}()
	wg.Wait()

	if wins > 1 {
		s.log.Error().Str("path", apptPath).Msg("both racers won")
	}
	return wins > 0
}

func (s *Simulator) call(ctx context.Context, om *OperationMetrics, method, path string, userID uuid.UUID, role identity.Role, body any, want int, out any) bool {
	var reader *bytes.Reader
	if body != nil {
		raw, _ := json.Marshal(body)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.config.APIBaseURL+path, reader)
	if err != nil {
		return false
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.token(userID, role))

	start := time.Now()
	resp, err := s.client.Do(req)
	latency := time.Since(start)

	success := false
	conflict := false

	if err == nil {
		defer resp.Body.Close()

		switch {
		case resp.StatusCode == want:
			success = true
			if out != nil {
				_ = json.NewDecoder(resp.Body).Decode(out)
			}
		case resp.StatusCode == http.StatusConflict:
			conflict = true
		}
	}

	if ctx.Err() == nil {
		om.Record(latency, success, conflict)
	}
	return success
}

func (s *Simulator) token(userID uuid.UUID, role identity.Role) string {
	if t, ok := s.tokens.Load(userID); ok {
		return t.(string)
	}
	t, err := identity.IssueToken(s.config.JWTSecret, userID, role, s.config.TokenTTL)
	if err != nil {
		s.log.Error().Err(err).Msg("issue token")
		return ""
	}
	s.tokens.Store(userID, t)
	return t
}

func (s *Simulator) PrintReport() {
	fmt.Println("\n" + repeat("=", 80))
	fmt.Println("SIMULATION REPORT")
	fmt.Println(repeat("=", 80))
	fmt.Printf("Duration: %s\n", s.config.Duration)
	fmt.Printf("Workers: %d\n", s.config.Workers)
	fmt.Println()

	printOperationReport("Book", &s.metrics.Book)
	printOperationReport("Doctor response", &s.metrics.DoctorRespond)
	printOperationReport("Owner response", &s.metrics.OwnerRespond)
	printOperationReport("Accept race", &s.metrics.Race)
	printOperationReport("Payment", &s.metrics.Pay)
	printOperationReport("Complete", &s.metrics.Complete)
	printOperationReport("Cancel", &s.metrics.Cancel)
	printOperationReport("Read by ID", &s.metrics.Read)
	printOperationReport("Pet history", &s.metrics.History)
}

func printOperationReport(name string, om *OperationMetrics) {
	total := atomic.LoadInt64(&om.Total)
	if total == 0 {
		return
	}

	success := atomic.LoadInt64(&om.Success)
	conflict := atomic.LoadInt64(&om.Conflict)
	failed := atomic.LoadInt64(&om.Error)

	avg, min, max, p50, p95 := om.Stats()

	fmt.Printf("%s:\n", name)
	fmt.Printf("  Total: %d\n", total)
	fmt.Printf("  Success: %d (%.1f%%)\n", success, float64(success)/float64(total)*100)
	if conflict > 0 {
		fmt.Printf("  Conflicts: %d (%.1f%%)\n", conflict, float64(conflict)/float64(total)*100)
	}
	if failed > 0 {
		fmt.Printf("  Errors: %d (%.1f%%)\n", failed, float64(failed)/float64(total)*100)
	}
	fmt.Printf("  Latency: avg=%s min=%s max=%s p50=%s p95=%s\n",
		avg.Round(time.Millisecond), min.Round(time.Millisecond), max.Round(time.Millisecond),
		p50.Round(time.Millisecond), p95.Round(time.Millisecond))
	fmt.Println()
}

// Helper functions

func randomDate(rng *rand.Rand) string {
	return time.Now().AddDate(0, 0, rng.Intn(60)+1).Format("2006-01-02")
}

func randomTime(rng *rand.Rand) string {
	return fmt.Sprintf("%02d:%02d", 8+rng.Intn(10), []int{0, 15, 30, 45}[rng.Intn(4)])
}

func min2(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func getInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func repeat(s string, n int) string {
	return strings.Repeat(s, n)
}
