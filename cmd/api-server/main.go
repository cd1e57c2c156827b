package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/hackgods/vetcare-appointments/internal/api"
	"github.com/hackgods/vetcare-appointments/internal/appointment"
	"github.com/hackgods/vetcare-appointments/internal/config"
	"github.com/hackgods/vetcare-appointments/internal/db"
	"github.com/hackgods/vetcare-appointments/internal/history"
	"github.com/hackgods/vetcare-appointments/internal/identity"
	"github.com/hackgods/vetcare-appointments/internal/logging"
	"github.com/hackgods/vetcare-appointments/internal/metrics"
	redisclient "github.com/hackgods/vetcare-appointments/internal/redis"
	"github.com/hackgods/vetcare-appointments/internal/seed"
)

var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		fallback := logging.New("dev", "info", "api-server")
		fallback.Fatal().Err(err).Msg("config load error")
	}

	logger := logging.New(cfg.Env, cfg.LogLevel, "api-server")
	logger.Info().
		Str("http_port", cfg.HTTPPort).
		Str("store_backend", cfg.StoreBackend).
		Dur("lock_ttl", cfg.LockTTL).
		Msg("api-server starting up")

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	collector := metrics.NewCollector()

	var (
		pgPool   *pgxpool.Pool
		rdb      *redis.Client
		repo     appointment.Repository
		recorder history.Recorder
		locker   redisclient.Locker
	)

	switch cfg.StoreBackend {
	case config.StoreBackendPostgres:
		pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
		pgPool, err = db.ConnectPostgres(pgCtx, cfg)
		cancelPg()
		if err != nil {
			logger.Fatal().Err(err).Msg("postgres connection error")
		}
		defer pgPool.Close()
		logger.Info().Msg("connected to Postgres")

		if cfg.AutoMigrate {
			if err := db.ApplySchema(rootCtx, pgPool); err != nil {
				logger.Fatal().Err(err).Msg("schema migration error")
			}
			logger.Info().Msg("schema applied")
		}

		rdb, err = redisclient.NewRedisClient(rootCtx, redisclient.Options{
			Addr:     cfg.RedisAddr,
			Username: cfg.RedisUsername,
			Password: cfg.RedisPassword,
		})
		if err != nil {
			logger.Fatal().Err(err).Msg("redis connection error")
		}
		defer func() {
			if err := rdb.Close(); err != nil {
				logger.Error().Err(err).Msg("error closing redis")
			}
		}()
		logger.Info().Msg("connected to Redis")

		repo = appointment.NewPgRepository(pgPool)
		recorder = history.NewPgRecorder(pgPool)
		locker = redisclient.NewRedisAppointmentLocker(rdb, cfg.LockTTL)

	case config.StoreBackendMemory:
		memRecorder := history.NewMemoryRecorder()
		memRepo := appointment.NewMemoryRepository(memRecorder)
		seedMemory(logger, memRepo, cfg)

		repo = memRepo
		recorder = memRecorder
		locker = redisclient.NewLocalLocker()
	}

	svc := appointment.NewService(repo, recorder, locker, collector, logger)

	router := api.NewRouter(api.RouterConfig{
		Service:        svc,
		PgPool:         pgPool,
		Redis:          rdb,
		Metrics:        collector,
		Logger:         logger,
		JWTSecret:      []byte(cfg.JWTSecret),
		Env:            cfg.Env,
		Version:        version,
		RequestTimeout: cfg.RequestTimeout,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info().Str("addr", srv.Addr).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("http server error")
			stop()
		}
	}()

	<-rootCtx.Done()
	logger.Info().Msg("shutting down api-server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
		os.Exit(1)
	}
}

// seedMemory fills the memory backend with a small fake clinic and logs a
// token per role so the API can be exercised by hand.
func seedMemory(logger zerolog.Logger, repo *appointment.MemoryRepository, cfg config.Config) {
	ds := seed.Generate(0, 5, 3, 2)
	seed.LoadMemory(repo, ds)

	secret := []byte(cfg.JWTSecret)
	sample := []struct {
		label string
		user  appointment.User
	}{
		{"doctor", ds.Doctors[0]},
		{"owner", ds.Owners[0]},
		{"admin", ds.Admins[0]},
	}
	for _, s := range sample {
		token, err := identity.IssueToken(secret, s.user.ID, s.user.Role, cfg.TokenTTL)
		if err != nil {
			logger.Error().Err(err).Str("role", s.label).Msg("issue sample token")
			continue
		}
		logger.Info().
			Str("role", s.label).
			Str("user_id", s.user.ID.String()).
			Str("token", token).
			Msg("memory backend sample caller")
	}

	for _, p := range ds.Pets {
		if p.OwnerID == ds.Owners[0].ID {
			logger.Info().Str("pet_id", p.ID.String()).Str("name", p.Name).Msg("memory backend sample pet")
		}
	}
}
