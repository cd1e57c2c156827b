package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/hackgods/vetcare-appointments/internal/appointment"
	"github.com/hackgods/vetcare-appointments/internal/config"
	"github.com/hackgods/vetcare-appointments/internal/db"
	"github.com/hackgods/vetcare-appointments/internal/history"
	"github.com/hackgods/vetcare-appointments/internal/logging"
	"github.com/hackgods/vetcare-appointments/internal/metrics"
	redisclient "github.com/hackgods/vetcare-appointments/internal/redis"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fallback := logging.New("dev", "info", "history-auditor")
		fallback.Fatal().Err(err).Msg("config load error")
	}

	logger := logging.New(cfg.Env, cfg.LogLevel, "history-auditor")
	if cfg.StoreBackend != config.StoreBackendPostgres {
		logger.Fatal().Str("store_backend", cfg.StoreBackend).Msg("history auditor requires the postgres backend")
	}

	logger.Info().Dur("interval", cfg.WorkerInterval).Msg("history-auditor starting up")

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
	pgPool, err := db.ConnectPostgres(pgCtx, cfg)
	cancelPg()
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres connection error")
	}
	defer pgPool.Close()
	logger.Info().Msg("connected to Postgres")

	// The auditor only reads, so a process-local locker is enough.
	svc := appointment.NewService(
		appointment.NewPgRepository(pgPool),
		history.NewPgRecorder(pgPool),
		redisclient.NewLocalLocker(),
		metrics.NewCollector(),
		logger,
	)

	// Run once at startup
	runOnce(rootCtx, logger, svc)

	ticker := time.NewTicker(cfg.WorkerInterval)
	defer ticker.Stop()

	for {
		select {
		case <-rootCtx.Done():
			logger.Info().Msg("shutdown signal received, stopping history auditor")
			return
		case <-ticker.C:
			runOnce(rootCtx, logger, svc)
		}
	}
}

func runOnce(ctx context.Context, logger zerolog.Logger, svc *appointment.Service) {
	runCtx, cancel := context.WithTimeout(ctx, 20*time.Second)
	defer cancel()

	start := time.Now()
	report, err := svc.AuditCompletions(runCtx)
	if err != nil {
		logger.Error().Err(err).Msg("audit run error")
		return
	}

	for _, id := range report.Missing {
		logger.Warn().Str("appointment_id", id.String()).Msg("completed appointment has no medical history")
	}
	logger.Info().
		Int("checked", report.Checked).
		Int("missing", len(report.Missing)).
		Dur("took", time.Since(start)).
		Msg("audit run complete")
}
