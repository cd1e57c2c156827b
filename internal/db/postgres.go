package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hackgods/vetcare-appointments/internal/config"
)

const healthCheckPeriod = 30 * time.Second

// ConnectPostgres opens a pool sized from cfg and pings it once.
func ConnectPostgres(ctx context.Context, cfg config.Config) (*pgxpool.Pool, error) {
	poolCfg, err := poolConfig(cfg)
	if err != nil {
		return nil, err
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create pgx pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, cfg.PgPingTimeout)
	defer cancel()

	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	return pool, nil
}

func poolConfig(cfg config.Config) (*pgxpool.Config, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}

	poolCfg.MaxConns = cfg.PgMaxConns
	poolCfg.MinConns = cfg.PgMinConns
	poolCfg.MaxConnLifetime = cfg.PgConnLifetime
	poolCfg.MaxConnIdleTime = cfg.PgConnIdleTime
	poolCfg.HealthCheckPeriod = healthCheckPeriod

	return poolCfg, nil
}
