package main

import (
	"context"
	"flag"
	"time"

	"github.com/hackgods/vetcare-appointments/internal/config"
	"github.com/hackgods/vetcare-appointments/internal/db"
	"github.com/hackgods/vetcare-appointments/internal/identity"
	"github.com/hackgods/vetcare-appointments/internal/logging"
	"github.com/hackgods/vetcare-appointments/internal/seed"
)

func main() {
	owners := flag.Int("owners", 2000, "number of pet owners")
	doctors := flag.Int("doctors", 50, "number of doctors")
	petsPerOwner := flag.Int("pets-per-owner", 2, "pets generated per owner")
	fakerSeed := flag.Uint64("seed", 0, "faker seed, 0 for random")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fallback := logging.New("dev", "info", "seed")
		fallback.Fatal().Err(err).Msg("config load error")
	}
	logger := logging.New(cfg.Env, cfg.LogLevel, "seed")
	logger.Info().Msg("seed starting")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := db.ConnectPostgres(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("connect postgres")
	}
	defer pool.Close()

	if cfg.AutoMigrate {
		if err := db.ApplySchema(context.Background(), pool); err != nil {
			logger.Fatal().Err(err).Msg("apply schema")
		}
	}

	ds := seed.Generate(*fakerSeed, *owners, *doctors, *petsPerOwner)
	logger.Info().
		Int("owners", len(ds.Owners)).
		Int("doctors", len(ds.Doctors)).
		Int("pets", len(ds.Pets)).
		Msg("dataset generated")

	if err := seed.InsertPostgres(context.Background(), pool, ds, 500); err != nil {
		logger.Fatal().Err(err).Msg("insert dataset")
	}

	for _, u := range ds.Admins {
		token, err := identity.IssueToken([]byte(cfg.JWTSecret), u.ID, u.Role, cfg.TokenTTL)
		if err != nil {
			logger.Error().Err(err).Msg("issue admin token")
			continue
		}
		logger.Info().Str("user_id", u.ID.String()).Str("token", token).Msg("admin token")
	}

	logger.Info().Msg("seed complete")
}
