package main

import (
	"context"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/sofia/crm-revenue/internal/api"
	"github.com/sofia/crm-revenue/internal/backfill"
	"github.com/sofia/crm-revenue/internal/config"
	"github.com/sofia/crm-revenue/internal/db"
	"github.com/sofia/crm-revenue/internal/engine"
)

func main() {
	_ = godotenv.Load()

	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		With().Timestamp().Logger()
	if raw := os.Getenv("LOG_LEVEL"); raw != "" {
		if level, err := zerolog.ParseLevel(raw); err == nil {
			logger = logger.Level(level)
		}
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = "8081"
	}

	ctx := context.Background()
	pool, err := db.Connect(ctx)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()

	if err := db.ApplyMigrations(ctx, pool); err != nil {
		logger.Fatal().Err(err).Msg("migration failed")
	}

	settings, err := config.LoadFile(os.Getenv("SCORING_SETTINGS_FILE"))
	if err != nil {
		// Malformed settings degrade to defaults; never fatal.
		logger.Warn().Err(err).Msg("scoring settings unusable; running with defaults")
	}

	store := db.NewStore(pool)
	svc := engine.NewService(store, settings, logger)

	// Nightly repair pass picks up records imported during the day whose
	// legacy date fields never reached the typed columns.
	scheduler := cron.New()
	if _, err := scheduler.AddFunc("0 3 * * *", func() {
		runCtx, cancel := context.WithTimeout(ctx, 30*time.Minute)
		defer cancel()

		runner := backfill.NewRunner(store, backfill.DefaultBatchSize, logger)
		stats, err := runner.Run(runCtx)
		if err != nil {
			logger.Error().Err(err).Msg("scheduled backfill failed")
			return
		}
		logger.Info().Int("scanned", stats.Scanned).Int("updated", stats.Updated).Msg("scheduled backfill finished")
	}); err != nil {
		logger.Fatal().Err(err).Msg("failed to schedule backfill")
	}
	scheduler.Start()
	defer scheduler.Stop()

	srv := api.NewServer(pool, svc, store, logger)
	logger.Info().Str("port", port).Msg("server starting")
	if err := srv.Start(port); err != nil {
		logger.Fatal().Err(err).Msg("server stopped")
	}
}
