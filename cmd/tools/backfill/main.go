package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/sofia/crm-revenue/internal/backfill"
	"github.com/sofia/crm-revenue/internal/db"
)

func main() {
	batchSize := flag.Int("batch-size", backfill.DefaultBatchSize, "records per batch")
	timeoutMin := flag.Int("timeout-min", 60, "overall run timeout in minutes")
	flag.Parse()

	_ = godotenv.Load()
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		With().Timestamp().Logger()

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(*timeoutMin)*time.Minute)
	defer cancel()

	pool, err := db.Connect(ctx)
	if err != nil {
		logger.Fatal().Err(err).Msg("db connect failed")
	}
	defer pool.Close()

	if err := db.ApplyMigrations(ctx, pool); err != nil {
		logger.Fatal().Err(err).Msg("migrations failed")
	}

	runner := backfill.NewRunner(db.NewStore(pool), *batchSize, logger)
	stats, err := runner.Run(ctx)
	if err != nil {
		logger.Fatal().Err(err).Msg("backfill failed")
	}

	out, _ := json.MarshalIndent(stats, "", "  ")
	fmt.Println(string(out))
}
