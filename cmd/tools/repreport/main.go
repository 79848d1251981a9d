package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/sofia/crm-revenue/internal/config"
	"github.com/sofia/crm-revenue/internal/db"
	"github.com/sofia/crm-revenue/internal/engine"
)

func main() {
	period := flag.String("period", engine.PeriodCurrentQuarter, "named fiscal period")
	flag.Parse()

	_ = godotenv.Load()
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		With().Timestamp().Logger()

	ctx := context.Background()
	pool, err := db.Connect(ctx)
	if err != nil {
		logger.Fatal().Err(err).Msg("db connect failed")
	}
	defer pool.Close()

	settings, err := config.LoadFile(os.Getenv("SCORING_SETTINGS_FILE"))
	if err != nil {
		logger.Warn().Err(err).Msg("scoring settings unusable; using defaults")
	}

	svc := engine.NewService(db.NewStore(pool), settings, logger)
	reps, err := svc.RepPerformance(ctx, engine.ForecastQuery{Period: *period})
	if err != nil {
		logger.Fatal().Err(err).Msg("rep performance failed")
	}

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"Owner", "Deals", "Open", "Won", "Lost", "Win Rate", "Avg Deal", "Forecasted", "Score"})

	for _, rep := range reps {
		t.AppendRow(table.Row{
			rep.OwnerID,
			rep.TotalDeals,
			rep.OpenDeals,
			rep.WonDeals,
			rep.LostDeals,
			fmt.Sprintf("%.0f%%", rep.WinRate),
			fmt.Sprintf("%.0f", rep.AvgDealSize),
			fmt.Sprintf("%.0f", rep.ForecastedRevenue),
			fmt.Sprintf("%.0f", rep.Score),
		})
	}

	t.Render()
}
