// Package backfill repairs legacy deal records in bulk: date fields that
// only exist inside the raw imported document, and derived fields that were
// never populated, are written back onto the typed columns in bounded
// batches. The pass is idempotent and safe to interrupt; each batch commits
// independently and a rerun only touches records still missing values.
package backfill

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/sofia/crm-revenue/internal/engine"
	"github.com/sofia/crm-revenue/internal/models"
)

// DefaultBatchSize bounds memory and per-batch latency.
const DefaultBatchSize = 500

// Store is the read/write surface the backfill needs.
type Store interface {
	DealsMissingNormalized(ctx context.Context, limit int) ([]models.Deal, error)
	LatestEventsByDeal(ctx context.Context, dealIDs []uuid.UUID) (map[uuid.UUID]models.LatestEvents, error)
	UpdateNormalized(ctx context.Context, id uuid.UUID, lastActivityAt, stageChangedAt, forecastCloseAt, closeAt *time.Time) error
}

type Stats struct {
	Scanned int `json:"scanned"`
	Updated int `json:"updated"`
	Skipped int `json:"skipped"`
	Batches int `json:"batches"`
}

type Runner struct {
	store     Store
	batchSize int
	log       zerolog.Logger

	now func() time.Time
}

func NewRunner(store Store, batchSize int, log zerolog.Logger) *Runner {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &Runner{store: store, batchSize: batchSize, log: log, now: time.Now}
}

// Run processes batches until the scan comes back empty or the context is
// cancelled. A failed history lookup downgrades the batch to the
// updatedAt/createdAt fallback chains; a failed write skips that record and
// the run continues.
func (r *Runner) Run(ctx context.Context) (Stats, error) {
	var stats Stats

	for {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		deals, err := r.store.DealsMissingNormalized(ctx, r.batchSize)
		if err != nil {
			return stats, err
		}
		if len(deals) == 0 {
			return stats, nil
		}
		stats.Batches++

		ids := make([]uuid.UUID, len(deals))
		for i, d := range deals {
			ids[i] = d.ID
		}

		events, err := r.store.LatestEventsByDeal(ctx, ids)
		if err != nil {
			// Best effort: this batch falls back to updatedAt/createdAt.
			r.log.Warn().Err(err).Msg("history lookup unavailable for batch")
			events = nil
		}

		now := r.now()
		updatedInBatch := 0
		for _, deal := range deals {
			stats.Scanned++

			n := engine.Normalize(deal, nil, events[deal.ID], now)

			lastActivity := n.LastActivityAt
			stageChanged := n.StageChangedAt
			err := r.store.UpdateNormalized(ctx, deal.ID,
				&lastActivity, &stageChanged,
				n.Deal.ForecastCloseAt, n.Deal.CloseAt)
			if err != nil {
				stats.Skipped++
				r.log.Warn().Err(err).Str("deal_id", deal.ID.String()).Msg("backfill write failed")
				continue
			}
			stats.Updated++
			updatedInBatch++
		}

		// Every write in the batch failing means the next scan would return
		// the same rows; stop instead of spinning.
		if updatedInBatch == 0 {
			r.log.Warn().Int("skipped", stats.Skipped).Msg("no progress in batch; stopping backfill")
			return stats, nil
		}

		r.log.Info().
			Int("batch", stats.Batches).
			Int("scanned", stats.Scanned).
			Int("updated", stats.Updated).
			Msg("backfill batch committed")
	}
}
