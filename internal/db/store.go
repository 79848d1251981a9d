package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sofia/crm-revenue/internal/engine"
	"github.com/sofia/crm-revenue/internal/models"
)

type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Both legacy closed-lost spellings exist in migrated data; matched
// case-insensitively.
const closedLostFilter = " AND LOWER(stage) NOT IN ('closed lost', 'closed-lost')"

const dealCols = `id, account_id, name, stage, amount, owner_id,
	created_at, updated_at, last_activity_at, stage_changed_at,
	forecast_close_at, close_at, doc`

func scanDeal(scan func(dest ...interface{}) error) (models.Deal, error) {
	var d models.Deal
	var ownerID *string
	var docRaw []byte

	err := scan(
		&d.ID, &d.AccountID, &d.Name, &d.Stage, &d.Amount, &ownerID,
		&d.CreatedAt, &d.UpdatedAt, &d.LastActivityAt, &d.StageChangedAt,
		&d.ForecastCloseAt, &d.CloseAt, &docRaw,
	)
	if err != nil {
		return d, err
	}

	if ownerID != nil {
		d.OwnerID = *ownerID
	}
	if len(docRaw) > 0 {
		_ = json.Unmarshal(docRaw, &d.Doc)
	}

	return d, nil
}

// DealsInRange fetches the cohort whose effective close date (forecasted
// preferred) falls in the half-open window [From, To). Closed-lost deals
// are excluded unless IncludeLost is set.
func (s *Store) DealsInRange(ctx context.Context, params engine.ListParams) ([]models.Deal, error) {
	where := "WHERE COALESCE(forecast_close_at, close_at) >= $1 AND COALESCE(forecast_close_at, close_at) < $2"
	args := []interface{}{params.From, params.To}
	argIdx := 3

	if !params.IncludeLost {
		where += closedLostFilter
	}

	if params.Owner == models.UnassignedOwner {
		where += " AND (owner_id IS NULL OR owner_id = '')"
	} else if params.Owner != "" {
		where += fmt.Sprintf(" AND owner_id = $%d", argIdx)
		args = append(args, params.Owner)
		argIdx++
	}

	query := fmt.Sprintf("SELECT %s FROM deals %s ORDER BY created_at", dealCols, where)
	return s.queryDeals(ctx, query, args...)
}

// DealByID surfaces malformed ids and unknown ids as distinct conditions.
func (s *Store) DealByID(ctx context.Context, id string) (models.Deal, error) {
	dealID, err := uuid.Parse(id)
	if err != nil {
		return models.Deal{}, fmt.Errorf("%w: %q", models.ErrInvalidID, id)
	}

	query := fmt.Sprintf("SELECT %s FROM deals WHERE id = $1", dealCols)
	d, err := scanDeal(s.pool.QueryRow(ctx, query, dealID).Scan)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Deal{}, fmt.Errorf("%w: %s", models.ErrNotFound, id)
	}
	if err != nil {
		return models.Deal{}, fmt.Errorf("query deal: %w", err)
	}
	return d, nil
}

func (s *Store) AccountsByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.Account, error) {
	if len(ids) == 0 {
		return map[uuid.UUID]models.Account{}, nil
	}

	rows, err := s.pool.Query(ctx, "SELECT id, name, created_at FROM accounts WHERE id = ANY($1)", ids)
	if err != nil {
		return nil, fmt.Errorf("query accounts: %w", err)
	}
	defer rows.Close()

	accounts := make(map[uuid.UUID]models.Account, len(ids))
	for rows.Next() {
		var a models.Account
		if err := rows.Scan(&a.ID, &a.Name, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan account: %w", err)
		}
		accounts[a.ID] = a
	}
	return accounts, rows.Err()
}

// LatestEventsByDeal aggregates the history log down to the most recent
// timestamp per event type for each deal.
func (s *Store) LatestEventsByDeal(ctx context.Context, dealIDs []uuid.UUID) (map[uuid.UUID]models.LatestEvents, error) {
	if len(dealIDs) == 0 {
		return map[uuid.UUID]models.LatestEvents{}, nil
	}

	rows, err := s.pool.Query(ctx, `
		SELECT deal_id, event_type, MAX(occurred_at)
		FROM deal_events
		WHERE deal_id = ANY($1)
		GROUP BY deal_id, event_type
	`, dealIDs)
	if err != nil {
		return nil, fmt.Errorf("query deal events: %w", err)
	}
	defer rows.Close()

	events := map[uuid.UUID]models.LatestEvents{}
	for rows.Next() {
		var dealID uuid.UUID
		var eventType string
		var occurredAt time.Time
		if err := rows.Scan(&dealID, &eventType, &occurredAt); err != nil {
			return nil, fmt.Errorf("scan deal event: %w", err)
		}
		if events[dealID] == nil {
			events[dealID] = models.LatestEvents{}
		}
		events[dealID][eventType] = occurredAt
	}
	return events, rows.Err()
}

// OpenDeals lists non-terminal deals for the attention panels.
func (s *Store) OpenDeals(ctx context.Context, limit int) ([]models.Deal, error) {
	if limit <= 0 {
		limit = 500
	}
	query := fmt.Sprintf(`SELECT %s FROM deals
		WHERE LOWER(stage) NOT IN ('closed won', 'closed-won', 'closed lost', 'closed-lost')
		ORDER BY updated_at DESC LIMIT $1`, dealCols)
	return s.queryDeals(ctx, query, limit)
}

// DealsMissingNormalized returns the next batch of records the backfill
// pass has not repaired yet. The scan naturally advances as batches commit,
// which is what makes an interrupted run resumable.
func (s *Store) DealsMissingNormalized(ctx context.Context, limit int) ([]models.Deal, error) {
	query := fmt.Sprintf("SELECT %s FROM deals WHERE normalized_at IS NULL ORDER BY created_at LIMIT $1", dealCols)
	return s.queryDeals(ctx, query, limit)
}

// UpdateNormalized writes derived values back onto a legacy record. Only
// missing columns are filled (COALESCE keeps stored values), so re-running
// over an already-normalized record changes nothing.
func (s *Store) UpdateNormalized(ctx context.Context, id uuid.UUID, lastActivityAt, stageChangedAt, forecastCloseAt, closeAt *time.Time) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE deals SET
			last_activity_at = COALESCE(last_activity_at, $2),
			stage_changed_at = COALESCE(stage_changed_at, $3),
			forecast_close_at = COALESCE(forecast_close_at, $4),
			close_at = COALESCE(close_at, $5),
			normalized_at = NOW()
		WHERE id = $1
	`, id, lastActivityAt, stageChangedAt, forecastCloseAt, closeAt)
	if err != nil {
		return fmt.Errorf("update normalized fields: %w", err)
	}
	return nil
}

func (s *Store) queryDeals(ctx context.Context, query string, args ...interface{}) ([]models.Deal, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query deals: %w", err)
	}
	defer rows.Close()

	var deals []models.Deal
	for rows.Next() {
		d, err := scanDeal(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan deal: %w", err)
		}
		deals = append(deals, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration failed: %w", err)
	}
	return deals, nil
}
