package engine

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/sofia/crm-revenue/internal/config"
	"github.com/sofia/crm-revenue/internal/models"
)

// ListParams narrows a cohort fetch. From/To is the resolved half-open
// close-date window; Owner of models.UnassignedOwner matches deals without
// one. Closed-lost deals are excluded unless IncludeLost is set (rep
// analytics needs them).
type ListParams struct {
	From        time.Time
	To          time.Time
	Owner       string
	IncludeLost bool
}

// Store is the narrow read surface the engine needs from persistence.
type Store interface {
	DealsInRange(ctx context.Context, params ListParams) ([]models.Deal, error)
	DealByID(ctx context.Context, id string) (models.Deal, error)
	AccountsByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.Account, error)
	LatestEventsByDeal(ctx context.Context, dealIDs []uuid.UUID) (map[uuid.UUID]models.LatestEvents, error)
	OpenDeals(ctx context.Context, limit int) ([]models.Deal, error)
}

// Service wires the scoring pipeline end to end. Settings are passed in
// explicitly rather than read from ambient state so the engine is trivially
// testable with synthetic configurations.
type Service struct {
	store    Store
	settings config.Settings
	log      zerolog.Logger

	// now is swappable for tests; defaults to time.Now.
	now func() time.Time
}

func NewService(store Store, settings config.Settings, log zerolog.Logger) *Service {
	return &Service{store: store, settings: settings, log: log, now: time.Now}
}

// ForecastQuery carries the caller-facing options of resolveForecast. An
// explicit date pair overrides the named period token entirely.
type ForecastQuery struct {
	Period         string
	Owner          string
	StartDate      *time.Time
	EndDate        *time.Time
	ExcludeOverdue bool
}

func (q ForecastQuery) resolve(now time.Time) Period {
	if q.StartDate != nil && q.EndDate != nil {
		return ResolveDateRange(*q.StartDate, *q.EndDate)
	}
	return ResolvePeriod(q.Period, now)
}

// ResolveForecast scores the cohort due in the resolved period and
// aggregates it into the three-point revenue forecast.
func (s *Service) ResolveForecast(ctx context.Context, q ForecastQuery) (models.ForecastResult, error) {
	now := s.now()
	period := q.resolve(now)

	cohort, err := s.scoredCohort(ctx, period, q.Owner)
	if err != nil {
		return models.ForecastResult{}, err
	}

	return Aggregate(period, cohort, q.ExcludeOverdue, now), nil
}

// ScoreOne scores a single deal for the detail view. Unknown ids surface
// models.ErrNotFound, malformed ids models.ErrInvalidID.
func (s *Service) ScoreOne(ctx context.Context, id string) (models.ScoredDeal, error) {
	now := s.now()

	deal, err := s.store.DealByID(ctx, id)
	if err != nil {
		return models.ScoredDeal{}, err
	}

	normalized := s.normalizeAll(ctx, []models.Deal{deal}, now)
	return Score(normalized[0], s.settings, now), nil
}

// RunScenario computes the baseline forecast and re-aggregates it with the
// supplied overrides applied. Overridden deals keep their baseline score.
func (s *Service) RunScenario(ctx context.Context, q ForecastQuery, overrides []models.ScenarioOverride) (models.ScenarioResult, error) {
	baseline, err := s.ResolveForecast(ctx, q)
	if err != nil {
		return models.ScenarioResult{}, err
	}
	return ApplyScenario(baseline, overrides, q.ExcludeOverdue, s.now()), nil
}

// RepPerformance groups the period's cohort (lost deals included) by owner.
func (s *Service) RepPerformance(ctx context.Context, q ForecastQuery) ([]models.RepPerformance, error) {
	now := s.now()
	period := q.resolve(now)

	deals, err := s.store.DealsInRange(ctx, ListParams{From: period.Start, To: period.End, IncludeLost: true})
	if err != nil {
		return nil, err
	}

	return AnalyzeReps(s.normalizeAll(ctx, deals, now)), nil
}

// Attention builds the stale and at-risk pipeline panels from the two
// non-scoring thresholds in the settings.
func (s *Service) Attention(ctx context.Context, limit int) (models.AttentionResult, error) {
	now := s.now()

	deals, err := s.store.OpenDeals(ctx, limit)
	if err != nil {
		return models.AttentionResult{}, err
	}

	var result models.AttentionResult
	for _, n := range s.normalizeAll(ctx, deals, now) {
		scored := Score(n, s.settings, now)

		if float64(n.ActivityAgeDays) > s.settings.StaleDealDays {
			result.Stale = append(result.Stale, scored)
		}
		if close := n.Deal.EffectiveCloseAt(); close != nil {
			if float64(models.DaysUntil(now, *close)) <= s.settings.AtRiskCloseDays {
				result.AtRisk = append(result.AtRisk, scored)
			}
		}
	}
	return result, nil
}

// scoredCohort fetches, normalizes, and scores every open-or-won deal whose
// effective close date falls inside the period.
func (s *Service) scoredCohort(ctx context.Context, period Period, owner string) ([]models.ScoredDeal, error) {
	deals, err := s.store.DealsInRange(ctx, ListParams{From: period.Start, To: period.End, Owner: owner})
	if err != nil {
		return nil, err
	}

	now := s.now()
	scored := make([]models.ScoredDeal, 0, len(deals))
	for _, n := range s.normalizeAll(ctx, deals, now) {
		scored = append(scored, Score(n, s.settings, now))
	}
	return scored, nil
}

// normalizeAll runs the record normalizer over a cohort, resolving account
// ages and history-event fallbacks in two bulk lookups. Either lookup
// failing is non-fatal: the fallback chains continue from updatedAt.
func (s *Service) normalizeAll(ctx context.Context, deals []models.Deal, now time.Time) []Normalized {
	var accountIDs []uuid.UUID
	var needEvents []uuid.UUID
	seen := map[uuid.UUID]bool{}
	for _, d := range deals {
		if d.AccountID != nil && !seen[*d.AccountID] {
			seen[*d.AccountID] = true
			accountIDs = append(accountIDs, *d.AccountID)
		}
		if d.LastActivityAt == nil || d.StageChangedAt == nil {
			needEvents = append(needEvents, d.ID)
		}
	}

	accounts := map[uuid.UUID]models.Account{}
	if len(accountIDs) > 0 {
		found, err := s.store.AccountsByIDs(ctx, accountIDs)
		if err != nil {
			s.log.Warn().Err(err).Msg("account lookup failed; scoring without account ages")
		} else {
			accounts = found
		}
	}

	events := map[uuid.UUID]models.LatestEvents{}
	if len(needEvents) > 0 {
		found, err := s.store.LatestEventsByDeal(ctx, needEvents)
		if err != nil {
			s.log.Warn().Err(err).Msg("history lookup failed; using updatedAt fallbacks")
		} else {
			events = found
		}
	}

	normalized := make([]Normalized, 0, len(deals))
	for _, d := range deals {
		var account *models.Account
		if d.AccountID != nil {
			if a, ok := accounts[*d.AccountID]; ok {
				account = &a
			}
		}
		normalized = append(normalized, Normalize(d, account, events[d.ID], now))
	}
	return normalized
}
