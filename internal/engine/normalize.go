package engine

import (
	"time"

	"github.com/sofia/crm-revenue/internal/models"
)

// Legacy document keys the normalizer falls back to when a typed column was
// never populated. Both camelCase and snake_case spellings occur in migrated
// data.
var (
	docCloseKeys         = []string{"closeDate", "close_date", "closedAt", "closed_at"}
	docForecastCloseKeys = []string{"forecastCloseDate", "forecast_close_date", "expectedCloseDate", "expected_close_date"}
	docLastActivityKeys  = []string{"lastActivityAt", "last_activity_at", "lastActivity", "last_activity"}
	docStageChangedKeys  = []string{"stageChangedAt", "stage_changed_at", "stageEnteredAt", "stage_entered_at"}
)

// Normalized carries the repaired dates and derived ages for one deal. The
// zero HasAccountAge means no account was available; the maturity factor
// then has no effect.
type Normalized struct {
	Deal models.Deal

	LastActivityAt time.Time
	StageChangedAt time.Time

	DealAgeDays     int
	ActivityAgeDays int
	StageAgeDays    int
	AccountAgeDays  int
	HasAccountAge   bool
}

// Normalize reconciles one legacy deal into a comparable shape: date fields
// recovered from the raw document where typed values are missing, then the
// fallback chains of the derived fields, then the ceil-day ages.
//
// events may be nil (history lookup unavailable or empty); the chains then
// continue with updatedAt and createdAt. account may be nil.
func Normalize(deal models.Deal, account *models.Account, events models.LatestEvents, now time.Time) Normalized {
	deal = repairDates(deal)

	n := Normalized{Deal: deal}

	// lastActivityAt: stored value, else latest history event, else
	// updatedAt, else createdAt.
	switch {
	case deal.LastActivityAt != nil:
		n.LastActivityAt = *deal.LastActivityAt
	default:
		if ts, ok := events.Latest(); ok {
			n.LastActivityAt = ts
		} else if !deal.UpdatedAt.IsZero() {
			n.LastActivityAt = deal.UpdatedAt
		} else {
			n.LastActivityAt = deal.CreatedAt
		}
	}

	// stageChangedAt: stored value, else latest stage-change event, else any
	// event, else updatedAt, else createdAt.
	switch {
	case deal.StageChangedAt != nil:
		n.StageChangedAt = *deal.StageChangedAt
	default:
		if ts, ok := events[models.EventTypeStageChanged]; ok && !ts.IsZero() {
			n.StageChangedAt = ts
		} else if ts, ok := events.Latest(); ok {
			n.StageChangedAt = ts
		} else if !deal.UpdatedAt.IsZero() {
			n.StageChangedAt = deal.UpdatedAt
		} else {
			n.StageChangedAt = deal.CreatedAt
		}
	}

	n.DealAgeDays = models.AgeInDays(now, deal.CreatedAt)
	n.ActivityAgeDays = models.AgeInDays(now, n.LastActivityAt)
	n.StageAgeDays = models.AgeInDays(now, n.StageChangedAt)

	if account != nil && !account.CreatedAt.IsZero() {
		n.AccountAgeDays = models.AgeInDays(now, account.CreatedAt)
		n.HasAccountAge = true
	}

	return n
}

// repairDates fills missing typed date fields from the legacy raw document.
// Already-populated fields are left alone, which is what makes a second
// normalization pass a no-op.
func repairDates(deal models.Deal) models.Deal {
	if deal.CloseAt == nil {
		deal.CloseAt = docTime(deal.Doc, docCloseKeys)
	}
	if deal.ForecastCloseAt == nil {
		deal.ForecastCloseAt = docTime(deal.Doc, docForecastCloseKeys)
	}
	if deal.LastActivityAt == nil {
		deal.LastActivityAt = docTime(deal.Doc, docLastActivityKeys)
	}
	if deal.StageChangedAt == nil {
		deal.StageChangedAt = docTime(deal.Doc, docStageChangedKeys)
	}
	return deal
}

func docTime(doc map[string]any, keys []string) *time.Time {
	if doc == nil {
		return nil
	}
	for _, key := range keys {
		if t, ok := models.ParseFlexTime(doc[key]); ok {
			return &t
		}
	}
	return nil
}
