package engine

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sofia/crm-revenue/internal/models"
)

func legacyDeal() models.Deal {
	return models.Deal{
		ID:        uuid.New(),
		Name:      "Legacy Import",
		Stage:     "Proposal",
		Amount:    12_000,
		CreatedAt: daysAgo(100),
		UpdatedAt: daysAgo(12),
	}
}

func TestNormalize_ActivityFallbackChain(t *testing.T) {
	// Stored value wins.
	deal := legacyDeal()
	deal.LastActivityAt = tp(daysAgo(3))
	n := Normalize(deal, nil, models.LatestEvents{"note_added": daysAgo(1)}, testNow)
	assert.Equal(t, daysAgo(3), n.LastActivityAt)
	assert.Equal(t, 3, n.ActivityAgeDays)

	// Then the latest history event.
	deal = legacyDeal()
	events := models.LatestEvents{
		"note_added":    daysAgo(8),
		"call_logged":   daysAgo(4),
		"stage_changed": daysAgo(20),
	}
	n = Normalize(deal, nil, events, testNow)
	assert.Equal(t, daysAgo(4), n.LastActivityAt)

	// Then updatedAt.
	deal = legacyDeal()
	n = Normalize(deal, nil, nil, testNow)
	assert.Equal(t, daysAgo(12), n.LastActivityAt)

	// Then createdAt.
	deal = legacyDeal()
	deal.UpdatedAt = time.Time{}
	n = Normalize(deal, nil, nil, testNow)
	assert.Equal(t, daysAgo(100), n.LastActivityAt)
}

func TestNormalize_StageChangedFallbackChain(t *testing.T) {
	// A stage_changed event outranks a more recent event of another type.
	deal := legacyDeal()
	events := models.LatestEvents{
		"note_added":    daysAgo(2),
		"stage_changed": daysAgo(30),
	}
	n := Normalize(deal, nil, events, testNow)
	assert.Equal(t, daysAgo(30), n.StageChangedAt)
	assert.Equal(t, 30, n.StageAgeDays)

	// Without one, any latest event serves.
	deal = legacyDeal()
	n = Normalize(deal, nil, models.LatestEvents{"note_added": daysAgo(2)}, testNow)
	assert.Equal(t, daysAgo(2), n.StageChangedAt)

	// Stored value outranks everything.
	deal = legacyDeal()
	deal.StageChangedAt = tp(daysAgo(7))
	n = Normalize(deal, nil, events, testNow)
	assert.Equal(t, daysAgo(7), n.StageChangedAt)
}

func TestNormalize_RepairsDatesFromDoc(t *testing.T) {
	deal := legacyDeal()
	deal.Doc = map[string]any{
		"close_date":       "2026-04-15",
		"lastActivityAt":   "2026-03-05T10:00:00Z",
		"stage_entered_at": float64(daysAgo(25).UnixMilli()),
	}

	n := Normalize(deal, nil, nil, testNow)

	require.NotNil(t, n.Deal.CloseAt)
	assert.Equal(t, 15, n.Deal.CloseAt.Day())
	assert.Equal(t, time.Date(2026, 3, 5, 10, 0, 0, 0, time.UTC), n.LastActivityAt)
	assert.Equal(t, 25, n.StageAgeDays)
}

func TestNormalize_DocNeverOverwritesTypedColumns(t *testing.T) {
	deal := legacyDeal()
	deal.CloseAt = tp(daysAgo(-20))
	deal.Doc = map[string]any{"close_date": "2020-01-01"}

	n := Normalize(deal, nil, nil, testNow)

	assert.Equal(t, daysAgo(-20), *n.Deal.CloseAt)
}

func TestNormalize_Idempotent(t *testing.T) {
	deal := legacyDeal()
	deal.Doc = map[string]any{
		"closeDate":      "2026-04-15",
		"lastActivityAt": "2026-03-05T10:00:00Z",
		"stageChangedAt": "2026-02-20T10:00:00Z",
	}

	first := Normalize(deal, nil, nil, testNow)
	second := Normalize(first.Deal, nil, nil, testNow)

	assert.Equal(t, first, second)
}

func TestNormalize_DocKeySpellings(t *testing.T) {
	camel := legacyDeal()
	camel.Doc = map[string]any{"forecastCloseDate": "2026-04-01"}
	snake := legacyDeal()
	snake.Doc = map[string]any{"forecast_close_date": "2026-04-01"}

	a := Normalize(camel, nil, nil, testNow)
	b := Normalize(snake, nil, nil, testNow)

	require.NotNil(t, a.Deal.ForecastCloseAt)
	require.NotNil(t, b.Deal.ForecastCloseAt)
	assert.Equal(t, *a.Deal.ForecastCloseAt, *b.Deal.ForecastCloseAt)
}

func TestNormalize_AccountAge(t *testing.T) {
	deal := legacyDeal()

	n := Normalize(deal, &models.Account{ID: uuid.New(), CreatedAt: daysAgo(400)}, nil, testNow)
	assert.True(t, n.HasAccountAge)
	assert.Equal(t, 400, n.AccountAgeDays)

	n = Normalize(deal, nil, nil, testNow)
	assert.False(t, n.HasAccountAge)
}

func TestNormalize_DealAge(t *testing.T) {
	n := Normalize(legacyDeal(), nil, nil, testNow)
	assert.Equal(t, 100, n.DealAgeDays)
}
