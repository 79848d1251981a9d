package models

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	ErrNotFound  = errors.New("record not found")
	ErrInvalidID = errors.New("invalid identifier")
)

// UnassignedOwner is the sentinel owner filter value matching deals whose
// owner_id is null or empty.
const UnassignedOwner = "Unassigned"

// Deal is a sales opportunity as stored. Date fields may be absent on legacy
// records; the raw document they were imported from is kept in Doc so the
// normalizer can recover values that never made it into typed columns.
type Deal struct {
	ID              uuid.UUID      `json:"id"`
	AccountID       *uuid.UUID     `json:"account_id"`
	Name            string         `json:"name"`
	Stage           string         `json:"stage"`
	Amount          float64        `json:"amount"`
	OwnerID         string         `json:"owner_id"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
	LastActivityAt  *time.Time     `json:"last_activity_at"`
	StageChangedAt  *time.Time     `json:"stage_changed_at"`
	ForecastCloseAt *time.Time     `json:"forecast_close_at"`
	CloseAt         *time.Time     `json:"close_at"`
	Doc             map[string]any `json:"-"`
}

// Account is consumed only for account-age lookups.
type Account struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// EventTypeStageChanged is the history event type recorded when a deal moves
// between stages.
const EventTypeStageChanged = "stage_changed"

// LatestEvents maps an event type to the most recent event timestamp of that
// type for one deal. The store aggregates history rows down to this shape.
type LatestEvents map[string]time.Time

// Latest returns the most recent timestamp across all event types.
func (le LatestEvents) Latest() (time.Time, bool) {
	var best time.Time
	for _, ts := range le {
		if ts.After(best) {
			best = ts
		}
	}
	return best, !best.IsZero()
}

// The two spellings of each terminal stage that exist in legacy data. Both
// must be recognized everywhere.
func IsClosedWon(stage string) bool {
	s := strings.ToLower(strings.TrimSpace(stage))
	return s == "closed won" || s == "closed-won"
}

func IsClosedLost(stage string) bool {
	s := strings.ToLower(strings.TrimSpace(stage))
	return s == "closed lost" || s == "closed-lost"
}

// IsTerminal reports whether a deal is in a won or lost stage.
func IsTerminal(stage string) bool {
	return IsClosedWon(stage) || IsClosedLost(stage)
}

// EffectiveCloseAt prefers the forecasted close date over the close date.
func (d Deal) EffectiveCloseAt() *time.Time {
	if d.ForecastCloseAt != nil {
		return d.ForecastCloseAt
	}
	return d.CloseAt
}

// OwnerOrUnassigned returns the owner id, or the Unassigned bucket for
// deals without one.
func (d Deal) OwnerOrUnassigned() string {
	if strings.TrimSpace(d.OwnerID) == "" {
		return UnassignedOwner
	}
	return d.OwnerID
}
