package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sofia/crm-revenue/internal/models"
)

func repDeal(owner, stage string, amount float64) Normalized {
	d := testDeal(stage, amount, 30, 5, 10, 20)
	d.OwnerID = owner
	return normalized(d, nil)
}

func TestAnalyzeReps_Grouping(t *testing.T) {
	cohort := []Normalized{
		repDeal("alice", "Closed Won", 30_000),
		repDeal("alice", "Closed Lost", 10_000),
		repDeal("alice", "Negotiation", 20_000),
		repDeal("bob", "Proposal", 5_000),
	}

	reps := AnalyzeReps(cohort)
	require.Len(t, reps, 2)

	alice := reps[0]
	assert.Equal(t, "alice", alice.OwnerID)
	assert.Equal(t, 3, alice.TotalDeals)
	assert.Equal(t, 1, alice.WonDeals)
	assert.Equal(t, 1, alice.LostDeals)
	assert.Equal(t, 1, alice.OpenDeals)
	assert.Equal(t, 30_000.0, alice.WonValue)
	assert.Equal(t, 10_000.0, alice.LostValue)
	assert.Equal(t, 20_000.0, alice.PipelineValue)
	assert.Equal(t, 60_000.0, alice.TotalValue)
	assert.Equal(t, 20_000.0, alice.AvgDealSize)
	assert.Equal(t, 50.0, alice.WinRate)
	// Won revenue plus pipeline discounted by the win rate.
	assert.Equal(t, 40_000.0, alice.ForecastedRevenue)
}

func TestAnalyzeReps_WinRateZeroWithoutClosedDeals(t *testing.T) {
	cohort := []Normalized{
		repDeal("carol", "Negotiation", 20_000),
		repDeal("carol", "Proposal", 10_000),
	}

	reps := AnalyzeReps(cohort)
	require.Len(t, reps, 1)

	assert.Equal(t, 0.0, reps[0].WinRate)
	// Open pipeline at a zero win rate forecasts nothing.
	assert.Equal(t, 0.0, reps[0].ForecastedRevenue)
}

func TestAnalyzeReps_UnassignedBucket(t *testing.T) {
	cohort := []Normalized{
		repDeal("", "Negotiation", 20_000),
		repDeal("  ", "Proposal", 10_000),
		repDeal("dave", "Proposal", 5_000),
	}

	reps := AnalyzeReps(cohort)
	require.Len(t, reps, 2)

	var unassigned *models.RepPerformance
	for i := range reps {
		if reps[i].OwnerID == models.UnassignedOwner {
			unassigned = &reps[i]
		}
	}
	require.NotNil(t, unassigned)
	assert.Equal(t, 2, unassigned.TotalDeals)
}

func TestAnalyzeReps_SortedByForecastedRevenue(t *testing.T) {
	cohort := []Normalized{
		repDeal("low", "Closed Won", 1_000),
		repDeal("high", "Closed Won", 90_000),
		repDeal("mid", "Closed Won", 40_000),
	}

	reps := AnalyzeReps(cohort)
	require.Len(t, reps, 3)

	assert.Equal(t, "high", reps[0].OwnerID)
	assert.Equal(t, "mid", reps[1].OwnerID)
	assert.Equal(t, "low", reps[2].OwnerID)
}

func TestAnalyzeReps_TieBreakByOwner(t *testing.T) {
	cohort := []Normalized{
		repDeal("zoe", "Closed Won", 10_000),
		repDeal("amy", "Closed Won", 10_000),
	}

	reps := AnalyzeReps(cohort)
	require.Len(t, reps, 2)
	assert.Equal(t, "amy", reps[0].OwnerID)
	assert.Equal(t, "zoe", reps[1].OwnerID)
}

func TestRepScore_Ladders(t *testing.T) {
	cases := []struct {
		name string
		rep  models.RepPerformance
		want float64
	}{
		{
			name: "strong closer with large deals and busy pipeline",
			rep:  models.RepPerformance{WinRate: 75, AvgDealSize: 60_000, OpenDeals: 12},
			want: 50 + 20 + 15 + 10,
		},
		{
			name: "solid mid-market rep",
			rep:  models.RepPerformance{WinRate: 45, AvgDealSize: 25_000, OpenDeals: 6},
			want: 50 + 10 + 8 + 5,
		},
		{
			name: "weak closer with small deals and empty pipeline",
			rep:  models.RepPerformance{WinRate: 10, AvgDealSize: 2_000, OpenDeals: 0},
			want: 50 - 10 - 5 - 10,
		},
		{
			name: "mid-band rep takes no adjustments on rate or size",
			rep:  models.RepPerformance{WinRate: 30, AvgDealSize: 10_000, OpenDeals: 3},
			want: 50,
		},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			assert.Equal(t, c.want, repScore(c.rep))
		})
	}
}

func TestAnalyzeReps_Empty(t *testing.T) {
	assert.Empty(t, AnalyzeReps(nil))
}
