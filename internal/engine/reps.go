package engine

import (
	"math"
	"sort"

	"github.com/sofia/crm-revenue/internal/models"
)

// Performance score ladders: win rate, average deal size, and open-deal
// count each adjust the base of 50 independently.
const (
	repBaseScore = 50

	winRateStrong  = 60.0
	winRateSolid   = 40.0
	winRateWeak    = 20.0
	avgDealLarge   = 50000.0
	avgDealMedium  = 20000.0
	avgDealSmall   = 5000.0
	openDealsBusy  = 10
	openDealsSolid = 5
)

// AnalyzeReps groups a normalized cohort by owner and derives win rate,
// average deal size, forecasted revenue, and a 0-100 performance score per
// representative. Deals without an owner land in the Unassigned bucket.
// Output is sorted descending by forecasted revenue.
func AnalyzeReps(cohort []Normalized) []models.RepPerformance {
	byOwner := map[string]*models.RepPerformance{}

	for _, n := range cohort {
		owner := n.Deal.OwnerOrUnassigned()
		rep, ok := byOwner[owner]
		if !ok {
			rep = &models.RepPerformance{OwnerID: owner}
			byOwner[owner] = rep
		}

		rep.TotalDeals++
		rep.TotalValue += n.Deal.Amount
		switch {
		case models.IsClosedWon(n.Deal.Stage):
			rep.WonDeals++
			rep.WonValue += n.Deal.Amount
		case models.IsClosedLost(n.Deal.Stage):
			rep.LostDeals++
			rep.LostValue += n.Deal.Amount
		default:
			rep.OpenDeals++
			rep.PipelineValue += n.Deal.Amount
		}
	}

	reps := make([]models.RepPerformance, 0, len(byOwner))
	for _, rep := range byOwner {
		if rep.TotalDeals > 0 {
			rep.AvgDealSize = rep.TotalValue / float64(rep.TotalDeals)
		}
		if closed := rep.WonDeals + rep.LostDeals; closed > 0 {
			rep.WinRate = float64(rep.WonDeals) / float64(closed) * 100
		}
		rep.ForecastedRevenue = math.Round(rep.WonValue + rep.PipelineValue*rep.WinRate/100)
		rep.TotalValue = math.Round(rep.TotalValue)
		rep.WonValue = math.Round(rep.WonValue)
		rep.LostValue = math.Round(rep.LostValue)
		rep.PipelineValue = math.Round(rep.PipelineValue)
		rep.AvgDealSize = math.Round(rep.AvgDealSize)
		rep.Score = repScore(*rep)
		reps = append(reps, *rep)
	}

	sort.Slice(reps, func(i, j int) bool {
		if reps[i].ForecastedRevenue != reps[j].ForecastedRevenue {
			return reps[i].ForecastedRevenue > reps[j].ForecastedRevenue
		}
		return reps[i].OwnerID < reps[j].OwnerID
	})

	return reps
}

func repScore(rep models.RepPerformance) float64 {
	score := float64(repBaseScore)

	switch {
	case rep.WinRate >= winRateStrong:
		score += 20
	case rep.WinRate >= winRateSolid:
		score += 10
	case rep.WinRate < winRateWeak:
		score -= 10
	}

	switch {
	case rep.AvgDealSize >= avgDealLarge:
		score += 15
	case rep.AvgDealSize >= avgDealMedium:
		score += 8
	case rep.AvgDealSize < avgDealSmall:
		score -= 5
	}

	switch {
	case rep.OpenDeals >= openDealsBusy:
		score += 10
	case rep.OpenDeals >= openDealsSolid:
		score += 5
	case rep.OpenDeals == 0:
		score -= 10
	}

	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}
	return score
}
