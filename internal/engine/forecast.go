package engine

import (
	"math"
	"time"

	"github.com/sofia/crm-revenue/internal/models"
)

// Fixed payout multipliers per confidence tier for the pessimistic, likely,
// and optimistic forecast totals. Not configurable.
var tierMultipliers = map[string][3]float64{
	models.ConfidenceHigh:   {0.70, 0.85, 0.95},
	models.ConfidenceMedium: {0.30, 0.50, 0.70},
	models.ConfidenceLow:    {0.10, 0.20, 0.40},
}

// Aggregate builds a ForecastResult from an already scored cohort. Closed
// lost never reaches this function (the store excludes it); won and pipeline
// are partitioned here. With excludeOverdue set, open deals whose effective
// close date precedes local midnight today are dropped from the pipeline;
// won deals are never dropped.
func Aggregate(period Period, cohort []models.ScoredDeal, excludeOverdue bool, now time.Time) models.ForecastResult {
	result := models.ForecastResult{
		PeriodStart: period.Start,
		PeriodEnd:   period.End,
		Stages:      map[string]models.StageMetrics{},
		Deals:       cohort,
	}

	won, pipeline := partition(cohort, excludeOverdue, now)
	result.Summary = summarize(won, pipeline)

	for _, d := range pipeline {
		m := result.Stages[d.Stage]
		m.Count++
		m.Value += d.Amount
		m.WeightedValue += d.Amount * d.Score / 100
		result.Stages[d.Stage] = m
	}
	for stage, m := range result.Stages {
		m.Value = math.Round(m.Value)
		m.WeightedValue = math.Round(m.WeightedValue)
		result.Stages[stage] = m
	}

	return result
}

// partition splits a cohort into won and open pipeline, applying the
// overdue drop to the pipeline side only. Closed-lost deals are skipped
// outright in case any slipped past the store filter (scenario overrides
// can move a deal to lost).
func partition(cohort []models.ScoredDeal, excludeOverdue bool, now time.Time) (won, pipeline []models.ScoredDeal) {
	var cutoff time.Time
	if excludeOverdue {
		local := now.Local()
		cutoff = time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, time.Local)
	}

	for _, d := range cohort {
		switch {
		case models.IsClosedLost(d.Stage):
			continue
		case models.IsClosedWon(d.Stage):
			won = append(won, d)
		default:
			if excludeOverdue {
				if close := d.EffectiveCloseAt(); close != nil && close.Before(cutoff) {
					continue
				}
			}
			pipeline = append(pipeline, d)
		}
	}
	return won, pipeline
}

// summarize computes the totals for one partitioned cohort. Currency values
// are rounded to whole units here and nowhere earlier.
func summarize(won, pipeline []models.ScoredDeal) models.ForecastSummary {
	var s models.ForecastSummary
	s.DealCount = len(won) + len(pipeline)

	var pess, likely, opt float64
	for _, d := range pipeline {
		s.TotalPipeline += d.Amount
		s.WeightedPipeline += d.Amount * d.Score / 100

		switch d.Confidence {
		case models.ConfidenceHigh:
			s.HighCount++
		case models.ConfidenceLow:
			s.LowCount++
		default:
			s.MediumCount++
		}

		m := tierMultipliers[d.Confidence]
		pess += d.Amount * m[0]
		likely += d.Amount * m[1]
		opt += d.Amount * m[2]
	}
	var wonTotal float64
	for _, d := range won {
		wonTotal += d.Amount
	}

	s.TotalPipeline = math.Round(s.TotalPipeline)
	s.WeightedPipeline = math.Round(s.WeightedPipeline)
	s.ClosedWon = math.Round(wonTotal)
	s.Pessimistic = math.Round(wonTotal + pess)
	s.Likely = math.Round(wonTotal + likely)
	s.Optimistic = math.Round(wonTotal + opt)

	return s
}
