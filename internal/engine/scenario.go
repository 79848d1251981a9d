package engine

import (
	"time"

	"github.com/sofia/crm-revenue/internal/models"
)

// ApplyScenario recomputes a baseline forecast's totals after applying
// per-deal overrides. Overrides mutate stage, amount, and close date on
// copies of the baseline cohort; unmatched deals pass through unchanged.
//
// The baseline score and confidence are reused even when stage or close
// date changed — scenario totals react through the partition and weighting
// math only, the likelihood score never sees the hypothetical edit.
func ApplyScenario(baseline models.ForecastResult, overrides []models.ScenarioOverride, excludeOverdue bool, now time.Time) models.ScenarioResult {
	byID := make(map[string]models.ScenarioOverride, len(overrides))
	for _, o := range overrides {
		byID[o.ID] = o
	}

	cohort := make([]models.ScoredDeal, len(baseline.Deals))
	var touched []models.ScoredDeal
	for i, d := range baseline.Deals {
		o, ok := byID[d.ID.String()]
		if !ok {
			cohort[i] = d
			continue
		}

		if o.NewStage != nil {
			d.Stage = *o.NewStage
		}
		if o.NewAmount != nil {
			d.Amount = *o.NewAmount
		}
		if o.NewCloseDate != nil && !o.NewCloseDate.IsZero() {
			t := o.NewCloseDate.Time
			d.ForecastCloseAt = &t
			d.CloseAt = &t
		}
		d.Overridden = true

		cohort[i] = d
		touched = append(touched, d)
	}

	won, pipeline := partition(cohort, excludeOverdue, now)
	scenario := summarize(won, pipeline)

	return models.ScenarioResult{
		PeriodStart: baseline.PeriodStart,
		PeriodEnd:   baseline.PeriodEnd,
		Baseline:    baseline.Summary,
		Scenario:    scenario,
		Overridden:  touched,
		Delta:       diffSummaries(scenario, baseline.Summary),
	}
}

func diffSummaries(scenario, baseline models.ForecastSummary) models.SummaryDelta {
	return models.SummaryDelta{
		DealCount:        scenario.DealCount - baseline.DealCount,
		TotalPipeline:    scenario.TotalPipeline - baseline.TotalPipeline,
		WeightedPipeline: scenario.WeightedPipeline - baseline.WeightedPipeline,
		ClosedWon:        scenario.ClosedWon - baseline.ClosedWon,
		Pessimistic:      scenario.Pessimistic - baseline.Pessimistic,
		Likely:           scenario.Likely - baseline.Likely,
		Optimistic:       scenario.Optimistic - baseline.Optimistic,
		HighCount:        scenario.HighCount - baseline.HighCount,
		MediumCount:      scenario.MediumCount - baseline.MediumCount,
		LowCount:         scenario.LowCount - baseline.LowCount,
	}
}
