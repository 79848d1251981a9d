package models

import "time"

// Confidence tiers pick the payout-probability multiplier in the forecast.
const (
	ConfidenceHigh   = "High"
	ConfidenceMedium = "Medium"
	ConfidenceLow    = "Low"
)

// Factor is one scoring rule that fired, in evaluation order.
type Factor struct {
	Name        string  `json:"name"`
	Impact      float64 `json:"impact"`
	Description string  `json:"description"`
}

// ScoredDeal is a normalized deal enriched with its likelihood score. All of
// it is derived, never persisted.
type ScoredDeal struct {
	Deal

	Score      float64  `json:"score"`
	Confidence string   `json:"confidence"`
	Factors    []Factor `json:"factors"`

	DealAgeDays     int  `json:"deal_age_days"`
	ActivityAgeDays int  `json:"activity_age_days"`
	StageAgeDays    int  `json:"stage_age_days"`
	AccountAgeDays  int  `json:"account_age_days"`
	HasAccountAge   bool `json:"-"`

	// Overridden marks deals mutated by a scenario run.
	Overridden bool `json:"overridden,omitempty"`
}

// ForecastSummary holds the aggregate numbers for one cohort. Currency
// fields are rounded to whole units at this boundary only.
type ForecastSummary struct {
	DealCount        int     `json:"deal_count"`
	TotalPipeline    float64 `json:"total_pipeline"`
	WeightedPipeline float64 `json:"weighted_pipeline"`
	ClosedWon        float64 `json:"closed_won"`
	Pessimistic      float64 `json:"forecast_pessimistic"`
	Likely           float64 `json:"forecast_likely"`
	Optimistic       float64 `json:"forecast_optimistic"`
	HighCount        int     `json:"high_confidence_count"`
	MediumCount      int     `json:"medium_confidence_count"`
	LowCount         int     `json:"low_confidence_count"`
}

// StageMetrics is the per-stage breakdown over the open pipeline.
type StageMetrics struct {
	Count         int     `json:"count"`
	Value         float64 `json:"value"`
	WeightedValue float64 `json:"weighted_value"`
}

type ForecastResult struct {
	PeriodStart time.Time               `json:"period_start"`
	PeriodEnd   time.Time               `json:"period_end"` // exclusive
	Summary     ForecastSummary         `json:"summary"`
	Stages      map[string]StageMetrics `json:"stages"`
	Deals       []ScoredDeal            `json:"deals"`
}

// ScenarioOverride is one user-proposed edit to a baseline deal.
type ScenarioOverride struct {
	ID           string    `json:"id"`
	NewStage     *string   `json:"new_stage,omitempty"`
	NewAmount    *float64  `json:"new_amount,omitempty"`
	NewCloseDate *FlexTime `json:"new_close_date,omitempty"`
}

// SummaryDelta is scenario minus baseline for every numeric summary field.
type SummaryDelta struct {
	DealCount        int     `json:"deal_count"`
	TotalPipeline    float64 `json:"total_pipeline"`
	WeightedPipeline float64 `json:"weighted_pipeline"`
	ClosedWon        float64 `json:"closed_won"`
	Pessimistic      float64 `json:"forecast_pessimistic"`
	Likely           float64 `json:"forecast_likely"`
	Optimistic       float64 `json:"forecast_optimistic"`
	HighCount        int     `json:"high_confidence_count"`
	MediumCount      int     `json:"medium_confidence_count"`
	LowCount         int     `json:"low_confidence_count"`
}

type ScenarioResult struct {
	PeriodStart time.Time       `json:"period_start"`
	PeriodEnd   time.Time       `json:"period_end"`
	Baseline    ForecastSummary `json:"baseline"`
	Scenario    ForecastSummary `json:"scenario"`
	Overridden  []ScoredDeal    `json:"overridden"`
	Delta       SummaryDelta    `json:"delta"`
}

// RepPerformance aggregates one owner's deals for a period.
type RepPerformance struct {
	OwnerID           string  `json:"owner_id"`
	TotalDeals        int     `json:"total_deals"`
	OpenDeals         int     `json:"open_deals"`
	WonDeals          int     `json:"won_deals"`
	LostDeals         int     `json:"lost_deals"`
	TotalValue        float64 `json:"total_value"`
	WonValue          float64 `json:"won_value"`
	LostValue         float64 `json:"lost_value"`
	PipelineValue     float64 `json:"pipeline_value"`
	AvgDealSize       float64 `json:"avg_deal_size"`
	WinRate           float64 `json:"win_rate"`
	ForecastedRevenue float64 `json:"forecasted_revenue"`
	Score             float64 `json:"performance_score"`
}

// AttentionResult feeds the stale / at-risk pipeline panels. These panels do
// not influence scoring; they only consume the two panel thresholds from the
// settings.
type AttentionResult struct {
	Stale  []ScoredDeal `json:"stale"`
	AtRisk []ScoredDeal `json:"at_risk"`
}
