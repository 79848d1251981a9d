package config

import (
	"fmt"
	"math"
	"os"

	"gopkg.in/yaml.v3"
)

// Settings holds every threshold (day counts) and impact (score deltas) the
// scoring engine uses, plus the two thresholds consumed only by the
// stale/at-risk pipeline panels.
//
// Band ordering (warn < aging < stale and so on) is assumed, not enforced:
// out-of-order thresholds silently mis-classify, matching the system this
// data was migrated from.
type Settings struct {
	StageWeights map[string]float64 `yaml:"stageWeights" json:"stage_weights"`

	DealAge        DealAgeBands        `yaml:"dealAge" json:"deal_age"`
	Activity       ActivityBands       `yaml:"activity" json:"activity"`
	Account        AccountBands        `yaml:"account" json:"account"`
	StageDuration  StageDurationBands  `yaml:"stageDuration" json:"stage_duration"`
	CloseProximity CloseProximityBands `yaml:"closeProximity" json:"close_proximity"`

	// Panel thresholds; never read by the scoring engine itself.
	StaleDealDays   float64 `yaml:"staleDealDays" json:"stale_deal_days"`
	AtRiskCloseDays float64 `yaml:"atRiskCloseDays" json:"at_risk_close_days"`
}

type DealAgeBands struct {
	WarnDays    float64 `yaml:"warnDays" json:"warn_days"`
	WarnImpact  float64 `yaml:"warnImpact" json:"warn_impact"`
	AgingDays   float64 `yaml:"agingDays" json:"aging_days"`
	AgingImpact float64 `yaml:"agingImpact" json:"aging_impact"`
	StaleDays   float64 `yaml:"staleDays" json:"stale_days"`
	StaleImpact float64 `yaml:"staleImpact" json:"stale_impact"`
}

type ActivityBands struct {
	HotDays    float64 `yaml:"hotDays" json:"hot_days"`
	HotImpact  float64 `yaml:"hotImpact" json:"hot_impact"`
	WarmDays   float64 `yaml:"warmDays" json:"warm_days"`
	WarmImpact float64 `yaml:"warmImpact" json:"warm_impact"`
	CoolDays   float64 `yaml:"coolDays" json:"cool_days"`
	CoolImpact float64 `yaml:"coolImpact" json:"cool_impact"`
	ColdDays   float64 `yaml:"coldDays" json:"cold_days"`
	ColdImpact float64 `yaml:"coldImpact" json:"cold_impact"`
}

type AccountBands struct {
	NewDays      float64 `yaml:"newDays" json:"new_days"`
	NewImpact    float64 `yaml:"newImpact" json:"new_impact"`
	MatureDays   float64 `yaml:"matureDays" json:"mature_days"`
	MatureImpact float64 `yaml:"matureImpact" json:"mature_impact"`
}

type StageDurationBands struct {
	WarnDays    float64 `yaml:"warnDays" json:"warn_days"`
	WarnImpact  float64 `yaml:"warnImpact" json:"warn_impact"`
	StuckDays   float64 `yaml:"stuckDays" json:"stuck_days"`
	StuckImpact float64 `yaml:"stuckImpact" json:"stuck_impact"`
}

type CloseProximityBands struct {
	OverdueImpact     float64 `yaml:"overdueImpact" json:"overdue_impact"`
	ClosingSoonDays   float64 `yaml:"closingSoonDays" json:"closing_soon_days"`
	ClosingSoonImpact float64 `yaml:"closingSoonImpact" json:"closing_soon_impact"`
	ClosingWarmDays   float64 `yaml:"closingWarmDays" json:"closing_warm_days"`
	ClosingWarmImpact float64 `yaml:"closingWarmImpact" json:"closing_warm_impact"`
}

// Defaults returns the built-in scoring configuration.
func Defaults() Settings {
	return Settings{
		StageWeights: map[string]float64{
			"Prospecting":       -10,
			"Qualification":     -5,
			"Needs Analysis":    0,
			"Value Proposition": 5,
			"Proposal":          10,
			"Negotiation":       15,
			"Closed Won":        30,
			"Closed-Won":        30,
			"Closed Lost":       -40,
			"Closed-Lost":       -40,
		},
		DealAge: DealAgeBands{
			WarnDays: 60, WarnImpact: -5,
			AgingDays: 90, AgingImpact: -10,
			StaleDays: 120, StaleImpact: -20,
		},
		Activity: ActivityBands{
			HotDays: 7, HotImpact: 10,
			WarmDays: 14, WarmImpact: 5,
			CoolDays: 30, CoolImpact: -8,
			ColdDays: 60, ColdImpact: -15,
		},
		Account: AccountBands{
			NewDays: 90, NewImpact: -5,
			MatureDays: 365, MatureImpact: 8,
		},
		StageDuration: StageDurationBands{
			WarnDays: 21, WarnImpact: -5,
			StuckDays: 45, StuckImpact: -12,
		},
		CloseProximity: CloseProximityBands{
			OverdueImpact:     -15,
			ClosingSoonDays:   7,
			ClosingSoonImpact: 12,
			ClosingWarmDays:   14,
			ClosingWarmImpact: 6,
		},
		StaleDealDays:   30,
		AtRiskCloseDays: 14,
	}
}

// Resolve merges a raw settings document over the defaults. For every leaf
// field the raw value wins only when it is a finite number; anything else
// (missing key, wrong type, NaN, whole section absent) keeps the default.
// Unknown stage labels merge in additively; default stages are never removed.
// Malformed input never errors — this configuration is non-critical.
func Resolve(raw map[string]any) Settings {
	s := Defaults()
	if raw == nil {
		return s
	}

	if weights, ok := raw["stageWeights"].(map[string]any); ok {
		for label, v := range weights {
			if n, ok := finite(v); ok {
				s.StageWeights[label] = n
			}
		}
	}

	if sec, ok := section(raw, "dealAge"); ok {
		num(sec, "warnDays", &s.DealAge.WarnDays)
		num(sec, "warnImpact", &s.DealAge.WarnImpact)
		num(sec, "agingDays", &s.DealAge.AgingDays)
		num(sec, "agingImpact", &s.DealAge.AgingImpact)
		num(sec, "staleDays", &s.DealAge.StaleDays)
		num(sec, "staleImpact", &s.DealAge.StaleImpact)
	}
	if sec, ok := section(raw, "activity"); ok {
		num(sec, "hotDays", &s.Activity.HotDays)
		num(sec, "hotImpact", &s.Activity.HotImpact)
		num(sec, "warmDays", &s.Activity.WarmDays)
		num(sec, "warmImpact", &s.Activity.WarmImpact)
		num(sec, "coolDays", &s.Activity.CoolDays)
		num(sec, "coolImpact", &s.Activity.CoolImpact)
		num(sec, "coldDays", &s.Activity.ColdDays)
		num(sec, "coldImpact", &s.Activity.ColdImpact)
	}
	if sec, ok := section(raw, "account"); ok {
		num(sec, "newDays", &s.Account.NewDays)
		num(sec, "newImpact", &s.Account.NewImpact)
		num(sec, "matureDays", &s.Account.MatureDays)
		num(sec, "matureImpact", &s.Account.MatureImpact)
	}
	if sec, ok := section(raw, "stageDuration"); ok {
		num(sec, "warnDays", &s.StageDuration.WarnDays)
		num(sec, "warnImpact", &s.StageDuration.WarnImpact)
		num(sec, "stuckDays", &s.StageDuration.StuckDays)
		num(sec, "stuckImpact", &s.StageDuration.StuckImpact)
	}
	if sec, ok := section(raw, "closeProximity"); ok {
		num(sec, "overdueImpact", &s.CloseProximity.OverdueImpact)
		num(sec, "closingSoonDays", &s.CloseProximity.ClosingSoonDays)
		num(sec, "closingSoonImpact", &s.CloseProximity.ClosingSoonImpact)
		num(sec, "closingWarmDays", &s.CloseProximity.ClosingWarmDays)
		num(sec, "closingWarmImpact", &s.CloseProximity.ClosingWarmImpact)
	}

	num(raw, "staleDealDays", &s.StaleDealDays)
	num(raw, "atRiskCloseDays", &s.AtRiskCloseDays)

	return s
}

// LoadFile reads a yaml settings document and resolves it. A missing or
// unreadable file degrades to defaults.
func LoadFile(path string) (Settings, error) {
	if path == "" {
		return Defaults(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Defaults(), fmt.Errorf("read settings file: %w", err)
	}

	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return Defaults(), fmt.Errorf("parse settings file: %w", err)
	}

	return Resolve(raw), nil
}

func section(raw map[string]any, key string) (map[string]any, bool) {
	sec, ok := raw[key].(map[string]any)
	return sec, ok
}

func num(sec map[string]any, key string, dst *float64) {
	if n, ok := finite(sec[key]); ok {
		*dst = n
	}
}

func finite(v any) (float64, bool) {
	var n float64
	switch t := v.(type) {
	case float64:
		n = t
	case float32:
		n = float64(t)
	case int:
		n = float64(t)
	case int64:
		n = float64(t)
	default:
		return 0, false
	}
	if math.IsNaN(n) || math.IsInf(n, 0) {
		return 0, false
	}
	return n, true
}
