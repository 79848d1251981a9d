package engine

import (
	"fmt"
	"strings"
	"time"

	"github.com/sofia/crm-revenue/internal/config"
	"github.com/sofia/crm-revenue/internal/models"
)

const baseScore = 50

// missingCloseSentinel stands in for days-until-close when a deal carries no
// close date at all, putting it far outside every proximity band.
const missingCloseSentinel = 1 << 20

// Factor names in evaluation order. The factor list on a scored deal always
// appears in this order, never sorted by magnitude.
const (
	factorStage           = "Deal Stage"
	factorDealAge         = "Deal Age"
	factorActivity        = "Recent Activity"
	factorAccountMaturity = "Account Maturity"
	factorStageDuration   = "Time in Stage"
	factorCloseProximity  = "Closing Soon"
)

// Late-stage labels eligible for the closing-soon bonus.
func isLateStage(stage string) bool {
	s := strings.ToLower(strings.TrimSpace(stage))
	return s == "negotiation" || s == "proposal"
}

func isNegotiation(stage string) bool {
	return strings.EqualFold(strings.TrimSpace(stage), "Negotiation")
}

// Score computes the 0-100 likelihood score, confidence tier, and factor
// list for one normalized deal. Strictly additive from a base of 50; six
// factors evaluated in a fixed order, each contributing at most one impact;
// within a banded factor the most severe band wins and evaluation stops at
// the first match. Deterministic and side-effect-free.
func Score(n Normalized, settings config.Settings, now time.Time) models.ScoredDeal {
	sd := models.ScoredDeal{
		Deal:            n.Deal,
		DealAgeDays:     n.DealAgeDays,
		ActivityAgeDays: n.ActivityAgeDays,
		StageAgeDays:    n.StageAgeDays,
		AccountAgeDays:  n.AccountAgeDays,
		HasAccountAge:   n.HasAccountAge,
	}

	score := float64(baseScore)
	add := func(name string, impact float64, desc string) {
		score += impact
		if impact != 0 {
			sd.Factors = append(sd.Factors, models.Factor{Name: name, Impact: impact, Description: desc})
		}
	}

	// 1. Stage weight. Unknown labels contribute nothing.
	if w, ok := settings.StageWeights[n.Deal.Stage]; ok {
		add(factorStage, w, fmt.Sprintf("Stage %q", n.Deal.Stage))
	}

	// 2. Deal age, most severe band first.
	da := settings.DealAge
	age := float64(n.DealAgeDays)
	switch {
	case age > da.StaleDays:
		add(factorDealAge, da.StaleImpact, fmt.Sprintf("Open for %d days (stale past %.0f)", n.DealAgeDays, da.StaleDays))
	case age > da.AgingDays:
		add(factorDealAge, da.AgingImpact, fmt.Sprintf("Open for %d days (aging past %.0f)", n.DealAgeDays, da.AgingDays))
	case age > da.WarnDays:
		add(factorDealAge, da.WarnImpact, fmt.Sprintf("Open for %d days (past %.0f)", n.DealAgeDays, da.WarnDays))
	}

	// 3. Activity recency. Warm is checked before cold and cool, so a gap
	// between warmDays and coolDays yields no impact — a deliberate neutral
	// zone, not an omission.
	ab := settings.Activity
	recency := float64(n.ActivityAgeDays)
	switch {
	case recency <= ab.HotDays:
		add(factorActivity, ab.HotImpact, fmt.Sprintf("Activity %d days ago (within %.0f)", n.ActivityAgeDays, ab.HotDays))
	case recency <= ab.WarmDays:
		add(factorActivity, ab.WarmImpact, fmt.Sprintf("Activity %d days ago (within %.0f)", n.ActivityAgeDays, ab.WarmDays))
	case recency > ab.ColdDays:
		add(factorActivity, ab.ColdImpact, fmt.Sprintf("No activity for %d days (beyond %.0f)", n.ActivityAgeDays, ab.ColdDays))
	case recency > ab.CoolDays:
		add(factorActivity, ab.CoolImpact, fmt.Sprintf("No activity for %d days (beyond %.0f)", n.ActivityAgeDays, ab.CoolDays))
	}

	// 4. Account maturity; skipped entirely without an account age.
	if n.HasAccountAge {
		acc := settings.Account
		accountAge := float64(n.AccountAgeDays)
		switch {
		case accountAge > acc.MatureDays:
			add(factorAccountMaturity, acc.MatureImpact, fmt.Sprintf("Account %d days old (over %.0f)", n.AccountAgeDays, acc.MatureDays))
		case accountAge < acc.NewDays:
			add(factorAccountMaturity, acc.NewImpact, fmt.Sprintf("Account only %d days old (under %.0f)", n.AccountAgeDays, acc.NewDays))
		}
	}

	// 5. Stage duration, open deals only.
	if !models.IsTerminal(n.Deal.Stage) {
		sdur := settings.StageDuration
		inStage := float64(n.StageAgeDays)
		switch {
		case inStage > sdur.StuckDays:
			add(factorStageDuration, sdur.StuckImpact, fmt.Sprintf("In stage for %d days (stuck past %.0f)", n.StageAgeDays, sdur.StuckDays))
		case inStage > sdur.WarnDays:
			add(factorStageDuration, sdur.WarnImpact, fmt.Sprintf("In stage for %d days (past %.0f)", n.StageAgeDays, sdur.WarnDays))
		}
	}

	// 6. Close-date proximity, forecasted close preferred.
	daysUntil := missingCloseSentinel
	if close := n.Deal.EffectiveCloseAt(); close != nil {
		daysUntil = models.DaysUntil(now, *close)
	}
	cp := settings.CloseProximity
	until := float64(daysUntil)
	switch {
	case daysUntil < 0:
		add(factorCloseProximity, cp.OverdueImpact, fmt.Sprintf("Close date passed %d days ago", -daysUntil))
	case until <= cp.ClosingSoonDays && isLateStage(n.Deal.Stage):
		add(factorCloseProximity, cp.ClosingSoonImpact, fmt.Sprintf("Closing in %d days at late stage", daysUntil))
	case until <= cp.ClosingWarmDays && isNegotiation(n.Deal.Stage):
		add(factorCloseProximity, cp.ClosingWarmImpact, fmt.Sprintf("Closing in %d days in negotiation", daysUntil))
	}

	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}
	sd.Score = score
	sd.Confidence = confidenceTier(score, sd.Factors)

	return sd
}

// confidenceTier buckets a score by its value and how many rules fired:
// High needs a score of at least 70 and at least three factors; Low is a
// score under 40 or at least three negative factors.
func confidenceTier(score float64, factors []models.Factor) string {
	negatives := 0
	for _, f := range factors {
		if f.Impact < 0 {
			negatives++
		}
	}

	switch {
	case score >= 70 && len(factors) >= 3:
		return models.ConfidenceHigh
	case score < 40 || negatives >= 3:
		return models.ConfidenceLow
	default:
		return models.ConfidenceMedium
	}
}
