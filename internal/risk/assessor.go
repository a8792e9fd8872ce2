// Package risk scores newly claimed token launches. Assess is a total,
// deterministic function of the token snapshot: no I/O, no clock, no
// hidden state, so the same snapshot always yields the same assessment.
package risk

import "pumpfun-sentinel/internal/domain"

// Thresholds holds the operator-configurable scoring cutoffs.
type Thresholds struct {
	// WashVolumePerSwapUsd flags wash trading when 1h volume divided by
	// 1h swap count exceeds this dollar amount. The feed reports swap
	// count rather than distinct wallets, so volume-per-swap stands in
	// for the volume-to-unique-trader ratio.
	WashVolumePerSwapUsd float64

	// Creator-held supply, percent of total.
	CreatorBalanceSeverePct   float64
	CreatorBalanceModeratePct float64

	// Wallets that bought within the launch window.
	SniperCountSevere   int64
	SniperCountModerate int64

	// Combined top-10 non-creator holding, percent of total.
	Top10HolderSeverePct   float64
	Top10HolderModeratePct float64
}

// DefaultThresholds returns the stock cutoffs.
func DefaultThresholds() Thresholds {
	return Thresholds{
		WashVolumePerSwapUsd:      2500,
		CreatorBalanceSeverePct:   50,
		CreatorBalanceModeratePct: 20,
		SniperCountSevere:         25,
		SniperCountModerate:       10,
		Top10HolderSeverePct:      80,
		Top10HolderModeratePct:    50,
	}
}

// Assessor computes risk assessments from token snapshots.
type Assessor struct {
	thresholds Thresholds
}

// NewAssessor creates an Assessor with the given thresholds.
func NewAssessor(t Thresholds) *Assessor {
	return &Assessor{thresholds: t}
}

// Assess derives the RiskAssessment for a token snapshot. assessedAtMs
// is recorded verbatim and does not influence any score.
func (a *Assessor) Assess(t *domain.Token, assessedAtMs int64) *domain.RiskAssessment {
	r := &domain.RiskAssessment{
		TokenAddress:          t.Address,
		WashTradingFlag:       a.washTrading(t),
		SniperCount:           t.SniperCount,
		CreatorBalanceRatePct: t.CreatorBalanceRate * 100,
		Top10HolderPct:        t.Top10HolderRate * 100,
		AssessedAt:            assessedAtMs,
	}
	r.OverallRiskLevel = a.level(r)
	return r
}

// washTrading reports disproportionate volume per swap.
func (a *Assessor) washTrading(t *domain.Token) bool {
	if t.Swaps1h <= 0 {
		return false
	}
	return t.Volume1hUsd/float64(t.Swaps1h) > a.thresholds.WashVolumePerSwapUsd
}

// level resolves the overall risk. Flags are evaluated in a fixed
// priority order (wash trading, creator balance, sniper count, holder
// concentration) and the first matching tier wins, so the result does
// not depend on evaluation order.
func (a *Assessor) level(r *domain.RiskAssessment) domain.RiskLevel {
	th := a.thresholds

	// Severe tier first, in priority order.
	switch {
	case r.WashTradingFlag:
		return domain.RiskHigh
	case r.CreatorBalanceRatePct > th.CreatorBalanceSeverePct:
		return domain.RiskHigh
	case r.SniperCount > th.SniperCountSevere:
		return domain.RiskHigh
	case r.Top10HolderPct > th.Top10HolderSeverePct:
		return domain.RiskHigh
	}

	// Moderate tier, same order.
	switch {
	case r.CreatorBalanceRatePct > th.CreatorBalanceModeratePct:
		return domain.RiskMedium
	case r.SniperCount > th.SniperCountModerate:
		return domain.RiskMedium
	case r.Top10HolderPct > th.Top10HolderModeratePct:
		return domain.RiskMedium
	}

	return domain.RiskLow
}
