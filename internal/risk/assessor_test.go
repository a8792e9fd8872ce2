package risk

import (
	"testing"

	"pumpfun-sentinel/internal/domain"
)

func baseToken() *domain.Token {
	return &domain.Token{
		Address:            "So11111111111111111111111111111111111111112",
		Symbol:             "TEST",
		Volume1hUsd:        1000,
		Swaps1h:            100,
		CreatorBalanceRate: 0.05,
		Top10HolderRate:    0.20,
		SniperCount:        2,
	}
}

func TestAssess_Low(t *testing.T) {
	assessor := NewAssessor(DefaultThresholds())

	r := assessor.Assess(baseToken(), 1700000000000)

	if r.OverallRiskLevel != domain.RiskLow {
		t.Errorf("Expected LOW, got %s", r.OverallRiskLevel)
	}
	if r.WashTradingFlag {
		t.Error("Wash trading should not be flagged")
	}
	if r.AssessedAt != 1700000000000 {
		t.Errorf("AssessedAt not recorded: %d", r.AssessedAt)
	}
}

func TestAssess_WashTradingHigh(t *testing.T) {
	assessor := NewAssessor(DefaultThresholds())

	token := baseToken()
	token.Volume1hUsd = 300_000 // $3000 per swap, over the $2500 cutoff
	token.Swaps1h = 100

	r := assessor.Assess(token, 0)

	if !r.WashTradingFlag {
		t.Error("Expected wash trading flag")
	}
	if r.OverallRiskLevel != domain.RiskHigh {
		t.Errorf("Expected HIGH, got %s", r.OverallRiskLevel)
	}
}

func TestAssess_ZeroSwapsNeverWash(t *testing.T) {
	assessor := NewAssessor(DefaultThresholds())

	token := baseToken()
	token.Volume1hUsd = 1_000_000
	token.Swaps1h = 0

	r := assessor.Assess(token, 0)

	if r.WashTradingFlag {
		t.Error("Zero swaps must not divide into a wash flag")
	}
}

func TestAssess_CreatorBalanceSevere(t *testing.T) {
	assessor := NewAssessor(DefaultThresholds())

	token := baseToken()
	token.CreatorBalanceRate = 0.80 // 80% held by creator

	r := assessor.Assess(token, 0)

	if r.OverallRiskLevel != domain.RiskHigh {
		t.Errorf("Expected HIGH for 80%% creator balance, got %s", r.OverallRiskLevel)
	}
	if r.CreatorBalanceRatePct != 80 {
		t.Errorf("Expected 80%%, got %.1f", r.CreatorBalanceRatePct)
	}
}

func TestAssess_ModerateTier(t *testing.T) {
	assessor := NewAssessor(DefaultThresholds())

	cases := []struct {
		name   string
		mutate func(*domain.Token)
	}{
		{"creator balance", func(tok *domain.Token) { tok.CreatorBalanceRate = 0.30 }},
		{"sniper count", func(tok *domain.Token) { tok.SniperCount = 15 }},
		{"top10 concentration", func(tok *domain.Token) { tok.Top10HolderRate = 0.60 }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			token := baseToken()
			tc.mutate(token)

			r := assessor.Assess(token, 0)
			if r.OverallRiskLevel != domain.RiskMedium {
				t.Errorf("Expected MEDIUM, got %s", r.OverallRiskLevel)
			}
		})
	}
}

func TestAssess_SevereBeatsModerate(t *testing.T) {
	assessor := NewAssessor(DefaultThresholds())

	// A severe sniper count and a moderate creator balance: the severe
	// tier wins regardless of per-flag ordering.
	token := baseToken()
	token.SniperCount = 40
	token.CreatorBalanceRate = 0.30

	r := assessor.Assess(token, 0)
	if r.OverallRiskLevel != domain.RiskHigh {
		t.Errorf("Expected HIGH, got %s", r.OverallRiskLevel)
	}
}

func TestAssess_ThresholdBoundaryExclusive(t *testing.T) {
	assessor := NewAssessor(DefaultThresholds())

	// Exactly at a cutoff does not trip the tier.
	token := baseToken()
	token.CreatorBalanceRate = 0.50

	r := assessor.Assess(token, 0)
	if r.OverallRiskLevel == domain.RiskHigh {
		t.Error("Exactly 50% creator balance should not be severe")
	}
	if r.OverallRiskLevel != domain.RiskMedium {
		t.Errorf("Expected MEDIUM at 50%%, got %s", r.OverallRiskLevel)
	}
}

func TestAssess_Deterministic(t *testing.T) {
	assessor := NewAssessor(DefaultThresholds())

	token := baseToken()
	token.SniperCount = 30

	first := assessor.Assess(token, 42)
	for i := 0; i < 10; i++ {
		again := assessor.Assess(token, 42)
		if *again != *first {
			t.Fatalf("Assessment not deterministic: %+v vs %+v", again, first)
		}
	}
}
