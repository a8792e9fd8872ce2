package domain

// Token is an immutable snapshot of a newly launched pump.fun token,
// captured once at claim time. Corresponds to the tokens table in
// PostgreSQL. Never mutated or deleted after the claim.
type Token struct {
	Address        string // PRIMARY KEY, mint address
	Symbol         string
	Name           string
	PriceUsd       float64
	MarketCapUsd   float64
	Volume1hUsd    float64
	Swaps1h        int64
	HolderCount    int64
	ProgressPct    float64 // bonding-curve completion, 0-100
	CreatorAddress string

	// Raw risk inputs reported by the feed alongside the launch.
	CreatorBalanceRate float64 // creator-held supply fraction, 0-1
	Top10HolderRate    float64 // top-10 non-creator holders fraction, 0-1
	SniperCount        int64   // wallets that bought within the launch window

	CreatedAt   int64 // launch timestamp reported by the feed (unix ms)
	FirstSeenAt int64 // claim timestamp (unix ms)
}

// RiskLevel classifies the overall risk of a token launch.
type RiskLevel string

const (
	RiskLow    RiskLevel = "LOW"
	RiskMedium RiskLevel = "MEDIUM"
	RiskHigh   RiskLevel = "HIGH"
)

// RiskAssessment is derived 1:1 from a Token snapshot. Computed once,
// deterministically; immutable.
type RiskAssessment struct {
	TokenAddress          string // PRIMARY KEY, references tokens.address
	WashTradingFlag       bool
	SniperCount           int64
	CreatorBalanceRatePct float64 // creator-held supply fraction x100
	Top10HolderPct        float64 // top-10 non-creator holders fraction x100
	OverallRiskLevel      RiskLevel
	AssessedAt            int64 // unix ms
}
