package feed

import (
	"errors"
	"fmt"

	"pumpfun-sentinel/internal/domain"
)

// ErrInvalidPayload marks a malformed or incomplete token payload.
// Callers skip the token and continue the cycle.
var ErrInvalidPayload = errors.New("invalid token payload")

// RawToken is one token entry as published by the launch feed.
type RawToken struct {
	TokenAddress       string  `json:"token_address"`
	Symbol             string  `json:"symbol"`
	Name               string  `json:"name"`
	UsdPrice           float64 `json:"usd_price"`
	UsdMarketCap       float64 `json:"usd_market_cap"`
	Volume1h           float64 `json:"volume_1h"`
	Swaps1h            int64   `json:"swaps_1h"`
	HolderCount        int64   `json:"holder_count"`
	Progress           float64 `json:"progress"`
	Creator            string  `json:"creator"`
	CreatorBalanceRate float64 `json:"creator_balance_rate"`
	Top10HolderRate    float64 `json:"top_10_holder_rate"`
	SniperCount        int64   `json:"sniper_count"`
	CreatedTimestamp   int64   `json:"created_timestamp"` // unix seconds
}

// fetchResponse is the feed's paged envelope.
type fetchResponse struct {
	Tokens     []RawToken `json:"tokens"`
	NextCursor string     `json:"next_cursor"`
}

// ToToken validates the payload and converts it to a domain snapshot.
// firstSeenAtMs becomes the claim timestamp. Returns ErrInvalidPayload
// (wrapped with the offending field) for malformed entries.
func (r *RawToken) ToToken(firstSeenAtMs int64) (*domain.Token, error) {
	if err := ValidateAddress(r.TokenAddress); err != nil {
		return nil, fmt.Errorf("%w: token_address %q: %v", ErrInvalidPayload, r.TokenAddress, err)
	}
	if r.CreatedTimestamp <= 0 {
		return nil, fmt.Errorf("%w: missing created_timestamp for %s", ErrInvalidPayload, r.TokenAddress)
	}
	if r.Progress < 0 || r.Progress > 100 {
		return nil, fmt.Errorf("%w: progress %.2f out of range for %s", ErrInvalidPayload, r.Progress, r.TokenAddress)
	}
	if r.UsdPrice < 0 || r.UsdMarketCap < 0 || r.Volume1h < 0 {
		return nil, fmt.Errorf("%w: negative price metrics for %s", ErrInvalidPayload, r.TokenAddress)
	}
	if r.CreatorBalanceRate < 0 || r.CreatorBalanceRate > 1 || r.Top10HolderRate < 0 || r.Top10HolderRate > 1 {
		return nil, fmt.Errorf("%w: holder rates out of range for %s", ErrInvalidPayload, r.TokenAddress)
	}
	// The creator is a wallet, not a PDA, so it must decode to a point
	// on the curve. A feed entry failing this carries garbage.
	if r.Creator != "" {
		if err := ValidateOnCurve(r.Creator); err != nil {
			return nil, fmt.Errorf("%w: creator %q: %v", ErrInvalidPayload, r.Creator, err)
		}
	}

	return &domain.Token{
		Address:            r.TokenAddress,
		Symbol:             r.Symbol,
		Name:               r.Name,
		PriceUsd:           r.UsdPrice,
		MarketCapUsd:       r.UsdMarketCap,
		Volume1hUsd:        r.Volume1h,
		Swaps1h:            r.Swaps1h,
		HolderCount:        r.HolderCount,
		ProgressPct:        r.Progress,
		CreatorAddress:     r.Creator,
		CreatorBalanceRate: r.CreatorBalanceRate,
		Top10HolderRate:    r.Top10HolderRate,
		SniperCount:        r.SniperCount,
		CreatedAt:          r.CreatedTimestamp * 1000,
		FirstSeenAt:        firstSeenAtMs,
	}, nil
}
