package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"pumpfun-sentinel/internal/domain"
	"pumpfun-sentinel/internal/storage"
)

// TokenStore implements storage.TokenStore using PostgreSQL.
type TokenStore struct {
	pool *Pool
}

// NewTokenStore creates a new TokenStore.
func NewTokenStore(pool *Pool) *TokenStore {
	return &TokenStore{pool: pool}
}

// Compile-time interface check.
var _ storage.TokenStore = (*TokenStore)(nil)

// Claim atomically inserts the token keyed by address. The unique index
// on address makes the insert the claim: exactly one concurrent caller
// gets RowsAffected()==1, everyone else gets the ON CONFLICT no-op.
func (s *TokenStore) Claim(ctx context.Context, t *domain.Token) (bool, error) {
	if t == nil || t.Address == "" {
		return false, storage.ErrInvalidInput
	}

	query := `
		INSERT INTO tokens (
			address, symbol, name, price_usd, market_cap_usd,
			volume_1h_usd, swaps_1h, holder_count, progress_pct,
			creator_address, creator_balance_rate, top10_holder_rate,
			sniper_count, created_at, first_seen_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		ON CONFLICT (address) DO NOTHING
	`

	tag, err := s.pool.Exec(ctx, query,
		t.Address,
		t.Symbol,
		t.Name,
		t.PriceUsd,
		t.MarketCapUsd,
		t.Volume1hUsd,
		t.Swaps1h,
		t.HolderCount,
		t.ProgressPct,
		t.CreatorAddress,
		t.CreatorBalanceRate,
		t.Top10HolderRate,
		t.SniperCount,
		t.CreatedAt,
		t.FirstSeenAt,
	)
	if err != nil {
		return false, fmt.Errorf("claim token: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// GetByAddress retrieves a claimed token. Returns ErrNotFound if absent.
func (s *TokenStore) GetByAddress(ctx context.Context, address string) (*domain.Token, error) {
	query := `
		SELECT address, symbol, name, price_usd, market_cap_usd,
		       volume_1h_usd, swaps_1h, holder_count, progress_pct,
		       creator_address, creator_balance_rate, top10_holder_rate,
		       sniper_count, created_at, first_seen_at
		FROM tokens
		WHERE address = $1
	`

	row := s.pool.QueryRow(ctx, query, address)
	t, err := scanToken(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get token by address: %w", err)
	}
	return t, nil
}

// SaveAssessment attaches the risk assessment to a claimed token.
// Returns ErrDuplicateKey if the token was already assessed.
func (s *TokenStore) SaveAssessment(ctx context.Context, a *domain.RiskAssessment) error {
	if a == nil || a.TokenAddress == "" {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO risk_assessments (
			token_address, wash_trading_flag, sniper_count,
			creator_balance_rate_pct, top10_holder_pct, overall_risk_level,
			assessed_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := s.pool.Exec(ctx, query,
		a.TokenAddress,
		a.WashTradingFlag,
		a.SniperCount,
		a.CreatorBalanceRatePct,
		a.Top10HolderPct,
		string(a.OverallRiskLevel),
		a.AssessedAt,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("save assessment: %w", err)
	}
	return nil
}

// GetAssessment retrieves the assessment for a token address.
func (s *TokenStore) GetAssessment(ctx context.Context, address string) (*domain.RiskAssessment, error) {
	query := `
		SELECT token_address, wash_trading_flag, sniper_count,
		       creator_balance_rate_pct, top10_holder_pct, overall_risk_level,
		       assessed_at
		FROM risk_assessments
		WHERE token_address = $1
	`

	row := s.pool.QueryRow(ctx, query, address)

	var a domain.RiskAssessment
	var level string
	err := row.Scan(
		&a.TokenAddress,
		&a.WashTradingFlag,
		&a.SniperCount,
		&a.CreatorBalanceRatePct,
		&a.Top10HolderPct,
		&level,
		&a.AssessedAt,
	)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get assessment: %w", err)
	}
	a.OverallRiskLevel = domain.RiskLevel(level)
	return &a, nil
}

// scanToken scans a single row into a Token.
func scanToken(row pgx.Row) (*domain.Token, error) {
	var t domain.Token
	err := row.Scan(
		&t.Address,
		&t.Symbol,
		&t.Name,
		&t.PriceUsd,
		&t.MarketCapUsd,
		&t.Volume1hUsd,
		&t.Swaps1h,
		&t.HolderCount,
		&t.ProgressPct,
		&t.CreatorAddress,
		&t.CreatorBalanceRate,
		&t.Top10HolderRate,
		&t.SniperCount,
		&t.CreatedAt,
		&t.FirstSeenAt,
	)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
