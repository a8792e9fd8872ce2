package clickhouse

import (
	"context"
	"fmt"

	"pumpfun-sentinel/internal/domain"
)

// AlertArchive is the append-only ClickHouse audit trail: one row per
// claimed token with its risk scores, one row per delivery outcome.
// Write-only from the pipeline's point of view; MergeTree does not
// enforce uniqueness and does not need to, the authoritative state
// lives in PostgreSQL.
type AlertArchive struct {
	conn *Conn
}

// NewAlertArchive creates a new AlertArchive.
func NewAlertArchive(conn *Conn) *AlertArchive {
	return &AlertArchive{conn: conn}
}

// RecordAlert archives a claimed token together with its assessment.
func (a *AlertArchive) RecordAlert(ctx context.Context, t *domain.Token, r *domain.RiskAssessment) error {
	batch, err := a.conn.PrepareBatch(ctx, `
		INSERT INTO alert_archive (
			address, symbol, name, price_usd, market_cap_usd,
			volume_1h_usd, swaps_1h, holder_count, progress_pct,
			creator_address, risk_level, wash_trading_flag, sniper_count,
			creator_balance_pct, top10_holder_pct, first_seen_at
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare alert batch: %w", err)
	}

	washFlag := uint8(0)
	if r.WashTradingFlag {
		washFlag = 1
	}

	err = batch.Append(
		t.Address, t.Symbol, t.Name, t.PriceUsd, t.MarketCapUsd,
		t.Volume1hUsd, uint64(t.Swaps1h), uint64(t.HolderCount), t.ProgressPct,
		t.CreatorAddress, string(r.OverallRiskLevel), washFlag, uint64(r.SniperCount),
		r.CreatorBalanceRatePct, r.Top10HolderPct, uint64(t.FirstSeenAt),
	)
	if err != nil {
		return fmt.Errorf("append alert row: %w", err)
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send alert batch: %w", err)
	}
	return nil
}

// RecordDeliveries archives a batch of job outcomes.
func (a *AlertArchive) RecordDeliveries(ctx context.Context, jobs []*domain.NotificationJob, recordedAtMs int64) error {
	if len(jobs) == 0 {
		return nil
	}

	batch, err := a.conn.PrepareBatch(ctx, `
		INSERT INTO delivery_events (
			token_address, user_id, status, attempts, last_error, recorded_at
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare delivery batch: %w", err)
	}

	for _, j := range jobs {
		err = batch.Append(
			j.TokenAddress, j.UserID, string(j.Status),
			uint32(j.Attempts), j.LastError, uint64(recordedAtMs),
		)
		if err != nil {
			return fmt.Errorf("append delivery row: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send delivery batch: %w", err)
	}
	return nil
}
