package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"pumpfun-sentinel/internal/domain"
	"pumpfun-sentinel/internal/storage"
)

// SubscriberStore implements storage.SubscriberStore using PostgreSQL.
type SubscriberStore struct {
	pool *Pool
}

// NewSubscriberStore creates a new SubscriberStore.
func NewSubscriberStore(pool *Pool) *SubscriberStore {
	return &SubscriberStore{pool: pool}
}

// Compile-time interface check.
var _ storage.SubscriberStore = (*SubscriberStore)(nil)

// Upsert creates the subscriber if absent, otherwise updates tier,
// state and premium expiry. Quota counters are never touched here.
func (s *SubscriberStore) Upsert(ctx context.Context, sub *domain.Subscriber) error {
	if sub == nil || sub.UserID == 0 {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO subscribers (
			user_id, tier, state, daily_scan_count, quota_window_start,
			premium_until, created_at
		) VALUES ($1, $2, $3, 0, 0, $4, $5)
		ON CONFLICT (user_id) DO UPDATE
		SET tier = EXCLUDED.tier,
		    state = EXCLUDED.state,
		    premium_until = EXCLUDED.premium_until
	`

	_, err := s.pool.Exec(ctx, query,
		sub.UserID,
		string(sub.Tier),
		string(sub.State),
		sub.PremiumUntil,
		sub.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert subscriber: %w", err)
	}
	return nil
}

// GetByUserID retrieves a subscriber. Returns ErrNotFound if absent.
func (s *SubscriberStore) GetByUserID(ctx context.Context, userID int64) (*domain.Subscriber, error) {
	query := `
		SELECT user_id, tier, state, daily_scan_count, quota_window_start,
		       premium_until, created_at
		FROM subscribers
		WHERE user_id = $1
	`

	row := s.pool.QueryRow(ctx, query, userID)
	sub, err := scanSubscriber(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get subscriber: %w", err)
	}
	return sub, nil
}

// ListByState retrieves all subscribers in the given state.
func (s *SubscriberStore) ListByState(ctx context.Context, state domain.SubscriptionState) ([]*domain.Subscriber, error) {
	query := `
		SELECT user_id, tier, state, daily_scan_count, quota_window_start,
		       premium_until, created_at
		FROM subscribers
		WHERE state = $1
		ORDER BY user_id ASC
	`

	rows, err := s.pool.Query(ctx, query, string(state))
	if err != nil {
		return nil, fmt.Errorf("list subscribers by state: %w", err)
	}
	defer rows.Close()

	var subs []*domain.Subscriber
	for rows.Next() {
		sub, err := scanSubscriber(rows)
		if err != nil {
			return nil, fmt.Errorf("scan subscriber row: %w", err)
		}
		subs = append(subs, sub)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate subscriber rows: %w", err)
	}
	return subs, nil
}

// SetState transitions a subscriber's state. Returns ErrNotFound if absent.
func (s *SubscriberStore) SetState(ctx context.Context, userID int64, state domain.SubscriptionState) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE subscribers SET state = $2 WHERE user_id = $1
	`, userID, string(state))
	if err != nil {
		return fmt.Errorf("set subscriber state: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// ConsumeScan performs the atomic check-and-increment in a single UPDATE.
// The WHERE clause admits the row only when the counter is below limit,
// in the current window or a fresh one, so two concurrent callers can
// never both pass with one unit of quota remaining and a zero limit
// admits nothing.
func (s *SubscriberStore) ConsumeScan(ctx context.Context, userID int64, limit, windowMs, nowMs int64) (bool, error) {
	query := `
		UPDATE subscribers
		SET daily_scan_count = CASE
		        WHEN quota_window_start = 0 OR quota_window_start + $3 <= $4 THEN 1
		        ELSE daily_scan_count + 1
		    END,
		    quota_window_start = CASE
		        WHEN quota_window_start = 0 OR quota_window_start + $3 <= $4 THEN $4
		        ELSE quota_window_start
		    END
		WHERE user_id = $1
		  AND (
		      ((quota_window_start = 0 OR quota_window_start + $3 <= $4) AND $2 > 0)
		      OR (quota_window_start <> 0 AND quota_window_start + $3 > $4 AND daily_scan_count < $2)
		  )
	`

	tag, err := s.pool.Exec(ctx, query, userID, limit, windowMs, nowMs)
	if err != nil {
		return false, fmt.Errorf("consume scan: %w", err)
	}
	if tag.RowsAffected() == 1 {
		return true, nil
	}

	// No row updated: either quota exhausted or the subscriber is unknown.
	var exists bool
	row := s.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM subscribers WHERE user_id = $1)`, userID)
	if err := row.Scan(&exists); err != nil {
		return false, fmt.Errorf("check subscriber exists: %w", err)
	}
	if !exists {
		return false, storage.ErrNotFound
	}
	return false, nil
}

// scanSubscriber scans a single row into a Subscriber.
func scanSubscriber(row pgx.Row) (*domain.Subscriber, error) {
	var sub domain.Subscriber
	var tier, state string

	err := row.Scan(
		&sub.UserID,
		&tier,
		&state,
		&sub.DailyScanCount,
		&sub.QuotaWindowStart,
		&sub.PremiumUntil,
		&sub.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	sub.Tier = domain.Tier(tier)
	sub.State = domain.SubscriptionState(state)
	return &sub, nil
}
