package storage

import (
	"context"

	"pumpfun-sentinel/internal/domain"
)

// TokenStore provides access to claimed token storage.
type TokenStore interface {
	// Claim atomically inserts the token keyed by address. Returns
	// (true, nil) for the single caller that wins the claim and
	// (false, nil) when the address was already claimed. Implemented as
	// a conditional insert, never read-then-write.
	Claim(ctx context.Context, t *domain.Token) (bool, error)

	// GetByAddress retrieves a claimed token. Returns ErrNotFound if absent.
	GetByAddress(ctx context.Context, address string) (*domain.Token, error)

	// SaveAssessment attaches the risk assessment to a claimed token.
	// Returns ErrDuplicateKey if the token was already assessed.
	SaveAssessment(ctx context.Context, a *domain.RiskAssessment) error

	// GetAssessment retrieves the assessment for a token address.
	// Returns ErrNotFound if absent.
	GetAssessment(ctx context.Context, address string) (*domain.RiskAssessment, error)
}

// SubscriberStore provides access to subscriber storage.
type SubscriberStore interface {
	// Upsert creates the subscriber if absent, otherwise updates tier,
	// state and premium expiry. Quota counters are never touched here.
	Upsert(ctx context.Context, s *domain.Subscriber) error

	// GetByUserID retrieves a subscriber. Returns ErrNotFound if absent.
	GetByUserID(ctx context.Context, userID int64) (*domain.Subscriber, error)

	// ListByState retrieves all subscribers in the given state.
	ListByState(ctx context.Context, state domain.SubscriptionState) ([]*domain.Subscriber, error)

	// SetState transitions a subscriber's state. Returns ErrNotFound if absent.
	SetState(ctx context.Context, userID int64, state domain.SubscriptionState) error

	// ConsumeScan atomically increments the daily scan counter if it is
	// below limit within the current window, resetting the counter and
	// window first when nowMs has passed windowStart+windowMs. Returns
	// (false, nil) when the quota is exhausted and ErrNotFound if the
	// subscriber is absent.
	ConsumeScan(ctx context.Context, userID int64, limit, windowMs, nowMs int64) (bool, error)
}

// JobStore provides access to notification job storage.
type JobStore interface {
	// CreateOrGet inserts the job for (tokenAddress, userID) if absent
	// and returns the stored row either way. created reports whether
	// this call performed the insert.
	CreateOrGet(ctx context.Context, job *domain.NotificationJob) (stored *domain.NotificationJob, created bool, err error)

	// Update persists status, attempts and last error for an existing
	// job. Returns ErrNotFound if the pair was never created.
	Update(ctx context.Context, job *domain.NotificationJob) error

	// GetByKey retrieves a job by its pair key. Returns ErrNotFound if absent.
	GetByKey(ctx context.Context, tokenAddress string, userID int64) (*domain.NotificationJob, error)

	// ListByToken retrieves all jobs for a token address.
	ListByToken(ctx context.Context, tokenAddress string) ([]*domain.NotificationJob, error)

	// ListByStatus retrieves all jobs in the given status, oldest first.
	// Used on startup to resume jobs left Retrying by a shutdown.
	ListByStatus(ctx context.Context, status domain.JobStatus) ([]*domain.NotificationJob, error)
}

// CursorStore persists the feed resume marker.
type CursorStore interface {
	// Get returns the last acknowledged cursor. Returns ErrNotFound
	// before the first Set.
	Get(ctx context.Context) (string, error)

	// Set saves the cursor. Called only after the fetched batch has
	// been handed to the claim path.
	Set(ctx context.Context, cursor string) error
}
