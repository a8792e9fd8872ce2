// Package registry owns subscriber lifecycle and scan quotas.
//
// State machine:
//
//	Unsubscribed -(subscribe)-> Subscribed
//	Subscribed   -(unsubscribe | terminal delivery failure)-> Unsubscribed
//	Subscribed   -(pause)-> Paused -(resume)-> Subscribed
//
// Only Subscribed subscribers are eligible for push notifications.
// Push delivery is gated by state alone; the scan quota applies to
// interactive queries only.
package registry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"pumpfun-sentinel/internal/domain"
	"pumpfun-sentinel/internal/storage"
)

// Registry errors.
var (
	// ErrQuotaExceeded is returned when the daily scan limit is exhausted.
	ErrQuotaExceeded = errors.New("daily scan quota exceeded")

	// ErrInvalidTransition is returned for a state change the machine
	// does not allow.
	ErrInvalidTransition = errors.New("invalid subscription state transition")
)

// quotaWindow is the rolling window for the daily scan counter.
const quotaWindow = 24 * time.Hour

// TierLimits holds per-tier daily scan limits.
type TierLimits struct {
	FreeDailyScans    int64
	PremiumDailyScans int64
}

// DefaultTierLimits returns the stock limits.
func DefaultTierLimits() TierLimits {
	return TierLimits{
		FreeDailyScans:    3,
		PremiumDailyScans: 1000,
	}
}

// limitFor resolves the daily limit for a tier.
func (l TierLimits) limitFor(tier domain.Tier) int64 {
	if tier == domain.TierPremium {
		return l.PremiumDailyScans
	}
	return l.FreeDailyScans
}

// Registry manages subscribers on top of a SubscriberStore.
type Registry struct {
	store  storage.SubscriberStore
	limits TierLimits
	now    func() time.Time
}

// New creates a Registry. now may be nil, in which case time.Now is used.
func New(store storage.SubscriberStore, limits TierLimits, now func() time.Time) *Registry {
	if now == nil {
		now = time.Now
	}
	return &Registry{store: store, limits: limits, now: now}
}

// EnsureSubscriber returns the subscriber for userID, creating a free
// unsubscribed record on first interaction.
func (r *Registry) EnsureSubscriber(ctx context.Context, userID int64) (*domain.Subscriber, error) {
	sub, err := r.store.GetByUserID(ctx, userID)
	if err == nil {
		return sub, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("get subscriber %d: %w", userID, err)
	}

	sub = &domain.Subscriber{
		UserID:    userID,
		Tier:      domain.TierFree,
		State:     domain.StateUnsubscribed,
		CreatedAt: r.now().UnixMilli(),
	}
	if err := r.store.Upsert(ctx, sub); err != nil {
		return nil, fmt.Errorf("create subscriber %d: %w", userID, err)
	}
	return sub, nil
}

// Subscribe transitions Unsubscribed -> Subscribed, creating the
// subscriber first if needed. Subscribing twice is a no-op; a Paused
// subscriber must Resume instead.
func (r *Registry) Subscribe(ctx context.Context, userID int64) error {
	sub, err := r.EnsureSubscriber(ctx, userID)
	if err != nil {
		return err
	}

	switch sub.State {
	case domain.StateSubscribed:
		return nil
	case domain.StatePaused:
		return fmt.Errorf("%w: paused subscriber %d must resume", ErrInvalidTransition, userID)
	}
	return r.store.SetState(ctx, userID, domain.StateSubscribed)
}

// Unsubscribe transitions any state -> Unsubscribed. Idempotent.
func (r *Registry) Unsubscribe(ctx context.Context, userID int64) error {
	err := r.store.SetState(ctx, userID, domain.StateUnsubscribed)
	if errors.Is(err, storage.ErrNotFound) {
		return nil
	}
	return err
}

// Pause transitions Subscribed -> Paused.
func (r *Registry) Pause(ctx context.Context, userID int64) error {
	sub, err := r.store.GetByUserID(ctx, userID)
	if err != nil {
		return fmt.Errorf("get subscriber %d: %w", userID, err)
	}
	if sub.State != domain.StateSubscribed {
		return fmt.Errorf("%w: pause from %s", ErrInvalidTransition, sub.State)
	}
	return r.store.SetState(ctx, userID, domain.StatePaused)
}

// Resume transitions Paused -> Subscribed.
func (r *Registry) Resume(ctx context.Context, userID int64) error {
	sub, err := r.store.GetByUserID(ctx, userID)
	if err != nil {
		return fmt.Errorf("get subscriber %d: %w", userID, err)
	}
	if sub.State != domain.StatePaused {
		return fmt.Errorf("%w: resume from %s", ErrInvalidTransition, sub.State)
	}
	return r.store.SetState(ctx, userID, domain.StateSubscribed)
}

// MarkDeliveryFailed handles a terminal delivery failure: the
// subscriber is unsubscribed and receives no further alerts on any
// future token. Idempotent.
func (r *Registry) MarkDeliveryFailed(ctx context.Context, userID int64) error {
	return r.Unsubscribe(ctx, userID)
}

// EligibleSubscribers returns every subscriber currently eligible for
// push notifications.
func (r *Registry) EligibleSubscribers(ctx context.Context) ([]*domain.Subscriber, error) {
	return r.store.ListByState(ctx, domain.StateSubscribed)
}

// GrantPremium upgrades the subscriber to premium until the given time.
func (r *Registry) GrantPremium(ctx context.Context, userID int64, until time.Time) error {
	sub, err := r.EnsureSubscriber(ctx, userID)
	if err != nil {
		return err
	}
	sub.Tier = domain.TierPremium
	sub.PremiumUntil = until.UnixMilli()
	return r.store.Upsert(ctx, sub)
}

// AccountStatus is a point-in-time snapshot for user-facing status
// output.
type AccountStatus struct {
	Subscriber *domain.Subscriber
	Tier       domain.Tier
	ScansUsed  int64
	DailyLimit int64
}

// Status resolves the effective tier and quota usage for userID,
// creating the subscriber on first contact.
func (r *Registry) Status(ctx context.Context, userID int64) (*AccountStatus, error) {
	sub, err := r.EnsureSubscriber(ctx, userID)
	if err != nil {
		return nil, err
	}

	nowMs := r.now().UnixMilli()
	tier := sub.EffectiveTier(nowMs)
	used := sub.DailyScanCount
	if sub.QuotaWindowStart == 0 || sub.QuotaWindowStart+quotaWindow.Milliseconds() <= nowMs {
		used = 0
	}
	return &AccountStatus{
		Subscriber: sub,
		Tier:       tier,
		ScansUsed:  used,
		DailyLimit: r.limits.limitFor(tier),
	}, nil
}

// TryConsumeScan consumes one unit of interactive scan quota. Returns
// ErrQuotaExceeded when the subscriber's tier limit for the current
// rolling window is exhausted. The check-and-increment is atomic per
// subscriber in the store.
func (r *Registry) TryConsumeScan(ctx context.Context, userID int64) error {
	sub, err := r.EnsureSubscriber(ctx, userID)
	if err != nil {
		return err
	}

	nowMs := r.now().UnixMilli()
	limit := r.limits.limitFor(sub.EffectiveTier(nowMs))

	ok, err := r.store.ConsumeScan(ctx, userID, limit, quotaWindow.Milliseconds(), nowMs)
	if err != nil {
		return fmt.Errorf("consume scan for %d: %w", userID, err)
	}
	if !ok {
		return ErrQuotaExceeded
	}
	return nil
}
