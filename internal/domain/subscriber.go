package domain

// Tier classifies a subscriber for quota limits and feature access.
type Tier string

const (
	TierFree    Tier = "FREE"
	TierPremium Tier = "PREMIUM"
)

// SubscriptionState is the push-notification eligibility state.
// Only Subscribed subscribers receive launch alerts.
type SubscriptionState string

const (
	StateUnsubscribed SubscriptionState = "UNSUBSCRIBED"
	StateSubscribed   SubscriptionState = "SUBSCRIBED"
	StatePaused       SubscriptionState = "PAUSED"
)

// Subscriber represents a Telegram user known to the sentinel.
// Corresponds to the subscribers table in PostgreSQL.
type Subscriber struct {
	UserID           int64 // PRIMARY KEY, Telegram user id
	Tier             Tier
	State            SubscriptionState
	DailyScanCount   int64
	QuotaWindowStart int64 // unix ms; zero until the first scan in a window
	PremiumUntil     int64 // unix ms; zero means no premium purchase on record
	CreatedAt        int64 // unix ms
}

// EffectiveTier resolves the tier at a point in time: a premium
// subscription that has lapsed counts as free.
func (s *Subscriber) EffectiveTier(nowMs int64) Tier {
	if s.Tier == TierPremium && (s.PremiumUntil == 0 || s.PremiumUntil > nowMs) {
		return TierPremium
	}
	return TierFree
}
