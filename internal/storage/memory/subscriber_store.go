package memory

import (
	"context"
	"sort"
	"sync"

	"pumpfun-sentinel/internal/domain"
	"pumpfun-sentinel/internal/storage"
)

// SubscriberStore is an in-memory implementation of storage.SubscriberStore.
type SubscriberStore struct {
	mu   sync.RWMutex
	data map[int64]*domain.Subscriber
}

// NewSubscriberStore creates a new in-memory subscriber store.
func NewSubscriberStore() *SubscriberStore {
	return &SubscriberStore{
		data: make(map[int64]*domain.Subscriber),
	}
}

// Compile-time interface check.
var _ storage.SubscriberStore = (*SubscriberStore)(nil)

// Upsert creates the subscriber if absent, otherwise updates tier,
// state and premium expiry.
func (s *SubscriberStore) Upsert(_ context.Context, sub *domain.Subscriber) error {
	if sub == nil || sub.UserID == 0 {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.data[sub.UserID]; ok {
		existing.Tier = sub.Tier
		existing.State = sub.State
		existing.PremiumUntil = sub.PremiumUntil
		return nil
	}

	subCopy := *sub
	subCopy.DailyScanCount = 0
	subCopy.QuotaWindowStart = 0
	s.data[sub.UserID] = &subCopy
	return nil
}

// GetByUserID retrieves a subscriber. Returns ErrNotFound if absent.
func (s *SubscriberStore) GetByUserID(_ context.Context, userID int64) (*domain.Subscriber, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sub, exists := s.data[userID]
	if !exists {
		return nil, storage.ErrNotFound
	}

	subCopy := *sub
	return &subCopy, nil
}

// ListByState retrieves all subscribers in the given state, ordered by user id.
func (s *SubscriberStore) ListByState(_ context.Context, state domain.SubscriptionState) ([]*domain.Subscriber, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var subs []*domain.Subscriber
	for _, sub := range s.data {
		if sub.State == state {
			subCopy := *sub
			subs = append(subs, &subCopy)
		}
	}

	sort.Slice(subs, func(i, j int) bool {
		return subs[i].UserID < subs[j].UserID
	})
	return subs, nil
}

// SetState transitions a subscriber's state. Returns ErrNotFound if absent.
func (s *SubscriberStore) SetState(_ context.Context, userID int64, state domain.SubscriptionState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sub, exists := s.data[userID]
	if !exists {
		return storage.ErrNotFound
	}
	sub.State = state
	return nil
}

// ConsumeScan performs the atomic check-and-increment under the write lock.
func (s *SubscriberStore) ConsumeScan(_ context.Context, userID int64, limit, windowMs, nowMs int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sub, exists := s.data[userID]
	if !exists {
		return false, storage.ErrNotFound
	}

	if sub.QuotaWindowStart == 0 || sub.QuotaWindowStart+windowMs <= nowMs {
		if limit <= 0 {
			return false, nil
		}
		sub.QuotaWindowStart = nowMs
		sub.DailyScanCount = 1
		return true, nil
	}

	if sub.DailyScanCount < limit {
		sub.DailyScanCount++
		return true, nil
	}
	return false, nil
}
