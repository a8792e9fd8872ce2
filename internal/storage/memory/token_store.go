package memory

import (
	"context"
	"sync"

	"pumpfun-sentinel/internal/domain"
	"pumpfun-sentinel/internal/storage"
)

// TokenStore is an in-memory implementation of storage.TokenStore.
type TokenStore struct {
	mu          sync.RWMutex
	tokens      map[string]*domain.Token
	assessments map[string]*domain.RiskAssessment
}

// NewTokenStore creates a new in-memory token store.
func NewTokenStore() *TokenStore {
	return &TokenStore{
		tokens:      make(map[string]*domain.Token),
		assessments: make(map[string]*domain.RiskAssessment),
	}
}

// Compile-time interface check.
var _ storage.TokenStore = (*TokenStore)(nil)

// Claim atomically inserts the token keyed by address. The map insert
// under the write lock is the conditional insert.
func (s *TokenStore) Claim(_ context.Context, t *domain.Token) (bool, error) {
	if t == nil || t.Address == "" {
		return false, storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.tokens[t.Address]; exists {
		return false, nil
	}

	// Store a copy to prevent external mutation
	tokenCopy := *t
	s.tokens[t.Address] = &tokenCopy
	return true, nil
}

// GetByAddress retrieves a claimed token. Returns ErrNotFound if absent.
func (s *TokenStore) GetByAddress(_ context.Context, address string) (*domain.Token, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, exists := s.tokens[address]
	if !exists {
		return nil, storage.ErrNotFound
	}

	tokenCopy := *t
	return &tokenCopy, nil
}

// SaveAssessment attaches the risk assessment to a claimed token.
func (s *TokenStore) SaveAssessment(_ context.Context, a *domain.RiskAssessment) error {
	if a == nil || a.TokenAddress == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.assessments[a.TokenAddress]; exists {
		return storage.ErrDuplicateKey
	}

	assessmentCopy := *a
	s.assessments[a.TokenAddress] = &assessmentCopy
	return nil
}

// GetAssessment retrieves the assessment for a token address.
func (s *TokenStore) GetAssessment(_ context.Context, address string) (*domain.RiskAssessment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, exists := s.assessments[address]
	if !exists {
		return nil, storage.ErrNotFound
	}

	assessmentCopy := *a
	return &assessmentCopy, nil
}
