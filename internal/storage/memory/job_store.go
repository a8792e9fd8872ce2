package memory

import (
	"context"
	"sort"
	"sync"

	"pumpfun-sentinel/internal/domain"
	"pumpfun-sentinel/internal/storage"
)

type jobKey struct {
	tokenAddress string
	userID       int64
}

// JobStore is an in-memory implementation of storage.JobStore.
type JobStore struct {
	mu   sync.RWMutex
	data map[jobKey]*domain.NotificationJob
}

// NewJobStore creates a new in-memory job store.
func NewJobStore() *JobStore {
	return &JobStore{
		data: make(map[jobKey]*domain.NotificationJob),
	}
}

// Compile-time interface check.
var _ storage.JobStore = (*JobStore)(nil)

// CreateOrGet inserts the job for (tokenAddress, userID) if absent and
// returns the stored row either way.
func (s *JobStore) CreateOrGet(_ context.Context, job *domain.NotificationJob) (*domain.NotificationJob, bool, error) {
	if job == nil || job.TokenAddress == "" || job.UserID == 0 {
		return nil, false, storage.ErrInvalidInput
	}

	key := jobKey{job.TokenAddress, job.UserID}

	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.data[key]; ok {
		jobCopy := *existing
		return &jobCopy, false, nil
	}

	jobCopy := *job
	s.data[key] = &jobCopy

	returned := jobCopy
	return &returned, true, nil
}

// Update persists status, attempts and last error for an existing job.
func (s *JobStore) Update(_ context.Context, job *domain.NotificationJob) error {
	if job == nil || job.TokenAddress == "" || job.UserID == 0 {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.data[jobKey{job.TokenAddress, job.UserID}]
	if !ok {
		return storage.ErrNotFound
	}

	existing.Status = job.Status
	existing.Attempts = job.Attempts
	existing.LastError = job.LastError
	existing.UpdatedAt = job.UpdatedAt
	return nil
}

// GetByKey retrieves a job by its pair key. Returns ErrNotFound if absent.
func (s *JobStore) GetByKey(_ context.Context, tokenAddress string, userID int64) (*domain.NotificationJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	job, ok := s.data[jobKey{tokenAddress, userID}]
	if !ok {
		return nil, storage.ErrNotFound
	}

	jobCopy := *job
	return &jobCopy, nil
}

// ListByToken retrieves all jobs for a token address, ordered by user id.
func (s *JobStore) ListByToken(_ context.Context, tokenAddress string) ([]*domain.NotificationJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var jobs []*domain.NotificationJob
	for key, job := range s.data {
		if key.tokenAddress == tokenAddress {
			jobCopy := *job
			jobs = append(jobs, &jobCopy)
		}
	}

	sort.Slice(jobs, func(i, j int) bool {
		return jobs[i].UserID < jobs[j].UserID
	})
	return jobs, nil
}

// ListByStatus retrieves all jobs in the given status, oldest first.
func (s *JobStore) ListByStatus(_ context.Context, status domain.JobStatus) ([]*domain.NotificationJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var jobs []*domain.NotificationJob
	for _, job := range s.data {
		if job.Status == status {
			jobCopy := *job
			jobs = append(jobs, &jobCopy)
		}
	}

	sort.Slice(jobs, func(i, j int) bool {
		if jobs[i].CreatedAt != jobs[j].CreatedAt {
			return jobs[i].CreatedAt < jobs[j].CreatedAt
		}
		return jobs[i].UserID < jobs[j].UserID
	})
	return jobs, nil
}
