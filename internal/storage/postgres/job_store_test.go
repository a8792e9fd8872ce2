package postgres

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pumpfun-sentinel/internal/domain"
	"pumpfun-sentinel/internal/storage"
)

func sampleJob(tokenAddress string, userID int64) *domain.NotificationJob {
	return &domain.NotificationJob{
		TokenAddress: tokenAddress,
		UserID:       userID,
		Status:       domain.JobPending,
		CreatedAt:    1700000000000,
		UpdatedAt:    1700000000000,
	}
}

func TestJobStore_CreateOrGet(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewJobStore(pool)
	ctx := context.Background()

	stored, created, err := store.CreateOrGet(ctx, sampleJob("mint-1", 1))
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, domain.JobPending, stored.Status)

	// The stored row wins over the caller's template on replay.
	stored.Status = domain.JobDelivered
	stored.Attempts = 1
	stored.UpdatedAt = 1700000001000
	require.NoError(t, store.Update(ctx, stored))

	again, created, err := store.CreateOrGet(ctx, sampleJob("mint-1", 1))
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, domain.JobDelivered, again.Status)
	assert.Equal(t, 1, again.Attempts)
}

func TestJobStore_CreateOrGetConcurrent(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewJobStore(pool)
	ctx := context.Background()

	const workers = 16
	var wg sync.WaitGroup
	creates := make(chan bool, workers)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, created, err := store.CreateOrGet(ctx, sampleJob("mint-race", 7))
			require.NoError(t, err)
			creates <- created
		}()
	}
	wg.Wait()
	close(creates)

	creators := 0
	for created := range creates {
		if created {
			creators++
		}
	}
	assert.Equal(t, 1, creators, "exactly one concurrent caller must create the job")
}

func TestJobStore_UpdateMissing(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewJobStore(pool)

	err := store.Update(context.Background(), sampleJob("missing", 1))
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestJobStore_ListByToken(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewJobStore(pool)
	ctx := context.Background()

	for _, userID := range []int64{3, 1, 2} {
		_, _, err := store.CreateOrGet(ctx, sampleJob("mint-1", userID))
		require.NoError(t, err)
	}
	_, _, err := store.CreateOrGet(ctx, sampleJob("mint-2", 9))
	require.NoError(t, err)

	jobs, err := store.ListByToken(ctx, "mint-1")
	require.NoError(t, err)
	require.Len(t, jobs, 3)
	for i, userID := range []int64{1, 2, 3} {
		assert.Equal(t, userID, jobs[i].UserID)
	}
}

func TestJobStore_ListByStatus(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewJobStore(pool)
	ctx := context.Background()

	older := sampleJob("mint-1", 1)
	older.Status = domain.JobRetrying
	older.CreatedAt = 1700000000000
	_, _, err := store.CreateOrGet(ctx, older)
	require.NoError(t, err)

	newer := sampleJob("mint-2", 2)
	newer.Status = domain.JobRetrying
	newer.CreatedAt = 1700000005000
	_, _, err = store.CreateOrGet(ctx, newer)
	require.NoError(t, err)

	delivered := sampleJob("mint-3", 3)
	delivered.Status = domain.JobDelivered
	_, _, err = store.CreateOrGet(ctx, delivered)
	require.NoError(t, err)

	jobs, err := store.ListByStatus(ctx, domain.JobRetrying)
	require.NoError(t, err)
	require.Len(t, jobs, 2)
	assert.Equal(t, "mint-1", jobs[0].TokenAddress, "oldest first")
	assert.Equal(t, "mint-2", jobs[1].TokenAddress)
}
