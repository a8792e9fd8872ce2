package memory

import (
	"context"
	"errors"
	"sync"
	"testing"

	"pumpfun-sentinel/internal/domain"
	"pumpfun-sentinel/internal/storage"
)

func newJob(token string, userID int64) *domain.NotificationJob {
	return &domain.NotificationJob{
		TokenAddress: token,
		UserID:       userID,
		Status:       domain.JobPending,
		CreatedAt:    1700000000000,
		UpdatedAt:    1700000000000,
	}
}

func TestJobStore_CreateOrGet(t *testing.T) {
	store := NewJobStore()
	ctx := context.Background()

	job, created, err := store.CreateOrGet(ctx, newJob("mint-1", 1))
	if err != nil {
		t.Fatalf("CreateOrGet failed: %v", err)
	}
	if !created {
		t.Fatal("First CreateOrGet must create")
	}

	// Mark delivered, then retry the create: the stored row comes back.
	job.Status = domain.JobDelivered
	job.Attempts = 1
	if err := store.Update(ctx, job); err != nil {
		t.Fatal(err)
	}

	again, created, err := store.CreateOrGet(ctx, newJob("mint-1", 1))
	if err != nil {
		t.Fatal(err)
	}
	if created {
		t.Error("Second CreateOrGet must not create")
	}
	if again.Status != domain.JobDelivered || again.Attempts != 1 {
		t.Errorf("stored row = %+v", again)
	}
}

func TestJobStore_CreateOrGetConcurrent(t *testing.T) {
	store := NewJobStore()
	ctx := context.Background()

	const workers = 16
	createds := make([]bool, workers)

	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func(i int) {
			defer wg.Done()
			_, created, err := store.CreateOrGet(ctx, newJob("mint-1", 7))
			if err != nil {
				t.Errorf("CreateOrGet failed: %v", err)
				return
			}
			createds[i] = created
		}(i)
	}
	wg.Wait()

	count := 0
	for _, c := range createds {
		if c {
			count++
		}
	}
	if count != 1 {
		t.Errorf("Exactly one create must win, got %d", count)
	}
}

func TestJobStore_UpdateMissing(t *testing.T) {
	store := NewJobStore()

	err := store.Update(context.Background(), newJob("mint-1", 1))
	if !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestJobStore_ListByToken(t *testing.T) {
	store := NewJobStore()
	ctx := context.Background()

	for _, userID := range []int64{3, 1, 2} {
		if _, _, err := store.CreateOrGet(ctx, newJob("mint-1", userID)); err != nil {
			t.Fatal(err)
		}
	}
	if _, _, err := store.CreateOrGet(ctx, newJob("mint-2", 9)); err != nil {
		t.Fatal(err)
	}

	jobs, err := store.ListByToken(ctx, "mint-1")
	if err != nil {
		t.Fatal(err)
	}
	if len(jobs) != 3 {
		t.Fatalf("len = %d, want 3", len(jobs))
	}
	for i, want := range []int64{1, 2, 3} {
		if jobs[i].UserID != want {
			t.Errorf("jobs[%d].UserID = %d, want %d", i, jobs[i].UserID, want)
		}
	}
}

func TestJobStore_ListByStatus(t *testing.T) {
	store := NewJobStore()
	ctx := context.Background()

	first := newJob("mint-1", 1)
	first.CreatedAt = 100
	second := newJob("mint-1", 2)
	second.CreatedAt = 200
	delivered := newJob("mint-1", 3)

	for _, j := range []*domain.NotificationJob{second, first, delivered} {
		if _, _, err := store.CreateOrGet(ctx, j); err != nil {
			t.Fatal(err)
		}
	}
	delivered.Status = domain.JobDelivered
	if err := store.Update(ctx, delivered); err != nil {
		t.Fatal(err)
	}

	jobs, err := store.ListByStatus(ctx, domain.JobPending)
	if err != nil {
		t.Fatal(err)
	}
	if len(jobs) != 2 {
		t.Fatalf("len = %d, want 2", len(jobs))
	}
	if jobs[0].UserID != 1 || jobs[1].UserID != 2 {
		t.Errorf("oldest-first order broken: [%d %d]", jobs[0].UserID, jobs[1].UserID)
	}
}
