package memory

import (
	"context"
	"errors"
	"sync"
	"testing"

	"pumpfun-sentinel/internal/domain"
	"pumpfun-sentinel/internal/storage"
)

const dayMs = 24 * 60 * 60 * 1000

func newSub(userID int64) *domain.Subscriber {
	return &domain.Subscriber{
		UserID:    userID,
		Tier:      domain.TierFree,
		State:     domain.StateUnsubscribed,
		CreatedAt: 1700000000000,
	}
}

func TestSubscriberStore_UpsertPreservesQuota(t *testing.T) {
	store := NewSubscriberStore()
	ctx := context.Background()

	if err := store.Upsert(ctx, newSub(1)); err != nil {
		t.Fatal(err)
	}
	if ok, err := store.ConsumeScan(ctx, 1, 3, dayMs, 1000); err != nil || !ok {
		t.Fatalf("ConsumeScan = %v, %v", ok, err)
	}

	// Upserting tier must not reset the counter.
	upd := newSub(1)
	upd.Tier = domain.TierPremium
	if err := store.Upsert(ctx, upd); err != nil {
		t.Fatal(err)
	}

	got, err := store.GetByUserID(ctx, 1)
	if err != nil {
		t.Fatal(err)
	}
	if got.Tier != domain.TierPremium {
		t.Errorf("Tier = %s", got.Tier)
	}
	if got.DailyScanCount != 1 {
		t.Errorf("DailyScanCount = %d, want 1 (quota preserved)", got.DailyScanCount)
	}
}

func TestSubscriberStore_ConsumeScanLimit(t *testing.T) {
	store := NewSubscriberStore()
	ctx := context.Background()

	if err := store.Upsert(ctx, newSub(1)); err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 3; i++ {
		ok, err := store.ConsumeScan(ctx, 1, 3, dayMs, 1000)
		if err != nil || !ok {
			t.Fatalf("scan %d: ok=%v err=%v", i+1, ok, err)
		}
	}

	// Fourth scan in the window is rejected without error.
	ok, err := store.ConsumeScan(ctx, 1, 3, dayMs, 1000)
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Error("Fourth scan must be rejected")
	}
}

func TestSubscriberStore_ConsumeScanZeroLimit(t *testing.T) {
	store := NewSubscriberStore()
	ctx := context.Background()

	if err := store.Upsert(ctx, newSub(1)); err != nil {
		t.Fatal(err)
	}

	// A zero limit admits nothing, fresh window included.
	if ok, err := store.ConsumeScan(ctx, 1, 0, dayMs, 1000); err != nil || ok {
		t.Fatalf("zero limit: ok=%v err=%v", ok, err)
	}
	if ok, err := store.ConsumeScan(ctx, 1, 0, dayMs, 1000+dayMs); err != nil || ok {
		t.Fatalf("zero limit after window: ok=%v err=%v", ok, err)
	}

	got, _ := store.GetByUserID(ctx, 1)
	if got.DailyScanCount != 0 || got.QuotaWindowStart != 0 {
		t.Errorf("counter touched: count=%d window=%d", got.DailyScanCount, got.QuotaWindowStart)
	}
}

func TestSubscriberStore_ConsumeScanWindowReset(t *testing.T) {
	store := NewSubscriberStore()
	ctx := context.Background()

	if err := store.Upsert(ctx, newSub(1)); err != nil {
		t.Fatal(err)
	}

	start := int64(1000)
	for i := 0; i < 3; i++ {
		if ok, _ := store.ConsumeScan(ctx, 1, 3, dayMs, start); !ok {
			t.Fatalf("scan %d rejected", i+1)
		}
	}
	if ok, _ := store.ConsumeScan(ctx, 1, 3, dayMs, start+dayMs-1); ok {
		t.Error("Scan inside the window must stay rejected")
	}

	// One full window after the first scan, the counter resets.
	ok, err := store.ConsumeScan(ctx, 1, 3, dayMs, start+dayMs)
	if err != nil || !ok {
		t.Fatalf("scan after window: ok=%v err=%v", ok, err)
	}

	got, _ := store.GetByUserID(ctx, 1)
	if got.DailyScanCount != 1 {
		t.Errorf("DailyScanCount = %d, want 1 after reset", got.DailyScanCount)
	}
	if got.QuotaWindowStart != start+dayMs {
		t.Errorf("QuotaWindowStart = %d, want %d", got.QuotaWindowStart, start+dayMs)
	}
}

func TestSubscriberStore_ConsumeScanConcurrent(t *testing.T) {
	store := NewSubscriberStore()
	ctx := context.Background()

	if err := store.Upsert(ctx, newSub(1)); err != nil {
		t.Fatal(err)
	}

	const workers = 20
	const limit = 5

	granted := make([]bool, workers)
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func(i int) {
			defer wg.Done()
			ok, err := store.ConsumeScan(ctx, 1, limit, dayMs, 1000)
			if err != nil {
				t.Errorf("ConsumeScan failed: %v", err)
				return
			}
			granted[i] = ok
		}(i)
	}
	wg.Wait()

	count := 0
	for _, g := range granted {
		if g {
			count++
		}
	}
	if count != limit {
		t.Errorf("granted = %d, want exactly %d", count, limit)
	}
}

func TestSubscriberStore_ConsumeScanUnknownUser(t *testing.T) {
	store := NewSubscriberStore()

	_, err := store.ConsumeScan(context.Background(), 99, 3, dayMs, 1000)
	if !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestSubscriberStore_ListByState(t *testing.T) {
	store := NewSubscriberStore()
	ctx := context.Background()

	for id := int64(1); id <= 3; id++ {
		sub := newSub(id)
		if id != 2 {
			sub.State = domain.StateSubscribed
		}
		if err := store.Upsert(ctx, sub); err != nil {
			t.Fatal(err)
		}
	}

	subs, err := store.ListByState(ctx, domain.StateSubscribed)
	if err != nil {
		t.Fatal(err)
	}
	if len(subs) != 2 {
		t.Fatalf("len = %d, want 2", len(subs))
	}
	if subs[0].UserID != 1 || subs[1].UserID != 3 {
		t.Errorf("order = [%d %d], want [1 3]", subs[0].UserID, subs[1].UserID)
	}
}

func TestSubscriberStore_SetState(t *testing.T) {
	store := NewSubscriberStore()
	ctx := context.Background()

	if err := store.SetState(ctx, 1, domain.StateSubscribed); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}

	if err := store.Upsert(ctx, newSub(1)); err != nil {
		t.Fatal(err)
	}
	if err := store.SetState(ctx, 1, domain.StateSubscribed); err != nil {
		t.Fatal(err)
	}

	got, _ := store.GetByUserID(ctx, 1)
	if got.State != domain.StateSubscribed {
		t.Errorf("State = %s", got.State)
	}
}
