package registry

import (
	"context"
	"errors"
	"testing"
	"time"

	"pumpfun-sentinel/internal/domain"
	"pumpfun-sentinel/internal/storage/memory"
)

func newTestRegistry(now *time.Time) *Registry {
	clk := func() time.Time {
		if now != nil {
			return *now
		}
		return time.Unix(1700000000, 0)
	}
	return New(memory.NewSubscriberStore(), DefaultTierLimits(), clk)
}

func TestEnsureSubscriber_CreatesFreeUnsubscribed(t *testing.T) {
	r := newTestRegistry(nil)
	ctx := context.Background()

	sub, err := r.EnsureSubscriber(ctx, 42)
	if err != nil {
		t.Fatalf("EnsureSubscriber failed: %v", err)
	}
	if sub.Tier != domain.TierFree {
		t.Errorf("Tier = %s", sub.Tier)
	}
	if sub.State != domain.StateUnsubscribed {
		t.Errorf("State = %s", sub.State)
	}

	// Idempotent.
	again, err := r.EnsureSubscriber(ctx, 42)
	if err != nil {
		t.Fatal(err)
	}
	if again.CreatedAt != sub.CreatedAt {
		t.Error("Second EnsureSubscriber must not recreate")
	}
}

func TestStateMachine(t *testing.T) {
	r := newTestRegistry(nil)
	ctx := context.Background()

	// Pause before subscribing is invalid.
	if _, err := r.EnsureSubscriber(ctx, 1); err != nil {
		t.Fatal(err)
	}
	if err := r.Pause(ctx, 1); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("pause from unsubscribed: err = %v", err)
	}

	if err := r.Subscribe(ctx, 1); err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}
	// Subscribing twice is a no-op.
	if err := r.Subscribe(ctx, 1); err != nil {
		t.Errorf("Double subscribe: %v", err)
	}

	if err := r.Pause(ctx, 1); err != nil {
		t.Fatalf("Pause failed: %v", err)
	}
	// Subscribe while paused must point at resume.
	if err := r.Subscribe(ctx, 1); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("subscribe while paused: err = %v", err)
	}
	if err := r.Resume(ctx, 1); err != nil {
		t.Fatalf("Resume failed: %v", err)
	}
	// Resume when already subscribed is invalid.
	if err := r.Resume(ctx, 1); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("double resume: err = %v", err)
	}

	// Unsubscribe works from any state and is idempotent.
	if err := r.Unsubscribe(ctx, 1); err != nil {
		t.Fatalf("Unsubscribe failed: %v", err)
	}
	if err := r.Unsubscribe(ctx, 1); err != nil {
		t.Errorf("Double unsubscribe: %v", err)
	}
	// Even for unknown users.
	if err := r.Unsubscribe(ctx, 999); err != nil {
		t.Errorf("Unsubscribe unknown: %v", err)
	}
}

func TestEligibleSubscribers(t *testing.T) {
	r := newTestRegistry(nil)
	ctx := context.Background()

	for id := int64(1); id <= 3; id++ {
		if err := r.Subscribe(ctx, id); err != nil {
			t.Fatal(err)
		}
	}
	if err := r.Pause(ctx, 2); err != nil {
		t.Fatal(err)
	}
	if err := r.MarkDeliveryFailed(ctx, 3); err != nil {
		t.Fatal(err)
	}

	subs, err := r.EligibleSubscribers(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(subs) != 1 || subs[0].UserID != 1 {
		t.Errorf("eligible = %+v, want only user 1", subs)
	}
}

func TestTryConsumeScan_FreeQuota(t *testing.T) {
	r := newTestRegistry(nil)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := r.TryConsumeScan(ctx, 1); err != nil {
			t.Fatalf("scan %d: %v", i+1, err)
		}
	}
	if err := r.TryConsumeScan(ctx, 1); !errors.Is(err, ErrQuotaExceeded) {
		t.Errorf("fourth scan: err = %v, want ErrQuotaExceeded", err)
	}
}

func TestTryConsumeScan_WindowRollover(t *testing.T) {
	now := time.Unix(1700000000, 0)
	r := newTestRegistry(&now)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := r.TryConsumeScan(ctx, 1); err != nil {
			t.Fatal(err)
		}
	}
	if err := r.TryConsumeScan(ctx, 1); !errors.Is(err, ErrQuotaExceeded) {
		t.Fatalf("err = %v", err)
	}

	// 24h after the first scan the window rolls over.
	now = now.Add(24 * time.Hour)
	if err := r.TryConsumeScan(ctx, 1); err != nil {
		t.Errorf("scan after rollover: %v", err)
	}
}

func TestTryConsumeScan_PremiumLimit(t *testing.T) {
	now := time.Unix(1700000000, 0)
	r := newTestRegistry(&now)
	ctx := context.Background()

	if err := r.GrantPremium(ctx, 1, now.Add(30*24*time.Hour)); err != nil {
		t.Fatal(err)
	}

	// Premium clears the free limit easily.
	for i := 0; i < 10; i++ {
		if err := r.TryConsumeScan(ctx, 1); err != nil {
			t.Fatalf("premium scan %d: %v", i+1, err)
		}
	}
}

func TestTryConsumeScan_LapsedPremiumIsFree(t *testing.T) {
	now := time.Unix(1700000000, 0)
	r := newTestRegistry(&now)
	ctx := context.Background()

	if err := r.GrantPremium(ctx, 1, now.Add(time.Hour)); err != nil {
		t.Fatal(err)
	}

	// Premium lapses; free limit applies again.
	now = now.Add(2 * time.Hour)
	for i := 0; i < 3; i++ {
		if err := r.TryConsumeScan(ctx, 1); err != nil {
			t.Fatal(err)
		}
	}
	if err := r.TryConsumeScan(ctx, 1); !errors.Is(err, ErrQuotaExceeded) {
		t.Errorf("lapsed premium fourth scan: err = %v, want ErrQuotaExceeded", err)
	}
}

func TestStatus(t *testing.T) {
	now := time.Unix(1700000000, 0)
	r := newTestRegistry(&now)
	ctx := context.Background()

	status, err := r.Status(ctx, 1)
	if err != nil {
		t.Fatal(err)
	}
	if status.Tier != domain.TierFree || status.ScansUsed != 0 || status.DailyLimit != 3 {
		t.Errorf("fresh status = %+v", status)
	}

	if err := r.TryConsumeScan(ctx, 1); err != nil {
		t.Fatal(err)
	}
	status, err = r.Status(ctx, 1)
	if err != nil {
		t.Fatal(err)
	}
	if status.ScansUsed != 1 {
		t.Errorf("ScansUsed = %d, want 1", status.ScansUsed)
	}

	// After the window lapses the shown usage resets even without a scan.
	now = now.Add(25 * time.Hour)
	status, err = r.Status(ctx, 1)
	if err != nil {
		t.Fatal(err)
	}
	if status.ScansUsed != 0 {
		t.Errorf("ScansUsed after window = %d, want 0", status.ScansUsed)
	}
}
