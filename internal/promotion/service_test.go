package promotion

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService(t *testing.T, inputs ...CreateInput) *Service {
	t.Helper()
	svc := NewService(NewMemoryRepository())
	for _, in := range inputs {
		if _, err := svc.Create(context.Background(), in); err != nil {
			t.Fatalf("create promotion %s: %v", in.Code, err)
		}
	}
	return svc
}

func window() (time.Time, time.Time) {
	now := time.Now().UTC()
	return now.Add(-time.Hour), now.Add(time.Hour)
}

func TestEvaluatePercentage(t *testing.T) {
	start, end := window()
	svc := newTestService(t, CreateInput{
		BusinessID: uuid.NewString(), Code: "SAVE10", Type: TypePercentage,
		Value: 10, StartDate: start, EndDate: end,
	})

	quote, err := svc.Evaluate(context.Background(), "SAVE10", 100, time.Now().UTC())
	require.NoError(t, err)
	assert.Equal(t, int64(10), quote.Discount)
	assert.Equal(t, int64(90), quote.FinalAmount)
	assert.False(t, quote.FreeDelivery)
}

func TestEvaluatePercentageCapped(t *testing.T) {
	start, end := window()
	svc := newTestService(t, CreateInput{
		BusinessID: uuid.NewString(), Code: "BIG50", Type: TypePercentage,
		Value: 50, MaxDiscount: 1_000, StartDate: start, EndDate: end,
	})

	quote, err := svc.Evaluate(context.Background(), "BIG50", 10_000, time.Now().UTC())
	require.NoError(t, err)
	assert.Equal(t, int64(1_000), quote.Discount)
	assert.Equal(t, int64(9_000), quote.FinalAmount)
}

func TestEvaluateFixedAmountClamped(t *testing.T) {
	start, end := window()
	svc := newTestService(t, CreateInput{
		BusinessID: uuid.NewString(), Code: "FLAT500", Type: TypeFixedAmount,
		Value: 500, StartDate: start, EndDate: end,
	})

	// Discount larger than the purchase never produces a negative final amount.
	quote, err := svc.Evaluate(context.Background(), "FLAT500", 300, time.Now().UTC())
	require.NoError(t, err)
	assert.Equal(t, int64(300), quote.Discount)
	assert.Equal(t, int64(0), quote.FinalAmount)
}

func TestEvaluateFreeDelivery(t *testing.T) {
	start, end := window()
	svc := newTestService(t, CreateInput{
		BusinessID: uuid.NewString(), Code: "SHIPFREE", Type: TypeFreeDelivery,
		StartDate: start, EndDate: end,
	})

	quote, err := svc.Evaluate(context.Background(), "SHIPFREE", 2_000, time.Now().UTC())
	require.NoError(t, err)
	assert.True(t, quote.FreeDelivery)
	assert.Zero(t, quote.Discount)
	assert.Equal(t, int64(2_000), quote.FinalAmount)
}

func TestEvaluateExpiredCode(t *testing.T) {
	now := time.Now().UTC()
	svc := newTestService(t, CreateInput{
		BusinessID: uuid.NewString(), Code: "OLD", Type: TypePercentage, Value: 10,
		StartDate: now.Add(-48 * time.Hour), EndDate: now.Add(-24 * time.Hour),
	})

	for _, amount := range []int64{1, 100, 1_000_000} {
		_, err := svc.Evaluate(context.Background(), "OLD", amount, now)
		assert.ErrorIs(t, err, ErrInvalidOrExpiredCode)
	}

	_, err := svc.Evaluate(context.Background(), "NEVERMADE", 100, now)
	assert.ErrorIs(t, err, ErrInvalidOrExpiredCode)
}

func TestEvaluateMinimumNotMet(t *testing.T) {
	start, end := window()
	svc := newTestService(t, CreateInput{
		BusinessID: uuid.NewString(), Code: "MIN1000", Type: TypePercentage,
		Value: 10, MinPurchase: 1_000, StartDate: start, EndDate: end,
	})

	_, err := svc.Evaluate(context.Background(), "MIN1000", 999, time.Now().UTC())
	assert.ErrorIs(t, err, ErrMinimumNotMet)

	_, err = svc.Evaluate(context.Background(), "MIN1000", 1_000, time.Now().UTC())
	assert.NoError(t, err)
}

func TestRedeemHonorsUsageLimit(t *testing.T) {
	start, end := window()
	svc := newTestService(t, CreateInput{
		BusinessID: uuid.NewString(), Code: "LIMIT3", Type: TypePercentage,
		Value: 10, UsageLimit: 3, StartDate: start, EndDate: end,
	})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, svc.Redeem(ctx, "LIMIT3"))
	}
	assert.ErrorIs(t, svc.Redeem(ctx, "LIMIT3"), ErrUsageLimitExceeded)

	_, err := svc.Evaluate(ctx, "LIMIT3", 100, time.Now().UTC())
	assert.ErrorIs(t, err, ErrUsageLimitExceeded)
}

func TestRedeemConcurrentNeverExceedsLimit(t *testing.T) {
	start, end := window()
	svc := newTestService(t, CreateInput{
		BusinessID: uuid.NewString(), Code: "RUSH", Type: TypePercentage,
		Value: 10, UsageLimit: 10, StartDate: start, EndDate: end,
	})
	ctx := context.Background()

	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded := 0
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := svc.Redeem(ctx, "RUSH"); err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 10, succeeded)
}
