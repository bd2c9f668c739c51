package workflow

import (
	"context"
	"spruce/src/faults"
	"spruce/src/models"
	"spruce/src/store"
	"spruce/src/types"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func seedOpenJob(t *testing.T, st *store.MemoryStore) *models.Booking {
	t.Helper()
	b := &models.Booking{
		CustomerID:   1,
		AddressID:    1,
		Status:       types.BOOKING_REQUESTED,
		ScheduledAt:  time.Now().Add(24 * time.Hour),
		DurationMins: 120,
		Subtotal:     10000,
		Total:        10000,
	}
	if err := st.CreateBooking(context.Background(), b); err != nil {
		t.Fatal(err)
	}
	return b
}

func addWorker(st *store.MemoryStore, id uint, claimable bool) {
	acct := "acct_test"
	u := &models.User{ID: id, Role: models.ROLE_WORKER, Active: true}
	if claimable {
		u.BackgroundCheck = models.BACKGROUND_CHECK_CLEARED
		u.StripeAccountId = &acct
		u.PayoutsEnabled = true
	}
	st.AddUser(u)
}

func TestClaimAssignsWorkerAndConfirms(t *testing.T) {
	e, st, _, rec := newTestEngine(t)
	b := seedOpenJob(t, st)
	addWorker(st, 5, true)
	ctx := context.Background()

	claimed, err := e.ClaimJob(ctx, b.ID, 5)
	assert.NoError(t, err)
	assert.True(t, claimed)

	got, _ := st.GetBooking(ctx, b.ID)
	assert.Equal(t, types.BOOKING_CONFIRMED, got.Status)
	assert.NotNil(t, got.WorkerID)
	assert.Equal(t, uint(5), *got.WorkerID)

	history, _ := st.ListHistory(ctx, b.ID)
	assert.Len(t, history, 1)
	assert.Greater(t, rec.Count(), 0)
}

func TestClaimLostReturnsFalseWithoutSideEffects(t *testing.T) {
	e, st, _, _ := newTestEngine(t)
	b := seedOpenJob(t, st)
	addWorker(st, 5, true)
	addWorker(st, 6, true)
	ctx := context.Background()

	first, err := e.ClaimJob(ctx, b.ID, 5)
	assert.NoError(t, err)
	assert.True(t, first)

	second, err := e.ClaimJob(ctx, b.ID, 6)
	assert.NoError(t, err)
	assert.False(t, second)

	got, _ := st.GetBooking(ctx, b.ID)
	assert.Equal(t, uint(5), *got.WorkerID)
	history, _ := st.ListHistory(ctx, b.ID)
	assert.Len(t, history, 1)
}

func TestClaimRejectsIneligibleWorker(t *testing.T) {
	e, st, _, _ := newTestEngine(t)
	b := seedOpenJob(t, st)
	addWorker(st, 5, false)

	claimed, err := e.ClaimJob(context.Background(), b.ID, 5)
	assert.False(t, claimed)
	assert.True(t, faults.IsValidation(err))
}

func TestClaimRejectsOverlappingWindow(t *testing.T) {
	e, st, _, _ := newTestEngine(t)
	b := seedOpenJob(t, st)
	addWorker(st, 5, true)
	ctx := context.Background()

	// The worker already holds a confirmed job over the same window.
	wid := uint(5)
	other := &models.Booking{
		CustomerID:   2,
		AddressID:    2,
		WorkerID:     &wid,
		Status:       types.BOOKING_CONFIRMED,
		ScheduledAt:  b.ScheduledAt.Add(30 * time.Minute),
		DurationMins: 60,
	}
	assert.NoError(t, st.CreateBooking(ctx, other))

	claimed, err := e.ClaimJob(ctx, b.ID, 5)
	assert.False(t, claimed)
	assert.True(t, faults.IsValidation(err))
}

func TestRepeatClaimBySameWorkerIsLostNotRejected(t *testing.T) {
	e, st, _, _ := newTestEngine(t)
	b := seedOpenJob(t, st)
	addWorker(st, 5, true)
	ctx := context.Background()

	first, err := e.ClaimJob(ctx, b.ID, 5)
	assert.NoError(t, err)
	assert.True(t, first)

	// The booking the worker just won must not count against their own
	// schedule on a retry; the claim is simply lost.
	second, err := e.ClaimJob(ctx, b.ID, 5)
	assert.NoError(t, err)
	assert.False(t, second)

	history, _ := st.ListHistory(ctx, b.ID)
	assert.Len(t, history, 1)
}

func TestConcurrentClaimsExactlyOneWinner(t *testing.T) {
	e, st, _, _ := newTestEngine(t)
	b := seedOpenJob(t, st)
	const n = 24
	for i := range n {
		addWorker(st, uint(10+i), true)
	}
	ctx := context.Background()

	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := range n {
		wg.Add(1)
		go func(workerID uint) {
			defer wg.Done()
			claimed, err := e.ClaimJob(ctx, b.ID, workerID)
			assert.NoError(t, err)
			if claimed {
				wins.Add(1)
			}
		}(uint(10 + i))
	}
	wg.Wait()

	assert.Equal(t, int32(1), wins.Load())
	got, _ := st.GetBooking(ctx, b.ID)
	assert.Equal(t, types.BOOKING_CONFIRMED, got.Status)
	history, _ := st.ListHistory(ctx, b.ID)
	assert.Len(t, history, 1)
}
