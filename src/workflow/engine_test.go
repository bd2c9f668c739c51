package workflow

import (
	"context"
	"spruce/src/faults"
	"spruce/src/models"
	"spruce/src/notify"
	"spruce/src/payments"
	"spruce/src/store"
	"spruce/src/types"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func newTestEngine(t *testing.T) (*Engine, *store.MemoryStore, *payments.FakeGateway, *notify.Recorder) {
	t.Helper()
	st := store.NewMemoryStore()
	gw := payments.NewFakeGateway()
	rec := notify.NewRecorder()
	e := NewEngine(st, gw, rec, DefaultRules())
	e.Schedule = nil
	return e, st, gw, rec
}

func seedBooking(t *testing.T, st *store.MemoryStore, status types.BookingStatus) *models.Booking {
	t.Helper()
	wid := uint(2)
	pid := "pi_test_1"
	b := &models.Booking{
		CustomerID:      1,
		WorkerID:        &wid,
		AddressID:       1,
		Status:          status,
		ScheduledAt:     time.Now().Add(48 * time.Hour),
		DurationMins:    120,
		Subtotal:        10000,
		PlatformFee:     3000,
		WorkerAmount:    7000,
		Total:           10000,
		PaymentIntentId: &pid,
		PaymentStatus:   types.PAYMENT_SUCCEEDED,
	}
	if err := st.CreateBooking(context.Background(), b); err != nil {
		t.Fatal(err)
	}
	acct := "acct_worker_2"
	st.AddUser(&models.User{ID: 2, Role: models.ROLE_WORKER, Active: true, StripeAccountId: &acct, PayoutsEnabled: true, BackgroundCheck: models.BACKGROUND_CHECK_CLEARED})
	st.AddUser(&models.User{ID: 1, Role: models.ROLE_CUSTOMER, Active: true})
	return b
}

func TestApplyTransitionWritesHistoryRow(t *testing.T) {
	e, st, _, rec := newTestEngine(t)
	b := seedBooking(t, st, types.BOOKING_ASSIGNED)
	ctx := context.Background()

	updated, upd, err := e.ApplyTransition(ctx, b.ID, types.BOOKING_EN_ROUTE, types.ACTOR_WORKER, "on my way")
	assert.NoError(t, err)
	assert.Equal(t, types.BOOKING_EN_ROUTE, updated.Status)
	assert.Equal(t, types.BOOKING_ASSIGNED, upd.FromStatus)
	assert.Equal(t, types.ACTOR_WORKER, upd.Actor)

	history, err := st.ListHistory(ctx, b.ID)
	assert.NoError(t, err)
	assert.Len(t, history, 1)
	assert.Equal(t, "on my way", history[0].Notes)
	assert.Greater(t, rec.Count(), 0)
}

func TestInvalidEdgeRejectedWithoutMutation(t *testing.T) {
	e, st, _, _ := newTestEngine(t)
	b := seedBooking(t, st, types.BOOKING_REQUESTED)
	ctx := context.Background()

	_, _, err := e.ApplyTransition(ctx, b.ID, types.BOOKING_COMPLETED, types.ACTOR_WORKER, "")
	assert.True(t, faults.IsValidation(err))

	got, _ := st.GetBooking(ctx, b.ID)
	assert.Equal(t, types.BOOKING_REQUESTED, got.Status)
	history, _ := st.ListHistory(ctx, b.ID)
	assert.Empty(t, history)
}

func TestActorNotAllowedOnEdge(t *testing.T) {
	e, st, _, _ := newTestEngine(t)
	b := seedBooking(t, st, types.BOOKING_ASSIGNED)

	_, _, err := e.ApplyTransition(context.Background(), b.ID, types.BOOKING_EN_ROUTE, types.ACTOR_CUSTOMER, "")
	assert.True(t, faults.IsValidation(err))
}

func TestInProgressRecordsStartTimestamp(t *testing.T) {
	e, st, _, _ := newTestEngine(t)
	b := seedBooking(t, st, types.BOOKING_ARRIVED)
	ctx := context.Background()

	updated, _, err := e.ApplyTransition(ctx, b.ID, types.BOOKING_IN_PROGRESS, types.ACTOR_WORKER, "")
	assert.NoError(t, err)
	assert.NotNil(t, updated.StartedAt)
}

func TestCompletedCapturesPayment(t *testing.T) {
	e, st, gw, _ := newTestEngine(t)
	b := seedBooking(t, st, types.BOOKING_IN_PROGRESS)
	ctx := context.Background()

	updated, _, err := e.ApplyTransition(ctx, b.ID, types.BOOKING_COMPLETED, types.ACTOR_WORKER, "all done")
	assert.NoError(t, err)
	assert.NotNil(t, updated.EndedAt)
	assert.Equal(t, 1, gw.Captures)

	got, _ := st.GetBooking(ctx, b.ID)
	assert.Equal(t, types.PAYMENT_CAPTURED, got.PaymentStatus)
}

func TestPaidTransfersWorkerAmount(t *testing.T) {
	e, st, gw, _ := newTestEngine(t)
	b := seedBooking(t, st, types.BOOKING_COMPLETED)

	_, _, err := e.ApplyTransition(context.Background(), b.ID, types.BOOKING_PAID, types.ACTOR_SYSTEM, "")
	assert.NoError(t, err)
	assert.Equal(t, 1, gw.Transfers)
}

func TestCaptureFailureDoesNotUnwindTransition(t *testing.T) {
	e, st, gw, _ := newTestEngine(t)
	gw.FailOn["capture"] = true
	b := seedBooking(t, st, types.BOOKING_IN_PROGRESS)
	ctx := context.Background()

	updated, _, err := e.ApplyTransition(ctx, b.ID, types.BOOKING_COMPLETED, types.ACTOR_WORKER, "")
	assert.NoError(t, err)
	assert.Equal(t, types.BOOKING_COMPLETED, updated.Status)
	assert.Equal(t, types.PAYMENT_SUCCEEDED, updated.PaymentStatus)
}

func TestConcurrentTransitionsCommitExactlyOnce(t *testing.T) {
	e, st, _, _ := newTestEngine(t)
	b := seedBooking(t, st, types.BOOKING_IN_PROGRESS)
	ctx := context.Background()

	const n = 16
	var wg sync.WaitGroup
	successes := make(chan struct{}, n)
	for range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, _, err := e.ApplyTransition(ctx, b.ID, types.BOOKING_COMPLETED, types.ACTOR_WORKER, ""); err == nil {
				successes <- struct{}{}
			}
		}()
	}
	wg.Wait()
	close(successes)

	assert.Len(t, successes, 1)
	history, _ := st.ListHistory(ctx, b.ID)
	assert.Len(t, history, 1)
}

func TestTransitionSchedulesWatchdog(t *testing.T) {
	e, st, _, _ := newTestEngine(t)
	var scheduledAt time.Time
	e.Schedule = func(startDate time.Time, vars map[string]string, p types.JSONB) (*uuid.UUID, error) {
		scheduledAt = startDate
		id := uuid.New()
		return &id, nil
	}
	b := seedBooking(t, st, types.BOOKING_ASSIGNED)

	before := time.Now()
	_, _, err := e.ApplyTransition(context.Background(), b.ID, types.BOOKING_EN_ROUTE, types.ACTOR_WORKER, "")
	assert.NoError(t, err)

	dwell := DefaultRules().Timeouts[types.BOOKING_EN_ROUTE].Dwell
	assert.WithinDuration(t, before.Add(dwell), scheduledAt, 5*time.Second)

	tasks := st.JobTasks()
	assert.Len(t, tasks, 1)
	assert.Equal(t, b.ID, tasks[0].BookingID)
	assert.Equal(t, "watchdog", tasks[0].JobType)
}

func TestTerminalStateHasNoWatchdog(t *testing.T) {
	e, st, _, _ := newTestEngine(t)
	calls := 0
	e.Schedule = func(startDate time.Time, vars map[string]string, p types.JSONB) (*uuid.UUID, error) {
		calls++
		id := uuid.New()
		return &id, nil
	}
	b := seedBooking(t, st, types.BOOKING_PAID)

	_, _, err := e.ApplyTransition(context.Background(), b.ID, types.BOOKING_REVIEWED, types.ACTOR_CUSTOMER, "")
	assert.NoError(t, err)
	assert.Zero(t, calls)
}
