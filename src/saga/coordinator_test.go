package saga

import (
	"context"
	"spruce/src/faults"
	"spruce/src/models"
	"spruce/src/notify"
	"spruce/src/payments"
	"spruce/src/store"
	"spruce/src/types"
	"spruce/src/workflow"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func newTestCoordinator(t *testing.T) (*Coordinator, *store.MemoryStore, *payments.FakeGateway, *notify.Recorder) {
	t.Helper()
	st := store.NewMemoryStore()
	gw := payments.NewFakeGateway()
	rec := notify.NewRecorder()
	engine := workflow.NewEngine(st, gw, rec, workflow.DefaultRules())
	engine.Schedule = nil
	c := NewCoordinator(st, gw, engine, rec)
	c.AcquireOnce = nil

	cust := "cus_test_1"
	st.AddUser(&models.User{ID: 1, Role: models.ROLE_CUSTOMER, Active: true, StripeCustomerId: &cust})
	st.AddAddress(&models.Address{ID: 1, UserID: 1, Line1: "12 Birch Lane", City: "Portland"})
	return c, st, gw, rec
}

func validInput() CreateBookingInput {
	return CreateBookingInput{
		CustomerID:   1,
		AddressID:    1,
		ScheduledAt:  time.Now().Add(72 * time.Hour),
		DurationMins: 180,
		Subtotal:     10000,
		Tip:          0,
		Notes:        "two bedrooms, one bath",
	}
}

func TestCreateBookingHappyPath(t *testing.T) {
	c, st, gw, rec := newTestCoordinator(t)
	ctx := context.Background()

	res, err := c.CreateBookingWithPayment(ctx, validInput())
	assert.NoError(t, err)
	assert.NotNil(t, res.Booking)
	assert.Equal(t, types.BOOKING_REQUESTED, res.Booking.Status)
	assert.Equal(t, types.PAYMENT_SUCCEEDED, res.Booking.PaymentStatus)
	assert.NotNil(t, res.Booking.PaymentIntentId)

	assert.Equal(t, int64(3000), res.Booking.PlatformFee)
	assert.Equal(t, int64(7000), res.Booking.WorkerAmount)
	assert.Equal(t, int64(10000), res.Booking.Total)

	assert.Equal(t, 1, gw.Holds)
	assert.Equal(t, 1, gw.Confirms)
	assert.Zero(t, gw.Cancels)

	tr, err := st.GetTransaction(ctx, res.TransactionID)
	assert.NoError(t, err)
	assert.Equal(t, types.TRANSACTION_COMPLETED, tr.Status)
	assert.NotNil(t, tr.CompletedAt)
	assert.NotNil(t, tr.BookingID)
	assert.Greater(t, rec.Count(), 0)
}

func TestHoldFailureLeavesNothingBehind(t *testing.T) {
	c, st, gw, _ := newTestCoordinator(t)
	gw.FailOn["hold"] = true
	ctx := context.Background()

	_, err := c.CreateBookingWithPayment(ctx, validInput())
	assert.True(t, faults.IsExternal(err))

	stale, _ := st.ListStaleTransactions(ctx, time.Now().Add(time.Minute))
	assert.Empty(t, stale)
}

func TestConfirmFailureCompensatesEverything(t *testing.T) {
	c, st, gw, _ := newTestCoordinator(t)
	gw.FailOn["confirm"] = true
	ctx := context.Background()

	res, err := c.CreateBookingWithPayment(ctx, validInput())
	assert.Error(t, err)
	assert.Nil(t, res)

	// The hold was released and the booking row removed.
	assert.Equal(t, 1, gw.Holds)
	assert.Equal(t, 1, gw.Cancels)

	stale, _ := st.ListStaleTransactions(ctx, time.Now().Add(time.Minute))
	assert.Empty(t, stale)
}

func TestCompensationFailureIsOperatorVisible(t *testing.T) {
	c, _, gw, rec := newTestCoordinator(t)
	gw.FailOn["confirm"] = true
	gw.FailOn["cancel"] = true
	ctx := context.Background()

	_, err := c.CreateBookingWithPayment(ctx, validInput())
	assert.True(t, faults.IsRollbackFailure(err))

	found := false
	for _, ev := range rec.Events {
		if ev.EventType == "transaction.rollback_failed" {
			found = true
		}
	}
	assert.True(t, found)
}

func TestValidationRejectsBeforeAnyGatewayCall(t *testing.T) {
	c, _, gw, _ := newTestCoordinator(t)
	ctx := context.Background()

	in := validInput()
	in.Subtotal = 0
	_, err := c.CreateBookingWithPayment(ctx, in)
	assert.True(t, faults.IsValidation(err))

	in = validInput()
	in.ScheduledAt = time.Now().Add(-time.Hour)
	_, err = c.CreateBookingWithPayment(ctx, in)
	assert.True(t, faults.IsValidation(err))

	in = validInput()
	in.AddressID = 99
	_, err = c.CreateBookingWithPayment(ctx, in)
	assert.True(t, faults.IsValidation(err))

	assert.Zero(t, gw.Holds)
}

func TestInactiveCustomerCannotCheckout(t *testing.T) {
	c, st, gw, _ := newTestCoordinator(t)
	st.AddUser(&models.User{ID: 7, Role: models.ROLE_CUSTOMER, Active: false})
	st.AddAddress(&models.Address{ID: 7, UserID: 7, Line1: "3 Fir Street", City: "Eugene"})

	in := validInput()
	in.CustomerID = 7
	in.AddressID = 7
	_, err := c.CreateBookingWithPayment(context.Background(), in)
	assert.True(t, faults.IsValidation(err))
	assert.Zero(t, gw.Holds)
}

func TestAddressOwnershipEnforced(t *testing.T) {
	c, st, gw, _ := newTestCoordinator(t)
	st.AddAddress(&models.Address{ID: 2, UserID: 42, Line1: "9 Elm Court", City: "Salem"})

	in := validInput()
	in.AddressID = 2
	_, err := c.CreateBookingWithPayment(context.Background(), in)
	assert.True(t, faults.IsValidation(err))
	assert.Zero(t, gw.Holds)
}

func TestSagaArmsRequestedWatchdog(t *testing.T) {
	c, st, _, _ := newTestCoordinator(t)
	armed := 0
	c.engine.Schedule = func(startDate time.Time, vars map[string]string, p types.JSONB) (*uuid.UUID, error) {
		armed++
		id := uuid.New()
		return &id, nil
	}

	_, err := c.CreateBookingWithPayment(context.Background(), validInput())
	assert.NoError(t, err)
	assert.Equal(t, 1, armed)
	assert.Len(t, st.JobTasks(), 1)
}
