package saga

import (
	"context"
	"spruce/src/types"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConfirmOnCompletedTransactionIsNoop(t *testing.T) {
	c, st, gw, _ := newTestCoordinator(t)
	ctx := context.Background()

	res, err := c.CreateBookingWithPayment(ctx, validInput())
	assert.NoError(t, err)
	assert.Equal(t, 1, gw.Confirms)

	tr, err := c.ConfirmTransaction(ctx, res.TransactionID)
	assert.NoError(t, err)
	assert.Equal(t, types.TRANSACTION_COMPLETED, tr.Status)

	// No duplicate charge and no duplicate booking came out of the
	// second invocation.
	assert.Equal(t, 1, gw.Confirms)
	assert.Equal(t, 1, gw.Holds)
	got, err := st.GetBooking(ctx, res.Booking.ID)
	assert.NoError(t, err)
	assert.Equal(t, res.Booking.ID, got.ID)
}

func TestConfirmRetryCompletesStalledTransaction(t *testing.T) {
	c, st, gw, _ := newTestCoordinator(t)
	gw.FailOn["confirm"] = true
	ctx := context.Background()

	_, err := c.CreateBookingWithPayment(ctx, validInput())
	assert.Error(t, err)

	// A second submission goes through once the processor recovers.
	gw.FailOn["confirm"] = false
	res, err := c.CreateBookingWithPayment(ctx, validInput())
	assert.NoError(t, err)

	tr, err := c.ConfirmTransaction(ctx, res.TransactionID)
	assert.NoError(t, err)
	assert.Equal(t, types.TRANSACTION_COMPLETED, tr.Status)

	got, _ := st.GetBooking(ctx, res.Booking.ID)
	assert.Equal(t, types.PAYMENT_SUCCEEDED, got.PaymentStatus)
}
