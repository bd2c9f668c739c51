package saga

import (
	"context"
	"fmt"
	"log"
	"spruce/src/faults"
	"spruce/src/models"
	"spruce/src/types"

	"github.com/google/uuid"
)

// ConfirmTransaction retries the confirm step of a saga that stalled in
// processing, typically driven by a processor webhook or an operator.
// Terminal transactions are left untouched, so re-invoking on a
// completed saga creates no duplicate booking and no duplicate charge.
func (c *Coordinator) ConfirmTransaction(ctx context.Context, id uuid.UUID) (*models.Transaction, error) {
	tr, err := c.store.GetTransaction(ctx, id)
	if err != nil {
		return nil, err
	}
	if tr.Status.IsTerminal() {
		log.Printf("[Saga] Transaction %s already %s, nothing to do\n", id, tr.Status)
		return tr, nil
	}
	if tr.PaymentIntentId == nil {
		return nil, faults.ValidationError{Msg: "transaction has no payment intent"}
	}
	if c.AcquireOnce != nil {
		key := fmt.Sprintf("saga:confirm:%s", id)
		if !c.AcquireOnce(ctx, key, 300) {
			return tr, nil
		}
	}
	intentID := *tr.PaymentIntentId

	if err := c.gateway.Confirm(ctx, intentID); err != nil {
		comps := []compensation{c.cancelHold(intentID)}
		if tr.BookingID != nil {
			comps = append([]compensation{c.deleteBooking(*tr.BookingID)}, comps...)
		}
		if rbErr := c.finishRollback(ctx, id, err, comps); rbErr != nil {
			return nil, rbErr
		}
		return nil, err
	}

	now := c.now()
	c.updateTransaction(ctx, id, map[string]any{
		"status":       types.TRANSACTION_COMPLETED,
		"completed_at": now,
	})
	if tr.BookingID != nil {
		if err := c.store.UpdateBookingFields(ctx, *tr.BookingID, map[string]any{"payment_status": types.PAYMENT_SUCCEEDED}); err != nil {
			log.Printf("[Saga] Error recording payment status on booking %d: %s\n", *tr.BookingID, err.Error())
		}
	}
	return c.store.GetTransaction(ctx, id)
}
