// Package saga implements the booking creation flow as ordered forward
// steps with paired compensations. The payment processor and the
// database cannot share a transaction, so atomicity is approximated by
// running the steps strictly in sequence and unwinding completed ones in
// reverse when a later step fails.
package saga

import (
	"context"
	"fmt"
	"log"
	"spruce/src/faults"
	"spruce/src/lib"
	"spruce/src/models"
	"spruce/src/notify"
	"spruce/src/payments"
	"spruce/src/store"
	"spruce/src/types"
	"spruce/src/utils"
	"spruce/src/workflow"
	"time"

	"github.com/google/uuid"
)

// Coordinator sequences hold creation, booking persistence and payment
// confirmation. Only the final outcome reaches the caller; intermediate
// step failures are folded into the Transaction record.
type Coordinator struct {
	store    store.Store
	gateway  payments.Gateway
	engine   *workflow.Engine
	notifier notify.Notifier

	// AcquireOnce guards against double-submits of the same request.
	// nil disables the guard.
	AcquireOnce func(ctx context.Context, key string, ttlSeconds int) bool

	now func() time.Time
}

func NewCoordinator(st store.Store, gw payments.Gateway, engine *workflow.Engine, n notify.Notifier) *Coordinator {
	return &Coordinator{
		store:       st,
		gateway:     gw,
		engine:      engine,
		notifier:    n,
		AcquireOnce: lib.AcquireOnce,
		now:         time.Now,
	}
}

type CreateBookingInput struct {
	CustomerID   uint
	AddressID    uint
	ScheduledAt  time.Time
	DurationMins uint
	Subtotal     int64
	Tip          int64
	Notes        string
	// RequestID deduplicates retries of the same submission.
	RequestID string
}

type CreateBookingResult struct {
	Booking       *models.Booking
	TransactionID uuid.UUID
}

// CreateBookingWithPayment runs the creation saga. On success the
// booking sits in requested with a verified payment hold and the
// Transaction is completed. On a step failure every completed step is
// compensated in reverse order and the Transaction ends rolled_back; if
// a compensation itself fails the Transaction ends failed and the error
// is a RollbackFailure, which must reach an operator.
func (c *Coordinator) CreateBookingWithPayment(ctx context.Context, in CreateBookingInput) (*CreateBookingResult, error) {
	if err := c.validate(ctx, in); err != nil {
		return nil, err
	}
	if in.RequestID != "" && c.AcquireOnce != nil {
		key := fmt.Sprintf("saga:booking:%s", in.RequestID)
		if !c.AcquireOnce(ctx, key, 3600) {
			return nil, faults.ConflictError{Resource: "transaction", Msg: "request already being processed"}
		}
	}

	customer, err := c.store.GetUser(ctx, in.CustomerID)
	if err != nil {
		return nil, err
	}
	if !customer.Active {
		return nil, faults.ValidationError{Msg: "customer account is not active"}
	}

	breakdown := utils.ComputeBreakdown(in.Subtotal, in.Tip)
	tr := &models.Transaction{
		ID:           uuid.New(),
		Subtotal:     breakdown.Subtotal,
		PlatformFee:  breakdown.PlatformFee,
		WorkerAmount: breakdown.WorkerAmount,
		Tip:          breakdown.Tip,
		Total:        breakdown.Total,
		Status:       types.TRANSACTION_PENDING,
		Metadata:     types.JSONB{"request_id": in.RequestID},
	}
	if err := c.store.CreateTransaction(ctx, tr); err != nil {
		return nil, faults.PersistenceError{Op: "create transaction", Err: err}
	}

	// Step 1: place the authorization hold.
	holdReq := payments.HoldRequest{
		Amount:            breakdown.Total,
		PlatformFeeAmount: breakdown.PlatformFee,
		Metadata: map[string]string{
			"transaction_id": tr.ID.String(),
		},
	}
	if customer.StripeCustomerId != nil {
		holdReq.CustomerRef = *customer.StripeCustomerId
	}
	intentID, err := c.gateway.CreateHold(ctx, holdReq)
	if err != nil {
		c.finishRollback(ctx, tr.ID, err, nil)
		return nil, err
	}
	c.updateTransaction(ctx, tr.ID, map[string]any{
		"status":            types.TRANSACTION_PROCESSING,
		"payment_intent_id": intentID,
	})

	// Step 2: persist the booking.
	b := &models.Booking{
		CustomerID:      in.CustomerID,
		AddressID:       in.AddressID,
		Status:          types.BOOKING_REQUESTED,
		ScheduledAt:     in.ScheduledAt,
		DurationMins:    in.DurationMins,
		Subtotal:        breakdown.Subtotal,
		PlatformFee:     breakdown.PlatformFee,
		WorkerAmount:    breakdown.WorkerAmount,
		Tip:             breakdown.Tip,
		Total:           breakdown.Total,
		PaymentIntentId: &intentID,
		PaymentStatus:   types.PAYMENT_PENDING,
		TransactionID:   &tr.ID,
		Notes:           in.Notes,
	}
	if err := c.store.CreateBooking(ctx, b); err != nil {
		perr := faults.PersistenceError{Op: "create booking", Err: err}
		c.finishRollback(ctx, tr.ID, perr, []compensation{c.cancelHold(intentID)})
		return nil, perr
	}
	c.updateTransaction(ctx, tr.ID, map[string]any{"booking_id": b.ID})

	// Step 3: verify the hold before exposing the booking.
	if err := c.gateway.Confirm(ctx, intentID); err != nil {
		comps := []compensation{c.deleteBooking(b.ID), c.cancelHold(intentID)}
		if rbErr := c.finishRollback(ctx, tr.ID, err, comps); rbErr != nil {
			return nil, rbErr
		}
		return nil, err
	}

	now := c.now()
	c.updateTransaction(ctx, tr.ID, map[string]any{
		"status":       types.TRANSACTION_COMPLETED,
		"completed_at": now,
	})
	if err := c.store.UpdateBookingFields(ctx, b.ID, map[string]any{"payment_status": types.PAYMENT_SUCCEEDED}); err != nil {
		log.Printf("[Saga] Error recording payment status on booking %d: %s\n", b.ID, err.Error())
	}
	b.PaymentStatus = types.PAYMENT_SUCCEEDED

	c.armInitialWatchdog(ctx, b)
	if c.notifier != nil {
		c.notifier.Send(ctx, b.CustomerID, "booking.requested", types.JSONB{
			"booking_id": b.ID,
			"status":     string(types.BOOKING_REQUESTED),
		})
	}

	return &CreateBookingResult{Booking: b, TransactionID: tr.ID}, nil
}

func (c *Coordinator) validate(ctx context.Context, in CreateBookingInput) error {
	if in.Subtotal <= 0 {
		return faults.ValidationError{Msg: "subtotal must be positive"}
	}
	if in.Tip < 0 {
		return faults.ValidationError{Msg: "tip cannot be negative"}
	}
	if in.DurationMins == 0 {
		return faults.ValidationError{Msg: "duration is required"}
	}
	if in.ScheduledAt.Before(c.now()) {
		return faults.ValidationError{Msg: "scheduled time is in the past"}
	}
	addr, err := c.store.GetAddress(ctx, in.AddressID)
	if err != nil {
		return faults.ValidationError{Msg: "address not found", Err: err}
	}
	if addr.UserID != in.CustomerID {
		return faults.ValidationError{Msg: "address does not belong to customer"}
	}
	return nil
}

// compensation undoes one completed forward step.
type compensation struct {
	step string
	run  func(ctx context.Context) error
}

func (c *Coordinator) cancelHold(intentID string) compensation {
	return compensation{
		step: "cancel hold",
		run: func(ctx context.Context) error {
			return c.gateway.Cancel(ctx, intentID)
		},
	}
}

func (c *Coordinator) deleteBooking(id uint) compensation {
	return compensation{
		step: "delete booking",
		run: func(ctx context.Context) error {
			return c.store.DeleteBooking(ctx, id)
		},
	}
}

// finishRollback runs the compensations in order and settles the
// Transaction. All compensations succeeding yields rolled_back and a nil
// return; any compensation failing yields failed, an operator alert and
// a RollbackFailure.
func (c *Coordinator) finishRollback(ctx context.Context, trID uuid.UUID, cause error, comps []compensation) error {
	for _, comp := range comps {
		if err := comp.run(ctx); err != nil {
			rb := faults.RollbackFailure{Step: comp.step, Err: err}
			c.updateTransaction(ctx, trID, map[string]any{
				"status": types.TRANSACTION_FAILED,
				"error":  fmt.Sprintf("%s (cause: %s)", rb.Error(), cause.Error()),
			})
			c.alertOperator(ctx, trID, rb)
			return rb
		}
	}
	c.updateTransaction(ctx, trID, map[string]any{
		"status": types.TRANSACTION_ROLLED_BACK,
		"error":  cause.Error(),
	})
	return nil
}

func (c *Coordinator) updateTransaction(ctx context.Context, id uuid.UUID, fields map[string]any) {
	if err := c.store.UpdateTransaction(ctx, id, fields); err != nil {
		log.Printf("[Saga] Error updating transaction %s: %s\n", id, err.Error())
	}
}

func (c *Coordinator) alertOperator(ctx context.Context, trID uuid.UUID, rb faults.RollbackFailure) {
	log.Printf("[Saga] ALERT transaction %s requires manual intervention: %s\n", trID, rb.Error())
	if c.notifier == nil {
		return
	}
	c.notifier.Send(ctx, 0, "transaction.rollback_failed", types.JSONB{
		"transaction_id": trID.String(),
		"step":           rb.Step,
		"error":          rb.Error(),
	})
}

func (c *Coordinator) armInitialWatchdog(ctx context.Context, b *models.Booking) {
	if c.engine == nil {
		return
	}
	c.engine.ArmWatchdog(ctx, b, types.BOOKING_REQUESTED)
}
