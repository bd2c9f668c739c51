package workflow

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
	"time"

	"github.com/google/uuid"
)

// ScheduleFunc arms a durable one-shot schedule. lib.NewScheduledJob in
// production; tests swap in a stub.
type ScheduleFunc func(startDate time.Time, vars map[string]string, p types.JSONB) (*uuid.UUID, error)

// Engine owns every booking status write. Transitions commit as a
// conditional update on the status observed right before the write, so a
// concurrent transition makes the slower one fail with ConflictError
// instead of silently overwriting it.
type Engine struct {
	store    store.Store
	gateway  payments.Gateway
	notifier notify.Notifier
	rules    *Rules

	// Schedule may be nil, which disables watchdog scheduling.
	Schedule ScheduleFunc

	now func() time.Time
}

func NewEngine(st store.Store, gw payments.Gateway, n notify.Notifier, rules *Rules) *Engine {
	return &Engine{
		store:    st,
		gateway:  gw,
		notifier: n,
		rules:    rules,
		Schedule: lib.NewScheduledJob,
		now:      time.Now,
	}
}

func (e *Engine) Rules() *Rules {
	return e.rules
}

// ApplyTransition moves a booking to target on behalf of actor. The
// status column and the StatusUpdate ledger row commit in one database
// transaction; side effects and notifications run only after that
// commit. An edge missing from the table returns ValidationError with no
// mutation; losing the conditional write returns ConflictError.
func (e *Engine) ApplyTransition(ctx context.Context, bookingID uint, target types.BookingStatus, actor types.Actor, notes string) (*models.Booking, *models.StatusUpdate, error) {
	b, err := e.store.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, nil, err
	}
	from := b.Status
	if !e.rules.CanTransition(from, target) {
		return nil, nil, faults.ValidationError{Msg: fmt.Sprintf("transition from %s to %s is not allowed", from, target)}
	}
	if !e.rules.ActorAllowed(from, target, actor) {
		return nil, nil, faults.ValidationError{Msg: fmt.Sprintf("%s may not move a booking from %s to %s", actor, from, target)}
	}

	fields := e.entryFields(target)
	upd := &models.StatusUpdate{
		BookingID:  bookingID,
		FromStatus: from,
		ToStatus:   target,
		Actor:      actor,
		Notes:      notes,
	}
	if err := e.store.UpdateBookingStatus(ctx, bookingID, from, target, fields, upd); err != nil {
		return nil, nil, err
	}

	b, err = e.store.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, nil, err
	}

	e.runEntryEffects(ctx, b, target, actor, notes)
	e.fanOut(ctx, b, target)
	e.scheduleWatchdog(ctx, b, target)

	return b, upd, nil
}

// entryFields are the columns written alongside the status in the same
// conditional update.
func (e *Engine) entryFields(target types.BookingStatus) map[string]any {
	switch target {
	case types.BOOKING_IN_PROGRESS:
		return map[string]any{"started_at": e.now()}
	case types.BOOKING_COMPLETED:
		return map[string]any{"ended_at": e.now()}
	default:
		return nil
	}
}

// runEntryEffects executes the per-state side effects after the status
// write committed. Failures here never unwind the transition; money
// movement that fails is logged and left for the stuck-transaction
// monitor.
func (e *Engine) runEntryEffects(ctx context.Context, b *models.Booking, target types.BookingStatus, actor types.Actor, notes string) {
	switch target {
	case types.BOOKING_COMPLETED:
		e.capturePayment(ctx, b)
	case types.BOOKING_PAID:
		e.payoutWorker(ctx, b)
	case types.BOOKING_CANCELED:
		e.compensatePayment(ctx, b, actor, notes)
		e.releaseWorker(ctx, b)
	case types.BOOKING_NO_SHOW:
		e.releaseWorker(ctx, b)
	}
}

func (e *Engine) capturePayment(ctx context.Context, b *models.Booking) {
	if b.PaymentIntentId == nil {
		return
	}
	if b.PaymentStatus == types.PAYMENT_CAPTURED {
		return
	}
	if err := e.gateway.Capture(ctx, *b.PaymentIntentId); err != nil {
		log.Printf("[Workflow] Error capturing payment for booking %d: %s\n", b.ID, err.Error())
		return
	}
	if err := e.store.UpdateBookingFields(ctx, b.ID, map[string]any{"payment_status": types.PAYMENT_CAPTURED}); err != nil {
		log.Printf("[Workflow] Error recording capture for booking %d: %s\n", b.ID, err.Error())
		return
	}
	b.PaymentStatus = types.PAYMENT_CAPTURED
}

func (e *Engine) payoutWorker(ctx context.Context, b *models.Booking) {
	if b.WorkerID == nil {
		log.Printf("[Workflow] Booking %d reached paid with no worker assigned\n", b.ID)
		return
	}
	worker, err := e.store.GetUser(ctx, *b.WorkerID)
	if err != nil {
		log.Printf("[Workflow] Error loading worker %d: %s\n", *b.WorkerID, err.Error())
		return
	}
	if worker.StripeAccountId == nil {
		log.Printf("[Workflow] Worker %d has no payout account, skipping transfer\n", worker.ID)
		return
	}
	transferID, err := e.gateway.Transfer(ctx, *worker.StripeAccountId, b.WorkerAmount)
	if err != nil {
		log.Printf("[Workflow] Error paying out booking %d: %s\n", b.ID, err.Error())
		return
	}
	log.Printf("[Workflow] Transfer %s of %d created for booking %d\n", transferID, b.WorkerAmount, b.ID)
}

func (e *Engine) releaseWorker(ctx context.Context, b *models.Booking) {
	if b.WorkerID == nil {
		return
	}
	if err := e.store.UpdateBookingFields(ctx, b.ID, map[string]any{"worker_id": nil}); err != nil {
		log.Printf("[Workflow] Error releasing worker on booking %d: %s\n", b.ID, err.Error())
	}
}

// fanOut notifies the configured recipients for the state. Best effort,
// never blocks the transition result.
func (e *Engine) fanOut(ctx context.Context, b *models.Booking, target types.BookingStatus) {
	if e.notifier == nil {
		return
	}
	payload := types.JSONB{
		"booking_id": b.ID,
		"status":     string(target),
	}
	for _, party := range e.rules.Recipients[target] {
		switch party {
		case PARTY_CUSTOMER:
			e.notifier.Send(ctx, b.CustomerID, fmt.Sprintf("booking.%s", target), payload)
		case PARTY_WORKER:
			if b.WorkerID != nil {
				e.notifier.Send(ctx, *b.WorkerID, fmt.Sprintf("booking.%s", target), payload)
			}
		}
	}
}
