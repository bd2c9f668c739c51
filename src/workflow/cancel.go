package workflow

import (
	"context"
	"log"
	"spruce/src/models"
	"spruce/src/types"
	"time"
)

// RefundBand maps a minimum lead time before the scheduled start to a
// refund percentage. Bands are checked in order; the first one whose
// MinLead fits wins.
type RefundBand struct {
	MinLead time.Duration
	Pct     int
}

// RefundPolicy decides the refund percentage for captured funds. The
// function of (actor, lead time, started) is pure so every outcome can
// be reproduced from the audit ledger.
type RefundPolicy struct {
	CustomerBands  []RefundBand
	NonCustomerPct int
}

func DefaultRefundPolicy() RefundPolicy {
	return RefundPolicy{
		CustomerBands: []RefundBand{
			{MinLead: 24 * time.Hour, Pct: 100},
			{MinLead: 2 * time.Hour, Pct: 50},
			{MinLead: 0, Pct: 0},
		},
		NonCustomerPct: 100,
	}
}

// Percent returns the refund percentage for a cancellation. A customer
// cancelling after the service actually started gets nothing regardless
// of bands; cancellations by the worker, the platform, or an admin
// always refund in full.
func (p RefundPolicy) Percent(actor types.Actor, leadTime time.Duration, started bool) int {
	if actor != types.ACTOR_CUSTOMER {
		return p.NonCustomerPct
	}
	if started {
		return 0
	}
	for _, band := range p.CustomerBands {
		if leadTime >= band.MinLead {
			return band.Pct
		}
	}
	return 0
}

// Cancel is the cancellation entry point. It is a plain transition to
// cancelled; the compensating payment action and the worker release run
// as that state's entry effects.
func (e *Engine) Cancel(ctx context.Context, bookingID uint, actor types.Actor, reason string) (*models.Booking, error) {
	b, _, err := e.ApplyTransition(ctx, bookingID, types.BOOKING_CANCELED, actor, reason)
	if err != nil {
		return nil, err
	}
	return b, nil
}

// compensatePayment undoes the money side of a cancelled booking. An
// uncaptured hold is released outright; captured funds are refunded per
// the policy table. There is nothing to do after a refund or when no
// payment was ever attached.
func (e *Engine) compensatePayment(ctx context.Context, b *models.Booking, actor types.Actor, reason string) {
	if b.PaymentIntentId == nil {
		return
	}
	switch b.PaymentStatus {
	case types.PAYMENT_REFUNDED, types.PAYMENT_CANCELED, types.PAYMENT_FAILED:
		return
	}
	intent := *b.PaymentIntentId

	if b.PaymentStatus != types.PAYMENT_CAPTURED {
		if err := e.gateway.Cancel(ctx, intent); err != nil {
			log.Printf("[Workflow] Error releasing hold for booking %d: %s\n", b.ID, err.Error())
			return
		}
		e.setPaymentStatus(ctx, b, types.PAYMENT_CANCELED)
		return
	}

	leadTime := b.ScheduledAt.Sub(e.now())
	pct := e.rules.Refunds.Percent(actor, leadTime, b.StartedAt != nil)
	amount := b.Total * int64(pct) / 100
	if amount <= 0 {
		log.Printf("[Workflow] No refund due for booking %d (actor %s, lead %s)\n", b.ID, actor, leadTime)
		return
	}
	if err := e.gateway.Refund(ctx, intent, amount, reason); err != nil {
		log.Printf("[Workflow] Error refunding booking %d: %s\n", b.ID, err.Error())
		return
	}
	e.setPaymentStatus(ctx, b, types.PAYMENT_REFUNDED)
}

func (e *Engine) setPaymentStatus(ctx context.Context, b *models.Booking, status types.PaymentStatus) {
	if err := e.store.UpdateBookingFields(ctx, b.ID, map[string]any{"payment_status": status}); err != nil {
		log.Printf("[Workflow] Error recording payment status %s on booking %d: %s\n", status, b.ID, err.Error())
		return
	}
	b.PaymentStatus = status
}
