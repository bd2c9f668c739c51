package workflow

import (
	"context"
	"log"
	"spruce/src/faults"
	"spruce/src/types"
)

// ClaimJob grants a worker exclusive assignment on an open booking.
// Eligibility and schedule-overlap checks are fast-fail pre-checks only;
// exclusivity comes solely from the store's atomic conditional write, so
// two workers racing here can never both win. Losing the race returns
// false with no side effects, which callers surface as "job no longer
// available" rather than an error.
func (e *Engine) ClaimJob(ctx context.Context, bookingID, workerID uint) (bool, error) {
	worker, err := e.store.GetUser(ctx, workerID)
	if err != nil {
		return false, err
	}
	if !worker.Claimable() {
		return false, faults.ValidationError{Msg: "worker is not eligible to claim jobs"}
	}
	b, err := e.store.GetBooking(ctx, bookingID)
	if err != nil {
		return false, err
	}
	overlaps, err := e.store.HasOverlap(ctx, workerID, b.ScheduledAt, b.WindowEnd(), b.ID)
	if err != nil {
		return false, err
	}
	if overlaps {
		return false, faults.ValidationError{Msg: "worker already has a booking in this window"}
	}

	claimed, err := e.store.AtomicClaim(ctx, bookingID, workerID)
	if err != nil {
		return false, err
	}
	if !claimed {
		return false, nil
	}

	b, err = e.store.GetBooking(ctx, bookingID)
	if err != nil {
		log.Printf("[Claim] Booking %d claimed but reload failed: %s\n", bookingID, err.Error())
		return true, nil
	}
	e.fanOut(ctx, b, types.BOOKING_CONFIRMED)
	e.scheduleWatchdog(ctx, b, types.BOOKING_CONFIRMED)
	return true, nil
}
