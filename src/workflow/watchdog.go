package workflow

import (
	"context"
	"fmt"
	"log"
	"spruce/src/faults"
	"spruce/src/models"
	"spruce/src/types"
	"spruce/src/utils"

	"github.com/google/uuid"
)

const WATCHDOGS_TOPIC = "booking-watchdogs"

// scheduleWatchdog arms the dwell timeout for the state just entered.
// The JobTask row makes the timer durable: a restart re-arms pending
// rows from the table instead of trusting an in-memory timer.
func (e *Engine) scheduleWatchdog(ctx context.Context, b *models.Booking, entered types.BookingStatus) {
	if e.Schedule == nil {
		return
	}
	timeout, ok := e.rules.TimeoutFor(entered)
	if !ok {
		return
	}
	runsAt := e.now().Add(timeout.Dwell)
	payloadID := uuid.NewString()
	topic := utils.WithSuffix(WATCHDOGS_TOPIC)
	payload := types.JSONB{
		"payload_id": payloadID,
		"booking_id": b.ID,
		"expect":     string(entered),
		"fallback":   string(timeout.Fallback),
	}
	jt := models.JobTask{
		Name:      fmt.Sprintf("watchdog_%d_%s", b.ID, entered),
		JobType:   "watchdog",
		RunsAt:    runsAt,
		BookingID: b.ID,
		PayloadID: payloadID,
		Payload:   payload,
		Topic:     topic,
	}
	if err := e.store.CreateJobTask(ctx, &jt); err != nil {
		log.Printf("[Watchdog] Error persisting job task for booking %d: %s\n", b.ID, err.Error())
		return
	}
	vars := map[string]string{
		"name":     jt.Name,
		"topic":    topic,
		"clientId": "spruce-watchdogs",
	}
	if _, err := e.Schedule(runsAt, vars, payload); err != nil {
		log.Printf("[Watchdog] Error scheduling %s: %s\n", jt.Name, err.Error())
	}
}

// ArmWatchdog exposes the dwell timer for bookings created outside a
// transition, which is only the saga's initial requested state.
func (e *Engine) ArmWatchdog(ctx context.Context, b *models.Booking, entered types.BookingStatus) {
	e.scheduleWatchdog(ctx, b, entered)
}

// FireWatchdog runs when a dwell timeout elapses. It re-reads the
// current status and acts only if the booking is still where it was when
// the timer was armed. A ConflictError from the conditional write means
// someone else moved the booking first, which is a no-op here.
func (e *Engine) FireWatchdog(ctx context.Context, bookingID uint, expect, fallback types.BookingStatus) error {
	b, err := e.store.GetBooking(ctx, bookingID)
	if err != nil {
		return err
	}
	if b.Status != expect {
		log.Printf("[Watchdog] Booking %d already moved from %s to %s, ignoring\n", bookingID, expect, b.Status)
		return nil
	}
	notes := fmt.Sprintf("exceeded maximum dwell time in %s", expect)
	_, _, err = e.ApplyTransition(ctx, bookingID, fallback, types.ACTOR_SYSTEM, notes)
	if err != nil {
		if faults.IsConflict(err) {
			log.Printf("[Watchdog] Booking %d transitioned concurrently, ignoring\n", bookingID)
			return nil
		}
		return err
	}
	return nil
}

// Resume re-arms a pending job task after a restart. Overdue tasks fire
// immediately.
func (e *Engine) Resume(ctx context.Context, jt *models.JobTask) error {
	bookingID, expect, fallback, err := ParseWatchdogPayload(jt.Payload)
	if err != nil {
		return err
	}
	if jt.RunsAt.After(e.now()) {
		if e.Schedule == nil {
			return nil
		}
		vars := map[string]string{
			"name":     jt.Name,
			"topic":    jt.Topic,
			"clientId": "spruce-watchdogs",
		}
		_, err := e.Schedule(jt.RunsAt, vars, jt.Payload)
		return err
	}
	if err := e.FireWatchdog(ctx, bookingID, expect, fallback); err != nil {
		return err
	}
	return e.store.MarkJobTaskDone(ctx, jt.PayloadID)
}

// ParseWatchdogPayload decodes the scheduled payload. Numbers arrive as
// float64 after a trip through JSON.
func ParseWatchdogPayload(p types.JSONB) (uint, types.BookingStatus, types.BookingStatus, error) {
	var bookingID uint
	switch v := p["booking_id"].(type) {
	case float64:
		bookingID = uint(v)
	case uint:
		bookingID = v
	case int:
		bookingID = uint(v)
	default:
		return 0, "", "", fmt.Errorf("watchdog payload missing booking_id")
	}
	expect, ok := p["expect"].(string)
	if !ok {
		return 0, "", "", fmt.Errorf("watchdog payload missing expect")
	}
	fallback, ok := p["fallback"].(string)
	if !ok {
		return 0, "", "", fmt.Errorf("watchdog payload missing fallback")
	}
	return bookingID, types.BookingStatus(expect), types.BookingStatus(fallback), nil
}
