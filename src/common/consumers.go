// Package common hosts the background plumbing around the booking core:
// the consumers that deliver watchdog firings back into the engine and
// the recurring monitor for stuck transactions.
package common

import (
	"context"
	"log"
	"spruce/src/config"
	"spruce/src/lib"
	awslib "spruce/src/lib/aws"
	"spruce/src/store"
	"spruce/src/types"
	"spruce/src/utils"
	"spruce/src/workflow"

	"github.com/tidwall/gjson"
)

// StartConsumers wires the watchdog delivery channels to the engine. In
// production EventBridge publishes to SNS which fans into SQS; locally
// the gocron adapter produces straight to Kafka. Both carry the same
// JSON payload.
func StartConsumers(engine *workflow.Engine, st store.Store) {
	topic := utils.WithSuffix(workflow.WATCHDOGS_TOPIC)
	env := types.Environment(config.API_ENV)

	if env == types.Production || env == types.Test {
		lib.SNSSubscribeQueue(topic, "BookingWatchdogs")
		wd := awslib.NewSQSConsumer("BookingWatchdogs", watchdogHandler(engine, st))
		wd.Listen()
		dlq := awslib.NewSQSConsumer("BookingWatchdogsDLQ", func(payload string) {
			log.Printf("[DLQ] watchdog message parked: %s\n", payload)
		})
		dlq.Listen()
		return
	}

	go lib.KafkaCreateTopics(topic)
	lib.KafkaConsumeTopic("spruce-watchdogs", topic, watchdogHandler(engine, st))
}

// watchdogHandler parses one delivered firing and hands it to the
// engine. The engine re-reads current status itself, so a stale or
// duplicate delivery is harmless.
func watchdogHandler(engine *workflow.Engine, st store.Store) types.Handler {
	return func(payload string) {
		ctx := context.Background()

		// SNS wraps the payload in an envelope; raw Kafka messages are
		// the payload itself.
		body := payload
		if msg := gjson.Get(payload, "Message"); msg.Exists() {
			body = msg.String()
		}

		bookingID := gjson.Get(body, "booking_id")
		expect := gjson.Get(body, "expect")
		fallback := gjson.Get(body, "fallback")
		payloadID := gjson.Get(body, "payload_id")
		if !bookingID.Exists() || !expect.Exists() || !fallback.Exists() {
			log.Printf("[Watchdogs] Discarding malformed message: %s\n", payload)
			return
		}

		err := engine.FireWatchdog(
			ctx,
			uint(bookingID.Uint()),
			types.BookingStatus(expect.String()),
			types.BookingStatus(fallback.String()),
		)
		if err != nil {
			log.Printf("[Watchdogs] Error firing watchdog for booking %d: %s\n", bookingID.Uint(), err.Error())
			return
		}
		if payloadID.Exists() {
			if err := st.MarkJobTaskDone(ctx, payloadID.String()); err != nil {
				log.Printf("[Watchdogs] Error marking job task %s done: %s\n", payloadID.String(), err.Error())
			}
		}
	}
}
