package main

import (
	"encoding/json"
	"io"
	"log"
	"net/http"
	"os"
	"spruce/src/db"
	"spruce/src/models"
	"spruce/src/types"

	"github.com/gin-gonic/gin"
	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/webhook"
	"gorm.io/gorm"
)

// stripeWebhookRoute keeps processor-side state mirrored into the
// database: payment intent outcomes onto bookings and connected-account
// onboarding onto workers.
func stripeWebhookRoute(g *gin.Engine) *gin.RouterGroup {
	apiv1 := apiv1Group(g)
	apiv1.POST("/webhook/stripe", func(ctx *gin.Context) {
		payload, err := io.ReadAll(ctx.Request.Body)
		if err != nil {
			log.Printf("Error reading request body: %s\n", err.Error())
			ctx.Status(http.StatusServiceUnavailable)
			return
		}
		whsecret := os.Getenv("STRIPE_WEBHOOK_SECRET")
		event, err := webhook.ConstructEvent(payload, ctx.GetHeader("Stripe-Signature"), whsecret)
		if err != nil {
			log.Printf("Error verifying webhook signature: %s\n", err.Error())
			ctx.Status(http.StatusBadRequest)
			return
		}
		log.Printf("[StripeEvent] %s\n", event.Type)
		switch event.Type {
		case "payment_intent.canceled":
			var pi stripe.PaymentIntent
			if err := json.Unmarshal(event.Data.Raw, &pi); err != nil {
				log.Printf("[Stripe] Error parsing PaymentIntent: %s\n", err.Error())
				break
			}
			updatePaymentStatusByIntent(pi.ID, types.PAYMENT_CANCELED)
		case "payment_intent.payment_failed":
			var pi stripe.PaymentIntent
			if err := json.Unmarshal(event.Data.Raw, &pi); err != nil {
				log.Printf("[Stripe] Error parsing PaymentIntent: %s\n", err.Error())
				break
			}
			updatePaymentStatusByIntent(pi.ID, types.PAYMENT_FAILED)
		case "payment_intent.amount_capturable_updated":
			var pi stripe.PaymentIntent
			if err := json.Unmarshal(event.Data.Raw, &pi); err != nil {
				log.Printf("[Stripe] Error parsing PaymentIntent: %s\n", err.Error())
				break
			}
			if pi.Status == stripe.PaymentIntentStatusRequiresCapture {
				updatePaymentStatusByIntent(pi.ID, types.PAYMENT_SUCCEEDED)
			}
		case "charge.refunded":
			var ch stripe.Charge
			if err := json.Unmarshal(event.Data.Raw, &ch); err != nil {
				log.Printf("[Stripe] Error parsing Charge: %s\n", err.Error())
				break
			}
			if ch.PaymentIntent != nil {
				updatePaymentStatusByIntent(ch.PaymentIntent.ID, types.PAYMENT_REFUNDED)
			}
		case "account.updated":
			var acc stripe.Account
			if err := json.Unmarshal(event.Data.Raw, &acc); err != nil {
				log.Printf("[Stripe] Error parsing Account: %s\n", err.Error())
				break
			}
			enabled := acc.PayoutsEnabled && acc.DetailsSubmitted && len(acc.Requirements.Errors) == 0
			db := db.GetDb()
			err := db.Transaction(func(tx *gorm.DB) error {
				return tx.
					Model(&models.User{}).
					Where("stripe_account_id = ?", acc.ID).
					Update("payouts_enabled", enabled).
					Error
			})
			if err != nil {
				log.Printf("[Stripe] Error updating payout state for account %s: %s\n", acc.ID, err.Error())
			}
		default:
			log.Printf("[StripeEvent] Unhandled event type: %s\n", event.Type)
		}
		ctx.Status(http.StatusOK)
	})
	return apiv1
}

func updatePaymentStatusByIntent(intentID string, status types.PaymentStatus) {
	db := db.GetDb()
	res := db.
		Model(&models.Booking{}).
		Where("payment_intent_id = ?", intentID).
		Update("payment_status", status)
	if res.Error != nil {
		log.Printf("[Stripe] Error updating payment status for intent %s: %s\n", intentID, res.Error.Error())
		return
	}
	if res.RowsAffected == 0 {
		log.Printf("[Stripe] No booking found for intent %s\n", intentID)
	}
}
