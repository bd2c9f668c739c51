package payments

import (
	"context"
	"fmt"
	"log"
	"spruce/src/faults"
	"spruce/src/lib"

	"github.com/stripe/stripe-go/v82"
)

// StripeGateway authorizes with manual-capture PaymentIntents so funds
// stay on hold until the job completes.
type StripeGateway struct{}

func NewStripeGateway() *StripeGateway {
	return &StripeGateway{}
}

func (g *StripeGateway) CreateHold(ctx context.Context, req HoldRequest) (string, error) {
	sc := lib.GetStripeClient()
	params := &stripe.PaymentIntentCreateParams{
		Amount:               stripe.Int64(req.Amount),
		Currency:             stripe.String(string(stripe.CurrencyUSD)),
		CaptureMethod:        stripe.String(string(stripe.PaymentIntentCaptureMethodManual)),
		ApplicationFeeAmount: stripe.Int64(req.PlatformFeeAmount),
	}
	// A hold is placed before any worker claims the job, so the payout
	// destination is usually not known yet.
	if req.PayoutDestination != "" {
		params.TransferData = &stripe.PaymentIntentCreateTransferDataParams{
			Destination: stripe.String(req.PayoutDestination),
		}
	}
	if req.CustomerRef != "" {
		params.Customer = stripe.String(req.CustomerRef)
	}
	for k, v := range req.Metadata {
		params.AddMetadata(k, v)
	}
	pi, err := sc.V1PaymentIntents.Create(ctx, params)
	if err != nil {
		log.Printf("[Stripe] Error creating PaymentIntent: %s\n", err.Error())
		return "", faults.ExternalServiceError{Service: "stripe", Err: err}
	}
	return pi.ID, nil
}

func (g *StripeGateway) Confirm(ctx context.Context, intentID string) error {
	sc := lib.GetStripeClient()
	pi, err := sc.V1PaymentIntents.Retrieve(ctx, intentID, nil)
	if err != nil {
		log.Printf("[Stripe] Error retrieving PaymentIntent %s: %s\n", intentID, err.Error())
		return faults.ExternalServiceError{Service: "stripe", Err: err}
	}
	switch pi.Status {
	case stripe.PaymentIntentStatusRequiresCapture, stripe.PaymentIntentStatusSucceeded:
		return nil
	default:
		err := fmt.Errorf("payment hold not in place: intent %s is %s", intentID, pi.Status)
		return faults.ExternalServiceError{Service: "stripe", Err: err}
	}
}

func (g *StripeGateway) Capture(ctx context.Context, intentID string) error {
	sc := lib.GetStripeClient()
	_, err := sc.V1PaymentIntents.Capture(ctx, intentID, nil)
	if err != nil {
		log.Printf("[Stripe] Error capturing PaymentIntent %s: %s\n", intentID, err.Error())
		return faults.ExternalServiceError{Service: "stripe", Err: err}
	}
	return nil
}

func (g *StripeGateway) Cancel(ctx context.Context, intentID string) error {
	sc := lib.GetStripeClient()
	_, err := sc.V1PaymentIntents.Cancel(ctx, intentID, nil)
	if err != nil {
		log.Printf("[Stripe] Error canceling PaymentIntent %s: %s\n", intentID, err.Error())
		return faults.ExternalServiceError{Service: "stripe", Err: err}
	}
	return nil
}

func (g *StripeGateway) Refund(ctx context.Context, intentID string, amount int64, reason string) error {
	sc := lib.GetStripeClient()
	params := &stripe.RefundCreateParams{
		PaymentIntent: stripe.String(intentID),
		Amount:        stripe.Int64(amount),
	}
	params.AddMetadata("reason", reason)
	_, err := sc.V1Refunds.Create(ctx, params)
	if err != nil {
		log.Printf("[Stripe] Error refunding PaymentIntent %s: %s\n", intentID, err.Error())
		return faults.ExternalServiceError{Service: "stripe", Err: err}
	}
	return nil
}

func (g *StripeGateway) Transfer(ctx context.Context, destination string, amount int64) (string, error) {
	sc := lib.GetStripeClient()
	params := &stripe.TransferCreateParams{
		Amount:      stripe.Int64(amount),
		Currency:    stripe.String(string(stripe.CurrencyUSD)),
		Destination: stripe.String(destination),
	}
	tr, err := sc.V1Transfers.Create(ctx, params)
	if err != nil {
		log.Printf("[Stripe] Error creating Transfer to %s: %s\n", destination, err.Error())
		return "", faults.ExternalServiceError{Service: "stripe", Err: err}
	}
	return tr.ID, nil
}
