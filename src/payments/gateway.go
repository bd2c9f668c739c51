// Package payments wraps the payment processor behind a small port. The
// core depends only on identifiers and success/failure; no processor
// detail leaks past this package.
package payments

import "context"

type HoldRequest struct {
	// Amounts in cents.
	Amount            int64
	PlatformFeeAmount int64
	// PayoutDestination is the worker's connected account.
	PayoutDestination string
	CustomerRef       string
	Metadata          map[string]string
}

// Gateway is the payment port. CreateHold places an authorization hold;
// Confirm verifies the hold is in place; Capture collects the held funds
// when the job completes; Cancel releases an uncaptured hold; Refund
// returns captured funds; Transfer pays the worker out.
type Gateway interface {
	CreateHold(ctx context.Context, req HoldRequest) (intentID string, err error)
	Confirm(ctx context.Context, intentID string) error
	Capture(ctx context.Context, intentID string) error
	Cancel(ctx context.Context, intentID string) error
	Refund(ctx context.Context, intentID string, amount int64, reason string) error
	Transfer(ctx context.Context, destination string, amount int64) (string, error)
}
