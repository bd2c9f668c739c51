package utils

import (
	"fmt"
	"os"
	"spruce/src/config"
)

// Breakdown is the monetary split of a booking, all amounts in cents.
// The platform keeps PLATFORM_FEE_PCT of the subtotal; tips pass through
// to the worker untouched.
type Breakdown struct {
	Subtotal     int64 `json:"subtotal"`
	PlatformFee  int64 `json:"platform_fee"`
	WorkerAmount int64 `json:"worker_amount"`
	Tip          int64 `json:"tip"`
	Total        int64 `json:"total"`
}

func ComputeBreakdown(subtotal, tip int64) Breakdown {
	fee := subtotal * config.PLATFORM_FEE_PCT / 100
	return Breakdown{
		Subtotal:     subtotal,
		PlatformFee:  fee,
		WorkerAmount: subtotal - fee + tip,
		Tip:          tip,
		Total:        subtotal + tip,
	}
}

// WithSuffix appends the environment name to a queue or topic so that
// staging and production infrastructure stay separated.
func WithSuffix(name string) string {
	env := os.Getenv("API_ENV")
	if env == "" {
		return name
	}
	return fmt.Sprintf("%s_%s", name, env)
}
