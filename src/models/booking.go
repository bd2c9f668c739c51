package models

import (
	"spruce/src/types"
	"time"

	"github.com/google/uuid"
)

// Booking is a single scheduled service job. Status and WorkerID are
// mutated only through workflow.Engine (ClaimJob included); everything
// else may write the remaining columns freely.
type Booking struct {
	ID         uint                `gorm:"primarykey" json:"id"`
	CustomerID uint                `json:"customer_id"`
	WorkerID   *uint               `json:"worker_id,omitempty"`
	AddressID  uint                `json:"address_id,omitempty"`
	Status     types.BookingStatus `gorm:"default:'requested'" json:"status"`

	ScheduledAt  time.Time `json:"scheduled_at"`
	DurationMins uint      `json:"duration_mins"`

	// Monetary breakdown in cents.
	Subtotal     int64 `json:"subtotal"`
	PlatformFee  int64 `json:"platform_fee"`
	WorkerAmount int64 `json:"worker_amount"`
	Tip          int64 `json:"tip"`
	Total        int64 `json:"total"`

	PaymentIntentId *string             `json:"payment_intent_id,omitempty"`
	PaymentStatus   types.PaymentStatus `gorm:"default:'pending'" json:"payment_status"`
	TransactionID   *uuid.UUID          `json:"transaction_id,omitempty"`

	Notes     string     `json:"notes,omitempty"`
	StartedAt *time.Time `json:"started_at,omitempty"`
	EndedAt   *time.Time `json:"ended_at,omitempty"`

	Customer      *User          `gorm:"foreignKey:customer_id" json:"customer,omitempty"`
	Worker        *User          `gorm:"foreignKey:worker_id" json:"worker,omitempty"`
	Address       *Address       `gorm:"foreignKey:address_id" json:"address,omitempty"`
	StatusUpdates []StatusUpdate `gorm:"foreignKey:booking_id" json:"status_updates,omitempty"`

	types.Timestamps
}

// WindowEnd is the scheduled end of the service window.
func (b *Booking) WindowEnd() time.Time {
	return b.ScheduledAt.Add(time.Duration(b.DurationMins) * time.Minute)
}
