package models

import (
	"spruce/src/types"
	"time"

	"github.com/google/uuid"
)

// Transaction is one saga instance of the booking+payment creation flow.
// At most one non-terminal Transaction exists per booking.
type Transaction struct {
	ID uuid.UUID `gorm:"primarykey;type:uuid;default:gen_random_uuid()" json:"id"`

	BookingID       *uint                   `json:"booking_id,omitempty"`
	PaymentIntentId *string                 `json:"payment_intent_id,omitempty"`
	Subtotal        int64                   `json:"subtotal"`
	PlatformFee     int64                   `json:"platform_fee"`
	WorkerAmount    int64                   `json:"worker_amount"`
	Tip             int64                   `json:"tip"`
	Total           int64                   `json:"total"`
	Status          types.TransactionStatus `gorm:"default:'pending'" json:"status"`
	Error           *string                 `json:"error,omitempty"`
	CompletedAt     *time.Time              `json:"completed_at,omitempty"`
	Metadata        types.JSONB             `gorm:"type:jsonb" json:"metadata,omitempty"`

	types.Timestamps

	Booking *Booking `gorm:"foreignKey:booking_id" json:"-"`
}
