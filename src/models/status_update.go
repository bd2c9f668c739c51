package models

import (
	"spruce/src/types"
	"time"

	"github.com/google/uuid"
)

// StatusUpdate is one row of the append-only audit ledger. Rows are
// inserted in the same database transaction as the status write and are
// never updated or deleted.
type StatusUpdate struct {
	ID         uuid.UUID           `gorm:"primarykey;type:uuid;default:gen_random_uuid()" json:"id"`
	BookingID  uint                `gorm:"index" json:"booking_id"`
	FromStatus types.BookingStatus `json:"from_status"`
	ToStatus   types.BookingStatus `json:"to_status"`
	Actor      types.Actor         `json:"actor"`
	Notes      string              `json:"notes,omitempty"`
	Metadata   types.JSONB         `gorm:"type:jsonb" json:"metadata,omitempty"`
	CreatedAt  time.Time           `gorm:"autoCreateTime:nano" json:"created_at"`
}
