package models

import (
	"spruce/src/types"

	"github.com/google/uuid"
)

// Notification is the persisted copy of a dispatched event, backing the
// in-app inbox. Delivery itself is best effort and happens elsewhere.
type Notification struct {
	ID        uuid.UUID    `gorm:"primarykey;type:uuid;default:gen_random_uuid()" json:"id"`
	UserID    uint         `gorm:"index" json:"user_id"`
	EventType string       `json:"event_type"`
	Title     string       `json:"title"`
	Body      *types.JSONB `gorm:"type:jsonb" json:"body,omitempty"`
	Read      bool         `gorm:"default:false" json:"read"`

	types.Timestamps
}
