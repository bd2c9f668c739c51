package models

import (
	"spruce/src/types"
	"time"

	"github.com/google/uuid"
)

// JobTask is the durable record behind every scheduled watchdog. The row
// outlives the process; boot.RecoverQueuedJobs re-arms pending rows after
// a restart so dwell timeouts are never lost to a crash.
type JobTask struct {
	ID uuid.UUID `gorm:"primarykey;type:uuid;default:gen_random_uuid()" json:"id"`

	Name      string      `json:"-"`
	JobType   string      `json:"-"`
	RunsAt    time.Time   `json:"-"`
	BookingID uint        `gorm:"index" json:"-"`
	PayloadID string      `json:"-"`
	Payload   types.JSONB `gorm:"type:jsonb" json:"-"`
	Status    string      `gorm:"default:'pending'" json:"-"`
	Topic     string      `json:"-"`
}
