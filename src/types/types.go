package types

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"

	"gorm.io/gorm"
)

type Timestamps struct {
	CreatedAt time.Time      `gorm:"autoCreateTime:nano" json:"created_at,omitempty"`
	UpdatedAt time.Time      `gorm:"autoUpdateTime:nano" json:"updated_at,omitempty"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty,omitnil"`
}

type JSONB map[string]any

func (a JSONB) Value() (driver.Value, error) {
	valueString, err := json.Marshal(a)
	return string(valueString), err
}
func (a *JSONB) Scan(value any) error {
	b, ok := value.([]byte)
	if !ok {
		return errors.New("type assertion to []byte failed")
	}
	if err := json.Unmarshal(b, &a); err != nil {
		return err
	}
	return nil
}

// BookingStatus is the lifecycle state of a job. Transitions between
// statuses go through workflow.Engine only.
type BookingStatus string

const (
	BOOKING_REQUESTED   BookingStatus = "requested"
	BOOKING_CONFIRMED   BookingStatus = "confirmed"
	BOOKING_ASSIGNED    BookingStatus = "assigned"
	BOOKING_EN_ROUTE    BookingStatus = "en_route"
	BOOKING_ARRIVED     BookingStatus = "arrived"
	BOOKING_IN_PROGRESS BookingStatus = "in_progress"
	BOOKING_COMPLETED   BookingStatus = "completed"
	BOOKING_PAID        BookingStatus = "paid"
	BOOKING_REVIEWED    BookingStatus = "reviewed"
	BOOKING_CANCELED    BookingStatus = "cancelled"
	BOOKING_NO_SHOW     BookingStatus = "no_show"
	BOOKING_DISPUTED    BookingStatus = "disputed"
)

func AllBookingStatuses() []BookingStatus {
	return []BookingStatus{
		BOOKING_REQUESTED,
		BOOKING_CONFIRMED,
		BOOKING_ASSIGNED,
		BOOKING_EN_ROUTE,
		BOOKING_ARRIVED,
		BOOKING_IN_PROGRESS,
		BOOKING_COMPLETED,
		BOOKING_PAID,
		BOOKING_REVIEWED,
		BOOKING_CANCELED,
		BOOKING_NO_SHOW,
		BOOKING_DISPUTED,
	}
}

// Actor identifies who initiated a status change.
type Actor string

const (
	ACTOR_CUSTOMER Actor = "customer"
	ACTOR_WORKER   Actor = "worker"
	ACTOR_SYSTEM   Actor = "system"
	ACTOR_ADMIN    Actor = "admin"
)

type TransactionStatus string

const (
	TRANSACTION_PENDING     TransactionStatus = "pending"
	TRANSACTION_PROCESSING  TransactionStatus = "processing"
	TRANSACTION_COMPLETED   TransactionStatus = "completed"
	TRANSACTION_FAILED      TransactionStatus = "failed"
	TRANSACTION_ROLLED_BACK TransactionStatus = "rolled_back"
)

// IsTerminal reports whether no further state change is expected for the
// transaction. Non-terminal transactions older than the monitor threshold
// are flagged as stuck.
func (s TransactionStatus) IsTerminal() bool {
	return s == TRANSACTION_COMPLETED || s == TRANSACTION_FAILED || s == TRANSACTION_ROLLED_BACK
}

type PaymentStatus string

const (
	PAYMENT_PENDING   PaymentStatus = "pending"
	PAYMENT_SUCCEEDED PaymentStatus = "succeeded"
	PAYMENT_CAPTURED  PaymentStatus = "captured"
	PAYMENT_REFUNDED  PaymentStatus = "refunded"
	PAYMENT_CANCELED  PaymentStatus = "canceled"
	PAYMENT_FAILED    PaymentStatus = "failed"
)

type Environment string

const (
	Local      Environment = "local"
	Test       Environment = "test"
	Production Environment = "production"
)

type CreateBookingRequestBody struct {
	AddressID    uint   `json:"address_id" binding:"required"`
	ScheduledAt  string `json:"scheduled_at" binding:"required,bookabledate" time_format:"2006-01-02 15:04:05 -07:00"`
	DurationMins uint   `json:"duration_mins" binding:"required,min=30"`
	Subtotal     int64  `json:"subtotal" binding:"required,min=100"`
	Tip          int64  `json:"tip" binding:"omitempty,min=0"`
	Notes        string `json:"notes,omitempty"`
	RequestID    string `json:"request_id,omitempty"`
}

type AdvanceStatusRequestBody struct {
	Status string `json:"status" binding:"required"`
	Notes  string `json:"notes,omitempty"`
}

type CancelBookingRequestBody struct {
	Reason string `json:"reason" binding:"required"`
}

type RegisterUserRequestBody struct {
	Email string `json:"email" binding:"required"`
	Name  string `json:"name,omitempty"`
	Role  string `json:"role,omitempty"`
}

type SimpleRequestParams struct {
	ID uint `uri:"id" binding:"required"`
}

// Handler consumes a raw queue message body.
type Handler func(payload string)

type TimeInState struct {
	Status     BookingStatus `json:"status"`
	AvgSeconds float64       `json:"avg_seconds"`
	Samples    int64         `json:"samples"`
}
