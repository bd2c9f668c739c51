package models

import (
	"spruce/src/types"
	"time"
)

const (
	ROLE_CUSTOMER = "customer"
	ROLE_WORKER   = "worker"
	ROLE_ADMIN    = "admin"
)

const BACKGROUND_CHECK_CLEARED = "cleared"

type User struct {
	ID            uint      `gorm:"primarykey" json:"id"`
	Name          string    `json:"name,omitempty"`
	Email         string    `json:"email,omitempty"`
	Role          string    `gorm:"default:'customer'" json:"role,omitempty"`
	UID           string    `json:"uid,omitempty"`
	Active        bool      `gorm:"default:true" json:"active"`
	EmailVerified bool      `json:"email_verified,omitempty"`
	VerifiedAt    time.Time `json:"verified_at,omitempty"`

	// Worker compliance and payout onboarding, checked before a claim.
	BackgroundCheck string  `json:"background_check,omitempty"`
	StripeAccountId *string `json:"-"`
	PayoutsEnabled  bool    `json:"payouts_enabled,omitempty"`

	StripeCustomerId *string `json:"-"`

	Bookings  []Booking `gorm:"foreignKey:customer_id" json:"bookings,omitempty"`
	Addresses []Address `gorm:"foreignKey:user_id" json:"addresses,omitempty"`

	types.Timestamps
}

// Claimable reports whether the worker passes the eligibility pre-checks
// for claiming an open job. Exclusivity is still decided solely by the
// conditional claim write.
func (u *User) Claimable() bool {
	return u.Role == ROLE_WORKER &&
		u.Active &&
		u.BackgroundCheck == BACKGROUND_CHECK_CLEARED &&
		u.StripeAccountId != nil &&
		u.PayoutsEnabled
}
