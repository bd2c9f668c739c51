// Package store is the persistence boundary for the booking core. The
// claim and every status transition are single conditional writes here;
// callers never read-then-write those columns.
package store

import (
	"context"
	"spruce/src/models"
	"spruce/src/types"
	"time"

	"github.com/google/uuid"
)

type Store interface {
	GetBooking(ctx context.Context, id uint) (*models.Booking, error)
	CreateBooking(ctx context.Context, b *models.Booking) error
	DeleteBooking(ctx context.Context, id uint) error

	// UpdateBookingStatus performs the conditional status write: the
	// booking moves from expect to next and the StatusUpdate row is
	// inserted in the same database transaction the mutation commits
	// in. A precondition miss returns faults.ConflictError and writes
	// nothing.
	UpdateBookingStatus(ctx context.Context, id uint, expect, next types.BookingStatus, fields map[string]any, upd *models.StatusUpdate) error

	// UpdateBookingFields writes non-status columns (payment state,
	// timestamps, clearing worker_id on release). Status must not
	// appear here; worker assignment only through AtomicClaim.
	UpdateBookingFields(ctx context.Context, id uint, fields map[string]any) error

	// AtomicClaim grants the worker exclusive assignment iff no worker
	// holds the booking yet. Returns false with no side effects when
	// the claim was lost.
	AtomicClaim(ctx context.Context, bookingID, workerID uint) (bool, error)

	ListHistory(ctx context.Context, bookingID uint) ([]models.StatusUpdate, error)

	CreateTransaction(ctx context.Context, t *models.Transaction) error
	UpdateTransaction(ctx context.Context, id uuid.UUID, fields map[string]any) error
	GetTransaction(ctx context.Context, id uuid.UUID) (*models.Transaction, error)
	ListStaleTransactions(ctx context.Context, olderThan time.Time) ([]models.Transaction, error)

	GetUser(ctx context.Context, id uint) (*models.User, error)
	GetAddress(ctx context.Context, id uint) (*models.Address, error)
	// HasOverlap reports whether the worker holds another active booking
	// inside the window. The booking identified by excludeID is skipped
	// so a claim never collides with its own target.
	HasOverlap(ctx context.Context, workerID uint, start, end time.Time, excludeID uint) (bool, error)

	CreateJobTask(ctx context.Context, jt *models.JobTask) error
	MarkJobTaskDone(ctx context.Context, payloadID string) error
}
