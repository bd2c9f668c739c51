package store

import (
	"context"
	"errors"
	"log"
	"spruce/src/faults"
	"spruce/src/models"
	"spruce/src/types"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormStore runs every conditional mutation as a single statement with
// the precondition in the WHERE clause, so exclusivity holds across
// processes without any in-process locking.
type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) GetBooking(ctx context.Context, id uint) (*models.Booking, error) {
	var booking models.Booking
	err := s.db.WithContext(ctx).
		Model(&models.Booking{}).
		Where(&models.Booking{ID: id}).
		First(&booking).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, faults.ErrNotFound
		}
		return nil, faults.PersistenceError{Op: "get booking", Err: err}
	}
	return &booking, nil
}

func (s *GormStore) CreateBooking(ctx context.Context, b *models.Booking) error {
	if err := s.db.WithContext(ctx).Create(b).Error; err != nil {
		return faults.PersistenceError{Op: "create booking", Err: err}
	}
	return nil
}

func (s *GormStore) DeleteBooking(ctx context.Context, id uint) error {
	err := s.db.WithContext(ctx).
		Unscoped().
		Delete(&models.Booking{}, id).
		Error
	if err != nil {
		return faults.PersistenceError{Op: "delete booking", Err: err}
	}
	return nil
}

func (s *GormStore) UpdateBookingStatus(ctx context.Context, id uint, expect, next types.BookingStatus, fields map[string]any, upd *models.StatusUpdate) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		updates := map[string]any{"status": next}
		for k, v := range fields {
			updates[k] = v
		}
		res := tx.
			Model(&models.Booking{}).
			Where("id = ? AND status = ?", id, expect).
			Updates(updates)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return faults.ConflictError{Resource: "booking", Msg: "status changed concurrently"}
		}
		if err := tx.Create(upd).Error; err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		var conflict faults.ConflictError
		if errors.As(err, &conflict) {
			return conflict
		}
		return faults.PersistenceError{Op: "update booking status", Err: err}
	}
	return nil
}

func (s *GormStore) UpdateBookingFields(ctx context.Context, id uint, fields map[string]any) error {
	err := s.db.WithContext(ctx).
		Model(&models.Booking{}).
		Where("id = ?", id).
		Updates(fields).
		Error
	if err != nil {
		return faults.PersistenceError{Op: "update booking", Err: err}
	}
	return nil
}

func (s *GormStore) AtomicClaim(ctx context.Context, bookingID, workerID uint) (bool, error) {
	claimed := false
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.
			Model(&models.Booking{}).
			Where("id = ? AND worker_id IS NULL AND status = ?", bookingID, types.BOOKING_REQUESTED).
			Updates(map[string]any{
				"worker_id": workerID,
				"status":    types.BOOKING_CONFIRMED,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}
		claimed = true
		upd := models.StatusUpdate{
			BookingID:  bookingID,
			FromStatus: types.BOOKING_REQUESTED,
			ToStatus:   types.BOOKING_CONFIRMED,
			Actor:      types.ACTOR_WORKER,
			Metadata:   types.JSONB{"worker_id": workerID},
		}
		if err := tx.Create(&upd).Error; err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return false, faults.PersistenceError{Op: "claim booking", Err: err}
	}
	return claimed, nil
}

func (s *GormStore) ListHistory(ctx context.Context, bookingID uint) ([]models.StatusUpdate, error) {
	var rows []models.StatusUpdate
	err := s.db.WithContext(ctx).
		Model(&models.StatusUpdate{}).
		Where(&models.StatusUpdate{BookingID: bookingID}).
		Order("created_at asc").
		Find(&rows).
		Error
	if err != nil {
		return nil, faults.PersistenceError{Op: "list history", Err: err}
	}
	return rows, nil
}

func (s *GormStore) CreateTransaction(ctx context.Context, t *models.Transaction) error {
	if err := s.db.WithContext(ctx).Create(t).Error; err != nil {
		return faults.PersistenceError{Op: "create transaction", Err: err}
	}
	return nil
}

func (s *GormStore) UpdateTransaction(ctx context.Context, id uuid.UUID, fields map[string]any) error {
	err := s.db.WithContext(ctx).
		Model(&models.Transaction{}).
		Where("id = ?", id).
		Updates(fields).
		Error
	if err != nil {
		return faults.PersistenceError{Op: "update transaction", Err: err}
	}
	return nil
}

func (s *GormStore) GetTransaction(ctx context.Context, id uuid.UUID) (*models.Transaction, error) {
	var txn models.Transaction
	err := s.db.WithContext(ctx).
		Model(&models.Transaction{}).
		Where("id = ?", id).
		First(&txn).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, faults.ErrNotFound
		}
		return nil, faults.PersistenceError{Op: "get transaction", Err: err}
	}
	return &txn, nil
}

func (s *GormStore) ListStaleTransactions(ctx context.Context, olderThan time.Time) ([]models.Transaction, error) {
	var rows []models.Transaction
	err := s.db.WithContext(ctx).
		Model(&models.Transaction{}).
		Where("status IN (?)", []types.TransactionStatus{types.TRANSACTION_PENDING, types.TRANSACTION_PROCESSING}).
		Where("created_at < ?", olderThan).
		Order("created_at asc").
		Limit(100).
		Find(&rows).
		Error
	if err != nil {
		return nil, faults.PersistenceError{Op: "list stale transactions", Err: err}
	}
	return rows, nil
}

func (s *GormStore) GetUser(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	err := s.db.WithContext(ctx).
		Model(&models.User{}).
		Where(&models.User{ID: id}).
		First(&user).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, faults.ErrNotFound
		}
		return nil, faults.PersistenceError{Op: "get user", Err: err}
	}
	return &user, nil
}

func (s *GormStore) GetAddress(ctx context.Context, id uint) (*models.Address, error) {
	var addr models.Address
	err := s.db.WithContext(ctx).
		Model(&models.Address{}).
		Where(&models.Address{ID: id}).
		First(&addr).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, faults.ErrNotFound
		}
		return nil, faults.PersistenceError{Op: "get address", Err: err}
	}
	return &addr, nil
}

func (s *GormStore) HasOverlap(ctx context.Context, workerID uint, start, end time.Time, excludeID uint) (bool, error) {
	active := []types.BookingStatus{
		types.BOOKING_CONFIRMED,
		types.BOOKING_ASSIGNED,
		types.BOOKING_EN_ROUTE,
		types.BOOKING_ARRIVED,
		types.BOOKING_IN_PROGRESS,
	}
	var count int64
	err := s.db.WithContext(ctx).
		Model(&models.Booking{}).
		Where("worker_id = ?", workerID).
		Where("id <> ?", excludeID).
		Where("status IN (?)", active).
		Where("scheduled_at < ? AND (scheduled_at + (duration_mins || ' minutes')::interval) > ?", end, start).
		Count(&count).
		Error
	if err != nil {
		return false, faults.PersistenceError{Op: "overlap check", Err: err}
	}
	return count > 0, nil
}

func (s *GormStore) CreateJobTask(ctx context.Context, jt *models.JobTask) error {
	if err := s.db.WithContext(ctx).Create(jt).Error; err != nil {
		return faults.PersistenceError{Op: "create job task", Err: err}
	}
	return nil
}

func (s *GormStore) MarkJobTaskDone(ctx context.Context, payloadID string) error {
	err := s.db.WithContext(ctx).
		Model(&models.JobTask{}).
		Where(&models.JobTask{PayloadID: payloadID}).
		Update("status", "done").
		Error
	if err != nil {
		log.Printf("Error updating job task %s: %s\n", payloadID, err.Error())
		return faults.PersistenceError{Op: "mark job task done", Err: err}
	}
	return nil
}
