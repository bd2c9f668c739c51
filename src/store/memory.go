package store

import (
	"context"
	"spruce/src/faults"
	"spruce/src/models"
	"spruce/src/types"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore keeps the whole dataset behind one mutex and applies the
// same compare-and-swap rules as the SQL adapter. It backs the engine,
// saga and claim tests, including the concurrent ones.
type MemoryStore struct {
	mu sync.Mutex

	bookings     map[uint]*models.Booking
	history      map[uint][]models.StatusUpdate
	transactions map[uuid.UUID]*models.Transaction
	users        map[uint]*models.User
	addresses    map[uint]*models.Address
	jobTasks     map[string]*models.JobTask

	nextBookingID uint
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		bookings:      map[uint]*models.Booking{},
		history:       map[uint][]models.StatusUpdate{},
		transactions:  map[uuid.UUID]*models.Transaction{},
		users:         map[uint]*models.User{},
		addresses:     map[uint]*models.Address{},
		jobTasks:      map[string]*models.JobTask{},
		nextBookingID: 1,
	}
}

func (s *MemoryStore) AddUser(u *models.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[u.ID] = u
}

func (s *MemoryStore) AddAddress(a *models.Address) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.addresses[a.ID] = a
}

func (s *MemoryStore) GetBooking(ctx context.Context, id uint) (*models.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bookings[id]
	if !ok {
		return nil, faults.ErrNotFound
	}
	copied := *b
	return &copied, nil
}

func (s *MemoryStore) CreateBooking(ctx context.Context, b *models.Booking) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if b.ID == 0 {
		b.ID = s.nextBookingID
		s.nextBookingID++
	}
	copied := *b
	s.bookings[b.ID] = &copied
	return nil
}

func (s *MemoryStore) DeleteBooking(ctx context.Context, id uint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.bookings, id)
	return nil
}

func (s *MemoryStore) UpdateBookingStatus(ctx context.Context, id uint, expect, next types.BookingStatus, fields map[string]any, upd *models.StatusUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bookings[id]
	if !ok {
		return faults.ErrNotFound
	}
	if b.Status != expect {
		return faults.ConflictError{Resource: "booking", Msg: "status changed concurrently"}
	}
	b.Status = next
	applyBookingFields(b, fields)
	if upd.ID == uuid.Nil {
		upd.ID = uuid.New()
	}
	if upd.CreatedAt.IsZero() {
		upd.CreatedAt = time.Now()
	}
	s.history[id] = append(s.history[id], *upd)
	return nil
}

func (s *MemoryStore) UpdateBookingFields(ctx context.Context, id uint, fields map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bookings[id]
	if !ok {
		return faults.ErrNotFound
	}
	applyBookingFields(b, fields)
	return nil
}

func (s *MemoryStore) AtomicClaim(ctx context.Context, bookingID, workerID uint) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bookings[bookingID]
	if !ok {
		return false, faults.ErrNotFound
	}
	if b.WorkerID != nil || b.Status != types.BOOKING_REQUESTED {
		return false, nil
	}
	wid := workerID
	b.WorkerID = &wid
	b.Status = types.BOOKING_CONFIRMED
	s.history[bookingID] = append(s.history[bookingID], models.StatusUpdate{
		ID:         uuid.New(),
		BookingID:  bookingID,
		FromStatus: types.BOOKING_REQUESTED,
		ToStatus:   types.BOOKING_CONFIRMED,
		Actor:      types.ACTOR_WORKER,
		Metadata:   types.JSONB{"worker_id": workerID},
		CreatedAt:  time.Now(),
	})
	return true, nil
}

func (s *MemoryStore) ListHistory(ctx context.Context, bookingID uint) ([]models.StatusUpdate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rows := make([]models.StatusUpdate, len(s.history[bookingID]))
	copy(rows, s.history[bookingID])
	return rows, nil
}

func (s *MemoryStore) CreateTransaction(ctx context.Context, t *models.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now()
	}
	copied := *t
	s.transactions[t.ID] = &copied
	return nil
}

func (s *MemoryStore) UpdateTransaction(ctx context.Context, id uuid.UUID, fields map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.transactions[id]
	if !ok {
		return faults.ErrNotFound
	}
	for k, v := range fields {
		switch k {
		case "status":
			t.Status = v.(types.TransactionStatus)
		case "booking_id":
			id := v.(uint)
			t.BookingID = &id
		case "payment_intent_id":
			pid := v.(string)
			t.PaymentIntentId = &pid
		case "error":
			msg := v.(string)
			t.Error = &msg
		case "completed_at":
			at := v.(time.Time)
			t.CompletedAt = &at
		}
	}
	return nil
}

func (s *MemoryStore) GetTransaction(ctx context.Context, id uuid.UUID) (*models.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.transactions[id]
	if !ok {
		return nil, faults.ErrNotFound
	}
	copied := *t
	return &copied, nil
}

func (s *MemoryStore) ListStaleTransactions(ctx context.Context, olderThan time.Time) ([]models.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var rows []models.Transaction
	for _, t := range s.transactions {
		if !t.Status.IsTerminal() && t.CreatedAt.Before(olderThan) {
			rows = append(rows, *t)
		}
	}
	return rows, nil
}

func (s *MemoryStore) GetUser(ctx context.Context, id uint) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, faults.ErrNotFound
	}
	copied := *u
	return &copied, nil
}

func (s *MemoryStore) GetAddress(ctx context.Context, id uint) (*models.Address, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.addresses[id]
	if !ok {
		return nil, faults.ErrNotFound
	}
	copied := *a
	return &copied, nil
}

func (s *MemoryStore) HasOverlap(ctx context.Context, workerID uint, start, end time.Time, excludeID uint) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	active := map[types.BookingStatus]bool{
		types.BOOKING_CONFIRMED:   true,
		types.BOOKING_ASSIGNED:    true,
		types.BOOKING_EN_ROUTE:    true,
		types.BOOKING_ARRIVED:     true,
		types.BOOKING_IN_PROGRESS: true,
	}
	for _, b := range s.bookings {
		if b.ID == excludeID {
			continue
		}
		if b.WorkerID == nil || *b.WorkerID != workerID || !active[b.Status] {
			continue
		}
		if b.ScheduledAt.Before(end) && b.WindowEnd().After(start) {
			return true, nil
		}
	}
	return false, nil
}

func (s *MemoryStore) CreateJobTask(ctx context.Context, jt *models.JobTask) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if jt.ID == uuid.Nil {
		jt.ID = uuid.New()
	}
	copied := *jt
	s.jobTasks[jt.PayloadID] = &copied
	return nil
}

func (s *MemoryStore) JobTasks() []models.JobTask {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.JobTask, 0, len(s.jobTasks))
	for _, jt := range s.jobTasks {
		out = append(out, *jt)
	}
	return out
}

func (s *MemoryStore) MarkJobTaskDone(ctx context.Context, payloadID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if jt, ok := s.jobTasks[payloadID]; ok {
		jt.Status = "done"
	}
	return nil
}

func applyBookingFields(b *models.Booking, fields map[string]any) {
	for k, v := range fields {
		switch k {
		case "payment_status":
			b.PaymentStatus = v.(types.PaymentStatus)
		case "payment_intent_id":
			pid := v.(string)
			b.PaymentIntentId = &pid
		case "started_at":
			at := v.(time.Time)
			b.StartedAt = &at
		case "ended_at":
			at := v.(time.Time)
			b.EndedAt = &at
		case "notes":
			b.Notes = v.(string)
		case "transaction_id":
			tid := v.(uuid.UUID)
			b.TransactionID = &tid
		case "worker_id":
			if v == nil {
				b.WorkerID = nil
			} else {
				wid := v.(uint)
				b.WorkerID = &wid
			}
		}
	}
}
