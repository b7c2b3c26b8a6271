package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/ashendes/order-fulfillment/internal/models"
)

// PaymentStore keeps payments in memory, one per order
type PaymentStore struct {
	mutex    sync.RWMutex
	payments map[int64]*models.Payment
	byOrder  map[int64]int64
	nextID   int64
	now      func() time.Time
}

func NewPaymentStore() *PaymentStore {
	return &PaymentStore{
		payments: make(map[int64]*models.Payment),
		byOrder:  make(map[int64]int64),
		now:      time.Now,
	}
}

// WithClock replaces the time source used for timestamps.
func (s *PaymentStore) WithClock(now func() time.Time) *PaymentStore {
	s.now = now
	return s
}

func (s *PaymentStore) Create(_ context.Context, p *models.Payment) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if _, ok := s.byOrder[p.OrderID]; ok {
		return fmt.Errorf("payment for order %d: %w", p.OrderID, models.ErrAlreadyExists)
	}
	s.nextID++
	now := s.now()
	p.ID = s.nextID
	p.Version = 1
	p.CreatedAt = now
	p.UpdatedAt = now
	s.payments[p.ID] = p.Clone()
	s.byOrder[p.OrderID] = p.ID
	return nil
}

// Update replaces the stored payment if p.Version matches, then bumps the version.
func (s *PaymentStore) Update(_ context.Context, p *models.Payment) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	current, ok := s.payments[p.ID]
	if !ok {
		return models.ErrPaymentNotFound
	}
	if current.Version != p.Version {
		return fmt.Errorf("payment %d version %d, stored %d: %w", p.ID, p.Version, current.Version, models.ErrConcurrentUpdate)
	}
	p.Version++
	p.UpdatedAt = s.now()
	p.CreatedAt = current.CreatedAt
	s.payments[p.ID] = p.Clone()
	return nil
}

func (s *PaymentStore) FindByID(_ context.Context, id int64) (*models.Payment, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	p, ok := s.payments[id]
	if !ok {
		return nil, models.ErrPaymentNotFound
	}
	return p.Clone(), nil
}

func (s *PaymentStore) FindByOrderID(_ context.Context, orderID int64) (*models.Payment, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	id, ok := s.byOrder[orderID]
	if !ok {
		return nil, models.ErrPaymentNotFound
	}
	return s.payments[id].Clone(), nil
}

func (s *PaymentStore) List(_ context.Context, f models.PaymentFilter) ([]models.Payment, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	out := make([]models.Payment, 0, len(s.payments))
	for _, p := range s.payments {
		if f.Match(p) {
			out = append(out, *p.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

// ListEligible returns PENDING payments created at or before the cutoff,
// oldest first, at most limit of them.
func (s *PaymentStore) ListEligible(_ context.Context, before time.Time, limit int) ([]models.Payment, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	var out []models.Payment
	for _, p := range s.payments {
		if p.Status == models.PaymentStatusPending && !p.CreatedAt.After(before) {
			out = append(out, *p.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *PaymentStore) CountByStatus(_ context.Context) (models.PaymentStatistics, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	stats := make(models.PaymentStatistics, len(models.PaymentStatuses))
	for _, st := range models.PaymentStatuses {
		stats[st] = 0
	}
	for _, p := range s.payments {
		stats[p.Status]++
	}
	return stats, nil
}
