// Package memory provides map-backed stores used for local runs and tests.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/ashendes/order-fulfillment/internal/models"
)

// OrderStore keeps orders in memory
type OrderStore struct {
	mutex  sync.RWMutex
	orders map[int64]*models.Order
	nextID int64
	itemID int64
	now    func() time.Time
}

func NewOrderStore() *OrderStore {
	return &OrderStore{
		orders: make(map[int64]*models.Order),
		now:    time.Now,
	}
}

// Create assigns ids to the order and its items and stores them together.
func (s *OrderStore) Create(_ context.Context, o *models.Order) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.nextID++
	now := s.now()
	o.ID = s.nextID
	o.Version = 1
	o.CreatedAt = now
	o.UpdatedAt = now
	for i := range o.Items {
		s.itemID++
		o.Items[i].ID = s.itemID
	}
	s.orders[o.ID] = o.Clone()
	return nil
}

// Update replaces the stored order if o.Version matches, then bumps the version.
func (s *OrderStore) Update(_ context.Context, o *models.Order) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	current, ok := s.orders[o.ID]
	if !ok {
		return models.ErrOrderNotFound
	}
	if current.Version != o.Version {
		return fmt.Errorf("order %d version %d, stored %d: %w", o.ID, o.Version, current.Version, models.ErrConcurrentUpdate)
	}
	o.Version++
	o.UpdatedAt = s.now()
	o.CreatedAt = current.CreatedAt
	s.orders[o.ID] = o.Clone()
	return nil
}

func (s *OrderStore) FindByID(_ context.Context, id int64) (*models.Order, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	o, ok := s.orders[id]
	if !ok {
		return nil, models.ErrOrderNotFound
	}
	return o.Clone(), nil
}

// List returns matching orders, newest first.
func (s *OrderStore) List(_ context.Context, f models.OrderFilter) ([]models.Order, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	out := make([]models.Order, 0, len(s.orders))
	for _, o := range s.orders {
		if f.Match(o) {
			out = append(out, *o.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}
