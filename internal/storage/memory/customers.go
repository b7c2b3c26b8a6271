package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/ashendes/order-fulfillment/internal/models"
)

// CustomerStore keeps the customer directory in memory
type CustomerStore struct {
	mutex     sync.RWMutex
	customers map[int64]*models.Customer
	nextID    int64
}

func NewCustomerStore() *CustomerStore {
	return &CustomerStore{customers: make(map[int64]*models.Customer)}
}

func (s *CustomerStore) Create(_ context.Context, c *models.Customer) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.emailTakenLocked(c.Email, 0) {
		return fmt.Errorf("customer with email %s: %w", c.Email, models.ErrAlreadyExists)
	}
	s.nextID++
	now := time.Now()
	c.ID = s.nextID
	c.CreatedAt = now
	c.UpdatedAt = now
	stored := *c
	s.customers[c.ID] = &stored
	return nil
}

func (s *CustomerStore) Update(_ context.Context, c *models.Customer) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	current, ok := s.customers[c.ID]
	if !ok {
		return models.ErrCustomerNotFound
	}
	if s.emailTakenLocked(c.Email, c.ID) {
		return fmt.Errorf("customer with email %s: %w", c.Email, models.ErrAlreadyExists)
	}
	c.CreatedAt = current.CreatedAt
	c.UpdatedAt = time.Now()
	stored := *c
	s.customers[c.ID] = &stored
	return nil
}

func (s *CustomerStore) Delete(_ context.Context, id int64) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if _, ok := s.customers[id]; !ok {
		return models.ErrCustomerNotFound
	}
	delete(s.customers, id)
	return nil
}

func (s *CustomerStore) FindByID(_ context.Context, id int64) (*models.Customer, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	c, ok := s.customers[id]
	if !ok {
		return nil, models.ErrCustomerNotFound
	}
	out := *c
	return &out, nil
}

func (s *CustomerStore) FindByEmail(_ context.Context, email string) (*models.Customer, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	for _, c := range s.customers {
		if strings.EqualFold(c.Email, email) {
			out := *c
			return &out, nil
		}
	}
	return nil, models.ErrCustomerNotFound
}

func (s *CustomerStore) List(_ context.Context) ([]models.Customer, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	out := make([]models.Customer, 0, len(s.customers))
	for _, c := range s.customers {
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *CustomerStore) Exists(_ context.Context, id int64) (bool, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	_, ok := s.customers[id]
	return ok, nil
}

func (s *CustomerStore) emailTakenLocked(email string, except int64) bool {
	for id, c := range s.customers {
		if id != except && strings.EqualFold(c.Email, email) {
			return true
		}
	}
	return false
}
