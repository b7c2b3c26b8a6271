// Package customer serves the customer directory.
package customer

import (
	"context"
	"errors"
	"strings"

	"github.com/ashendes/order-fulfillment/internal/models"
	log "github.com/sirupsen/logrus"
)

// Repository persists customers. Create and Update fail with
// models.ErrAlreadyExists when the email belongs to another customer.
type Repository interface {
	Create(ctx context.Context, c *models.Customer) error
	Update(ctx context.Context, c *models.Customer) error
	Delete(ctx context.Context, id int64) error
	FindByID(ctx context.Context, id int64) (*models.Customer, error)
	FindByEmail(ctx context.Context, email string) (*models.Customer, error)
	List(ctx context.Context) ([]models.Customer, error)
	Exists(ctx context.Context, id int64) (bool, error)
}

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) Create(ctx context.Context, req models.CustomerRequest) (*models.Customer, error) {
	c := &models.Customer{}
	normalize(&req).Apply(c)
	if err := s.repo.Create(ctx, c); err != nil {
		return nil, err
	}
	log.WithFields(log.Fields{"customer_id": c.ID, "email": c.Email}).Info("Customer created")
	return c, nil
}

func (s *Service) Update(ctx context.Context, id int64, req models.CustomerRequest) (*models.Customer, error) {
	c, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	normalize(&req).Apply(c)
	if err := s.repo.Update(ctx, c); err != nil {
		return nil, err
	}
	log.WithField("customer_id", c.ID).Info("Customer updated")
	return c, nil
}

func (s *Service) Delete(ctx context.Context, id int64) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	log.WithField("customer_id", id).Info("Customer deleted")
	return nil
}

func (s *Service) Get(ctx context.Context, id int64) (*models.Customer, error) {
	return s.repo.FindByID(ctx, id)
}

func (s *Service) GetByEmail(ctx context.Context, email string) (*models.Customer, error) {
	return s.repo.FindByEmail(ctx, strings.TrimSpace(email))
}

func (s *Service) List(ctx context.Context) ([]models.Customer, error) {
	return s.repo.List(ctx)
}

// Exists backs the order service's customer validation.
func (s *Service) Exists(ctx context.Context, id int64) (bool, error) {
	return s.repo.Exists(ctx, id)
}

func normalize(req *models.CustomerRequest) *models.CustomerRequest {
	req.FirstName = strings.TrimSpace(req.FirstName)
	req.LastName = strings.TrimSpace(req.LastName)
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	req.PhoneNumber = strings.TrimSpace(req.PhoneNumber)
	req.Address = strings.TrimSpace(req.Address)
	return req
}

var sampleCustomers = []models.CustomerRequest{
	{FirstName: "John", LastName: "Doe", Email: "john.doe@example.com", PhoneNumber: "1234567890", Address: "123 Main Street, New York, NY 10001"},
	{FirstName: "Jane", LastName: "Smith", Email: "jane.smith@example.com", PhoneNumber: "9876543210", Address: "456 Oak Avenue, Los Angeles, CA 90210"},
	{FirstName: "Bob", LastName: "Johnson", Email: "bob.johnson@example.com", PhoneNumber: "5555551234", Address: "789 Pine Road, Chicago, IL 60601"},
}

// Seed inserts the sample customers into an empty directory.
func (s *Service) Seed(ctx context.Context) error {
	existing, err := s.repo.List(ctx)
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		log.WithField("count", len(existing)).Info("Customer data already exists, skipping seed")
		return nil
	}
	for _, req := range sampleCustomers {
		if _, err := s.Create(ctx, req); err != nil && !errors.Is(err, models.ErrAlreadyExists) {
			return err
		}
	}
	log.WithField("count", len(sampleCustomers)).Info("Sample customers seeded")
	return nil
}
