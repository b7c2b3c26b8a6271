package order

import (
	"context"
	"errors"

	"github.com/ashendes/order-fulfillment/internal/models"
	"github.com/shopspring/decimal"
)

// Repository persists orders. Update fails with models.ErrConcurrentUpdate
// when the caller's version is stale.
type Repository interface {
	Create(ctx context.Context, o *models.Order) error
	Update(ctx context.Context, o *models.Order) error
	FindByID(ctx context.Context, id int64) (*models.Order, error)
	List(ctx context.Context, f models.OrderFilter) ([]models.Order, error)
}

// CustomerClient is the order service's view of the customer service.
type CustomerClient interface {
	Validate(ctx context.Context, customerID int64) bool
	Fetch(ctx context.Context, customerID int64) (*models.Customer, error)
}

// PaymentClient is the order service's view of the payment service.
type PaymentClient interface {
	Create(ctx context.Context, orderID int64, amount decimal.Decimal, method string) (*models.Payment, error)
	FetchByOrder(ctx context.Context, orderID int64) (*models.Payment, error)
}

// Breaker gates payment initiation.
type Breaker interface {
	AllowRequest() bool
	RecordSuccess()
	RecordFailure()
}

// KeyStore deduplicates order creation by client idempotency key.
type KeyStore interface {
	Claim(ctx context.Context, key string) (int64, error)
	Bind(ctx context.Context, key string, orderID int64) error
	Release(ctx context.Context, key string) error
}

// save applies mutate to o and persists it. On a version conflict the order
// is reloaded and mutate is applied once more to the fresh copy, which is
// then written back into o. On any other failure o is left as it was.
func save(ctx context.Context, repo Repository, o *models.Order, mutate func(*models.Order) error) error {
	before := o.Clone()
	if err := mutate(o); err != nil {
		*o = *before
		return err
	}
	err := repo.Update(ctx, o)
	if err == nil {
		return nil
	}
	*o = *before
	if !errors.Is(err, models.ErrConcurrentUpdate) {
		return err
	}

	fresh, ferr := repo.FindByID(ctx, o.ID)
	if ferr != nil {
		return ferr
	}
	if err := mutate(fresh); err != nil {
		*o = *fresh
		return err
	}
	if err := repo.Update(ctx, fresh); err != nil {
		return err
	}
	*o = *fresh
	return nil
}
