package payment

import (
	"context"
	"time"

	"github.com/ashendes/order-fulfillment/internal/models"
)

// Repository persists payments. Create fails with models.ErrAlreadyExists
// when the order already has a payment; Update fails with
// models.ErrConcurrentUpdate when the caller's version is stale.
type Repository interface {
	Create(ctx context.Context, p *models.Payment) error
	Update(ctx context.Context, p *models.Payment) error
	FindByID(ctx context.Context, id int64) (*models.Payment, error)
	FindByOrderID(ctx context.Context, orderID int64) (*models.Payment, error)
	List(ctx context.Context, f models.PaymentFilter) ([]models.Payment, error)
	ListEligible(ctx context.Context, before time.Time, limit int) ([]models.Payment, error)
	CountByStatus(ctx context.Context) (models.PaymentStatistics, error)
}

// OrderNotifier reports resolved payments back to the order service.
// Both calls are best-effort and only report whether they got through.
type OrderNotifier interface {
	MarkCompleted(ctx context.Context, orderID, paymentID int64) bool
	Cancel(ctx context.Context, orderID int64, reason string) bool
}
