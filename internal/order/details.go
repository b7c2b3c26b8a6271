package order

import (
	"context"
	"time"

	"github.com/ashendes/order-fulfillment/internal/models"
	"github.com/ashendes/order-fulfillment/internal/patterns"
	log "github.com/sirupsen/logrus"
)

// DetailsAggregator joins an order with its customer and payment. Remote
// failures degrade to empty placeholders instead of failing the call.
type DetailsAggregator struct {
	orders    Repository
	customers CustomerClient
	payments  PaymentClient
	timeout   time.Duration
}

func NewDetailsAggregator(orders Repository, customers CustomerClient, payments PaymentClient) *DetailsAggregator {
	return &DetailsAggregator{
		orders:    orders,
		customers: customers,
		payments:  payments,
		timeout:   5 * time.Second,
	}
}

// GetCompleteOrderDetails fails only when the order itself is missing.
func (a *DetailsAggregator) GetCompleteOrderDetails(ctx context.Context, orderID int64) (*models.OrderDetails, error) {
	o, err := a.orders.FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	details := &models.OrderDetails{Order: o}

	cctx, cancel := patterns.WithTimeout(ctx, a.timeout)
	customer, err := a.customers.Fetch(cctx, o.CustomerID)
	cancel()
	if err != nil {
		log.WithFields(log.Fields{
			"order_id":    orderID,
			"customer_id": o.CustomerID,
			"error":       err.Error(),
		}).Warn("Customer lookup failed, returning placeholder")
		customer = &models.Customer{}
	}
	details.Customer = customer

	if o.PaymentID != nil || o.Status != models.OrderStatusPending {
		pctx, cancel := patterns.WithTimeout(ctx, a.timeout)
		payment, err := a.payments.FetchByOrder(pctx, o.ID)
		cancel()
		if err != nil {
			log.WithFields(log.Fields{
				"order_id": orderID,
				"error":    err.Error(),
			}).Warn("Payment lookup failed, returning placeholder")
			payment = &models.Payment{}
		}
		details.Payment = payment
	}

	return details, nil
}
