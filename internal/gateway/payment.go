package gateway

import (
	"context"
	"fmt"
	"net/http"

	"github.com/ashendes/order-fulfillment/internal/models"
	"github.com/ashendes/order-fulfillment/internal/patterns"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

// PaymentGateway talks to the payment service
type PaymentGateway struct {
	*Client
}

func NewPaymentGateway(opts Options) *PaymentGateway {
	return &PaymentGateway{Client: newClient("payment-service", opts, patterns.PaymentTimeout)}
}

// Create asks the payment service to open a payment for the order. A 409
// means the payment already exists, usually because a retried request had
// landed, and that payment is returned instead. Every other failure is
// reported as models.ErrServiceUnavailable.
func (g *PaymentGateway) Create(ctx context.Context, orderID int64, amount decimal.Decimal, method string) (*models.Payment, error) {
	req := models.CreatePaymentRequest{
		OrderID:       orderID,
		Amount:        amount,
		PaymentMethod: method,
	}
	var p models.Payment
	err := g.call(ctx, http.MethodPost, "/api/v1/payments", req, &p)
	if isStatus(err, http.StatusConflict) {
		existing, ferr := g.FetchByOrder(ctx, orderID)
		if ferr == nil {
			log.WithFields(log.Fields{
				"order_id":   orderID,
				"payment_id": existing.ID,
			}).Info("Payment already exists for order, reusing it")
			return existing, nil
		}
		err = fmt.Errorf("%w (lookup: %v)", err, ferr)
	}
	if err != nil {
		log.WithFields(log.Fields{
			"order_id": orderID,
			"error":    err.Error(),
		}).Warn("Payment creation failed")
		return nil, unavailable(fmt.Sprintf("create payment for order %d", orderID), err)
	}
	return &p, nil
}

// FetchByOrder loads the payment opened for an order.
func (g *PaymentGateway) FetchByOrder(ctx context.Context, orderID int64) (*models.Payment, error) {
	var p models.Payment
	path := fmt.Sprintf("/api/v1/payments/order/%d", orderID)
	if err := g.call(ctx, http.MethodGet, path, nil, &p); err != nil {
		if isStatus(err, http.StatusNotFound) {
			return nil, models.ErrPaymentNotFound
		}
		return nil, unavailable(fmt.Sprintf("fetch payment for order %d", orderID), err)
	}
	return &p, nil
}
