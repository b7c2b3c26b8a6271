package order

import (
	"context"

	"github.com/ashendes/order-fulfillment/internal/models"
	log "github.com/sirupsen/logrus"
)

// Service covers order reads and the status changes requested from outside
// the saga, such as the payment service reporting a settled payment.
type Service struct {
	orders Repository
}

func NewService(orders Repository) *Service {
	return &Service{orders: orders}
}

func (s *Service) Get(ctx context.Context, id int64) (*models.Order, error) {
	return s.orders.FindByID(ctx, id)
}

func (s *Service) List(ctx context.Context, f models.OrderFilter) ([]models.Order, error) {
	return s.orders.List(ctx, f)
}

// UpdateStatus moves an order to the requested status through the named
// transition for that status.
func (s *Service) UpdateStatus(ctx context.Context, id int64, req models.UpdateOrderStatusRequest) (*models.Order, error) {
	target, err := models.ParseOrderStatus(req.Status)
	if err != nil {
		return nil, err
	}

	o, err := s.orders.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	mutate := func(ord *models.Order) error {
		switch target {
		case models.OrderStatusConfirmed:
			return ord.Confirm()
		case models.OrderStatusPaymentProcessing:
			if err := ord.MarkPaymentProcessing(); err != nil {
				return err
			}
			if req.PaymentID != nil {
				ord.AttachPayment(*req.PaymentID)
			}
			return nil
		case models.OrderStatusCompleted:
			paymentID := req.PaymentID
			if paymentID == nil {
				paymentID = ord.PaymentID
			}
			if paymentID == nil {
				return models.Validationf("payment_id is required to complete an order")
			}
			return ord.Complete(*paymentID)
		case models.OrderStatusFailed:
			return ord.Fail(req.Reason)
		case models.OrderStatusCancelled:
			return ord.Cancel(req.Reason)
		default:
			// nothing transitions into PENDING
			return &models.TransitionError{Entity: "order", ID: ord.ID, From: string(ord.Status), To: string(target)}
		}
	}

	if err := save(ctx, s.orders, o, mutate); err != nil {
		log.WithFields(log.Fields{
			"order_id": id,
			"status":   target,
			"error":    err.Error(),
		}).Warn("Order status update rejected")
		return nil, err
	}

	log.WithFields(log.Fields{
		"order_id": id,
		"status":   o.Status,
	}).Info("Order status updated")
	return o, nil
}

// Cancel moves the order to CANCELLED.
func (s *Service) Cancel(ctx context.Context, id int64, reason string) (*models.Order, error) {
	return s.UpdateStatus(ctx, id, models.UpdateOrderStatusRequest{
		Status: string(models.OrderStatusCancelled),
		Reason: reason,
	})
}
