package gateway

import (
	"context"
	"fmt"
	"net/http"

	"github.com/ashendes/order-fulfillment/internal/metrics"
	"github.com/ashendes/order-fulfillment/internal/models"
	"github.com/ashendes/order-fulfillment/internal/patterns"
	log "github.com/sirupsen/logrus"
)

// OrderStatusGateway pushes payment outcomes back to the order service.
// Calls are fire-and-forget: failures are logged and reported as false.
type OrderStatusGateway struct {
	*Client
}

func NewOrderStatusGateway(opts Options) *OrderStatusGateway {
	return &OrderStatusGateway{Client: newClient("order-service", opts, patterns.OrderStatusTimeout)}
}

// MarkCompleted moves the order to COMPLETED with the settling payment.
func (g *OrderStatusGateway) MarkCompleted(ctx context.Context, orderID, paymentID int64) bool {
	body := models.UpdateOrderStatusRequest{
		Status:    string(models.OrderStatusCompleted),
		PaymentID: &paymentID,
	}
	path := fmt.Sprintf("/api/v1/orders/%d/status", orderID)
	return g.notify(ctx, "mark_completed", orderID, path, body)
}

// Cancel moves the order to CANCELLED with the given reason.
func (g *OrderStatusGateway) Cancel(ctx context.Context, orderID int64, reason string) bool {
	path := fmt.Sprintf("/api/v1/orders/%d/cancel", orderID)
	return g.notify(ctx, "cancel", orderID, path, models.CancelOrderRequest{Reason: reason})
}

func (g *OrderStatusGateway) notify(ctx context.Context, op string, orderID int64, path string, body any) bool {
	if err := g.call(ctx, http.MethodPut, path, body, nil); err != nil {
		metrics.NotificationFailures.WithLabelValues(op).Inc()
		log.WithFields(log.Fields{
			"order_id":  orderID,
			"operation": op,
			"error":     err.Error(),
		}).Error("Failed to update order status")
		return false
	}
	log.WithFields(log.Fields{
		"order_id":  orderID,
		"operation": op,
	}).Info("Order status updated")
	return true
}
