package gateway

import (
	"context"
	"fmt"
	"net/http"

	"github.com/ashendes/order-fulfillment/internal/models"
	"github.com/ashendes/order-fulfillment/internal/patterns"
	log "github.com/sirupsen/logrus"
)

// CustomerGateway talks to the customer service
type CustomerGateway struct {
	*Client
}

func NewCustomerGateway(opts Options) *CustomerGateway {
	return &CustomerGateway{Client: newClient("customer-service", opts, patterns.CustomerTimeout)}
}

// Validate reports whether the customer exists. Any failure to get an
// answer counts as "does not exist".
func (g *CustomerGateway) Validate(ctx context.Context, customerID int64) bool {
	var exists bool
	path := fmt.Sprintf("/api/v1/customers/%d/exists", customerID)
	if err := g.call(ctx, http.MethodGet, path, nil, &exists); err != nil {
		log.WithFields(log.Fields{
			"customer_id": customerID,
			"error":       err.Error(),
		}).Warn("Customer validation failed, treating customer as invalid")
		return false
	}
	return exists
}

// Fetch loads a customer record.
func (g *CustomerGateway) Fetch(ctx context.Context, customerID int64) (*models.Customer, error) {
	var c models.Customer
	path := fmt.Sprintf("/api/v1/customers/%d", customerID)
	if err := g.call(ctx, http.MethodGet, path, nil, &c); err != nil {
		if isStatus(err, http.StatusNotFound) {
			return nil, models.ErrCustomerNotFound
		}
		return nil, unavailable(fmt.Sprintf("fetch customer %d", customerID), err)
	}
	return &c, nil
}
