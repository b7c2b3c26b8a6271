package order

import (
	"context"
	"sync"

	"github.com/ashendes/order-fulfillment/internal/models"
	"github.com/shopspring/decimal"
)

type mockCustomers struct {
	validateFn func(ctx context.Context, id int64) bool
	fetchFn    func(ctx context.Context, id int64) (*models.Customer, error)
}

func (m *mockCustomers) Validate(ctx context.Context, id int64) bool {
	return m.validateFn(ctx, id)
}

func (m *mockCustomers) Fetch(ctx context.Context, id int64) (*models.Customer, error) {
	return m.fetchFn(ctx, id)
}

func validCustomers() *mockCustomers {
	return &mockCustomers{
		validateFn: func(context.Context, int64) bool { return true },
		fetchFn: func(_ context.Context, id int64) (*models.Customer, error) {
			return &models.Customer{ID: id, FirstName: "Ada"}, nil
		},
	}
}

type mockPayments struct {
	mu          sync.Mutex
	createCalls int
	lastAmount  decimal.Decimal
	lastMethod  string
	createFn    func(ctx context.Context, orderID int64, amount decimal.Decimal, method string) (*models.Payment, error)
	fetchFn     func(ctx context.Context, orderID int64) (*models.Payment, error)
}

func (m *mockPayments) Create(ctx context.Context, orderID int64, amount decimal.Decimal, method string) (*models.Payment, error) {
	m.mu.Lock()
	m.createCalls++
	m.lastAmount = amount
	m.lastMethod = method
	m.mu.Unlock()
	return m.createFn(ctx, orderID, amount, method)
}

func (m *mockPayments) FetchByOrder(ctx context.Context, orderID int64) (*models.Payment, error) {
	return m.fetchFn(ctx, orderID)
}

func acceptingPayments(id int64) *mockPayments {
	return &mockPayments{
		createFn: func(_ context.Context, orderID int64, amount decimal.Decimal, method string) (*models.Payment, error) {
			p := models.NewPayment(orderID, amount, method)
			p.ID = id
			return p, nil
		},
	}
}

type mockBreaker struct {
	allow     bool
	successes int
	failures  int
}

func (m *mockBreaker) AllowRequest() bool { return m.allow }
func (m *mockBreaker) RecordSuccess()     { m.successes++ }
func (m *mockBreaker) RecordFailure()     { m.failures++ }

func orderRequest() models.CreateOrderRequest {
	return models.CreateOrderRequest{
		CustomerID: 1,
		Notes:      "leave at door",
		Items: []models.OrderItem{
			{ProductName: "Book", Quantity: 2, UnitPrice: decimal.RequireFromString("10.00"), ProductCategory: models.CategoryBooks},
			{ProductName: "Pen", Quantity: 1, UnitPrice: decimal.RequireFromString("5.00")},
		},
	}
}
