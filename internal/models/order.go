package models

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ProductCategory classifies an order item
type ProductCategory string

// ProductCategory constants
const (
	CategoryElectronics ProductCategory = "ELECTRONICS"
	CategoryClothing    ProductCategory = "CLOTHING"
	CategoryBooks       ProductCategory = "BOOKS"
	CategoryHomeGarden  ProductCategory = "HOME_GARDEN"
	CategorySports      ProductCategory = "SPORTS"
	CategoryToys        ProductCategory = "TOYS"
	CategoryFood        ProductCategory = "FOOD"
	CategoryOther       ProductCategory = "OTHER"
)

// Valid reports whether c is empty or one of the known categories.
func (c ProductCategory) Valid() bool {
	switch c {
	case "", CategoryElectronics, CategoryClothing, CategoryBooks, CategoryHomeGarden,
		CategorySports, CategoryToys, CategoryFood, CategoryOther:
		return true
	}
	return false
}

// OrderItem represents an item in an order
type OrderItem struct {
	ID                 int64           `json:"id,omitempty"`
	ProductName        string          `json:"product_name"`
	ProductDescription string          `json:"product_description,omitempty"`
	ProductCategory    ProductCategory `json:"product_category,omitempty"`
	Quantity           int             `json:"quantity"`
	UnitPrice          decimal.Decimal `json:"unit_price"`
	TotalPrice         decimal.Decimal `json:"total_price"`
}

// NewOrderItem builds an item with its total price derived.
func NewOrderItem(name string, quantity int, unitPrice decimal.Decimal) OrderItem {
	item := OrderItem{
		ProductName: name,
		Quantity:    quantity,
		UnitPrice:   unitPrice,
	}
	item.CalculateTotalPrice()
	return item
}

// CalculateTotalPrice recomputes TotalPrice from UnitPrice and Quantity.
func (i *OrderItem) CalculateTotalPrice() {
	i.TotalPrice = i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// Validate checks the item against the fail-fast rules.
func (i OrderItem) Validate() error {
	if strings.TrimSpace(i.ProductName) == "" {
		return Validationf("product_name is required")
	}
	if i.Quantity < 1 {
		return Validationf("quantity must be at least 1")
	}
	if !i.UnitPrice.IsPositive() {
		return Validationf("unit_price must be greater than 0")
	}
	if !i.ProductCategory.Valid() {
		return Validationf("unknown product_category %q", i.ProductCategory)
	}
	return nil
}

// Order represents a customer order
type Order struct {
	ID            int64           `json:"id"`
	CustomerID    int64           `json:"customer_id"`
	PaymentID     *int64          `json:"payment_id,omitempty"`
	Status        OrderStatus     `json:"status"`
	TotalAmount   decimal.Decimal `json:"total_amount"`
	Notes         string          `json:"notes,omitempty"`
	FailureReason string          `json:"failure_reason,omitempty"`
	Items         []OrderItem     `json:"items"`
	Version       int64           `json:"version"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// NewOrder creates a PENDING order for the customer.
func NewOrder(customerID int64, notes string) *Order {
	return &Order{
		CustomerID:  customerID,
		Status:      OrderStatusPending,
		TotalAmount: decimal.Zero,
		Notes:       notes,
		Items:       []OrderItem{},
	}
}

// AddItem appends an item and recomputes the order total.
func (o *Order) AddItem(item OrderItem) {
	item.CalculateTotalPrice()
	o.Items = append(o.Items, item)
	o.CalculateTotalAmount()
}

// RemoveItem drops the item at index i and recomputes the order total.
func (o *Order) RemoveItem(i int) {
	if i < 0 || i >= len(o.Items) {
		return
	}
	o.Items = append(o.Items[:i], o.Items[i+1:]...)
	o.CalculateTotalAmount()
}

// CalculateTotalAmount sets TotalAmount to the sum of the item totals.
func (o *Order) CalculateTotalAmount() {
	total := decimal.Zero
	for _, item := range o.Items {
		total = total.Add(item.UnitPrice.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}
	o.TotalAmount = total
}

func (o *Order) transition(to OrderStatus) error {
	if !CanTransitionOrder(o.Status, to) {
		return orderTransitionError(o.ID, o.Status, to)
	}
	o.Status = to
	return nil
}

// Confirm moves a PENDING order to CONFIRMED.
func (o *Order) Confirm() error {
	return o.transition(OrderStatusConfirmed)
}

// MarkPaymentProcessing moves a CONFIRMED order to PAYMENT_PROCESSING.
func (o *Order) MarkPaymentProcessing() error {
	return o.transition(OrderStatusPaymentProcessing)
}

// Complete finishes the order and records the payment that settled it.
func (o *Order) Complete(paymentID int64) error {
	if err := o.transition(OrderStatusCompleted); err != nil {
		return err
	}
	o.PaymentID = &paymentID
	return nil
}

// Fail moves the order to FAILED. An empty reason is replaced so the
// failure reason is always present on a failed order.
func (o *Order) Fail(reason string) error {
	if err := o.transition(OrderStatusFailed); err != nil {
		return err
	}
	o.FailureReason = reasonOr(reason, "order processing failed")
	return nil
}

// Cancel moves the order to CANCELLED.
func (o *Order) Cancel(reason string) error {
	if err := o.transition(OrderStatusCancelled); err != nil {
		return err
	}
	o.FailureReason = reasonOr(reason, "order cancelled")
	return nil
}

// AttachPayment associates a payment with the order without a status change.
func (o *Order) AttachPayment(paymentID int64) {
	o.PaymentID = &paymentID
}

// Clone returns a deep copy, so stores never share item slices with callers.
func (o *Order) Clone() *Order {
	c := *o
	c.Items = append([]OrderItem(nil), o.Items...)
	if o.PaymentID != nil {
		id := *o.PaymentID
		c.PaymentID = &id
	}
	return &c
}

func reasonOr(reason, fallback string) string {
	if strings.TrimSpace(reason) == "" {
		return fallback
	}
	return reason
}

// CreateOrderRequest represents the request to create a new order
type CreateOrderRequest struct {
	CustomerID int64       `json:"customer_id" binding:"required,gt=0"`
	Items      []OrderItem `json:"items" binding:"required,min=1"`
	Notes      string      `json:"notes"`
}

// Validate performs fail-fast validation of the request items.
func (r CreateOrderRequest) Validate() error {
	if r.CustomerID <= 0 {
		return Validationf("customer_id must be greater than 0")
	}
	if len(r.Items) == 0 {
		return Validationf("order must contain at least one item")
	}
	for i, item := range r.Items {
		if err := item.Validate(); err != nil {
			return Validationf("item %d: %v", i, err)
		}
	}
	return nil
}

// UpdateOrderStatusRequest is the body of PUT /orders/:id/status
type UpdateOrderStatusRequest struct {
	Status    string `json:"status" binding:"required"`
	PaymentID *int64 `json:"payment_id,omitempty"`
	Reason    string `json:"reason,omitempty"`
}

// CancelOrderRequest is the body of PUT /orders/:id/cancel
type CancelOrderRequest struct {
	Reason string `json:"reason"`
}

// OrderDetails joins an order with the remote customer and payment records.
// Customer and Payment are empty placeholders when the remote fetch failed.
type OrderDetails struct {
	Order    *Order    `json:"order"`
	Customer *Customer `json:"customer"`
	Payment  *Payment  `json:"payment,omitempty"`
}

// OrderFilter narrows an order listing. Zero fields match everything.
type OrderFilter struct {
	CustomerID int64
	Status     OrderStatus
}

// Match reports whether o passes the filter.
func (f OrderFilter) Match(o *Order) bool {
	if f.CustomerID != 0 && o.CustomerID != f.CustomerID {
		return false
	}
	if f.Status != "" && o.Status != f.Status {
		return false
	}
	return true
}
