package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// DefaultPaymentMethod is used when a payment request names no method.
const DefaultPaymentMethod = "CREDIT_CARD"

// Payment represents a payment for a single order
type Payment struct {
	ID            int64           `json:"id"`
	OrderID       int64           `json:"order_id"`
	Amount        decimal.Decimal `json:"amount"`
	Status        PaymentStatus   `json:"status"`
	PaymentMethod string          `json:"payment_method,omitempty"`
	TransactionID string          `json:"transaction_id,omitempty"`
	FailureReason string          `json:"failure_reason,omitempty"`
	ProcessedAt   *time.Time      `json:"processed_at,omitempty"`
	Version       int64           `json:"version"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// NewPayment creates a PENDING payment.
func NewPayment(orderID int64, amount decimal.Decimal, method string) *Payment {
	if method == "" {
		method = DefaultPaymentMethod
	}
	return &Payment{
		OrderID:       orderID,
		Amount:        amount,
		Status:        PaymentStatusPending,
		PaymentMethod: method,
	}
}

func (p *Payment) transition(to PaymentStatus) error {
	if !CanTransitionPayment(p.Status, to) {
		return paymentTransitionError(p.ID, p.Status, to)
	}
	p.Status = to
	return nil
}

// MarkProcessing moves a PENDING payment to PROCESSING.
func (p *Payment) MarkProcessing() error {
	return p.transition(PaymentStatusProcessing)
}

// MarkCompleted settles the payment with the given transaction id.
func (p *Payment) MarkCompleted(transactionID string, at time.Time) error {
	if err := p.transition(PaymentStatusCompleted); err != nil {
		return err
	}
	p.TransactionID = transactionID
	p.ProcessedAt = &at
	return nil
}

// MarkFailed records a failed settlement.
func (p *Payment) MarkFailed(reason string, at time.Time) error {
	if err := p.transition(PaymentStatusFailed); err != nil {
		return err
	}
	p.FailureReason = reasonOr(reason, "payment failed")
	p.ProcessedAt = &at
	return nil
}

// Cancel withdraws a payment that has not started processing.
func (p *Payment) Cancel() error {
	return p.transition(PaymentStatusCancelled)
}

// Clone returns a copy safe to hand out from a store.
func (p *Payment) Clone() *Payment {
	c := *p
	if p.ProcessedAt != nil {
		at := *p.ProcessedAt
		c.ProcessedAt = &at
	}
	return &c
}

// CreatePaymentRequest represents a payment creation request
type CreatePaymentRequest struct {
	OrderID       int64           `json:"order_id" binding:"required,gt=0"`
	Amount        decimal.Decimal `json:"amount"`
	PaymentMethod string          `json:"payment_method,omitempty"`
}

// Validate checks the fields gin binding cannot express.
func (r CreatePaymentRequest) Validate() error {
	if r.OrderID <= 0 {
		return Validationf("order_id must be greater than 0")
	}
	if !r.Amount.IsPositive() {
		return Validationf("amount must be greater than 0")
	}
	return nil
}

// UpdatePaymentStatusRequest is the body of PUT /payments/:id/status
type UpdatePaymentStatusRequest struct {
	Status        string `json:"status" binding:"required"`
	Reason        string `json:"reason,omitempty"`
	TransactionID string `json:"transaction_id,omitempty"`
}

// PaymentFilter narrows a payment listing. Zero fields match everything.
type PaymentFilter struct {
	Status PaymentStatus
}

func (f PaymentFilter) Match(p *Payment) bool {
	return f.Status == "" || p.Status == f.Status
}

// PaymentStatistics is the number of payments in each status
type PaymentStatistics map[PaymentStatus]int64
