// Package sagalog records every step the order saga takes, so the path an
// order took through customer validation and payment initiation can be
// inspected after the fact.
package sagalog

import (
	"context"
	"time"
)

// Status is the outcome recorded for a saga step.
type Status string

const (
	StatusStarted   Status = "STARTED"
	StatusStepDone  Status = "STEP_DONE"
	StatusCompleted Status = "COMPLETED"
	StatusFailed    Status = "FAILED"
)

// Step names written by the order saga.
const (
	StepValidateCustomer = "validate_customer"
	StepPersistOrder     = "persist_order"
	StepConfirmOrder     = "confirm_order"
	StepCheckBreaker     = "check_payment_breaker"
	StepInitiatePayment  = "initiate_payment"
)

// Entry is one row of the saga log.
type Entry struct {
	SagaID    string    `json:"saga_id"`
	OrderID   int64     `json:"order_id,omitempty"`
	Status    Status    `json:"status"`
	Step      string    `json:"step"`
	Error     string    `json:"error,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Repository persists saga log entries. Save always appends.
type Repository interface {
	Save(ctx context.Context, entry *Entry) error
	ListByOrder(ctx context.Context, orderID int64) ([]Entry, error)
}

// Nop discards entries. Used when no saga log path is configured.
type Nop struct{}

func (Nop) Save(context.Context, *Entry) error { return nil }

func (Nop) ListByOrder(context.Context, int64) ([]Entry, error) { return nil, nil }
