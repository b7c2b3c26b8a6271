package models

import (
	"errors"
	"fmt"
	"time"
)

// Error taxonomy shared by all three services. Callers classify with errors.Is.
var (
	ErrNotFound           = errors.New("not found")
	ErrAlreadyExists      = errors.New("already exists")
	ErrInvalidTransition  = errors.New("invalid state transition")
	ErrServiceUnavailable = errors.New("service unavailable")
	ErrValidation         = errors.New("validation failed")
	ErrInternalProcessing = errors.New("internal processing error")
	ErrConcurrentUpdate   = errors.New("concurrent modification")
)

var (
	ErrOrderNotFound    = fmt.Errorf("order %w", ErrNotFound)
	ErrCustomerNotFound = fmt.Errorf("customer %w", ErrNotFound)
	ErrPaymentNotFound  = fmt.Errorf("payment %w", ErrNotFound)
)

// TransitionError reports an illegal status move on an order or a payment.
type TransitionError struct {
	Entity string
	ID     int64
	From   string
	To     string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("%s %d: cannot transition from %s to %s", e.Entity, e.ID, e.From, e.To)
}

// Is lets errors.Is(err, ErrInvalidTransition) match a *TransitionError.
func (e *TransitionError) Is(target error) bool {
	return target == ErrInvalidTransition
}

// Validationf wraps ErrValidation with a formatted detail.
func Validationf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// ErrorResponse is the JSON body returned for every failed request
type ErrorResponse struct {
	Status    int       `json:"status"`
	Message   string    `json:"message"`
	ErrorCode string    `json:"error_code"`
	Timestamp time.Time `json:"timestamp"`
}
