package patterns

import (
	"context"
	"time"
)

// Call timeouts for the remote dependencies.
const (
	CustomerTimeout    = 5 * time.Second
	PaymentTimeout     = 10 * time.Second
	OrderStatusTimeout = 5 * time.Second
)

// WithTimeout bounds parent by d. A non-positive d leaves parent unbounded.
func WithTimeout(parent context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(parent)
	}
	return context.WithTimeout(parent, d)
}

// OrDefault returns d, or fallback when d is not positive.
func OrDefault(d, fallback time.Duration) time.Duration {
	if d <= 0 {
		return fallback
	}
	return d
}
