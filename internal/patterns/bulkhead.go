package patterns

import (
	"context"
	"fmt"
	"time"

	"github.com/ashendes/order-fulfillment/internal/metrics"
	"github.com/ashendes/order-fulfillment/internal/models"
)

// DefaultBulkheadWait bounds how long a caller waits for a free slot.
const DefaultBulkheadWait = 1 * time.Second

// Bulkhead limits concurrent calls to one dependency
type Bulkhead struct {
	semaphore chan struct{}
	wait      time.Duration
	name      string
	service   string
}

// NewBulkhead creates a bulkhead with the given capacity
func NewBulkhead(size int, name, service string) *Bulkhead {
	if size <= 0 {
		size = 1
	}
	return &Bulkhead{
		semaphore: make(chan struct{}, size),
		wait:      DefaultBulkheadWait,
		name:      name,
		service:   service,
	}
}

// Execute runs fn once a slot is free. It gives up when the wait elapses or
// ctx is done, whichever comes first.
func (b *Bulkhead) Execute(ctx context.Context, fn func() error) error {
	timer := time.NewTimer(b.wait)
	defer timer.Stop()

	select {
	case b.semaphore <- struct{}{}:
		metrics.BulkheadActiveRequests.WithLabelValues(b.service, b.name).Inc()
		defer func() {
			<-b.semaphore
			metrics.BulkheadActiveRequests.WithLabelValues(b.service, b.name).Dec()
		}()
		return fn()

	case <-timer.C:
		metrics.BulkheadRejectedRequests.WithLabelValues(b.service, b.name).Inc()
		return fmt.Errorf("bulkhead %s: timeout acquiring slot: %w", b.name, models.ErrServiceUnavailable)

	case <-ctx.Done():
		metrics.BulkheadRejectedRequests.WithLabelValues(b.service, b.name).Inc()
		return fmt.Errorf("bulkhead %s: %w", b.name, ctx.Err())
	}
}

