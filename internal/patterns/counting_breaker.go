package patterns

import (
	"sync"
	"time"

	"github.com/ashendes/order-fulfillment/internal/metrics"
	log "github.com/sirupsen/logrus"
)

// Defaults for the order saga's payment breaker.
const (
	DefaultFailureThreshold = 5
	DefaultCoolDown         = 300 * time.Second
)

// BreakerSnapshot is a point-in-time view of a CountingBreaker
type BreakerSnapshot struct {
	Name                string     `json:"name"`
	Open                bool       `json:"open"`
	ConsecutiveFailures int        `json:"consecutive_failures"`
	Threshold           int        `json:"threshold"`
	OpenedAt            *time.Time `json:"opened_at,omitempty"`
}

// CountingBreaker gates calls on a count of consecutive failures. It opens
// once the count reaches the threshold and fully resets after the cool-down
// elapses. There is no half-open probe state.
type CountingBreaker struct {
	mu        sync.Mutex
	name      string
	service   string
	threshold int
	coolDown  time.Duration
	now       func() time.Time

	failures int
	open     bool
	openedAt time.Time
}

// NewCountingBreaker creates a closed breaker. Non-positive arguments fall
// back to the defaults.
func NewCountingBreaker(name, service string, threshold int, coolDown time.Duration) *CountingBreaker {
	if threshold <= 0 {
		threshold = DefaultFailureThreshold
	}
	if coolDown <= 0 {
		coolDown = DefaultCoolDown
	}
	metrics.CircuitBreakerState.WithLabelValues(service, name).Set(0)
	return &CountingBreaker{
		name:      name,
		service:   service,
		threshold: threshold,
		coolDown:  coolDown,
		now:       time.Now,
	}
}

// WithClock replaces the time source. Used by tests.
func (b *CountingBreaker) WithClock(now func() time.Time) *CountingBreaker {
	b.mu.Lock()
	b.now = now
	b.mu.Unlock()
	return b
}

// AllowRequest reports whether a call should be attempted. An open breaker
// whose cool-down has elapsed is reset and the call is allowed.
func (b *CountingBreaker) AllowRequest() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.open {
		return true
	}
	if b.now().Sub(b.openedAt) > b.coolDown {
		b.resetLocked()
		log.WithField("circuit", b.name).Info("Circuit breaker cool-down elapsed, closing")
		return true
	}
	return false
}

// RecordSuccess clears the failure count and closes the breaker.
func (b *CountingBreaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.open || b.failures > 0 {
		b.resetLocked()
	}
}

// RecordFailure counts a failed call and opens the breaker at the threshold.
func (b *CountingBreaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failures++
	metrics.CircuitBreakerFailures.WithLabelValues(b.service, b.name).Inc()

	if b.failures >= b.threshold && !b.open {
		b.open = true
		b.openedAt = b.now()
		metrics.CircuitBreakerState.WithLabelValues(b.service, b.name).Set(1)
		log.WithFields(log.Fields{
			"circuit":  b.name,
			"failures": b.failures,
		}).Warn("Circuit breaker opened")
	}
}

// Snapshot returns the current breaker state.
func (b *CountingBreaker) Snapshot() BreakerSnapshot {
	b.mu.Lock()
	defer b.mu.Unlock()

	s := BreakerSnapshot{
		Name:                b.name,
		Open:                b.open,
		ConsecutiveFailures: b.failures,
		Threshold:           b.threshold,
	}
	if b.open {
		at := b.openedAt
		s.OpenedAt = &at
	}
	return s
}

func (b *CountingBreaker) resetLocked() {
	b.failures = 0
	b.open = false
	b.openedAt = time.Time{}
	metrics.CircuitBreakerState.WithLabelValues(b.service, b.name).Set(0)
}
