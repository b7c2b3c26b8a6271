package patterns

import (
	"errors"
	"fmt"
	"time"

	"github.com/ashendes/order-fulfillment/internal/metrics"
	"github.com/ashendes/order-fulfillment/internal/models"
	log "github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"
)

// ClientBreaker wraps gobreaker with metrics for one outbound client
type ClientBreaker struct {
	cb      *gobreaker.CircuitBreaker
	name    string
	service string
}

// ClientBreakerStatus is reported by the circuit-status endpoint
type ClientBreakerStatus struct {
	Name  string `json:"name"`
	State string `json:"state"`
	Value int    `json:"value"`
}

// NewClientBreaker creates a ratio-based breaker reporting to Prometheus
func NewClientBreaker(name, service string) *ClientBreaker {
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 3,
		Interval:    15 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 3 && failureRatio >= 0.6
		},
		OnStateChange: func(cbName string, from gobreaker.State, to gobreaker.State) {
			metrics.CircuitBreakerState.WithLabelValues(service, cbName).Set(float64(stateValue(to)))

			log.WithFields(log.Fields{
				"circuit": cbName,
				"from":    from.String(),
				"to":      to.String(),
			}).Info("Client circuit breaker state changed")
		},
	})

	metrics.CircuitBreakerState.WithLabelValues(service, name).Set(0)

	return &ClientBreaker{cb: cb, name: name, service: service}
}

// Do runs fn through the breaker. Errors wrapped as Permanent are returned
// to the caller but do not count as breaker failures.
func (b *ClientBreaker) Do(fn func() error) error {
	var permanent *PermanentError
	_, err := b.cb.Execute(func() (interface{}, error) {
		if err := fn(); err != nil {
			if errors.As(err, &permanent) {
				return nil, nil
			}
			return nil, err
		}
		return nil, nil
	})
	if permanent != nil {
		return permanent.Err
	}
	if err != nil {
		metrics.CircuitBreakerFailures.WithLabelValues(b.service, b.name).Inc()
		return b.formatError(err)
	}
	return nil
}

// Status returns the breaker name and state
func (b *ClientBreaker) Status() ClientBreakerStatus {
	st := b.cb.State()
	return ClientBreakerStatus{Name: b.name, State: st.String(), Value: stateValue(st)}
}

func (b *ClientBreaker) formatError(err error) error {
	switch {
	case errors.Is(err, gobreaker.ErrOpenState):
		return fmt.Errorf("circuit breaker %s is open: %w", b.name, models.ErrServiceUnavailable)
	case errors.Is(err, gobreaker.ErrTooManyRequests):
		return fmt.Errorf("circuit breaker %s: too many requests in half-open state: %w", b.name, models.ErrServiceUnavailable)
	}
	return err
}

// stateValue maps a state to 0=closed, 1=open, 2=half-open
func stateValue(s gobreaker.State) int {
	switch s {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateOpen:
		return 1
	case gobreaker.StateHalfOpen:
		return 2
	default:
		return -1
	}
}

// PermanentError marks an outcome that is the remote's answer, not its failure
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string { return e.Err.Error() }

func (e *PermanentError) Unwrap() error { return e.Err }

// Permanent wraps err so ClientBreaker.Do does not count it as a failure.
func Permanent(err error) error {
	return &PermanentError{Err: err}
}
