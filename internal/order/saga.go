package order

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ashendes/order-fulfillment/internal/metrics"
	"github.com/ashendes/order-fulfillment/internal/models"
	"github.com/ashendes/order-fulfillment/internal/sagalog"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

const reasonBreakerOpen = "payment service unavailable"

// Saga drives order creation: customer validation, local commit and
// payment initiation, in that order.
type Saga struct {
	orders    Repository
	customers CustomerClient
	payments  PaymentClient
	breaker   Breaker
	keys      KeyStore
	steps     sagalog.Repository
	now       func() time.Time
}

type SagaOption func(*Saga)

// WithIdempotency enables deduplication by idempotency key.
func WithIdempotency(keys KeyStore) SagaOption {
	return func(s *Saga) { s.keys = keys }
}

// WithSagaLog records every step to repo.
func WithSagaLog(repo sagalog.Repository) SagaOption {
	return func(s *Saga) { s.steps = repo }
}

func NewSaga(orders Repository, customers CustomerClient, payments PaymentClient, breaker Breaker, opts ...SagaOption) *Saga {
	s := &Saga{
		orders:    orders,
		customers: customers,
		payments:  payments,
		breaker:   breaker,
		steps:     sagalog.Nop{},
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateOrder runs the saga. When payment initiation fails the FAILED order
// is returned together with an error wrapping models.ErrServiceUnavailable.
// When the breaker is open the FAILED order is returned without an error.
func (s *Saga) CreateOrder(ctx context.Context, req models.CreateOrderRequest, idempotencyKey string) (order *models.Order, err error) {
	if err := req.Validate(); err != nil {
		metrics.OrdersTotal.WithLabelValues("validation_failed").Inc()
		return nil, err
	}

	if idempotencyKey != "" && s.keys != nil {
		existing, err := s.keys.Claim(ctx, idempotencyKey)
		if err != nil {
			return nil, err
		}
		if existing != 0 {
			metrics.OrdersTotal.WithLabelValues("replayed").Inc()
			log.WithFields(log.Fields{
				"order_id":        existing,
				"idempotency_key": idempotencyKey,
			}).Info("Returning order for replayed idempotency key")
			return s.orders.FindByID(ctx, existing)
		}
		defer func() {
			if order == nil || order.ID == 0 {
				if rerr := s.keys.Release(ctx, idempotencyKey); rerr != nil {
					log.WithError(rerr).Warn("Failed to release idempotency key")
				}
			}
		}()
	}

	sagaID := uuid.NewString()
	logger := log.WithFields(log.Fields{
		"saga_id":     sagaID,
		"customer_id": req.CustomerID,
	})
	logger.Info("Starting order saga")
	s.record(ctx, sagaID, 0, sagalog.StatusStarted, sagalog.StepValidateCustomer, nil)

	// Step 1: customer must exist before anything is written
	if !s.customers.Validate(ctx, req.CustomerID) {
		metrics.OrdersTotal.WithLabelValues("customer_invalid").Inc()
		s.record(ctx, sagaID, 0, sagalog.StatusFailed, sagalog.StepValidateCustomer, models.ErrCustomerNotFound)
		logger.Warn("Customer validation failed")
		return nil, fmt.Errorf("customer %d: %w", req.CustomerID, models.ErrCustomerNotFound)
	}

	// Step 2: commit PENDING, then CONFIRMED
	o := models.NewOrder(req.CustomerID, req.Notes)
	for _, item := range req.Items {
		o.AddItem(item)
	}
	if err := s.orders.Create(ctx, o); err != nil {
		s.record(ctx, sagaID, 0, sagalog.StatusFailed, sagalog.StepPersistOrder, err)
		return nil, fmt.Errorf("persist order: %w", err)
	}
	logger = logger.WithField("order_id", o.ID)
	s.record(ctx, sagaID, o.ID, sagalog.StatusStepDone, sagalog.StepPersistOrder, nil)

	if idempotencyKey != "" && s.keys != nil {
		if err := s.keys.Bind(ctx, idempotencyKey, o.ID); err != nil {
			logger.WithError(err).Warn("Failed to bind idempotency key")
		}
	}

	if err := save(ctx, s.orders, o, (*models.Order).Confirm); err != nil {
		s.record(ctx, sagaID, o.ID, sagalog.StatusFailed, sagalog.StepConfirmOrder, err)
		return o, fmt.Errorf("confirm order %d: %w", o.ID, err)
	}
	s.record(ctx, sagaID, o.ID, sagalog.StatusStepDone, sagalog.StepConfirmOrder, nil)

	// Step 3: do not call a dependency the breaker has given up on
	if !s.breaker.AllowRequest() {
		metrics.OrdersTotal.WithLabelValues("failed_breaker_open").Inc()
		logger.Warn("Payment circuit open, failing order")
		if err := s.fail(ctx, o, reasonBreakerOpen); err != nil {
			return o, err
		}
		s.record(ctx, sagaID, o.ID, sagalog.StatusFailed, sagalog.StepCheckBreaker, errors.New(reasonBreakerOpen))
		return o, nil
	}

	// Step 4: initiate payment
	if err := save(ctx, s.orders, o, (*models.Order).MarkPaymentProcessing); err != nil {
		s.record(ctx, sagaID, o.ID, sagalog.StatusFailed, sagalog.StepInitiatePayment, err)
		return o, fmt.Errorf("mark order %d payment processing: %w", o.ID, err)
	}

	payment, perr := s.payments.Create(ctx, o.ID, o.TotalAmount, models.DefaultPaymentMethod)
	if perr != nil {
		s.breaker.RecordFailure()
		metrics.OrdersTotal.WithLabelValues("failed_payment").Inc()
		logger.WithError(perr).Error("Payment initiation failed")

		if err := s.fail(ctx, o, "payment initiation failed: "+perr.Error()); err != nil {
			return o, err
		}
		s.record(ctx, sagaID, o.ID, sagalog.StatusFailed, sagalog.StepInitiatePayment, perr)
		if !errors.Is(perr, models.ErrServiceUnavailable) {
			perr = fmt.Errorf("%v: %w", perr, models.ErrServiceUnavailable)
		}
		return o, fmt.Errorf("order %d: payment initiation failed: %w", o.ID, perr)
	}

	s.breaker.RecordSuccess()
	attach := func(ord *models.Order) error {
		ord.AttachPayment(payment.ID)
		return nil
	}
	if err := save(ctx, s.orders, o, attach); err != nil {
		s.record(ctx, sagaID, o.ID, sagalog.StatusFailed, sagalog.StepInitiatePayment, err)
		return o, fmt.Errorf("attach payment %d to order %d: %w", payment.ID, o.ID, err)
	}

	metrics.OrdersTotal.WithLabelValues("payment_processing").Inc()
	s.record(ctx, sagaID, o.ID, sagalog.StatusCompleted, sagalog.StepInitiatePayment, nil)
	logger.WithField("payment_id", payment.ID).Info("Order saga finished, payment pending")
	return o, nil
}

func (s *Saga) fail(ctx context.Context, o *models.Order, reason string) error {
	fail := func(ord *models.Order) error { return ord.Fail(reason) }
	if err := save(ctx, s.orders, o, fail); err != nil {
		log.WithFields(log.Fields{
			"order_id": o.ID,
			"reason":   reason,
			"error":    err.Error(),
		}).Error("Failed to persist failed order")
		return fmt.Errorf("fail order %d: %w", o.ID, err)
	}
	return nil
}

func (s *Saga) record(ctx context.Context, sagaID string, orderID int64, status sagalog.Status, step string, stepErr error) {
	e := &sagalog.Entry{
		SagaID:    sagaID,
		OrderID:   orderID,
		Status:    status,
		Step:      step,
		UpdatedAt: s.now(),
	}
	if stepErr != nil {
		e.Error = stepErr.Error()
	}
	if err := s.steps.Save(ctx, e); err != nil {
		log.WithFields(log.Fields{
			"saga_id": sagaID,
			"step":    step,
			"error":   err.Error(),
		}).Warn("Failed to write saga log")
	}
}

// History returns the recorded saga steps for an order.
func (s *Saga) History(ctx context.Context, orderID int64) ([]sagalog.Entry, error) {
	return s.steps.ListByOrder(ctx, orderID)
}
