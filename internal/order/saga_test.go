package order

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/ashendes/order-fulfillment/internal/cache"
	"github.com/ashendes/order-fulfillment/internal/models"
	"github.com/ashendes/order-fulfillment/internal/patterns"
	"github.com/ashendes/order-fulfillment/internal/sagalog"
	"github.com/ashendes/order-fulfillment/internal/sagalog/sqlite"
	"github.com/ashendes/order-fulfillment/internal/storage/memory"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateOrder_Success(t *testing.T) {
	repo := memory.NewOrderStore()
	payments := acceptingPayments(77)
	breaker := &mockBreaker{allow: true}
	saga := NewSaga(repo, validCustomers(), payments, breaker)

	o, err := saga.CreateOrder(context.Background(), orderRequest(), "")
	require.NoError(t, err)

	assert.Equal(t, models.OrderStatusPaymentProcessing, o.Status)
	require.NotNil(t, o.PaymentID)
	assert.Equal(t, int64(77), *o.PaymentID)
	assert.True(t, o.TotalAmount.Equal(decimal.RequireFromString("25.00")))
	assert.Empty(t, o.FailureReason)

	assert.Equal(t, 1, payments.createCalls)
	assert.True(t, payments.lastAmount.Equal(decimal.RequireFromString("25.00")))
	assert.Equal(t, models.DefaultPaymentMethod, payments.lastMethod)
	assert.Equal(t, 1, breaker.successes)

	stored, err := repo.FindByID(context.Background(), o.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusPaymentProcessing, stored.Status)
	assert.Equal(t, int64(77), *stored.PaymentID)
	assert.Len(t, stored.Items, 2)
}

func TestCreateOrder_InvalidCustomerPersistsNothing(t *testing.T) {
	repo := memory.NewOrderStore()
	payments := acceptingPayments(1)
	customers := &mockCustomers{validateFn: func(context.Context, int64) bool { return false }}
	saga := NewSaga(repo, customers, payments, &mockBreaker{allow: true})

	o, err := saga.CreateOrder(context.Background(), orderRequest(), "")
	assert.Nil(t, o)
	assert.ErrorIs(t, err, models.ErrCustomerNotFound)

	all, _ := repo.List(context.Background(), models.OrderFilter{})
	assert.Empty(t, all)
	assert.Zero(t, payments.createCalls)
}

func TestCreateOrder_ValidationFailsFast(t *testing.T) {
	customers := &mockCustomers{validateFn: func(context.Context, int64) bool {
		t.Fatal("customer service must not be called")
		return false
	}}
	saga := NewSaga(memory.NewOrderStore(), customers, acceptingPayments(1), &mockBreaker{allow: true})

	req := orderRequest()
	req.Items[1].Quantity = 0

	_, err := saga.CreateOrder(context.Background(), req, "")
	assert.ErrorIs(t, err, models.ErrValidation)
}

func TestCreateOrder_BreakerOpen(t *testing.T) {
	repo := memory.NewOrderStore()
	payments := acceptingPayments(1)
	saga := NewSaga(repo, validCustomers(), payments, &mockBreaker{allow: false})

	o, err := saga.CreateOrder(context.Background(), orderRequest(), "")
	require.NoError(t, err)

	assert.Equal(t, models.OrderStatusFailed, o.Status)
	assert.Equal(t, "payment service unavailable", o.FailureReason)
	assert.Nil(t, o.PaymentID)
	assert.Zero(t, payments.createCalls)

	stored, _ := repo.FindByID(context.Background(), o.ID)
	assert.Equal(t, models.OrderStatusFailed, stored.Status)
}

func TestCreateOrder_PaymentFailure(t *testing.T) {
	repo := memory.NewOrderStore()
	payments := &mockPayments{
		createFn: func(context.Context, int64, decimal.Decimal, string) (*models.Payment, error) {
			return nil, fmt.Errorf("create payment: timeout: %w", models.ErrServiceUnavailable)
		},
	}
	breaker := &mockBreaker{allow: true}
	saga := NewSaga(repo, validCustomers(), payments, breaker)

	o, err := saga.CreateOrder(context.Background(), orderRequest(), "")
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrServiceUnavailable)

	require.NotNil(t, o)
	assert.Equal(t, models.OrderStatusFailed, o.Status)
	assert.True(t, strings.HasPrefix(o.FailureReason, "payment initiation failed: "))
	assert.Equal(t, 1, breaker.failures)
	assert.Zero(t, breaker.successes)

	stored, _ := repo.FindByID(context.Background(), o.ID)
	assert.Equal(t, models.OrderStatusFailed, stored.Status)
}

func TestCreateOrder_PaymentErrorIsAlwaysUnavailable(t *testing.T) {
	payments := &mockPayments{
		createFn: func(context.Context, int64, decimal.Decimal, string) (*models.Payment, error) {
			return nil, errors.New("connection reset")
		},
	}
	saga := NewSaga(memory.NewOrderStore(), validCustomers(), payments, &mockBreaker{allow: true})

	_, err := saga.CreateOrder(context.Background(), orderRequest(), "")
	assert.ErrorIs(t, err, models.ErrServiceUnavailable)
}

func TestCreateOrder_CountingBreakerStopsCallingPayments(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	breaker := patterns.NewCountingBreaker("payment-saga-test", "test", 5, 300*time.Second).
		WithClock(func() time.Time { return now })
	payments := &mockPayments{
		createFn: func(context.Context, int64, decimal.Decimal, string) (*models.Payment, error) {
			return nil, models.ErrServiceUnavailable
		},
	}
	saga := NewSaga(memory.NewOrderStore(), validCustomers(), payments, breaker)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := saga.CreateOrder(ctx, orderRequest(), "")
		assert.ErrorIs(t, err, models.ErrServiceUnavailable)
	}
	assert.Equal(t, 5, payments.createCalls)

	o, err := saga.CreateOrder(ctx, orderRequest(), "")
	require.NoError(t, err)
	assert.Equal(t, "payment service unavailable", o.FailureReason)
	assert.Equal(t, 5, payments.createCalls)

	now = now.Add(301 * time.Second)
	_, _ = saga.CreateOrder(ctx, orderRequest(), "")
	assert.Equal(t, 6, payments.createCalls)
}

func TestCreateOrder_IdempotencyKey(t *testing.T) {
	mr := miniredis.RunT(t)
	keys := cache.NewIdempotencyStoreWithClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}), "order-service", time.Hour)
	repo := memory.NewOrderStore()
	payments := acceptingPayments(9)
	saga := NewSaga(repo, validCustomers(), payments, &mockBreaker{allow: true}, WithIdempotency(keys))
	ctx := context.Background()

	first, err := saga.CreateOrder(ctx, orderRequest(), "key-1")
	require.NoError(t, err)

	second, err := saga.CreateOrder(ctx, orderRequest(), "key-1")
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 1, payments.createCalls)

	all, _ := repo.List(ctx, models.OrderFilter{})
	assert.Len(t, all, 1)
}

func TestCreateOrder_IdempotencyKeyReleasedWhenNothingPersisted(t *testing.T) {
	mr := miniredis.RunT(t)
	keys := cache.NewIdempotencyStoreWithClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}), "order-service", time.Hour)
	valid := false
	customers := &mockCustomers{validateFn: func(context.Context, int64) bool { return valid }}
	saga := NewSaga(memory.NewOrderStore(), customers, acceptingPayments(1), &mockBreaker{allow: true}, WithIdempotency(keys))
	ctx := context.Background()

	_, err := saga.CreateOrder(ctx, orderRequest(), "key-2")
	assert.ErrorIs(t, err, models.ErrCustomerNotFound)

	valid = true
	o, err := saga.CreateOrder(ctx, orderRequest(), "key-2")
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusPaymentProcessing, o.Status)
}

func TestCreateOrder_WritesSagaLog(t *testing.T) {
	steps, err := sqlite.Open(filepath.Join(t.TempDir(), "saga.db"))
	require.NoError(t, err)
	defer steps.Close()

	saga := NewSaga(memory.NewOrderStore(), validCustomers(), acceptingPayments(3), &mockBreaker{allow: true}, WithSagaLog(steps))
	o, err := saga.CreateOrder(context.Background(), orderRequest(), "")
	require.NoError(t, err)

	history, err := saga.History(context.Background(), o.ID)
	require.NoError(t, err)
	require.Len(t, history, 4)
	assert.Equal(t, sagalog.StatusStarted, history[0].Status)
	assert.Equal(t, sagalog.StepValidateCustomer, history[0].Step)
	assert.Equal(t, sagalog.StatusCompleted, history[3].Status)
	assert.Equal(t, sagalog.StepInitiatePayment, history[3].Step)
	for _, e := range history {
		assert.Equal(t, history[0].SagaID, e.SagaID)
	}
}
