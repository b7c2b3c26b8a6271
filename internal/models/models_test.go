package models

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOrderTransitionTable(t *testing.T) {
	legal := map[OrderStatus][]OrderStatus{
		OrderStatusPending:           {OrderStatusConfirmed, OrderStatusFailed, OrderStatusCancelled},
		OrderStatusConfirmed:         {OrderStatusPaymentProcessing, OrderStatusFailed, OrderStatusCancelled},
		OrderStatusPaymentProcessing: {OrderStatusCompleted, OrderStatusFailed, OrderStatusCancelled},
	}
	moves := map[OrderStatus]func(o *Order) error{
		OrderStatusConfirmed:         (*Order).Confirm,
		OrderStatusPaymentProcessing: (*Order).MarkPaymentProcessing,
		OrderStatusCompleted:         func(o *Order) error { return o.Complete(3) },
		OrderStatusFailed:            func(o *Order) error { return o.Fail("declined") },
		OrderStatusCancelled:         func(o *Order) error { return o.Cancel("") },
	}

	for _, from := range OrderStatuses {
		for _, to := range OrderStatuses {
			want := false
			for _, allowed := range legal[from] {
				want = want || allowed == to
			}
			t.Run(string(from)+"->"+string(to), func(t *testing.T) {
				assert.Equal(t, want, CanTransitionOrder(from, to))

				move, ok := moves[to]
				if !ok {
					return
				}
				o := NewOrder(1, "")
				o.Status = from
				err := move(o)
				if want {
					require.NoError(t, err)
					assert.Equal(t, to, o.Status)
					return
				}
				assert.ErrorIs(t, err, ErrInvalidTransition)
				assert.Equal(t, from, o.Status)
				assert.Empty(t, o.FailureReason)
				assert.Nil(t, o.PaymentID)
			})
		}
		assert.Equal(t, from.IsTerminal(), len(legal[from]) == 0, "%s", from)
	}
}

func TestPaymentTransitionTable(t *testing.T) {
	at := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	legal := map[PaymentStatus][]PaymentStatus{
		PaymentStatusPending:    {PaymentStatusProcessing, PaymentStatusFailed, PaymentStatusCancelled},
		PaymentStatusProcessing: {PaymentStatusCompleted, PaymentStatusFailed},
	}
	moves := map[PaymentStatus]func(p *Payment) error{
		PaymentStatusProcessing: (*Payment).MarkProcessing,
		PaymentStatusCompleted:  func(p *Payment) error { return p.MarkCompleted("TXN-1", at) },
		PaymentStatusFailed:     func(p *Payment) error { return p.MarkFailed("declined", at) },
		PaymentStatusCancelled:  (*Payment).Cancel,
	}

	for _, from := range PaymentStatuses {
		for _, to := range PaymentStatuses {
			want := false
			for _, allowed := range legal[from] {
				want = want || allowed == to
			}
			t.Run(string(from)+"->"+string(to), func(t *testing.T) {
				assert.Equal(t, want, CanTransitionPayment(from, to))

				move, ok := moves[to]
				if !ok {
					return
				}
				p := NewPayment(1, decimal.NewFromInt(10), "")
				p.Status = from
				err := move(p)
				if want {
					require.NoError(t, err)
					assert.Equal(t, to, p.Status)
					return
				}
				assert.ErrorIs(t, err, ErrInvalidTransition)
				assert.Equal(t, from, p.Status)
				assert.Empty(t, p.TransactionID)
				assert.Empty(t, p.FailureReason)
				assert.Nil(t, p.ProcessedAt)
			})
		}
		assert.Equal(t, from.IsTerminal(), len(legal[from]) == 0, "%s", from)
	}
}

func TestOrder_TotalIsSumOfItems(t *testing.T) {
	o := NewOrder(1, "")
	assert.True(t, o.TotalAmount.IsZero())

	o.AddItem(NewOrderItem("Book", 2, decimal.RequireFromString("10.00")))
	o.AddItem(NewOrderItem("Pen", 3, decimal.RequireFromString("0.10")))
	assert.True(t, o.TotalAmount.Equal(decimal.RequireFromString("20.30")), o.TotalAmount.String())
	assert.True(t, o.Items[1].TotalPrice.Equal(decimal.RequireFromString("0.30")))

	o.RemoveItem(0)
	assert.True(t, o.TotalAmount.Equal(decimal.RequireFromString("0.30")))
	o.RemoveItem(5)
	assert.Len(t, o.Items, 1)
}

func TestOrder_IllegalTransitionLeavesStateUnchanged(t *testing.T) {
	o := NewOrder(1, "")
	o.ID = 9

	err := o.Complete(3)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	var te *TransitionError
	require.True(t, errors.As(err, &te))
	assert.Equal(t, "PENDING", te.From)
	assert.Equal(t, "COMPLETED", te.To)
	assert.Equal(t, OrderStatusPending, o.Status)
	assert.Nil(t, o.PaymentID)
}

func TestOrder_FailureReasonAlwaysSet(t *testing.T) {
	o := NewOrder(1, "")
	require.NoError(t, o.Fail("  "))
	assert.Equal(t, "order processing failed", o.FailureReason)

	c := NewOrder(1, "")
	require.NoError(t, c.Cancel(""))
	assert.Equal(t, "order cancelled", c.FailureReason)
}

func TestOrder_CloneIsDeep(t *testing.T) {
	o := NewOrder(1, "")
	o.AddItem(NewOrderItem("Book", 1, decimal.NewFromInt(5)))
	o.AttachPayment(4)

	c := o.Clone()
	c.Items[0].ProductName = "Changed"
	*c.PaymentID = 8
	assert.Equal(t, "Book", o.Items[0].ProductName)
	assert.Equal(t, int64(4), *o.PaymentID)
}

func TestCreateOrderRequest_Validate(t *testing.T) {
	valid := CreateOrderRequest{
		CustomerID: 1,
		Items:      []OrderItem{{ProductName: "Book", Quantity: 1, UnitPrice: decimal.NewFromInt(1), ProductCategory: CategoryBooks}},
	}
	assert.NoError(t, valid.Validate())

	tests := map[string]func(r *CreateOrderRequest){
		"no customer":    func(r *CreateOrderRequest) { r.CustomerID = 0 },
		"no items":       func(r *CreateOrderRequest) { r.Items = nil },
		"blank name":     func(r *CreateOrderRequest) { r.Items[0].ProductName = " " },
		"zero quantity":  func(r *CreateOrderRequest) { r.Items[0].Quantity = 0 },
		"zero price":     func(r *CreateOrderRequest) { r.Items[0].UnitPrice = decimal.Zero },
		"bad category":   func(r *CreateOrderRequest) { r.Items[0].ProductCategory = "WEAPONS" },
		"negative price": func(r *CreateOrderRequest) { r.Items[0].UnitPrice = decimal.NewFromInt(-1) },
	}
	for name, mutate := range tests {
		t.Run(name, func(t *testing.T) {
			r := valid
			r.Items = append([]OrderItem(nil), valid.Items...)
			mutate(&r)
			assert.ErrorIs(t, r.Validate(), ErrValidation)
		})
	}
}

func TestPayment_Lifecycle(t *testing.T) {
	at := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	p := NewPayment(1, decimal.NewFromInt(10), "")
	assert.Equal(t, DefaultPaymentMethod, p.PaymentMethod)

	assert.ErrorIs(t, p.MarkCompleted("TXN-1", at), ErrInvalidTransition)
	require.NoError(t, p.MarkProcessing())
	assert.ErrorIs(t, p.Cancel(), ErrInvalidTransition)
	require.NoError(t, p.MarkFailed("", at))
	assert.Equal(t, "payment failed", p.FailureReason)
	assert.Equal(t, at, *p.ProcessedAt)
}

func TestParseStatus(t *testing.T) {
	s, err := ParseOrderStatus("PAYMENT_PROCESSING")
	require.NoError(t, err)
	assert.Equal(t, OrderStatusPaymentProcessing, s)

	_, err = ParseOrderStatus("payment_processing")
	assert.ErrorIs(t, err, ErrValidation)

	_, err = ParsePaymentStatus("REFUNDED")
	assert.ErrorIs(t, err, ErrValidation)
}

func TestNotFoundWrappers(t *testing.T) {
	for _, err := range []error{ErrOrderNotFound, ErrCustomerNotFound, ErrPaymentNotFound} {
		assert.ErrorIs(t, err, ErrNotFound)
	}
}
