package models

// OrderStatus is the lifecycle state of an order
type OrderStatus string

// OrderStatus constants
const (
	OrderStatusPending           OrderStatus = "PENDING"
	OrderStatusConfirmed         OrderStatus = "CONFIRMED"
	OrderStatusPaymentProcessing OrderStatus = "PAYMENT_PROCESSING"
	OrderStatusCompleted         OrderStatus = "COMPLETED"
	OrderStatusFailed            OrderStatus = "FAILED"
	OrderStatusCancelled         OrderStatus = "CANCELLED"
)

// OrderStatuses lists every order status in lifecycle order.
var OrderStatuses = []OrderStatus{
	OrderStatusPending,
	OrderStatusConfirmed,
	OrderStatusPaymentProcessing,
	OrderStatusCompleted,
	OrderStatusFailed,
	OrderStatusCancelled,
}

var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending:           {OrderStatusConfirmed, OrderStatusFailed, OrderStatusCancelled},
	OrderStatusConfirmed:         {OrderStatusPaymentProcessing, OrderStatusFailed, OrderStatusCancelled},
	OrderStatusPaymentProcessing: {OrderStatusCompleted, OrderStatusFailed, OrderStatusCancelled},
}

// CanTransitionOrder reports whether an order may move from one status to another.
func CanTransitionOrder(from, to OrderStatus) bool {
	for _, allowed := range orderTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transition is permitted.
func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusCompleted || s == OrderStatusFailed || s == OrderStatusCancelled
}

// ParseOrderStatus validates a status name received over the wire.
func ParseOrderStatus(s string) (OrderStatus, error) {
	for _, st := range OrderStatuses {
		if string(st) == s {
			return st, nil
		}
	}
	return "", Validationf("unknown order status %q", s)
}

// PaymentStatus is the lifecycle state of a payment
type PaymentStatus string

// PaymentStatus constants
const (
	PaymentStatusPending    PaymentStatus = "PENDING"
	PaymentStatusProcessing PaymentStatus = "PROCESSING"
	PaymentStatusCompleted  PaymentStatus = "COMPLETED"
	PaymentStatusFailed     PaymentStatus = "FAILED"
	PaymentStatusCancelled  PaymentStatus = "CANCELLED"
)

// PaymentStatuses lists every payment status in lifecycle order.
var PaymentStatuses = []PaymentStatus{
	PaymentStatusPending,
	PaymentStatusProcessing,
	PaymentStatusCompleted,
	PaymentStatusFailed,
	PaymentStatusCancelled,
}

var paymentTransitions = map[PaymentStatus][]PaymentStatus{
	PaymentStatusPending:    {PaymentStatusProcessing, PaymentStatusFailed, PaymentStatusCancelled},
	PaymentStatusProcessing: {PaymentStatusCompleted, PaymentStatusFailed},
}

// CanTransitionPayment reports whether a payment may move from one status to another.
func CanTransitionPayment(from, to PaymentStatus) bool {
	for _, allowed := range paymentTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

func (s PaymentStatus) IsTerminal() bool {
	return s == PaymentStatusCompleted || s == PaymentStatusFailed || s == PaymentStatusCancelled
}

// ParsePaymentStatus validates a status name received over the wire.
func ParsePaymentStatus(s string) (PaymentStatus, error) {
	for _, st := range PaymentStatuses {
		if string(st) == s {
			return st, nil
		}
	}
	return "", Validationf("unknown payment status %q", s)
}

func orderTransitionError(id int64, from, to OrderStatus) error {
	return &TransitionError{Entity: "order", ID: id, From: string(from), To: string(to)}
}

func paymentTransitionError(id int64, from, to PaymentStatus) error {
	return &TransitionError{Entity: "payment", ID: id, From: string(from), To: string(to)}
}
