package payment

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ashendes/order-fulfillment/internal/models"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// Service implements the payment operations behind the HTTP API.
type Service struct {
	repo Repository
	now  func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, now: time.Now}
}

// Create registers a PENDING payment for an order. Each order gets at most one.
func (s *Service) Create(ctx context.Context, req models.CreatePaymentRequest) (*models.Payment, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	p := models.NewPayment(req.OrderID, req.Amount, req.PaymentMethod)
	if err := s.repo.Create(ctx, p); err != nil {
		return nil, fmt.Errorf("create payment: %w", err)
	}

	log.WithFields(log.Fields{
		"payment_id": p.ID,
		"order_id":   p.OrderID,
		"amount":     p.Amount.String(),
	}).Info("Payment created")
	return p, nil
}

func (s *Service) Get(ctx context.Context, id int64) (*models.Payment, error) {
	return s.repo.FindByID(ctx, id)
}

func (s *Service) GetByOrder(ctx context.Context, orderID int64) (*models.Payment, error) {
	return s.repo.FindByOrderID(ctx, orderID)
}

// ExistsByOrder reports whether the order already has a payment.
func (s *Service) ExistsByOrder(ctx context.Context, orderID int64) (bool, error) {
	_, err := s.repo.FindByOrderID(ctx, orderID)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, models.ErrNotFound):
		return false, nil
	default:
		return false, err
	}
}

func (s *Service) List(ctx context.Context, f models.PaymentFilter) ([]models.Payment, error) {
	return s.repo.List(ctx, f)
}

// Statistics returns the number of payments in each status.
func (s *Service) Statistics(ctx context.Context) (models.PaymentStatistics, error) {
	return s.repo.CountByStatus(ctx)
}

// UpdateStatus applies an operator-requested status change through the
// payment's named transitions.
func (s *Service) UpdateStatus(ctx context.Context, id int64, req models.UpdatePaymentStatusRequest) (*models.Payment, error) {
	to, err := models.ParsePaymentStatus(req.Status)
	if err != nil {
		return nil, err
	}

	p, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	now := s.now()
	switch to {
	case models.PaymentStatusProcessing:
		err = p.MarkProcessing()
	case models.PaymentStatusCompleted:
		txn := strings.TrimSpace(req.TransactionID)
		if txn == "" {
			txn = NewTransactionID()
		}
		err = p.MarkCompleted(txn, now)
	case models.PaymentStatusFailed:
		err = p.MarkFailed(req.Reason, now)
	case models.PaymentStatusCancelled:
		err = p.Cancel()
	default:
		err = &models.TransitionError{Entity: "payment", ID: p.ID, From: string(p.Status), To: string(to)}
	}
	if err != nil {
		return nil, err
	}

	if err := s.repo.Update(ctx, p); err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{
		"payment_id": p.ID,
		"status":     p.Status,
	}).Info("Payment status updated")
	return p, nil
}

// NewTransactionID returns a settlement reference of the form TXN-xxxxxxxx.
func NewTransactionID() string {
	return "TXN-" + strings.ToUpper(uuid.New().String()[:8])
}
