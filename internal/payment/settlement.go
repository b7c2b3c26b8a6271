package payment

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"time"

	"github.com/ashendes/order-fulfillment/internal/models"
)

// ErrDeclined is returned by a settlement executor that rejected the payment.
var ErrDeclined = errors.New("payment declined by gateway")

// SettlementExecutor attempts to settle a single payment with the external
// payment gateway. A nil error means the money moved.
type SettlementExecutor interface {
	Attempt(ctx context.Context, p *models.Payment) error
}

// SettlementFunc adapts a plain function to SettlementExecutor.
type SettlementFunc func(ctx context.Context, p *models.Payment) error

func (f SettlementFunc) Attempt(ctx context.Context, p *models.Payment) error {
	return f(ctx, p)
}

// RandomSettlement approves payments with the given probability.
type RandomSettlement struct {
	rate float64

	mu  sync.Mutex
	rnd *rand.Rand
}

func NewRandomSettlement(successRate float64) *RandomSettlement {
	return &RandomSettlement{
		rate: successRate,
		rnd:  rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (s *RandomSettlement) Attempt(ctx context.Context, _ *models.Payment) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	roll := s.rnd.Float64()
	s.mu.Unlock()
	if roll < s.rate {
		return nil
	}
	return ErrDeclined
}
