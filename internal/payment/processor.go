package payment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ashendes/order-fulfillment/internal/metrics"
	"github.com/ashendes/order-fulfillment/internal/models"
	log "github.com/sirupsen/logrus"
)

const (
	DefaultBatchSize = 10
	DefaultCutoff    = time.Minute

	// DefaultItemTimeout bounds one payment once it has been picked up. The
	// item keeps running on its own deadline after the sweep is cancelled.
	DefaultItemTimeout = 30 * time.Second
)

// Processor settles PENDING payments in bounded batches.
type Processor struct {
	repo       Repository
	settlement SettlementExecutor
	orders     OrderNotifier
	batchSize  int
	cutoff     time.Duration
	itemWait   time.Duration
	now        func() time.Time
}

// ProcessorOption customises a Processor.
type ProcessorOption func(*Processor)

func WithBatchSize(n int) ProcessorOption {
	return func(p *Processor) {
		if n > 0 {
			p.batchSize = n
		}
	}
}

// WithCutoff sets how old a PENDING payment must be before it is picked up.
func WithCutoff(d time.Duration) ProcessorOption {
	return func(p *Processor) {
		if d >= 0 {
			p.cutoff = d
		}
	}
}

// WithItemTimeout sets how long a single payment may take to settle.
func WithItemTimeout(d time.Duration) ProcessorOption {
	return func(p *Processor) {
		if d > 0 {
			p.itemWait = d
		}
	}
}

func WithClock(now func() time.Time) ProcessorOption {
	return func(p *Processor) { p.now = now }
}

// NewProcessor builds a batch processor. orders may be nil, in which case
// resolved payments are not reported anywhere.
func NewProcessor(repo Repository, settlement SettlementExecutor, orders OrderNotifier, opts ...ProcessorOption) *Processor {
	p := &Processor{
		repo:       repo,
		settlement: settlement,
		orders:     orders,
		batchSize:  DefaultBatchSize,
		cutoff:     DefaultCutoff,
		itemWait:   DefaultItemTimeout,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// SweepResult summarises one ProcessEligiblePayments run.
type SweepResult struct {
	Selected  int
	Completed int
	Failed    int
	Errored   int
	Skipped   int
}

// ProcessEligiblePayments settles up to one batch of eligible payments.
// A failure on one payment never stops the rest of the batch. Cancelling ctx
// stops the sweep between payments; the one in flight is finished first.
func (p *Processor) ProcessEligiblePayments(ctx context.Context) (SweepResult, error) {
	var res SweepResult

	eligible, err := p.repo.ListEligible(ctx, p.now().Add(-p.cutoff), p.batchSize)
	if err != nil {
		return res, fmt.Errorf("list eligible payments: %w", err)
	}
	if len(eligible) > p.batchSize {
		eligible = eligible[:p.batchSize]
	}
	res.Selected = len(eligible)
	if res.Selected == 0 {
		log.Debug("No eligible payments to process")
		return res, nil
	}

	log.WithField("count", res.Selected).Info("Processing eligible payments")
	for i := range eligible {
		if ctx.Err() != nil {
			break
		}
		pay := eligible[i]
		itemCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.itemWait)
		out := p.processOne(itemCtx, &pay)
		cancel()
		switch out {
		case outcomeCompleted:
			res.Completed++
		case outcomeFailed:
			res.Failed++
		case outcomeSkipped:
			res.Skipped++
		default:
			res.Errored++
		}
		metrics.PaymentSweepResults.WithLabelValues(string(out)).Inc()
	}

	log.WithFields(log.Fields{
		"selected":  res.Selected,
		"completed": res.Completed,
		"failed":    res.Failed,
		"errored":   res.Errored,
		"skipped":   res.Skipped,
	}).Info("Payment batch finished")
	return res, nil
}

type outcome string

const (
	outcomeCompleted outcome = "completed"
	outcomeFailed    outcome = "failed"
	outcomeErrored   outcome = "errored"
	outcomeSkipped   outcome = "skipped"
)

func (p *Processor) processOne(ctx context.Context, pay *models.Payment) (out outcome) {
	claimed := false
	var owned int64
	defer func() {
		if r := recover(); r != nil {
			cause := fmt.Errorf("panic: %v", r)
			if !claimed {
				log.WithFields(log.Fields{"payment_id": pay.ID, "error": cause.Error()}).Error("Payment claim panicked")
				out = outcomeErrored
				return
			}
			out = p.forceFail(ctx, pay, owned, cause)
		}
	}()

	if err := p.claim(ctx, pay); err != nil {
		fields := log.Fields{"payment_id": pay.ID, "order_id": pay.OrderID, "error": err.Error()}
		if errors.Is(err, models.ErrConcurrentUpdate) || errors.Is(err, models.ErrInvalidTransition) {
			log.WithFields(fields).Info("Payment taken by another writer, skipping")
			return outcomeSkipped
		}
		log.WithFields(fields).Error("Could not claim payment, leaving it PENDING")
		return outcomeErrored
	}
	claimed, owned = true, pay.Version

	if err := p.settle(ctx, pay); err != nil {
		return p.forceFail(ctx, pay, owned, err)
	}

	if pay.Status == models.PaymentStatusCompleted {
		metrics.PaymentAmount.Observe(pay.Amount.InexactFloat64())
		p.notify(ctx, pay)
		return outcomeCompleted
	}
	p.notify(ctx, pay)
	return outcomeFailed
}

// claim moves pay from PENDING to PROCESSING. The versioned write fails with
// models.ErrConcurrentUpdate when someone else got there first.
func (p *Processor) claim(ctx context.Context, pay *models.Payment) error {
	if err := pay.MarkProcessing(); err != nil {
		return err
	}
	if err := p.repo.Update(ctx, pay); err != nil {
		return fmt.Errorf("persist processing: %w", err)
	}
	return nil
}

// settle moves a claimed payment to COMPLETED or FAILED.
func (p *Processor) settle(ctx context.Context, pay *models.Payment) error {
	attemptErr := p.settlement.Attempt(ctx, pay)
	now := p.now()
	if attemptErr == nil {
		if err := pay.MarkCompleted(NewTransactionID(), now); err != nil {
			return err
		}
	} else {
		if err := pay.MarkFailed(attemptErr.Error(), now); err != nil {
			return err
		}
	}
	if err := p.repo.Update(ctx, pay); err != nil {
		return fmt.Errorf("persist %s: %w", pay.Status, err)
	}

	log.WithFields(log.Fields{
		"payment_id":     pay.ID,
		"order_id":       pay.OrderID,
		"status":         pay.Status,
		"transaction_id": pay.TransactionID,
	}).Info("Payment settled")
	return nil
}

// forceFail records an internal processing error on a payment this worker
// claimed. The stored copy is reloaded first since the in-flight one may hold
// a stale version; it is left alone if anyone wrote it after the claim.
func (p *Processor) forceFail(ctx context.Context, pay *models.Payment, owned int64, cause error) outcome {
	reason := fmt.Errorf("%w: %v", models.ErrInternalProcessing, cause).Error()
	fields := log.Fields{
		"payment_id": pay.ID,
		"order_id":   pay.OrderID,
		"error":      cause.Error(),
	}

	stored, err := p.repo.FindByID(ctx, pay.ID)
	if err != nil {
		log.WithFields(fields).WithError(err).Error("Could not reload payment after processing error")
		return outcomeErrored
	}
	if stored.Version != owned {
		log.WithFields(fields).WithField("status", stored.Status).Warn("Payment changed after claim, not failing it")
		return outcomeErrored
	}
	if err := stored.MarkFailed(reason, p.now()); err != nil {
		log.WithFields(fields).WithError(err).Warn("Payment already resolved after processing error")
		return outcomeErrored
	}
	if err := p.repo.Update(ctx, stored); err != nil {
		log.WithFields(fields).WithError(err).Error("Could not mark payment as failed")
		return outcomeErrored
	}

	log.WithFields(fields).Error("Payment failed with internal processing error")
	*pay = *stored
	p.notify(ctx, pay)
	return outcomeErrored
}

func (p *Processor) notify(ctx context.Context, pay *models.Payment) {
	if p.orders == nil {
		return
	}
	switch pay.Status {
	case models.PaymentStatusCompleted:
		p.orders.MarkCompleted(ctx, pay.OrderID, pay.ID)
	case models.PaymentStatusFailed:
		p.orders.Cancel(ctx, pay.OrderID, pay.FailureReason)
	}
}

// Run calls ProcessEligiblePayments every interval until ctx is cancelled.
func (p *Processor) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	log.WithField("interval", interval.String()).Info("Payment processor started")
	for {
		select {
		case <-ctx.Done():
			log.Info("Payment processor stopped")
			return
		case <-ticker.C:
			if _, err := p.ProcessEligiblePayments(ctx); err != nil {
				log.WithError(err).Error("Payment batch failed")
			}
		}
	}
}
