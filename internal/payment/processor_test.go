package payment

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ashendes/order-fulfillment/internal/models"
	"github.com/ashendes/order-fulfillment/internal/storage/memory"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockNotifier struct {
	mu        sync.Mutex
	completed map[int64]int64
	cancelled map[int64]string
	calls     int
}

func newMockNotifier() *mockNotifier {
	return &mockNotifier{completed: map[int64]int64{}, cancelled: map[int64]string{}}
}

func (m *mockNotifier) MarkCompleted(_ context.Context, orderID, paymentID int64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.completed[orderID] = paymentID
	m.calls++
	return true
}

func (m *mockNotifier) Cancel(_ context.Context, orderID int64, reason string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cancelled[orderID] = reason
	m.calls++
	return true
}

type clock struct{ now time.Time }

func (c *clock) Now() time.Time { return c.now }

func newClock() *clock {
	return &clock{now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func seedPayments(t *testing.T, repo *memory.PaymentStore, n int) []*models.Payment {
	t.Helper()
	out := make([]*models.Payment, 0, n)
	for i := 1; i <= n; i++ {
		p := models.NewPayment(int64(i), decimal.NewFromInt(int64(10*i)), "")
		require.NoError(t, repo.Create(context.Background(), p))
		out = append(out, p)
	}
	return out
}

func approveAll() SettlementExecutor {
	return SettlementFunc(func(context.Context, *models.Payment) error { return nil })
}

func TestProcessEligible_CompletesAndNotifies(t *testing.T) {
	clk := newClock()
	repo := memory.NewPaymentStore().WithClock(clk.Now)
	seeded := seedPayments(t, repo, 2)
	clk.now = clk.now.Add(2 * time.Minute)
	orders := newMockNotifier()

	res, err := NewProcessor(repo, approveAll(), orders, WithClock(clk.Now)).ProcessEligiblePayments(context.Background())
	require.NoError(t, err)
	assert.Equal(t, SweepResult{Selected: 2, Completed: 2}, res)

	for _, p := range seeded {
		stored, err := repo.FindByID(context.Background(), p.ID)
		require.NoError(t, err)
		assert.Equal(t, models.PaymentStatusCompleted, stored.Status)
		assert.True(t, strings.HasPrefix(stored.TransactionID, "TXN-"))
		assert.Len(t, stored.TransactionID, 12)
		require.NotNil(t, stored.ProcessedAt)
		assert.Equal(t, clk.now, *stored.ProcessedAt)
		assert.Equal(t, p.ID, orders.completed[p.OrderID])
	}
}

func TestProcessEligible_DeclinedPaymentFails(t *testing.T) {
	clk := newClock()
	repo := memory.NewPaymentStore().WithClock(clk.Now)
	seeded := seedPayments(t, repo, 1)
	clk.now = clk.now.Add(time.Hour)
	orders := newMockNotifier()
	decline := SettlementFunc(func(context.Context, *models.Payment) error { return ErrDeclined })

	res, err := NewProcessor(repo, decline, orders, WithClock(clk.Now)).ProcessEligiblePayments(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Failed)

	stored, _ := repo.FindByID(context.Background(), seeded[0].ID)
	assert.Equal(t, models.PaymentStatusFailed, stored.Status)
	assert.Equal(t, ErrDeclined.Error(), stored.FailureReason)
	assert.NotNil(t, stored.ProcessedAt)
	assert.Equal(t, ErrDeclined.Error(), orders.cancelled[seeded[0].OrderID])
}

func TestProcessEligible_RespectsCutoff(t *testing.T) {
	clk := newClock()
	repo := memory.NewPaymentStore().WithClock(clk.Now)
	seedPayments(t, repo, 1)
	clk.now = clk.now.Add(30 * time.Second)

	res, err := NewProcessor(repo, approveAll(), nil, WithClock(clk.Now)).ProcessEligiblePayments(context.Background())
	require.NoError(t, err)
	assert.Zero(t, res.Selected)
}

func TestProcessEligible_BatchIsHardLimit(t *testing.T) {
	clk := newClock()
	repo := memory.NewPaymentStore().WithClock(clk.Now)
	seedPayments(t, repo, 15)
	clk.now = clk.now.Add(time.Hour)
	proc := NewProcessor(repo, approveAll(), nil, WithClock(clk.Now))

	res, err := proc.ProcessEligiblePayments(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 10, res.Selected)

	pending, _ := repo.List(context.Background(), models.PaymentFilter{Status: models.PaymentStatusPending})
	assert.Len(t, pending, 5)
	for _, p := range pending {
		assert.Greater(t, p.ID, int64(10), "oldest payments go first")
	}

	res, err = proc.ProcessEligiblePayments(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 5, res.Selected)
}

func TestProcessEligible_PanicIsContained(t *testing.T) {
	clk := newClock()
	repo := memory.NewPaymentStore().WithClock(clk.Now)
	seeded := seedPayments(t, repo, 3)
	clk.now = clk.now.Add(time.Hour)
	orders := newMockNotifier()
	flaky := SettlementFunc(func(_ context.Context, p *models.Payment) error {
		if p.ID == seeded[1].ID {
			panic("gateway exploded")
		}
		return nil
	})

	res, err := NewProcessor(repo, flaky, orders, WithClock(clk.Now)).ProcessEligiblePayments(context.Background())
	require.NoError(t, err)
	assert.Equal(t, SweepResult{Selected: 3, Completed: 2, Errored: 1}, res)

	stored, _ := repo.FindByID(context.Background(), seeded[1].ID)
	assert.Equal(t, models.PaymentStatusFailed, stored.Status)
	assert.True(t, strings.HasPrefix(stored.FailureReason, "internal processing error: "))
	assert.Contains(t, orders.cancelled, seeded[1].OrderID)

	third, _ := repo.FindByID(context.Background(), seeded[2].ID)
	assert.Equal(t, models.PaymentStatusCompleted, third.Status)
}

type failingUpdateRepo struct {
	*memory.PaymentStore
	failOn models.PaymentStatus
}

func (r *failingUpdateRepo) Update(ctx context.Context, p *models.Payment) error {
	if p.Status == r.failOn {
		return errors.New("disk full")
	}
	return r.PaymentStore.Update(ctx, p)
}

func TestProcessEligible_PersistErrorForcesFailed(t *testing.T) {
	clk := newClock()
	store := memory.NewPaymentStore().WithClock(clk.Now)
	seeded := seedPayments(t, store, 1)
	clk.now = clk.now.Add(time.Hour)
	repo := &failingUpdateRepo{PaymentStore: store, failOn: models.PaymentStatusCompleted}

	res, err := NewProcessor(repo, approveAll(), nil, WithClock(clk.Now)).ProcessEligiblePayments(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Errored)

	stored, _ := store.FindByID(context.Background(), seeded[0].ID)
	assert.Equal(t, models.PaymentStatusFailed, stored.Status)
	assert.Contains(t, stored.FailureReason, "disk full")
}

// claimedElsewhereRepo lets another writer claim payment id right after the
// batch has been selected.
type claimedElsewhereRepo struct {
	*memory.PaymentStore
	id int64
}

func (r *claimedElsewhereRepo) ListEligible(ctx context.Context, before time.Time, limit int) ([]models.Payment, error) {
	eligible, err := r.PaymentStore.ListEligible(ctx, before, limit)
	if err != nil {
		return nil, err
	}
	other, err := r.PaymentStore.FindByID(ctx, r.id)
	if err != nil {
		return nil, err
	}
	if err := other.MarkProcessing(); err != nil {
		return nil, err
	}
	if err := r.PaymentStore.Update(ctx, other); err != nil {
		return nil, err
	}
	return eligible, nil
}

func TestProcessEligible_LostClaimIsSkipped(t *testing.T) {
	clk := newClock()
	store := memory.NewPaymentStore().WithClock(clk.Now)
	seeded := seedPayments(t, store, 2)
	clk.now = clk.now.Add(time.Hour)
	orders := newMockNotifier()
	repo := &claimedElsewhereRepo{PaymentStore: store, id: seeded[0].ID}

	res, err := NewProcessor(repo, approveAll(), orders, WithClock(clk.Now)).ProcessEligiblePayments(context.Background())
	require.NoError(t, err)
	assert.Equal(t, SweepResult{Selected: 2, Completed: 1, Skipped: 1}, res)

	taken, _ := store.FindByID(context.Background(), seeded[0].ID)
	assert.Equal(t, models.PaymentStatusProcessing, taken.Status, "the other writer still owns it")
	assert.Empty(t, taken.FailureReason)
	assert.NotContains(t, orders.cancelled, seeded[0].OrderID)
	assert.NotContains(t, orders.completed, seeded[0].OrderID)

	second, _ := store.FindByID(context.Background(), seeded[1].ID)
	assert.Equal(t, models.PaymentStatusCompleted, second.Status)
}

func TestProcessEligible_ConcurrentSweepsSettleEachPaymentOnce(t *testing.T) {
	const n = 30
	clk := newClock()
	store := memory.NewPaymentStore().WithClock(clk.Now)
	seedPayments(t, store, n)
	clk.now = clk.now.Add(time.Hour)
	orders := newMockNotifier()

	results := make([]SweepResult, 4)
	var wg sync.WaitGroup
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			proc := NewProcessor(store, approveAll(), orders, WithBatchSize(n), WithClock(clk.Now))
			res, err := proc.ProcessEligiblePayments(context.Background())
			assert.NoError(t, err)
			results[i] = res
		}(i)
	}
	wg.Wait()

	var completed int
	for _, res := range results {
		assert.Zero(t, res.Failed)
		assert.Zero(t, res.Errored)
		completed += res.Completed
	}
	assert.Equal(t, n, completed)
	assert.Equal(t, n, orders.calls)
	assert.Empty(t, orders.cancelled)

	done, _ := store.List(context.Background(), models.PaymentFilter{Status: models.PaymentStatusCompleted})
	assert.Len(t, done, n)
}

func TestProcessEligible_FinishesInFlightPaymentOnCancel(t *testing.T) {
	clk := newClock()
	repo := memory.NewPaymentStore().WithClock(clk.Now)
	seeded := seedPayments(t, repo, 2)
	clk.now = clk.now.Add(time.Hour)
	orders := newMockNotifier()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	shutdownMidway := SettlementFunc(func(itemCtx context.Context, _ *models.Payment) error {
		cancel()
		return itemCtx.Err()
	})

	res, err := NewProcessor(repo, shutdownMidway, orders, WithClock(clk.Now)).ProcessEligiblePayments(ctx)
	require.NoError(t, err)
	assert.Equal(t, SweepResult{Selected: 2, Completed: 1}, res)

	first, _ := repo.FindByID(context.Background(), seeded[0].ID)
	assert.Equal(t, models.PaymentStatusCompleted, first.Status)
	assert.Equal(t, first.ID, orders.completed[first.OrderID])
	assert.Empty(t, orders.cancelled)

	second, _ := repo.FindByID(context.Background(), seeded[1].ID)
	assert.Equal(t, models.PaymentStatusPending, second.Status, "left for the next sweep")
}

func TestProcessEligible_ItemTimeoutBoundsSettlement(t *testing.T) {
	clk := newClock()
	repo := memory.NewPaymentStore().WithClock(clk.Now)
	seeded := seedPayments(t, repo, 1)
	clk.now = clk.now.Add(time.Hour)
	hang := SettlementFunc(func(ctx context.Context, _ *models.Payment) error {
		<-ctx.Done()
		return ctx.Err()
	})

	proc := NewProcessor(repo, hang, nil, WithClock(clk.Now), WithItemTimeout(10*time.Millisecond))
	res, err := proc.ProcessEligiblePayments(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Failed)

	stored, _ := repo.FindByID(context.Background(), seeded[0].ID)
	assert.Equal(t, models.PaymentStatusFailed, stored.Status)
	assert.Equal(t, context.DeadlineExceeded.Error(), stored.FailureReason)
}

func TestProcessEligible_ListErrorIsReturned(t *testing.T) {
	repo := &brokenListRepo{PaymentStore: memory.NewPaymentStore()}

	_, err := NewProcessor(repo, approveAll(), nil).ProcessEligiblePayments(context.Background())
	assert.Error(t, err)
}

type brokenListRepo struct {
	*memory.PaymentStore
}

func (r *brokenListRepo) ListEligible(context.Context, time.Time, int) ([]models.Payment, error) {
	return nil, errors.New("connection refused")
}

func TestProcessorRun_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		NewProcessor(memory.NewPaymentStore(), approveAll(), nil).Run(ctx, time.Millisecond)
		close(done)
	}()

	time.Sleep(10 * time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("processor did not stop")
	}
}

func TestRandomSettlement(t *testing.T) {
	p := &models.Payment{ID: 1}
	assert.NoError(t, NewRandomSettlement(1).Attempt(context.Background(), p))
	assert.ErrorIs(t, NewRandomSettlement(0).Attempt(context.Background(), p), ErrDeclined)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, NewRandomSettlement(1).Attempt(ctx, p), context.Canceled)
}
