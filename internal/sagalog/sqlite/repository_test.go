package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/ashendes/order-fulfillment/internal/sagalog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTemp(t *testing.T) *Repository {
	t.Helper()
	repo, err := Open(filepath.Join(t.TempDir(), "saga.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })
	return repo
}

func TestRepository_SaveAndListByOrder(t *testing.T) {
	repo := openTemp(t)
	ctx := context.Background()
	at := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	entries := []sagalog.Entry{
		{SagaID: "s1", Status: sagalog.StatusStarted, Step: sagalog.StepValidateCustomer, UpdatedAt: at},
		{SagaID: "s1", OrderID: 7, Status: sagalog.StatusStepDone, Step: sagalog.StepPersistOrder, UpdatedAt: at},
		{SagaID: "s1", OrderID: 7, Status: sagalog.StatusFailed, Step: sagalog.StepInitiatePayment, Error: "boom", UpdatedAt: at},
		{SagaID: "s2", OrderID: 8, Status: sagalog.StatusCompleted, Step: sagalog.StepInitiatePayment, UpdatedAt: at},
	}
	for i := range entries {
		require.NoError(t, repo.Save(ctx, &entries[i]))
	}

	got, err := repo.ListByOrder(ctx, 7)
	require.NoError(t, err)
	require.Len(t, got, 3)

	assert.Equal(t, sagalog.StepValidateCustomer, got[0].Step)
	assert.Equal(t, int64(0), got[0].OrderID)
	assert.Equal(t, sagalog.StatusFailed, got[2].Status)
	assert.Equal(t, "boom", got[2].Error)
	assert.True(t, got[2].UpdatedAt.Equal(at))
}

func TestRepository_ListByOrderUnknown(t *testing.T) {
	repo := openTemp(t)

	got, err := repo.ListByOrder(context.Background(), 42)
	require.NoError(t, err)
	assert.Empty(t, got)
}
