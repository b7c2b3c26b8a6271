package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/ashendes/order-fulfillment/internal/models"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T) (*IdempotencyStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return NewIdempotencyStoreWithClient(client, "order-service", time.Hour), mr
}

func TestIdempotencyStore_ClaimThenBind(t *testing.T) {
	s, mr := newStore(t)
	ctx := context.Background()

	id, err := s.Claim(ctx, "abc")
	require.NoError(t, err)
	assert.Zero(t, id)
	assert.True(t, mr.Exists("order-service:create_order:abc"))

	_, err = s.Claim(ctx, "abc")
	assert.ErrorIs(t, err, models.ErrAlreadyExists)

	require.NoError(t, s.Bind(ctx, "abc", 42))

	id, err = s.Claim(ctx, "abc")
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)
}

func TestIdempotencyStore_Release(t *testing.T) {
	s, _ := newStore(t)
	ctx := context.Background()

	_, err := s.Claim(ctx, "k")
	require.NoError(t, err)
	require.NoError(t, s.Release(ctx, "k"))

	id, err := s.Claim(ctx, "k")
	require.NoError(t, err)
	assert.Zero(t, id)
}

func TestIdempotencyStore_KeyExpires(t *testing.T) {
	s, mr := newStore(t)
	ctx := context.Background()

	_, err := s.Claim(ctx, "k")
	require.NoError(t, err)
	mr.FastForward(2 * time.Hour)

	id, err := s.Claim(ctx, "k")
	require.NoError(t, err)
	assert.Zero(t, id)
}
