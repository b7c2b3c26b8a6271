// Package cache holds the Redis-backed idempotency key store used by the
// order saga.
package cache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/ashendes/order-fulfillment/internal/models"
	"github.com/redis/go-redis/v9"
)

const (
	pendingMarker  = "pending"
	DefaultKeyTTL  = 24 * time.Hour
	operationOrder = "create_order"
)

// IdempotencyStore maps a client idempotency key to the order it created.
type IdempotencyStore struct {
	client      *redis.Client
	serviceName string
	ttl         time.Duration
}

// NewIdempotencyStore connects to Redis at addr.
func NewIdempotencyStore(addr, serviceName string, ttl time.Duration) *IdempotencyStore {
	return NewIdempotencyStoreWithClient(redis.NewClient(&redis.Options{Addr: addr}), serviceName, ttl)
}

// NewIdempotencyStoreWithClient wraps an existing client.
func NewIdempotencyStoreWithClient(client *redis.Client, serviceName string, ttl time.Duration) *IdempotencyStore {
	if ttl <= 0 {
		ttl = DefaultKeyTTL
	}
	return &IdempotencyStore{client: client, serviceName: serviceName, ttl: ttl}
}

// Claim reserves key for a new saga. It returns 0 when the caller now owns
// the key, the order id when a previous request with the key finished, and
// ErrAlreadyExists while that request is still running.
func (s *IdempotencyStore) Claim(ctx context.Context, key string) (int64, error) {
	k := s.generateKey(key)

	ok, err := s.client.SetNX(ctx, k, pendingMarker, s.ttl).Result()
	if err != nil {
		return 0, fmt.Errorf("claim idempotency key: %w", err)
	}
	if ok {
		return 0, nil
	}

	val, err := s.client.Get(ctx, k).Result()
	if errors.Is(err, redis.Nil) {
		// expired between SetNX and Get
		return s.Claim(ctx, key)
	}
	if err != nil {
		return 0, fmt.Errorf("read idempotency key: %w", err)
	}
	if val == pendingMarker {
		return 0, fmt.Errorf("request with idempotency key %q is in progress: %w", key, models.ErrAlreadyExists)
	}
	id, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("corrupt idempotency key %q: %w", key, err)
	}
	return id, nil
}

// Bind records the order created under key.
func (s *IdempotencyStore) Bind(ctx context.Context, key string, orderID int64) error {
	if err := s.client.Set(ctx, s.generateKey(key), strconv.FormatInt(orderID, 10), s.ttl).Err(); err != nil {
		return fmt.Errorf("bind idempotency key: %w", err)
	}
	return nil
}

// Release drops a claim so the key can be retried.
func (s *IdempotencyStore) Release(ctx context.Context, key string) error {
	return s.client.Del(ctx, s.generateKey(key)).Err()
}

func (s *IdempotencyStore) Close() error {
	return s.client.Close()
}

func (s *IdempotencyStore) generateKey(key string) string {
	return fmt.Sprintf("%s:%s:%s", s.serviceName, operationOrder, key)
}
