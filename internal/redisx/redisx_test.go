package redisx

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := New(mr.Addr(), "")
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestCooldownLimiter(t *testing.T) {
	mr, client := setupTestRedis(t)
	limiter := NewCooldownLimiter(client, 30*time.Second)
	ctx := context.Background()

	ok, err := limiter.Allow(ctx, "+919999999999")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = limiter.Allow(ctx, "+919999999999")
	require.NoError(t, err)
	assert.False(t, ok, "second request inside the cooldown must be refused")

	ok, err = limiter.Allow(ctx, "+918888888888")
	require.NoError(t, err)
	assert.True(t, ok, "cooldown is per number")

	mr.FastForward(31 * time.Second)

	ok, err = limiter.Allow(ctx, "+919999999999")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestCooldownLimiter_Disabled(t *testing.T) {
	_, client := setupTestRedis(t)
	limiter := NewCooldownLimiter(client, 0)

	for i := 0; i < 3; i++ {
		ok, err := limiter.Allow(context.Background(), "+919999999999")
		require.NoError(t, err)
		assert.True(t, ok)
	}
}

func TestOrderIdempotency_ClaimCompleteReplay(t *testing.T) {
	mr, client := setupTestRedis(t)
	store := NewOrderIdempotency(client)
	ctx := context.Background()

	existing, claimed, err := store.Claim(ctx, "cust-1", "key-1")
	require.NoError(t, err)
	assert.True(t, claimed)
	assert.Empty(t, existing)

	_, _, err = store.Claim(ctx, "cust-1", "key-1")
	assert.ErrorIs(t, err, ErrInFlight)

	require.NoError(t, store.Complete(ctx, "cust-1", "key-1", "order-uuid"))

	existing, claimed, err = store.Claim(ctx, "cust-1", "key-1")
	require.NoError(t, err)
	assert.False(t, claimed)
	assert.Equal(t, "order-uuid", existing)

	ttl := mr.TTL("idem:order:create:cust-1:key-1")
	assert.Equal(t, TTLIdempotency, ttl)
}

func TestOrderIdempotency_AbandonedClaimExpires(t *testing.T) {
	mr, client := setupTestRedis(t)
	store := NewOrderIdempotency(client)
	ctx := context.Background()

	_, claimed, err := store.Claim(ctx, "cust-1", "key-1")
	require.NoError(t, err)
	require.True(t, claimed)
	assert.Equal(t, TTLIdempotencyPending, mr.TTL("idem:order:create:cust-1:key-1"))

	_, _, err = store.Claim(ctx, "cust-1", "key-1")
	assert.ErrorIs(t, err, ErrInFlight)

	mr.FastForward(TTLIdempotencyPending + time.Second)

	_, claimed, err = store.Claim(ctx, "cust-1", "key-1")
	require.NoError(t, err)
	assert.True(t, claimed)
}

func TestOrderIdempotency_ScopedPerCustomer(t *testing.T) {
	_, client := setupTestRedis(t)
	store := NewOrderIdempotency(client)
	ctx := context.Background()

	_, claimed, err := store.Claim(ctx, "cust-1", "shared")
	require.NoError(t, err)
	require.True(t, claimed)

	_, claimed, err = store.Claim(ctx, "cust-2", "shared")
	require.NoError(t, err)
	assert.True(t, claimed)
}

func TestOrderIdempotency_Release(t *testing.T) {
	_, client := setupTestRedis(t)
	store := NewOrderIdempotency(client)
	ctx := context.Background()

	_, claimed, err := store.Claim(ctx, "cust-1", "key-1")
	require.NoError(t, err)
	require.True(t, claimed)

	require.NoError(t, store.Release(ctx, "cust-1", "key-1"))

	_, claimed, err = store.Claim(ctx, "cust-1", "key-1")
	require.NoError(t, err)
	assert.True(t, claimed)
}
