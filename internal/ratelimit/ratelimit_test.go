package ratelimit_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"after2am-server/internal/ratelimit"
)

func newLimiter(t *testing.T, limit int, window time.Duration) (ratelimit.Limiter, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return ratelimit.NewRedisLimiter(client, limit, window, zap.NewNop()), mr
}

func TestLimiter_AllowConsumesQuota(t *testing.T) {
	limiter, _ := newLimiter(t, 1, 24*time.Hour)
	ctx := context.Background()

	allowed, err := limiter.Allow(ctx, "anon-1")
	require.NoError(t, err)
	assert.True(t, allowed)

	allowed, err = limiter.Allow(ctx, "anon-1")
	require.NoError(t, err)
	assert.False(t, allowed)
}

func TestLimiter_IdentitiesAreIndependent(t *testing.T) {
	limiter, _ := newLimiter(t, 1, 24*time.Hour)
	ctx := context.Background()

	allowed, err := limiter.Allow(ctx, "anon-1")
	require.NoError(t, err)
	require.True(t, allowed)

	allowed, err = limiter.Allow(ctx, "anon-2")
	require.NoError(t, err)
	assert.True(t, allowed)
}

func TestLimiter_RefundReturnsQuota(t *testing.T) {
	limiter, _ := newLimiter(t, 1, 24*time.Hour)
	ctx := context.Background()

	allowed, err := limiter.Allow(ctx, "anon-1")
	require.NoError(t, err)
	require.True(t, allowed)

	require.NoError(t, limiter.Refund(ctx, "anon-1"))

	allowed, err = limiter.Allow(ctx, "anon-1")
	require.NoError(t, err)
	assert.True(t, allowed)
}

func TestLimiter_ConcurrentCallersConsumeExactlyLimit(t *testing.T) {
	limiter, _ := newLimiter(t, 1, 24*time.Hour)
	ctx := context.Background()

	// Проверка и списание - один EVAL: из N одновременных заявок одной
	// identity проходит ровно одна.
	const callers = 20
	var wg sync.WaitGroup
	var mu sync.Mutex
	allowedCount := 0

	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			allowed, err := limiter.Allow(ctx, "anon-1")
			assert.NoError(t, err)
			if allowed {
				mu.Lock()
				allowedCount++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, allowedCount)
}

func TestLimiter_WindowExpiryFreesQuota(t *testing.T) {
	limiter, mr := newLimiter(t, 1, time.Minute)
	ctx := context.Background()

	allowed, err := limiter.Allow(ctx, "anon-1")
	require.NoError(t, err)
	require.True(t, allowed)

	// TTL ключа равен окну: по его истечении квота свободна.
	mr.FastForward(2 * time.Minute)

	allowed, err = limiter.Allow(ctx, "anon-1")
	require.NoError(t, err)
	assert.True(t, allowed)
}

func TestLimiter_BackendErrorIsNotQuotaExhaustion(t *testing.T) {
	limiter, mr := newLimiter(t, 1, 24*time.Hour)
	mr.Close()

	_, err := limiter.Allow(context.Background(), "anon-1")
	assert.Error(t, err)
}
