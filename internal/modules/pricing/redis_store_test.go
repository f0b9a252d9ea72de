package pricing

import (
	"context"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRedisStates(t *testing.T) (*RedisStateStore, string) {
	t.Helper()
	addr := os.Getenv("VALET_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("VALET_TEST_REDIS_ADDR not set; skipping integration test")
	}
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	t.Cleanup(func() { _ = rdb.Close() })

	scope := fmt.Sprintf("lot_test_%d", time.Now().UnixNano())
	t.Cleanup(func() { rdb.Del(context.Background(), smoothingKey(scope)) })
	return NewRedisStateStore(rdb), scope
}

func TestRedisCompareAndSwap(t *testing.T) {
	states, scope := setupRedisStates(t)
	ctx := context.Background()

	_, ok, err := states.LoadState(ctx, scope)
	require.NoError(t, err)
	assert.False(t, ok)

	now := time.Now().UTC()
	require.NoError(t, states.CompareAndSwap(ctx, 0, SmoothingState{Scope: scope, Multiplier: 0.94, UpdatedAt: now}))
	require.ErrorIs(t, states.CompareAndSwap(ctx, 0, SmoothingState{Scope: scope, Multiplier: 0.9, UpdatedAt: now}), ErrConcurrencyConflict)

	st, ok, err := states.LoadState(ctx, scope)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int64(1), st.Version)
	assert.Equal(t, 0.94, st.Multiplier)
	assert.True(t, st.UpdatedAt.Equal(now))
}

func TestRedisConcurrentQuotes(t *testing.T) {
	states, scope := setupRedisStates(t)
	ctx := context.Background()
	mem := NewMemoryStore()
	_, err := mem.PutConfig(ctx, scope, testConfig())
	require.NoError(t, err)

	svc := NewService(ServiceDeps{
		Configs:            mem,
		States:             states,
		Audit:              mem,
		MaxConflictRetries: 200,
		RetryBackoff:       time.Millisecond,
	})

	const n = 20
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.GetPriceQuote(ctx, testRequest(scope))
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	st, ok, err := states.LoadState(ctx, scope)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int64(n), st.Version)
}
