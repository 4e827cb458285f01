package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupLimiter(t *testing.T, limit int, period time.Duration) (*Limiter, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return New(client, limit, period), mr
}

func TestConsume_UnderLimit(t *testing.T) {
	l, _ := setupLimiter(t, 5, time.Minute)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		res, err := l.Consume(ctx, KeyspaceUser, "user-1")
		require.NoError(t, err)
		assert.True(t, res.OK, "consume %d should be admitted", i+1)
	}
}

func TestConsume_ExhaustedWindowDenies(t *testing.T) {
	l, _ := setupLimiter(t, 3, time.Minute)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		res, err := l.Consume(ctx, KeyspaceUser, "user-1")
		require.NoError(t, err)
		require.True(t, res.OK)
	}

	res, err := l.Consume(ctx, KeyspaceUser, "user-1")
	require.NoError(t, err)
	assert.False(t, res.OK)
	assert.Greater(t, res.RetryAfter, time.Duration(0))
	assert.LessOrEqual(t, res.RetryAfter, time.Minute)

	// A denied consume must not advance the counter.
	usage, err := l.Usage(ctx, KeyspaceUser, "user-1")
	require.NoError(t, err)
	assert.Equal(t, 3, usage)
}

func TestConsume_Linearizable(t *testing.T) {
	const limit = 20
	const extra = 10
	l, _ := setupLimiter(t, limit, 24*time.Hour)
	ctx := context.Background()

	var wg sync.WaitGroup
	results := make(chan bool, limit+extra)
	for i := 0; i < limit+extra; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := l.Consume(ctx, KeyspaceUser, "contended")
			if err != nil {
				results <- false
				return
			}
			results <- res.OK
		}()
	}
	wg.Wait()
	close(results)

	admitted := 0
	for ok := range results {
		if ok {
			admitted++
		}
	}
	assert.Equal(t, limit, admitted, "exactly limit consumes must win")
}

func TestConsume_WindowResets(t *testing.T) {
	l, mr := setupLimiter(t, 2, time.Minute)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		res, err := l.Consume(ctx, KeyspaceOrigin, "10.0.0.1")
		require.NoError(t, err)
		require.True(t, res.OK)
	}

	res, err := l.Consume(ctx, KeyspaceOrigin, "10.0.0.1")
	require.NoError(t, err)
	require.False(t, res.OK)

	mr.FastForward(time.Minute + time.Second)

	res, err = l.Consume(ctx, KeyspaceOrigin, "10.0.0.1")
	require.NoError(t, err)
	assert.True(t, res.OK, "expired window should admit again")

	usage, err := l.Usage(ctx, KeyspaceOrigin, "10.0.0.1")
	require.NoError(t, err)
	assert.Equal(t, 1, usage, "counter should restart from zero")
}

func TestConsume_KeyspacesIndependent(t *testing.T) {
	l, _ := setupLimiter(t, 1, time.Minute)
	ctx := context.Background()

	// Same key string in two keyspaces must not collide.
	res, err := l.Consume(ctx, KeyspaceUser, "shared")
	require.NoError(t, err)
	require.True(t, res.OK)

	res, err = l.Consume(ctx, KeyspaceUser, "shared")
	require.NoError(t, err)
	require.False(t, res.OK)

	res, err = l.Consume(ctx, KeyspaceOrigin, "shared")
	require.NoError(t, err)
	assert.True(t, res.OK)
}

func TestConsume_KeysIndependent(t *testing.T) {
	l, _ := setupLimiter(t, 1, time.Minute)
	ctx := context.Background()

	res, err := l.Consume(ctx, KeyspaceUser, "user-a")
	require.NoError(t, err)
	require.True(t, res.OK)

	res, err = l.Consume(ctx, KeyspaceUser, "user-b")
	require.NoError(t, err)
	assert.True(t, res.OK)
}

func TestCheck_IsPureRead(t *testing.T) {
	l, _ := setupLimiter(t, 2, time.Minute)
	ctx := context.Background()

	// Checks never consume, even repeated ones.
	for i := 0; i < 10; i++ {
		res, err := l.Check(ctx, KeyspaceUser, "reader")
		require.NoError(t, err)
		assert.True(t, res.OK)
	}

	usage, err := l.Usage(ctx, KeyspaceUser, "reader")
	require.NoError(t, err)
	assert.Equal(t, 0, usage)
}

func TestCheck_ReportsExhaustion(t *testing.T) {
	l, _ := setupLimiter(t, 1, time.Minute)
	ctx := context.Background()

	res, err := l.Consume(ctx, KeyspaceUser, "user-1")
	require.NoError(t, err)
	require.True(t, res.OK)

	res, err = l.Check(ctx, KeyspaceUser, "user-1")
	require.NoError(t, err)
	assert.False(t, res.OK)
	assert.Greater(t, res.RetryAfter, time.Duration(0))
}

func TestUsage_Empty(t *testing.T) {
	l, _ := setupLimiter(t, 5, time.Minute)

	usage, err := l.Usage(context.Background(), KeyspaceUser, "nobody")
	require.NoError(t, err)
	assert.Equal(t, 0, usage)
}

func TestConsume_ManyKeysStayIsolated(t *testing.T) {
	l, _ := setupLimiter(t, 2, time.Minute)
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		key := fmt.Sprintf("origin-%d", i)
		for j := 0; j < 2; j++ {
			res, err := l.Consume(ctx, KeyspaceOrigin, key)
			require.NoError(t, err)
			require.True(t, res.OK)
		}
		res, err := l.Consume(ctx, KeyspaceOrigin, key)
		require.NoError(t, err)
		require.False(t, res.OK)
	}
}
