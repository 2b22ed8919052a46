package rate

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	rdb "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func exercise(t *testing.T, l Limiter, advance func(time.Duration)) {
	t.Helper()
	ctx := context.Background()

	for i := int64(1); i <= 3; i++ {
		res, err := l.Allow(ctx, "1.2.3.4|/v1/x|mobile")
		require.NoError(t, err)
		assert.True(t, res.Allowed)
		assert.Equal(t, 3-i, res.Remaining)
	}
	res, err := l.Allow(ctx, "1.2.3.4|/v1/x|mobile")
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.Equal(t, 40*time.Second, res.RetryAfter)

	// Otra clave tiene su propio contador.
	res, err = l.Allow(ctx, "5.6.7.8|/v1/x|mobile")
	require.NoError(t, err)
	assert.True(t, res.Allowed)

	advance(40 * time.Second)
	res, err = l.Allow(ctx, "1.2.3.4|/v1/x|mobile")
	require.NoError(t, err)
	assert.True(t, res.Allowed)
	assert.Equal(t, int64(1), res.CurrentHits)
}

func TestRedisLimiter_FixedWindow(t *testing.T) {
	mr := miniredis.RunT(t)
	client := rdb.NewClient(&rdb.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	now := time.Date(2024, 3, 1, 12, 0, 20, 0, time.UTC)
	l := NewRedisLimiter(client, "test:rl:", 3, time.Minute)
	l.Now = func() time.Time { return now }

	exercise(t, l, func(d time.Duration) { now = now.Add(d); mr.FastForward(d) })
}

func TestMemoryLimiter_FixedWindow(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 20, 0, time.UTC)
	l := NewMemoryLimiter(3, time.Minute)
	l.Now = func() time.Time { return now }

	exercise(t, l, func(d time.Duration) { now = now.Add(d) })
}
