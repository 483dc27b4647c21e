//go:build integration

package redis_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"agendahub/internal/platform/config"
	platformredis "agendahub/internal/platform/redis"
	"agendahub/pkg/testutil/containers"
)

func TestFixedWindowLimiter(t *testing.T) {
	ctx := context.Background()
	container := containers.NewRedisContainer(t)
	t.Cleanup(func() { container.Close(ctx) })

	client, err := platformredis.New(config.Redis{
		URL:          container.URL,
		PoolSize:     5,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	limiter := platformredis.NewFixedWindowLimiter(client, "test-limit", 3, time.Minute)

	for i := 0; i < 3; i++ {
		allowed, err := limiter.Allow(ctx, "203.0.113.7")
		require.NoError(t, err)
		require.True(t, allowed, "request %d should pass", i+1)
	}

	allowed, err := limiter.Allow(ctx, "203.0.113.7")
	require.NoError(t, err)
	require.False(t, allowed, "fourth request should be throttled")

	allowed, err = limiter.Allow(ctx, "198.51.100.9")
	require.NoError(t, err)
	require.True(t, allowed, "other clients count separately")
}
