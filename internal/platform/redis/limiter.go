package redis

import (
	"context"
	"fmt"
	"time"
)

// FixedWindowLimiter counts requests per key in fixed windows backed by Redis,
// so the limit holds across server replicas.
type FixedWindowLimiter struct {
	client *Client
	prefix string
	limit  int64
	window time.Duration
}

// NewFixedWindowLimiter builds a limiter allowing limit requests per window
// for each key. A nil client yields a nil limiter, which callers must treat
// as "rate limiting disabled".
func NewFixedWindowLimiter(client *Client, prefix string, limit int64, window time.Duration) *FixedWindowLimiter {
	if client == nil {
		return nil
	}
	return &FixedWindowLimiter{client: client, prefix: prefix, limit: limit, window: window}
}

// Allow increments the counter for key in the current window and reports
// whether the caller is still under the limit.
func (l *FixedWindowLimiter) Allow(ctx context.Context, key string) (bool, error) {
	bucket := fmt.Sprintf("%s:%s:%d", l.prefix, key, time.Now().Unix()/int64(l.window.Seconds()))

	pipe := l.client.TxPipeline()
	count := pipe.Incr(ctx, bucket)
	pipe.Expire(ctx, bucket, l.window)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, fmt.Errorf("rate limit incr: %w", err)
	}
	return count.Val() <= l.limit, nil
}
