// Package cache provides a read-through Redis cache for agenda snapshots.
// Registration requests hit the agenda configuration on every call; caching
// it keeps the hot path off postgres. A nil *Cache is a safe no-op so the
// service does not branch on whether Redis is configured.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"agendahub/internal/agenda"
	"agendahub/internal/platform/redis"
)

const keyPrefix = "agenda:snapshot:"

type Cache struct {
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

// New builds a cache over an optional redis client. Returns nil when the
// client is nil (Redis not configured).
func New(client *redis.Client, ttl time.Duration, logger *slog.Logger) *Cache {
	if client == nil {
		return nil
	}
	return &Cache{client: client, ttl: ttl, logger: logger}
}

// Get returns a cached snapshot, or nil on miss. Cache errors degrade to a
// miss; the store remains the source of truth.
func (c *Cache) Get(ctx context.Context, id uuid.UUID) *agenda.Agenda {
	if c == nil {
		return nil
	}
	raw, err := c.client.Get(ctx, keyPrefix+id.String()).Bytes()
	if err != nil {
		if !errors.Is(err, goredis.Nil) {
			c.logger.WarnContext(ctx, "agenda cache read failed", "error", err)
		}
		return nil
	}
	var a agenda.Agenda
	if err := json.Unmarshal(raw, &a); err != nil {
		c.logger.WarnContext(ctx, "agenda cache decode failed", "error", err)
		return nil
	}
	return &a
}

// Put stores a snapshot with the configured TTL.
func (c *Cache) Put(ctx context.Context, a *agenda.Agenda) {
	if c == nil {
		return
	}
	raw, err := json.Marshal(a)
	if err != nil {
		c.logger.WarnContext(ctx, "agenda cache encode failed", "error", err)
		return
	}
	if err := c.client.Set(ctx, keyPrefix+a.ID.String(), raw, c.ttl).Err(); err != nil {
		c.logger.WarnContext(ctx, "agenda cache write failed", "error", err)
	}
}

// Invalidate drops a snapshot after the agenda is mutated.
func (c *Cache) Invalidate(ctx context.Context, id uuid.UUID) {
	if c == nil {
		return
	}
	if err := c.client.Del(ctx, keyPrefix+id.String()).Err(); err != nil {
		c.logger.WarnContext(ctx, "agenda cache invalidate failed", "error", err)
	}
}
