package session

import (
	"context"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const cacheKeyPrefix = "session:cache:"

// Cache is a best-effort per-session result cache in Redis. Every failure
// is treated as a miss; the database path stays authoritative.
type Cache struct {
	client redis.UniversalClient
	ttl    time.Duration
	logger *slog.Logger
}

// NewCache builds a cache with the given entry lifetime.
func NewCache(client redis.UniversalClient, ttl time.Duration, logger *slog.Logger) *Cache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Cache{
		client: client,
		ttl:    ttl,
		logger: logger.With(slog.String("component", "session_cache")),
	}
}

func (c *Cache) key(sessionID, name string) string {
	return cacheKeyPrefix + sessionID + ":" + name
}

// Get returns the cached payload for the session, or (nil, false) on any
// miss or error.
func (c *Cache) Get(ctx context.Context, sessionID, name string) ([]byte, bool) {
	data, err := c.client.Get(ctx, c.key(sessionID, name)).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.logger.Debug("cache get failed", slog.Any("error", err))
		}
		return nil, false
	}
	return data, true
}

// Set stores a payload for the session; failures are logged and dropped.
func (c *Cache) Set(ctx context.Context, sessionID, name string, value []byte) {
	if err := c.client.Set(ctx, c.key(sessionID, name), value, c.ttl).Err(); err != nil {
		c.logger.Debug("cache set failed", slog.Any("error", err))
	}
}

// Purge removes every cached entry belonging to the session. Called on
// logout and after writes that invalidate cached reads.
func (c *Cache) Purge(ctx context.Context, sessionID string) {
	pattern := cacheKeyPrefix + sessionID + ":*"
	iter := c.client.Scan(ctx, 0, pattern, 100).Iterator()
	for iter.Next(ctx) {
		if err := c.client.Del(ctx, iter.Val()).Err(); err != nil {
			c.logger.Debug("cache purge delete failed", slog.Any("error", err))
		}
	}
	if err := iter.Err(); err != nil {
		c.logger.Debug("cache purge scan failed", slog.Any("error", err))
	}
}
