package webhook

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// ReplayCache marks provider event ids as seen so redeliveries can be
// counted and logged. It is observability, not correctness: the state
// machine is idempotent by construction, so processing continues even when
// the cache says the delivery is a duplicate (or when Redis is down).
type ReplayCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewReplayCache creates a cache with the given marker TTL. The TTL should
// comfortably exceed the provider's redelivery window.
func NewReplayCache(client *redis.Client, ttl time.Duration) *ReplayCache {
	return &ReplayCache{client: client, ttl: ttl}
}

// MarkSeen records an event id and reports whether it had been seen before.
func (c *ReplayCache) MarkSeen(ctx context.Context, provider, eventID string) (bool, error) {
	key := "webhook:seen:" + provider + ":" + eventID
	set, err := c.client.SetNX(ctx, key, 1, c.ttl).Result()
	if err != nil {
		return false, err
	}
	return !set, nil
}
