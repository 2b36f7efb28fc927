package gateway

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Deduper suppresses duplicate broadcast frames under at-least-once
// delivery on the events channel.
type Deduper interface {
	// Seen records the event id and returns true if it was already known.
	Seen(ctx context.Context, eventID string) (bool, error)
}

// RedisDeduper stores seen event ids in Redis, scoped per gateway
// instance: every instance must fan a frame out to its own room members
// exactly once, so the marker is instance-local while still surviving
// subscription reconnects (which can replay a frame).
type RedisDeduper struct {
	client     *redis.Client
	instanceID string
	ttl        time.Duration
}

// NewRedisDeduper creates a deduper using the provided Redis client and TTL.
func NewRedisDeduper(client *redis.Client, instanceID string, ttl time.Duration) *RedisDeduper {
	return &RedisDeduper{client: client, instanceID: instanceID, ttl: ttl}
}

func (r *RedisDeduper) key(eventID string) string {
	return fmt.Sprintf("seen:%s:%s", r.instanceID, eventID)
}

// Seen records the event id if new. It returns true when this instance
// had already recorded the id.
func (r *RedisDeduper) Seen(ctx context.Context, eventID string) (bool, error) {
	added, err := r.client.SetNX(ctx, r.key(eventID), 1, r.ttl).Result()
	if err != nil {
		return false, err
	}
	return !added, nil
}
