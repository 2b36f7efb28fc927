package gateway

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestRedis(t *testing.T) *redis.Client {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestRedisDeduperSeen(t *testing.T) {
	client := newTestRedis(t)
	d := NewRedisDeduper(client, "inst-1", time.Minute)
	ctx := context.Background()

	seen, err := d.Seen(ctx, "ev-1")
	if err != nil {
		t.Fatalf("seen: %v", err)
	}
	if seen {
		t.Fatal("first sighting reported as duplicate")
	}

	seen, err = d.Seen(ctx, "ev-1")
	if err != nil {
		t.Fatalf("seen: %v", err)
	}
	if !seen {
		t.Fatal("second sighting not reported as duplicate")
	}
}

func TestRedisDeduperIsInstanceScoped(t *testing.T) {
	client := newTestRedis(t)
	ctx := context.Background()

	first := NewRedisDeduper(client, "inst-1", time.Minute)
	second := NewRedisDeduper(client, "inst-2", time.Minute)

	if seen, _ := first.Seen(ctx, "ev-1"); seen {
		t.Fatal("unexpected duplicate on inst-1")
	}
	if seen, _ := second.Seen(ctx, "ev-1"); seen {
		t.Fatal("inst-2 must track sightings independently")
	}
}
