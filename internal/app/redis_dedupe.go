package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisEventDeduper suppresses duplicate webhook deliveries across instances
// using SET NX with a TTL. A dead Redis degrades to processing everything,
// which the ledger rules tolerate.
type RedisEventDeduper struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
}

// NewRedisEventDeduper creates a deduper with the given key prefix and TTL.
func NewRedisEventDeduper(client redis.UniversalClient, prefix string, ttl time.Duration) *RedisEventDeduper {
	trimmedPrefix := strings.TrimSpace(prefix)
	if trimmedPrefix == "" {
		trimmedPrefix = "payverge:event_dedupe"
	}
	trimmedPrefix = strings.TrimSuffix(trimmedPrefix, ":")
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &RedisEventDeduper{client: client, prefix: trimmedPrefix, ttl: ttl}
}

// Seen returns true when this event id was already recorded; otherwise it
// records the id and returns false.
func (d *RedisEventDeduper) Seen(ctx context.Context, eventID string) (bool, error) {
	if d == nil || d.client == nil {
		return false, nil
	}
	normalized := strings.TrimSpace(eventID)
	if normalized == "" {
		return false, nil
	}

	key := fmt.Sprintf("%s:%s", d.prefix, normalized)
	created, err := d.client.SetNX(ctx, key, 1, d.ttl).Result()
	if err != nil {
		return false, err
	}
	return !created, nil
}
