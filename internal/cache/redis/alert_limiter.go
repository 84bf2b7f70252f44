package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/oddslab/arbscan/internal/domain"
)

// AlertLimiter implements domain.AlertLimiter using SET NX with a TTL. The
// first caller for a key within the cooldown wins; repeats are suppressed
// until the key expires.
type AlertLimiter struct {
	rdb *redis.Client
}

// NewAlertLimiter creates an AlertLimiter backed by the given Client.
func NewAlertLimiter(c *Client) *AlertLimiter {
	return &AlertLimiter{rdb: c.rdb}
}

func alertKey(key string) string {
	return "arbscan:alert:" + key
}

// Allow reports whether an alert for the given key may fire. A true result
// starts the cooldown for that key.
func (al *AlertLimiter) Allow(ctx context.Context, key string, cooldown time.Duration) (bool, error) {
	ok, err := al.rdb.SetNX(ctx, alertKey(key), time.Now().Unix(), cooldown).Result()
	if err != nil {
		return false, fmt.Errorf("redis: alert limiter %s: %w", key, err)
	}
	return ok, nil
}

// Compile-time interface check.
var _ domain.AlertLimiter = (*AlertLimiter)(nil)
