package domain

import (
	"context"
	"time"
)

// SignalBus provides pub/sub fan-out of scanner events plus durable streams
// for consumers that must not miss a cycle.
type SignalBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
	StreamAppend(ctx context.Context, stream string, payload []byte) error
}

// AlertLimiter suppresses repeat notifications for the same opportunity pair
// within a cooldown window. Allow returns true when the alert may fire.
type AlertLimiter interface {
	Allow(ctx context.Context, key string, cooldown time.Duration) (bool, error)
}
