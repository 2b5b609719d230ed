package reservation

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"flashsale/internal/redis"
)

// QuotaGuard enforces the per-user cap with an atomic Redis counter. The
// check and increment run in one Lua script, closing the window where two
// concurrent requests with different idempotency keys could both pass a
// read-then-compare check.
//
// The counter is a concurrency guard, not the system of record; the durable
// reservation rows stay authoritative and seed cold counters.
type QuotaGuard struct {
	client  *goredis.Client
	acquire *goredis.Script
	release *goredis.Script
	ttl     time.Duration
}

// NewQuotaGuard creates a quota guard
func NewQuotaGuard(client *goredis.Client, ttl time.Duration) *QuotaGuard {
	return &QuotaGuard{
		client:  client,
		acquire: goredis.NewScript(redis.QuotaAcquireScript),
		release: goredis.NewScript(redis.QuotaReleaseScript),
		ttl:     ttl,
	}
}

func (g *QuotaGuard) key(campaignID, userID uint64) string {
	return fmt.Sprintf("flashsale:quota:%d:%d", campaignID, userID)
}

// Current returns the counter value and whether it exists
func (g *QuotaGuard) Current(ctx context.Context, campaignID, userID uint64) (int, bool, error) {
	value, err := g.client.Get(ctx, g.key(campaignID, userID)).Int()
	if err != nil {
		if err == goredis.Nil {
			return 0, false, nil
		}
		return 0, false, err
	}
	return value, true, nil
}

// Acquire reserves quantity against the user's quota. seed initializes a
// cold counter (from the durable reservation sum). Returns false when the
// limit would be exceeded.
func (g *QuotaGuard) Acquire(ctx context.Context, campaignID, userID uint64, quantity, limit, seed int) (bool, error) {
	result, err := g.acquire.Run(ctx, g.client,
		[]string{g.key(campaignID, userID)},
		quantity, limit, int(g.ttl.Seconds()), seed).Int()
	if err != nil {
		return false, err
	}
	return result >= 0, nil
}

// Release returns quantity to the user's quota, flooring at zero
func (g *QuotaGuard) Release(ctx context.Context, campaignID, userID uint64, quantity int) error {
	return g.release.Run(ctx, g.client,
		[]string{g.key(campaignID, userID)},
		quantity).Err()
}
