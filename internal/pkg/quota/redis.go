package quota

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/threadbrief/core/internal/pkg/clock"
)

// checkScript performs the check-then-increment atomically on the Redis
// side, so two instances racing for the last slot still admit exactly one.
// Returns -1 when denied, else the post-increment count.
var checkScript = redis.NewScript(`
local count = tonumber(redis.call('GET', KEYS[1]) or '0')
if count >= tonumber(ARGV[1]) then
  return -1
end
count = redis.call('INCR', KEYS[1])
if count == 1 then
  redis.call('EXPIRE', KEYS[1], tonumber(ARGV[2]))
end
return count
`)

// RedisLimiter shares a daily quota across instances. Keys carry the UTC day
// bucket and expire after 48h, two days being enough to outlive any bucket.
type RedisLimiter struct {
	rdb   *redis.Client
	limit int
	clk   clock.Clock
}

func NewRedisLimiter(rdb *redis.Client, limit int, clk clock.Clock) *RedisLimiter {
	if clk == nil {
		clk = clock.System()
	}
	return &RedisLimiter{rdb: rdb, limit: limit, clk: clk}
}

func (r *RedisLimiter) key(requester, day string) string {
	return fmt.Sprintf("tb:quota:%s:%s", requester, day)
}

func (r *RedisLimiter) CheckAndIncrement(ctx context.Context, key string) (Decision, error) {
	now := r.clk.Now()
	rkey := r.key(key, DayBucket(now))

	ttl := int((48 * time.Hour).Seconds())
	count, err := checkScript.Run(ctx, r.rdb, []string{rkey}, r.limit, ttl).Int()
	if err != nil {
		return Decision{}, fmt.Errorf("quota: redis check: %w", err)
	}
	if count < 0 {
		return Decision{Allowed: false, ResetAt: NextUTCDay(now)}, nil
	}
	return Decision{Allowed: true, Remaining: r.limit - count}, nil
}

// refundScript decrements without going below zero.
var refundScript = redis.NewScript(`
local count = tonumber(redis.call('GET', KEYS[1]) or '0')
if count > 0 then
  redis.call('DECR', KEYS[1])
end
return 0
`)

func (r *RedisLimiter) Refund(ctx context.Context, key string) error {
	rkey := r.key(key, DayBucket(r.clk.Now()))
	if err := refundScript.Run(ctx, r.rdb, []string{rkey}).Err(); err != nil {
		return fmt.Errorf("quota: redis refund: %w", err)
	}
	return nil
}
