package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "ratelimit:"

// fixedWindowScript increments the counter and starts the window on the first
// hit. A key left without a TTL is repaired so it can never pin a client.
var fixedWindowScript = redis.NewScript(`
local count = redis.call("INCR", KEYS[1])
local ttl = redis.call("PTTL", KEYS[1])
if count == 1 or ttl < 0 then
	redis.call("PEXPIRE", KEYS[1], ARGV[1])
	ttl = tonumber(ARGV[1])
end
return {count, ttl}
`)

// Redis is a fixed-window limiter shared by every replica pointing at the same
// Redis. Expired windows are evicted by Redis itself.
type Redis struct {
	client redis.Scripter
	window time.Duration
	limit  int
	now    Clock
}

// NewRedis builds a Redis-backed limiter.
func NewRedis(client redis.Scripter, window time.Duration, limit int) *Redis {
	return &Redis{
		client: client,
		window: window,
		limit:  limit,
		now:    time.Now,
	}
}

// Check increments the counter for key and reports whether the call is admitted.
func (r *Redis) Check(ctx context.Context, key string) (Decision, error) {
	res, err := fixedWindowScript.Run(ctx, r.client, []string{redisKeyPrefix + key}, r.window.Milliseconds()).Int64Slice()
	if err != nil {
		return Decision{}, fmt.Errorf("redis rate limit: %w", err)
	}
	if len(res) != 2 {
		return Decision{}, fmt.Errorf("redis rate limit: unexpected reply of %d values", len(res))
	}

	count := int(res[0])
	return Decision{
		Allowed: count <= r.limit,
		Count:   count,
		Limit:   r.limit,
		ResetAt: r.now().Add(time.Duration(res[1]) * time.Millisecond),
	}, nil
}
