// Package ratelimit caps how often a key (client IP, email) may hit an endpoint.
package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Limiter reports whether one more request for key fits in the current window.
// When it does not, retryAfter says how long until the window resets.
type Limiter interface {
	Allow(ctx context.Context, key string) (allowed bool, retryAfter time.Duration, err error)
}

// fixedWindowScript increments the counter and starts the window on the first hit.
// Returns {count, remaining ttl in ms}.
var fixedWindowScript = redis.NewScript(`
local count = redis.call("INCR", KEYS[1])
if count == 1 then
    redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
local ttl = redis.call("PTTL", KEYS[1])
return {count, ttl}
`)

type RedisLimiter struct {
	rdb    *redis.Client
	prefix string
	limit  int
	window time.Duration
}

func NewRedisLimiter(rdb *redis.Client, prefix string, limit int, window time.Duration) *RedisLimiter {
	return &RedisLimiter{rdb: rdb, prefix: prefix, limit: limit, window: window}
}

func (l *RedisLimiter) Allow(ctx context.Context, key string) (bool, time.Duration, error) {
	res, err := fixedWindowScript.Run(ctx, l.rdb, []string{l.prefix + ":" + key}, l.window.Milliseconds()).Int64Slice()
	if err != nil {
		return false, 0, fmt.Errorf("rate limiter script failed: %w", err)
	}
	if len(res) != 2 {
		return false, 0, fmt.Errorf("rate limiter script returned %d values", len(res))
	}
	count, ttl := res[0], time.Duration(res[1])*time.Millisecond
	if count > int64(l.limit) {
		if ttl < 0 {
			ttl = l.window
		}
		return false, ttl, nil
	}
	return true, 0, nil
}

// MemoryLimiter is a per-process token bucket, used when no Redis is configured.
type MemoryLimiter struct {
	mu       sync.Mutex
	visitors map[string]*visitor
	rate     int
	burst    int
	interval time.Duration
	now      func() time.Time
}

type visitor struct {
	tokens      int
	lastUpdated time.Time
}

func NewMemoryLimiter(rate, burst int, interval time.Duration) *MemoryLimiter {
	return &MemoryLimiter{
		visitors: make(map[string]*visitor),
		rate:     rate,
		burst:    burst,
		interval: interval,
		now:      time.Now,
	}
}

func (l *MemoryLimiter) Allow(_ context.Context, key string) (bool, time.Duration, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	v, ok := l.visitors[key]
	if !ok {
		v = &visitor{tokens: l.burst, lastUpdated: now}
		l.visitors[key] = v
	}

	if refill := int(now.Sub(v.lastUpdated) / l.interval); refill > 0 {
		v.tokens += refill * l.rate
		if v.tokens > l.burst {
			v.tokens = l.burst
		}
		v.lastUpdated = v.lastUpdated.Add(time.Duration(refill) * l.interval)
	}

	if v.tokens > 0 {
		v.tokens--
		return true, 0, nil
	}
	return false, v.lastUpdated.Add(l.interval).Sub(now), nil
}
