package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore counts requests in fixed windows shared through Redis.
type RedisStore struct {
	rdb    *redis.Client
	prefix string
	limit  int
	window time.Duration
}

// NewRedisStore allows limit requests per window for each key.
func NewRedisStore(rdb *redis.Client, prefix string, limit int, window time.Duration) *RedisStore {
	if limit <= 0 {
		limit = 1
	}
	if window <= 0 {
		window = time.Minute
	}
	return &RedisStore{rdb: rdb, prefix: prefix, limit: limit, window: window}
}

// takeScript increments the window counter and starts its expiry on the
// first hit, returning the count and the remaining window in milliseconds.
var takeScript = redis.NewScript(`
local count = redis.call("INCR", KEYS[1])
local ttl = redis.call("PTTL", KEYS[1])
if ttl < 0 then
	redis.call("PEXPIRE", KEYS[1], ARGV[1])
	ttl = tonumber(ARGV[1])
end
return {count, ttl}
`)

// Take implements Store.
func (s *RedisStore) Take(ctx context.Context, key string) (Decision, error) {
	redisKey := s.prefix + ":" + key

	vals, err := takeScript.Run(ctx, s.rdb, []string{redisKey}, s.window.Milliseconds()).Int64Slice()
	if err != nil {
		return Decision{}, fmt.Errorf("rate limit take %s: %w", redisKey, err)
	}
	if len(vals) != 2 {
		return Decision{}, fmt.Errorf("rate limit take %s: unexpected reply %v", redisKey, vals)
	}
	count := vals[0]
	reset := time.Duration(vals[1]) * time.Millisecond

	remaining := s.limit - int(count)
	if remaining < 0 {
		remaining = 0
	}
	dec := Decision{
		Allowed:   count <= int64(s.limit),
		Limit:     s.limit,
		Remaining: remaining,
		Reset:     reset,
	}
	if !dec.Allowed {
		dec.RetryAfter = reset
	}
	return dec, nil
}
