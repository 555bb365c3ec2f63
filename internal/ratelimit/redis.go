package ratelimit

import (
	"context"
	"time"

	perr "authgate/internal/platform/errors"
	ptime "authgate/internal/platform/time"

	"github.com/redis/go-redis/v9"
)

// DefaultRedisPrefix namespaces limiter keys
const DefaultRedisPrefix = "authgate:rl:"

// incrScript counts a hit and arms the window on first use.
// A key that lost its TTL is re-armed so it cannot count forever
var incrScript = redis.NewScript(`
local n = redis.call('INCR', KEYS[1])
local ttl = redis.call('PTTL', KEYS[1])
if n == 1 or ttl < 0 then
  redis.call('PEXPIRE', KEYS[1], ARGV[1])
  ttl = tonumber(ARGV[1])
end
return {n, ttl}
`)

// RedisStore shares windows between processes through Redis
type RedisStore struct {
	client redis.Scripter
	prefix string
	length time.Duration
	clock  ptime.Clock
}

// NewRedisStore returns a store over client with windows of length d
func NewRedisStore(client redis.Scripter, d time.Duration, prefix string) *RedisStore {
	if prefix == "" {
		prefix = DefaultRedisPrefix
	}
	return &RedisStore{client: client, prefix: prefix, length: d, clock: ptime.System}
}

// Increment runs the counting script for key
func (s *RedisStore) Increment(ctx context.Context, key string) (Hit, error) {
	res, err := incrScript.Run(ctx, s.client, []string{s.prefix + key}, s.length.Milliseconds()).Int64Slice()
	if err != nil {
		return Hit{}, perr.Wrap(err, perr.ErrorCodeStore, "ratelimit: redis increment")
	}
	if len(res) != 2 {
		return Hit{}, perr.Newf(perr.ErrorCodeStore, "ratelimit: unexpected script reply of %d values", len(res))
	}
	return Hit{
		Count:   int(res[0]),
		ResetAt: s.clock.Now().Add(time.Duration(res[1]) * time.Millisecond),
	}, nil
}
