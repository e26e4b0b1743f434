package redis

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/xenking/luxe-store/pkg/httpmiddleware"
)

// tokenBucketScript refills and consumes one bucket atomically.
// KEYS[1] bucket key
// ARGV[1] refill rate in tokens per second
// ARGV[2] capacity
// ARGV[3] now in seconds with microsecond precision
// ARGV[4] key ttl in seconds
var tokenBucketScript = redis.NewScript(`
local key = KEYS[1]
local rate = tonumber(ARGV[1])
local capacity = tonumber(ARGV[2])
local now = tonumber(ARGV[3])
local ttl = tonumber(ARGV[4])

local state = redis.call("HMGET", key, "tokens", "last_refill")
local tokens = tonumber(state[1])
local last_refill = tonumber(state[2])
if not tokens or not last_refill then
    tokens = capacity
    last_refill = now
end

local elapsed = now - last_refill
if elapsed > 0 then
    tokens = math.min(capacity, tokens + elapsed * rate)
    last_refill = now
end

local allowed = 0
if tokens >= 1 then
    tokens = tokens - 1
    allowed = 1
end

redis.call("HSET", key, "tokens", tokens, "last_refill", last_refill)
redis.call("EXPIRE", key, ttl)

return {allowed, tostring(tokens)}
`)

var _ httpmiddleware.Limiter = (*Limiter)(nil)

// Limiter is a token bucket shared by every API replica. The bucket holds max
// tokens and refills fully over window.
type Limiter struct {
	client redis.UniversalClient
	max    int
	window time.Duration
	prefix string
}

// NewLimiter creates a Limiter allowing max requests per window per key.
func NewLimiter(client redis.UniversalClient, max int, window time.Duration) *Limiter {
	return &Limiter{client: client, max: max, window: window, prefix: "luxe:ratelimit:"}
}

// Allow consumes one token from the bucket of key.
func (l *Limiter) Allow(ctx context.Context, key string, now time.Time) (httpmiddleware.Decision, error) {
	rate := float64(l.max) / l.window.Seconds()
	ttl := int(math.Ceil(2 * l.window.Seconds()))
	ts := float64(now.UnixMicro()) / 1e6

	res, err := tokenBucketScript.Run(ctx, l.client, []string{l.prefix + key}, rate, l.max, ts, ttl).Slice()
	if err != nil {
		return httpmiddleware.Decision{}, fmt.Errorf("redis limiter: %w", err)
	}
	if len(res) != 2 {
		return httpmiddleware.Decision{}, fmt.Errorf("redis limiter: unexpected reply %v", res)
	}
	allowed, _ := res[0].(int64)
	var tokens float64
	if s, ok := res[1].(string); ok {
		_, _ = fmt.Sscanf(s, "%g", &tokens)
	}

	d := httpmiddleware.Decision{
		Limit:     l.max,
		Remaining: int(math.Floor(tokens)),
		Allowed:   allowed == 1,
	}
	missing := float64(l.max) - tokens
	if !d.Allowed {
		missing = 1 - tokens
	}
	d.ResetAt = now.Add(time.Duration(missing / rate * float64(time.Second)))
	return d, nil
}
