package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	redis "github.com/redis/go-redis/v9"
)

var (
	ErrLimiterNotConfigured = errors.New("rate limiter: redis not configured")
	ErrInvalidLimit         = errors.New("rate limiter: key, rate and burst are required")
)

// takeToken refills the bucket from the redis clock, takes one token when it
// can and returns {allowed, tokens left, ms until the next token}. The level
// goes out as a string since redis truncates Lua numbers to integers.
var takeToken = redis.NewScript(`
local rate = tonumber(ARGV[1])
local burst = tonumber(ARGV[2])

local clock = redis.call("TIME")
local now = clock[1] * 1000 + math.floor(clock[2] / 1000)

local state = redis.call("HMGET", KEYS[1], "tokens", "ts")
local tokens = tonumber(state[1]) or burst
local last = tonumber(state[2]) or now
if now > last then
  tokens = math.min(burst, tokens + (now - last) / 1000 * rate)
end

local allowed = 0
local wait = 0
if tokens >= 1 then
  allowed = 1
  tokens = tokens - 1
else
  wait = math.ceil((1 - tokens) / rate * 1000)
end

redis.call("HSET", KEYS[1], "tokens", tostring(tokens), "ts", now)
redis.call("PEXPIRE", KEYS[1], ARGV[3])
return {allowed, tostring(tokens), wait}
`)

// Limit is a refill rate in tokens per second with a burst ceiling.
type Limit struct {
	Rate  float64
	Burst int
}

func (l Limit) valid() bool {
	return l.Rate > 0 && l.Burst > 0
}

// idleTTL is how long an untouched bucket lives: twice the time it takes to
// refill from empty, and never under a second.
func (l Limit) idleTTL() time.Duration {
	if !l.valid() {
		return time.Second
	}
	return max(time.Second, time.Duration(float64(l.Burst)/l.Rate*2*float64(time.Second)))
}

type RateLimitResult struct {
	Allowed    bool
	Limit      int
	Remaining  int
	RetryAfter time.Duration
}

// TokenBucket keeps one bucket per key in redis so every instance shares the
// same budget.
type TokenBucket struct {
	client *redis.Client
}

func NewTokenBucket(client *redis.Client) *TokenBucket {
	if client == nil {
		return nil
	}
	return &TokenBucket{client: client}
}

func (t *TokenBucket) Allow(ctx context.Context, key string, limit Limit) (*RateLimitResult, error) {
	denied := &RateLimitResult{Limit: limit.Burst}
	if t == nil || t.client == nil {
		return denied, ErrLimiterNotConfigured
	}
	if key == "" || !limit.valid() {
		return denied, ErrInvalidLimit
	}

	reply, err := takeToken.Run(ctx, t.client, []string{key}, limit.Rate, limit.Burst, limit.idleTTL().Milliseconds()).Slice()
	if err != nil {
		return denied, err
	}
	return parseReply(reply, limit)
}

func parseReply(reply []any, limit Limit) (*RateLimitResult, error) {
	if len(reply) != 3 {
		return nil, fmt.Errorf("rate limiter: unexpected reply %v", reply)
	}
	allowed, ok1 := reply[0].(int64)
	level, ok2 := reply[1].(string)
	waitMS, ok3 := reply[2].(int64)
	if !ok1 || !ok2 || !ok3 {
		return nil, fmt.Errorf("rate limiter: unexpected reply %v", reply)
	}
	tokens, err := strconv.ParseFloat(level, 64)
	if err != nil {
		return nil, fmt.Errorf("rate limiter: bucket level %q: %w", level, err)
	}
	return &RateLimitResult{
		Allowed:    allowed == 1,
		Limit:      limit.Burst,
		Remaining:  int(tokens),
		RetryAfter: time.Duration(waitMS) * time.Millisecond,
	}, nil
}
