package ratelimit

import (
	"context"
	"testing"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/freightdesk/internal/config"
	"github.com/stretchr/testify/require"
)

func TestDisabledLimiterAllows(t *testing.T) {
	l, err := NewMarketplaceLimiter(config.Config{}, nil, nil)
	require.NoError(t, err)
	require.False(t, l.Enabled())

	res, err := l.AllowQuotationSubmit(context.Background(), "1")
	require.NoError(t, err)
	require.True(t, res.Allowed)

	var nilLimiter *MarketplaceLimiter
	res, err = nilLimiter.AllowInvite(context.Background(), "1")
	require.NoError(t, err)
	require.True(t, res.Allowed)
}

func TestTokenBucketRequiresClient(t *testing.T) {
	var bucket *TokenBucket
	res, err := bucket.Allow(context.Background(), "k", Limit{Rate: 1, Burst: 1})
	require.ErrorIs(t, err, ErrLimiterNotConfigured)
	require.False(t, res.Allowed)
}

func TestIdleTTL(t *testing.T) {
	require.Equal(t, time.Second, Limit{}.idleTTL())
	require.Equal(t, 40*time.Second, Limit{Rate: 1, Burst: 20}.idleTTL())
	require.Equal(t, time.Second, Limit{Rate: 100, Burst: 1}.idleTTL())
}

func TestParseReply(t *testing.T) {
	limit := Limit{Rate: 0.5, Burst: 5}

	res, err := parseReply([]any{int64(1), "3.75", int64(0)}, limit)
	require.NoError(t, err)
	require.Equal(t, &RateLimitResult{Allowed: true, Limit: 5, Remaining: 3}, res)

	res, err = parseReply([]any{int64(0), "0.4", int64(1200)}, limit)
	require.NoError(t, err)
	require.False(t, res.Allowed)
	require.Equal(t, 1200*time.Millisecond, res.RetryAfter)

	_, err = parseReply([]any{int64(1), int64(3)}, limit)
	require.Error(t, err)
	_, err = parseReply([]any{int64(1), "nan-ish", int64(0)}, limit)
	require.Error(t, err)
}

func TestLimiterRejectsNonPositiveLimits(t *testing.T) {
	cfg := config.Config{}
	cfg.RateLimit.Enabled = true
	cfg.RateLimit.QuotationSubmitRate = 1
	cfg.RateLimit.InviteRate = 1
	cfg.RateLimit.InviteBurst = 1

	_, err := NewMarketplaceLimiter(cfg, redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"}), nil)
	require.Error(t, err)
}
