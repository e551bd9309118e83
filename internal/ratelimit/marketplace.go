package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strings"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/freightdesk/internal/config"
	"github.com/smallbiznis/freightdesk/internal/observability/metrics"
)

const (
	keyQuotationSubmit = "ratelimit:quotation_submit:org:%s"
	keyInvite          = "ratelimit:invite:org:%s"

	EndpointQuotationSubmit = "quotation_submit"
	EndpointInvite          = "invite"
)

// MarketplaceLimiter throttles per-org write paths that fan out to other
// organizations. A nil or disabled limiter allows everything.
type MarketplaceLimiter struct {
	enabled bool
	bucket  *TokenBucket
	metrics *metrics.Metrics

	submit Limit
	invite Limit
}

func NewMarketplaceLimiter(cfg config.Config, client *redis.Client, m *metrics.Metrics) (*MarketplaceLimiter, error) {
	limitCfg := cfg.RateLimit
	if !limitCfg.Enabled || client == nil {
		return &MarketplaceLimiter{}, nil
	}
	submit := Limit{Rate: limitCfg.QuotationSubmitRate, Burst: limitCfg.QuotationSubmitBurst}
	if !submit.valid() {
		return nil, errors.New("quotation submit rate limit must be positive")
	}
	invite := Limit{Rate: limitCfg.InviteRate, Burst: limitCfg.InviteBurst}
	if !invite.valid() {
		return nil, errors.New("invite rate limit must be positive")
	}

	return &MarketplaceLimiter{
		enabled: true,
		bucket:  NewTokenBucket(client),
		metrics: m,
		submit:  submit,
		invite:  invite,
	}, nil
}

func (l *MarketplaceLimiter) Enabled() bool {
	return l != nil && l.enabled
}

func (l *MarketplaceLimiter) AllowQuotationSubmit(ctx context.Context, orgID string) (*RateLimitResult, error) {
	return l.allow(ctx, EndpointQuotationSubmit, fmt.Sprintf(keyQuotationSubmit, strings.TrimSpace(orgID)), orgID, l.submit)
}

func (l *MarketplaceLimiter) AllowInvite(ctx context.Context, orgID string) (*RateLimitResult, error) {
	return l.allow(ctx, EndpointInvite, fmt.Sprintf(keyInvite, strings.TrimSpace(orgID)), orgID, l.invite)
}

func (l *MarketplaceLimiter) allow(ctx context.Context, endpoint, key, orgID string, limit Limit) (*RateLimitResult, error) {
	if !l.Enabled() {
		return &RateLimitResult{Allowed: true}, nil
	}

	result, err := l.bucket.Allow(ctx, key, limit)
	if err != nil {
		l.metrics.RecordRateLimitDenied(ctx, orgID, endpoint, "error")
		return result, err
	}
	if result.Allowed {
		l.metrics.RecordRateLimitAllowed(ctx, orgID, endpoint)
	} else {
		l.metrics.RecordRateLimitDenied(ctx, orgID, endpoint, "exhausted")
	}
	return result, nil
}
