package server

import (
	"context"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/freightdesk/internal/observability/logger"
	"github.com/smallbiznis/freightdesk/internal/ratelimit"
	"go.uber.org/zap"
)

// InviteLimiter is the slice of the marketplace limiter the invite routes need.
type InviteLimiter interface {
	AllowInvite(ctx context.Context, orgID string) (*ratelimit.RateLimitResult, error)
}

// InviteRateLimit throttles member and connection invites per organization.
// A limiter failure lets the request through.
func (s *Server) InviteRateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.inviteLimiter == nil {
			c.Next()
			return
		}

		orgID := activeOrgID(c)
		if orgID == 0 {
			AbortWithError(c, ErrNoActiveOrg)
			return
		}

		ctx := c.Request.Context()
		result, err := s.inviteLimiter.AllowInvite(ctx, orgID.String())
		if err != nil {
			logger.FromContext(ctx).Warn("invite rate limit check failed", zap.Error(err))
			c.Next()
			return
		}
		if result != nil && !result.Allowed {
			denyRateLimit(c, ratelimit.EndpointInvite, result)
			return
		}
		c.Next()
	}
}

func denyRateLimit(c *gin.Context, endpoint string, result *ratelimit.RateLimitResult) {
	logger.FromContext(c.Request.Context()).Warn("rate limit exceeded",
		zap.String("endpoint", endpoint),
	)

	retryAfter := 1
	if result != nil && result.RetryAfter > 0 {
		retryAfter = int(result.RetryAfter.Seconds() + 0.999)
	}
	c.Header("Retry-After", strconv.Itoa(retryAfter))
	AbortWithError(c, ErrRateLimited)
}
