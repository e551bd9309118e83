package quotation

import (
	"github.com/smallbiznis/freightdesk/internal/quotation/repository"
	"github.com/smallbiznis/freightdesk/internal/quotation/service"
	"github.com/smallbiznis/freightdesk/internal/ratelimit"
	"go.uber.org/fx"
)

var Module = fx.Module("quotation.service",
	fx.Provide(repository.Provide),
	fx.Provide(func(l *ratelimit.MarketplaceLimiter) service.SubmitLimiter { return l }),
	fx.Provide(service.NewService),
)
