package connection

import (
	"github.com/smallbiznis/freightdesk/internal/connection/service"
	"go.uber.org/fx"
)

var Module = fx.Module("connection.service",
	fx.Provide(service.NewService),
)
