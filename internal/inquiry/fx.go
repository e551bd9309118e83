package inquiry

import (
	"github.com/smallbiznis/freightdesk/internal/inquiry/repository"
	"github.com/smallbiznis/freightdesk/internal/inquiry/service"
	"go.uber.org/fx"
)

var Module = fx.Module("inquiry.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
