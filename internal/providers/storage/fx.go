package storage

import (
	"github.com/smallbiznis/freightdesk/internal/config"
	"go.uber.org/fx"
)

var Module = fx.Module("providers.storage",
	fx.Provide(func(cfg config.Config) (Provider, error) {
		return NewLocal(cfg.Storage.Dir, cfg.Storage.PublicBaseURL)
	}),
)
