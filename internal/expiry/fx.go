package expiry

import "go.uber.org/fx"

var Module = fx.Module("expiry",
	fx.Provide(NewSweeper),
)
