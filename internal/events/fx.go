package events

import (
	"github.com/smallbiznis/freightdesk/internal/events/broker"
	"github.com/smallbiznis/freightdesk/internal/events/service"
	"go.uber.org/fx"
)

var Module = fx.Module("events",
	fx.Provide(service.NewPublisher),
	fx.Provide(broker.New),
	fx.Provide(service.NewRelay),
)
