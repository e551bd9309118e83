package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/freightdesk/internal/activity"
	"github.com/smallbiznis/freightdesk/internal/auth"
	"github.com/smallbiznis/freightdesk/internal/authorization"
	"github.com/smallbiznis/freightdesk/internal/clock"
	"github.com/smallbiznis/freightdesk/internal/config"
	"github.com/smallbiznis/freightdesk/internal/connection"
	"github.com/smallbiznis/freightdesk/internal/dashboard"
	"github.com/smallbiznis/freightdesk/internal/events"
	"github.com/smallbiznis/freightdesk/internal/expiry"
	"github.com/smallbiznis/freightdesk/internal/inquiry"
	"github.com/smallbiznis/freightdesk/internal/metricspush"
	"github.com/smallbiznis/freightdesk/internal/observability"
	"github.com/smallbiznis/freightdesk/internal/organization"
	"github.com/smallbiznis/freightdesk/internal/providers"
	"github.com/smallbiznis/freightdesk/internal/quotation"
	"github.com/smallbiznis/freightdesk/internal/ratelimit"
	"github.com/smallbiznis/freightdesk/internal/reference"
	"github.com/smallbiznis/freightdesk/internal/subscription"
	"github.com/smallbiznis/freightdesk/pkg/db"
	"go.uber.org/fx"
)

// infrastructure is shared by every subcommand.
func infrastructure() fx.Option {
	return fx.Options(
		config.Module,
		observability.Module,
		fx.Provide(newSnowflakeNode),
		db.Module,
		clock.Module,
	)
}

// domain wires the marketplace services.
func domain() fx.Option {
	return fx.Options(
		authorization.Module,
		auth.Module,
		reference.Module,
		providers.Module,
		events.Module,
		ratelimit.Module,
		activity.Module,
		subscription.Module,
		organization.Module,
		connection.Module,
		inquiry.Module,
		quotation.Module,
		expiry.Module,
		dashboard.Module,
		metricspush.Module,
	)
}

func newSnowflakeNode(cfg config.Config) (*snowflake.Node, error) {
	return snowflake.NewNode(cfg.SnowflakeNode)
}
