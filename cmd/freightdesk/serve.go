package main

import (
	"github.com/smallbiznis/freightdesk/internal/migration"
	"github.com/smallbiznis/freightdesk/internal/scheduler"
	"github.com/smallbiznis/freightdesk/internal/server"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API with the background jobs in process",
	RunE: func(cmd *cobra.Command, args []string) error {
		app := fx.New(
			infrastructure(),
			migration.Module,
			domain(),
			scheduler.Module,
			server.Module,
		)
		app.Run()
		return app.Err()
	},
}
