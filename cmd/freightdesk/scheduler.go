package main

import (
	"github.com/smallbiznis/freightdesk/internal/scheduler"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
)

var schedulerCmd = &cobra.Command{
	Use:   "scheduler",
	Short: "Run only the background jobs (expiry sweep, outbox relay)",
	RunE: func(cmd *cobra.Command, args []string) error {
		app := fx.New(
			infrastructure(),
			domain(),
			scheduler.Module,
		)
		app.Run()
		return app.Err()
	},
}
