package main

import (
	"context"
	"time"

	"github.com/smallbiznis/freightdesk/internal/config"
	"github.com/smallbiznis/freightdesk/internal/migration"
	"github.com/smallbiznis/freightdesk/internal/observability"
	"github.com/smallbiznis/freightdesk/pkg/db"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply schema migrations and seed reference data, then exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		var (
			conn *gorm.DB
			cfg  config.Config
			log  *zap.Logger
		)
		app := fx.New(
			config.Module,
			observability.Module,
			db.Module,
			fx.Populate(&conn, &cfg, &log),
			fx.NopLogger,
		)
		if err := app.Err(); err != nil {
			return err
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), 2*time.Minute)
		defer cancel()
		if err := app.Start(ctx); err != nil {
			return err
		}
		defer func() {
			stopCtx, stopCancel := context.WithTimeout(context.Background(), 15*time.Second)
			defer stopCancel()
			_ = app.Stop(stopCtx)
		}()

		if err := migration.Apply(conn, cfg, log); err != nil {
			return err
		}
		versions, err := migration.Versions()
		if err != nil {
			return err
		}
		log.Info("migrations applied",
			zap.String("db_type", cfg.DBType),
			zap.Uint("latest_version", versions[len(versions)-1]),
		)
		return nil
	},
}
