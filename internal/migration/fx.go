package migration

import (
	"github.com/smallbiznis/freightdesk/internal/config"
	"github.com/smallbiznis/freightdesk/internal/seed"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, cfg config.Config, log *zap.Logger) error {
		return Apply(conn, cfg, log)
	}),
)

// Apply brings the schema up to date and seeds reference data.
// Postgres uses the versioned SQL migrations; other drivers fall back to AutoMigrate.
func Apply(conn *gorm.DB, cfg config.Config, log *zap.Logger) error {
	if log == nil {
		log = zap.NewNop()
	}

	if cfg.DBType == "postgres" {
		sqlDB, err := conn.DB()
		if err != nil {
			return err
		}
		if _, err := RunMigrations(sqlDB, log); err != nil {
			return err
		}
	} else {
		log.Info("applying schema with automigrate", zap.String("db_type", cfg.DBType))
		if err := AutoMigrate(conn); err != nil {
			return err
		}
	}

	if err := seed.EnsureReferenceData(conn); err != nil {
		return err
	}
	if cfg.SeedDemoData && !cfg.IsProduction() {
		log.Info("seeding demo marketplace")
		return seed.EnsureDemoMarketplace(conn)
	}
	return nil
}
