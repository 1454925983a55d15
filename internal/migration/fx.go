package migration

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/tindahan/internal/config"
	"github.com/smallbiznis/tindahan/internal/seed"
	"github.com/smallbiznis/tindahan/internal/tenant"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Provide(provideApplier),
	fx.Invoke(func(conn *gorm.DB, cfg config.Config) error {
		if !cfg.MigrateOnStart {
			return nil
		}

		sqlDB, err := conn.DB()
		if err != nil {
			return err
		}

		if err := RunMigrations(sqlDB); err != nil {
			return err
		}

		return seed.EnsureMainStore(conn)
	}),
)

func provideApplier(node *snowflake.Node) tenant.SchemaApplier {
	return NewApplier(node)
}
