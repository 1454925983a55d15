package migration

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/tindahan/internal/seed"
	"gorm.io/gorm"
)

// Applier builds the schema and baseline rows inside a freshly created
// branch database. It satisfies the provisioner's schema dependency.
type Applier struct {
	node *snowflake.Node
}

func NewApplier(node *snowflake.Node) *Applier {
	return &Applier{node: node}
}

func (a *Applier) ApplySchemaAndSeed(ctx context.Context, conn *gorm.DB) error {
	sqlDB, err := conn.DB()
	if err != nil {
		return err
	}
	if err := RunMigrations(sqlDB); err != nil {
		return err
	}
	return seed.EnsureBranchBaseline(ctx, conn, a.node)
}
