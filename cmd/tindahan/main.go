package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/tindahan/internal/allbranches"
	"github.com/smallbiznis/tindahan/internal/config"
	"github.com/smallbiznis/tindahan/internal/migration"
	"github.com/smallbiznis/tindahan/internal/observability"
	"github.com/smallbiznis/tindahan/internal/server"
	"github.com/smallbiznis/tindahan/internal/store"
	"github.com/smallbiznis/tindahan/internal/tenant"
	"github.com/smallbiznis/tindahan/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		// Core infrastructure
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,

		// Functional domains
		migration.Module,
		tenant.Module,
		store.Module,
		allbranches.Module,
		server.Module,
	)
	app.Run()
}

func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}
