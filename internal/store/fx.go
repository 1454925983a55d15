package store

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/tindahan/internal/config"
	"github.com/smallbiznis/tindahan/internal/store/domain"
	"github.com/smallbiznis/tindahan/internal/store/repository"
	"github.com/smallbiznis/tindahan/internal/store/service"
	"github.com/smallbiznis/tindahan/internal/tenant"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("store.service",
	fx.Provide(repository.NewRepository),
	fx.Provide(newService),
)

func newService(
	db *gorm.DB,
	repo domain.Repository,
	provisioner *tenant.Provisioner,
	router *tenant.Router,
	cfg config.Config,
	genID *snowflake.Node,
	log *zap.Logger,
) domain.Service {
	return service.NewService(db, repo, provisioner, router, cfg, genID, log)
}
