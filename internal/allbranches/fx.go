package allbranches

import (
	"github.com/smallbiznis/tindahan/internal/config"
	obsmetrics "github.com/smallbiznis/tindahan/internal/observability/metrics"
	storedomain "github.com/smallbiznis/tindahan/internal/store/domain"
	"github.com/smallbiznis/tindahan/internal/tenant"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("allbranches",
	fx.Provide(newService),
)

func newService(
	db *gorm.DB,
	stores storedomain.Repository,
	router *tenant.Router,
	cfg config.Config,
	log *zap.Logger,
	metrics *obsmetrics.Metrics,
) *Service {
	return NewService(db, stores, router, cfg.BranchQueryTimeout, log, metrics)
}
