// Package server exposes the registry, provisioning, and cross-branch
// reporting operations over HTTP and resolves every request's branch
// scope.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/smallbiznis/tindahan/internal/allbranches"
	"github.com/smallbiznis/tindahan/internal/config"
	obslogger "github.com/smallbiznis/tindahan/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/tindahan/internal/observability/metrics"
	obstracing "github.com/smallbiznis/tindahan/internal/observability/tracing"
	storedomain "github.com/smallbiznis/tindahan/internal/store/domain"
	"github.com/smallbiznis/tindahan/internal/tenant"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	fx.Provide(NewServer),
	fx.Invoke(registerRoutes),
	fx.Invoke(run),
)

func NewEngine(log *zap.Logger, metrics *obsmetrics.Metrics) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obslogger.GinMiddleware(log))
	r.Use(obstracing.GinMiddleware())
	r.Use(obsmetrics.GinMiddleware(metrics))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(log *zap.Logger, metrics *obsmetrics.Metrics) *gin.Engine {
	return NewEngine(log, metrics)
}

type Server struct {
	engine      *gin.Engine
	cfg         config.Config
	db          *gorm.DB
	router      *tenant.Router
	storeSvc    storedomain.Service
	allBranches *allbranches.Service
	log         *zap.Logger
}

type ServerParams struct {
	fx.In

	Gin         *gin.Engine
	Cfg         config.Config
	DB          *gorm.DB
	Router      *tenant.Router
	StoreSvc    storedomain.Service
	AllBranches *allbranches.Service
	Log         *zap.Logger
}

func NewServer(p ServerParams) *Server {
	return &Server{
		engine:      p.Gin,
		cfg:         p.Cfg,
		db:          p.DB,
		router:      p.Router,
		storeSvc:    p.StoreSvc,
		allBranches: p.AllBranches,
		log:         p.Log.Named("server"),
	}
}

func registerRoutes(s *Server) {
	api := s.engine.Group("/api")
	api.Use(s.StoreScope())
	{
		stores := api.Group("/stores")
		{
			stores.POST("", s.CreateStore)
			stores.GET("", s.ListStores)
			stores.GET("/main", s.GetMainStore)
			stores.GET("/:id", s.GetStore)
			stores.PATCH("/:id", s.UpdateStore)
			stores.DELETE("/:id", s.DeleteStore)
			stores.GET("/:id/statistics", s.StoreStatistics)
			stores.POST("/:id/database", s.ProvisionStoreDatabase)
			stores.POST("/:id/users/:userId", s.AssignUserToStore)
		}

		branches := api.Group("/all-branches")
		{
			branches.GET("/dashboard", s.AllBranchesDashboard)
			branches.GET("/sales", s.AllBranchesSales)
			branches.GET("/transactions", s.AllBranchesTransactions)
		}
	}
}

func run(lc fx.Lifecycle, r *gin.Engine, cfg config.Config, log *zap.Logger) {
	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: r,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Info("http server listening", zap.String("addr", cfg.HTTPAddr))
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					log.Fatal("http server failed", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}
