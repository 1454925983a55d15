package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/smallbiznis/tindahan/internal/observability/logger"
	"github.com/smallbiznis/tindahan/internal/observability/metrics"
	"github.com/smallbiznis/tindahan/internal/observability/tracing"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
	gormlogger "gorm.io/gorm/logger"
)

var Module = fx.Module("observability",
	fx.Provide(
		logger.New,
		provideGormLogger,
		provideRegisterer,
		metrics.New,
		tracing.NewProvider,
	),
	fx.Invoke(ensureTracingProvider),
)

func ensureTracingProvider(_ *sdktrace.TracerProvider) {}

func provideGormLogger(log *zap.Logger) gormlogger.Interface {
	return logger.NewGormLogger(log, logger.DefaultGormLoggerConfig())
}

func provideRegisterer() prometheus.Registerer {
	return prometheus.DefaultRegisterer
}
