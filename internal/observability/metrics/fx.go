package metrics

import (
	appconfig "github.com/staudal/backend-postbuddy-sub000/internal/config"
	"go.opentelemetry.io/otel"
	"go.uber.org/fx"
)

var Module = fx.Module("observability.metrics",
	fx.Provide(func(cfg appconfig.Config) Config {
		return Config{
			ServiceName: "postbuddy",
			Environment: cfg.Environment,
		}
	}),
	fx.Provide(func(cfg Config) (*HTTPMetrics, error) {
		return NewHTTPMetrics(cfg, otel.GetMeterProvider())
	}),
	fx.Provide(ReconcileWithConfig),
)
