package tracing

import (
	appconfig "github.com/staudal/backend-postbuddy-sub000/internal/config"
	"go.uber.org/fx"
)

var Module = fx.Module("observability.tracing",
	fx.Provide(func(cfg appconfig.Config) Config {
		return Config{
			Enabled:          cfg.Tracing.Enabled,
			ServiceName:      "postbuddy",
			ServiceVersion:   "dev",
			Environment:      cfg.Environment,
			ExporterEndpoint: cfg.Tracing.ExporterEndpoint,
			ExporterProtocol: cfg.Tracing.ExporterProtocol,
			SamplingRatio:    cfg.Tracing.SamplingRatio,
		}
	}),
	fx.Invoke(NewProvider),
)
