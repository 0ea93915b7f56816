package shopify

import "go.uber.org/fx"

var Module = fx.Module("shopify",
	fx.Provide(NewClient),
	fx.Provide(NewExportReader),
)
