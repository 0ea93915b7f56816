package match

import "go.uber.org/fx"

var Module = fx.Module("match",
	fx.Provide(NewMatcher),
)
