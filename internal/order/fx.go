package order

import (
	"github.com/staudal/backend-postbuddy-sub000/internal/order/service"
	"go.uber.org/fx"
)

var Module = fx.Module("order.service",
	fx.Provide(service.NewService),
)
