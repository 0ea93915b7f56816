package attribution

import (
	"github.com/staudal/backend-postbuddy-sub000/internal/attribution/service"
	"go.uber.org/fx"
)

var Module = fx.Module("attribution.ledger",
	fx.Provide(service.NewLedger),
)
