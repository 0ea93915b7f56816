package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/staudal/backend-postbuddy-sub000/internal/attribution"
	"github.com/staudal/backend-postbuddy-sub000/internal/audit"
	"github.com/staudal/backend-postbuddy-sub000/internal/clock"
	"github.com/staudal/backend-postbuddy-sub000/internal/config"
	"github.com/staudal/backend-postbuddy-sub000/internal/events"
	"github.com/staudal/backend-postbuddy-sub000/internal/match"
	"github.com/staudal/backend-postbuddy-sub000/internal/migration"
	"github.com/staudal/backend-postbuddy-sub000/internal/observability/logger"
	"github.com/staudal/backend-postbuddy-sub000/internal/observability/metrics"
	"github.com/staudal/backend-postbuddy-sub000/internal/observability/tracing"
	"github.com/staudal/backend-postbuddy-sub000/internal/order"
	"github.com/staudal/backend-postbuddy-sub000/internal/reconcile"
	"github.com/staudal/backend-postbuddy-sub000/internal/reconcile/poller"
	"github.com/staudal/backend-postbuddy-sub000/internal/seed"
	"github.com/staudal/backend-postbuddy-sub000/internal/server"
	"github.com/staudal/backend-postbuddy-sub000/internal/shopify"
	"github.com/staudal/backend-postbuddy-sub000/pkg/db"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

var version = "dev"

func main() {
	app := fx.New(
		config.Module,
		logger.Module,
		tracing.Module,
		metrics.Module,
		fx.Provide(func() *snowflake.Node {
			node, err := snowflake.NewNode(1)
			if err != nil {
				panic(err)
			}
			return node
		}),
		db.Module,
		fx.Invoke(func(conn *gorm.DB, cfg config.Config) error {
			sqlDB, err := conn.DB()
			if err != nil {
				return err
			}
			if err := migration.RunMigrations(sqlDB); err != nil {
				return err
			}
			if cfg.Bootstrap.SeedDemoData {
				return seed.EnsureDemoData(conn)
			}
			return nil
		}),
		clock.Module,
		events.Module,
		audit.Module,
		attribution.Module,
		match.Module,
		order.Module,
		shopify.Module,
		reconcile.Module,
		poller.Module,
		server.Module,
	)
	app.Run()
}
