// Package server exposes the HTTP surface: export triggers, the storefront
// webhook, and read endpoints over orders and attributions.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	attributiondomain "github.com/staudal/backend-postbuddy-sub000/internal/attribution/domain"
	auditdomain "github.com/staudal/backend-postbuddy-sub000/internal/audit/domain"
	"github.com/staudal/backend-postbuddy-sub000/internal/config"
	"github.com/staudal/backend-postbuddy-sub000/internal/observability/logger"
	"github.com/staudal/backend-postbuddy-sub000/internal/observability/metrics"
	"github.com/staudal/backend-postbuddy-sub000/internal/observability/tracing"
	orderdomain "github.com/staudal/backend-postbuddy-sub000/internal/order/domain"
	reconciledomain "github.com/staudal/backend-postbuddy-sub000/internal/reconcile/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Module wires the engine, the server and the HTTP lifecycle.
var Module = fx.Module("server",
	fx.Provide(NewEngine),
	fx.Provide(NewServer),
	fx.Invoke(func(s *Server) { s.RegisterRoutes() }),
	fx.Invoke(RunHTTP),
)

// Params collects the server's dependencies.
type Params struct {
	fx.In

	Config       config.Config
	Log          *zap.Logger
	DB           *gorm.DB
	Engine       *gin.Engine
	ReconcileSvc reconciledomain.Service
	OrderSvc     orderdomain.Service
	Ledger       attributiondomain.Ledger
	AuditSvc     auditdomain.Service
}

// Server holds handler dependencies.
type Server struct {
	cfg          config.Config
	log          *zap.Logger
	db           *gorm.DB
	engine       *gin.Engine
	reconcileSvc reconciledomain.Service
	orderSvc     orderdomain.Service
	ledger       attributiondomain.Ledger
	auditSvc     auditdomain.Service
	webhookLimit *rateLimiter
}

// NewEngine builds the gin engine with logging, tracing and metrics
// middleware applied to every route.
func NewEngine(cfg config.Config, log *zap.Logger, httpMetrics *metrics.HTTPMetrics) *gin.Engine {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(tracing.GinMiddleware())
	engine.Use(logger.GinMiddleware(logger.MiddlewareConfig{
		SkipPaths: []string{"/healthz", "/metrics"},
	}))
	engine.Use(metrics.GinMiddleware(httpMetrics))
	return engine
}

func NewServer(p Params) *Server {
	return &Server{
		cfg:          p.Config,
		log:          p.Log.Named("server"),
		db:           p.DB,
		engine:       p.Engine,
		reconcileSvc: p.ReconcileSvc,
		orderSvc:     p.OrderSvc,
		ledger:       p.Ledger,
		auditSvc:     p.AuditSvc,
		webhookLimit: newRateLimiter(60, time.Minute),
	}
}

// RegisterRoutes attaches all handlers to the engine.
func (s *Server) RegisterRoutes() {
	s.engine.GET("/healthz", s.Healthz)
	s.engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	s.engine.POST("/webhooks/shopify/bulk-operations-finish", s.HandleBulkOperationWebhook)

	api := s.engine.Group("/api/users/:user_id")
	api.POST("/exports", s.TriggerExport)
	api.GET("/orders", s.ListOrders)
	api.GET("/campaigns/:campaign_id/attributions", s.ListCampaignAttributions)
	api.GET("/campaigns/:campaign_id/revenue", s.CampaignRevenue)
}

// Healthz reports liveness and database reachability.
func (s *Server) Healthz(c *gin.Context) {
	sqlDB, err := s.db.DB()
	if err == nil {
		err = sqlDB.PingContext(c.Request.Context())
	}
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// RunHTTP starts the HTTP listener under the fx lifecycle.
func RunHTTP(lc fx.Lifecycle, engine *gin.Engine, cfg config.Config, log *zap.Logger) {
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Error("http server stopped", zap.Error(err))
				}
			}()
			log.Info("http server listening", zap.String("addr", cfg.HTTPAddr))
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}
