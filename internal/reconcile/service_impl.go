package reconcile

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/staudal/backend-postbuddy-sub000/internal/cache"
	campaigndomain "github.com/staudal/backend-postbuddy-sub000/internal/campaign/domain"
	"github.com/staudal/backend-postbuddy-sub000/internal/events"
	"github.com/staudal/backend-postbuddy-sub000/internal/match"
	"github.com/staudal/backend-postbuddy-sub000/internal/observability/metrics"
	orderdomain "github.com/staudal/backend-postbuddy-sub000/internal/order/domain"
	reconciledomain "github.com/staudal/backend-postbuddy-sub000/internal/reconcile/domain"
	"github.com/staudal/backend-postbuddy-sub000/internal/shopify"
	userdomain "github.com/staudal/backend-postbuddy-sub000/internal/user/domain"
	"github.com/staudal/backend-postbuddy-sub000/pkg/repository"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	GenID    *snowflake.Node
	Client   shopify.Client
	Reader   *shopify.ExportReader
	OrderSvc orderdomain.Service
	Matcher  *match.Matcher
	Outbox   *events.Outbox            `optional:"true"`
	Metric   *metrics.ReconcileMetrics `optional:"true"`
}

// Service orchestrates trigger → export → import → reconcile for one user
// at a time.
type Service struct {
	db        *gorm.DB
	log       *zap.Logger
	genID     *snowflake.Node
	client    shopify.Client
	reader    *shopify.ExportReader
	orderSvc  orderdomain.Service
	matcher   *match.Matcher
	outbox    *events.Outbox
	metric    *metrics.ReconcileMetrics
	users     repository.Repository[userdomain.User]
	campaigns repository.Repository[campaigndomain.Campaign]
	imports   repository.Repository[reconciledomain.BulkImport]
	locks     *userLocks

	// campaignCache absorbs replayed webhooks that reconcile the same
	// user within a short window.
	campaignCache cache.Cache[snowflake.ID, []*campaigndomain.Campaign]
}

// campaignCacheTTL bounds how long a user's campaign list is reused between
// reconciliation passes.
const campaignCacheTTL = time.Minute

func NewService(p Params) reconciledomain.Service {
	return &Service{
		db:        p.DB,
		log:       p.Log.Named("reconcile"),
		genID:     p.GenID,
		client:    p.Client,
		reader:    p.Reader,
		orderSvc:  p.OrderSvc,
		matcher:   p.Matcher,
		outbox:    p.Outbox,
		metric:    p.Metric,
		users:     repository.ProvideStore[userdomain.User](p.DB),
		campaigns: repository.ProvideStore[campaigndomain.Campaign](p.DB),
		imports:   repository.ProvideStore[reconciledomain.BulkImport](p.DB),
		locks:     newUserLocks(),

		campaignCache: cache.NewTTLCache[snowflake.ID, []*campaigndomain.Campaign](),
	}
}

func (s *Service) TriggerBulkExport(ctx context.Context, userID snowflake.ID) (string, error) {
	user, err := s.loadUser(ctx, userID)
	if err != nil {
		return "", err
	}

	operationID, err := s.client.TriggerOrdersExport(ctx, user.ShopDomain, user.AccessToken)
	if err != nil {
		if s.metric != nil {
			s.metric.IncImportFailure("trigger")
		}
		return "", err
	}

	now := time.Now().UTC()
	record := &reconciledomain.BulkImport{
		ID:          s.genID.Generate(),
		UserID:      userID,
		OperationID: operationID,
		Status:      reconciledomain.ImportStatusTriggered,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.imports.Create(ctx, record); err != nil {
		return "", err
	}

	s.log.Info("bulk export triggered",
		zap.String("user_id", userID.String()),
		zap.String("operation_id", operationID),
	)
	return operationID, nil
}

func (s *Service) OnBulkExportFinished(ctx context.Context, userID snowflake.ID, operationID string) error {
	operationID = strings.TrimSpace(operationID)
	if operationID == "" {
		return reconciledomain.ErrMissingOperationID
	}

	release := s.locks.acquire(userID)
	defer release()

	start := time.Now()
	err := s.runImport(ctx, userID, operationID)
	if s.metric != nil {
		outcome := "success"
		if err != nil {
			outcome = "failure"
		}
		s.metric.ObserveImport(outcome, time.Since(start))
	}
	return err
}

func (s *Service) runImport(ctx context.Context, userID snowflake.ID, operationID string) error {
	user, err := s.loadUser(ctx, userID)
	if err != nil {
		return err
	}

	record, err := s.ensureImportRecord(ctx, userID, operationID)
	if err != nil {
		return err
	}
	if record.Status == reconciledomain.ImportStatusReconciled {
		// Webhook redelivery after a completed run.
		s.log.Info("import already reconciled",
			zap.String("user_id", userID.String()),
			zap.String("operation_id", operationID),
		)
		return nil
	}

	operation, err := s.client.GetBulkOperation(ctx, user.ShopDomain, user.AccessToken, operationID)
	if err != nil {
		s.failImport(ctx, record, "resolve", err)
		return err
	}
	if !operation.Completed() {
		if operation.Status == shopify.OperationStatusFailed || operation.Status == shopify.OperationStatusCanceled {
			err := shopify.ErrExportFetch
			s.failImport(ctx, record, "resolve", err)
			return err
		}
		return shopify.ErrOperationIncomplete
	}

	url := operation.ResultURL()
	if url == "" {
		err := shopify.ErrExportFetch
		s.failImport(ctx, record, "resolve", err)
		return err
	}
	s.advance(ctx, record, reconciledomain.ImportStatusReady, nil)

	orders, skipped, err := s.reader.FetchOrders(ctx, url)
	if err != nil {
		s.failImport(ctx, record, "fetch", err)
		return err
	}
	if s.metric != nil {
		s.metric.AddLinesSkipped(userID.String(), skipped)
	}

	result, err := s.orderSvc.UpsertOrders(ctx, userID, orders)
	if err != nil {
		s.failImport(ctx, record, "import", err)
		return err
	}
	s.advance(ctx, record, reconciledomain.ImportStatusImported, map[string]any{
		"orders_seen":    result.Seen,
		"orders_created": result.Inserted,
		"orders_removed": result.Deleted,
		"lines_skipped":  skipped,
	})

	attributions, err := s.reconcileUser(ctx, userID)
	if err != nil {
		s.failImport(ctx, record, "reconcile", err)
		return err
	}

	now := time.Now().UTC()
	s.advance(ctx, record, reconciledomain.ImportStatusReconciled, map[string]any{
		"attributions": attributions,
		"completed_at": now,
	})

	if s.outbox != nil {
		_ = s.outbox.Publish(ctx, events.Event{
			UserID: userID,
			Type:   events.EventBulkImportCompleted,
			Payload: events.BulkImportPayload{
				ImportID:      record.ID.String(),
				OperationID:   operationID,
				OrdersSeen:    result.Seen,
				OrdersCreated: result.Inserted,
				OrdersRemoved: result.Deleted,
			}.ToMap(),
			DedupeKey: "bulk_import:" + record.ID.String(),
		})
	}

	s.log.Info("bulk import reconciled",
		zap.String("user_id", userID.String()),
		zap.String("operation_id", operationID),
		zap.Int("orders_seen", result.Seen),
		zap.Int("orders_created", result.Inserted),
		zap.Int("attributions", attributions),
	)
	return nil
}

// reconcileUser matches every stored order of the user against every
// campaign. Campaigns are evaluated independently per order; an order can
// attribute to several overlapping campaigns.
func (s *Service) reconcileUser(ctx context.Context, userID snowflake.ID) (int, error) {
	campaigns, ok := s.campaignCache.Get(userID)
	if !ok {
		var err error
		campaigns, err = s.campaigns.Find(ctx, &campaigndomain.Campaign{UserID: userID})
		if err != nil {
			return 0, err
		}
		s.campaignCache.Set(userID, campaigns, campaignCacheTTL)
	}
	if len(campaigns) == 0 {
		return 0, nil
	}

	orders, err := s.orderSvc.AllByUser(ctx, userID)
	if err != nil {
		return 0, err
	}

	linked := 0
	for _, order := range orders {
		for _, campaign := range campaigns {
			if campaign == nil {
				continue
			}
			result, err := s.matcher.MatchOrder(ctx, order, *campaign)
			if err != nil {
				return linked, err
			}
			linked += result.Linked
		}
	}
	return linked, nil
}

func (s *Service) loadUser(ctx context.Context, userID snowflake.ID) (*userdomain.User, error) {
	if userID == 0 {
		return nil, userdomain.ErrUserNotFound
	}
	user, err := s.users.FindOne(ctx, &userdomain.User{ID: userID})
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, userdomain.ErrUserNotFound
	}
	if strings.TrimSpace(user.ShopDomain) == "" || strings.TrimSpace(user.AccessToken) == "" {
		return nil, userdomain.ErrShopNotConnected
	}
	return user, nil
}

func (s *Service) ensureImportRecord(ctx context.Context, userID snowflake.ID, operationID string) (*reconciledomain.BulkImport, error) {
	existing, err := s.imports.FindOne(ctx, &reconciledomain.BulkImport{
		UserID:      userID,
		OperationID: operationID,
	})
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	// Operation triggered outside this process (or before the table
	// existed); record it so the state machine stays complete.
	now := time.Now().UTC()
	record := &reconciledomain.BulkImport{
		ID:          s.genID.Generate(),
		UserID:      userID,
		OperationID: operationID,
		Status:      reconciledomain.ImportStatusTriggered,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.imports.Create(ctx, record); err != nil {
		return nil, err
	}
	return record, nil
}

func (s *Service) advance(ctx context.Context, record *reconciledomain.BulkImport, status reconciledomain.ImportStatus, extra map[string]any) {
	values := map[string]any{
		"status":     status,
		"updated_at": time.Now().UTC(),
	}
	for key, value := range extra {
		values[key] = value
	}
	if err := s.imports.Updates(ctx, record, values); err != nil {
		s.log.Warn("failed to advance import status",
			zap.String("import_id", record.ID.String()),
			zap.String("status", string(status)),
			zap.Error(err),
		)
		return
	}
	record.Status = status
}

func (s *Service) failImport(ctx context.Context, record *reconciledomain.BulkImport, stage string, cause error) {
	if s.metric != nil {
		s.metric.IncImportFailure(stage)
	}
	message := cause.Error()
	if err := s.imports.Updates(ctx, record, map[string]any{
		"status":     reconciledomain.ImportStatusFailed,
		"error":      message,
		"updated_at": time.Now().UTC(),
	}); err != nil {
		s.log.Warn("failed to record import error",
			zap.String("import_id", record.ID.String()),
			zap.Error(err),
		)
	}
}
