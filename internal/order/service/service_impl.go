package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/bwmarrin/snowflake"
	attributiondomain "github.com/staudal/backend-postbuddy-sub000/internal/attribution/domain"
	"github.com/staudal/backend-postbuddy-sub000/internal/events"
	"github.com/staudal/backend-postbuddy-sub000/internal/observability/metrics"
	orderdomain "github.com/staudal/backend-postbuddy-sub000/internal/order/domain"
	"github.com/staudal/backend-postbuddy-sub000/pkg/db/option"
	"github.com/staudal/backend-postbuddy-sub000/pkg/db/pagination"
	"github.com/staudal/backend-postbuddy-sub000/pkg/repository"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	// upsertBatchSize is how many incoming orders share one transaction.
	upsertBatchSize = 1000
	// txTimeout bounds each batch transaction.
	txTimeout = 10 * time.Second
)

type Params struct {
	fx.In

	DB     *gorm.DB
	Log    *zap.Logger
	GenID  *snowflake.Node
	Ledger attributiondomain.Ledger
	Outbox *events.Outbox            `optional:"true"`
	Metric *metrics.ReconcileMetrics `optional:"true"`
}

type Service struct {
	db     *gorm.DB
	log    *zap.Logger
	genID  *snowflake.Node
	ledger attributiondomain.Ledger
	outbox *events.Outbox
	metric *metrics.ReconcileMetrics
	repo   repository.Repository[orderdomain.Order]
}

func NewService(p Params) orderdomain.Service {
	return &Service{
		db:     p.DB,
		log:    p.Log.Named("order.service"),
		genID:  p.GenID,
		ledger: p.Ledger,
		outbox: p.Outbox,
		metric: p.Metric,
		repo:   repository.ProvideStore[orderdomain.Order](p.DB),
	}
}

// UpsertOrders splits the input into contiguous batches and processes each in
// its own transaction, in parallel. The caller must not repeat an external id
// across batches within one call; within a batch all operations on an id are
// sequential.
func (s *Service) UpsertOrders(ctx context.Context, userID snowflake.ID, orders []orderdomain.IncomingOrder) (orderdomain.UpsertResult, error) {
	if userID == 0 {
		return orderdomain.UpsertResult{}, orderdomain.ErrInvalidUser
	}

	result := orderdomain.UpsertResult{Seen: len(orders)}
	if len(orders) == 0 {
		return result, nil
	}

	var (
		mu    sync.Mutex
		group errgroup.Group
	)
	for start := 0; start < len(orders); start += upsertBatchSize {
		end := start + upsertBatchSize
		if end > len(orders) {
			end = len(orders)
		}
		batch := orders[start:end]
		group.Go(func() error {
			partial, err := s.processBatch(ctx, userID, batch)
			if err != nil {
				return err
			}
			mu.Lock()
			result.Inserted += partial.Inserted
			result.Refunded += partial.Refunded
			result.Deleted += partial.Deleted
			mu.Unlock()
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			err = orderdomain.ErrTransactionTimeout
		}
		return result, err
	}

	if s.metric != nil {
		s.metric.AddOrdersImported(userID.String(), result.Inserted)
		s.metric.AddOrdersRefundedOut(userID.String(), result.Deleted)
	}
	s.log.Info("orders upserted",
		zap.String("user_id", userID.String()),
		zap.Int("seen", result.Seen),
		zap.Int("inserted", result.Inserted),
		zap.Int("refunded", result.Refunded),
		zap.Int("deleted", result.Deleted),
	)
	return result, nil
}

func (s *Service) processBatch(ctx context.Context, userID snowflake.ID, batch []orderdomain.IncomingOrder) (orderdomain.UpsertResult, error) {
	ctx, cancel := context.WithTimeout(ctx, txTimeout)
	defer cancel()

	var result orderdomain.UpsertResult
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ids := make([]string, 0, len(batch))
		for _, incoming := range batch {
			if incoming.ExternalID == "" {
				continue
			}
			ids = append(ids, incoming.ExternalID)
		}
		if len(ids) == 0 {
			return nil
		}

		var existing []*orderdomain.Order
		if err := tx.WithContext(ctx).
			Where("user_id = ? AND external_id IN ?", userID, ids).
			Find(&existing).Error; err != nil {
			return err
		}
		byExternal := make(map[string]*orderdomain.Order, len(existing))
		for _, record := range existing {
			byExternal[record.ExternalID] = record
		}

		inserts := make([]*orderdomain.Order, 0, len(batch))
		for _, incoming := range batch {
			if incoming.ExternalID == "" {
				continue
			}
			if current, ok := byExternal[incoming.ExternalID]; ok {
				if len(incoming.Refunds) == 0 {
					continue
				}
				deleted, err := s.applyRefund(ctx, tx, current, incoming)
				if err != nil {
					return err
				}
				result.Refunded++
				if deleted {
					result.Deleted++
				}
				continue
			}
			inserts = append(inserts, s.formatOrderData(userID, incoming))
		}

		if len(inserts) > 0 {
			if err := tx.WithContext(ctx).CreateInBatches(inserts, 200).Error; err != nil {
				return err
			}
			result.Inserted += len(inserts)
		}
		return nil
	})
	if err != nil {
		return orderdomain.UpsertResult{}, err
	}
	return result, nil
}

// applyRefund subtracts the refund total from the stored amount. Orders
// refunded to zero or below are removed together with their associations,
// so fully refunded orders never attribute revenue.
func (s *Service) applyRefund(ctx context.Context, tx *gorm.DB, current *orderdomain.Order, incoming orderdomain.IncomingOrder) (bool, error) {
	refunded := incoming.RefundTotal()
	if refunded <= 0 {
		return false, nil
	}

	remaining := current.Amount - refunded
	if remaining <= 0 {
		if err := s.ledger.UnlinkOrder(ctx, tx, current.ID); err != nil {
			return false, err
		}
		if err := tx.WithContext(ctx).Delete(&orderdomain.Order{}, "id = ?", current.ID).Error; err != nil {
			return false, err
		}
		if s.outbox != nil {
			_ = s.outbox.PublishTx(ctx, tx, events.Event{
				UserID:    current.UserID,
				Type:      events.EventOrderRefundedOut,
				Payload:   map[string]any{"order_id": current.ID.String(), "external_id": current.ExternalID},
				DedupeKey: "refunded_out:" + current.ExternalID,
			})
		}
		return true, nil
	}

	return false, tx.WithContext(ctx).Model(&orderdomain.Order{}).
		Where("id = ?", current.ID).
		Updates(map[string]any{
			"amount":     remaining,
			"updated_at": time.Now().UTC(),
		}).Error
}

// formatOrderData normalizes free-text identity fields before persistence.
// Names, email and address are lower-cased; the zip comes from the first
// address entry; missing fields default to the empty string.
func (s *Service) formatOrderData(userID snowflake.ID, incoming orderdomain.IncomingOrder) *orderdomain.Order {
	now := time.Now().UTC()
	return &orderdomain.Order{
		ID:            s.genID.Generate(),
		ExternalID:    incoming.ExternalID,
		UserID:        userID,
		Amount:        incoming.Amount,
		DiscountCodes: datatypes.NewJSONSlice(incoming.DiscountCodes),
		FirstName:     strings.ToLower(strings.TrimSpace(incoming.Customer.FirstName)),
		LastName:      strings.ToLower(strings.TrimSpace(incoming.Customer.LastName)),
		Email:         strings.ToLower(strings.TrimSpace(incoming.Customer.Email)),
		Address:       strings.ToLower(strings.TrimSpace(incoming.Customer.Address1)),
		ZipCode:       strings.TrimSpace(incoming.Customer.Zip),
		PlacedAt:      incoming.PlacedAt,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

func (s *Service) ListByUser(ctx context.Context, req orderdomain.ListOrdersRequest) (orderdomain.ListOrdersResponse, error) {
	if req.UserID == 0 {
		return orderdomain.ListOrdersResponse{}, orderdomain.ErrInvalidUser
	}
	pageSize := req.PageSize
	if pageSize <= 0 {
		pageSize = 50
	}

	items, err := s.repo.Find(ctx, &orderdomain.Order{UserID: req.UserID},
		option.ApplyPagination(pagination.Pagination{
			PageToken: req.PageToken,
			PageSize:  int(pageSize),
		}),
		option.WithSortBy(option.QuerySortBy{Allow: map[string]bool{"created_at": true}}),
	)
	if err != nil {
		return orderdomain.ListOrdersResponse{}, err
	}

	pageInfo := pagination.BuildCursorPageInfo(items, pageSize, func(record *orderdomain.Order) string {
		token, err := pagination.EncodeCursor(pagination.Cursor{
			ID:        record.ID.String(),
			CreatedAt: record.CreatedAt.Format(time.RFC3339),
		})
		if err != nil {
			return ""
		}
		return token
	})
	if pageInfo != nil && pageInfo.HasMore && len(items) > int(pageSize) {
		items = items[:pageSize]
	}

	records := make([]orderdomain.Order, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		records = append(records, *item)
	}

	resp := orderdomain.ListOrdersResponse{Orders: records}
	if pageInfo != nil {
		resp.PageInfo = *pageInfo
	}
	return resp, nil
}

func (s *Service) AllByUser(ctx context.Context, userID snowflake.ID) ([]*orderdomain.Order, error) {
	if userID == 0 {
		return nil, orderdomain.ErrInvalidUser
	}
	return s.repo.Find(ctx, &orderdomain.Order{UserID: userID})
}
