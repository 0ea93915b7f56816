// Package poller recovers bulk imports whose completion webhook never
// arrived, by asking the storefront for the operation state directly.
package poller

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/staudal/backend-postbuddy-sub000/internal/clock"
	reconciledomain "github.com/staudal/backend-postbuddy-sub000/internal/reconcile/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB        *gorm.DB
	Log       *zap.Logger
	Clock     clock.Clock
	Reconcile reconciledomain.Service
	Config    Config `optional:"true"`
}

type Worker struct {
	db        *gorm.DB
	log       *zap.Logger
	clock     clock.Clock
	reconcile reconciledomain.Service
	cfg       Config
}

func NewWorker(p Params) *Worker {
	return &Worker{
		db:        p.DB,
		log:       p.Log.Named("reconcile.poller"),
		clock:     p.Clock,
		reconcile: p.Reconcile,
		cfg:       p.Config.withDefaults(),
	}
}

func (w *Worker) RunForever(ctx context.Context) {
	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		if err := w.RunOnce(ctx); err != nil {
			w.log.Warn("poll run failed", zap.Error(err))
		}
	}
}

func (w *Worker) RunOnce(ctx context.Context) error {
	if w.db == nil || w.reconcile == nil {
		return errors.New("poller_unavailable")
	}

	pending, err := w.claimPending(ctx, w.cfg.BatchSize)
	if err != nil {
		return err
	}
	for _, row := range pending {
		if err := w.reconcile.OnBulkExportFinished(ctx, row.UserID, row.OperationID); err != nil {
			// Incomplete operations stay triggered and get polled again.
			w.log.Info("pending import not ready",
				zap.String("user_id", row.UserID.String()),
				zap.String("operation_id", row.OperationID),
				zap.Error(err),
			)
		}
	}
	return nil
}

type pendingImport struct {
	ID          snowflake.ID
	UserID      snowflake.ID
	OperationID string
}

func (w *Worker) claimPending(ctx context.Context, limit int) ([]pendingImport, error) {
	cutoff := w.clock.Now().Add(-w.cfg.MinAge)

	var rows []pendingImport
	err := w.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.WithContext(ctx).Raw(
			`SELECT id, user_id, operation_id
			 FROM bulk_imports
			 WHERE status = ? AND created_at < ?
			 ORDER BY id
			 LIMIT ?
			 FOR UPDATE SKIP LOCKED`,
			reconciledomain.ImportStatusTriggered,
			cutoff,
			limit,
		).Scan(&rows).Error
	})
	if err != nil {
		return nil, err
	}
	return rows, nil
}
