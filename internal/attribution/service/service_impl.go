package service

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	attributiondomain "github.com/staudal/backend-postbuddy-sub000/internal/attribution/domain"
	"github.com/staudal/backend-postbuddy-sub000/pkg/repository"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
}

// Ledger is the gorm-backed association ledger. The existence check before
// insert keeps replays quiet; the unique pair index catches the remaining
// check-then-insert race.
type Ledger struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	repo  repository.Repository[attributiondomain.OrderProfile]
}

func NewLedger(p Params) attributiondomain.Ledger {
	return &Ledger{
		db:    p.DB,
		log:   p.Log.Named("attribution.ledger"),
		genID: p.GenID,
		repo:  repository.ProvideStore[attributiondomain.OrderProfile](p.DB),
	}
}

func (l *Ledger) Link(ctx context.Context, tx *gorm.DB, orderID snowflake.ID, profileID string) (bool, error) {
	if orderID == 0 || profileID == "" {
		return false, attributiondomain.ErrInvalidLink
	}

	repo := l.repo
	if tx != nil {
		repo = repo.WithTx(tx)
	}

	existing, err := repo.FindOne(ctx, &attributiondomain.OrderProfile{
		OrderID:   orderID,
		ProfileID: profileID,
	})
	if err != nil {
		return false, err
	}
	if existing != nil {
		return false, nil
	}

	record := &attributiondomain.OrderProfile{
		ID:        l.genID.Generate(),
		OrderID:   orderID,
		ProfileID: profileID,
		CreatedAt: time.Now().UTC(),
	}
	if err := repo.Create(ctx, record); err != nil {
		return false, err
	}

	l.log.Debug("order linked to profile",
		zap.String("order_id", orderID.String()),
		zap.String("profile_id", profileID),
	)
	return true, nil
}

func (l *Ledger) Linked(ctx context.Context, orderID snowflake.ID, profileID string) (bool, error) {
	existing, err := l.repo.FindOne(ctx, &attributiondomain.OrderProfile{
		OrderID:   orderID,
		ProfileID: profileID,
	})
	if err != nil {
		return false, err
	}
	return existing != nil, nil
}

func (l *Ledger) UnlinkOrder(ctx context.Context, tx *gorm.DB, orderID snowflake.ID) error {
	if orderID == 0 {
		return attributiondomain.ErrInvalidLink
	}
	repo := l.repo
	if tx != nil {
		repo = repo.WithTx(tx)
	}
	return repo.Delete(ctx, &attributiondomain.OrderProfile{OrderID: orderID})
}

func (l *Ledger) ListByProfile(ctx context.Context, profileID string) ([]*attributiondomain.OrderProfile, error) {
	return l.repo.Find(ctx, &attributiondomain.OrderProfile{ProfileID: profileID})
}
