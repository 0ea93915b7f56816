package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	attributiondomain "github.com/staudal/backend-postbuddy-sub000/internal/attribution/domain"
	attributionservice "github.com/staudal/backend-postbuddy-sub000/internal/attribution/service"
	orderdomain "github.com/staudal/backend-postbuddy-sub000/internal/order/domain"
	"github.com/staudal/backend-postbuddy-sub000/pkg/repository"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupOrderTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.ReplaceAll(t.Name(), "/", "_")
	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", name)), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&orderdomain.Order{}, &attributiondomain.OrderProfile{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func newOrderTestService(t *testing.T, db *gorm.DB) *Service {
	t.Helper()
	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("snowflake: %v", err)
	}
	ledger := attributionservice.NewLedger(attributionservice.Params{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: node,
	})
	return &Service{
		db:     db,
		log:    zap.NewNop(),
		genID:  node,
		ledger: ledger,
		repo:   repository.ProvideStore[orderdomain.Order](db),
	}
}

func incomingOrder(externalID string, amount float64) orderdomain.IncomingOrder {
	return orderdomain.IncomingOrder{
		ExternalID: externalID,
		PlacedAt:   time.Date(2024, 4, 2, 12, 0, 0, 0, time.UTC),
		Amount:     amount,
		Customer: orderdomain.IncomingCustomer{
			FirstName: "Anna",
			LastName:  "Berg",
			Email:     "Anna@Example.dk",
			Address1:  "Nygade 12B",
			Zip:       "8000",
		},
	}
}

func TestUpsertOrdersIsIdempotent(t *testing.T) {
	db := setupOrderTestDB(t)
	svc := newOrderTestService(t, db)
	userID := snowflake.ID(42)

	input := []orderdomain.IncomingOrder{
		incomingOrder("gid://shopify/Order/1", 100),
		incomingOrder("gid://shopify/Order/2", 50),
	}

	first, err := svc.UpsertOrders(context.Background(), userID, input)
	if err != nil {
		t.Fatalf("first upsert: %v", err)
	}
	if first.Inserted != 2 {
		t.Fatalf("expected 2 inserts, got %d", first.Inserted)
	}

	second, err := svc.UpsertOrders(context.Background(), userID, input)
	if err != nil {
		t.Fatalf("second upsert: %v", err)
	}
	if second.Inserted != 0 || second.Refunded != 0 {
		t.Fatalf("expected replay to be a no-op, got %+v", second)
	}

	var count int64
	if err := db.Model(&orderdomain.Order{}).Count(&count).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected 2 stored orders, got %d", count)
	}
}

func TestUpsertOrdersNormalizesIdentity(t *testing.T) {
	db := setupOrderTestDB(t)
	svc := newOrderTestService(t, db)

	if _, err := svc.UpsertOrders(context.Background(), 42, []orderdomain.IncomingOrder{
		incomingOrder("gid://shopify/Order/1", 100),
	}); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	var stored orderdomain.Order
	if err := db.First(&stored).Error; err != nil {
		t.Fatalf("load: %v", err)
	}
	if stored.FirstName != "anna" || stored.LastName != "berg" {
		t.Fatalf("expected lower-cased names, got %q %q", stored.FirstName, stored.LastName)
	}
	if stored.Email != "anna@example.dk" {
		t.Fatalf("expected lower-cased email, got %q", stored.Email)
	}
	if stored.Address != "nygade 12b" || stored.ZipCode != "8000" {
		t.Fatalf("unexpected address fields %q %q", stored.Address, stored.ZipCode)
	}
}

func TestUpsertOrdersAppliesPartialRefund(t *testing.T) {
	db := setupOrderTestDB(t)
	svc := newOrderTestService(t, db)
	userID := snowflake.ID(42)

	if _, err := svc.UpsertOrders(context.Background(), userID, []orderdomain.IncomingOrder{
		incomingOrder("gid://shopify/Order/1", 100),
	}); err != nil {
		t.Fatalf("initial upsert: %v", err)
	}

	refunded := incomingOrder("gid://shopify/Order/1", 100)
	refunded.Refunds = []orderdomain.IncomingRefund{{
		LineItems: []orderdomain.RefundLineItem{{Subtotal: 30, TotalTax: 7.5}},
	}}
	result, err := svc.UpsertOrders(context.Background(), userID, []orderdomain.IncomingOrder{refunded})
	if err != nil {
		t.Fatalf("refund upsert: %v", err)
	}
	if result.Refunded != 1 || result.Deleted != 0 {
		t.Fatalf("expected one refund without delete, got %+v", result)
	}

	var stored orderdomain.Order
	if err := db.First(&stored).Error; err != nil {
		t.Fatalf("load: %v", err)
	}
	if stored.Amount != 62.5 {
		t.Fatalf("expected remaining amount 62.5, got %v", stored.Amount)
	}
}

func TestUpsertOrdersFullRefundDeletesOrderAndLinks(t *testing.T) {
	db := setupOrderTestDB(t)
	svc := newOrderTestService(t, db)
	userID := snowflake.ID(42)

	if _, err := svc.UpsertOrders(context.Background(), userID, []orderdomain.IncomingOrder{
		incomingOrder("gid://shopify/Order/1", 100),
	}); err != nil {
		t.Fatalf("initial upsert: %v", err)
	}
	var stored orderdomain.Order
	if err := db.First(&stored).Error; err != nil {
		t.Fatalf("load: %v", err)
	}
	if _, err := svc.ledger.Link(context.Background(), nil, stored.ID, "profile-1"); err != nil {
		t.Fatalf("link: %v", err)
	}

	refunded := incomingOrder("gid://shopify/Order/1", 100)
	refunded.Refunds = []orderdomain.IncomingRefund{{
		LineItems: []orderdomain.RefundLineItem{{Subtotal: 90, TotalTax: 25}},
	}}
	result, err := svc.UpsertOrders(context.Background(), userID, []orderdomain.IncomingOrder{refunded})
	if err != nil {
		t.Fatalf("refund upsert: %v", err)
	}
	if result.Refunded != 1 || result.Deleted != 1 {
		t.Fatalf("expected refund with delete, got %+v", result)
	}

	var orders int64
	if err := db.Model(&orderdomain.Order{}).Count(&orders).Error; err != nil {
		t.Fatalf("count orders: %v", err)
	}
	if orders != 0 {
		t.Fatalf("expected order to be removed, found %d", orders)
	}

	var links int64
	if err := db.Model(&attributiondomain.OrderProfile{}).Count(&links).Error; err != nil {
		t.Fatalf("count links: %v", err)
	}
	if links != 0 {
		t.Fatalf("expected associations to be removed, found %d", links)
	}
}

func TestUpsertOrdersRejectsMissingUser(t *testing.T) {
	db := setupOrderTestDB(t)
	svc := newOrderTestService(t, db)

	_, err := svc.UpsertOrders(context.Background(), 0, nil)
	if !errors.Is(err, orderdomain.ErrInvalidUser) {
		t.Fatalf("expected ErrInvalidUser, got %v", err)
	}
}
