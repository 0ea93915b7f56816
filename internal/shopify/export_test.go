package shopify

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"
)

const exportFixture = `{"id":"gid://shopify/Order/1","createdAt":"2024-04-10T09:00:00Z","discountCodes":["SAVE10"],"totalPriceSet":{"shopMoney":{"amount":"249.95"}},"customer":{"firstName":"Anna","lastName":"Berg","email":"anna@example.dk","addresses":[{"address1":"Nygade 12B","zip":"8000"}]}}
not json at all
{"id":"gid://shopify/Order/2","createdAt":"2024-04-11T10:30:00Z","totalPriceSet":{"shopMoney":{"amount":"100.00"}},"refunds":[{"refundLineItems":[{"subtotalSet":{"shopMoney":{"amount":"80.00"}},"totalTaxSet":{"shopMoney":{"amount":"20.00"}}}]}]}

{"createdAt":"2024-04-12T00:00:00Z"}
`

func TestFetchOrdersDecodesAndSkipsMalformedLines(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(exportFixture))
	}))
	defer srv.Close()

	reader := NewExportReader(zap.NewNop())
	orders, skipped, err := reader.FetchOrders(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if skipped != 2 {
		t.Fatalf("expected 2 skipped lines, got %d", skipped)
	}
	if len(orders) != 2 {
		t.Fatalf("expected 2 decoded orders, got %d", len(orders))
	}

	first := orders[0]
	if first.ExternalID != "gid://shopify/Order/1" {
		t.Fatalf("unexpected external id %q", first.ExternalID)
	}
	if first.Amount != 249.95 {
		t.Fatalf("unexpected amount %v", first.Amount)
	}
	if first.Customer.FirstName != "Anna" || first.Customer.Zip != "8000" {
		t.Fatalf("unexpected customer %+v", first.Customer)
	}
	if len(first.DiscountCodes) != 1 || first.DiscountCodes[0] != "SAVE10" {
		t.Fatalf("unexpected discount codes %v", first.DiscountCodes)
	}

	second := orders[1]
	if second.RefundTotal() != 100 {
		t.Fatalf("expected refund total 100, got %v", second.RefundTotal())
	}
}

func TestFetchOrdersFailsOnNonOKStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	reader := NewExportReader(zap.NewNop())
	_, _, err := reader.FetchOrders(context.Background(), srv.URL)
	if !errors.Is(err, ErrExportFetch) {
		t.Fatalf("expected ErrExportFetch, got %v", err)
	}
}

func TestFetchOrdersRejectsEmptyURL(t *testing.T) {
	reader := NewExportReader(zap.NewNop())
	_, _, err := reader.FetchOrders(context.Background(), "   ")
	if !errors.Is(err, ErrExportFetch) {
		t.Fatalf("expected ErrExportFetch, got %v", err)
	}
}
