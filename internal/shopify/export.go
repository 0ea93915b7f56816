package shopify

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	orderdomain "github.com/staudal/backend-postbuddy-sub000/internal/order/domain"
	"go.uber.org/zap"
)

// scannerBufferSize accommodates large single-order lines in the export.
const scannerBufferSize = 1 << 20

// exportLine mirrors one order object in the newline-delimited export file.
type exportLine struct {
	ID            string    `json:"id"`
	CreatedAt     time.Time `json:"createdAt"`
	DiscountCodes []string  `json:"discountCodes"`
	TotalPriceSet struct {
		ShopMoney struct {
			Amount string `json:"amount"`
		} `json:"shopMoney"`
	} `json:"totalPriceSet"`
	Customer *struct {
		FirstName string `json:"firstName"`
		LastName  string `json:"lastName"`
		Email     string `json:"email"`
		Addresses []struct {
			Address1 string `json:"address1"`
			Zip      string `json:"zip"`
		} `json:"addresses"`
	} `json:"customer"`
	Refunds []struct {
		RefundLineItems []struct {
			SubtotalSet struct {
				ShopMoney struct {
					Amount string `json:"amount"`
				} `json:"shopMoney"`
			} `json:"subtotalSet"`
			TotalTaxSet struct {
				ShopMoney struct {
					Amount string `json:"amount"`
				} `json:"shopMoney"`
			} `json:"totalTaxSet"`
		} `json:"refundLineItems"`
	} `json:"refunds"`
}

// ExportReader streams and decodes bulk export files.
type ExportReader struct {
	http *http.Client
	log  *zap.Logger
}

func NewExportReader(log *zap.Logger) *ExportReader {
	return &ExportReader{
		http: &http.Client{Timeout: 5 * time.Minute},
		log:  log.Named("shopify.export"),
	}
}

// FetchOrders downloads the export at url and decodes it line by line.
// Malformed lines are logged, counted and dropped; they never fail the
// import. A non-OK response or missing body fails with ErrExportFetch.
func (r *ExportReader) FetchOrders(ctx context.Context, url string) ([]orderdomain.IncomingOrder, int, error) {
	if strings.TrimSpace(url) == "" {
		return nil, 0, ErrExportFetch
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, 0, err
	}
	resp, err := r.http.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %v", ErrExportFetch, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, 0, fmt.Errorf("%w: status %d", ErrExportFetch, resp.StatusCode)
	}
	if resp.Body == nil {
		return nil, 0, ErrExportFetch
	}

	var (
		orders  []orderdomain.IncomingOrder
		skipped int
	)
	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 64*1024), scannerBufferSize)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		order, err := decodeOrderLine(line)
		if err != nil {
			skipped++
			r.log.Warn("dropping malformed export line", zap.Error(err))
			continue
		}
		orders = append(orders, order)
	}
	if err := scanner.Err(); err != nil {
		return nil, skipped, fmt.Errorf("%w: %v", ErrExportFetch, err)
	}
	return orders, skipped, nil
}

func decodeOrderLine(line string) (orderdomain.IncomingOrder, error) {
	var raw exportLine
	if err := json.Unmarshal([]byte(line), &raw); err != nil {
		return orderdomain.IncomingOrder{}, fmt.Errorf("%w: %v", ErrMalformedLine, err)
	}
	if raw.ID == "" {
		return orderdomain.IncomingOrder{}, fmt.Errorf("%w: missing id", ErrMalformedLine)
	}

	amount, err := parseAmount(raw.TotalPriceSet.ShopMoney.Amount)
	if err != nil {
		return orderdomain.IncomingOrder{}, err
	}

	order := orderdomain.IncomingOrder{
		ExternalID:    raw.ID,
		PlacedAt:      raw.CreatedAt,
		Amount:        amount,
		DiscountCodes: raw.DiscountCodes,
	}

	if raw.Customer != nil {
		order.Customer = orderdomain.IncomingCustomer{
			FirstName: raw.Customer.FirstName,
			LastName:  raw.Customer.LastName,
			Email:     raw.Customer.Email,
		}
		if len(raw.Customer.Addresses) > 0 {
			order.Customer.Address1 = raw.Customer.Addresses[0].Address1
			order.Customer.Zip = raw.Customer.Addresses[0].Zip
		}
	}

	for _, refund := range raw.Refunds {
		incoming := orderdomain.IncomingRefund{}
		for _, item := range refund.RefundLineItems {
			subtotal, err := parseAmount(item.SubtotalSet.ShopMoney.Amount)
			if err != nil {
				return orderdomain.IncomingOrder{}, err
			}
			totalTax, err := parseAmount(item.TotalTaxSet.ShopMoney.Amount)
			if err != nil {
				return orderdomain.IncomingOrder{}, err
			}
			incoming.LineItems = append(incoming.LineItems, orderdomain.RefundLineItem{
				Subtotal: subtotal,
				TotalTax: totalTax,
			})
		}
		if len(incoming.LineItems) > 0 {
			order.Refunds = append(order.Refunds, incoming)
		}
	}
	return order, nil
}

func parseAmount(value string) (float64, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, nil
	}
	amount, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: bad amount %q", ErrMalformedLine, value)
	}
	return amount, nil
}
