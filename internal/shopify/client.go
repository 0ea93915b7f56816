// Package shopify talks to the storefront admin API: triggering bulk order
// exports, resolving their result URLs, and decoding the exported file.
package shopify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/staudal/backend-postbuddy-sub000/internal/config"
	"github.com/staudal/backend-postbuddy-sub000/internal/observability/logger"
	"github.com/staudal/backend-postbuddy-sub000/internal/observability/tracing"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var (
	ErrExportFetch         = errors.New("export_fetch_failed")
	ErrMalformedLine       = errors.New("malformed_export_line")
	ErrBulkOperationUser   = errors.New("bulk_operation_rejected")
	ErrOperationNotFound   = errors.New("bulk_operation_not_found")
	ErrOperationIncomplete = errors.New("bulk_operation_incomplete")
)

// Bulk operation states reported by the storefront.
const (
	OperationStatusCreated   = "CREATED"
	OperationStatusRunning   = "RUNNING"
	OperationStatusCompleted = "COMPLETED"
	OperationStatusFailed    = "FAILED"
	OperationStatusCanceled  = "CANCELED"
)

// exportLookback bounds how far back the triggered export reaches.
const exportLookback = 365 * 24 * time.Hour

// BulkOperation is the storefront-side export job.
type BulkOperation struct {
	ID             string
	Status         string
	URL            string
	PartialDataURL string
}

// Completed reports whether the export file is ready for download.
func (op BulkOperation) Completed() bool {
	return op.Status == OperationStatusCompleted
}

// ResultURL prefers the full export, falling back to partial data.
func (op BulkOperation) ResultURL() string {
	if op.URL != "" {
		return op.URL
	}
	return op.PartialDataURL
}

// Client is the storefront bulk API surface consumed by the orchestrator.
type Client interface {
	// TriggerOrdersExport starts a bulk export of the last year of orders
	// and returns the operation id. Completion arrives asynchronously via
	// webhook.
	TriggerOrdersExport(ctx context.Context, shopDomain, accessToken string) (string, error)
	// GetBulkOperation resolves the current state and result URL of an
	// operation by its admin API id.
	GetBulkOperation(ctx context.Context, shopDomain, accessToken, operationID string) (BulkOperation, error)
}

type Params struct {
	fx.In

	Cfg config.Config
	Log *zap.Logger
}

// AdminClient calls the admin GraphQL API over HTTP.
type AdminClient struct {
	http       *http.Client
	apiVersion string
	log        *zap.Logger
}

func NewClient(p Params) Client {
	return &AdminClient{
		http:       tracing.WrapHTTPClient(&http.Client{Timeout: 30 * time.Second}),
		apiVersion: p.Cfg.Shopify.APIVersion,
		log:        p.Log.Named("shopify.client"),
	}
}

const bulkExportMutation = `mutation {
  bulkOperationRunQuery(
    query: """
    {
      orders(query: "created_at:>=%s") {
        edges {
          node {
            id
            createdAt
            totalPriceSet { shopMoney { amount } }
            discountCodes
            customer {
              firstName
              lastName
              email
              addresses(first: 1) { address1 zip }
            }
            refunds {
              refundLineItems {
                edges {
                  node {
                    subtotalSet { shopMoney { amount } }
                    totalTaxSet { shopMoney { amount } }
                  }
                }
              }
            }
          }
        }
      }
    }
    """
  ) {
    bulkOperation { id status }
    userErrors { field message }
  }
}`

const bulkOperationQuery = `query {
  node(id: %q) {
    ... on BulkOperation {
      id
      status
      url
      partialDataUrl
    }
  }
}`

func (c *AdminClient) TriggerOrdersExport(ctx context.Context, shopDomain, accessToken string) (string, error) {
	since := time.Now().UTC().Add(-exportLookback).Format("2006-01-02")
	query := fmt.Sprintf(bulkExportMutation, since)

	var resp struct {
		Data struct {
			BulkOperationRunQuery struct {
				BulkOperation struct {
					ID     string `json:"id"`
					Status string `json:"status"`
				} `json:"bulkOperation"`
				UserErrors []struct {
					Message string `json:"message"`
				} `json:"userErrors"`
			} `json:"bulkOperationRunQuery"`
		} `json:"data"`
	}
	if err := c.graphql(ctx, shopDomain, accessToken, query, &resp); err != nil {
		return "", err
	}
	if len(resp.Data.BulkOperationRunQuery.UserErrors) > 0 {
		c.log.Warn("bulk export rejected",
			zap.String("shop", shopDomain),
			zap.String("message", resp.Data.BulkOperationRunQuery.UserErrors[0].Message),
		)
		return "", ErrBulkOperationUser
	}
	operationID := resp.Data.BulkOperationRunQuery.BulkOperation.ID
	if operationID == "" {
		return "", ErrBulkOperationUser
	}
	return operationID, nil
}

func (c *AdminClient) GetBulkOperation(ctx context.Context, shopDomain, accessToken, operationID string) (BulkOperation, error) {
	query := fmt.Sprintf(bulkOperationQuery, operationID)

	var resp struct {
		Data struct {
			Node *struct {
				ID             string `json:"id"`
				Status         string `json:"status"`
				URL            string `json:"url"`
				PartialDataURL string `json:"partialDataUrl"`
			} `json:"node"`
		} `json:"data"`
	}
	if err := c.graphql(ctx, shopDomain, accessToken, query, &resp); err != nil {
		return BulkOperation{}, err
	}
	if resp.Data.Node == nil || resp.Data.Node.ID == "" {
		return BulkOperation{}, ErrOperationNotFound
	}
	return BulkOperation{
		ID:             resp.Data.Node.ID,
		Status:         resp.Data.Node.Status,
		URL:            resp.Data.Node.URL,
		PartialDataURL: resp.Data.Node.PartialDataURL,
	}, nil
}

func (c *AdminClient) graphql(ctx context.Context, shopDomain, accessToken, query string, out any) error {
	endpoint := fmt.Sprintf("https://%s/admin/api/%s/graphql.json", strings.TrimSpace(shopDomain), c.apiVersion)

	body, err := json.Marshal(map[string]string{"query": query})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Shopify-Access-Token", accessToken)

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.log.Warn("admin api call failed",
			zap.String("shop", shopDomain),
			zap.String("access_token", logger.MaskAPIKey(accessToken)),
			zap.Int("status", resp.StatusCode),
		)
		return fmt.Errorf("%w: status %d", ErrExportFetch, resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
