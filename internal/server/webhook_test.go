package server

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	auditdomain "github.com/staudal/backend-postbuddy-sub000/internal/audit/domain"
	"github.com/staudal/backend-postbuddy-sub000/internal/config"
	"go.uber.org/zap"
)

type fakeReconcileService struct {
	userID      snowflake.ID
	operationID string
	calls       int
	err         error
}

func (f *fakeReconcileService) TriggerBulkExport(ctx context.Context, userID snowflake.ID) (string, error) {
	return "op-1", nil
}

func (f *fakeReconcileService) OnBulkExportFinished(ctx context.Context, userID snowflake.ID, operationID string) error {
	f.calls++
	f.userID = userID
	f.operationID = operationID
	return f.err
}

type fakeAuditService struct{}

func (fakeAuditService) AuditLog(ctx context.Context, userID *snowflake.ID, actorType auditdomain.ActorType, actorID *string, action, targetType string, targetID *string, metadata map[string]any) error {
	return nil
}

func (fakeAuditService) List(ctx context.Context, filter auditdomain.ListFilter) ([]*auditdomain.AuditLog, error) {
	return nil, nil
}

func newWebhookTestServer(secret string) (*Server, *fakeReconcileService, *gin.Engine) {
	gin.SetMode(gin.TestMode)
	reconcileSvc := &fakeReconcileService{}
	s := &Server{
		cfg: config.Config{
			Environment: "production",
			Shopify:     config.ShopifyConfig{WebhookSecret: secret},
		},
		log:          zap.NewNop(),
		reconcileSvc: reconcileSvc,
		auditSvc:     fakeAuditService{},
		webhookLimit: newRateLimiter(60, time.Minute),
	}
	engine := gin.New()
	engine.POST("/webhooks/shopify/bulk-operations-finish", s.HandleBulkOperationWebhook)
	return s, reconcileSvc, engine
}

func signBody(secret, body string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(body))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func TestWebhookAcceptsSignedPayload(t *testing.T) {
	_, reconcileSvc, engine := newWebhookTestServer("topsecret")
	body := `{"admin_graphql_api_id":"gid://shopify/BulkOperation/1","shop":"merchant.myshopify.com","state":"42"}`

	req := httptest.NewRequest(http.MethodPost, "/webhooks/shopify/bulk-operations-finish", strings.NewReader(body))
	req.Header.Set(shopifyHmacHeader, signBody("topsecret", body))
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if reconcileSvc.calls != 1 {
		t.Fatalf("expected one reconcile call, got %d", reconcileSvc.calls)
	}
	if reconcileSvc.userID != snowflake.ID(42) {
		t.Fatalf("unexpected user id %v", reconcileSvc.userID)
	}
	if reconcileSvc.operationID != "gid://shopify/BulkOperation/1" {
		t.Fatalf("unexpected operation id %q", reconcileSvc.operationID)
	}
}

func TestWebhookRejectsBadSignature(t *testing.T) {
	_, reconcileSvc, engine := newWebhookTestServer("topsecret")
	body := `{"admin_graphql_api_id":"gid://shopify/BulkOperation/1","state":"42"}`

	req := httptest.NewRequest(http.MethodPost, "/webhooks/shopify/bulk-operations-finish", strings.NewReader(body))
	req.Header.Set(shopifyHmacHeader, signBody("wrongsecret", body))
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	if reconcileSvc.calls != 0 {
		t.Fatal("reconcile must not run on a bad signature")
	}
}

func TestWebhookRejectsMissingParams(t *testing.T) {
	cases := []struct {
		name string
		body string
	}{
		{"missing operation id", `{"shop":"merchant.myshopify.com","state":"42"}`},
		{"missing state", `{"admin_graphql_api_id":"gid://shopify/BulkOperation/1"}`},
		{"state not an id", `{"admin_graphql_api_id":"gid://shopify/BulkOperation/1","state":"not-a-number"}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, reconcileSvc, engine := newWebhookTestServer("topsecret")
			req := httptest.NewRequest(http.MethodPost, "/webhooks/shopify/bulk-operations-finish", strings.NewReader(tc.body))
			req.Header.Set(shopifyHmacHeader, signBody("topsecret", tc.body))
			rec := httptest.NewRecorder()
			engine.ServeHTTP(rec, req)

			if rec.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d: %s", rec.Code, rec.Body.String())
			}
			if reconcileSvc.calls != 0 {
				t.Fatal("reconcile must not run on invalid payloads")
			}
		})
	}
}

func TestWebhookRejectsMissingSecretInProduction(t *testing.T) {
	_, reconcileSvc, engine := newWebhookTestServer("")
	body := `{"admin_graphql_api_id":"gid://shopify/BulkOperation/1","state":"42"}`

	req := httptest.NewRequest(http.MethodPost, "/webhooks/shopify/bulk-operations-finish", strings.NewReader(body))
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	if reconcileSvc.calls != 0 {
		t.Fatal("reconcile must not run without a configured secret")
	}
}
