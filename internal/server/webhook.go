package server

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	auditdomain "github.com/staudal/backend-postbuddy-sub000/internal/audit/domain"
	obsctx "github.com/staudal/backend-postbuddy-sub000/internal/observability/context"
	"github.com/staudal/backend-postbuddy-sub000/internal/observability/logger"
	"go.uber.org/zap"
)

const shopifyHmacHeader = "X-Shopify-Hmac-Sha256"

// bulkOperationWebhook is the payload the storefront posts when a bulk
// operation finishes. The state field carries the user id the export was
// triggered for.
type bulkOperationWebhook struct {
	AdminGraphqlAPIID string `json:"admin_graphql_api_id"`
	Shop              string `json:"shop"`
	State             string `json:"state"`
}

// HandleBulkOperationWebhook verifies the webhook signature, then imports
// and reconciles the finished export. The signature check runs on the raw
// body before anything is parsed.
func (s *Server) HandleBulkOperationWebhook(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, 1<<20))
	if err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	if !s.verifyWebhookSignature(body, c.GetHeader(shopifyHmacHeader)) {
		s.log.Warn("webhook signature rejected",
			zap.Any("headers", logger.MaskHeaders(c.Request.Header)),
		)
		AbortWithError(c, ErrUnauthorized)
		return
	}

	var payload bulkOperationWebhook
	if err := json.Unmarshal(body, &payload); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	operationID := strings.TrimSpace(payload.AdminGraphqlAPIID)
	if operationID == "" {
		AbortWithError(c, newValidationError("admin_graphql_api_id", "required", "operation id is required"))
		return
	}
	state := strings.TrimSpace(payload.State)
	if state == "" {
		AbortWithError(c, newValidationError("state", "required", "state is required"))
		return
	}
	userID, err := snowflake.ParseString(state)
	if err != nil {
		AbortWithError(c, newValidationError("state", "invalid_user", "state is not a valid user id"))
		return
	}

	if !s.webhookLimit.Allow(payload.Shop) {
		AbortWithError(c, ErrTooManyRequests)
		return
	}

	ctx := obsctx.WithUserID(c.Request.Context(), userID.String())
	ctx = obsctx.WithActor(ctx, string(auditdomain.ActorTypeWebhook), payload.Shop)
	c.Request = c.Request.WithContext(ctx)
	if err := s.reconcileSvc.OnBulkExportFinished(ctx, userID, operationID); err != nil {
		AbortWithError(c, err)
		return
	}

	actorType, actorID := obsctx.ActorFromGin(c)
	var actorRef *string
	if actorID != "" {
		actorRef = &actorID
	}
	if err := s.auditSvc.AuditLog(ctx, &userID, auditdomain.ActorType(actorType), actorRef,
		auditdomain.ActionImportCompleted, "bulk_import", &operationID,
		map[string]any{"shop": payload.Shop}); err != nil {
		s.log.Warn("audit write failed", zap.Error(err))
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// verifyWebhookSignature checks the base64 HMAC-SHA256 digest the storefront
// computes over the raw body. An unset secret rejects everything outside of
// development.
func (s *Server) verifyWebhookSignature(body []byte, header string) bool {
	secret := s.cfg.Shopify.WebhookSecret
	if secret == "" {
		return !s.cfg.IsProduction()
	}
	header = strings.TrimSpace(header)
	if header == "" {
		return false
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	expected := base64.StdEncoding.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(header))
}
