package server

import (
	"net/http"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	auditdomain "github.com/staudal/backend-postbuddy-sub000/internal/audit/domain"
	obsctx "github.com/staudal/backend-postbuddy-sub000/internal/observability/context"
	"go.uber.org/zap"
)

// TriggerExport starts a storefront bulk export for a user. The response
// carries the operation id the webhook will later report back.
func (s *Server) TriggerExport(c *gin.Context) {
	userID, err := parseUserID(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	ctx := c.Request.Context()
	operationID, err := s.reconcileSvc.TriggerBulkExport(ctx, userID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	if err := s.auditSvc.AuditLog(ctx, &userID, auditdomain.ActorTypeUser, nil,
		auditdomain.ActionExportTriggered, "bulk_import", &operationID, nil); err != nil {
		s.log.Warn("audit write failed", zap.Error(err))
	}

	c.JSON(http.StatusAccepted, gin.H{"operation_id": operationID})
}

func parseUserID(c *gin.Context) (snowflake.ID, error) {
	raw := c.Param("user_id")
	if raw == "" {
		return 0, newValidationError("user_id", "required", "user id is required")
	}
	id, err := snowflake.ParseString(raw)
	if err != nil {
		return 0, newValidationError("user_id", "invalid_user", "user id is not valid")
	}
	c.Request = c.Request.WithContext(obsctx.WithUserID(c.Request.Context(), id.String()))
	return id, nil
}
