package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	attributiondomain "github.com/staudal/backend-postbuddy-sub000/internal/attribution/domain"
	campaigndomain "github.com/staudal/backend-postbuddy-sub000/internal/campaign/domain"
	"github.com/staudal/backend-postbuddy-sub000/internal/observability/logger"
	orderdomain "github.com/staudal/backend-postbuddy-sub000/internal/order/domain"
	profiledomain "github.com/staudal/backend-postbuddy-sub000/internal/profile/domain"
	reconciledomain "github.com/staudal/backend-postbuddy-sub000/internal/reconcile/domain"
	"github.com/staudal/backend-postbuddy-sub000/internal/shopify"
	userdomain "github.com/staudal/backend-postbuddy-sub000/internal/user/domain"
	"go.uber.org/zap"
)

var (
	ErrUnauthorized       = errors.New("unauthorized")
	ErrNotFound           = errors.New("not_found")
	ErrTooManyRequests    = errors.New("too_many_requests")
	ErrServiceUnavailable = errors.New("service_unavailable")
)

// validationError carries enough detail for the client to fix its request.
type validationError struct {
	Field   string `json:"field,omitempty"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *validationError) Error() string { return e.Message }

func newValidationError(field, code, message string) error {
	return &validationError{Field: field, Code: code, Message: message}
}

func invalidRequestError() error {
	return newValidationError("", "invalid_request", "request body could not be parsed")
}

type errorBody struct {
	Error   string `json:"error"`
	Field   string `json:"field,omitempty"`
	Message string `json:"message,omitempty"`
}

// AbortWithError translates domain errors into HTTP responses and stops the
// handler chain.
func AbortWithError(c *gin.Context, err error) {
	var verr *validationError
	if errors.As(err, &verr) {
		c.AbortWithStatusJSON(http.StatusBadRequest, errorBody{
			Error:   verr.Code,
			Field:   verr.Field,
			Message: verr.Message,
		})
		return
	}

	status := statusForError(err)
	if status == http.StatusInternalServerError {
		logger.FromContext(c.Request.Context()).Error("request failed",
			zap.Any("request", logger.SafeFieldsFromRequest(c.Request)),
			zap.Error(err),
		)
		c.AbortWithStatusJSON(status, errorBody{Error: "internal_error"})
		return
	}

	c.AbortWithStatusJSON(status, errorBody{Error: err.Error()})
}

func statusForError(err error) int {
	switch {
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, ErrNotFound),
		errors.Is(err, userdomain.ErrUserNotFound),
		errors.Is(err, campaigndomain.ErrCampaignNotFound),
		errors.Is(err, profiledomain.ErrProfileNotFound),
		errors.Is(err, profiledomain.ErrSegmentNotFound),
		errors.Is(err, orderdomain.ErrOrderNotFound),
		errors.Is(err, reconciledomain.ErrImportNotFound):
		return http.StatusNotFound
	case errors.Is(err, reconciledomain.ErrMissingOperationID),
		errors.Is(err, orderdomain.ErrInvalidUser),
		errors.Is(err, attributiondomain.ErrInvalidLink):
		return http.StatusBadRequest
	case errors.Is(err, userdomain.ErrShopNotConnected):
		return http.StatusConflict
	case errors.Is(err, shopify.ErrOperationIncomplete):
		return http.StatusAccepted
	case errors.Is(err, shopify.ErrExportFetch),
		errors.Is(err, shopify.ErrBulkOperationUser),
		errors.Is(err, shopify.ErrOperationNotFound):
		return http.StatusBadGateway
	case errors.Is(err, orderdomain.ErrTransactionTimeout):
		return http.StatusGatewayTimeout
	case errors.Is(err, ErrTooManyRequests):
		return http.StatusTooManyRequests
	case errors.Is(err, ErrServiceUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
