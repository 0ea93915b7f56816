package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	orderdomain "github.com/staudal/backend-postbuddy-sub000/internal/order/domain"
	"github.com/staudal/backend-postbuddy-sub000/pkg/db/pagination"
)

// ListOrders returns one keyset page of a user's imported orders.
func (s *Server) ListOrders(c *gin.Context) {
	userID, err := parseUserID(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var page pagination.Pagination
	if err := c.ShouldBindQuery(&page); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.orderSvc.ListByUser(c.Request.Context(), orderdomain.ListOrdersRequest{
		UserID:    userID,
		PageToken: page.PageToken,
		PageSize:  int32(page.PageSize),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}
