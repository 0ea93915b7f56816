package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/staudal/backend-postbuddy-sub000/pkg/db/pagination"
)

// UpsertResult reports what one import pass did to the store.
type UpsertResult struct {
	Seen     int
	Inserted int
	Refunded int
	Deleted  int
}

// ListOrdersRequest filters the order list endpoint.
type ListOrdersRequest struct {
	UserID    snowflake.ID
	PageToken string
	PageSize  int32
}

// ListOrdersResponse is a page of orders.
type ListOrdersResponse struct {
	Orders   []Order             `json:"orders"`
	PageInfo pagination.PageInfo `json:"page_info"`
}

// Service is the order store. UpsertOrders is idempotent for a fixed input:
// re-running the same export inserts nothing new. Batches commit
// independently; a multi-batch import is not atomic as a whole.
type Service interface {
	UpsertOrders(ctx context.Context, userID snowflake.ID, orders []IncomingOrder) (UpsertResult, error)
	ListByUser(ctx context.Context, req ListOrdersRequest) (ListOrdersResponse, error)
	AllByUser(ctx context.Context, userID snowflake.ID) ([]*Order, error)
}

var (
	ErrInvalidUser        = errors.New("invalid_user")
	ErrOrderNotFound      = errors.New("order_not_found")
	ErrTransactionTimeout = errors.New("transaction_timeout")
)
