package events

// Attribution event types published to the outbox.
const (
	EventOrderAttributed       = "order_attributed"
	EventPlaceholderAttributed = "placeholder_attributed"
	EventOrderRefundedOut      = "order_refunded_out"
	EventBulkImportCompleted   = "bulk_import_completed"
)

// AttributionPayload captures the minimal data consumers need to roll up
// an attribution.
type AttributionPayload struct {
	OrderID    string  `json:"order_id"`
	ProfileID  string  `json:"profile_id"`
	CampaignID string  `json:"campaign_id"`
	Amount     float64 `json:"amount"`
}

// ToMap converts a payload into an outbox-friendly map.
func (p AttributionPayload) ToMap() map[string]any {
	return map[string]any{
		"order_id":    p.OrderID,
		"profile_id":  p.ProfileID,
		"campaign_id": p.CampaignID,
		"amount":      p.Amount,
	}
}

// BulkImportPayload summarizes one completed import run.
type BulkImportPayload struct {
	ImportID      string `json:"import_id"`
	OperationID   string `json:"operation_id"`
	OrdersSeen    int    `json:"orders_seen"`
	OrdersCreated int    `json:"orders_created"`
	OrdersRemoved int    `json:"orders_removed"`
}

// ToMap converts a payload into an outbox-friendly map.
func (p BulkImportPayload) ToMap() map[string]any {
	return map[string]any{
		"import_id":      p.ImportID,
		"operation_id":   p.OperationID,
		"orders_seen":    p.OrdersSeen,
		"orders_created": p.OrdersCreated,
		"orders_removed": p.OrdersRemoved,
	}
}
