// Package domain contains the bulk import state ledger and the orchestrator
// contract.
package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
)

// ImportStatus tracks one bulk export through the pipeline. Transitions are
// monotonic: triggered → ready → imported → reconciled, with failed as a
// terminal branch from any state.
type ImportStatus string

const (
	ImportStatusTriggered  ImportStatus = "triggered"
	ImportStatusReady      ImportStatus = "ready"
	ImportStatusImported   ImportStatus = "imported"
	ImportStatusReconciled ImportStatus = "reconciled"
	ImportStatusFailed     ImportStatus = "failed"
)

// BulkImport is one triggered export and its progress. OperationID is the
// storefront's admin API id for the bulk operation.
type BulkImport struct {
	ID          snowflake.ID `gorm:"primaryKey" json:"id"`
	UserID      snowflake.ID `gorm:"not null;index;uniqueIndex:ux_bulk_imports_user_operation,priority:1" json:"user_id"`
	OperationID string       `gorm:"type:text;not null;uniqueIndex:ux_bulk_imports_user_operation,priority:2" json:"operation_id"`
	Status      ImportStatus `gorm:"type:text;not null;default:triggered;index" json:"status"`

	OrdersSeen    int `gorm:"not null;default:0" json:"orders_seen"`
	OrdersCreated int `gorm:"not null;default:0" json:"orders_created"`
	OrdersRemoved int `gorm:"not null;default:0" json:"orders_removed"`
	LinesSkipped  int `gorm:"not null;default:0" json:"lines_skipped"`
	Attributions  int `gorm:"not null;default:0" json:"attributions"`

	Error       *string    `gorm:"type:text" json:"error,omitempty"`
	CompletedAt *time.Time `gorm:"" json:"completed_at,omitempty"`
	CreatedAt   time.Time  `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt   time.Time  `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (BulkImport) TableName() string { return "bulk_imports" }

// Service drives the end-to-end pipeline. Both entry points are safe to call
// repeatedly with the same arguments; re-running converges on the same end
// state modulo new upstream orders.
type Service interface {
	// TriggerBulkExport starts a storefront export of the user's last year
	// of orders and records the pending import.
	TriggerBulkExport(ctx context.Context, userID snowflake.ID) (string, error)
	// OnBulkExportFinished resolves a completed operation, imports its
	// orders and reconciles them against the user's campaigns. Runs are
	// serialized per user.
	OnBulkExportFinished(ctx context.Context, userID snowflake.ID, operationID string) error
}

var (
	ErrImportNotFound     = errors.New("bulk_import_not_found")
	ErrMissingOperationID = errors.New("missing_operation_id")
)
