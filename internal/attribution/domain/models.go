// Package domain contains the order to profile association ledger.
package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// OrderProfile links one order to one profile. The unique index on
// (order_id, profile_id) backs the at-most-one invariant; the ledger still
// checks existence first so replays stay quiet.
type OrderProfile struct {
	ID        snowflake.ID `gorm:"primaryKey" json:"id"`
	OrderID   snowflake.ID `gorm:"not null;index;uniqueIndex:ux_order_profiles_pair,priority:1" json:"order_id"`
	ProfileID string       `gorm:"type:text;not null;index;uniqueIndex:ux_order_profiles_pair,priority:2" json:"profile_id"`
	CreatedAt time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

// TableName sets the database table name.
func (OrderProfile) TableName() string { return "order_profiles" }

// Ledger records associations exactly once per (order, profile) pair.
type Ledger interface {
	// Link creates the association if absent. Returns whether a row was
	// created. tx may be nil, in which case the default connection is used.
	Link(ctx context.Context, tx *gorm.DB, orderID snowflake.ID, profileID string) (bool, error)
	// Linked reports whether the pair already exists.
	Linked(ctx context.Context, orderID snowflake.ID, profileID string) (bool, error)
	// UnlinkOrder removes every association of an order. Used when a fully
	// refunded order is deleted.
	UnlinkOrder(ctx context.Context, tx *gorm.DB, orderID snowflake.ID) error
	// ListByProfile returns the associations pointing at one profile.
	ListByProfile(ctx context.Context, profileID string) ([]*OrderProfile, error)
}

var ErrInvalidLink = errors.New("invalid_link")
