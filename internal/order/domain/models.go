// Package domain contains persisted order records and the order store
// contract. Orders are deduplicated per user by their external storefront id.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// Order is a storefront order with normalized customer identity. Identity
// fields are lower-cased at write time; Amount reflects refunds applied so
// far. Records are only ever mutated by refund processing.
type Order struct {
	ID         snowflake.ID `gorm:"primaryKey" json:"id"`
	ExternalID string       `gorm:"type:text;not null;uniqueIndex:ux_orders_user_external,priority:2" json:"external_id"`
	UserID     snowflake.ID `gorm:"not null;index;uniqueIndex:ux_orders_user_external,priority:1" json:"user_id"`

	Amount        float64                     `gorm:"not null" json:"amount"`
	DiscountCodes datatypes.JSONSlice[string] `gorm:"type:jsonb" json:"discount_codes"`

	FirstName string `gorm:"type:text;not null;default:''" json:"first_name"`
	LastName  string `gorm:"type:text;not null;default:''" json:"last_name"`
	Email     string `gorm:"type:text;not null;default:''" json:"email"`
	Address   string `gorm:"type:text;not null;default:''" json:"address"`
	ZipCode   string `gorm:"type:text;not null;default:''" json:"zip_code"`

	PlacedAt  time.Time `gorm:"not null;index" json:"placed_at"`
	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (Order) TableName() string { return "orders" }

// IncomingOrder is one decoded line from a bulk export, before persistence.
type IncomingOrder struct {
	ExternalID    string
	PlacedAt      time.Time
	Amount        float64
	DiscountCodes []string
	Customer      IncomingCustomer
	Refunds       []IncomingRefund
}

// IncomingCustomer carries the raw identity fields from the export.
type IncomingCustomer struct {
	FirstName string
	LastName  string
	Email     string
	Address1  string
	Zip       string
}

// IncomingRefund is one refund with its line items.
type IncomingRefund struct {
	LineItems []RefundLineItem
}

// RefundLineItem carries the refunded subtotal and tax for one line.
type RefundLineItem struct {
	Subtotal float64
	TotalTax float64
}

// RefundTotal sums subtotal plus tax over every refund line item.
func (o IncomingOrder) RefundTotal() float64 {
	var total float64
	for _, refund := range o.Refunds {
		for _, line := range refund.LineItems {
			total += line.Subtotal + line.TotalTax
		}
	}
	return total
}
