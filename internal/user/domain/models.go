// Package domain contains the user entity owning orders and campaigns.
package domain

import (
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
)

// User is a merchant account connected to a storefront.
type User struct {
	ID          snowflake.ID `gorm:"primaryKey" json:"id"`
	Email       string       `gorm:"type:text;not null;uniqueIndex" json:"email"`
	ShopDomain  string       `gorm:"type:text;index" json:"shop_domain"`
	AccessToken string       `gorm:"type:text" json:"-"`
	Demo        bool         `gorm:"not null;default:false" json:"demo"`
	CreatedAt   time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt   time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (User) TableName() string { return "users" }

var (
	ErrUserNotFound     = errors.New("user_not_found")
	ErrShopNotConnected = errors.New("shop_not_connected")
)
