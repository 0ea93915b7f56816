// Package domain contains mail recipient profiles and their segments.
package domain

import (
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
)

// ProfileKind distinguishes mailed recipients from synthetic revenue buckets.
type ProfileKind string

const (
	// ProfileKindReal is a recipient sourced from a customer list.
	ProfileKindReal ProfileKind = "real"
	// ProfileKindPlaceholder absorbs discount-coded revenue that matched no
	// mailed recipient. At most one exists per campaign.
	ProfileKindPlaceholder ProfileKind = "placeholder"
)

// PlaceholderIDPrefix is the conventional id prefix for placeholder profiles.
const PlaceholderIDPrefix = "additional-revenue-"

// PlaceholderID returns the fixed profile id for a campaign's revenue bucket.
func PlaceholderID(campaignID snowflake.ID) string {
	return PlaceholderIDPrefix + campaignID.String()
}

// Segment groups the recipients of one campaign.
type Segment struct {
	ID        snowflake.ID `gorm:"primaryKey" json:"id"`
	UserID    snowflake.ID `gorm:"not null;index" json:"user_id"`
	Name      string       `gorm:"type:text;not null" json:"name"`
	Demo      bool         `gorm:"not null;default:false" json:"demo"`
	CreatedAt time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

// TableName sets the database table name.
func (Segment) TableName() string { return "segments" }

// Profile is a mail recipient. Identity fields are stored lower-cased so
// matching never depends on source casing. Placeholder profiles reuse the
// same table with Kind set accordingly and a convention-based string id.
type Profile struct {
	ID        string       `gorm:"primaryKey;type:text" json:"id"`
	SegmentID snowflake.ID `gorm:"not null;index" json:"segment_id"`
	Kind      ProfileKind  `gorm:"type:text;not null;default:real" json:"kind"`

	FirstName string `gorm:"type:text;not null;default:''" json:"first_name"`
	LastName  string `gorm:"type:text;not null;default:''" json:"last_name"`
	Email     string `gorm:"type:text;not null;default:''" json:"email"`
	Address   string `gorm:"type:text;not null;default:''" json:"address"`
	ZipCode   string `gorm:"type:text;not null;default:''" json:"zip_code"`
	City      string `gorm:"type:text;not null;default:''" json:"city"`
	Country   string `gorm:"type:text;not null;default:''" json:"country"`

	LetterSent   bool       `gorm:"not null;default:false" json:"letter_sent"`
	LetterSentAt *time.Time `gorm:"" json:"letter_sent_at,omitempty"`

	// InRobinson marks opt-out registry members. They are excluded from
	// mailing upstream; letter_sent stays false for them.
	InRobinson bool `gorm:"not null;default:false" json:"in_robinson"`

	CustomVariable *string `gorm:"type:text" json:"custom_variable,omitempty"`
	Demo           bool    `gorm:"not null;default:false" json:"demo"`

	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (Profile) TableName() string { return "profiles" }

// IsPlaceholder reports whether this profile is a synthetic revenue bucket.
func (p Profile) IsPlaceholder() bool { return p.Kind == ProfileKindPlaceholder }

var (
	ErrSegmentNotFound = errors.New("segment_not_found")
	ErrProfileNotFound = errors.New("profile_not_found")
)
