// Package domain contains mail campaigns and their enrollment windows.
package domain

import (
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// CampaignStatus tracks the externally driven campaign lifecycle.
type CampaignStatus string

const (
	CampaignStatusScheduled CampaignStatus = "scheduled"
	CampaignStatusActive    CampaignStatus = "active"
	CampaignStatusPaused    CampaignStatus = "paused"
)

// EnrollmentWindow is how long after a campaign's start date an order can
// still be attributed to it.
const EnrollmentWindow = 60 * 24 * time.Hour

// Campaign is one direct-mail campaign. Reconciliation reads only StartDate,
// DiscountCodes and SegmentID; the rest is managed by campaign flows.
type Campaign struct {
	ID        snowflake.ID `gorm:"primaryKey" json:"id"`
	UserID    snowflake.ID `gorm:"not null;index" json:"user_id"`
	SegmentID snowflake.ID `gorm:"not null;index" json:"segment_id"`

	Name          string                      `gorm:"type:text;not null" json:"name"`
	DiscountCodes datatypes.JSONSlice[string] `gorm:"type:jsonb" json:"discount_codes"`
	StartDate     time.Time                   `gorm:"not null" json:"start_date"`
	Status        CampaignStatus              `gorm:"type:text;not null;default:scheduled" json:"status"`
	Demo          bool                        `gorm:"not null;default:false" json:"demo"`
	DesignID      *snowflake.ID               `gorm:"" json:"design_id,omitempty"`

	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (Campaign) TableName() string { return "campaigns" }

// WindowEnd returns the last instant an order can still enroll.
func (c Campaign) WindowEnd() time.Time {
	return c.StartDate.Add(EnrollmentWindow)
}

// InWindow reports whether t falls inside the closed enrollment interval
// [start_date, start_date + 60 days].
func (c Campaign) InWindow(t time.Time) bool {
	if t.Before(c.StartDate) {
		return false
	}
	return !t.After(c.WindowEnd())
}

// HasDiscountCode reports whether code is one of the campaign's codes.
// Comparison is case-insensitive; storefronts report applied codes upper-cased.
func (c Campaign) HasDiscountCode(code string) bool {
	for _, candidate := range c.DiscountCodes {
		if strings.EqualFold(candidate, code) {
			return true
		}
	}
	return false
}

var ErrCampaignNotFound = errors.New("campaign_not_found")
