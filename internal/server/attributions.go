package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	campaigndomain "github.com/staudal/backend-postbuddy-sub000/internal/campaign/domain"
	profiledomain "github.com/staudal/backend-postbuddy-sub000/internal/profile/domain"
	"gorm.io/gorm"
)

type attributionRow struct {
	OrderID     snowflake.ID              `gorm:"column:order_id" json:"order_id"`
	ProfileID   string                    `gorm:"column:profile_id" json:"profile_id"`
	ProfileKind profiledomain.ProfileKind `gorm:"column:profile_kind" json:"profile_kind"`
	Amount      float64                   `gorm:"column:amount" json:"amount"`
	PlacedAt    time.Time                 `gorm:"column:placed_at" json:"placed_at"`
	LinkedAt    time.Time                 `gorm:"column:linked_at" json:"linked_at"`
}

// ListCampaignAttributions returns every order linked to one of the
// campaign's profiles, including the placeholder profile.
func (s *Server) ListCampaignAttributions(c *gin.Context) {
	userID, err := parseUserID(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	campaign, err := s.loadCampaign(c.Request.Context(), userID, c.Param("campaign_id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	rows := make([]attributionRow, 0)
	if err := s.db.WithContext(c.Request.Context()).Raw(
		`SELECT op.order_id, op.profile_id, p.kind AS profile_kind,
		        o.amount, o.placed_at, op.created_at AS linked_at
		 FROM order_profiles op
		 JOIN profiles p ON p.id = op.profile_id
		 JOIN orders o ON o.id = op.order_id
		 WHERE o.user_id = ?
		   AND (p.segment_id = ? OR p.id = ?)
		 ORDER BY op.created_at DESC`,
		userID, campaign.SegmentID, profiledomain.PlaceholderID(campaign.ID),
	).Scan(&rows).Error; err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"campaign_id":  campaign.ID,
		"attributions": rows,
	})
}

type revenueSummary struct {
	CampaignID         snowflake.ID `json:"campaign_id"`
	AttributedOrders   int64        `json:"attributed_orders"`
	AttributedRevenue  float64      `json:"attributed_revenue"`
	PlaceholderOrders  int64        `json:"placeholder_orders"`
	PlaceholderRevenue float64      `json:"placeholder_revenue"`
}

// CampaignRevenue sums the revenue of attributed orders, reporting
// discount-code fallback revenue separately from identity matches.
func (s *Server) CampaignRevenue(c *gin.Context) {
	userID, err := parseUserID(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	campaign, err := s.loadCampaign(c.Request.Context(), userID, c.Param("campaign_id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var rows []struct {
		Kind    profiledomain.ProfileKind `gorm:"column:kind"`
		Orders  int64                     `gorm:"column:orders"`
		Revenue float64                   `gorm:"column:revenue"`
	}
	if err := s.db.WithContext(c.Request.Context()).Raw(
		`SELECT p.kind, COUNT(DISTINCT op.order_id) AS orders, COALESCE(SUM(o.amount), 0) AS revenue
		 FROM order_profiles op
		 JOIN profiles p ON p.id = op.profile_id
		 JOIN orders o ON o.id = op.order_id
		 WHERE o.user_id = ?
		   AND (p.segment_id = ? OR p.id = ?)
		 GROUP BY p.kind`,
		userID, campaign.SegmentID, profiledomain.PlaceholderID(campaign.ID),
	).Scan(&rows).Error; err != nil {
		AbortWithError(c, err)
		return
	}

	summary := revenueSummary{CampaignID: campaign.ID}
	for _, row := range rows {
		switch row.Kind {
		case profiledomain.ProfileKindPlaceholder:
			summary.PlaceholderOrders = row.Orders
			summary.PlaceholderRevenue = row.Revenue
		default:
			summary.AttributedOrders = row.Orders
			summary.AttributedRevenue = row.Revenue
		}
	}

	c.JSON(http.StatusOK, summary)
}

func (s *Server) loadCampaign(ctx context.Context, userID snowflake.ID, raw string) (*campaigndomain.Campaign, error) {
	if raw == "" {
		return nil, newValidationError("campaign_id", "required", "campaign id is required")
	}
	campaignID, err := snowflake.ParseString(raw)
	if err != nil {
		return nil, newValidationError("campaign_id", "invalid_campaign", "campaign id is not valid")
	}

	var campaign campaigndomain.Campaign
	if err := s.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", campaignID, userID).
		First(&campaign).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, campaigndomain.ErrCampaignNotFound
		}
		return nil, err
	}
	return &campaign, nil
}
