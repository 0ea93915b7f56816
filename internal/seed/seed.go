// Package seed bootstraps demo data for local development.
package seed

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	campaigndomain "github.com/staudal/backend-postbuddy-sub000/internal/campaign/domain"
	profiledomain "github.com/staudal/backend-postbuddy-sub000/internal/profile/domain"
	userdomain "github.com/staudal/backend-postbuddy-sub000/internal/user/domain"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	demoUserEmail    = "demo@postbuddy.dk"
	demoSegmentName  = "Demo segment"
	demoCampaignName = "Demo campaign"
)

// EnsureDemoData seeds a demo user with one campaign, its segment and a few
// mailed profiles. Safe to call repeatedly.
func EnsureDemoData(db *gorm.DB) error {
	if db == nil {
		return errors.New("seed database handle is required")
	}

	node, err := snowflake.NewNode(1)
	if err != nil {
		return err
	}

	ctx := context.Background()
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		user, err := ensureDemoUser(ctx, tx, node)
		if err != nil {
			return err
		}
		segment, err := ensureDemoSegment(ctx, tx, node, user.ID)
		if err != nil {
			return err
		}
		if err := ensureDemoCampaign(ctx, tx, node, user.ID, segment.ID); err != nil {
			return err
		}
		return ensureDemoProfiles(ctx, tx, node, segment.ID)
	})
}

func ensureDemoUser(ctx context.Context, tx *gorm.DB, node *snowflake.Node) (*userdomain.User, error) {
	var user userdomain.User
	err := tx.WithContext(ctx).Where("email = ?", demoUserEmail).First(&user).Error
	if err == nil {
		return &user, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	now := time.Now().UTC()
	user = userdomain.User{
		ID:        node.Generate(),
		Email:     demoUserEmail,
		Demo:      true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := tx.WithContext(ctx).Create(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func ensureDemoSegment(ctx context.Context, tx *gorm.DB, node *snowflake.Node, userID snowflake.ID) (*profiledomain.Segment, error) {
	var segment profiledomain.Segment
	err := tx.WithContext(ctx).Where("user_id = ? AND name = ?", userID, demoSegmentName).First(&segment).Error
	if err == nil {
		return &segment, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	segment = profiledomain.Segment{
		ID:        node.Generate(),
		UserID:    userID,
		Name:      demoSegmentName,
		Demo:      true,
		CreatedAt: time.Now().UTC(),
	}
	if err := tx.WithContext(ctx).Create(&segment).Error; err != nil {
		return nil, err
	}
	return &segment, nil
}

func ensureDemoCampaign(ctx context.Context, tx *gorm.DB, node *snowflake.Node, userID, segmentID snowflake.ID) error {
	var count int64
	if err := tx.WithContext(ctx).Model(&campaigndomain.Campaign{}).
		Where("user_id = ? AND name = ?", userID, demoCampaignName).
		Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	now := time.Now().UTC()
	campaign := campaigndomain.Campaign{
		ID:            node.Generate(),
		UserID:        userID,
		SegmentID:     segmentID,
		Name:          demoCampaignName,
		DiscountCodes: datatypes.NewJSONSlice([]string{"DEMO10"}),
		StartDate:     now.AddDate(0, 0, -7),
		Status:        campaigndomain.CampaignStatusActive,
		Demo:          true,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	return tx.WithContext(ctx).Create(&campaign).Error
}

func ensureDemoProfiles(ctx context.Context, tx *gorm.DB, node *snowflake.Node, segmentID snowflake.ID) error {
	var count int64
	if err := tx.WithContext(ctx).Model(&profiledomain.Profile{}).
		Where("segment_id = ?", segmentID).
		Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	now := time.Now().UTC()
	sentAt := now.AddDate(0, 0, -6)
	profiles := []profiledomain.Profile{
		{
			ID:           node.Generate().String(),
			SegmentID:    segmentID,
			Kind:         profiledomain.ProfileKindReal,
			FirstName:    "anna",
			LastName:     "berg",
			Email:        "anna@example.dk",
			Address:      "nygade 12b",
			ZipCode:      "8000",
			City:         "aarhus",
			Country:      "dk",
			LetterSent:   true,
			LetterSentAt: &sentAt,
			Demo:         true,
			CreatedAt:    now,
			UpdatedAt:    now,
		},
		{
			ID:           node.Generate().String(),
			SegmentID:    segmentID,
			Kind:         profiledomain.ProfileKindReal,
			FirstName:    "jens",
			LastName:     "holm",
			Email:        "jens@example.dk",
			Address:      "bredgade 19, 1.tv.",
			ZipCode:      "1260",
			City:         "copenhagen",
			Country:      "dk",
			LetterSent:   true,
			LetterSentAt: &sentAt,
			Demo:         true,
			CreatedAt:    now,
			UpdatedAt:    now,
		},
	}
	return tx.WithContext(ctx).Create(&profiles).Error
}
