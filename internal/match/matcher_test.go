package match

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	attributiondomain "github.com/staudal/backend-postbuddy-sub000/internal/attribution/domain"
	attributionservice "github.com/staudal/backend-postbuddy-sub000/internal/attribution/service"
	campaigndomain "github.com/staudal/backend-postbuddy-sub000/internal/campaign/domain"
	orderdomain "github.com/staudal/backend-postbuddy-sub000/internal/order/domain"
	profiledomain "github.com/staudal/backend-postbuddy-sub000/internal/profile/domain"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupMatchTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.ReplaceAll(t.Name(), "/", "_")
	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", name)), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&profiledomain.Profile{}, &attributiondomain.OrderProfile{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func newTestMatcher(t *testing.T, db *gorm.DB) *Matcher {
	t.Helper()
	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("snowflake: %v", err)
	}
	ledger := attributionservice.NewLedger(attributionservice.Params{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: node,
	})
	return NewMatcher(Params{
		DB:     db,
		Log:    zap.NewNop(),
		GenID:  node,
		Ledger: ledger,
	})
}

func testCampaign(segmentID snowflake.ID, codes ...string) campaigndomain.Campaign {
	return campaigndomain.Campaign{
		ID:            snowflake.ID(900),
		UserID:        snowflake.ID(42),
		SegmentID:     segmentID,
		StartDate:     time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC),
		DiscountCodes: datatypes.NewJSONSlice(codes),
		Status:        campaigndomain.CampaignStatusActive,
	}
}

func insertProfile(t *testing.T, db *gorm.DB, profile profiledomain.Profile) {
	t.Helper()
	if profile.Kind == "" {
		profile.Kind = profiledomain.ProfileKindReal
	}
	now := time.Now().UTC()
	profile.CreatedAt = now
	profile.UpdatedAt = now
	if err := db.Create(&profile).Error; err != nil {
		t.Fatalf("insert profile: %v", err)
	}
}

func testOrder(id int64) *orderdomain.Order {
	return &orderdomain.Order{
		ID:        snowflake.ID(id),
		UserID:    snowflake.ID(42),
		Amount:    100,
		FirstName: "anna",
		LastName:  "berg",
		Email:     "anna@example.dk",
		Address:   "nygade 12b, 2.th",
		ZipCode:   "8000",
		PlacedAt:  time.Date(2024, 4, 10, 9, 0, 0, 0, time.UTC),
	}
}

func TestMatchOrderByEmail(t *testing.T) {
	db := setupMatchTestDB(t)
	m := newTestMatcher(t, db)
	segmentID := snowflake.ID(7)

	insertProfile(t, db, profiledomain.Profile{
		ID:         "p-1",
		SegmentID:  segmentID,
		FirstName:  "anna",
		LastName:   "berg",
		Email:      "anna@example.dk",
		Address:    "nygade 12b",
		ZipCode:    "8000",
		LetterSent: true,
	})

	result, err := m.MatchOrder(context.Background(), testOrder(1), testCampaign(segmentID))
	if err != nil {
		t.Fatalf("match: %v", err)
	}
	if result.Matched != 1 || result.Linked != 1 || result.Placeholder {
		t.Fatalf("expected one email match, got %+v", result)
	}

	// Replays never produce a second association.
	again, err := m.MatchOrder(context.Background(), testOrder(1), testCampaign(segmentID))
	if err != nil {
		t.Fatalf("rerun: %v", err)
	}
	if again.Matched != 1 || again.Linked != 0 {
		t.Fatalf("expected idempotent rerun, got %+v", again)
	}
}

func TestMatchOrderByAddressIdentity(t *testing.T) {
	db := setupMatchTestDB(t)
	m := newTestMatcher(t, db)
	segmentID := snowflake.ID(7)

	insertProfile(t, db, profiledomain.Profile{
		ID:         "p-1",
		SegmentID:  segmentID,
		FirstName:  "anna",
		LastName:   "berg jensen",
		Address:    "nygade 12b",
		ZipCode:    "8000",
		LetterSent: true,
	})

	order := testOrder(1)
	order.Email = "different@example.dk"
	order.LastName = "maria jensen"

	result, err := m.MatchOrder(context.Background(), order, testCampaign(segmentID))
	if err != nil {
		t.Fatalf("match: %v", err)
	}
	if result.Matched != 1 || result.Linked != 1 {
		t.Fatalf("expected address identity match, got %+v", result)
	}
}

func TestMatchOrderIgnoresUnsentProfiles(t *testing.T) {
	db := setupMatchTestDB(t)
	m := newTestMatcher(t, db)
	segmentID := snowflake.ID(7)

	insertProfile(t, db, profiledomain.Profile{
		ID:         "p-1",
		SegmentID:  segmentID,
		FirstName:  "anna",
		LastName:   "berg",
		Email:      "anna@example.dk",
		ZipCode:    "8000",
		LetterSent: false,
	})

	result, err := m.MatchOrder(context.Background(), testOrder(1), testCampaign(segmentID))
	if err != nil {
		t.Fatalf("match: %v", err)
	}
	if result.Matched != 0 || result.Linked != 0 {
		t.Fatalf("expected no match against unsent profile, got %+v", result)
	}
}

func TestMatchOrderOutOfWindowSkipsFallback(t *testing.T) {
	db := setupMatchTestDB(t)
	m := newTestMatcher(t, db)
	segmentID := snowflake.ID(7)

	order := testOrder(1)
	order.Email = "nobody@example.dk"
	order.DiscountCodes = datatypes.NewJSONSlice([]string{"SAVE10"})
	order.PlacedAt = time.Date(2024, 8, 1, 0, 0, 0, 0, time.UTC)

	result, err := m.MatchOrder(context.Background(), order, testCampaign(segmentID, "SAVE10"))
	if err != nil {
		t.Fatalf("match: %v", err)
	}
	if result.Matched != 0 || result.Linked != 0 || result.Placeholder {
		t.Fatalf("expected out-of-window order to be skipped, got %+v", result)
	}

	var profiles int64
	if err := db.Model(&profiledomain.Profile{}).Count(&profiles).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	if profiles != 0 {
		t.Fatalf("expected no placeholder outside the window, found %d", profiles)
	}
}

func TestMatchOrderPlaceholderFallback(t *testing.T) {
	db := setupMatchTestDB(t)
	m := newTestMatcher(t, db)
	segmentID := snowflake.ID(7)
	campaign := testCampaign(segmentID, "SAVE10")

	order := testOrder(1)
	order.FirstName = "nobody"
	order.LastName = "known"
	order.Email = "nobody@example.dk"
	order.Address = "andet sted 1"
	order.DiscountCodes = datatypes.NewJSONSlice([]string{"save10"})

	result, err := m.MatchOrder(context.Background(), order, campaign)
	if err != nil {
		t.Fatalf("match: %v", err)
	}
	if !result.Placeholder || result.Linked != 1 {
		t.Fatalf("expected placeholder attribution, got %+v", result)
	}

	wantID := profiledomain.PlaceholderID(campaign.ID)
	var placeholder profiledomain.Profile
	if err := db.First(&placeholder, "id = ?", wantID).Error; err != nil {
		t.Fatalf("load placeholder: %v", err)
	}
	if placeholder.Kind != profiledomain.ProfileKindPlaceholder {
		t.Fatalf("expected placeholder kind, got %q", placeholder.Kind)
	}
	if !placeholder.LetterSent {
		t.Fatal("placeholder must count as mailed")
	}

	// A second order with the code reuses the same placeholder.
	second := testOrder(2)
	second.Email = "someone@example.dk"
	second.FirstName = "some"
	second.LastName = "one"
	second.Address = "tredje vej 3"
	second.DiscountCodes = datatypes.NewJSONSlice([]string{"SAVE10"})
	if _, err := m.MatchOrder(context.Background(), second, campaign); err != nil {
		t.Fatalf("second match: %v", err)
	}

	var profiles int64
	if err := db.Model(&profiledomain.Profile{}).Count(&profiles).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	if profiles != 1 {
		t.Fatalf("expected exactly one placeholder, found %d", profiles)
	}

	var links int64
	if err := db.Model(&attributiondomain.OrderProfile{}).
		Where("profile_id = ?", wantID).
		Count(&links).Error; err != nil {
		t.Fatalf("count links: %v", err)
	}
	if links != 2 {
		t.Fatalf("expected both orders linked to the placeholder, found %d", links)
	}
}

func TestMatchOrderPlaceholderRequiresCampaignCode(t *testing.T) {
	db := setupMatchTestDB(t)
	m := newTestMatcher(t, db)
	segmentID := snowflake.ID(7)

	order := testOrder(1)
	order.Email = "nobody@example.dk"
	order.FirstName = "nobody"
	order.DiscountCodes = datatypes.NewJSONSlice([]string{"OTHER20"})

	result, err := m.MatchOrder(context.Background(), order, testCampaign(segmentID, "SAVE10"))
	if err != nil {
		t.Fatalf("match: %v", err)
	}
	if result.Placeholder || result.Linked != 0 {
		t.Fatalf("expected no fallback for foreign code, got %+v", result)
	}
}
