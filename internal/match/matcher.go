package match

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	attributiondomain "github.com/staudal/backend-postbuddy-sub000/internal/attribution/domain"
	"github.com/staudal/backend-postbuddy-sub000/internal/cache"
	campaigndomain "github.com/staudal/backend-postbuddy-sub000/internal/campaign/domain"
	"github.com/staudal/backend-postbuddy-sub000/internal/events"
	"github.com/staudal/backend-postbuddy-sub000/internal/observability/logger"
	"github.com/staudal/backend-postbuddy-sub000/internal/observability/metrics"
	orderdomain "github.com/staudal/backend-postbuddy-sub000/internal/order/domain"
	profiledomain "github.com/staudal/backend-postbuddy-sub000/internal/profile/domain"
	"github.com/staudal/backend-postbuddy-sub000/pkg/repository"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// placeholderCacheTTL bounds how long a lazily created placeholder id is
// remembered between orders of one reconciliation pass.
const placeholderCacheTTL = 5 * time.Minute

type Params struct {
	fx.In

	DB     *gorm.DB
	Log    *zap.Logger
	GenID  *snowflake.Node
	Ledger attributiondomain.Ledger
	Outbox *events.Outbox            `optional:"true"`
	Metric *metrics.ReconcileMetrics `optional:"true"`
}

// Matcher attributes orders to mailed profiles within a campaign's
// enrollment window, falling back to the campaign's placeholder profile for
// discount-coded orders that match nobody.
type Matcher struct {
	db          *gorm.DB
	log         *zap.Logger
	genID       *snowflake.Node
	ledger      attributiondomain.Ledger
	outbox      *events.Outbox
	metric      *metrics.ReconcileMetrics
	profiles    repository.Repository[profiledomain.Profile]
	placeholder cache.Cache[snowflake.ID, string]
}

func NewMatcher(p Params) *Matcher {
	return &Matcher{
		db:          p.DB,
		log:         p.Log.Named("match"),
		genID:       p.GenID,
		ledger:      p.Ledger,
		outbox:      p.Outbox,
		metric:      p.Metric,
		profiles:    repository.ProvideStore[profiledomain.Profile](p.DB),
		placeholder: cache.NewTTLCache[snowflake.ID, string](),
	}
}

// Result reports what matching one (order, campaign) pair produced.
type Result struct {
	// Matched is how many mailed profiles satisfied the identity filter.
	Matched int
	// Linked is how many new associations were written.
	Linked int
	// Placeholder is true when revenue went to the campaign's bucket.
	Placeholder bool
}

// MatchOrder evaluates one order against one campaign. Campaigns whose
// enrollment window does not cover the order timestamp are skipped entirely,
// with no fallback. Re-running over the same inputs creates nothing new.
func (m *Matcher) MatchOrder(ctx context.Context, order *orderdomain.Order, campaign campaigndomain.Campaign) (Result, error) {
	var result Result
	if order == nil || campaign.ID == 0 {
		return result, nil
	}
	if !campaign.InWindow(order.PlacedAt) {
		return result, nil
	}

	candidates, err := m.findCandidates(ctx, order, campaign)
	if err != nil {
		return result, err
	}
	result.Matched = len(candidates)

	if len(candidates) > 0 {
		for _, profile := range candidates {
			created, err := m.link(ctx, order, profile.ID, campaign, false)
			if err != nil {
				return result, err
			}
			if created {
				result.Linked++
			}
		}
		return result, nil
	}

	if !m.hasCampaignDiscount(order, campaign) {
		return result, nil
	}

	placeholderID, err := m.ensurePlaceholder(ctx, campaign)
	if err != nil {
		return result, err
	}
	created, err := m.link(ctx, order, placeholderID, campaign, true)
	if err != nil {
		return result, err
	}
	result.Placeholder = true
	if created {
		result.Linked++
	}
	return result, nil
}

// findCandidates loads mailed profiles of the campaign's segment whose
// identity matches the order: exact email, or street prefix plus zip plus
// first name plus last-name last token. The SQL filter narrows by the
// equality keys; the looser address and last-name checks run here.
func (m *Matcher) findCandidates(ctx context.Context, order *orderdomain.Order, campaign campaigndomain.Campaign) ([]*profiledomain.Profile, error) {
	email := normalize(order.Email)
	firstName := normalize(order.FirstName)
	zip := normalize(order.ZipCode)
	lastToken := LastToken(order.LastName)
	prefix := StreetPrefix(order.Address)

	query := m.db.WithContext(ctx).
		Where("segment_id = ?", campaign.SegmentID).
		Where("letter_sent = ?", true).
		Where("demo = ?", campaign.Demo).
		Where("kind = ?", profiledomain.ProfileKindReal)

	switch {
	case email != "" && firstName != "" && zip != "":
		query = query.Where("email = ? OR (zip_code = ? AND first_name = ?)", email, zip, firstName)
	case email != "":
		query = query.Where("email = ?", email)
	case firstName != "" && zip != "":
		query = query.Where("zip_code = ? AND first_name = ?", zip, firstName)
	default:
		// No usable identity keys on the order.
		return nil, nil
	}

	var rows []*profiledomain.Profile
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}

	matched := make([]*profiledomain.Profile, 0, len(rows))
	for _, profile := range rows {
		if email != "" && normalize(profile.Email) == email {
			m.log.Debug("profile matched by email",
				zap.String("order_id", order.ID.String()),
				zap.String("profile_id", profile.ID),
				zap.String("email", logger.MaskEmail(order.Email)),
			)
			matched = append(matched, profile)
			continue
		}
		if firstName == "" || zip == "" || lastToken == "" || prefix == "" {
			continue
		}
		if normalize(profile.ZipCode) != zip || normalize(profile.FirstName) != firstName {
			continue
		}
		if LastToken(profile.LastName) != lastToken {
			continue
		}
		if !addressContains(profile.Address, prefix) {
			continue
		}
		matched = append(matched, profile)
	}
	return matched, nil
}

func (m *Matcher) hasCampaignDiscount(order *orderdomain.Order, campaign campaigndomain.Campaign) bool {
	for _, code := range order.DiscountCodes {
		if campaign.HasDiscountCode(code) {
			return true
		}
	}
	return false
}

// ensurePlaceholder lazily creates the campaign's synthetic revenue bucket,
// keyed by its conventional id so creation stays idempotent.
func (m *Matcher) ensurePlaceholder(ctx context.Context, campaign campaigndomain.Campaign) (string, error) {
	id := profiledomain.PlaceholderID(campaign.ID)
	if cached, ok := m.placeholder.Get(campaign.ID); ok {
		return cached, nil
	}

	existing, err := m.profiles.FindOne(ctx, &profiledomain.Profile{ID: id})
	if err != nil {
		return "", err
	}
	if existing == nil {
		now := time.Now().UTC()
		record := &profiledomain.Profile{
			ID:           id,
			SegmentID:    campaign.SegmentID,
			Kind:         profiledomain.ProfileKindPlaceholder,
			FirstName:    "additional",
			LastName:     "revenue",
			LetterSent:   true,
			LetterSentAt: &now,
			Demo:         campaign.Demo,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		if err := m.profiles.Create(ctx, record); err != nil {
			// A concurrent pass may have created it first.
			existing, findErr := m.profiles.FindOne(ctx, &profiledomain.Profile{ID: id})
			if findErr != nil || existing == nil {
				return "", err
			}
		}
		m.log.Info("placeholder profile created",
			zap.String("campaign_id", campaign.ID.String()),
			zap.String("profile_id", id),
		)
	}

	m.placeholder.Set(campaign.ID, id, placeholderCacheTTL)
	return id, nil
}

func (m *Matcher) link(ctx context.Context, order *orderdomain.Order, profileID string, campaign campaigndomain.Campaign, placeholder bool) (bool, error) {
	created, err := m.ledger.Link(ctx, nil, order.ID, profileID)
	if err != nil {
		return false, err
	}
	if !created {
		return false, nil
	}

	kind := "profile"
	eventType := events.EventOrderAttributed
	if placeholder {
		kind = "placeholder"
		eventType = events.EventPlaceholderAttributed
	}
	if m.metric != nil {
		m.metric.IncAttribution(kind)
	}
	if m.outbox != nil {
		_ = m.outbox.Publish(ctx, events.Event{
			UserID: order.UserID,
			Type:   eventType,
			Payload: events.AttributionPayload{
				OrderID:    order.ID.String(),
				ProfileID:  profileID,
				CampaignID: campaign.ID.String(),
				Amount:     order.Amount,
			}.ToMap(),
			DedupeKey: eventType + ":" + order.ID.String() + ":" + profileID,
		})
	}
	return true, nil
}

func addressContains(address, prefix string) bool {
	return prefix != "" && strings.Contains(normalize(address), prefix)
}
