package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	activitydomain "github.com/smallbiznis/freightdesk/internal/activity/domain"
	"github.com/smallbiznis/freightdesk/internal/clock"
	"github.com/smallbiznis/freightdesk/internal/config"
	"github.com/smallbiznis/freightdesk/internal/subscription/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	GenID    *snowflake.Node
	Clock    clock.Clock
	Tiers    *config.TierConfigHolder
	Repo     domain.Repository
	Activity activitydomain.Service
}

type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	genID    *snowflake.Node
	clock    clock.Clock
	tiers    *config.TierConfigHolder
	repo     domain.Repository
	activity activitydomain.Service
}

func NewService(p Params) domain.Service {
	return &Service{
		db:       p.DB,
		log:      p.Log.Named("subscription.service"),
		genID:    p.GenID,
		clock:    p.Clock,
		tiers:    p.Tiers,
		repo:     p.Repo,
		activity: p.Activity,
	}
}

func (s *Service) CreateDefault(ctx context.Context, tx *gorm.DB, orgID snowflake.ID) (*domain.Subscription, error) {
	if orgID == 0 {
		return nil, domain.ErrInvalidOrganization
	}
	if tx == nil {
		tx = s.db
	}

	tiers := s.tiers.Get()
	tier := tiers.Default
	limit, ok := tiers.MonthlyQuotationLimit(tier)
	if !ok {
		tier = config.TierFree
		limit, _ = config.DefaultTierConfig().MonthlyQuotationLimit(tier)
	}

	now := s.clock.Now().UTC()
	sub := &domain.Subscription{
		ID:                    s.genID.Generate(),
		OrgID:                 orgID,
		Tier:                  tier,
		Status:                domain.SubscriptionStatusActive,
		MonthlyQuotationLimit: limit,
		CreatedAt:             now,
		UpdatedAt:             now,
	}
	if err := s.repo.Insert(ctx, tx, sub); err != nil {
		return nil, err
	}
	return sub, nil
}

func (s *Service) GetForOrg(ctx context.Context, orgID snowflake.ID) (*domain.Subscription, error) {
	if orgID == 0 {
		return nil, domain.ErrInvalidOrganization
	}
	sub, err := s.repo.FindByOrgID(ctx, s.db, orgID)
	if err != nil {
		return nil, err
	}
	if sub == nil {
		return nil, domain.ErrSubscriptionNotFound
	}
	return sub, nil
}

func (s *Service) Usage(ctx context.Context, orgID snowflake.ID) (*domain.Usage, error) {
	sub, err := s.GetForOrg(ctx, orgID)
	if err != nil {
		return nil, err
	}

	start, end := monthWindow(s.clock.Now())
	used, err := s.repo.CountSubmittedQuotations(ctx, s.db, orgID, start, end)
	if err != nil {
		return nil, err
	}

	limit := s.limitFor(sub)
	usage := &domain.Usage{
		Tier:        sub.Tier,
		Limit:       limit,
		Unlimited:   limit <= 0,
		Used:        used,
		PeriodStart: start,
		PeriodEnd:   end,
	}
	if !usage.Unlimited {
		remaining := int64(limit) - used
		if remaining < 0 {
			remaining = 0
		}
		usage.Remaining = &remaining
	}
	return usage, nil
}

func (s *Service) ChangeTier(ctx context.Context, orgID snowflake.ID, tier string) (*domain.Subscription, error) {
	tier = strings.ToLower(strings.TrimSpace(tier))
	limit, ok := s.tiers.Get().MonthlyQuotationLimit(tier)
	if !ok {
		return nil, domain.ErrInvalidTier
	}

	var updated *domain.Subscription
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		sub, err := s.repo.FindByOrgID(ctx, tx, orgID)
		if err != nil {
			return err
		}
		if sub == nil {
			return domain.ErrSubscriptionNotFound
		}
		previous := sub.Tier
		now := s.clock.Now().UTC()
		if err := s.repo.UpdateTier(ctx, tx, sub.ID, tier, limit, now); err != nil {
			return err
		}
		sub.Tier = tier
		sub.MonthlyQuotationLimit = limit
		sub.UpdatedAt = now
		updated = sub

		if previous == tier {
			return nil
		}
		return s.activity.Record(ctx, tx, activitydomain.RecordRequest{
			OrgID:      orgID,
			Type:       activitydomain.TypeSubscriptionTierChanged,
			TargetType: "subscription",
			TargetID:   sub.ID.String(),
			Payload: map[string]any{
				"from":  previous,
				"to":    tier,
				"limit": limit,
			},
		})
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// CheckQuotationLimit counts this month's submissions against the tier. With
// a transaction the subscription row stays locked until it commits, so two
// concurrent submits of one forwarder cannot both take the last slot.
func (s *Service) CheckQuotationLimit(ctx context.Context, tx *gorm.DB, orgID snowflake.ID) error {
	var (
		sub *domain.Subscription
		err error
	)
	if tx == nil {
		sub, err = s.repo.FindByOrgID(ctx, s.db, orgID)
		tx = s.db
	} else {
		sub, err = s.repo.LockByOrgID(ctx, tx, orgID)
	}
	if err != nil {
		return err
	}
	if sub == nil {
		return domain.ErrSubscriptionNotFound
	}
	limit := s.limitFor(sub)
	if limit <= 0 {
		return nil
	}

	start, end := monthWindow(s.clock.Now())
	used, err := s.repo.CountSubmittedQuotations(ctx, tx, orgID, start, end)
	if err != nil {
		return err
	}
	if used >= int64(limit) {
		s.log.Info("quotation limit reached",
			zap.String("org_id", orgID.String()),
			zap.String("tier", sub.Tier),
			zap.Int("limit", limit),
			zap.Int64("used", used),
		)
		return domain.ErrQuotationLimitReached
	}
	return nil
}

// limitFor reads the tier's limit from the live tier config, so an edited
// tiers.yaml applies without touching subscriptions. The stored limit covers
// tiers that were removed from the file.
func (s *Service) limitFor(sub *domain.Subscription) int {
	if limit, ok := s.tiers.Get().MonthlyQuotationLimit(sub.Tier); ok {
		return limit
	}
	return sub.MonthlyQuotationLimit
}

// monthWindow returns the UTC calendar month containing now as [start, end).
func monthWindow(now time.Time) (time.Time, time.Time) {
	now = now.UTC()
	start := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	return start, start.AddDate(0, 1, 0)
}
