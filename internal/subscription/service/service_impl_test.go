package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	activitydomain "github.com/smallbiznis/freightdesk/internal/activity/domain"
	activityrepo "github.com/smallbiznis/freightdesk/internal/activity/repository"
	activityservice "github.com/smallbiznis/freightdesk/internal/activity/service"
	"github.com/smallbiznis/freightdesk/internal/clock"
	"github.com/smallbiznis/freightdesk/internal/config"
	"github.com/smallbiznis/freightdesk/internal/subscription/domain"
	"github.com/smallbiznis/freightdesk/internal/subscription/repository"
	"github.com/smallbiznis/freightdesk/pkg/db"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type quotationRow struct {
	ID             int64      `gorm:"primaryKey"`
	ForwarderOrgID int64      `gorm:"column:forwarder_org_id"`
	SubmittedAt    *time.Time `gorm:"column:submitted_at"`
}

func (quotationRow) TableName() string { return "quotations" }

type fixture struct {
	svc   domain.Service
	db    *gorm.DB
	clock *clock.FakeClock
	tiers *config.TierConfigHolder
}

func newFixture(t *testing.T) fixture {
	t.Helper()

	conn, err := db.NewTest()
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(&domain.Subscription{}, &quotationRow{}, &activitydomain.Event{}))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	clk := clock.NewFakeClock(time.Date(2025, 5, 20, 12, 0, 0, 0, time.UTC))

	activity := activityservice.NewService(activityservice.Params{
		DB: conn, Log: zap.NewNop(), GenID: node, Clock: clk, Repo: activityrepo.Provide(),
	})
	tiers := config.NewStaticTierConfigHolder(config.TierConfig{Default: config.TierFree, Limits: map[string]int{"free": 2, "pro": 5, "enterprise": 0}})
	svc := NewService(Params{
		DB:       conn,
		Log:      zap.NewNop(),
		GenID:    node,
		Clock:    clk,
		Tiers:    tiers,
		Repo:     repository.Provide(),
		Activity: activity,
	})
	return fixture{svc: svc, db: conn, clock: clk, tiers: tiers}
}

func (f fixture) submitted(t *testing.T, id int64, orgID int64, at time.Time) {
	t.Helper()
	require.NoError(t, f.db.Create(&quotationRow{ID: id, ForwarderOrgID: orgID, SubmittedAt: &at}).Error)
}

func TestCreateDefaultUsesDefaultTier(t *testing.T) {
	f := newFixture(t)

	sub, err := f.svc.CreateDefault(context.Background(), nil, 10)
	require.NoError(t, err)
	require.Equal(t, "free", sub.Tier)
	require.Equal(t, 2, sub.MonthlyQuotationLimit)

	got, err := f.svc.GetForOrg(context.Background(), 10)
	require.NoError(t, err)
	require.Equal(t, sub.ID, got.ID)

	_, err = f.svc.GetForOrg(context.Background(), 11)
	require.ErrorIs(t, err, domain.ErrSubscriptionNotFound)
}

func TestCheckQuotationLimitCountsCurrentMonthOnly(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.svc.CreateDefault(ctx, nil, 10)
	require.NoError(t, err)

	f.submitted(t, 1, 10, time.Date(2025, 4, 30, 23, 59, 0, 0, time.UTC))
	f.submitted(t, 2, 10, time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC))
	f.submitted(t, 3, 99, time.Date(2025, 5, 2, 0, 0, 0, 0, time.UTC))
	require.NoError(t, f.svc.CheckQuotationLimit(ctx, nil, 10))

	f.submitted(t, 4, 10, time.Date(2025, 5, 10, 0, 0, 0, 0, time.UTC))
	require.ErrorIs(t, f.svc.CheckQuotationLimit(ctx, nil, 10), domain.ErrQuotationLimitReached)

	usage, err := f.svc.Usage(ctx, 10)
	require.NoError(t, err)
	require.Equal(t, int64(2), usage.Used)
	require.NotNil(t, usage.Remaining)
	require.Zero(t, *usage.Remaining)

	f.clock.Set(time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, f.svc.CheckQuotationLimit(ctx, nil, 10))
}

func TestChangeTierToUnlimitedRecordsActivity(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.svc.CreateDefault(ctx, nil, 10)
	require.NoError(t, err)
	f.submitted(t, 1, 10, f.clock.Now())
	f.submitted(t, 2, 10, f.clock.Now())

	sub, err := f.svc.ChangeTier(ctx, 10, "Enterprise")
	require.NoError(t, err)
	require.Equal(t, "enterprise", sub.Tier)
	require.True(t, sub.Unlimited())
	require.NoError(t, f.svc.CheckQuotationLimit(ctx, nil, 10))

	usage, err := f.svc.Usage(ctx, 10)
	require.NoError(t, err)
	require.True(t, usage.Unlimited)
	require.Nil(t, usage.Remaining)

	var events []activitydomain.Event
	require.NoError(t, f.db.Find(&events).Error)
	require.Len(t, events, 1)
	require.Equal(t, activitydomain.TypeSubscriptionTierChanged, events[0].Type)

	_, err = f.svc.ChangeTier(ctx, 10, "platinum")
	require.ErrorIs(t, err, domain.ErrInvalidTier)
}

func TestTierReloadAppliesToExistingSubscriptions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sub, err := f.svc.CreateDefault(ctx, nil, 10)
	require.NoError(t, err)
	require.Equal(t, 2, sub.MonthlyQuotationLimit)
	f.submitted(t, 1, 10, f.clock.Now())
	f.submitted(t, 2, 10, f.clock.Now())
	require.ErrorIs(t, f.svc.CheckQuotationLimit(ctx, nil, 10), domain.ErrQuotationLimitReached)

	// tiers.yaml now gives free forwarders three quotations a month
	f.tiers.Replace(config.TierConfig{Default: config.TierFree, Limits: map[string]int{"free": 3, "pro": 5, "enterprise": 0}})
	require.NoError(t, f.svc.CheckQuotationLimit(ctx, nil, 10))
	usage, err := f.svc.Usage(ctx, 10)
	require.NoError(t, err)
	require.Equal(t, 3, usage.Limit)
	require.EqualValues(t, 1, *usage.Remaining)

	// a tier dropped from the file keeps the limit stored on the subscription
	f.tiers.Replace(config.TierConfig{Default: config.TierPro, Limits: map[string]int{"pro": 5}})
	require.ErrorIs(t, f.svc.CheckQuotationLimit(ctx, nil, 10), domain.ErrQuotationLimitReached)

	f.tiers.Replace(config.TierConfig{Default: config.TierFree, Limits: map[string]int{"free": 0}})
	usage, err = f.svc.Usage(ctx, 10)
	require.NoError(t, err)
	require.True(t, usage.Unlimited)
	require.Nil(t, usage.Remaining)
}

func TestCheckQuotationLimitInsideTransaction(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.svc.CreateDefault(ctx, nil, 10)
	require.NoError(t, err)
	f.submitted(t, 1, 10, f.clock.Now())

	err = f.db.Transaction(func(tx *gorm.DB) error {
		if err := f.svc.CheckQuotationLimit(ctx, tx, 10); err != nil {
			return err
		}
		// the second slot is taken inside the same transaction
		now := f.clock.Now()
		if err := tx.Create(&quotationRow{ID: 2, ForwarderOrgID: 10, SubmittedAt: &now}).Error; err != nil {
			return err
		}
		return f.svc.CheckQuotationLimit(ctx, tx, 10)
	})
	require.ErrorIs(t, err, domain.ErrQuotationLimitReached)

	var count int64
	require.NoError(t, f.db.Model(&quotationRow{}).Count(&count).Error)
	require.EqualValues(t, 1, count)
	require.ErrorIs(t, f.svc.CheckQuotationLimit(ctx, nil, 11), domain.ErrSubscriptionNotFound)
}
