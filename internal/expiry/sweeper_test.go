package expiry

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	activitydomain "github.com/smallbiznis/freightdesk/internal/activity/domain"
	activityrepo "github.com/smallbiznis/freightdesk/internal/activity/repository"
	activityservice "github.com/smallbiznis/freightdesk/internal/activity/service"
	"github.com/smallbiznis/freightdesk/internal/clock"
	inquirydomain "github.com/smallbiznis/freightdesk/internal/inquiry/domain"
	inquiryrepo "github.com/smallbiznis/freightdesk/internal/inquiry/repository"
	quotationdomain "github.com/smallbiznis/freightdesk/internal/quotation/domain"
	quotationrepo "github.com/smallbiznis/freightdesk/internal/quotation/repository"
	"github.com/smallbiznis/freightdesk/pkg/db"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	shipperID   snowflake.ID = 100
	forwarderID snowflake.ID = 200
)

type fixture struct {
	sweeper *Sweeper
	db      *gorm.DB
	clock   *clock.FakeClock
	genID   *snowflake.Node
}

func newFixture(t *testing.T, inquiries inquirydomain.Repository) fixture {
	t.Helper()

	conn, err := db.NewTest()
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(&inquirydomain.Inquiry{}, &quotationdomain.Quotation{}, &activitydomain.Event{}))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	clk := clock.NewFakeClock(time.Date(2025, 3, 3, 10, 0, 0, 0, time.UTC))
	log := zap.NewNop()

	if inquiries == nil {
		inquiries = inquiryrepo.Provide()
	}
	sweeper := NewSweeper(Params{
		DB:         conn,
		Log:        log,
		Clock:      clk,
		Inquiries:  inquiries,
		Quotations: quotationrepo.Provide(),
		Activity: activityservice.NewService(activityservice.Params{
			DB: conn, Log: log, GenID: node, Clock: clk, Repo: activityrepo.Provide(),
		}),
	})
	return fixture{sweeper: sweeper, db: conn, clock: clk, genID: node}
}

func (f fixture) inquiry(t *testing.T, status inquirydomain.Status, validity time.Time) snowflake.ID {
	t.Helper()
	id := f.genID.Generate()
	require.NoError(t, f.db.Create(&inquirydomain.Inquiry{
		ID:                 id,
		ReferenceNumber:    fmt.Sprintf("INQ-%s", id.Base36()),
		ShipperOrgID:       shipperID,
		CreatedBy:          1,
		Status:             status,
		ServiceType:        inquirydomain.ServiceAir,
		OriginCountry:      "CN",
		DestinationCountry: "DE",
		ValidityDate:       &validity,
		CreatedAt:          f.clock.Now(),
		UpdatedAt:          f.clock.Now(),
	}).Error)
	return id
}

func (f fixture) quotation(t *testing.T, inquiryID snowflake.ID, status quotationdomain.Status, validUntil time.Time) snowflake.ID {
	t.Helper()
	id := f.genID.Generate()
	require.NoError(t, f.db.Create(&quotationdomain.Quotation{
		ID:              id,
		QuotationNumber: fmt.Sprintf("QUO-%s", id.Base36()),
		InquiryID:       inquiryID,
		ForwarderOrgID:  forwarderID,
		CreatedBy:       2,
		Status:          status,
		Currency:        "EUR",
		ValidUntil:      &validUntil,
		CreatedAt:       f.clock.Now(),
		UpdatedAt:       f.clock.Now(),
	}).Error)
	return id
}

func (f fixture) inquiryStatus(t *testing.T, id snowflake.ID) inquirydomain.Status {
	t.Helper()
	var row inquirydomain.Inquiry
	require.NoError(t, f.db.First(&row, "id = ?", id).Error)
	return row.Status
}

func (f fixture) quotationStatus(t *testing.T, id snowflake.ID) quotationdomain.Status {
	t.Helper()
	var row quotationdomain.Quotation
	require.NoError(t, f.db.First(&row, "id = ?", id).Error)
	return row.Status
}

func TestSweepExpiresOnlyOverdueItems(t *testing.T) {
	f := newFixture(t, nil)
	now := f.clock.Now()
	past, future := now.Add(-time.Hour), now.Add(time.Hour)

	overdue := f.inquiry(t, inquirydomain.StatusOpen, past)
	current := f.inquiry(t, inquirydomain.StatusOpen, future)
	draft := f.inquiry(t, inquirydomain.StatusDraft, past)

	staleOffer := f.quotation(t, current, quotationdomain.StatusSubmitted, past)
	freshOffer := f.quotation(t, current, quotationdomain.StatusSubmitted, future)
	staleDraft := f.quotation(t, current, quotationdomain.StatusDraft, past)

	res := f.sweeper.CheckAndUpdateExpiredItems(context.Background())
	require.Equal(t, Result{Inquiries: 1, Quotations: 1}, res)

	require.Equal(t, inquirydomain.StatusExpired, f.inquiryStatus(t, overdue))
	require.Equal(t, inquirydomain.StatusOpen, f.inquiryStatus(t, current))
	require.Equal(t, inquirydomain.StatusDraft, f.inquiryStatus(t, draft))
	require.Equal(t, quotationdomain.StatusExpired, f.quotationStatus(t, staleOffer))
	require.Equal(t, quotationdomain.StatusSubmitted, f.quotationStatus(t, freshOffer))
	require.Equal(t, quotationdomain.StatusDraft, f.quotationStatus(t, staleDraft))

	var events []activitydomain.Event
	require.NoError(t, f.db.Order("type asc").Find(&events).Error)
	require.Len(t, events, 2)
	require.Equal(t, activitydomain.TypeInquiryExpired, events[0].Type)
	require.Equal(t, shipperID, events[0].OrgID)
	require.Equal(t, activitydomain.TypeQuotationExpired, events[1].Type)
	require.Equal(t, forwarderID, events[1].OrgID)
	require.NotNil(t, events[1].ActorID)
	require.Equal(t, "scheduler", *events[1].ActorID)
}

func TestSweepIsThrottled(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	first := f.sweeper.CheckAndUpdateExpiredItems(ctx)
	require.False(t, first.Skipped)

	overdue := f.inquiry(t, inquirydomain.StatusOpen, f.clock.Now().Add(-time.Minute))

	require.True(t, f.sweeper.CheckAndUpdateExpiredItems(ctx).Skipped)
	f.clock.Advance(4*time.Minute + 59*time.Second)
	require.True(t, f.sweeper.CheckAndUpdateExpiredItems(ctx).Skipped)
	require.Equal(t, inquirydomain.StatusOpen, f.inquiryStatus(t, overdue))

	f.clock.Advance(time.Second)
	res := f.sweeper.CheckAndUpdateExpiredItems(ctx)
	require.False(t, res.Skipped)
	require.Equal(t, 1, res.Inquiries)
	require.Equal(t, inquirydomain.StatusExpired, f.inquiryStatus(t, overdue))
}

func TestSweepRespectsBatchSize(t *testing.T) {
	f := newFixture(t, nil)
	f.sweeper.batchSize = 2

	for i := 0; i < 3; i++ {
		f.inquiry(t, inquirydomain.StatusOpen, f.clock.Now().Add(-time.Duration(i+1)*time.Hour))
	}

	res := f.sweeper.CheckAndUpdateExpiredItems(context.Background())
	require.Equal(t, 2, res.Inquiries)

	f.clock.Advance(DefaultInterval)
	res = f.sweeper.CheckAndUpdateExpiredItems(context.Background())
	require.Equal(t, 1, res.Inquiries)
}

type failingInquiries struct {
	inquirydomain.Repository
}

func (failingInquiries) ListOverdue(context.Context, *gorm.DB, time.Time, int) ([]inquirydomain.Inquiry, error) {
	return nil, errors.New("boom")
}

func TestSweepSwallowsErrors(t *testing.T) {
	f := newFixture(t, failingInquiries{Repository: inquiryrepo.Provide()})
	current := f.inquiry(t, inquirydomain.StatusOpen, f.clock.Now().Add(time.Hour))
	stale := f.quotation(t, current, quotationdomain.StatusSubmitted, f.clock.Now().Add(-time.Hour))

	res := f.sweeper.CheckAndUpdateExpiredItems(context.Background())
	require.Equal(t, Result{}, res)
	require.Equal(t, quotationdomain.StatusSubmitted, f.quotationStatus(t, stale))

	// A failed run still counts against the throttle.
	require.True(t, f.sweeper.CheckAndUpdateExpiredItems(context.Background()).Skipped)
}
