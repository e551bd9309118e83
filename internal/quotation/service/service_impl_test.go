package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	activitydomain "github.com/smallbiznis/freightdesk/internal/activity/domain"
	activityrepo "github.com/smallbiznis/freightdesk/internal/activity/repository"
	activityservice "github.com/smallbiznis/freightdesk/internal/activity/service"
	"github.com/smallbiznis/freightdesk/internal/clock"
	"github.com/smallbiznis/freightdesk/internal/config"
	conndomain "github.com/smallbiznis/freightdesk/internal/connection/domain"
	inquirydomain "github.com/smallbiznis/freightdesk/internal/inquiry/domain"
	inquiryrepo "github.com/smallbiznis/freightdesk/internal/inquiry/repository"
	orgdomain "github.com/smallbiznis/freightdesk/internal/organization/domain"
	"github.com/smallbiznis/freightdesk/internal/providers/pdf"
	"github.com/smallbiznis/freightdesk/internal/quotation/domain"
	"github.com/smallbiznis/freightdesk/internal/quotation/repository"
	"github.com/smallbiznis/freightdesk/internal/ratelimit"
	"github.com/smallbiznis/freightdesk/internal/reference"
	refdomain "github.com/smallbiznis/freightdesk/internal/reference/domain"
	subscriptiondomain "github.com/smallbiznis/freightdesk/internal/subscription/domain"
	subscriptionrepo "github.com/smallbiznis/freightdesk/internal/subscription/repository"
	subscriptionservice "github.com/smallbiznis/freightdesk/internal/subscription/service"
	"github.com/smallbiznis/freightdesk/pkg/db"
	"github.com/smallbiznis/freightdesk/pkg/db/pagination"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	shipperID      snowflake.ID = 100
	forwarderA     snowflake.ID = 200
	forwarderB     snowflake.ID = 201
	forwarderC     snowflake.ID = 203
	strangerID     snowflake.ID = 202
	forwarderUser  snowflake.ID = 2
	inquiryCreator snowflake.ID = 1
)

type stubOrgs struct {
	orgdomain.Service
	db *gorm.DB
}

func (s *stubOrgs) Get(ctx context.Context, orgID snowflake.ID) (*orgdomain.Organization, error) {
	var org orgdomain.Organization
	if err := s.db.WithContext(ctx).First(&org, "id = ?", orgID).Error; err != nil {
		return nil, orgdomain.ErrOrganizationNotFound
	}
	return &org, nil
}

type stubConnections struct {
	conndomain.Service
	pairs map[[2]snowflake.ID]bool
}

func (s *stubConnections) IsConnected(_ context.Context, shipper, forwarder snowflake.ID) (bool, error) {
	return s.pairs[[2]snowflake.ID{shipper, forwarder}], nil
}

type stubLimiter struct {
	deny  bool
	calls int
}

func (l *stubLimiter) AllowQuotationSubmit(context.Context, string) (*ratelimit.RateLimitResult, error) {
	l.calls++
	return &ratelimit.RateLimitResult{Allowed: !l.deny}, nil
}

type fixture struct {
	svc       domain.Service
	db        *gorm.DB
	clock     *clock.FakeClock
	genID     *snowflake.Node
	limiter   *stubLimiter
	inquiries inquirydomain.Repository
	subs      subscriptiondomain.Service
}

func newFixture(t *testing.T) fixture {
	t.Helper()

	conn, err := db.NewTest()
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(
		&domain.Quotation{},
		&inquirydomain.Inquiry{}, &inquirydomain.Package{}, &inquirydomain.Recipient{},
		&orgdomain.Organization{}, &activitydomain.Event{},
		&subscriptiondomain.Subscription{}, &refdomain.Currency{},
	))
	require.NoError(t, conn.Create(&refdomain.Currency{Code: "EUR", Name: "Euro", MinorUnit: 2, IsActive: true}).Error)
	require.NoError(t, conn.Create(&refdomain.Currency{Code: "JPY", Name: "Yen", MinorUnit: 0, IsActive: true}).Error)

	for _, org := range []orgdomain.Organization{
		{ID: shipperID, Name: "Acme Shipping", Slug: "acme", Type: orgdomain.TypeShipper, CountryCode: "DE", CreatedBy: 1},
		{ID: forwarderA, Name: "Blue Cargo", Slug: "blue", Type: orgdomain.TypeForwarder, CountryCode: "NL", CreatedBy: 2},
		{ID: forwarderB, Name: "Red Freight", Slug: "red", Type: orgdomain.TypeForwarder, CountryCode: "NL", CreatedBy: 3},
		{ID: forwarderC, Name: "Green Logistics", Slug: "green", Type: orgdomain.TypeForwarder, CountryCode: "PL", CreatedBy: 4},
		{ID: strangerID, Name: "Grey Lines", Slug: "grey", Type: orgdomain.TypeForwarder, CountryCode: "BE", CreatedBy: 5},
	} {
		require.NoError(t, conn.Create(&org).Error)
	}

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	clk := clock.NewFakeClock(time.Date(2025, 3, 3, 10, 0, 0, 0, time.UTC))
	log := zap.NewNop()

	activity := activityservice.NewService(activityservice.Params{
		DB: conn, Log: log, GenID: node, Clock: clk, Repo: activityrepo.Provide(),
	})
	subscriptions := subscriptionservice.NewService(subscriptionservice.Params{
		DB:       conn,
		Log:      log,
		GenID:    node,
		Clock:    clk,
		Tiers:    config.NewStaticTierConfigHolder(config.TierConfig{Default: config.TierFree, Limits: map[string]int{"free": 2, "pro": 0}}),
		Repo:     subscriptionrepo.Provide(),
		Activity: activity,
	})
	for _, id := range []snowflake.ID{forwarderA, forwarderB, forwarderC, strangerID} {
		_, err := subscriptions.CreateDefault(context.Background(), nil, id)
		require.NoError(t, err)
	}

	limiter := &stubLimiter{}
	inquiries := inquiryrepo.Provide()
	svc := NewService(Params{
		DB:        conn,
		Log:       log,
		GenID:     node,
		Clock:     clk,
		Repo:      repository.Provide(),
		Inquiries: inquiries,
		Orgs:      &stubOrgs{db: conn},
		Connections: &stubConnections{pairs: map[[2]snowflake.ID]bool{
			{shipperID, forwarderA}: true,
			{shipperID, forwarderB}: true,
			{shipperID, forwarderC}: true,
		}},
		Reference:     reference.NewService(reference.NewRepository(conn)),
		Subscriptions: subscriptions,
		Activity:      activity,
		PDF:           pdf.New(),
		Limiter:       limiter,
	})
	return fixture{svc: svc, db: conn, clock: clk, genID: node, limiter: limiter, inquiries: inquiries, subs: subscriptions}
}

// seedInquiry stores an open inquiry sent to the given forwarders.
func (f fixture) seedInquiry(t *testing.T, forwarders ...snowflake.ID) *inquirydomain.Inquiry {
	t.Helper()
	ctx := context.Background()
	now := f.clock.Now()
	validity := now.Add(7 * 24 * time.Hour)
	id := f.genID.Generate()
	inquiry := &inquirydomain.Inquiry{
		ID:                 id,
		ReferenceNumber:    fmt.Sprintf("INQ-TEST-%s", id.Base36()),
		ShipperOrgID:       shipperID,
		CreatedBy:          inquiryCreator,
		Status:             inquirydomain.StatusOpen,
		ServiceType:        inquirydomain.ServiceSeaFCL,
		OriginCountry:      "CN",
		OriginPort:         "CNSHA",
		DestinationCountry: "DE",
		DestinationPort:    "DEHAM",
		Incoterm:           "FOB",
		ValidityDate:       &validity,
		SentAt:             &now,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	require.NoError(t, f.inquiries.Insert(ctx, f.db, inquiry))

	var recipients []inquirydomain.Recipient
	for _, fid := range forwarders {
		recipients = append(recipients, inquirydomain.Recipient{
			ID:             f.genID.Generate(),
			InquiryID:      id,
			ForwarderOrgID: fid,
			SentAt:         now,
			ResponseStatus: inquirydomain.ResponsePending,
		})
	}
	require.NoError(t, f.inquiries.InsertRecipients(ctx, f.db, recipients))
	return inquiry
}

func (f fixture) offer(amount int64) domain.CreateRequest {
	validUntil := f.clock.Now().Add(5 * 24 * time.Hour)
	return domain.CreateRequest{
		Currency:     "eur",
		PreCarriage:  10000,
		MainCarriage: amount,
		OnCarriage:   5000,
		AdditionalCharges: []domain.Charge{
			{Name: " THC ", Amount: 15000},
			{Name: "BAF", Amount: 2500},
		},
		TransitTimeDays: 32,
		ValidUntil:      &validUntil,
	}
}

func (f fixture) submitted(t *testing.T, inquiryID, forwarder snowflake.ID, amount int64) *domain.Quotation {
	t.Helper()
	ctx := context.Background()
	q, err := f.svc.Create(ctx, forwarder, forwarderUser, inquiryID, f.offer(amount))
	require.NoError(t, err)
	q, err = f.svc.Submit(ctx, forwarder, q.ID)
	require.NoError(t, err)
	return q
}

func (f fixture) inquiryStatus(t *testing.T, id snowflake.ID) inquirydomain.Status {
	t.Helper()
	inquiry, err := f.inquiries.FindByID(context.Background(), f.db, id)
	require.NoError(t, err)
	return inquiry.Status
}

func TestCreateComputesTotalAndBlocksDuplicates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	inquiry := f.seedInquiry(t, forwarderA)

	q, err := f.svc.Create(ctx, forwarderA, forwarderUser, inquiry.ID, f.offer(120000))
	require.NoError(t, err)
	require.Equal(t, domain.StatusDraft, q.Status)
	require.Equal(t, "EUR", q.Currency)
	require.EqualValues(t, 10000+120000+5000+15000+2500, q.TotalPrice)
	require.Equal(t, "THC", q.AdditionalCharges[0].Name)

	stored, err := f.svc.Get(ctx, forwarderA, q.ID)
	require.NoError(t, err)
	require.Len(t, stored.AdditionalCharges, 2)
	require.Equal(t, q.TotalPrice, stored.TotalPrice)

	_, err = f.svc.Create(ctx, forwarderA, forwarderUser, inquiry.ID, f.offer(1))
	require.ErrorIs(t, err, domain.ErrQuotationExists)
}

func TestCreateValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	inquiry := f.seedInquiry(t, forwarderA)

	_, err := f.svc.Create(ctx, shipperID, inquiryCreator, inquiry.ID, f.offer(1))
	require.ErrorIs(t, err, domain.ErrForwarderOnly)

	_, err = f.svc.Create(ctx, strangerID, 9, inquiry.ID, f.offer(1))
	require.ErrorIs(t, err, inquirydomain.ErrInquiryNotFound)

	req := f.offer(1)
	req.Currency = "XYZ"
	_, err = f.svc.Create(ctx, forwarderA, forwarderUser, inquiry.ID, req)
	require.ErrorIs(t, err, domain.ErrInvalidCurrency)

	req = f.offer(-1)
	_, err = f.svc.Create(ctx, forwarderA, forwarderUser, inquiry.ID, req)
	require.ErrorIs(t, err, domain.ErrInvalidAmount)

	req = f.offer(1)
	req.AdditionalCharges = []domain.Charge{{Name: "", Amount: 10}}
	_, err = f.svc.Create(ctx, forwarderA, forwarderUser, inquiry.ID, req)
	require.ErrorIs(t, err, domain.ErrInvalidCharge)

	req = f.offer(1)
	past := f.clock.Now().Add(-time.Minute)
	req.ValidUntil = &past
	_, err = f.svc.Create(ctx, forwarderA, forwarderUser, inquiry.ID, req)
	require.ErrorIs(t, err, domain.ErrInvalidValidUntil)

	require.NoError(t, f.inquiries.Update(ctx, f.db, inquiry.ID, map[string]any{"status": inquirydomain.StatusClosed}))
	_, err = f.svc.Create(ctx, forwarderA, forwarderUser, inquiry.ID, f.offer(1))
	require.ErrorIs(t, err, domain.ErrInquiryNotOpen)
}

func TestSubmitMarksRecipientQuoted(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	inquiry := f.seedInquiry(t, forwarderA)

	req := f.offer(50000)
	req.ValidUntil = nil
	q, err := f.svc.Create(ctx, forwarderA, forwarderUser, inquiry.ID, req)
	require.NoError(t, err)

	// Drafts stay private to the forwarder.
	_, err = f.svc.Get(ctx, shipperID, q.ID)
	require.ErrorIs(t, err, domain.ErrQuotationNotFound)

	_, err = f.svc.Submit(ctx, forwarderA, q.ID)
	require.ErrorIs(t, err, domain.ErrInvalidValidUntil)

	validUntil := f.clock.Now().Add(48 * time.Hour)
	main := int64(60000)
	updated, err := f.svc.Update(ctx, forwarderA, q.ID, domain.UpdateRequest{ValidUntil: &validUntil, MainCarriage: &main})
	require.NoError(t, err)
	require.EqualValues(t, 10000+60000+5000+15000+2500, updated.TotalPrice)

	submitted, err := f.svc.Submit(ctx, forwarderA, q.ID)
	require.NoError(t, err)
	require.Equal(t, domain.StatusSubmitted, submitted.Status)
	require.NotNil(t, submitted.SubmittedAt)

	recipient, err := f.inquiries.FindRecipient(ctx, f.db, inquiry.ID, forwarderA)
	require.NoError(t, err)
	require.Equal(t, inquirydomain.ResponseQuoted, recipient.ResponseStatus)

	_, err = f.svc.Submit(ctx, forwarderA, q.ID)
	require.ErrorIs(t, err, domain.ErrInvalidTransition)

	seen, err := f.svc.Get(ctx, shipperID, q.ID)
	require.NoError(t, err)
	require.Equal(t, q.ID, seen.ID)

	var events int64
	require.NoError(t, f.db.Model(&activitydomain.Event{}).
		Where("type = ? AND target_id = ?", activitydomain.TypeQuotationSubmitted, q.ID.String()).
		Count(&events).Error)
	require.EqualValues(t, 2, events)
}

func TestSubmitEnforcesTierLimit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		inquiry := f.seedInquiry(t, forwarderA)
		f.submitted(t, inquiry.ID, forwarderA, 1000)
	}

	inquiry := f.seedInquiry(t, forwarderA)
	q, err := f.svc.Create(ctx, forwarderA, forwarderUser, inquiry.ID, f.offer(1000))
	require.NoError(t, err)
	_, err = f.svc.Submit(ctx, forwarderA, q.ID)
	require.ErrorIs(t, err, subscriptiondomain.ErrQuotationLimitReached)

	stored, err := f.svc.Get(ctx, forwarderA, q.ID)
	require.NoError(t, err)
	require.Equal(t, domain.StatusDraft, stored.Status)

	_, err = f.subs.ChangeTier(ctx, forwarderA, "pro")
	require.NoError(t, err)
	_, err = f.svc.Submit(ctx, forwarderA, q.ID)
	require.NoError(t, err)
}

func TestSubmitRateLimited(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	inquiry := f.seedInquiry(t, forwarderA)

	q, err := f.svc.Create(ctx, forwarderA, forwarderUser, inquiry.ID, f.offer(1000))
	require.NoError(t, err)

	f.limiter.deny = true
	_, err = f.svc.Submit(ctx, forwarderA, q.ID)
	require.ErrorIs(t, err, domain.ErrRateLimited)
}

func TestAcceptRejectsSiblingsAndAwards(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	inquiry := f.seedInquiry(t, forwarderA, forwarderB, forwarderC)

	winner := f.submitted(t, inquiry.ID, forwarderA, 90000)
	loser := f.submitted(t, inquiry.ID, forwarderB, 95000)
	draft, err := f.svc.Create(ctx, forwarderC, 4, inquiry.ID, f.offer(80000))
	require.NoError(t, err)

	_, err = f.svc.Accept(ctx, forwarderB, winner.ID)
	require.ErrorIs(t, err, domain.ErrShipperOnly)
	_, err = f.svc.Accept(ctx, shipperID, draft.ID)
	require.ErrorIs(t, err, domain.ErrQuotationNotFound)

	accepted, err := f.svc.Accept(ctx, shipperID, winner.ID)
	require.NoError(t, err)
	require.Equal(t, domain.StatusAccepted, accepted.Status)
	require.NotNil(t, accepted.DecidedAt)

	sibling, err := f.svc.Get(ctx, forwarderB, loser.ID)
	require.NoError(t, err)
	require.Equal(t, domain.StatusRejected, sibling.Status)

	untouched, err := f.svc.Get(ctx, forwarderC, draft.ID)
	require.NoError(t, err)
	require.Equal(t, domain.StatusDraft, untouched.Status)

	require.Equal(t, inquirydomain.StatusAwarded, f.inquiryStatus(t, inquiry.ID))

	_, err = f.svc.Accept(ctx, shipperID, loser.ID)
	require.ErrorIs(t, err, domain.ErrInvalidTransition)

	var rejectedEvents int64
	require.NoError(t, f.db.Model(&activitydomain.Event{}).
		Where("type = ? AND org_id = ?", activitydomain.TypeQuotationRejected, forwarderB).
		Count(&rejectedEvents).Error)
	require.EqualValues(t, 1, rejectedEvents)
}

func TestRejectLastQuotationClosesInquiry(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	inquiry := f.seedInquiry(t, forwarderA, forwarderB)

	first := f.submitted(t, inquiry.ID, forwarderA, 1000)
	second := f.submitted(t, inquiry.ID, forwarderB, 2000)

	rejected, err := f.svc.Reject(ctx, shipperID, first.ID, domain.RejectRequest{Reason: "too expensive"})
	require.NoError(t, err)
	require.Equal(t, domain.StatusRejected, rejected.Status)
	require.Equal(t, "too expensive", rejected.RejectReason)
	require.Equal(t, inquirydomain.StatusOpen, f.inquiryStatus(t, inquiry.ID))

	_, err = f.svc.Reject(ctx, shipperID, first.ID, domain.RejectRequest{})
	require.ErrorIs(t, err, domain.ErrInvalidTransition)

	_, err = f.svc.Reject(ctx, shipperID, second.ID, domain.RejectRequest{})
	require.NoError(t, err)
	require.Equal(t, inquirydomain.StatusClosed, f.inquiryStatus(t, inquiry.ID))

	notes := "cheaper now"
	_, err = f.svc.Update(ctx, forwarderA, first.ID, domain.UpdateRequest{Notes: &notes})
	require.ErrorIs(t, err, domain.ErrQuotationNotEditable)
	_, err = f.svc.Submit(ctx, forwarderA, first.ID)
	require.ErrorIs(t, err, domain.ErrQuotationNotEditable)
}

func TestRejectKeepsInquiryOpenWhileWithdrawnExists(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	inquiry := f.seedInquiry(t, forwarderA, forwarderB)

	offered := f.submitted(t, inquiry.ID, forwarderA, 1000)
	pulled := f.submitted(t, inquiry.ID, forwarderB, 2000)
	_, err := f.svc.Withdraw(ctx, forwarderB, pulled.ID)
	require.NoError(t, err)

	_, err = f.svc.Reject(ctx, shipperID, offered.ID, domain.RejectRequest{})
	require.NoError(t, err)
	require.Equal(t, inquirydomain.StatusOpen, f.inquiryStatus(t, inquiry.ID))
}

func TestWithdrawBlocksNewQuotation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	inquiry := f.seedInquiry(t, forwarderA)

	q := f.submitted(t, inquiry.ID, forwarderA, 1000)
	withdrawn, err := f.svc.Withdraw(ctx, forwarderA, q.ID)
	require.NoError(t, err)
	require.Equal(t, domain.StatusWithdrawn, withdrawn.Status)
	require.NotNil(t, withdrawn.WithdrawnAt)

	_, err = f.svc.Withdraw(ctx, forwarderA, q.ID)
	require.ErrorIs(t, err, domain.ErrInvalidTransition)

	_, err = f.svc.Create(ctx, forwarderA, forwarderUser, inquiry.ID, f.offer(900))
	require.ErrorIs(t, err, domain.ErrQuotationExists)
}

func TestListForInquiryAndForwarder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	inquiry := f.seedInquiry(t, forwarderA, forwarderB)

	f.submitted(t, inquiry.ID, forwarderA, 3000)
	_, err := f.svc.Create(ctx, forwarderB, 3, inquiry.ID, f.offer(1000))
	require.NoError(t, err)

	forShipper, err := f.svc.ListForInquiry(ctx, shipperID, inquiry.ID)
	require.NoError(t, err)
	require.Len(t, forShipper, 1)
	require.Equal(t, forwarderA, forShipper[0].ForwarderOrgID)

	forB, err := f.svc.ListForInquiry(ctx, forwarderB, inquiry.ID)
	require.NoError(t, err)
	require.Len(t, forB, 1)
	require.Equal(t, domain.StatusDraft, forB[0].Status)

	_, err = f.svc.ListForInquiry(ctx, strangerID, inquiry.ID)
	require.ErrorIs(t, err, inquirydomain.ErrInquiryNotFound)

	second := f.seedInquiry(t, forwarderA)
	f.clock.Advance(time.Minute)
	f.submitted(t, second.ID, forwarderA, 4000)

	page, err := f.svc.List(ctx, forwarderA, domain.ListRequest{Pagination: pagination.Pagination{PageSize: 1}})
	require.NoError(t, err)
	require.True(t, page.HasMore)
	require.Len(t, page.Quotations, 1)
	require.Equal(t, second.ID, page.Quotations[0].InquiryID)

	next, err := f.svc.List(ctx, forwarderA, domain.ListRequest{
		Pagination: pagination.Pagination{PageSize: 1, PageToken: page.NextPageToken},
	})
	require.NoError(t, err)
	require.False(t, next.HasMore)
	require.Equal(t, inquiry.ID, next.Quotations[0].InquiryID)

	_, err = f.svc.List(ctx, shipperID, domain.ListRequest{})
	require.ErrorIs(t, err, domain.ErrForwarderOnly)
}

func TestExportRendersPDF(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	inquiry := f.seedInquiry(t, forwarderA)
	q := f.submitted(t, inquiry.ID, forwarderA, 120000)

	doc, err := f.svc.Export(ctx, shipperID, q.ID)
	require.NoError(t, err)
	require.Equal(t, q.QuotationNumber+".pdf", doc.Filename)
	require.Equal(t, "application/pdf", doc.ContentType)

	body, err := io.ReadAll(doc.Body)
	require.NoError(t, err)
	require.True(t, bytes.HasPrefix(body, []byte("%PDF")))

	_, err = f.svc.Export(ctx, strangerID, q.ID)
	require.ErrorIs(t, err, domain.ErrQuotationNotFound)
}

func TestFormatAmount(t *testing.T) {
	cases := []struct {
		amount int64
		minor  int
		want   string
	}{
		{123456, 2, "1,234.56"},
		{5, 2, "0.05"},
		{100, 2, "1.00"},
		{-250075, 2, "-2,500.75"},
		{1500000, 0, "1,500,000"},
		{999, 0, "999"},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, FormatAmount(tc.amount, tc.minor))
	}
}

func TestSubmitSpendsNoTokenWhenBoundToFail(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	closed := f.seedInquiry(t, forwarderA)
	q, err := f.svc.Create(ctx, forwarderA, forwarderUser, closed.ID, f.offer(1000))
	require.NoError(t, err)
	require.NoError(t, f.inquiries.Update(ctx, f.db, closed.ID, map[string]any{"status": inquirydomain.StatusClosed}))
	_, err = f.svc.Submit(ctx, forwarderA, q.ID)
	require.ErrorIs(t, err, domain.ErrInquiryNotOpen)
	require.Zero(t, f.limiter.calls)

	open := f.seedInquiry(t, forwarderA)
	q, err = f.svc.Create(ctx, forwarderA, forwarderUser, open.ID, f.offer(1000))
	require.NoError(t, err)
	submitted, err := f.svc.Submit(ctx, forwarderA, q.ID)
	require.NoError(t, err)
	require.Equal(t, 1, f.limiter.calls)

	_, err = f.svc.Submit(ctx, forwarderA, submitted.ID)
	require.ErrorIs(t, err, domain.ErrInvalidTransition)
	require.Equal(t, 1, f.limiter.calls)

	// the free tier allows two a month; the second is spent here
	second := f.seedInquiry(t, forwarderA)
	f.submitted(t, second.ID, forwarderA, 1000)
	require.Equal(t, 2, f.limiter.calls)
	third := f.seedInquiry(t, forwarderA)
	q, err = f.svc.Create(ctx, forwarderA, forwarderUser, third.ID, f.offer(1000))
	require.NoError(t, err)
	_, err = f.svc.Submit(ctx, forwarderA, q.ID)
	require.ErrorIs(t, err, subscriptiondomain.ErrQuotationLimitReached)
	require.Equal(t, 2, f.limiter.calls)
}

func TestUpdateFrozenOnceInquiryStopsTakingQuotes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	notes := "rates refreshed"

	closed := f.seedInquiry(t, forwarderA)
	q := f.submitted(t, closed.ID, forwarderA, 1000)
	require.NoError(t, f.inquiries.Update(ctx, f.db, closed.ID, map[string]any{"status": inquirydomain.StatusClosed}))
	main := int64(1)
	_, err := f.svc.Update(ctx, forwarderA, q.ID, domain.UpdateRequest{MainCarriage: &main})
	require.ErrorIs(t, err, domain.ErrInquiryNotOpen)
	stored, err := f.svc.Get(ctx, forwarderA, q.ID)
	require.NoError(t, err)
	require.Equal(t, q.TotalPrice, stored.TotalPrice)

	lapsing := f.seedInquiry(t, forwarderB)
	q = f.submitted(t, lapsing.ID, forwarderB, 1000)
	_, err = f.svc.Update(ctx, forwarderB, q.ID, domain.UpdateRequest{Notes: &notes})
	require.NoError(t, err)
	f.clock.Advance(8 * 24 * time.Hour)
	_, err = f.svc.Update(ctx, forwarderB, q.ID, domain.UpdateRequest{Notes: &notes})
	require.ErrorIs(t, err, domain.ErrInquiryExpired)

	_, err = f.svc.Update(ctx, forwarderA, q.ID, domain.UpdateRequest{Notes: &notes})
	require.ErrorIs(t, err, domain.ErrQuotationNotFound)
}

// failInquiryWrites makes every UPDATE on the inquiries table fail.
func failInquiryWrites(t *testing.T, conn *gorm.DB) {
	t.Helper()
	err := conn.Callback().Update().Before("gorm:update").Register("test:fail_inquiry_update", func(tx *gorm.DB) {
		if tx.Statement.Table == "inquiries" {
			_ = tx.AddError(errors.New("inquiry write failed"))
		}
	})
	require.NoError(t, err)
}

func TestAcceptRollsBackWhenInquiryUpdateFails(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	inquiry := f.seedInquiry(t, forwarderA, forwarderB)
	winner := f.submitted(t, inquiry.ID, forwarderA, 1000)
	sibling := f.submitted(t, inquiry.ID, forwarderB, 2000)

	failInquiryWrites(t, f.db)
	_, err := f.svc.Accept(ctx, shipperID, winner.ID)
	require.ErrorContains(t, err, "inquiry write failed")

	for _, q := range []*domain.Quotation{winner, sibling} {
		stored, err := f.svc.Get(ctx, q.ForwarderOrgID, q.ID)
		require.NoError(t, err)
		require.Equal(t, domain.StatusSubmitted, stored.Status)
		require.Nil(t, stored.DecidedAt)
	}
	require.Equal(t, inquirydomain.StatusOpen, f.inquiryStatus(t, inquiry.ID))

	var decided int64
	require.NoError(t, f.db.Model(&activitydomain.Event{}).
		Where("type IN ?", []string{activitydomain.TypeQuotationAccepted, activitydomain.TypeQuotationRejected}).
		Count(&decided).Error)
	require.Zero(t, decided)
}

func TestRejectLastRollsBackWhenInquiryUpdateFails(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	inquiry := f.seedInquiry(t, forwarderA)
	only := f.submitted(t, inquiry.ID, forwarderA, 1000)

	failInquiryWrites(t, f.db)
	_, err := f.svc.Reject(ctx, shipperID, only.ID, domain.RejectRequest{Reason: "budget cut"})
	require.ErrorContains(t, err, "inquiry write failed")

	stored, err := f.svc.Get(ctx, forwarderA, only.ID)
	require.NoError(t, err)
	require.Equal(t, domain.StatusSubmitted, stored.Status)
	require.Empty(t, stored.RejectReason)
	require.Equal(t, inquirydomain.StatusOpen, f.inquiryStatus(t, inquiry.ID))
}
