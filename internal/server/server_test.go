package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	authdomain "github.com/smallbiznis/freightdesk/internal/auth/domain"
	"github.com/smallbiznis/freightdesk/internal/auth/session"
	"github.com/smallbiznis/freightdesk/internal/authorization"
	"github.com/smallbiznis/freightdesk/internal/config"
	connectiondomain "github.com/smallbiznis/freightdesk/internal/connection/domain"
	dashboarddomain "github.com/smallbiznis/freightdesk/internal/dashboard/domain"
	"github.com/smallbiznis/freightdesk/internal/expiry"
	inquirydomain "github.com/smallbiznis/freightdesk/internal/inquiry/domain"
	organizationdomain "github.com/smallbiznis/freightdesk/internal/organization/domain"
	quotationdomain "github.com/smallbiznis/freightdesk/internal/quotation/domain"
	"github.com/smallbiznis/freightdesk/internal/ratelimit"
	subscriptiondomain "github.com/smallbiznis/freightdesk/internal/subscription/domain"
	"github.com/stretchr/testify/require"
)

const (
	testOrgID     = snowflake.ID(100)
	testOtherOrg  = snowflake.ID(101)
	testUserID    = snowflake.ID(10)
	testSessionID = snowflake.ID(1)

	tokenWithOrg    = "token-with-org"
	tokenWithoutOrg = "token-without-org"
)

type stubAuth struct {
	authdomain.Service
}

func (stubAuth) Authenticate(_ context.Context, rawToken string) (*authdomain.Session, error) {
	switch rawToken {
	case tokenWithOrg:
		active := int64(testOrgID)
		return &authdomain.Session{ID: testSessionID, UserID: testUserID, ActiveOrgID: &active}, nil
	case tokenWithoutOrg:
		return &authdomain.Session{ID: testSessionID, UserID: testUserID}, nil
	}
	return nil, authdomain.ErrInvalidSession
}

func (stubAuth) UpdateSessionOrgContext(context.Context, snowflake.ID, *int64, []int64) error {
	return nil
}

type stubOrgs struct {
	organizationdomain.Service
	role        string
	inviteCalls int
}

func (s *stubOrgs) GetMemberRole(_ context.Context, orgID, _ snowflake.ID) (string, error) {
	if orgID != testOrgID {
		return "", organizationdomain.ErrMemberNotFound
	}
	return s.role, nil
}

func (s *stubOrgs) ListOrganizationsByUser(context.Context, snowflake.ID) ([]organizationdomain.OrganizationListResponseItem, error) {
	return []organizationdomain.OrganizationListResponseItem{
		{ID: testOrgID.String(), Name: "Acme Freight", Type: organizationdomain.TypeForwarder, Role: s.role},
	}, nil
}

func (s *stubOrgs) Get(_ context.Context, orgID snowflake.ID) (*organizationdomain.Organization, error) {
	return &organizationdomain.Organization{ID: orgID, Name: "Acme Freight", Type: organizationdomain.TypeForwarder}, nil
}

func (s *stubOrgs) InviteMember(_ context.Context, orgID, _ snowflake.ID, req organizationdomain.InviteRequest) (*organizationdomain.InviteResponse, error) {
	s.inviteCalls++
	return &organizationdomain.InviteResponse{
		Invite: organizationdomain.OrganizationInvite{ID: snowflake.ID(500), OrgID: orgID, Email: req.Email, Role: req.Role},
	}, nil
}

type stubAuthz struct {
	err     error
	actions []string
}

func (s *stubAuthz) Authorize(_ context.Context, actor, _, object, action string) error {
	s.actions = append(s.actions, actor+" "+object+" "+action)
	return s.err
}

type stubSubscriptions struct {
	subscriptiondomain.Service
	tier string
}

func (s *stubSubscriptions) ChangeTier(_ context.Context, orgID snowflake.ID, tier string) (*subscriptiondomain.Subscription, error) {
	s.tier = tier
	return &subscriptiondomain.Subscription{OrgID: orgID, Tier: tier}, nil
}

type stubConnections struct {
	connectiondomain.Service
}

func (stubConnections) Invite(_ context.Context, orgID, _ snowflake.ID, _ connectiondomain.InviteRequest) (*connectiondomain.Connection, error) {
	return &connectiondomain.Connection{ID: snowflake.ID(700), ForwarderOrgID: orgID}, nil
}

type stubInquiries struct {
	inquirydomain.Service
	listed     int
	lastReject inquirydomain.RejectRequest
	getErr     error
}

func (s *stubInquiries) List(_ context.Context, _ snowflake.ID, req inquirydomain.ListRequest) (inquirydomain.ListResponse, error) {
	s.listed++
	if req.Status != "" && req.Status != "offen" {
		return inquirydomain.ListResponse{}, inquirydomain.ErrInvalidStatus
	}
	return inquirydomain.ListResponse{Inquiries: []inquirydomain.ListItem{}}, nil
}

func (s *stubInquiries) Get(_ context.Context, _ snowflake.ID, inquiryID snowflake.ID) (*inquirydomain.Detail, error) {
	if s.getErr != nil {
		return nil, s.getErr
	}
	return &inquirydomain.Detail{Inquiry: inquirydomain.Inquiry{ID: inquiryID}}, nil
}

func (s *stubInquiries) Reject(_ context.Context, _ snowflake.ID, inquiryID snowflake.ID, req inquirydomain.RejectRequest) (*inquirydomain.Inquiry, error) {
	s.lastReject = req
	return &inquirydomain.Inquiry{ID: inquiryID}, nil
}

type stubQuotations struct {
	quotationdomain.Service
	submitErr error
}

func (s *stubQuotations) Submit(_ context.Context, _ snowflake.ID, quotationID snowflake.ID) (*quotationdomain.Quotation, error) {
	if s.submitErr != nil {
		return nil, s.submitErr
	}
	return &quotationdomain.Quotation{ID: quotationID, Status: quotationdomain.StatusSubmitted}, nil
}

func (s *stubQuotations) Export(_ context.Context, _ snowflake.ID, _ snowflake.ID) (*quotationdomain.Document, error) {
	return &quotationdomain.Document{
		Filename:    "QUO-2025-0001.pdf",
		ContentType: "application/pdf",
		Body:        strings.NewReader("%PDF-1.7"),
	}, nil
}

type stubDashboard struct {
	dashboarddomain.Service
	last dashboarddomain.Request
}

func (s *stubDashboard) Get(_ context.Context, _ snowflake.ID, req dashboarddomain.Request) (*dashboarddomain.Dashboard, error) {
	s.last = req
	return &dashboarddomain.Dashboard{OrgType: "forwarder"}, nil
}

type stubSweeper struct {
	calls int
}

func (s *stubSweeper) CheckAndUpdateExpiredItems(context.Context) expiry.Result {
	s.calls++
	return expiry.Result{}
}

type stubLimiter struct {
	result *ratelimit.RateLimitResult
	err    error
}

func (s stubLimiter) AllowInvite(context.Context, string) (*ratelimit.RateLimitResult, error) {
	return s.result, s.err
}

type fixture struct {
	router    *gin.Engine
	orgs      *stubOrgs
	authz     *stubAuthz
	subs      *stubSubscriptions
	inquiries *stubInquiries
	quotes    *stubQuotations
	dashboard *stubDashboard
	sweeper   *stubSweeper
	srv       *Server
}

func newFixture(t *testing.T, role string) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	f := &fixture{
		orgs:      &stubOrgs{role: role},
		authz:     &stubAuthz{},
		subs:      &stubSubscriptions{},
		inquiries: &stubInquiries{},
		quotes:    &stubQuotations{},
		dashboard: &stubDashboard{},
		sweeper:   &stubSweeper{},
	}

	router := gin.New()
	router.Use(ErrorHandlingMiddleware())
	f.srv = NewServer(ServerParams{
		Gin:             router,
		Cfg:             config.Config{},
		Sessions:        session.NewManager(config.Config{}),
		Authsvc:         stubAuth{},
		AuthzSvc:        f.authz,
		OrganizationSvc: f.orgs,
		SubscriptionSvc: f.subs,
		ConnectionSvc:   stubConnections{},
		InquirySvc:      f.inquiries,
		QuotationSvc:    f.quotes,
		DashboardSvc:    f.dashboard,
	})
	f.srv.sweeper = f.sweeper
	f.router = router
	return f
}

func (f *fixture) do(t *testing.T, method, path, token string, body string, headers ...string) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != "" {
		reader = bytes.NewBufferString(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.AddCookie(&http.Cookie{Name: "fd_session", Value: token})
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	resp := httptest.NewRecorder()
	f.router.ServeHTTP(resp, req)
	return resp
}

func decodeError(t *testing.T, resp *httptest.ResponseRecorder) errorPayload {
	t.Helper()
	var out errorResponse
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &out))
	return out.Error
}

func TestAPIRequiresSession(t *testing.T) {
	f := newFixture(t, organizationdomain.RoleOwner)

	resp := f.do(t, http.MethodGet, "/api/inquiries", "", "")
	require.Equal(t, http.StatusUnauthorized, resp.Code)

	resp = f.do(t, http.MethodGet, "/api/inquiries", "bogus", "")
	require.Equal(t, http.StatusUnauthorized, resp.Code)
	require.Zero(t, f.inquiries.listed)
}

func TestAPIRequiresActiveOrganization(t *testing.T) {
	f := newFixture(t, organizationdomain.RoleOwner)

	resp := f.do(t, http.MethodGet, "/api/inquiries", tokenWithoutOrg, "")
	require.Equal(t, http.StatusBadRequest, resp.Code)
	payload := decodeError(t, resp)
	require.Equal(t, "no_active_organization", payload.Errors[0].Code)
	require.Equal(t, "X-Org-ID", payload.Errors[0].Field)

	resp = f.do(t, http.MethodGet, "/api/inquiries", tokenWithoutOrg, "", HeaderOrg, testOrgID.String())
	require.Equal(t, http.StatusOK, resp.Code)
}

func TestAPIRejectsOrganizationTheUserDoesNotBelongTo(t *testing.T) {
	f := newFixture(t, organizationdomain.RoleOwner)

	resp := f.do(t, http.MethodGet, "/api/inquiries", tokenWithOrg, "", HeaderOrg, testOtherOrg.String())
	require.Equal(t, http.StatusForbidden, resp.Code)

	resp = f.do(t, http.MethodGet, "/api/inquiries", tokenWithOrg, "", HeaderOrg, "not-an-id")
	require.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestAPIChecksPolicy(t *testing.T) {
	f := newFixture(t, organizationdomain.RoleMember)
	f.authz.err = authorization.ErrForbidden

	resp := f.do(t, http.MethodPost, "/api/quotations/55/accept", tokenWithOrg, "")
	require.Equal(t, http.StatusForbidden, resp.Code)
	require.Equal(t, []string{"user:10 quotation quotation.decide"}, f.authz.actions)
}

func TestListInquiriesSweepsFirst(t *testing.T) {
	f := newFixture(t, organizationdomain.RoleMember)

	resp := f.do(t, http.MethodGet, "/api/inquiries?status=offen&page_size=10", tokenWithOrg, "")
	require.Equal(t, http.StatusOK, resp.Code)
	require.Equal(t, 1, f.sweeper.calls)
	require.Equal(t, 1, f.inquiries.listed)

	resp = f.do(t, http.MethodGet, "/api/inquiries?status=bogus", tokenWithOrg, "")
	require.Equal(t, http.StatusBadRequest, resp.Code)
	require.Equal(t, "invalid_status", decodeError(t, resp).Errors[0].Code)
}

func TestGetInquiryValidatesID(t *testing.T) {
	f := newFixture(t, organizationdomain.RoleMember)

	resp := f.do(t, http.MethodGet, "/api/inquiries/abc", tokenWithOrg, "")
	require.Equal(t, http.StatusBadRequest, resp.Code)
	require.Equal(t, "invalid_id", decodeError(t, resp).Errors[0].Code)

	f.inquiries.getErr = inquirydomain.ErrInquiryNotFound
	resp = f.do(t, http.MethodGet, "/api/inquiries/42", tokenWithOrg, "")
	require.Equal(t, http.StatusNotFound, resp.Code)
}

func TestRejectInquiryAcceptsEmptyBody(t *testing.T) {
	f := newFixture(t, organizationdomain.RoleMember)

	resp := f.do(t, http.MethodPost, "/api/inquiries/42/reject", tokenWithOrg, "")
	require.Equal(t, http.StatusOK, resp.Code)
	require.Empty(t, f.inquiries.lastReject.Reason)

	resp = f.do(t, http.MethodPost, "/api/inquiries/42/reject", tokenWithOrg, `{"reason":"no capacity"}`)
	require.Equal(t, http.StatusOK, resp.Code)
	require.Equal(t, "no capacity", f.inquiries.lastReject.Reason)
}

func TestSubmitQuotationMapsDomainErrors(t *testing.T) {
	f := newFixture(t, organizationdomain.RoleMember)

	resp := f.do(t, http.MethodPost, "/api/quotations/77/submit", tokenWithOrg, "")
	require.Equal(t, http.StatusOK, resp.Code)

	f.quotes.submitErr = subscriptiondomain.ErrQuotationLimitReached
	resp = f.do(t, http.MethodPost, "/api/quotations/77/submit", tokenWithOrg, "")
	require.Equal(t, http.StatusConflict, resp.Code)

	f.quotes.submitErr = quotationdomain.ErrRateLimited
	resp = f.do(t, http.MethodPost, "/api/quotations/77/submit", tokenWithOrg, "")
	require.Equal(t, http.StatusTooManyRequests, resp.Code)
}

func TestExportQuotationStreamsPDF(t *testing.T) {
	f := newFixture(t, organizationdomain.RoleMember)

	resp := f.do(t, http.MethodGet, "/api/quotations/77/pdf", tokenWithOrg, "")
	require.Equal(t, http.StatusOK, resp.Code)
	require.Equal(t, "application/pdf", resp.Header().Get("Content-Type"))
	require.Equal(t, `attachment; filename="QUO-2025-0001.pdf"`, resp.Header().Get("Content-Disposition"))
	require.Equal(t, "%PDF-1.7", resp.Body.String())
}

func TestChangeTierIsOwnerOnly(t *testing.T) {
	f := newFixture(t, organizationdomain.RoleAdmin)

	resp := f.do(t, http.MethodPost, "/api/subscription/tier", tokenWithOrg, `{"tier":"pro"}`)
	require.Equal(t, http.StatusForbidden, resp.Code)
	require.Empty(t, f.subs.tier)

	f.orgs.role = organizationdomain.RoleOwner
	resp = f.do(t, http.MethodPost, "/api/subscription/tier", tokenWithOrg, `{"tier":" PRO "}`)
	require.Equal(t, http.StatusOK, resp.Code)
	require.Equal(t, "pro", f.subs.tier)
}

func TestInviteRateLimit(t *testing.T) {
	f := newFixture(t, organizationdomain.RoleOwner)
	body := `{"email":"ops@example.com","role":"member"}`

	f.srv.inviteLimiter = stubLimiter{result: &ratelimit.RateLimitResult{Allowed: false, RetryAfter: 1500 * time.Millisecond}}
	resp := f.do(t, http.MethodPost, "/api/organization/invites", tokenWithOrg, body)
	require.Equal(t, http.StatusTooManyRequests, resp.Code)
	require.Equal(t, "2", resp.Header().Get("Retry-After"))
	require.Zero(t, f.orgs.inviteCalls)

	// limiter outages let invites through
	f.srv.inviteLimiter = stubLimiter{err: errors.New("redis down")}
	resp = f.do(t, http.MethodPost, "/api/organization/invites", tokenWithOrg, body)
	require.Equal(t, http.StatusCreated, resp.Code)
	require.Equal(t, 1, f.orgs.inviteCalls)

	f.srv.inviteLimiter = stubLimiter{result: &ratelimit.RateLimitResult{Allowed: true}}
	resp = f.do(t, http.MethodPost, "/api/connections", tokenWithOrg, `{"org_id":"200"}`)
	require.Equal(t, http.StatusCreated, resp.Code)
}

func TestDashboardParsesRange(t *testing.T) {
	f := newFixture(t, organizationdomain.RoleMember)

	resp := f.do(t, http.MethodGet, "/api/dashboard?period=90d", tokenWithOrg, "")
	require.Equal(t, http.StatusOK, resp.Code)
	require.Equal(t, dashboarddomain.Window90Days, f.dashboard.last.Window)
	require.Nil(t, f.dashboard.last.From)

	resp = f.do(t, http.MethodGet, "/api/dashboard?from=2025-01-01&to=2025-01-31", tokenWithOrg, "")
	require.Equal(t, http.StatusOK, resp.Code)
	require.Equal(t, time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), *f.dashboard.last.From)
	require.Equal(t, 31, f.dashboard.last.To.Day())

	resp = f.do(t, http.MethodGet, "/api/dashboard?from=yesterday", tokenWithOrg, "")
	require.Equal(t, http.StatusBadRequest, resp.Code)
	require.Equal(t, "from", decodeError(t, resp).Errors[0].Field)
}

func TestUseOrgReportsMarketplaceSide(t *testing.T) {
	f := newFixture(t, organizationdomain.RoleAdmin)

	resp := f.do(t, http.MethodPost, "/auth/user/using/"+testOrgID.String(), tokenWithoutOrg, "")
	require.Equal(t, http.StatusOK, resp.Code)
	var view authdomain.SessionView
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &view))
	require.Equal(t, testOrgID.String(), view.Metadata["active_org_id"])
	require.Equal(t, "forwarder", view.Metadata["active_org_type"])
	require.Equal(t, organizationdomain.RoleAdmin, view.Metadata["active_org_role"])

	resp = f.do(t, http.MethodPost, "/auth/user/using/"+testOtherOrg.String(), tokenWithoutOrg, "")
	require.Equal(t, http.StatusForbidden, resp.Code)

	resp = f.do(t, http.MethodPost, "/auth/user/using/0", tokenWithoutOrg, "")
	require.Equal(t, http.StatusBadRequest, resp.Code)

	resp = f.do(t, http.MethodGet, "/auth/user/orgs", tokenWithOrg, "")
	require.Equal(t, http.StatusOK, resp.Code)
	require.Contains(t, resp.Body.String(), `"active_org_id":"`+testOrgID.String()+`"`)
}
