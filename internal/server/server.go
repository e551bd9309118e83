package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	activitydomain "github.com/smallbiznis/freightdesk/internal/activity/domain"
	authdomain "github.com/smallbiznis/freightdesk/internal/auth/domain"
	"github.com/smallbiznis/freightdesk/internal/auth/session"
	"github.com/smallbiznis/freightdesk/internal/authorization"
	"github.com/smallbiznis/freightdesk/internal/config"
	connectiondomain "github.com/smallbiznis/freightdesk/internal/connection/domain"
	dashboarddomain "github.com/smallbiznis/freightdesk/internal/dashboard/domain"
	"github.com/smallbiznis/freightdesk/internal/expiry"
	inquirydomain "github.com/smallbiznis/freightdesk/internal/inquiry/domain"
	"github.com/smallbiznis/freightdesk/internal/observability"
	obslogger "github.com/smallbiznis/freightdesk/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/freightdesk/internal/observability/metrics"
	obstracing "github.com/smallbiznis/freightdesk/internal/observability/tracing"
	organizationdomain "github.com/smallbiznis/freightdesk/internal/organization/domain"
	"github.com/smallbiznis/freightdesk/internal/providers/storage"
	quotationdomain "github.com/smallbiznis/freightdesk/internal/quotation/domain"
	"github.com/smallbiznis/freightdesk/internal/ratelimit"
	referencedomain "github.com/smallbiznis/freightdesk/internal/reference/domain"
	subscriptiondomain "github.com/smallbiznis/freightdesk/internal/subscription/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Module serves the HTTP API. Domain modules are supplied by the caller.
var Module = fx.Module("http.server",
	fx.Provide(NewEngine),
	fx.Provide(NewServer),
	fx.Invoke(RunHTTP),
)

func NewEngine(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	if !obsCfg.Debug() {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obslogger.GinMiddleware(obslogger.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	if httpMetrics != nil {
		r.Use(httpMetrics.GinMiddleware())
	}
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func RunHTTP(lc fx.Lifecycle, cfg config.Config, s *Server, log *zap.Logger) {
	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           s.Engine(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Info("http server listening", zap.String("addr", srv.Addr))
			go func() {
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Fatal("http server stopped", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

// ExpirySweeper is the lazy expiry pass run ahead of status-bearing reads.
type ExpirySweeper interface {
	CheckAndUpdateExpiredItems(ctx context.Context) expiry.Result
}

type Server struct {
	engine   *gin.Engine
	cfg      config.Config
	sessions *session.Manager

	authsvc         authdomain.Service
	authzSvc        authorization.Service
	organizationSvc organizationdomain.Service
	subscriptionSvc subscriptiondomain.Service
	connectionSvc   connectiondomain.Service
	inquirySvc      inquirydomain.Service
	quotationSvc    quotationdomain.Service
	activitySvc     activitydomain.Service
	dashboardSvc    dashboarddomain.Service
	referenceSvc    referencedomain.Service
	storage         storage.Provider

	sweeper       ExpirySweeper
	inviteLimiter InviteLimiter
}

type ServerParams struct {
	fx.In

	Gin             *gin.Engine
	Cfg             config.Config
	Sessions        *session.Manager
	Authsvc         authdomain.Service
	AuthzSvc        authorization.Service
	OrganizationSvc organizationdomain.Service
	SubscriptionSvc subscriptiondomain.Service
	ConnectionSvc   connectiondomain.Service
	InquirySvc      inquirydomain.Service
	QuotationSvc    quotationdomain.Service
	ActivitySvc     activitydomain.Service
	DashboardSvc    dashboarddomain.Service
	ReferenceSvc    referencedomain.Service
	Storage         storage.Provider              `optional:"true"`
	Sweeper         *expiry.Sweeper               `optional:"true"`
	InviteLimiter   *ratelimit.MarketplaceLimiter `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:          p.Gin,
		cfg:             p.Cfg,
		sessions:        p.Sessions,
		authsvc:         p.Authsvc,
		authzSvc:        p.AuthzSvc,
		organizationSvc: p.OrganizationSvc,
		subscriptionSvc: p.SubscriptionSvc,
		connectionSvc:   p.ConnectionSvc,
		inquirySvc:      p.InquirySvc,
		quotationSvc:    p.QuotationSvc,
		activitySvc:     p.ActivitySvc,
		dashboardSvc:    p.DashboardSvc,
		referenceSvc:    p.ReferenceSvc,
		storage:         p.Storage,
	}
	// typed nils must not leak into the interfaces
	if p.Sweeper != nil {
		svc.sweeper = p.Sweeper
	}
	if p.InviteLimiter != nil {
		svc.inviteLimiter = p.InviteLimiter
	}

	svc.registerAuthRoutes()
	svc.registerAPIRoutes()
	svc.registerUploadRoutes()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAuthRoutes() {
	auth := s.engine.Group("/auth")

	auth.POST("/register", s.Register)
	auth.POST("/login", s.Login)
	auth.POST("/logout", s.Logout)
	auth.GET("/me", s.WebAuthRequired(), s.Me)
	auth.POST("/change-password", s.WebAuthRequired(), s.ChangePassword)
	auth.POST("/invites/accept", s.WebAuthRequired(), s.AcceptInvite)

	user := auth.Group("/user", s.WebAuthRequired())
	{
		user.GET("/orgs", s.ListUserOrgs)
		user.POST("/using/:orgId", s.UseOrg)
	}
}

func (s *Server) registerAPIRoutes() {
	api := s.engine.Group("/api", s.WebAuthRequired())

	// creating the first organization and reading reference data need no active org
	api.POST("/organizations", s.CreateOrganization)
	reference := api.Group("/reference")
	{
		reference.GET("/countries", s.ListCountries)
		reference.GET("/countries/:code/timezones", s.ListTimezones)
		reference.GET("/currencies", s.ListCurrencies)
	}

	scoped := api.Group("", s.OrgContext())

	org := scoped.Group("/organization")
	{
		org.GET("", s.authorizeOrgAction(authorization.ObjectOrganization, authorization.ActionOrganizationView), s.GetOrganization)
		org.PATCH("", s.authorizeOrgAction(authorization.ObjectOrganization, authorization.ActionOrganizationUpdate), s.UpdateOrganization)
		org.POST("/logo", s.authorizeOrgAction(authorization.ObjectOrganization, authorization.ActionOrganizationUpdate), s.UploadOrganizationLogo)

		org.GET("/members", s.authorizeOrgAction(authorization.ObjectMember, authorization.ActionMemberView), s.ListMembers)
		org.PATCH("/members/:userId", s.authorizeOrgAction(authorization.ObjectMember, authorization.ActionMemberManage), s.ChangeMemberRole)
		org.DELETE("/members/:userId", s.authorizeOrgAction(authorization.ObjectMember, authorization.ActionMemberManage), s.RemoveMember)

		org.POST("/invites", s.authorizeOrgAction(authorization.ObjectMember, authorization.ActionMemberInvite), s.InviteRateLimit(), s.InviteMember)
		org.GET("/invites", s.authorizeOrgAction(authorization.ObjectMember, authorization.ActionMemberInvite), s.ListInvites)
		org.DELETE("/invites/:id", s.authorizeOrgAction(authorization.ObjectMember, authorization.ActionMemberInvite), s.RevokeInvite)
	}

	sub := scoped.Group("/subscription")
	{
		sub.GET("", s.authorizeOrgAction(authorization.ObjectSubscription, authorization.ActionSubscriptionView), s.GetSubscription)
		sub.POST("/tier", s.RequireRole(organizationdomain.RoleOwner), s.authorizeOrgAction(authorization.ObjectSubscription, authorization.ActionSubscriptionChange), s.ChangeTier)
	}

	conns := scoped.Group("/connections")
	{
		conns.GET("", s.authorizeOrgAction(authorization.ObjectConnection, authorization.ActionConnectionView), s.ListConnections)
		conns.POST("", s.authorizeOrgAction(authorization.ObjectConnection, authorization.ActionConnectionManage), s.InviteRateLimit(), s.InviteConnection)
		conns.POST("/:id/accept", s.authorizeOrgAction(authorization.ObjectConnection, authorization.ActionConnectionManage), s.AcceptConnection)
		conns.DELETE("/:id", s.authorizeOrgAction(authorization.ObjectConnection, authorization.ActionConnectionManage), s.RemoveConnection)
	}

	inquiryView := s.authorizeOrgAction(authorization.ObjectInquiry, authorization.ActionInquiryView)
	inquiryWrite := s.authorizeOrgAction(authorization.ObjectInquiry, authorization.ActionInquiryWrite)
	inquiryDecide := s.authorizeOrgAction(authorization.ObjectInquiry, authorization.ActionInquiryDecide)
	quotationView := s.authorizeOrgAction(authorization.ObjectQuotation, authorization.ActionQuotationView)
	quotationWrite := s.authorizeOrgAction(authorization.ObjectQuotation, authorization.ActionQuotationWrite)
	quotationDecide := s.authorizeOrgAction(authorization.ObjectQuotation, authorization.ActionQuotationDecide)

	inquiries := scoped.Group("/inquiries")
	{
		inquiries.POST("", inquiryWrite, s.CreateInquiry)
		inquiries.GET("", inquiryView, s.ListInquiries)
		inquiries.GET("/:id", inquiryView, s.GetInquiry)
		inquiries.PATCH("/:id", inquiryWrite, s.UpdateInquiry)
		inquiries.POST("/:id/send", inquiryWrite, s.SendInquiry)
		inquiries.POST("/:id/cancel", inquiryDecide, s.CancelInquiry)
		inquiries.POST("/:id/close", inquiryDecide, s.CloseInquiry)
		inquiries.POST("/:id/reject", inquiryWrite, s.RejectInquiry)
		inquiries.POST("/:id/documents", inquiryWrite, s.UploadInquiryDocument)
		inquiries.GET("/:id/documents", inquiryView, s.ListInquiryDocuments)

		inquiries.POST("/:id/quotations", quotationWrite, s.CreateQuotation)
		inquiries.GET("/:id/quotations", quotationView, s.ListInquiryQuotations)
	}

	quotations := scoped.Group("/quotations")
	{
		quotations.GET("", quotationView, s.ListQuotations)
		quotations.GET("/:id", quotationView, s.GetQuotation)
		quotations.PATCH("/:id", quotationWrite, s.UpdateQuotation)
		quotations.POST("/:id/submit", quotationWrite, s.SubmitQuotation)
		quotations.POST("/:id/withdraw", quotationWrite, s.WithdrawQuotation)
		quotations.POST("/:id/accept", quotationDecide, s.AcceptQuotation)
		quotations.POST("/:id/reject", quotationDecide, s.RejectQuotation)
		quotations.GET("/:id/pdf", quotationView, s.ExportQuotationPDF)
	}

	scoped.GET("/activity", s.authorizeOrgAction(authorization.ObjectActivity, authorization.ActionActivityView), s.ListActivity)
	scoped.GET("/dashboard", s.authorizeOrgAction(authorization.ObjectDashboard, authorization.ActionDashboardView), s.GetDashboard)
}

func (s *Server) registerUploadRoutes() {
	uploads := s.engine.Group("/uploads")

	uploads.GET("/orgs/*path", s.ServePublicUpload)
	uploads.GET("/inquiries/:id/:file",
		s.WebAuthRequired(),
		s.OrgContext(),
		s.authorizeOrgAction(authorization.ObjectInquiry, authorization.ActionInquiryView),
		s.ServeInquiryDocument,
	)
}
