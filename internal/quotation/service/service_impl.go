package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	activitydomain "github.com/smallbiznis/freightdesk/internal/activity/domain"
	"github.com/smallbiznis/freightdesk/internal/clock"
	conndomain "github.com/smallbiznis/freightdesk/internal/connection/domain"
	inquirydomain "github.com/smallbiznis/freightdesk/internal/inquiry/domain"
	"github.com/smallbiznis/freightdesk/internal/observability/metrics"
	orgdomain "github.com/smallbiznis/freightdesk/internal/organization/domain"
	"github.com/smallbiznis/freightdesk/internal/providers/pdf"
	"github.com/smallbiznis/freightdesk/internal/quotation/domain"
	"github.com/smallbiznis/freightdesk/internal/ratelimit"
	referencedomain "github.com/smallbiznis/freightdesk/internal/reference/domain"
	subscriptiondomain "github.com/smallbiznis/freightdesk/internal/subscription/domain"
	"github.com/smallbiznis/freightdesk/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// SubmitLimiter throttles quotation submissions per forwarder org.
type SubmitLimiter interface {
	AllowQuotationSubmit(ctx context.Context, orgID string) (*ratelimit.RateLimitResult, error)
}

type Params struct {
	fx.In

	DB            *gorm.DB
	Log           *zap.Logger
	GenID         *snowflake.Node
	Clock         clock.Clock
	Repo          domain.Repository
	Inquiries     inquirydomain.Repository
	Orgs          orgdomain.Service
	Connections   conndomain.Service
	Reference     referencedomain.Service
	Subscriptions subscriptiondomain.Service
	Activity      activitydomain.Service
	PDF           pdf.Provider
	Limiter       SubmitLimiter    `optional:"true"`
	Metrics       *metrics.Metrics `optional:"true"`
}

type Service struct {
	db            *gorm.DB
	log           *zap.Logger
	genID         *snowflake.Node
	clock         clock.Clock
	repo          domain.Repository
	inquiries     inquirydomain.Repository
	orgs          orgdomain.Service
	connections   conndomain.Service
	ref           referencedomain.Service
	subscriptions subscriptiondomain.Service
	activity      activitydomain.Service
	pdf           pdf.Provider
	limiter       SubmitLimiter
	metrics       *metrics.Metrics
}

func NewService(p Params) domain.Service {
	return &Service{
		db:            p.DB,
		log:           p.Log.Named("quotation.service"),
		genID:         p.GenID,
		clock:         p.Clock,
		repo:          p.Repo,
		inquiries:     p.Inquiries,
		orgs:          p.Orgs,
		connections:   p.Connections,
		ref:           p.Reference,
		subscriptions: p.Subscriptions,
		activity:      p.Activity,
		pdf:           p.PDF,
		limiter:       p.Limiter,
		metrics:       p.Metrics,
	}
}

func (s *Service) Create(ctx context.Context, orgID, userID, inquiryID snowflake.ID, req domain.CreateRequest) (*domain.Quotation, error) {
	if _, err := s.requireOrgType(ctx, orgID, orgdomain.TypeForwarder); err != nil {
		return nil, err
	}
	now := s.clock.Now().UTC()

	currency, err := s.validateCurrency(ctx, req.Currency)
	if err != nil {
		return nil, err
	}
	charges, err := normalizeCharges(req.AdditionalCharges)
	if err != nil {
		return nil, err
	}
	if req.PreCarriage < 0 || req.MainCarriage < 0 || req.OnCarriage < 0 {
		return nil, domain.ErrInvalidAmount
	}
	if req.TransitTimeDays < 0 {
		return nil, domain.ErrInvalidTransitTime
	}
	validUntil := utcPtr(req.ValidUntil)
	if validUntil != nil && !validUntil.After(now) {
		return nil, domain.ErrInvalidValidUntil
	}

	inquiry, err := s.receivedInquiry(ctx, orgID, inquiryID)
	if err != nil {
		return nil, err
	}

	id := s.genID.Generate()
	quotation := &domain.Quotation{
		ID:                id,
		QuotationNumber:   fmt.Sprintf("QUO-%s-%s", now.Format("200601"), strings.ToUpper(id.Base36())),
		InquiryID:         inquiry.ID,
		ForwarderOrgID:    orgID,
		CreatedBy:         userID,
		Status:            domain.StatusDraft,
		Currency:          currency,
		PreCarriage:       req.PreCarriage,
		MainCarriage:      req.MainCarriage,
		OnCarriage:        req.OnCarriage,
		AdditionalCharges: charges,
		TransitTimeDays:   req.TransitTimeDays,
		ValidUntil:        validUntil,
		Notes:             strings.TrimSpace(req.Notes),
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	quotation.Recompute()

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		locked, err := s.inquiries.Lock(ctx, tx, inquiry.ID)
		if err != nil {
			return err
		}
		if err := openForQuotes(locked, now); err != nil {
			return err
		}
		existing, err := s.repo.FindBlocking(ctx, tx, inquiry.ID, orgID)
		if err != nil {
			return err
		}
		if existing != nil {
			return domain.ErrQuotationExists
		}
		return s.repo.Insert(ctx, tx, quotation)
	})
	if err != nil {
		return nil, err
	}
	return quotation, nil
}

func (s *Service) Update(ctx context.Context, orgID, quotationID snowflake.ID, req domain.UpdateRequest) (*domain.Quotation, error) {
	now := s.clock.Now().UTC()

	fields := map[string]any{}
	if req.Currency != nil {
		currency, err := s.validateCurrency(ctx, *req.Currency)
		if err != nil {
			return nil, err
		}
		fields["currency"] = currency
	}
	if req.TransitTimeDays != nil {
		if *req.TransitTimeDays < 0 {
			return nil, domain.ErrInvalidTransitTime
		}
		fields["transit_time_days"] = *req.TransitTimeDays
	}
	if req.ValidUntil != nil {
		validUntil := req.ValidUntil.UTC()
		if !validUntil.After(now) {
			return nil, domain.ErrInvalidValidUntil
		}
		fields["valid_until"] = validUntil
	}
	if req.Notes != nil {
		fields["notes"] = strings.TrimSpace(*req.Notes)
	}
	var charges datatypes.JSONSlice[domain.Charge]
	if req.AdditionalCharges != nil {
		var err error
		if charges, err = normalizeCharges(*req.AdditionalCharges); err != nil {
			return nil, err
		}
	}
	for _, amount := range []*int64{req.PreCarriage, req.MainCarriage, req.OnCarriage} {
		if amount != nil && *amount < 0 {
			return nil, domain.ErrInvalidAmount
		}
	}

	current, err := s.repo.FindByID(ctx, s.db, quotationID)
	if err != nil {
		return nil, err
	}
	if current == nil || current.ForwarderOrgID != orgID {
		return nil, domain.ErrQuotationNotFound
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// inquiry before quotation, the same order accept and submit lock in
		inquiry, err := s.inquiries.Lock(ctx, tx, current.InquiryID)
		if err != nil {
			return err
		}
		quotation, err := s.lockOwned(ctx, tx, orgID, quotationID)
		if err != nil {
			return err
		}
		if !quotation.Status.Editable() {
			return domain.ErrQuotationNotEditable
		}
		// prices are frozen once the shipper can no longer act on them
		if err := openForQuotes(inquiry, now); err != nil {
			return err
		}

		if req.PreCarriage != nil {
			quotation.PreCarriage = *req.PreCarriage
		}
		if req.MainCarriage != nil {
			quotation.MainCarriage = *req.MainCarriage
		}
		if req.OnCarriage != nil {
			quotation.OnCarriage = *req.OnCarriage
		}
		if req.AdditionalCharges != nil {
			quotation.AdditionalCharges = charges
		}
		quotation.Recompute()

		fields["pre_carriage"] = quotation.PreCarriage
		fields["main_carriage"] = quotation.MainCarriage
		fields["on_carriage"] = quotation.OnCarriage
		fields["additional_charges"] = quotation.AdditionalCharges
		fields["total_price"] = quotation.TotalPrice
		fields["updated_at"] = now
		return s.repo.Update(ctx, tx, quotationID, fields)
	})
	if err != nil {
		return nil, err
	}
	return s.repo.FindByID(ctx, s.db, quotationID)
}

func (s *Service) Get(ctx context.Context, orgID, quotationID snowflake.ID) (*domain.Quotation, error) {
	quotation, err := s.repo.FindByID(ctx, s.db, quotationID)
	if err != nil {
		return nil, err
	}
	if quotation == nil {
		return nil, domain.ErrQuotationNotFound
	}
	if quotation.ForwarderOrgID == orgID {
		return quotation, nil
	}
	if quotation.Status == domain.StatusDraft {
		return nil, domain.ErrQuotationNotFound
	}
	inquiry, err := s.inquiries.FindByID(ctx, s.db, quotation.InquiryID)
	if err != nil {
		return nil, err
	}
	if inquiry == nil || inquiry.ShipperOrgID != orgID {
		return nil, domain.ErrQuotationNotFound
	}
	return quotation, nil
}

// shipperStatuses are the statuses a shipper can see on its inquiries.
var shipperStatuses = []domain.Status{
	domain.StatusSubmitted,
	domain.StatusAccepted,
	domain.StatusRejected,
	domain.StatusWithdrawn,
	domain.StatusExpired,
}

func (s *Service) ListForInquiry(ctx context.Context, orgID, inquiryID snowflake.ID) ([]domain.Quotation, error) {
	org, err := s.loadOrg(ctx, orgID)
	if err != nil {
		return nil, err
	}
	if org.Type == orgdomain.TypeForwarder {
		if _, err := s.receivedInquiry(ctx, orgID, inquiryID); err != nil {
			return nil, err
		}
		forwarder := orgID
		return s.repo.ListByInquiry(ctx, s.db, inquiryID, nil, &forwarder)
	}

	inquiry, err := s.inquiries.FindByID(ctx, s.db, inquiryID)
	if err != nil {
		return nil, err
	}
	if inquiry == nil || inquiry.ShipperOrgID != orgID {
		return nil, inquirydomain.ErrInquiryNotFound
	}
	items, err := s.repo.ListByInquiry(ctx, s.db, inquiryID, shipperStatuses, nil)
	if err != nil {
		return nil, err
	}
	// Withdrawn drafts were never offered.
	visible := items[:0]
	for _, q := range items {
		if q.Status == domain.StatusWithdrawn && q.SubmittedAt == nil {
			continue
		}
		visible = append(visible, q)
	}
	return visible, nil
}

func (s *Service) List(ctx context.Context, orgID snowflake.ID, req domain.ListRequest) (domain.ListResponse, error) {
	if _, err := s.requireOrgType(ctx, orgID, orgdomain.TypeForwarder); err != nil {
		return domain.ListResponse{}, err
	}

	filter := domain.ListFilter{ForwarderOrgID: orgID, Limit: req.Limit()}
	if status := strings.ToLower(strings.TrimSpace(req.Status)); status != "" {
		if !domain.Status(status).Valid() {
			return domain.ListResponse{}, domain.ErrInvalidStatus
		}
		filter.Status = domain.Status(status)
	}
	if token := strings.TrimSpace(req.PageToken); token != "" {
		decoded, err := pagination.DecodeCursor(token)
		if err != nil {
			return domain.ListResponse{}, domain.ErrInvalidPageToken
		}
		createdAt, err := decoded.CreatedAtTime()
		if err != nil {
			return domain.ListResponse{}, domain.ErrInvalidPageToken
		}
		id, err := snowflake.ParseString(strings.TrimSpace(decoded.ID))
		if err != nil || id == 0 {
			return domain.ListResponse{}, domain.ErrInvalidPageToken
		}
		filter.Cursor = &domain.Cursor{ID: id, CreatedAt: createdAt}
	}

	items, err := s.repo.ListByForwarder(ctx, s.db, filter)
	if err != nil {
		return domain.ListResponse{}, err
	}
	pageInfo := pagination.BuildCursorPageInfo(items, filter.Limit, func(q *domain.Quotation) string {
		token, err := pagination.EncodeCursor(pagination.Cursor{
			ID:        q.ID.String(),
			CreatedAt: q.CreatedAt.UTC().Format(time.RFC3339Nano),
		})
		if err != nil {
			return ""
		}
		return token
	})
	if len(items) > filter.Limit {
		items = items[:filter.Limit]
	}

	resp := domain.ListResponse{PageInfo: *pageInfo, Quotations: make([]domain.Quotation, 0, len(items))}
	for _, q := range items {
		resp.Quotations = append(resp.Quotations, *q)
	}
	return resp, nil
}

func (s *Service) Submit(ctx context.Context, orgID, quotationID snowflake.ID) (*domain.Quotation, error) {
	current, err := s.repo.FindByID(ctx, s.db, quotationID)
	if err != nil {
		return nil, err
	}
	if current == nil || current.ForwarderOrgID != orgID {
		return nil, domain.ErrQuotationNotFound
	}
	inquiry, err := s.receivedInquiry(ctx, orgID, current.InquiryID)
	if err != nil {
		return nil, err
	}
	now := s.clock.Now().UTC()
	// a submit that is bound to fail must not spend a rate limit token
	if err := submittable(current, inquiry, now); err != nil {
		return nil, err
	}
	if err := s.subscriptions.CheckQuotationLimit(ctx, nil, orgID); err != nil {
		return nil, err
	}
	if err := s.allowSubmit(ctx, orgID); err != nil {
		return nil, err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		inquiry, err = s.inquiries.Lock(ctx, tx, current.InquiryID)
		if err != nil {
			return err
		}
		quotation, err := s.lockOwned(ctx, tx, orgID, quotationID)
		if err != nil {
			return err
		}
		if err := submittable(quotation, inquiry, now); err != nil {
			return err
		}
		if err := s.subscriptions.CheckQuotationLimit(ctx, tx, orgID); err != nil {
			return err
		}

		err = s.repo.Update(ctx, tx, quotationID, map[string]any{
			"status":       domain.StatusSubmitted,
			"submitted_at": now,
			"updated_at":   now,
		})
		if err != nil {
			return err
		}

		recipient, err := s.inquiries.FindRecipient(ctx, tx, inquiry.ID, orgID)
		if err != nil {
			return err
		}
		if recipient != nil {
			err := s.inquiries.UpdateRecipient(ctx, tx, recipient.ID, map[string]any{
				"response_status": inquirydomain.ResponseQuoted,
				"responded_at":    now,
			})
			if err != nil {
				return err
			}
		}

		return s.recordBoth(ctx, tx, activitydomain.TypeQuotationSubmitted, quotation, inquiry.ShipperOrgID, map[string]any{
			"inquiry_id":  inquiry.ID.String(),
			"total_price": quotation.TotalPrice,
			"currency":    quotation.Currency,
		})
	})
	if err != nil {
		return nil, err
	}

	tier := "unknown"
	if sub, err := s.subscriptions.GetForOrg(ctx, orgID); err == nil {
		tier = sub.Tier
	}
	s.metrics.RecordQuotationSubmitted(ctx, tier)
	return s.repo.FindByID(ctx, s.db, quotationID)
}

func (s *Service) Withdraw(ctx context.Context, orgID, quotationID snowflake.ID) (*domain.Quotation, error) {
	now := s.clock.Now().UTC()
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		quotation, err := s.lockOwned(ctx, tx, orgID, quotationID)
		if err != nil {
			return err
		}
		if !quotation.Status.Editable() {
			return domain.ErrInvalidTransition
		}
		err = s.repo.Update(ctx, tx, quotationID, map[string]any{
			"status":       domain.StatusWithdrawn,
			"withdrawn_at": now,
			"updated_at":   now,
		})
		if err != nil {
			return err
		}
		if quotation.Status == domain.StatusDraft {
			return nil
		}

		inquiry, err := s.inquiries.FindByID(ctx, tx, quotation.InquiryID)
		if err != nil {
			return err
		}
		if inquiry == nil {
			return inquirydomain.ErrInquiryNotFound
		}
		return s.recordBoth(ctx, tx, activitydomain.TypeQuotationWithdrawn, quotation, inquiry.ShipperOrgID, map[string]any{
			"inquiry_id": inquiry.ID.String(),
		})
	})
	if err != nil {
		return nil, err
	}
	return s.repo.FindByID(ctx, s.db, quotationID)
}

func (s *Service) Accept(ctx context.Context, orgID, quotationID snowflake.ID) (*domain.Quotation, error) {
	if _, err := s.requireOrgType(ctx, orgID, orgdomain.TypeShipper); err != nil {
		return nil, err
	}

	now := s.clock.Now().UTC()
	var siblings []domain.Quotation
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		quotation, inquiry, err := s.lockForDecision(ctx, tx, orgID, quotationID, now)
		if err != nil {
			return err
		}

		err = s.repo.Update(ctx, tx, quotationID, map[string]any{
			"status":     domain.StatusAccepted,
			"decided_at": now,
			"updated_at": now,
		})
		if err != nil {
			return err
		}
		siblings, err = s.repo.RejectSubmittedSiblings(ctx, tx, inquiry.ID, quotationID, now)
		if err != nil {
			return err
		}
		err = s.inquiries.Update(ctx, tx, inquiry.ID, map[string]any{
			"status":     inquirydomain.StatusAwarded,
			"closed_at":  now,
			"updated_at": now,
		})
		if err != nil {
			return err
		}

		payload := map[string]any{
			"inquiry_id":  inquiry.ID.String(),
			"total_price": quotation.TotalPrice,
			"currency":    quotation.Currency,
		}
		if err := s.recordBoth(ctx, tx, activitydomain.TypeQuotationAccepted, quotation, orgID, payload); err != nil {
			return err
		}
		for i := range siblings {
			err := s.recordBoth(ctx, tx, activitydomain.TypeQuotationRejected, &siblings[i], orgID, map[string]any{
				"inquiry_id": inquiry.ID.String(),
				"reason":     "another quotation was accepted",
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.RecordQuotationDecision(ctx, string(domain.StatusAccepted))
	for range siblings {
		s.metrics.RecordQuotationDecision(ctx, string(domain.StatusRejected))
	}
	s.log.Info("quotation accepted",
		zap.String("quotation_id", quotationID.String()),
		zap.Int("siblings_rejected", len(siblings)),
	)
	return s.repo.FindByID(ctx, s.db, quotationID)
}

func (s *Service) Reject(ctx context.Context, orgID, quotationID snowflake.ID, req domain.RejectRequest) (*domain.Quotation, error) {
	if _, err := s.requireOrgType(ctx, orgID, orgdomain.TypeShipper); err != nil {
		return nil, err
	}

	now := s.clock.Now().UTC()
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		quotation, inquiry, err := s.lockForDecision(ctx, tx, orgID, quotationID, now)
		if err != nil {
			return err
		}

		reason := strings.TrimSpace(req.Reason)
		err = s.repo.Update(ctx, tx, quotationID, map[string]any{
			"status":        domain.StatusRejected,
			"reject_reason": reason,
			"decided_at":    now,
			"updated_at":    now,
		})
		if err != nil {
			return err
		}
		err = s.recordBoth(ctx, tx, activitydomain.TypeQuotationRejected, quotation, orgID, map[string]any{
			"inquiry_id": inquiry.ID.String(),
			"reason":     reason,
		})
		if err != nil {
			return err
		}

		remaining, err := s.repo.CountNotRejected(ctx, tx, inquiry.ID)
		if err != nil {
			return err
		}
		if remaining > 0 {
			return nil
		}
		err = s.inquiries.Update(ctx, tx, inquiry.ID, map[string]any{
			"status":     inquirydomain.StatusClosed,
			"closed_at":  now,
			"updated_at": now,
		})
		if err != nil {
			return err
		}
		return s.activity.Record(ctx, tx, activitydomain.RecordRequest{
			OrgID:    orgID,
			Type:     activitydomain.TypeInquiryClosed,
			TargetID: inquiry.ID.String(),
			Payload: map[string]any{
				"from":   string(inquiry.Status),
				"reason": "all quotations rejected",
			},
		})
	})
	if err != nil {
		return nil, err
	}

	s.metrics.RecordQuotationDecision(ctx, string(domain.StatusRejected))
	return s.repo.FindByID(ctx, s.db, quotationID)
}

// lockForDecision locks the inquiry before the quotation and checks that the
// shipper may still decide on the offer.
func (s *Service) lockForDecision(ctx context.Context, tx *gorm.DB, orgID, quotationID snowflake.ID, now time.Time) (*domain.Quotation, *inquirydomain.Inquiry, error) {
	current, err := s.repo.FindByID(ctx, tx, quotationID)
	if err != nil {
		return nil, nil, err
	}
	if current == nil || current.Status == domain.StatusDraft {
		return nil, nil, domain.ErrQuotationNotFound
	}
	inquiry, err := s.inquiries.Lock(ctx, tx, current.InquiryID)
	if err != nil {
		return nil, nil, err
	}
	if inquiry == nil || inquiry.ShipperOrgID != orgID {
		return nil, nil, domain.ErrQuotationNotFound
	}
	quotation, err := s.repo.Lock(ctx, tx, quotationID)
	if err != nil {
		return nil, nil, err
	}
	if quotation == nil {
		return nil, nil, domain.ErrQuotationNotFound
	}
	if quotation.Status != domain.StatusSubmitted {
		return nil, nil, domain.ErrInvalidTransition
	}
	if inquiry.Status != inquirydomain.StatusOpen {
		return nil, nil, domain.ErrInquiryNotOpen
	}
	if quotation.ValidUntil != nil && !quotation.ValidUntil.After(now) {
		return nil, nil, domain.ErrQuotationExpired
	}
	return quotation, inquiry, nil
}

// receivedInquiry returns the inquiry when the forwarder received it and is
// still connected to the shipper.
func (s *Service) receivedInquiry(ctx context.Context, forwarderID, inquiryID snowflake.ID) (*inquirydomain.Inquiry, error) {
	inquiry, err := s.inquiries.FindByID(ctx, s.db, inquiryID)
	if err != nil {
		return nil, err
	}
	if inquiry == nil || inquiry.Status == inquirydomain.StatusDraft {
		return nil, inquirydomain.ErrInquiryNotFound
	}
	recipient, err := s.inquiries.FindRecipient(ctx, s.db, inquiryID, forwarderID)
	if err != nil {
		return nil, err
	}
	if recipient == nil {
		return nil, inquirydomain.ErrInquiryNotFound
	}
	connected, err := s.connections.IsConnected(ctx, inquiry.ShipperOrgID, forwarderID)
	if err != nil {
		return nil, err
	}
	if !connected {
		return nil, inquirydomain.ErrInquiryNotFound
	}
	return inquiry, nil
}

func (s *Service) allowSubmit(ctx context.Context, orgID snowflake.ID) error {
	if s.limiter == nil {
		return nil
	}
	result, err := s.limiter.AllowQuotationSubmit(ctx, orgID.String())
	if err != nil {
		// Redis trouble should not block quoting.
		s.log.Warn("quotation rate limit check failed", zap.String("org_id", orgID.String()), zap.Error(err))
		return nil
	}
	if result != nil && !result.Allowed {
		return domain.ErrRateLimited
	}
	return nil
}

func (s *Service) recordBoth(ctx context.Context, tx *gorm.DB, eventType string, q *domain.Quotation, shipperID snowflake.ID, payload map[string]any) error {
	payload["quotation_number"] = q.QuotationNumber
	payload["forwarder_org_id"] = q.ForwarderOrgID.String()
	for _, target := range []snowflake.ID{q.ForwarderOrgID, shipperID} {
		err := s.activity.Record(ctx, tx, activitydomain.RecordRequest{
			OrgID:    target,
			Type:     eventType,
			TargetID: q.ID.String(),
			Payload:  payload,
		})
		if err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) lockOwned(ctx context.Context, tx *gorm.DB, orgID, quotationID snowflake.ID) (*domain.Quotation, error) {
	quotation, err := s.repo.Lock(ctx, tx, quotationID)
	if err != nil {
		return nil, err
	}
	if quotation == nil || quotation.ForwarderOrgID != orgID {
		return nil, domain.ErrQuotationNotFound
	}
	return quotation, nil
}

func (s *Service) loadOrg(ctx context.Context, orgID snowflake.ID) (*orgdomain.Organization, error) {
	if orgID == 0 {
		return nil, domain.ErrInvalidOrganization
	}
	org, err := s.orgs.Get(ctx, orgID)
	if err != nil {
		if errors.Is(err, orgdomain.ErrOrganizationNotFound) {
			return nil, domain.ErrInvalidOrganization
		}
		return nil, err
	}
	return org, nil
}

func (s *Service) requireOrgType(ctx context.Context, orgID snowflake.ID, want orgdomain.OrganizationType) (*orgdomain.Organization, error) {
	org, err := s.loadOrg(ctx, orgID)
	if err != nil {
		return nil, err
	}
	if org.Type != want {
		if want == orgdomain.TypeShipper {
			return nil, domain.ErrShipperOnly
		}
		return nil, domain.ErrForwarderOnly
	}
	return org, nil
}

func (s *Service) validateCurrency(ctx context.Context, raw string) (string, error) {
	code := strings.ToUpper(strings.TrimSpace(raw))
	if len(code) != 3 {
		return "", domain.ErrInvalidCurrency
	}
	ok, err := s.ref.HasCurrency(ctx, code)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", domain.ErrInvalidCurrency
	}
	return code, nil
}

// submittable holds for a draft with a future validity on an open inquiry.
// Submit checks it once before touching the rate limiter and again under lock.
func submittable(q *domain.Quotation, inquiry *inquirydomain.Inquiry, now time.Time) error {
	switch q.Status {
	case domain.StatusDraft:
	case domain.StatusRejected:
		return domain.ErrQuotationNotEditable
	default:
		return domain.ErrInvalidTransition
	}
	if err := openForQuotes(inquiry, now); err != nil {
		return err
	}
	if q.ValidUntil == nil || !q.ValidUntil.After(now) {
		return domain.ErrInvalidValidUntil
	}
	return nil
}

func openForQuotes(inquiry *inquirydomain.Inquiry, now time.Time) error {
	if inquiry == nil {
		return inquirydomain.ErrInquiryNotFound
	}
	if inquiry.Status != inquirydomain.StatusOpen {
		return domain.ErrInquiryNotOpen
	}
	if inquiry.Expired(now) {
		return domain.ErrInquiryExpired
	}
	return nil
}

func normalizeCharges(in []domain.Charge) (datatypes.JSONSlice[domain.Charge], error) {
	out := make(datatypes.JSONSlice[domain.Charge], 0, len(in))
	for _, c := range in {
		name := strings.TrimSpace(c.Name)
		if name == "" {
			return nil, domain.ErrInvalidCharge
		}
		if c.Amount < 0 {
			return nil, domain.ErrInvalidAmount
		}
		out = append(out, domain.Charge{Name: name, Amount: c.Amount})
	}
	return out, nil
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := t.UTC()
	return &v
}
