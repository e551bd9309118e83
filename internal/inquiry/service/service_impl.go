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
	"github.com/smallbiznis/freightdesk/internal/config"
	conndomain "github.com/smallbiznis/freightdesk/internal/connection/domain"
	"github.com/smallbiznis/freightdesk/internal/inquiry/domain"
	"github.com/smallbiznis/freightdesk/internal/observability/metrics"
	orgdomain "github.com/smallbiznis/freightdesk/internal/organization/domain"
	"github.com/smallbiznis/freightdesk/internal/providers/storage"
	referencedomain "github.com/smallbiznis/freightdesk/internal/reference/domain"
	"github.com/smallbiznis/freightdesk/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB          *gorm.DB
	Log         *zap.Logger
	GenID       *snowflake.Node
	Clock       clock.Clock
	Cfg         config.Config
	Repo        domain.Repository
	Orgs        orgdomain.Service
	Connections conndomain.Service
	Reference   referencedomain.Service
	Activity    activitydomain.Service
	Storage     storage.Provider
	Metrics     *metrics.Metrics `optional:"true"`
}

type Service struct {
	db          *gorm.DB
	log         *zap.Logger
	genID       *snowflake.Node
	clock       clock.Clock
	repo        domain.Repository
	orgs        orgdomain.Service
	connections conndomain.Service
	ref         referencedomain.Service
	activity    activitydomain.Service
	storage     storage.Provider
	metrics     *metrics.Metrics

	maxUploadSize int64
}

func NewService(p Params) domain.Service {
	return &Service{
		db:            p.DB,
		log:           p.Log.Named("inquiry.service"),
		genID:         p.GenID,
		clock:         p.Clock,
		repo:          p.Repo,
		orgs:          p.Orgs,
		connections:   p.Connections,
		ref:           p.Reference,
		activity:      p.Activity,
		storage:       p.Storage,
		metrics:       p.Metrics,
		maxUploadSize: p.Cfg.Storage.MaxUploadSize,
	}
}

func (s *Service) Create(ctx context.Context, orgID, userID snowflake.ID, req domain.CreateRequest) (*domain.Inquiry, error) {
	if _, err := s.requireOrgType(ctx, orgID, orgdomain.TypeShipper); err != nil {
		return nil, err
	}

	now := s.clock.Now().UTC()
	id := s.genID.Generate()
	inquiry := &domain.Inquiry{
		ID:               id,
		ReferenceNumber:  referenceNumber(now, id),
		ShipperOrgID:     orgID,
		CreatedBy:        userID,
		Status:           domain.StatusDraft,
		ServiceType:      domain.ServiceType(strings.ToLower(strings.TrimSpace(req.ServiceType))),
		OriginCity:       strings.TrimSpace(req.OriginCity),
		OriginPort:       strings.TrimSpace(req.OriginPort),
		DestinationCity:  strings.TrimSpace(req.DestinationCity),
		DestinationPort:  strings.TrimSpace(req.DestinationPort),
		Incoterm:         strings.ToUpper(strings.TrimSpace(req.Incoterm)),
		CargoDescription: strings.TrimSpace(req.CargoDescription),
		Commodity:        strings.TrimSpace(req.Commodity),
		DangerousGoods:   req.DangerousGoods,
		Notes:            strings.TrimSpace(req.Notes),
		ReadyDate:        utcPtr(req.ReadyDate),
		ValidityDate:     utcPtr(req.ValidityDate),
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if !inquiry.ServiceType.Valid() {
		return nil, domain.ErrInvalidServiceType
	}

	var err error
	if inquiry.OriginCountry, err = s.validateCountry(ctx, req.OriginCountry); err != nil {
		return nil, err
	}
	if inquiry.DestinationCountry, err = s.validateCountry(ctx, req.DestinationCountry); err != nil {
		return nil, err
	}
	if inquiry.ValidityDate != nil && !inquiry.ValidityDate.After(now) {
		return nil, domain.ErrInvalidValidityDate
	}

	packages, err := s.buildPackages(id, req.Packages, now)
	if err != nil {
		return nil, err
	}
	inquiry.Packages = packages
	applyTotals(inquiry, req.DangerousGoods)

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.repo.Insert(ctx, tx, inquiry); err != nil {
			return err
		}
		return s.activity.Record(ctx, tx, activitydomain.RecordRequest{
			OrgID:    orgID,
			Type:     activitydomain.TypeInquiryCreated,
			TargetID: id.String(),
			Payload: map[string]any{
				"reference_number": inquiry.ReferenceNumber,
				"service_type":     string(inquiry.ServiceType),
			},
		})
	})
	if err != nil {
		return nil, err
	}
	return inquiry, nil
}

func (s *Service) Update(ctx context.Context, orgID, inquiryID snowflake.ID, req domain.UpdateRequest) (*domain.Inquiry, error) {
	now := s.clock.Now().UTC()

	fields := map[string]any{}
	if req.ServiceType != nil {
		st := domain.ServiceType(strings.ToLower(strings.TrimSpace(*req.ServiceType)))
		if !st.Valid() {
			return nil, domain.ErrInvalidServiceType
		}
		fields["service_type"] = st
	}
	if req.OriginCountry != nil {
		code, err := s.validateCountry(ctx, *req.OriginCountry)
		if err != nil {
			return nil, err
		}
		fields["origin_country"] = code
	}
	if req.DestinationCountry != nil {
		code, err := s.validateCountry(ctx, *req.DestinationCountry)
		if err != nil {
			return nil, err
		}
		fields["destination_country"] = code
	}
	if req.ValidityDate != nil {
		validity := req.ValidityDate.UTC()
		if !validity.After(now) {
			return nil, domain.ErrInvalidValidityDate
		}
		fields["validity_date"] = validity
	}
	if req.ReadyDate != nil {
		fields["ready_date"] = req.ReadyDate.UTC()
	}
	if req.Incoterm != nil {
		fields["incoterm"] = strings.ToUpper(strings.TrimSpace(*req.Incoterm))
	}
	texts := map[string]*string{
		"origin_city":       req.OriginCity,
		"origin_port":       req.OriginPort,
		"destination_city":  req.DestinationCity,
		"destination_port":  req.DestinationPort,
		"cargo_description": req.CargoDescription,
		"commodity":         req.Commodity,
		"notes":             req.Notes,
	}
	for column, value := range texts {
		if value != nil {
			fields[column] = strings.TrimSpace(*value)
		}
	}

	var packages []domain.Package
	if req.Packages != nil {
		var err error
		if packages, err = s.buildPackages(inquiryID, *req.Packages, now); err != nil {
			return nil, err
		}
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		inquiry, err := s.lockOwned(ctx, tx, orgID, inquiryID)
		if err != nil {
			return err
		}
		if inquiry.Status != domain.StatusDraft {
			return domain.ErrInquiryNotEditable
		}

		dangerous := inquiry.DangerousGoods
		if req.DangerousGoods != nil {
			dangerous = *req.DangerousGoods
		}
		if req.Packages != nil {
			if err := s.repo.ReplacePackages(ctx, tx, inquiryID, packages); err != nil {
				return err
			}
			inquiry.Packages = packages
		} else {
			current, err := s.repo.FindByID(ctx, tx, inquiryID)
			if err != nil {
				return err
			}
			inquiry.Packages = current.Packages
		}
		applyTotals(inquiry, dangerous)
		fields["total_weight_kg"] = inquiry.TotalWeightKg
		fields["total_volume_m3"] = inquiry.TotalVolumeM3
		fields["dangerous_goods"] = inquiry.DangerousGoods
		fields["updated_at"] = now

		return s.repo.Update(ctx, tx, inquiryID, fields)
	})
	if err != nil {
		return nil, err
	}
	return s.repo.FindByID(ctx, s.db, inquiryID)
}

func (s *Service) Get(ctx context.Context, orgID, inquiryID snowflake.ID) (*domain.Detail, error) {
	org, err := s.loadOrg(ctx, orgID)
	if err != nil {
		return nil, err
	}
	inquiry, err := s.repo.FindByID(ctx, s.db, inquiryID)
	if err != nil {
		return nil, err
	}
	if inquiry == nil {
		return nil, domain.ErrInquiryNotFound
	}

	detail := &domain.Detail{Inquiry: *inquiry}
	switch {
	case org.Type == orgdomain.TypeShipper && inquiry.ShipperOrgID == orgID:
		recipients, err := s.repo.ListRecipients(ctx, s.db, inquiryID)
		if err != nil {
			return nil, err
		}
		detail.Recipients = recipients
	case org.Type == orgdomain.TypeForwarder:
		recipient, err := s.visibleRecipient(ctx, inquiry, orgID)
		if err != nil {
			return nil, err
		}
		if recipient.ViewedAt == nil {
			now := s.clock.Now().UTC()
			if err := s.repo.UpdateRecipient(ctx, s.db, recipient.ID, map[string]any{"viewed_at": now}); err != nil {
				return nil, err
			}
			recipient.ViewedAt = &now
		}
		detail.Recipients = []domain.Recipient{*recipient}
	default:
		return nil, domain.ErrInquiryNotFound
	}

	docs, err := s.repo.ListDocuments(ctx, s.db, inquiryID)
	if err != nil {
		return nil, err
	}
	detail.Documents = docs
	return detail, nil
}

func (s *Service) List(ctx context.Context, orgID snowflake.ID, req domain.ListRequest) (domain.ListResponse, error) {
	org, err := s.loadOrg(ctx, orgID)
	if err != nil {
		return domain.ListResponse{}, err
	}

	filter := domain.ListFilter{OrgID: orgID, Limit: req.Limit()}
	if status := strings.ToLower(strings.TrimSpace(req.Status)); status != "" {
		if !domain.Status(status).Valid() {
			return domain.ListResponse{}, domain.ErrInvalidStatus
		}
		filter.Status = domain.Status(status)
	}
	if token := strings.TrimSpace(req.PageToken); token != "" {
		cursor, err := decodeCursor(token)
		if err != nil {
			return domain.ListResponse{}, err
		}
		filter.Cursor = cursor
	}

	var items []*domain.Inquiry
	if org.Type == orgdomain.TypeForwarder {
		items, err = s.repo.ListInbox(ctx, s.db, filter)
	} else {
		items, err = s.repo.ListByShipper(ctx, s.db, filter)
	}
	if err != nil {
		return domain.ListResponse{}, err
	}

	pageInfo := pagination.BuildCursorPageInfo(items, filter.Limit, func(item *domain.Inquiry) string {
		token, err := pagination.EncodeCursor(pagination.Cursor{
			ID:        item.ID.String(),
			CreatedAt: item.CreatedAt.UTC().Format(time.RFC3339Nano),
		})
		if err != nil {
			return ""
		}
		return token
	})
	if len(items) > filter.Limit {
		items = items[:filter.Limit]
	}

	recipients := map[snowflake.ID]domain.Recipient{}
	if org.Type == orgdomain.TypeForwarder && len(items) > 0 {
		ids := make([]snowflake.ID, 0, len(items))
		for _, item := range items {
			ids = append(ids, item.ID)
		}
		rows, err := s.repo.ListRecipients(ctx, s.db, ids...)
		if err != nil {
			return domain.ListResponse{}, err
		}
		for _, row := range rows {
			if row.ForwarderOrgID == orgID {
				recipients[row.InquiryID] = row
			}
		}
	}

	resp := domain.ListResponse{PageInfo: *pageInfo, Inquiries: make([]domain.ListItem, 0, len(items))}
	for _, item := range items {
		entry := domain.ListItem{Inquiry: *item}
		if row, ok := recipients[item.ID]; ok {
			row := row
			entry.Recipient = &row
		}
		resp.Inquiries = append(resp.Inquiries, entry)
	}
	return resp, nil
}

func (s *Service) Send(ctx context.Context, orgID, inquiryID snowflake.ID, req domain.SendRequest) (*domain.Inquiry, error) {
	if _, err := s.requireOrgType(ctx, orgID, orgdomain.TypeShipper); err != nil {
		return nil, err
	}
	forwarderIDs, err := s.validateForwarders(ctx, orgID, req.ForwarderIDs)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now().UTC()
	var (
		inquiry   *domain.Inquiry
		firstSend bool
		added     []string
	)
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		inquiry, err = s.lockOwned(ctx, tx, orgID, inquiryID)
		if err != nil {
			return err
		}
		if inquiry.Status != domain.StatusDraft && inquiry.Status != domain.StatusOpen {
			return domain.ErrInvalidTransition
		}
		if inquiry.ValidityDate == nil || !inquiry.ValidityDate.After(now) {
			return domain.ErrInvalidValidityDate
		}

		existing, err := s.repo.ListRecipients(ctx, tx, inquiryID)
		if err != nil {
			return err
		}
		seen := make(map[snowflake.ID]struct{}, len(existing))
		for _, r := range existing {
			seen[r.ForwarderOrgID] = struct{}{}
		}

		var recipients []domain.Recipient
		for _, fid := range forwarderIDs {
			if _, ok := seen[fid]; ok {
				continue
			}
			seen[fid] = struct{}{}
			recipients = append(recipients, domain.Recipient{
				ID:             s.genID.Generate(),
				InquiryID:      inquiryID,
				ForwarderOrgID: fid,
				SentAt:         now,
				ResponseStatus: domain.ResponsePending,
			})
			added = append(added, fid.String())
		}
		if err := s.repo.InsertRecipients(ctx, tx, recipients); err != nil {
			return err
		}

		fields := map[string]any{"updated_at": now}
		if inquiry.Status == domain.StatusDraft {
			fields["status"] = domain.StatusOpen
			inquiry.Status = domain.StatusOpen
		}
		if inquiry.SentAt == nil {
			fields["sent_at"] = now
			inquiry.SentAt = &now
			firstSend = true
		}
		if err := s.repo.Update(ctx, tx, inquiryID, fields); err != nil {
			return err
		}
		if len(added) == 0 {
			return nil
		}

		return s.activity.Record(ctx, tx, activitydomain.RecordRequest{
			OrgID:    orgID,
			Type:     activitydomain.TypeInquirySent,
			TargetID: inquiryID.String(),
			Payload: map[string]any{
				"reference_number": inquiry.ReferenceNumber,
				"forwarder_ids":    added,
			},
		})
	})
	if err != nil {
		return nil, err
	}

	if firstSend {
		s.metrics.RecordInquirySent(ctx, string(inquiry.ServiceType))
	}
	s.log.Info("inquiry sent",
		zap.String("inquiry_id", inquiryID.String()),
		zap.Int("new_recipients", len(added)),
	)
	return s.repo.FindByID(ctx, s.db, inquiryID)
}

func (s *Service) Cancel(ctx context.Context, orgID, inquiryID snowflake.ID) (*domain.Inquiry, error) {
	return s.finish(ctx, orgID, inquiryID, domain.StatusCancelled, activitydomain.TypeInquiryCancelled,
		[]domain.Status{domain.StatusDraft, domain.StatusOpen}, true)
}

func (s *Service) Close(ctx context.Context, orgID, inquiryID snowflake.ID) (*domain.Inquiry, error) {
	return s.finish(ctx, orgID, inquiryID, domain.StatusClosed, activitydomain.TypeInquiryClosed,
		[]domain.Status{domain.StatusOpen}, false)
}

// finish moves an owned inquiry into a terminal shipper-driven status.
func (s *Service) finish(ctx context.Context, orgID, inquiryID snowflake.ID, to domain.Status, eventType string, from []domain.Status, withdraw bool) (*domain.Inquiry, error) {
	now := s.clock.Now().UTC()
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		inquiry, err := s.lockOwned(ctx, tx, orgID, inquiryID)
		if err != nil {
			return err
		}
		if !statusIn(inquiry.Status, from) {
			return domain.ErrInvalidTransition
		}

		var withdrawn int64
		if withdraw {
			withdrawn, err = s.repo.WithdrawOpenQuotations(ctx, tx, inquiryID, nil, now)
			if err != nil {
				return err
			}
		}

		err = s.repo.Update(ctx, tx, inquiryID, map[string]any{
			"status":     to,
			"closed_at":  now,
			"updated_at": now,
		})
		if err != nil {
			return err
		}

		return s.activity.Record(ctx, tx, activitydomain.RecordRequest{
			OrgID:    orgID,
			Type:     eventType,
			TargetID: inquiryID.String(),
			Payload: map[string]any{
				"from":                 string(inquiry.Status),
				"quotations_withdrawn": withdrawn,
			},
		})
	})
	if err != nil {
		return nil, err
	}
	return s.repo.FindByID(ctx, s.db, inquiryID)
}

func (s *Service) Reject(ctx context.Context, orgID, inquiryID snowflake.ID, req domain.RejectRequest) (*domain.Inquiry, error) {
	if _, err := s.requireOrgType(ctx, orgID, orgdomain.TypeForwarder); err != nil {
		return nil, err
	}
	current, err := s.repo.FindByID(ctx, s.db, inquiryID)
	if err != nil {
		return nil, err
	}
	if current == nil {
		return nil, domain.ErrInquiryNotFound
	}
	if _, err := s.visibleRecipient(ctx, current, orgID); err != nil {
		return nil, err
	}

	now := s.clock.Now().UTC()
	var becameRejected bool
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		inquiry, err := s.repo.Lock(ctx, tx, inquiryID)
		if err != nil {
			return err
		}
		if inquiry == nil {
			return domain.ErrInquiryNotFound
		}
		recipient, err := s.repo.FindRecipient(ctx, tx, inquiryID, orgID)
		if err != nil {
			return err
		}
		if recipient == nil {
			return domain.ErrInquiryNotFound
		}
		if inquiry.Status != domain.StatusOpen {
			return domain.ErrInvalidTransition
		}
		if recipient.ResponseStatus == domain.ResponseRejected {
			return domain.ErrAlreadyResponded
		}

		err = s.repo.UpdateRecipient(ctx, tx, recipient.ID, map[string]any{
			"response_status": domain.ResponseRejected,
			"responded_at":    now,
			"reject_reason":   strings.TrimSpace(req.Reason),
		})
		if err != nil {
			return err
		}
		forwarder := orgID
		if _, err := s.repo.WithdrawOpenQuotations(ctx, tx, inquiryID, &forwarder, now); err != nil {
			return err
		}

		recipients, err := s.repo.ListRecipients(ctx, tx, inquiryID)
		if err != nil {
			return err
		}
		allRejected := true
		for _, r := range recipients {
			if r.ForwarderOrgID != orgID && r.ResponseStatus != domain.ResponseRejected {
				allRejected = false
				break
			}
		}
		if allRejected {
			active, err := s.repo.CountActiveQuotations(ctx, tx, inquiryID)
			if err != nil {
				return err
			}
			if active == 0 {
				err := s.repo.Update(ctx, tx, inquiryID, map[string]any{
					"status":     domain.StatusRejected,
					"closed_at":  now,
					"updated_at": now,
				})
				if err != nil {
					return err
				}
				becameRejected = true
			}
		}

		payload := map[string]any{
			"forwarder_org_id": orgID.String(),
			"inquiry_rejected": becameRejected,
		}
		for _, target := range []snowflake.ID{orgID, inquiry.ShipperOrgID} {
			err := s.activity.Record(ctx, tx, activitydomain.RecordRequest{
				OrgID:    target,
				Type:     activitydomain.TypeInquiryRejected,
				TargetID: inquiryID.String(),
				Payload:  payload,
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
	return s.repo.FindByID(ctx, s.db, inquiryID)
}

func (s *Service) UploadDocument(ctx context.Context, orgID, userID, inquiryID snowflake.ID, upload domain.DocumentUpload) (*domain.Document, error) {
	inquiry, err := s.repo.FindByID(ctx, s.db, inquiryID)
	if err != nil {
		return nil, err
	}
	if inquiry == nil || inquiry.ShipperOrgID != orgID {
		return nil, domain.ErrInquiryNotFound
	}
	if inquiry.Status.Terminal() {
		return nil, domain.ErrInquiryNotEditable
	}

	file := storage.Upload{
		Filename:    upload.Filename,
		ContentType: upload.ContentType,
		Size:        upload.Size,
		Body:        upload.Body,
	}
	contentType, ext, err := file.Validate(storage.DocumentContentTypes, s.maxUploadSize)
	if err != nil {
		return nil, err
	}

	obj, err := s.storage.Put(ctx, storage.DocumentKey(inquiryID.String(), ext), contentType, file.Body, file.Size)
	if err != nil {
		return nil, err
	}

	doc := &domain.Document{
		ID:          s.genID.Generate(),
		InquiryID:   inquiryID,
		Filename:    sanitizeFilename(upload.Filename, ext),
		ContentType: contentType,
		Size:        obj.Size,
		StorageKey:  obj.Key,
		URL:         obj.URL,
		UploadedBy:  userID,
		CreatedAt:   s.clock.Now().UTC(),
	}
	if err := s.repo.InsertDocument(ctx, s.db, doc); err != nil {
		if delErr := s.storage.Delete(ctx, obj.Key); delErr != nil {
			s.log.Warn("failed to remove orphaned document", zap.String("key", obj.Key), zap.Error(delErr))
		}
		return nil, err
	}
	return doc, nil
}

func (s *Service) ListDocuments(ctx context.Context, orgID, inquiryID snowflake.ID) ([]domain.Document, error) {
	detail, err := s.Get(ctx, orgID, inquiryID)
	if err != nil {
		return nil, err
	}
	return detail.Documents, nil
}

// visibleRecipient returns the forwarder's recipient row when the forwarder
// may still see the inquiry.
func (s *Service) visibleRecipient(ctx context.Context, inquiry *domain.Inquiry, forwarderID snowflake.ID) (*domain.Recipient, error) {
	recipient, err := s.repo.FindRecipient(ctx, s.db, inquiry.ID, forwarderID)
	if err != nil {
		return nil, err
	}
	if recipient == nil || inquiry.Status == domain.StatusDraft {
		return nil, domain.ErrInquiryNotFound
	}
	connected, err := s.connections.IsConnected(ctx, inquiry.ShipperOrgID, forwarderID)
	if err != nil {
		return nil, err
	}
	if !connected {
		return nil, domain.ErrInquiryNotFound
	}
	return recipient, nil
}

func (s *Service) validateForwarders(ctx context.Context, shipperID snowflake.ID, raw []string) ([]snowflake.ID, error) {
	if len(raw) == 0 {
		return nil, domain.ErrNoForwarders
	}
	ids := make([]snowflake.ID, 0, len(raw))
	seen := make(map[snowflake.ID]struct{}, len(raw))
	for _, value := range raw {
		id, err := snowflake.ParseString(strings.TrimSpace(value))
		if err != nil || id == 0 {
			return nil, domain.ErrInvalidForwarder
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}

		org, err := s.orgs.Get(ctx, id)
		if err != nil {
			if errors.Is(err, orgdomain.ErrOrganizationNotFound) {
				return nil, domain.ErrInvalidForwarder
			}
			return nil, err
		}
		if org.Type != orgdomain.TypeForwarder {
			return nil, domain.ErrInvalidForwarder
		}
		connected, err := s.connections.IsConnected(ctx, shipperID, id)
		if err != nil {
			return nil, err
		}
		if !connected {
			return nil, fmt.Errorf("%w: %s", domain.ErrForwarderNotConnected, id)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func (s *Service) lockOwned(ctx context.Context, tx *gorm.DB, orgID, inquiryID snowflake.ID) (*domain.Inquiry, error) {
	inquiry, err := s.repo.Lock(ctx, tx, inquiryID)
	if err != nil {
		return nil, err
	}
	if inquiry == nil || inquiry.ShipperOrgID != orgID {
		return nil, domain.ErrInquiryNotFound
	}
	return inquiry, nil
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

func (s *Service) validateCountry(ctx context.Context, raw string) (string, error) {
	code := strings.ToUpper(strings.TrimSpace(raw))
	if len(code) != 2 {
		return "", domain.ErrInvalidCountry
	}
	ok, err := s.ref.HasCountry(ctx, code)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", domain.ErrInvalidCountry
	}
	return code, nil
}

func (s *Service) buildPackages(inquiryID snowflake.ID, inputs []domain.PackageInput, now time.Time) ([]domain.Package, error) {
	packages := make([]domain.Package, 0, len(inputs))
	for _, in := range inputs {
		if in.Quantity <= 0 {
			in.Quantity = 1
		}
		if in.LengthCm < 0 || in.WidthCm < 0 || in.HeightCm < 0 || in.WeightKg < 0 || in.VolumeM3 < 0 {
			return nil, domain.ErrInvalidPackage
		}
		if in.DangerousGoods && strings.TrimSpace(in.UNNumber) == "" {
			return nil, domain.ErrInvalidPackage
		}
		volume := in.VolumeM3
		if volume == 0 && in.LengthCm > 0 && in.WidthCm > 0 && in.HeightCm > 0 {
			volume = in.LengthCm * in.WidthCm * in.HeightCm / 1e6
		}
		packages = append(packages, domain.Package{
			ID:             s.genID.Generate(),
			InquiryID:      inquiryID,
			Quantity:       in.Quantity,
			Kind:           strings.TrimSpace(in.Kind),
			LengthCm:       in.LengthCm,
			WidthCm:        in.WidthCm,
			HeightCm:       in.HeightCm,
			WeightKg:       in.WeightKg,
			VolumeM3:       volume,
			DangerousGoods: in.DangerousGoods,
			UNNumber:       strings.TrimSpace(in.UNNumber),
			HazardClass:    strings.TrimSpace(in.HazardClass),
			CreatedAt:      now,
		})
	}
	return packages, nil
}

// applyTotals recomputes weight, volume and the dangerous goods flag from
// the packages. Volumes are per piece.
func applyTotals(inquiry *domain.Inquiry, dangerous bool) {
	var weight, volume float64
	for _, p := range inquiry.Packages {
		weight += float64(p.Quantity) * p.WeightKg
		volume += float64(p.Quantity) * p.VolumeM3
		if p.DangerousGoods {
			dangerous = true
		}
	}
	inquiry.TotalWeightKg = weight
	inquiry.TotalVolumeM3 = volume
	inquiry.DangerousGoods = dangerous
}

func referenceNumber(now time.Time, id snowflake.ID) string {
	return fmt.Sprintf("INQ-%s-%s", now.UTC().Format("200601"), strings.ToUpper(id.Base36()))
}

func decodeCursor(token string) (*domain.Cursor, error) {
	decoded, err := pagination.DecodeCursor(token)
	if err != nil {
		return nil, domain.ErrInvalidPageToken
	}
	createdAt, err := decoded.CreatedAtTime()
	if err != nil {
		return nil, domain.ErrInvalidPageToken
	}
	id, err := snowflake.ParseString(strings.TrimSpace(decoded.ID))
	if err != nil || id == 0 {
		return nil, domain.ErrInvalidPageToken
	}
	return &domain.Cursor{ID: id, CreatedAt: createdAt}, nil
}

func statusIn(status domain.Status, set []domain.Status) bool {
	for _, s := range set {
		if status == s {
			return true
		}
	}
	return false
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := t.UTC()
	return &v
}

func sanitizeFilename(name, ext string) string {
	name = strings.TrimSpace(name)
	if i := strings.LastIndexAny(name, `/\`); i >= 0 {
		name = name[i+1:]
	}
	if name == "" {
		return "document" + ext
	}
	return name
}
